package service

import (
	"context"
	"math"
	"time"

	"github.com/Skotchmaster/marketplace/internal/cache"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

type Metric struct {
	Current  int64 `json:"current"`
	Previous int64 `json:"previous"`
	Change   int64 `json:"change"`
}

type CountMetric struct {
	Metric
	Total int64 `json:"total"`
}

type SellerDashboard struct {
	Turnover   Metric      `json:"turnover"`
	Orders     Metric      `json:"orders"`
	Products   CountMetric `json:"products"`
	Promotions CountMetric `json:"promotions"`
}

type AdminDashboard struct {
	Revenue Metric `json:"revenue"`
	Sellers Metric `json:"sellers"`
	Orders  Metric `json:"orders"`
	Clients Metric `json:"clients"`
}

type ClientDashboard struct {
	Orders     int64 `json:"orders"`
	Wishlist   int64 `json:"wishlist"`
	TotalSpend int64 `json:"totalSpend"`
}

type SeriesPoint struct {
	Month  string `json:"month"`
	Amount int64  `json:"amount"`
}

// PercentageChange compares a month with the previous one, rounded to a whole percent.
func PercentageChange(cur, prev int64) int64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return int64(math.Round(float64(cur-prev) / float64(prev) * 100))
}

func metric(cur, prev int64) Metric {
	return Metric{Current: cur, Previous: prev, Change: PercentageChange(cur, prev)}
}

// MonthWindows returns the UTC boundaries of the previous, current and next month.
func MonthWindows(now time.Time) (prevStart, curStart, nextStart time.Time) {
	now = now.UTC()
	curStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return curStart.AddDate(0, -1, 0), curStart, curStart.AddDate(0, 1, 0)
}

type DashboardService struct {
	Repo  *repo.GormRepo
	Cache cache.Cache
	Now   clock
}

func (s *DashboardService) cached(ctx context.Context, key string, dst any, compute func() error) error {
	if s.Cache != nil {
		hit, err := s.Cache.Get(ctx, key, dst)
		if err != nil {
			logging.FromContext(ctx).Warnw("dashboard_cache_error", "key", key, "error", err)
		}
		if hit {
			return nil
		}
	}
	if err := compute(); err != nil {
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, dst); err != nil {
			logging.FromContext(ctx).Warnw("dashboard_cache_error", "key", key, "error", err)
		}
	}
	return nil
}

func (s *DashboardService) Seller(ctx context.Context, sellerID uint) (*SellerDashboard, error) {
	prev, cur, next := MonthWindows(nowOr(s.Now))
	out := &SellerDashboard{}
	err := s.cached(ctx, cache.Key("dashboard", "seller", sellerID, cur.Format("2006-01")), out, func() error {
		var c, p int64
		var err error

		if c, err = s.Repo.SellerTurnover(ctx, sellerID, RevenueStatus, cur, next); err != nil {
			return err
		}
		if p, err = s.Repo.SellerTurnover(ctx, sellerID, RevenueStatus, prev, cur); err != nil {
			return err
		}
		out.Turnover = metric(c, p)

		if c, err = s.Repo.SellerOrderCount(ctx, sellerID, cur, next); err != nil {
			return err
		}
		if p, err = s.Repo.SellerOrderCount(ctx, sellerID, prev, cur); err != nil {
			return err
		}
		out.Orders = metric(c, p)

		if out.Products, err = s.productCounts(ctx, sellerID, false, prev, cur, next); err != nil {
			return err
		}
		out.Promotions, err = s.productCounts(ctx, sellerID, true, prev, cur, next)
		return err
	})
	if err != nil {
		return nil, dbErr(err, "seller dashboard")
	}
	return out, nil
}

func (s *DashboardService) productCounts(ctx context.Context, sellerID uint, promo bool, prev, cur, next time.Time) (CountMetric, error) {
	c, err := s.Repo.CountProducts(ctx, sellerID, promo, cur, next)
	if err != nil {
		return CountMetric{}, err
	}
	p, err := s.Repo.CountProducts(ctx, sellerID, promo, prev, cur)
	if err != nil {
		return CountMetric{}, err
	}
	total, err := s.Repo.CountProducts(ctx, sellerID, promo, time.Time{}, time.Time{})
	if err != nil {
		return CountMetric{}, err
	}
	return CountMetric{Metric: metric(c, p), Total: total}, nil
}

func (s *DashboardService) Admin(ctx context.Context) (*AdminDashboard, error) {
	prev, cur, next := MonthWindows(nowOr(s.Now))
	out := &AdminDashboard{}
	err := s.cached(ctx, cache.Key("dashboard", "admin", cur.Format("2006-01")), out, func() error {
		pair := func(f func(from, to time.Time) (int64, error)) (Metric, error) {
			c, err := f(cur, next)
			if err != nil {
				return Metric{}, err
			}
			p, err := f(prev, cur)
			if err != nil {
				return Metric{}, err
			}
			return metric(c, p), nil
		}
		var err error
		if out.Revenue, err = pair(func(from, to time.Time) (int64, error) {
			return s.Repo.OrderRevenue(ctx, RevenueStatus, from, to)
		}); err != nil {
			return err
		}
		if out.Sellers, err = pair(func(from, to time.Time) (int64, error) {
			return s.Repo.CountUsers(ctx, tokens.RoleSeller, from, to)
		}); err != nil {
			return err
		}
		if out.Orders, err = pair(func(from, to time.Time) (int64, error) {
			return s.Repo.CountOrdersBetween(ctx, from, to)
		}); err != nil {
			return err
		}
		out.Clients, err = pair(func(from, to time.Time) (int64, error) {
			return s.Repo.CountUsers(ctx, tokens.RoleClient, from, to)
		})
		return err
	})
	if err != nil {
		return nil, dbErr(err, "admin dashboard")
	}
	return out, nil
}

func (s *DashboardService) Client(ctx context.Context, userID uint) (*ClientDashboard, error) {
	count, spend, err := s.Repo.ClientOrderStats(ctx, userID)
	if err != nil {
		return nil, dbErr(err, "client dashboard")
	}
	wish, err := s.Repo.CountWishlist(ctx, userID)
	if err != nil {
		return nil, dbErr(err, "client dashboard")
	}
	return &ClientDashboard{Orders: count, Wishlist: wish, TotalSpend: spend}, nil
}

// RevenueSeries returns recognized revenue for the last months months, oldest first.
// Sellers see their own share; admins see marketplace totals.
func (s *DashboardService) RevenueSeries(ctx context.Context, actor Actor, months int) ([]SeriesPoint, error) {
	if months < 1 || months > 24 {
		return nil, Invalid("months", "must be between 1 and 24")
	}
	var seller *uint
	switch {
	case actor.IsAdmin():
	case actor.IsSeller():
		seller = uptr(actor.ID)
	default:
		return nil, ErrForbidden
	}

	_, cur, _ := MonthWindows(nowOr(s.Now))
	since := cur.AddDate(0, -(months - 1), 0)
	points, err := s.Repo.RevenueSince(ctx, seller, RevenueStatus, since)
	if err != nil {
		return nil, dbErr(err, "revenue series")
	}
	return BucketByMonth(points, since, months), nil
}

// BucketByMonth lays monthly points onto consecutive calendar months starting at since.
func BucketByMonth(points []repo.RevenuePoint, since time.Time, months int) []SeriesPoint {
	out := make([]SeriesPoint, months)
	idx := make(map[string]int, months)
	for i := range out {
		m := since.AddDate(0, i, 0).Format("2006-01")
		out[i].Month = m
		idx[m] = i
	}
	for _, p := range points {
		if i, ok := idx[p.Month]; ok {
			out[i].Amount += p.Amount
		}
	}
	return out
}
