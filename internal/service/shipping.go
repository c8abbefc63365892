package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
)

type ShippingService struct {
	Repo *repo.GormRepo
}

func normalizeCountries(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) != 2 {
			return nil, Invalid("countries", "use ISO 3166-1 alpha-2 codes")
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, Invalid("countries", "required")
	}
	return out, nil
}

func (s *ShippingService) ListZones(ctx context.Context) ([]models.ShippingZone, error) {
	out, err := s.Repo.ListZones(ctx, false)
	return out, dbErr(err, "shipping zones")
}

func (s *ShippingService) CreateZone(ctx context.Context, req transport.ZoneRequest) (*models.ShippingZone, error) {
	z := &models.ShippingZone{Name: strings.TrimSpace(req.Name), Active: true}
	if err := applyZone(z, req); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateZone(ctx, z); err != nil {
		return nil, zoneErr(err)
	}
	return z, nil
}

func (s *ShippingService) UpdateZone(ctx context.Context, id uint, req transport.ZoneRequest) (*models.ShippingZone, error) {
	z, err := s.Repo.GetZone(ctx, id)
	if err != nil {
		return nil, dbErr(err, "shipping zone")
	}
	z.Name = strings.TrimSpace(req.Name)
	if err := applyZone(z, req); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveZone(ctx, z); err != nil {
		return nil, zoneErr(err)
	}
	return z, nil
}

func applyZone(z *models.ShippingZone, req transport.ZoneRequest) error {
	if z.Name == "" {
		return Invalid("name", "required")
	}
	countries, err := normalizeCountries(req.Countries)
	if err != nil {
		return err
	}
	z.Countries = countries
	if req.Active != nil {
		z.Active = *req.Active
	}
	return nil
}

func zoneErr(err error) error {
	if isUniqueViolation(err) {
		return &ConflictError{Field: "name", Message: "zone name already exists"}
	}
	return dbErr(err, "save shipping zone")
}

func (s *ShippingService) DeleteZone(ctx context.Context, id uint) error {
	return dbErr(s.Repo.DeleteZone(ctx, id), "shipping zone")
}

func (s *ShippingService) CreateCarrier(ctx context.Context, req transport.CarrierRequest) (*models.Carrier, error) {
	c := &models.Carrier{Active: true}
	if err := s.applyCarrier(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateCarrier(ctx, c); err != nil {
		return nil, dbErr(err, "create carrier")
	}
	return c, nil
}

func (s *ShippingService) UpdateCarrier(ctx context.Context, id uint, req transport.CarrierRequest) (*models.Carrier, error) {
	c, err := s.Repo.GetCarrier(ctx, id)
	if err != nil {
		return nil, dbErr(err, "carrier")
	}
	if err := s.applyCarrier(ctx, c, req); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveCarrier(ctx, c); err != nil {
		return nil, dbErr(err, "update carrier")
	}
	return c, nil
}

func (s *ShippingService) applyCarrier(ctx context.Context, c *models.Carrier, req transport.CarrierRequest) error {
	verr := &ValidationError{}
	if req.Price == nil {
		verr.Add("price", "required")
	}
	centsInto(verr, req.Price, "price", &c.Price)
	if c.Name = strings.TrimSpace(req.Name); c.Name == "" {
		verr.Add("name", "required")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	if _, err := s.Repo.GetZone(ctx, req.ZoneID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Invalid("zoneId", "unknown shipping zone")
		}
		return dbErr(err, "shipping zone")
	}
	c.ZoneID = req.ZoneID
	c.DeliveryTime = req.DeliveryTime
	if req.Active != nil {
		c.Active = *req.Active
	}
	return nil
}

func (s *ShippingService) DeleteCarrier(ctx context.Context, id uint) error {
	return dbErr(s.Repo.DeleteCarrier(ctx, id), "carrier")
}

// Options lists active carriers of active zones that ship to country, cheapest first.
func (s *ShippingService) Options(ctx context.Context, country string) ([]transport.ShippingOptionResponse, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		return nil, Invalid("country", "use an ISO 3166-1 alpha-2 code")
	}
	zones, err := s.Repo.ListZones(ctx, true)
	if err != nil {
		return nil, dbErr(err, "shipping zones")
	}
	out := []transport.ShippingOptionResponse{}
	for i := range zones {
		if !zoneCovers(&zones[i], country) {
			continue
		}
		for _, c := range zones[i].Carriers {
			out = append(out, transport.ShippingOptionResponse{
				CarrierID:    c.ID,
				CarrierName:  c.Name,
				ZoneID:       c.ZoneID,
				Price:        c.Price,
				DeliveryTime: c.DeliveryTime,
			})
		}
	}
	sortOptions(out)
	return out, nil
}

func sortOptions(o []transport.ShippingOptionResponse) {
	sort.SliceStable(o, func(i, j int) bool {
		if o[i].Price != o[j].Price {
			return o[i].Price < o[j].Price
		}
		return o[i].CarrierID < o[j].CarrierID
	})
}
