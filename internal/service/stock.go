package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

// EvaluateAlert applies the stock alert rule to a product's new stock level.
// It returns nil when no alert is due.
func EvaluateAlert(p *models.Product, newStock int) *models.StockAlert {
	var severity, msg string
	switch {
	case newStock <= 0:
		severity, msg = models.SeverityCritical, "Completely out of stock"
	case newStock <= p.MinThreshold:
		severity, msg = models.SeverityImportant, fmt.Sprintf("Low stock: only %d left", newStock)
	default:
		return nil
	}
	return &models.StockAlert{
		ProductID: p.ID,
		SellerID:  p.VendorID,
		Severity:  severity,
		Message:   msg,
		Stock:     newStock,
		Status:    models.AlertActive,
	}
}

func alertNote(p *models.Product, a *models.StockAlert) *models.Notification {
	return userNote(p.VendorID, "stock_alert", "Stock alert: "+p.Name, a.Message, map[string]any{
		"productId": p.ID, "alertId": a.ID, "severity": a.Severity, "stock": a.Stock,
	})
}

func alertEvent(p *models.Product, a *models.StockAlert) events.Event {
	return events.New(events.TypeStockAlertRaised, fmt.Sprintf("product-%d", p.ID), map[string]any{
		"alertId": a.ID, "productId": p.ID, "sellerId": p.VendorID, "severity": a.Severity, "stock": a.Stock,
	})
}

// restock returns order items to stock and resolves alerts on products that recovered.
func restock(ctx context.Context, tx *repo.GormRepo, items []models.OrderItem, by uint, at clock) error {
	for _, it := range items {
		if err := tx.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	for _, it := range items {
		p, err := tx.GetProduct(ctx, it.ProductID)
		if err != nil {
			// soft-deleted products keep their stock but have no live alerts to resolve
			continue
		}
		if EvaluateAlert(p, p.Stock) == nil {
			if _, err := tx.ResolveProductAlerts(ctx, p.ID, by, nowOr(at)); err != nil {
				return err
			}
		}
	}
	return nil
}

type Suggestion struct {
	ProductID     uint   `json:"productId"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Stock         int    `json:"stock"`
	Threshold     int    `json:"threshold"`
	SuggestedQty  int    `json:"suggestedQty"`
	PurchasePrice int64  `json:"purchasePrice"`
	SuggestedCost int64  `json:"suggestedCost"`
}

type StockService struct {
	Repo           *repo.GormRepo
	Notify         *notify.Service
	Events         events.Publisher
	LowStockCutoff int
	Now            clock
}

// Suggest computes a reorder line for a product, using cutoff when it has no threshold.
func Suggest(p models.Product, cutoff int) Suggestion {
	th := p.MinThreshold
	if th == 0 {
		th = cutoff
	}
	qty := th*2 - p.Stock
	if qty < 0 {
		qty = 0
	}
	return Suggestion{
		ProductID:     p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Stock:         p.Stock,
		Threshold:     th,
		SuggestedQty:  qty,
		PurchasePrice: p.PurchasePrice,
		SuggestedCost: int64(qty) * p.PurchasePrice,
	}
}

func (s *StockService) Suggestions(ctx context.Context, sellerID uint) ([]Suggestion, error) {
	products, err := s.Repo.LowStockProducts(ctx, sellerID, s.LowStockCutoff)
	if err != nil {
		return nil, dbErr(err, "low stock products")
	}
	out := make([]Suggestion, 0, len(products))
	for _, p := range products {
		out = append(out, Suggest(p, s.LowStockCutoff))
	}
	return out, nil
}

func (s *StockService) ListAlerts(ctx context.Context, actor Actor, status string) ([]models.StockAlert, error) {
	switch status {
	case "", models.AlertActive, models.AlertResolved:
	default:
		return nil, Invalid("status", "must be active or resolved")
	}
	var seller *uint
	if !actor.IsAdmin() {
		seller = uptr(actor.ID)
	}
	alerts, err := s.Repo.ListAlerts(ctx, seller, status)
	if err != nil {
		return nil, dbErr(err, "stock alerts")
	}
	return alerts, nil
}

func (s *StockService) ResolveAlert(ctx context.Context, actor Actor, id uint) (*models.StockAlert, error) {
	a, err := s.Repo.GetAlert(ctx, id)
	if err != nil {
		return nil, dbErr(err, "stock alert")
	}
	if !actor.IsAdmin() && a.SellerID != actor.ID {
		return nil, fmt.Errorf("%w: alert belongs to another seller", ErrForbidden)
	}
	ok, err := s.Repo.ResolveAlert(ctx, id, actor.ID, nowOr(s.Now))
	if err != nil {
		return nil, dbErr(err, "resolve alert")
	}
	if !ok {
		return nil, &ConflictError{Field: "status", Message: "alert is already resolved"}
	}
	a, err = s.Repo.GetAlert(ctx, id)
	return a, dbErr(err, "stock alert")
}

// AdjustStock sets a product's stock. Recovering above the threshold resolves
// active alerts; dropping into the alert band raises one if none is active.
func (s *StockService) AdjustStock(ctx context.Context, actor Actor, productID uint, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, Invalid("stock", "must not be negative")
	}

	var (
		product *models.Product
		raised  *models.StockAlert
		note    *models.Notification
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && p.VendorID != actor.ID {
			return fmt.Errorf("%w: product belongs to another seller", ErrForbidden)
		}
		if err := tx.SetStock(ctx, p.ID, stock); err != nil {
			return err
		}
		p.Stock = stock
		product = p

		alert := EvaluateAlert(p, stock)
		if alert == nil {
			_, err := tx.ResolveProductAlerts(ctx, p.ID, actor.ID, nowOr(s.Now))
			return err
		}
		active, err := tx.HasActiveAlert(ctx, p.ID)
		if err != nil || active {
			return err
		}
		if err := tx.CreateAlert(ctx, alert); err != nil {
			return err
		}
		raised = alert
		note = alertNote(p, alert)
		return tx.CreateNotifications(ctx, []*models.Notification{note})
	})
	if err != nil {
		return nil, dbErr(err, "adjust stock")
	}

	logging.FromContext(ctx).Infow("stock_adjusted", "product_id", productID, "stock", stock, "alert_raised", raised != nil)
	if raised != nil {
		if s.Notify != nil {
			s.Notify.Deliver(ctx, note)
		}
		publish(ctx, s.Events, alertEvent(product, raised))
	}
	return product, nil
}
