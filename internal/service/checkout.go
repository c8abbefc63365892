package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/money"
)

type CheckoutService struct {
	Repo            *repo.GormRepo
	Payments        payment.Provider
	Notify          *notify.Service
	Events          events.Publisher
	History         history.Recorder
	DefaultCurrency string
	PaymentTimeout  time.Duration
	Now             clock
}

type line struct {
	product  models.Product
	quantity int
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXXXX.
func NewOrderNumber(now time.Time) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.UTC().Format("20060102") + "-" + frag
}

// Checkout turns the caller's cart into a pending order with one ledger row per seller.
func (s *CheckoutService) Checkout(ctx context.Context, userID uint, req transport.CheckoutRequest) (*transport.CheckoutResponse, error) {
	l := logging.FromContext(ctx).With("op", "checkout", "user_id", userID)
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.MethodCard
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.DefaultCurrency
	}

	reqLines := req.CartItems
	if len(reqLines) == 0 {
		cart, err := s.Repo.GetCart(ctx, userID)
		if err != nil {
			return nil, dbErr(err, "load cart")
		}
		for _, it := range cart {
			reqLines = append(reqLines, transport.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	if len(reqLines) == 0 {
		return nil, ErrEmptyCart
	}

	lines, err := s.resolveLines(ctx, reqLines)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, ln := range lines {
		total += int64(ln.quantity) * ln.product.Price
	}

	shippingOpt, err := s.resolveShipping(ctx, req.ShippingOption, req.ShippingAddress.Country)
	if err != nil {
		return nil, err
	}
	var shippingAmount int64
	if shippingOpt != nil {
		shippingAmount = shippingOpt.Price
	}

	if req.Amount != nil {
		claimed, err := cents(req.Amount, "amount")
		if err != nil {
			return nil, err
		}
		if claimed != total+shippingAmount {
			return nil, Invalid("amount", fmt.Sprintf("does not match order total %s", money.Format(total+shippingAmount)))
		}
	}

	now := nowOr(s.Now)
	orderNumber := NewOrderNumber(now)

	var intent *payment.Intent
	if method == models.MethodCard {
		intent, err = s.createIntent(ctx, orderNumber, userID, total+shippingAmount, currency)
		if err != nil {
			l.Errorw("checkout_error", "reason", "payment intent", "error", err)
			return nil, err
		}
	}

	order := s.buildOrder(userID, orderNumber, method, currency, req.ShippingAddress, shippingOpt, lines, total, shippingAmount)
	if intent != nil {
		order.PaymentIntentID = &intent.ID
	}
	if u, err := s.Repo.GetUser(ctx, userID); err == nil {
		if order.CustomerEmail == "" {
			order.CustomerEmail = u.Email
		}
		if order.CustomerPhone == "" {
			order.CustomerPhone = u.Phone
		}
	}

	var (
		notes   []*models.Notification
		alerted []alertedProduct
	)
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var txErr error
		notes, alerted, txErr = s.persist(ctx, tx, order, lines)
		return txErr
	})
	if err != nil {
		if intent != nil {
			s.cancelIntent(ctx, intent.ID)
		}
		if errors.Is(err, ErrOutOfStock) {
			l.Warnw("checkout_error", "reason", "out of stock", "error", err)
			return nil, err
		}
		l.Errorw("checkout_error", "reason", "persist", "error", err)
		return nil, dbErr(err, "persist order")
	}

	l.Infow("checkout_success", "order_id", order.ID, "order_number", order.OrderNumber,
		"total", order.TotalAmount, "shipping", order.ShippingAmount, "sellers", len(order.Transactions))

	if s.Notify != nil {
		s.Notify.Deliver(ctx, notes...)
	}
	evs := []events.Event{orderEvent(events.TypeOrderCreated, order, map[string]any{
		"shippingAmount": order.ShippingAmount,
		"paymentMethod":  order.PaymentMethod,
		"sellers":        sellerIDs(order.Transactions),
	})}
	for _, a := range alerted {
		evs = append(evs, alertEvent(&a.product, a.alert))
	}
	publish(ctx, s.Events, evs...)
	record(ctx, s.History, history.Entry{
		OrderID: order.ID, OrderNumber: order.OrderNumber, To: string(models.OrderPending),
		ActorID: userID, ActorRole: "client", Note: "order placed", At: now,
	})

	resp := &transport.CheckoutResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TotalAmount:    order.TotalAmount,
		ShippingAmount: order.ShippingAmount,
		Currency:       order.Currency,
	}
	if intent != nil {
		resp.ClientSecret = intent.ClientSecret
		resp.PaymentIntentID = intent.ID
	}
	return resp, nil
}

// resolveLines checks every requested line against the catalog.
func (s *CheckoutService) resolveLines(ctx context.Context, reqLines []transport.CartLine) ([]line, error) {
	ids := make([]uint, 0, len(reqLines))
	for _, ln := range reqLines {
		ids = append(ids, ln.ProductID)
	}
	products, err := s.Repo.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, dbErr(err, "load products")
	}

	verr := &ValidationError{}
	out := make([]line, 0, len(reqLines))
	pos := map[uint]int{}
	for i, ln := range reqLines {
		prefix := "cartItems[" + strconv.Itoa(i) + "]"
		if ln.Quantity <= 0 {
			verr.Add(prefix+".quantity", "must be a positive integer")
			continue
		}
		p, ok := products[ln.ProductID]
		if !ok || !p.Active {
			verr.Add(prefix+".productId", "product is not available")
			continue
		}
		if ln.Price != nil {
			c, err := money.ToCents(*ln.Price)
			if err != nil || c != p.Price {
				verr.Add(prefix+".price", fmt.Sprintf("price changed to %s", money.Format(p.Price)))
				continue
			}
		}
		// repeated products collapse into one line so stock and alerts move once per product
		if at, seen := pos[p.ID]; seen {
			out[at].quantity += ln.Quantity
			continue
		}
		pos[p.ID] = len(out)
		out = append(out, line{product: p, quantity: ln.Quantity})
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	for _, ln := range out {
		if ln.product.Stock < ln.quantity {
			return nil, &OutOfStockError{ProductID: ln.product.ID, Requested: ln.quantity}
		}
	}
	return out, nil
}

func (s *CheckoutService) resolveShipping(ctx context.Context, ref *transport.ShippingOptionRef, country string) (*models.ShippingOption, error) {
	if ref == nil || ref.CarrierID == 0 {
		return nil, nil
	}
	c, err := s.Repo.GetCarrier(ctx, ref.CarrierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Invalid("shippingOption.carrierId", "unknown carrier")
		}
		return nil, dbErr(err, "load carrier")
	}
	z, err := s.Repo.GetZone(ctx, c.ZoneID)
	if err != nil {
		return nil, dbErr(err, "load shipping zone")
	}
	if !c.Active || !z.Active || !zoneCovers(z, country) {
		return nil, Invalid("shippingOption.carrierId", "carrier does not ship to "+strings.ToUpper(country))
	}
	return &models.ShippingOption{
		CarrierID:    c.ID,
		CarrierName:  c.Name,
		Price:        c.Price,
		DeliveryTime: c.DeliveryTime,
	}, nil
}

func (s *CheckoutService) createIntent(ctx context.Context, orderNumber string, userID uint, amount int64, currency string) (*payment.Intent, error) {
	if s.Payments == nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, payment.ErrNotConfigured)
	}
	timeout := s.PaymentTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	intent, err := s.Payments.CreateIntent(pctx, payment.CreateIntentParams{
		Amount:         amount,
		Currency:       currency,
		IdempotencyKey: orderNumber,
		Metadata: map[string]string{
			"order_number": orderNumber,
			"user_id":      strconv.FormatUint(uint64(userID), 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	return intent, nil
}

func (s *CheckoutService) cancelIntent(ctx context.Context, id string) {
	l := logging.FromContext(ctx)
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Payments.CancelIntent(cctx, id); err != nil {
		l.Errorw("checkout_error", "reason", "cancel payment intent", "payment_intent_id", id, "error", err)
		return
	}
	l.Infow("payment_intent_cancelled", "payment_intent_id", id)
}

func (s *CheckoutService) buildOrder(userID uint, number, method, currency string, addr transport.ShippingAddress,
	opt *models.ShippingOption, lines []line, total, shipping int64) *models.Order {
	o := &models.Order{
		OrderNumber:    number,
		UserID:         userID,
		CustomerName:   addr.FullName,
		CustomerEmail:  addr.Email,
		CustomerPhone:  addr.Phone,
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		PaymentMethod:  method,
		Currency:       currency,
		TotalAmount:    total,
		ShippingAmount: shipping,
		ShippingAddress: models.Address{
			FullName: addr.FullName,
			Phone:    addr.Phone,
			Street:   addr.Street,
			City:     addr.City,
			State:    addr.State,
			ZipCode:  addr.ZipCode,
			Country:  strings.ToUpper(addr.Country),
			Email:    addr.Email,
		},
		ShippingOption: opt,
	}
	if opt != nil {
		o.Carrier = opt.CarrierName
	}
	for _, ln := range lines {
		o.Items = append(o.Items, models.OrderItem{
			ProductID:   ln.product.ID,
			VendorID:    ln.product.VendorID,
			ProductName: ln.product.Name,
			Quantity:    ln.quantity,
			UnitPrice:   ln.product.Price,
			TotalPrice:  int64(ln.quantity) * ln.product.Price,
		})
	}
	return o
}

type alertedProduct struct {
	product models.Product
	alert   *models.StockAlert
}

// persist writes the order and every side effect inside tx.
func (s *CheckoutService) persist(ctx context.Context, tx *repo.GormRepo, o *models.Order, lines []line) ([]*models.Notification, []alertedProduct, error) {
	if err := tx.CreateOrder(ctx, o); err != nil {
		return nil, nil, err
	}

	o.Transactions = LedgerFor(o)
	if err := tx.CreateTransactions(ctx, o.Transactions); err != nil {
		return nil, nil, err
	}

	var alerted []alertedProduct
	for _, ln := range lines {
		newStock, ok, err := tx.DecrementStock(ctx, ln.product.ID, ln.quantity)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, &OutOfStockError{ProductID: ln.product.ID, Requested: ln.quantity}
		}
		p := ln.product
		p.Stock = newStock
		if a := EvaluateAlert(&p, newStock); a != nil {
			if err := tx.CreateAlert(ctx, a); err != nil {
				return nil, nil, err
			}
			alerted = append(alerted, alertedProduct{product: p, alert: a})
		}
	}

	for _, t := range o.Transactions {
		if err := tx.IncStoreCounter(ctx, t.SellerID, repo.CounterOrders, 1); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.ClearCart(ctx, o.UserID); err != nil {
		return nil, nil, err
	}

	payload := orderPayload(o)
	notes := make([]*models.Notification, 0, len(o.Transactions)+1+len(alerted))
	for _, t := range o.Transactions {
		notes = append(notes, userNote(t.SellerID, "new_order", "New order "+o.OrderNumber,
			fmt.Sprintf("You have a new order worth %s %s", money.Format(t.Amount), strings.ToUpper(o.Currency)), payload))
	}
	notes = append(notes, userNote(o.UserID, "order_placed", "Order "+o.OrderNumber+" placed",
		fmt.Sprintf("Your order total is %s %s", money.Format(o.GrandTotal()), strings.ToUpper(o.Currency)), payload))
	for _, a := range alerted {
		notes = append(notes, alertNote(&a.product, a.alert))
	}
	if err := tx.CreateNotifications(ctx, notes); err != nil {
		return nil, nil, err
	}
	return notes, alerted, nil
}

// LedgerFor groups an order's items into one pending transaction per seller, ordered by seller id.
func LedgerFor(o *models.Order) []models.Transaction {
	sums := map[uint]int64{}
	for _, it := range o.Items {
		sums[it.VendorID] += it.TotalPrice
	}
	sellers := make([]uint, 0, len(sums))
	for id := range sums {
		sellers = append(sellers, id)
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i] < sellers[j] })

	out := make([]models.Transaction, 0, len(sellers))
	for _, id := range sellers {
		out = append(out, models.Transaction{
			OrderID:  o.ID,
			SellerID: id,
			Amount:   sums[id],
			Currency: o.Currency,
			Status:   models.TxPending,
		})
	}
	return out
}

func sellerIDs(txs []models.Transaction) []uint {
	out := make([]uint, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.SellerID)
	}
	return out
}

func zoneCovers(z *models.ShippingZone, country string) bool {
	for _, c := range z.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}
