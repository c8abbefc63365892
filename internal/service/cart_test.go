package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/transport"
)

func TestCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := &CartService{Repo: f.repo}
	p := f.product(t, sellerX, "A", 100, 10, 0)
	hidden := f.product(t, sellerX, "H", 100, 10, 0)
	require.NoError(t, f.db.Model(hidden).Update("active", false).Error)

	_, err := svc.AddToCart(ctx, buyerID, p.ID, 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddToCart(ctx, buyerID, hidden.ID, 1)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddToCart(ctx, buyerID, 999, 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddToCart(ctx, buyerID, p.ID, 2)
	require.NoError(t, err)
	item, err := svc.AddToCart(ctx, buyerID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	item, err = svc.SetQuantity(ctx, buyerID, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	_, err = svc.SetQuantity(ctx, buyerID, hidden.ID, 1)
	require.ErrorIs(t, err, ErrNotFound)

	items, err := svc.GetCart(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.Remove(ctx, buyerID, p.ID))
	require.ErrorIs(t, svc.Remove(ctx, buyerID, p.ID), ErrNotFound)

	_, err = svc.AddToCart(ctx, buyerID, p.ID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, buyerID))
	assert.Zero(t, f.count(t, &models.CartItem{}))
}

func TestWishlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := &CartService{Repo: f.repo}
	p := f.product(t, sellerX, "A", 100, 10, 0)

	require.NoError(t, svc.AddToWishlist(ctx, buyerID, p.ID))
	require.NoError(t, svc.AddToWishlist(ctx, buyerID, p.ID))
	items, err := svc.Wishlist(ctx, buyerID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.ErrorIs(t, svc.AddToWishlist(ctx, buyerID, 0), ErrValidation)
	require.NoError(t, svc.RemoveFromWishlist(ctx, buyerID, p.ID))
	require.ErrorIs(t, svc.RemoveFromWishlist(ctx, buyerID, p.ID), ErrNotFound)
}

func TestShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := &ShippingService{Repo: f.repo}

	_, err := svc.CreateZone(ctx, transport.ZoneRequest{Name: "EU", Countries: []string{"DEU"}})
	require.ErrorIs(t, err, ErrValidation)

	eu, err := svc.CreateZone(ctx, transport.ZoneRequest{Name: "EU", Countries: []string{"de", "FR", "de"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "FR"}, eu.Countries)

	_, err = svc.CreateZone(ctx, transport.ZoneRequest{Name: "EU", Countries: []string{"IT"}})
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateCarrier(ctx, transport.CarrierRequest{ZoneID: 404, Name: "DHL", Price: dec("5")})
	require.ErrorIs(t, err, ErrValidation)

	express, err := svc.CreateCarrier(ctx, transport.CarrierRequest{ZoneID: eu.ID, Name: "Express", Price: dec("12.50"), DeliveryTime: "1 day"})
	require.NoError(t, err)
	standard, err := svc.CreateCarrier(ctx, transport.CarrierRequest{ZoneID: eu.ID, Name: "Standard", Price: dec("4.99")})
	require.NoError(t, err)

	opts, err := svc.Options(ctx, "fr")
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, standard.ID, opts[0].CarrierID)
	assert.EqualValues(t, 499, opts[0].Price)
	assert.Equal(t, express.ID, opts[1].CarrierID)

	opts, err = svc.Options(ctx, "US")
	require.NoError(t, err)
	assert.Empty(t, opts)

	off := false
	_, err = svc.UpdateCarrier(ctx, express.ID, transport.CarrierRequest{ZoneID: eu.ID, Name: "Express", Price: dec("12.50"), Active: &off})
	require.NoError(t, err)
	opts, err = svc.Options(ctx, "DE")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	require.NoError(t, svc.DeleteZone(ctx, eu.ID))
	assert.Zero(t, f.count(t, &models.Carrier{}))
	require.ErrorIs(t, svc.DeleteZone(ctx, eu.ID), ErrNotFound)
}

func TestCheckout_WithShippingOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ship := &ShippingService{Repo: f.repo}
	zone, err := ship.CreateZone(ctx, transport.ZoneRequest{Name: "Domestic", Countries: []string{"US"}})
	require.NoError(t, err)
	carrier, err := ship.CreateCarrier(ctx, transport.CarrierRequest{ZoneID: zone.ID, Name: "UPS", Price: dec("7.00")})
	require.NoError(t, err)
	p := f.product(t, sellerX, "A", 1000, 10, 0)
	f.addToCart(t, buyerID, p.ID, 1)

	resp, err := f.checkout.Checkout(ctx, buyerID, transport.CheckoutRequest{
		ShippingAddress: address(),
		ShippingOption:  &transport.ShippingOptionRef{CarrierID: carrier.ID},
		Amount:          dec("17.00"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, resp.TotalAmount)
	assert.EqualValues(t, 700, resp.ShippingAmount)
	assert.EqualValues(t, 1700, f.pay.Created[0].Amount)

	o, err := f.repo.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	require.NotNil(t, o.ShippingOption)
	assert.Equal(t, "UPS", o.ShippingOption.CarrierName)
	assert.Equal(t, "UPS", o.Carrier)
}

func TestNotifications_ReadSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := &NotificationService{Repo: f.repo}
	require.NoError(t, f.repo.CreateNotifications(ctx, []*models.Notification{
		userNote(buyerID, "t", "one", "m", nil),
		userNote(buyerID, "t", "two", "m", nil),
		userNote(otherUser, "t", "theirs", "m", nil),
		adminNote("t", "broadcast", "m", nil),
	}))

	page, err := svc.List(ctx, buyer, false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.List(ctx, admin, false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	n, err := svc.UnreadCount(ctx, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	first := page.Items[0].ID
	require.ErrorIs(t, svc.MarkRead(ctx, buyer, first), ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, admin, first))

	marked, err := svc.MarkAllRead(ctx, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)
	page, err = svc.List(ctx, buyer, true, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	var rows []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", otherUser).Find(&rows).Error)
	require.Len(t, rows, 1)
	theirs := rows[0].ID
	require.ErrorIs(t, svc.Delete(ctx, buyer, theirs), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, Actor{ID: otherUser}, theirs))
}
