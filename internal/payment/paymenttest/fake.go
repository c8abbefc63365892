// Package paymenttest provides an in-memory payment provider.
package paymenttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Skotchmaster/marketplace/internal/payment"
)

type Fake struct {
	mu        sync.Mutex
	seq       int
	intents   map[string]*payment.Intent
	byKey     map[string]string
	Cancelled []string
	Created   []payment.CreateIntentParams

	// CreateErr, when set, fails every CreateIntent call.
	CreateErr error
}

func New() *Fake {
	return &Fake{intents: map[string]*payment.Intent{}, byKey: map[string]string{}}
}

func (f *Fake) CreateIntent(_ context.Context, p payment.CreateIntentParams) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	if id, ok := f.byKey[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		cp := *f.intents[id]
		return &cp, nil
	}
	f.seq++
	id := fmt.Sprintf("pi_fake_%d", f.seq)
	in := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       payment.StatusRequiresPaymentMethod,
		Amount:       p.Amount,
		Currency:     p.Currency,
	}
	f.intents[id] = in
	f.byKey[p.IdempotencyKey] = id
	f.Created = append(f.Created, p)
	cp := *in
	return &cp, nil
}

func (f *Fake) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment intent")
	}
	cp := *in
	return &cp, nil
}

func (f *Fake) CancelIntent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[id]
	if !ok {
		return errors.New("no such payment intent")
	}
	in.Status = payment.StatusCanceled
	f.Cancelled = append(f.Cancelled, id)
	return nil
}

// SetStatus simulates the buyer completing or abandoning payment.
func (f *Fake) SetStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.intents[id]; ok {
		in.Status = status
	}
}

// Decline simulates a refused attempt; the intent can still be retried.
func (f *Fake) Decline(id, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.intents[id]; ok {
		in.Status = payment.StatusRequiresPaymentMethod
		in.LastPaymentError = reason
	}
}

func (f *Fake) CancelledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Cancelled...)
}
