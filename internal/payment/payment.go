package payment

import (
	"context"
	"errors"
)

const (
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusProcessing            = "processing"
)

var ErrNotConfigured = errors.New("payment provider not configured")

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	// LastPaymentError is set when the most recent attempt was declined.
	LastPaymentError string
}

type CreateIntentParams struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

type Provider interface {
	CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

// WebhookEvent is the part of a provider callback the order flow needs.
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
}

type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// Disabled rejects every call. Used when no provider key is configured.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, CreateIntentParams) (*Intent, error) {
	return nil, ErrNotConfigured
}

func (Disabled) GetIntent(context.Context, string) (*Intent, error) { return nil, ErrNotConfigured }

func (Disabled) CancelIntent(context.Context, string) error { return ErrNotConfigured }

func (Disabled) ParseWebhook([]byte, string) (*WebhookEvent, error) { return nil, ErrNotConfigured }
