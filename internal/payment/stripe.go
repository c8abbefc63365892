package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeProvider struct {
	client     *paymentintent.Client
	webhookKey string
}

func NewStripeProvider(secretKey, webhookKey string) *StripeProvider {
	return &StripeProvider{
		client:     &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookKey: webhookKey,
	}
}

func (s *StripeProvider) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create intent: %w", err)
	}
	return toIntent(pi), nil
}

func (s *StripeProvider) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.client.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get intent: %w", err)
	}
	return toIntent(pi), nil
}

func (s *StripeProvider) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := s.client.Cancel(id, params); err != nil {
		return fmt.Errorf("stripe: cancel intent: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the intent id.
func (s *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookKey,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe: verify webhook: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err == nil {
			out.IntentID = pi.ID
		}
	}
	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if e := pi.LastPaymentError; e != nil {
		in.LastPaymentError = e.Msg
		if in.LastPaymentError == "" {
			in.LastPaymentError = string(e.Code)
		}
		if in.LastPaymentError == "" {
			in.LastPaymentError = "payment declined"
		}
	}
	return in
}
