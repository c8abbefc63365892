package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

func TestParseWebhook_VerifiesSignature(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"api_version": "2024-06-20",
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "status": "succeeded"}}
	}`))

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	p := NewStripeProvider("sk_test", secret)
	ev, err := p.ParseWebhook(signed.Payload, signed.Header)
	require.NoError(t, err)
	require.Equal(t, "evt_1", ev.ID)
	require.Equal(t, "payment_intent.succeeded", ev.Type)
	require.Equal(t, "pi_123", ev.IntentID)

	_, err = p.ParseWebhook(payload, "t=1,v1=bad")
	require.Error(t, err)
}

func TestDisabled(t *testing.T) {
	var d Disabled
	_, err := d.CreateIntent(t.Context(), CreateIntentParams{Amount: 1})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestToIntent_LastPaymentError(t *testing.T) {
	in := toIntent(&stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod})
	require.Empty(t, in.LastPaymentError)

	in = toIntent(&stripe.PaymentIntent{
		ID:               "pi_1",
		Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
		LastPaymentError: &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."},
	})
	require.Equal(t, StatusRequiresPaymentMethod, in.Status)
	require.Equal(t, "Your card was declined.", in.LastPaymentError)

	in = toIntent(&stripe.PaymentIntent{ID: "pi_1", LastPaymentError: &stripe.Error{Code: stripe.ErrorCodeCardDeclined}})
	require.Equal(t, "card_declined", in.LastPaymentError)
}
