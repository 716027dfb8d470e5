package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/kindbridge/backend-giving/internal/reconcile"
)

// Metadata keys stamped onto the payment intent at creation time and read
// back when the completion webhook arrives.
const (
	MetaPayerID      = "payer_id"
	MetaItemID       = "item_id"
	MetaAmount       = "amount"
	MetaSupplemental = "supplemental_amount"
	MetaAgencyName   = "agency_name"
)

const stripeEventSucceeded = "payment_intent.succeeded"

// Stripe is the card processor integration. Inbound deliveries are
// authenticated by the Stripe-Signature header; the donation intent rides in
// the payment intent's metadata bag.
type Stripe struct {
	SigningSecret string
	Log           zerolog.Logger
}

// Name implements WebhookProvider.
func (Stripe) Name() reconcile.Provider { return reconcile.ProviderCard }

// Match implements WebhookProvider. The signature header is the card
// processor's signal regardless of payload shape.
func (Stripe) Match(r *http.Request, _ []byte) bool {
	return strings.TrimSpace(r.Header.Get("Stripe-Signature")) != ""
}

// Verify implements WebhookProvider. A failed signature check is terminal
// for the delivery; nothing downstream may run.
func (s Stripe) Verify(r *http.Request, body []byte) (Event, error) {
	ev, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), s.SigningSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if ev.Type != stripeEventSucceeded {
		s.Log.Debug().Str("event_type", ev.Type).Msg("ignoring stripe event")
		return Event{}, ErrSkipEvent
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return Event{}, fmt.Errorf("decode payment intent: %w", err)
	}
	return Event{
		Provider: reconcile.ProviderCard,
		Type:     ev.Type,
		Metadata: pi.Metadata,
		Amount:   decimal.New(pi.Amount, -2),
	}, nil
}

// Normalize implements WebhookProvider. Every intent field must be present
// in the metadata bag; a missing key aborts before any mutation.
func (Stripe) Normalize(ev Event) (reconcile.Intent, error) {
	get := func(key string) (string, error) {
		v := strings.TrimSpace(ev.Metadata[key])
		if v == "" {
			return "", fmt.Errorf("metadata key %q missing", key)
		}
		return v, nil
	}

	payerID, err := get(MetaPayerID)
	if err != nil {
		return reconcile.Intent{}, err
	}
	itemID, err := get(MetaItemID)
	if err != nil {
		return reconcile.Intent{}, err
	}
	agencyName, err := get(MetaAgencyName)
	if err != nil {
		return reconcile.Intent{}, err
	}
	rawAmount, err := get(MetaAmount)
	if err != nil {
		return reconcile.Intent{}, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return reconcile.Intent{}, fmt.Errorf("metadata amount %q: %w", rawAmount, err)
	}
	supplemental := decimal.Zero
	if raw := strings.TrimSpace(ev.Metadata[MetaSupplemental]); raw != "" {
		supplemental, err = decimal.NewFromString(raw)
		if err != nil {
			return reconcile.Intent{}, fmt.Errorf("metadata supplemental amount %q: %w", raw, err)
		}
	}

	return reconcile.Intent{
		Provider:              reconcile.ProviderCard,
		PayerUserID:           payerID,
		ItemID:                itemID,
		DonationAmount:        amount,
		SupplementalAmount:    supplemental,
		BeneficiaryAgencyName: agencyName,
	}, nil
}

// IntentParams describes a charge to open with the card processor.
type IntentParams struct {
	AmountMinor  int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

// CreateIntent opens a payment intent and returns its client secret.
func (s Stripe) CreateIntent(ctx context.Context, p IntentParams) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(p.AmountMinor),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}
