package provider_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kindbridge/backend-giving/internal/provider"
	"github.com/kindbridge/backend-giving/internal/reconcile"
)

const signingSecret = "whsec_test_secret"

func signStripePayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEventBody(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": %q,
		"data": {
			"object": {
				"id": "pi_1",
				"object": "payment_intent",
				"amount": 3750,
				"currency": "eur",
				"metadata": {
					"payer_id": "u1",
					"item_id": "i9",
					"amount": "37.50",
					"supplemental_amount": "5.00",
					"agency_name": "HopeAgency"
				}
			}
		}
	}`, eventType))
}

func signedRequest(body []byte, signature string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(string(body)))
	if signature != "" {
		r.Header.Set("Stripe-Signature", signature)
	}
	return r
}

func TestStripeMatch(t *testing.T) {
	s := provider.Stripe{SigningSecret: signingSecret, Log: zerolog.Nop()}
	body := stripeEventBody("payment_intent.succeeded")

	require.True(t, s.Match(signedRequest(body, "t=1,v1=aa"), body))
	require.False(t, s.Match(signedRequest(body, ""), body))
}

func TestStripeVerify(t *testing.T) {
	s := provider.Stripe{SigningSecret: signingSecret, Log: zerolog.Nop()}
	body := stripeEventBody("payment_intent.succeeded")

	ev, err := s.Verify(signedRequest(body, signStripePayload(signingSecret, body)), body)
	require.NoError(t, err)
	require.Equal(t, reconcile.ProviderCard, ev.Provider)
	require.Equal(t, "i9", ev.Metadata["item_id"])
	require.True(t, ev.Amount.Equal(decimal.RequireFromString("37.50")))
}

func TestStripeVerifyRejectsBadSignature(t *testing.T) {
	s := provider.Stripe{SigningSecret: signingSecret, Log: zerolog.Nop()}
	body := stripeEventBody("payment_intent.succeeded")

	_, err := s.Verify(signedRequest(body, signStripePayload("whsec_other", body)), body)
	require.ErrorIs(t, err, provider.ErrInvalidSignature)
}

func TestStripeVerifySkipsUnrelatedEvents(t *testing.T) {
	s := provider.Stripe{SigningSecret: signingSecret, Log: zerolog.Nop()}
	body := stripeEventBody("charge.refunded")

	_, err := s.Verify(signedRequest(body, signStripePayload(signingSecret, body)), body)
	require.ErrorIs(t, err, provider.ErrSkipEvent)
}

func TestStripeNormalize(t *testing.T) {
	s := provider.Stripe{}
	in, err := s.Normalize(provider.Event{
		Provider: reconcile.ProviderCard,
		Metadata: map[string]string{
			"payer_id":            "u1",
			"item_id":             "i9",
			"amount":              "37.50",
			"supplemental_amount": "5.00",
			"agency_name":         "HopeAgency",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "u1", in.PayerUserID)
	require.Equal(t, "i9", in.ItemID)
	require.Equal(t, "HopeAgency", in.BeneficiaryAgencyName)
	require.True(t, in.DonationAmount.Equal(decimal.RequireFromString("37.50")))
	require.True(t, in.SupplementalAmount.Equal(decimal.RequireFromString("5.00")))
	require.NoError(t, in.Validate())
}

func TestStripeNormalizeMissingMetadata(t *testing.T) {
	s := provider.Stripe{}
	_, err := s.Normalize(provider.Event{Metadata: map[string]string{"payer_id": "u1"}})
	require.Error(t, err)
}

func TestStripeNormalizeDefaultsSupplemental(t *testing.T) {
	s := provider.Stripe{}
	in, err := s.Normalize(provider.Event{
		Metadata: map[string]string{
			"payer_id":    "u1",
			"item_id":     "i9",
			"amount":      "32.50",
			"agency_name": "HopeAgency",
		},
	})
	require.NoError(t, err)
	require.True(t, in.SupplementalAmount.IsZero())
}
