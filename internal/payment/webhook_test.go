package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kindbridge/backend-giving/internal/notify"
	"github.com/kindbridge/backend-giving/internal/payment"
	"github.com/kindbridge/backend-giving/internal/provider"
	"github.com/kindbridge/backend-giving/internal/reconcile"
	"github.com/kindbridge/backend-giving/internal/store"
)

const webhookSecret = "whsec_test_secret"

type webhookFixture struct {
	handler payment.Webhook
	store   *store.Memory
	mail    *notify.InMemoryEmail
}

func buildFixture(t *testing.T, providers ...provider.WebhookProvider) webhookFixture {
	t.Helper()
	mem := store.NewMemory()
	mem.AddAgency(store.Agency{Name: "HopeAgency", Email: "contact@hopeagency.org"})
	mem.AddUser(store.User{ExternalID: "u1", Name: "Ana Kovac", Email: "ana@example.com"})
	mem.AddItem(store.Item{ExternalID: "i9", Name: "Winter jacket", Price: decimal.RequireFromString("32.50"), Currency: "eur"})

	mail := &notify.InMemoryEmail{}
	orchestrator := &reconcile.Orchestrator{
		Items:     mem,
		Users:     mem,
		Agencies:  mem,
		Donations: mem,
		Gate:      reconcile.NewMemoryGate(),
		Fanout:    &notify.Fanout{Mail: mail, Announce: &notify.InMemoryAnnouncer{}, Log: zerolog.Nop()},
		Log:       zerolog.Nop(),
	}
	handler := payment.Webhook{
		Providers:    providers,
		Orchestrator: orchestrator,
		Log:          zerolog.Nop(),
	}
	return webhookFixture{handler: handler, store: mem, mail: mail}
}

func newWebhookFixture(t *testing.T) webhookFixture {
	t.Helper()
	return buildFixture(t, provider.Stripe{SigningSecret: webhookSecret, Log: zerolog.Nop()})
}

// paypalStub serves the token and verify endpoints the wallet verifier
// calls out to.
func paypalStub(t *testing.T, verificationStatus string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": verificationStatus})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newDualProviderFixture(t *testing.T, paypalURL string) webhookFixture {
	t.Helper()
	wallet := provider.NewPayPal(paypalURL, "client-id", "client-secret", "webhook-1", zerolog.Nop())
	return buildFixture(t,
		provider.Stripe{SigningSecret: webhookSecret, Log: zerolog.Nop()},
		wallet,
	)
}

func approvedOrderEvent() []byte {
	return []byte(`{
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource": {
			"purchase_units": [{
				"custom_id": "u1%i9%5.00%HopeAgency",
				"amount": {"currency_code": "EUR", "value": "37.50"}
			}]
		}
	}`)
}

func succeededEvent() []byte {
	return []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
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
	}`)
}

func sign(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliver(t *testing.T, h payment.Webhook, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func requireAck(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp["received"])
}

func TestWebhookCommitsDonation(t *testing.T) {
	fx := newWebhookFixture(t)
	body := succeededEvent()

	rr := deliver(t, fx.handler, body, sign(webhookSecret, body))
	requireAck(t, rr)

	require.Equal(t, 1, fx.store.DonationCount())
	donation := fx.store.AllDonations()[0]
	require.True(t, donation.Amount.Equal(decimal.RequireFromString("37.50")))
	require.True(t, donation.Supplemental.Equal(decimal.RequireFromString("5.00")))
	require.Len(t, fx.mail.Outbox(), 2)
}

func TestWebhookDuplicateDeliveryCommitsOnce(t *testing.T) {
	fx := newWebhookFixture(t)
	body := succeededEvent()

	requireAck(t, deliver(t, fx.handler, body, sign(webhookSecret, body)))
	requireAck(t, deliver(t, fx.handler, body, sign(webhookSecret, body)))

	require.Equal(t, 1, fx.store.DonationCount())
	require.Len(t, fx.mail.Outbox(), 2)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fx := newWebhookFixture(t)
	body := succeededEvent()

	rr := deliver(t, fx.handler, body, sign("whsec_wrong", body))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Nothing was mutated.
	require.Equal(t, 0, fx.store.DonationCount())
	item, err := fx.store.GetItem(context.Background(), "i9")
	require.NoError(t, err)
	require.Equal(t, store.ItemStatusAvailable, item.Status)
	require.Empty(t, fx.mail.Outbox())
}

func TestWebhookAcksUnrecognisedDelivery(t *testing.T) {
	fx := newWebhookFixture(t)

	rr := deliver(t, fx.handler, []byte(`{"hello":"world"}`), "")
	requireAck(t, rr)
	require.Equal(t, 0, fx.store.DonationCount())
}

func TestWebhookAcksUnrelatedEventType(t *testing.T) {
	fx := newWebhookFixture(t)
	body := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{}}}`)

	rr := deliver(t, fx.handler, body, sign(webhookSecret, body))
	requireAck(t, rr)
	require.Equal(t, 0, fx.store.DonationCount())
}

func TestWebhookAcksCommitFailure(t *testing.T) {
	fx := newWebhookFixture(t)
	body := []byte(`{
		"id": "evt_3",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_3",
				"object": "payment_intent",
				"amount": 1000,
				"metadata": {
					"payer_id": "u1",
					"item_id": "unknown-item",
					"amount": "10.00",
					"agency_name": "HopeAgency"
				}
			}
		}
	}`)

	rr := deliver(t, fx.handler, body, sign(webhookSecret, body))
	requireAck(t, rr)
	require.Equal(t, 0, fx.store.DonationCount())
}

func TestWebhookWalletCommitsDonation(t *testing.T) {
	srv := paypalStub(t, "SUCCESS")
	fx := newDualProviderFixture(t, srv.URL)

	rr := deliver(t, fx.handler, approvedOrderEvent(), "")
	requireAck(t, rr)

	require.Equal(t, 1, fx.store.DonationCount())
	donation := fx.store.AllDonations()[0]
	require.Equal(t, "wallet", donation.Provider)
	require.True(t, donation.Amount.Equal(decimal.RequireFromString("37.50")))
	require.True(t, donation.Supplemental.Equal(decimal.RequireFromString("5.00")))

	item, err := fx.store.GetItem(context.Background(), "i9")
	require.NoError(t, err)
	require.Equal(t, store.ItemStatusDonated, item.Status)
}

func TestWebhookWalletVerificationRejected(t *testing.T) {
	srv := paypalStub(t, "FAILURE")
	fx := newDualProviderFixture(t, srv.URL)

	rr := deliver(t, fx.handler, approvedOrderEvent(), "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "VERIFICATION_FAILED")

	require.Equal(t, 0, fx.store.DonationCount())
	item, err := fx.store.GetItem(context.Background(), "i9")
	require.NoError(t, err)
	require.Equal(t, store.ItemStatusAvailable, item.Status)
	require.Empty(t, fx.mail.Outbox())
}

func TestWebhookWalletVerifyEndpointUnreachable(t *testing.T) {
	srv := paypalStub(t, "SUCCESS")
	fx := newDualProviderFixture(t, srv.URL)
	srv.Close()

	rr := deliver(t, fx.handler, approvedOrderEvent(), "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, 0, fx.store.DonationCount())
}

func TestWebhookCardSignalTakesPrecedence(t *testing.T) {
	srv := paypalStub(t, "SUCCESS")
	fx := newDualProviderFixture(t, srv.URL)

	// A signed card event routes to the card provider even though the
	// wallet provider is registered.
	body := succeededEvent()
	requireAck(t, deliver(t, fx.handler, body, sign(webhookSecret, body)))
	require.Equal(t, 1, fx.store.DonationCount())
	require.Equal(t, "card", fx.store.AllDonations()[0].Provider)

	// A wallet payload carrying a signature header is claimed by the card
	// provider first, so a bogus signature is rejected outright.
	rr := deliver(t, fx.handler, approvedOrderEvent(), "t=1,v1=bogus")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, 1, fx.store.DonationCount())
}
