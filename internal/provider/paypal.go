package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kindbridge/backend-giving/internal/reconcile"
)

const (
	paypalEventApproved = "CHECKOUT.ORDER.APPROVED"
	// compositeParts is payerId%itemId%supplementalAmount%agencyName.
	compositeParts = 4
	compositeSep   = "%"
)

// PayPal is the wallet processor integration. Deliveries are matched by
// event type and authenticated with a callback to PayPal's
// verify-webhook-signature endpoint. The donation intent rides in the
// purchase unit's custom_id as a positional composite reference.
type PayPal struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	Client       *http.Client
	Log          zerolog.Logger
}

// NewPayPal constructs the wallet verifier with an instrumented HTTP client.
func NewPayPal(baseURL, clientID, clientSecret, webhookID string, log zerolog.Logger) *PayPal {
	return &PayPal{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		WebhookID:    webhookID,
		Client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Log: log,
	}
}

// Name implements WebhookProvider.
func (*PayPal) Name() reconcile.Provider { return reconcile.ProviderWallet }

type walletEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
			Amount   struct {
				CurrencyCode string `json:"currency_code"`
				Value        string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

// Match implements WebhookProvider. The wallet path engages only on order
// approval events; everything else falls through to the next provider.
func (*PayPal) Match(_ *http.Request, body []byte) bool {
	var probe struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.EventType == paypalEventApproved
}

// Verify implements WebhookProvider. It exchanges client credentials for an
// access token and asks PayPal to confirm the delivery's transmission
// headers against the registered webhook.
func (p *PayPal) Verify(r *http.Request, body []byte) (Event, error) {
	ctx := r.Context()

	token, err := p.accessToken(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	verifyReq := map[string]any{
		"auth_algo":         r.Header.Get("Paypal-Auth-Algo"),
		"cert_url":          r.Header.Get("Paypal-Cert-Url"),
		"transmission_id":   r.Header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  r.Header.Get("Paypal-Transmission-Sig"),
		"transmission_time": r.Header.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}
	payload, err := json.Marshal(verifyReq)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(payload))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Event{}, fmt.Errorf("%w: verify endpoint returned %d", ErrVerification, resp.StatusCode)
	}
	var verdict struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if verdict.VerificationStatus != "SUCCESS" {
		return Event{}, fmt.Errorf("%w: verification status %q", ErrVerification, verdict.VerificationStatus)
	}

	var ev walletEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode wallet event: %w", err)
	}
	if ev.EventType != paypalEventApproved {
		return Event{}, ErrSkipEvent
	}
	if len(ev.Resource.PurchaseUnits) == 0 {
		return Event{}, fmt.Errorf("wallet event has no purchase units")
	}
	unit := ev.Resource.PurchaseUnits[0]
	// The charged amount comes from the purchase unit's own amount field,
	// never from the composite reference.
	amount, err := decimal.NewFromString(unit.Amount.Value)
	if err != nil {
		return Event{}, fmt.Errorf("purchase unit amount %q: %w", unit.Amount.Value, err)
	}

	return Event{
		Provider:     reconcile.ProviderWallet,
		Type:         ev.EventType,
		CompositeRef: unit.CustomID,
		Amount:       amount,
	}, nil
}

// Normalize implements WebhookProvider. The composite reference decodes
// positionally; the supplemental amount is carried inside it while the
// charged total comes from the event's amount.
func (*PayPal) Normalize(ev Event) (reconcile.Intent, error) {
	parts := strings.Split(ev.CompositeRef, compositeSep)
	if len(parts) != compositeParts {
		return reconcile.Intent{}, fmt.Errorf("composite reference %q: want %d segments, got %d",
			ev.CompositeRef, compositeParts, len(parts))
	}
	supplemental, err := decimal.NewFromString(parts[2])
	if err != nil {
		return reconcile.Intent{}, fmt.Errorf("composite supplemental amount %q: %w", parts[2], err)
	}

	return reconcile.Intent{
		Provider:              reconcile.ProviderWallet,
		PayerUserID:           parts[0],
		ItemID:                parts[1],
		DonationAmount:        ev.Amount,
		SupplementalAmount:    supplemental,
		BeneficiaryAgencyName: parts[3],
	}, nil
}

func (p *PayPal) httpClient() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.ClientID, p.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return out.AccessToken, nil
}
