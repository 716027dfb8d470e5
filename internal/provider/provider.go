// Package provider adapts heterogeneous payment processor webhooks into the
// canonical donation intent. Each processor implements WebhookProvider; the
// webhook handler probes Match in order and hands the request to the first
// provider that claims it.
package provider

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kindbridge/backend-giving/internal/reconcile"
)

var (
	// ErrInvalidSignature marks a card-path signature check failure. The
	// delivery must be rejected with a 4xx and nothing may be mutated.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrVerification marks a wallet-path verification failure (the
	// provider's verify endpoint rejected or could not be reached).
	ErrVerification = errors.New("webhook verification failed")
	// ErrSkipEvent marks a verified delivery that carries no donation to
	// commit (unrelated event type). The webhook is acknowledged quietly.
	ErrSkipEvent = errors.New("event carries no donation")
)

// Event is the verified, provider-shaped payload before normalization.
type Event struct {
	Provider reconcile.Provider
	Type     string
	// Metadata is the card processor's key-value bag stamped at intent
	// creation time.
	Metadata map[string]string
	// CompositeRef is the wallet processor's positional reference string.
	CompositeRef string
	// Amount is the charged total as reported by the processor.
	Amount decimal.Decimal
}

// WebhookProvider is one processor's verify-and-normalize capability.
type WebhookProvider interface {
	Name() reconcile.Provider
	// Match reports whether this delivery carries the provider's signal
	// (signature header or event type). No verification happens here.
	Match(r *http.Request, body []byte) bool
	// Verify authenticates the delivery and extracts the raw event.
	Verify(r *http.Request, body []byte) (Event, error)
	// Normalize builds the canonical intent from a verified event.
	Normalize(ev Event) (reconcile.Intent, error)
}
