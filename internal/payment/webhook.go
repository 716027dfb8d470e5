package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kindbridge/backend-giving/internal/common"
	"github.com/kindbridge/backend-giving/internal/obs"
	"github.com/kindbridge/backend-giving/internal/provider"
	"github.com/kindbridge/backend-giving/internal/reconcile"
)

// Webhook handles payment completion callbacks from all configured
// providers on a single route.
type Webhook struct {
	Providers    []provider.WebhookProvider
	Orchestrator *reconcile.Orchestrator
	Log          zerolog.Logger
}

// Handle processes one provider delivery through the reconciliation
// pipeline: match, verify, normalize, commit. Deliveries are acknowledged
// with 200 {received:true} in every case except a card signature failure
// (400) and a wallet verification failure (500); providers must never be
// driven into retry storms by downstream issues.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}

	var p provider.WebhookProvider
	for _, candidate := range h.Providers {
		if candidate.Match(r, body) {
			p = candidate
			break
		}
	}
	if p == nil {
		// No provider signal; acknowledge and move on.
		h.ack(w)
		return
	}
	name := string(p.Name())

	ev, err := p.Verify(r, body)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidSignature):
			h.count(name, "invalid_signature")
			common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", err.Error(), nil)
		case errors.Is(err, provider.ErrVerification):
			h.count(name, "verification_failed")
			h.Log.Error().Err(err).Str("provider", name).Msg("webhook verification failed")
			common.JSONError(w, http.StatusInternalServerError, "VERIFICATION_FAILED", "webhook could not be verified", nil)
		case errors.Is(err, provider.ErrSkipEvent):
			h.count(name, "skipped_event")
			h.ack(w)
		default:
			h.count(name, "malformed")
			h.Log.Warn().Err(err).Str("provider", name).Msg("webhook payload rejected")
			h.ack(w)
		}
		return
	}

	intent, err := p.Normalize(ev)
	if err != nil {
		h.count(name, "malformed")
		h.Log.Warn().Err(err).Str("provider", name).Msg("webhook normalization failed")
		h.ack(w)
		return
	}

	out := h.Orchestrator.Commit(r.Context(), intent)
	switch out.Status {
	case reconcile.StatusCommitted:
		h.count(name, "committed")
	case reconcile.StatusSkipped:
		h.count(name, "duplicate")
	case reconcile.StatusFailed:
		h.count(name, "failed")
		h.Log.Error().Err(out.Err).
			Str("provider", name).
			Str("reason", out.Reason).
			Str("item_id", intent.ItemID).
			Msg("donation commit failed")
	}
	h.ack(w)
}

func (h Webhook) ack(w http.ResponseWriter) {
	common.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h Webhook) count(providerName, result string) {
	if obs.WebhookTotal != nil {
		obs.WebhookTotal.WithLabelValues(providerName, result).Inc()
	}
}
