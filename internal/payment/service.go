// Package payment exposes the HTTP surface of the donation service: intent
// creation, the provider webhook endpoint and the human-facing success view.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/kindbridge/backend-giving/internal/common"
	"github.com/kindbridge/backend-giving/internal/obs"
	"github.com/kindbridge/backend-giving/internal/provider"
	"github.com/kindbridge/backend-giving/internal/store"
)

// IntentCreator opens a charge with the card processor.
type IntentCreator interface {
	CreateIntent(ctx context.Context, p provider.IntentParams) (string, error)
}

// CreateIntentInput is the request payload for opening a donation charge.
type CreateIntentInput struct {
	ItemID             string      `json:"itemId" validate:"required"`
	Email              string      `json:"email" validate:"required,email"`
	AgencyName         string      `json:"agencyName" validate:"required"`
	SupplementalAmount json.Number `json:"supplementalAmount"`
}

// Service resolves a donation request against the stores and opens the
// charge with the intent metadata stamped for later reconciliation.
type Service struct {
	Items    store.Items
	Users    store.Users
	Agencies store.Agencies
	Intents  IntentCreator
	Currency string
	Log      zerolog.Logger
}

// CreateIntent validates and resolves the request, then opens a payment
// intent for item price plus supplemental amount. The returned string is the
// client secret the checkout UI confirms against.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (string, error) {
	ctx, span := otel.Tracer("payment").Start(ctx, "payment.create_intent")
	defer span.End()

	supplemental := decimal.Zero
	if raw := strings.TrimSpace(in.SupplementalAmount.String()); raw != "" {
		var err error
		supplemental, err = decimal.NewFromString(raw)
		if err != nil {
			return "", common.NewAppError("VALIDATION_ERROR", "supplementalAmount must be a decimal number", http.StatusBadRequest, err)
		}
	}
	if supplemental.IsNegative() {
		return "", common.NewAppError("VALIDATION_ERROR", "supplementalAmount must not be negative", http.StatusBadRequest, nil)
	}

	item, err := s.Items.GetItem(ctx, in.ItemID)
	if err != nil {
		return "", resolveErr("item", err)
	}
	if item.Status == store.ItemStatusDonated {
		return "", common.NewAppError("ITEM_ALREADY_DONATED", "item has already been donated", http.StatusConflict, nil)
	}
	payer, err := s.Users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return "", resolveErr("user", err)
	}
	agency, err := s.Agencies.GetAgency(ctx, in.AgencyName)
	if err != nil {
		return "", resolveErr("agency", err)
	}

	total := item.Price.Add(supplemental)
	minor := total.Shift(2).Round(0).IntPart()

	secret, err := s.Intents.CreateIntent(ctx, provider.IntentParams{
		AmountMinor:  minor,
		Currency:     s.Currency,
		ReceiptEmail: payer.Email,
		Metadata: map[string]string{
			provider.MetaPayerID:      payer.ExternalID,
			provider.MetaItemID:       item.ExternalID,
			provider.MetaAmount:       total.StringFixed(2),
			provider.MetaSupplemental: supplemental.StringFixed(2),
			provider.MetaAgencyName:   agency.Name,
		},
	})
	if err != nil {
		if obs.IntentTotal != nil {
			obs.IntentTotal.WithLabelValues("error").Inc()
		}
		return "", fmt.Errorf("open payment intent: %w", err)
	}
	if obs.IntentTotal != nil {
		obs.IntentTotal.WithLabelValues("ok").Inc()
	}
	s.Log.Info().
		Str("item_id", item.ExternalID).
		Str("payer_id", payer.ExternalID).
		Str("amount", total.StringFixed(2)).
		Msg("payment intent created")
	return secret, nil
}

func resolveErr(entity string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return common.NotFoundError(entity)
	}
	return err
}
