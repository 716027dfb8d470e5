package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kindbridge/backend-giving/internal/notify"
	"github.com/kindbridge/backend-giving/internal/obs"
	"github.com/kindbridge/backend-giving/internal/store"
)

// Status classifies the result of a commit attempt.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome reports what the orchestrator did with an intent. Notification
// results are advisory; a Committed outcome stands even when every channel
// failed.
type Outcome struct {
	Status        Status
	Reason        string
	Err           error
	Donation      *store.Donation
	Notifications []notify.Result
}

// Orchestrator is the single component allowed to mutate donation state.
// It resolves the intent against the stores, marks the item donated,
// persists the donation record and fans out notifications.
type Orchestrator struct {
	Items     store.Items
	Users     store.Users
	Agencies  store.Agencies
	Donations store.Donations
	Gate      Gate
	Fanout    *notify.Fanout
	Log       zerolog.Logger
}

// Commit runs the full settlement sequence for a validated intent.
// Once the item is marked donated there is no compensating rollback;
// a failure after that point is logged and surfaced, not undone.
func (o *Orchestrator) Commit(ctx context.Context, in Intent) Outcome {
	ctx, span := otel.Tracer("reconcile").Start(ctx, "reconcile.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("donation.provider", string(in.Provider)),
		attribute.String("donation.item_id", in.ItemID),
	)

	if err := in.Validate(); err != nil {
		return Outcome{Status: StatusFailed, Reason: "invalid intent", Err: err}
	}

	claimed, err := o.Gate.Claim(ctx, in.Provider, in.ItemID)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: "dedup gate unavailable", Err: err}
	}
	if !claimed {
		if obs.DedupSkipTotal != nil {
			obs.DedupSkipTotal.WithLabelValues(string(in.Provider)).Inc()
		}
		o.Log.Info().
			Str("provider", string(in.Provider)).
			Str("item_id", in.ItemID).
			Msg("duplicate delivery skipped")
		return Outcome{Status: StatusSkipped, Reason: "duplicate"}
	}

	out := o.commit(ctx, in)
	if out.Status == StatusFailed {
		// Free the claim so a provider redelivery can retry after a
		// transient failure.
		if relErr := o.Gate.Release(ctx, in.Provider, in.ItemID); relErr != nil {
			o.Log.Error().Err(relErr).
				Str("item_id", in.ItemID).
				Msg("failed to release dedup claim")
		}
	}
	return out
}

func (o *Orchestrator) commit(ctx context.Context, in Intent) Outcome {
	payer, err := o.Users.GetUser(ctx, in.PayerUserID)
	if err != nil {
		return resolveFailure("user", err)
	}
	item, err := o.Items.GetItem(ctx, in.ItemID)
	if err != nil {
		return resolveFailure("item", err)
	}
	agency, err := o.Agencies.GetAgency(ctx, in.BeneficiaryAgencyName)
	if err != nil {
		return resolveFailure("agency", err)
	}

	if err := o.Items.UpdateItemStatus(ctx, item.ExternalID, store.ItemStatusDonated); err != nil {
		return Outcome{Status: StatusFailed, Reason: "mark item donated", Err: err}
	}

	donation, err := o.Donations.CreateDonation(ctx, store.Donation{
		PayerID:      payer.ID,
		ItemID:       item.ID,
		AgencyID:     agency.ID,
		Provider:     string(in.Provider),
		Amount:       in.DonationAmount,
		Supplemental: in.SupplementalAmount,
		Currency:     item.Currency,
	})
	if err != nil {
		// The item is already marked donated; surface the persistence
		// failure without attempting a rollback.
		o.Log.Error().Err(err).
			Str("item_id", item.ID).
			Msg("donation persist failed after item marked donated")
		return Outcome{Status: StatusFailed, Reason: "persist donation", Err: err}
	}

	results := o.Fanout.Dispatch(ctx, notify.Event{
		DonationID:   donation.ID,
		PayerName:    payer.Name,
		PayerEmail:   payer.Email,
		ItemName:     item.Name,
		ItemID:       item.ExternalID,
		AgencyName:   agency.Name,
		AgencyEmail:  agency.Email,
		Amount:       donation.Amount,
		Supplemental: donation.Supplemental,
		Currency:     donation.Currency,
		OccurredAt:   time.Now().UTC(),
	})

	o.Log.Info().
		Str("donation_id", donation.ID).
		Str("provider", string(in.Provider)).
		Str("item_id", item.ExternalID).
		Str("amount", donation.Amount.StringFixed(2)).
		Msg("donation committed")

	return Outcome{Status: StatusCommitted, Donation: &donation, Notifications: results}
}

func resolveFailure(entity string, err error) Outcome {
	reason := fmt.Sprintf("NotFound: %s", entity)
	if !errors.Is(err, store.ErrNotFound) {
		reason = fmt.Sprintf("resolve %s", entity)
	}
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}
