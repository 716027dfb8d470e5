// Package notify implements the best-effort notification fan-out that follows
// a committed donation: payer confirmation, agency confirmation and a public
// announcement, each attempted at most once and in isolation.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kindbridge/backend-giving/internal/obs"
)

// Channel identifies one notification target.
type Channel string

const (
	ChannelPayerConfirmation  Channel = "payer_confirmation"
	ChannelAgencyConfirmation Channel = "agency_confirmation"
	ChannelPublicAnnouncement Channel = "public_announcement"
)

// Result is the outcome of a single channel dispatch.
type Result struct {
	Channel Channel
	Err     error
}

// OK reports whether the dispatch succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Event carries the committed donation and its resolved entities.
type Event struct {
	DonationID   string
	PayerName    string
	PayerEmail   string
	ItemName     string
	ItemID       string
	AgencyName   string
	AgencyEmail  string
	Amount       decimal.Decimal
	Supplemental decimal.Decimal
	Currency     string
	OccurredAt   time.Time
}

// Fanout dispatches the three notification channels for a committed donation.
type Fanout struct {
	Mail     EmailSender
	Announce Announcer
	Log      zerolog.Logger
}

// Dispatch attempts every channel exactly once and returns a per-channel
// result list. A failing channel never prevents the remaining ones.
func (f *Fanout) Dispatch(ctx context.Context, ev Event) []Result {
	results := make([]Result, 0, 3)
	results = append(results, f.attempt(ChannelPayerConfirmation, func() error {
		return f.Mail.Send(ev.PayerEmail, payerSubject(ev), payerBody(ev))
	}))
	results = append(results, f.attempt(ChannelAgencyConfirmation, func() error {
		return f.Mail.Send(ev.AgencyEmail, agencySubject(ev), agencyBody(ev))
	}))
	results = append(results, f.attempt(ChannelPublicAnnouncement, func() error {
		return f.Announce.Announce(ctx, Announcement{
			DonationID: ev.DonationID,
			ItemName:   ev.ItemName,
			AgencyName: ev.AgencyName,
			Amount:     ev.Amount.StringFixed(2),
			Currency:   ev.Currency,
			OccurredAt: ev.OccurredAt,
		})
	}))
	return results
}

func (f *Fanout) attempt(ch Channel, send func() error) Result {
	err := send()
	result := "ok"
	if err != nil {
		result = "error"
		f.Log.Error().Err(err).Str("channel", string(ch)).Msg("notification dispatch failed")
	}
	if obs.NotificationTotal != nil {
		obs.NotificationTotal.WithLabelValues(string(ch), result).Inc()
	}
	return Result{Channel: ch, Err: err}
}

func payerSubject(ev Event) string {
	return fmt.Sprintf("Thank you for donating %s", ev.ItemName)
}

func payerBody(ev Event) string {
	return fmt.Sprintf(
		"Dear %s,\n\nyour donation of %s %s for %q has been received.\n%s will be notified right away.\n\nThank you for your generosity!",
		ev.PayerName, ev.Amount.StringFixed(2), ev.Currency, ev.ItemName, ev.AgencyName,
	)
}

func agencySubject(ev Event) string {
	return fmt.Sprintf("%s has been donated", ev.ItemName)
}

func agencyBody(ev Event) string {
	return fmt.Sprintf(
		"%q on your wishlist has been donated by %s (%s).\nCharged amount: %s %s (includes %s %s supplemental).\nDonation reference: %s",
		ev.ItemName, ev.PayerName, ev.PayerEmail,
		ev.Amount.StringFixed(2), ev.Currency,
		ev.Supplemental.StringFixed(2), ev.Currency,
		ev.DonationID,
	)
}
