// Package reconcile implements the payment-completion reconciliation core:
// the canonical donation intent, the dedup gate and the commit orchestrator.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider identifies which payment processor delivered a completion event.
type Provider string

const (
	ProviderCard   Provider = "card"
	ProviderWallet Provider = "wallet"
)

// Intent is the canonical, provider-agnostic description of a completed
// payment's purpose. It is built per request and never shared across
// concurrent pipeline invocations.
type Intent struct {
	Provider              Provider
	PayerUserID           string
	ItemID                string
	DonationAmount        decimal.Decimal
	SupplementalAmount    decimal.Decimal
	BeneficiaryAgencyName string
}

// Validate checks the intent invariants before any commit is attempted.
// DonationAmount is the authoritative charged total.
func (in Intent) Validate() error {
	switch in.Provider {
	case ProviderCard, ProviderWallet:
	default:
		return fmt.Errorf("unknown provider %q", in.Provider)
	}
	if strings.TrimSpace(in.PayerUserID) == "" {
		return errors.New("payer user id is required")
	}
	if strings.TrimSpace(in.ItemID) == "" {
		return errors.New("item id is required")
	}
	if strings.TrimSpace(in.BeneficiaryAgencyName) == "" {
		return errors.New("beneficiary agency name is required")
	}
	if !in.DonationAmount.IsPositive() {
		return fmt.Errorf("donation amount must be positive, got %s", in.DonationAmount)
	}
	if in.SupplementalAmount.IsNegative() {
		return fmt.Errorf("supplemental amount must not be negative, got %s", in.SupplementalAmount)
	}
	return nil
}
