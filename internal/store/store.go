// Package store provides access to the domain records the reconciliation
// pipeline resolves and mutates: donatable items, donor accounts,
// beneficiary agencies and committed donations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a record cannot be resolved by its identifier.
var ErrNotFound = errors.New("store: not found")

// ItemStatus tracks the donation lifecycle of an item.
type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusDonated   ItemStatus = "donated"
)

// Item is a donatable item listed on behalf of an agency.
type Item struct {
	ID         string
	ExternalID string
	Name       string
	Price      decimal.Decimal
	Currency   string
	Status     ItemStatus
	AgencyID   string
}

// User is a donor account.
type User struct {
	ID         string
	ExternalID string
	Name       string
	Email      string
}

// Agency is a beneficiary organisation.
type Agency struct {
	ID    string
	Name  string
	Email string
}

// Donation links a payer to a donated item and its beneficiary agency.
type Donation struct {
	ID           string
	PayerID      string
	ItemID       string
	AgencyID     string
	Provider     string
	Amount       decimal.Decimal
	Supplemental decimal.Decimal
	Currency     string
	CreatedAt    time.Time
}

// Items resolves and mutates donatable items.
type Items interface {
	GetItem(ctx context.Context, externalID string) (Item, error)
	UpdateItemStatus(ctx context.Context, externalID string, status ItemStatus) error
}

// Users resolves donor accounts.
type Users interface {
	GetUser(ctx context.Context, externalID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// Agencies resolves beneficiary agencies.
type Agencies interface {
	GetAgency(ctx context.Context, name string) (Agency, error)
}

// Donations persists committed donation records.
type Donations interface {
	CreateDonation(ctx context.Context, d Donation) (Donation, error)
}
