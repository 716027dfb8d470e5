package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres implements the store interfaces on a pgx connection pool.
// Monetary amounts are persisted as minor units (cents).
type Postgres struct {
	Pool *pgxpool.Pool
}

var _ Items = (*Postgres)(nil)
var _ Users = (*Postgres)(nil)
var _ Agencies = (*Postgres)(nil)
var _ Donations = (*Postgres)(nil)

// GetItem resolves an item by its external identifier.
func (p *Postgres) GetItem(ctx context.Context, externalID string) (Item, error) {
	const q = `SELECT id, external_id, name, price_cents, currency, status, agency_id
FROM items WHERE external_id = $1`
	var (
		item       Item
		priceCents int64
	)
	err := p.Pool.QueryRow(ctx, q, externalID).Scan(
		&item.ID, &item.ExternalID, &item.Name, &priceCents, &item.Currency, &item.Status, &item.AgencyID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	item.Price = fromCents(priceCents)
	return item, nil
}

// UpdateItemStatus transitions an item's donation status.
func (p *Postgres) UpdateItemStatus(ctx context.Context, externalID string, status ItemStatus) error {
	const q = `UPDATE items SET status = $2, updated_at = now() WHERE external_id = $1`
	tag, err := p.Pool.Exec(ctx, q, externalID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser resolves a donor by external identifier.
func (p *Postgres) GetUser(ctx context.Context, externalID string) (User, error) {
	const q = `SELECT id, external_id, name, email FROM users WHERE external_id = $1`
	var u User
	err := p.Pool.QueryRow(ctx, q, externalID).Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByEmail resolves a donor by email, case-insensitively.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const q = `SELECT id, external_id, name, email FROM users WHERE lower(email) = lower($1)`
	var u User
	err := p.Pool.QueryRow(ctx, q, strings.TrimSpace(email)).Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetAgency resolves an agency by its display name.
func (p *Postgres) GetAgency(ctx context.Context, name string) (Agency, error) {
	const q = `SELECT id, name, email FROM agencies WHERE name = $1`
	var a Agency
	err := p.Pool.QueryRow(ctx, q, strings.TrimSpace(name)).Scan(&a.ID, &a.Name, &a.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agency{}, ErrNotFound
		}
		return Agency{}, err
	}
	return a, nil
}

// CreateDonation persists a donation record.
func (p *Postgres) CreateDonation(ctx context.Context, d Donation) (Donation, error) {
	const q = `INSERT INTO donations (id, payer_id, item_id, agency_id, provider, amount_cents, supplemental_cents, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	err := p.Pool.QueryRow(ctx, q,
		d.ID, d.PayerID, d.ItemID, d.AgencyID, d.Provider,
		toCents(d.Amount), toCents(d.Supplemental), d.Currency, d.CreatedAt,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return Donation{}, err
	}
	return d, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
