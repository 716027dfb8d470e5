package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a test-friendly store keeping all records in process memory.
type Memory struct {
	mu        sync.RWMutex
	items     map[string]Item
	users     map[string]User
	agencies  map[string]Agency
	donations []Donation
}

var _ Items = (*Memory)(nil)
var _ Users = (*Memory)(nil)
var _ Agencies = (*Memory)(nil)
var _ Donations = (*Memory)(nil)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:    map[string]Item{},
		users:    map[string]User{},
		agencies: map[string]Agency{},
	}
}

// AddItem seeds an item, generating an internal id when absent.
func (m *Memory) AddItem(item Item) Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = ItemStatusAvailable
	}
	m.items[item.ExternalID] = item
	return item
}

// AddUser seeds a donor account.
func (m *Memory) AddUser(u User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ExternalID] = u
	return u
}

// AddAgency seeds a beneficiary agency.
func (m *Memory) AddAgency(a Agency) Agency {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.agencies[a.Name] = a
	return a
}

// GetItem implements Items.
func (m *Memory) GetItem(_ context.Context, externalID string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[externalID]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// UpdateItemStatus implements Items.
func (m *Memory) UpdateItemStatus(_ context.Context, externalID string, status ItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[externalID]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	m.items[externalID] = item
	return nil
}

// GetUser implements Users.
func (m *Memory) GetUser(_ context.Context, externalID string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[externalID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// GetUserByEmail implements Users.
func (m *Memory) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if strings.ToLower(u.Email) == needle {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// GetAgency implements Agencies.
func (m *Memory) GetAgency(_ context.Context, name string) (Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agencies[strings.TrimSpace(name)]
	if !ok {
		return Agency{}, ErrNotFound
	}
	return a, nil
}

// CreateDonation implements Donations.
func (m *Memory) CreateDonation(_ context.Context, d Donation) (Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	m.donations = append(m.donations, d)
	return d, nil
}

// DonationCount reports how many donations have been recorded.
func (m *Memory) DonationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.donations)
}

// AllDonations returns a copy of the recorded donations.
func (m *Memory) AllDonations() []Donation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Donation, len(m.donations))
	copy(out, m.donations)
	return out
}
