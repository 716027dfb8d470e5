package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Announcement is the public record of a committed donation. It deliberately
// carries no payer-identifying fields.
type Announcement struct {
	DonationID string    `json:"donationId"`
	ItemName   string    `json:"itemName"`
	AgencyName string    `json:"agencyName"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Announcer publishes donation announcements to the public feed.
type Announcer interface {
	Announce(ctx context.Context, a Announcement) error
}

// KafkaAnnouncer publishes announcements to a Kafka topic.
type KafkaAnnouncer struct {
	writer *kafka.Writer
}

// NewKafkaAnnouncer builds an announcer for the given brokers and topic.
// SCRAM-SHA-256 over TLS is used when credentials are provided.
func NewKafkaAnnouncer(brokers []string, topic, username, password string) (*KafkaAnnouncer, error) {
	dialer := kafka.DefaultDialer
	if username != "" || password != "" {
		mechanism, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, err
		}
		dialer = &kafka.Dialer{
			SASLMechanism: mechanism,
			TLS:           &tls.Config{},
		}
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:   brokers,
		Topic:     topic,
		Dialer:    dialer,
		BatchSize: 1,
	})
	return &KafkaAnnouncer{writer: writer}, nil
}

// Announce implements Announcer.
func (k *KafkaAnnouncer) Announce(ctx context.Context, a Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.DonationID),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (k *KafkaAnnouncer) Close() error {
	return k.writer.Close()
}

// LogAnnouncer writes announcements to the log when no broker is configured.
type LogAnnouncer struct {
	Log zerolog.Logger
}

// Announce implements Announcer.
func (l LogAnnouncer) Announce(_ context.Context, a Announcement) error {
	l.Log.Info().
		Str("donation_id", a.DonationID).
		Str("item", a.ItemName).
		Str("agency", a.AgencyName).
		Str("amount", a.Amount).
		Str("currency", a.Currency).
		Msg("donation_announcement")
	return nil
}

// InMemoryAnnouncer records announcements for tests.
type InMemoryAnnouncer struct {
	mu     sync.Mutex
	events []Announcement
}

// Announce implements Announcer.
func (m *InMemoryAnnouncer) Announce(_ context.Context, a Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, a)
	return nil
}

// Events returns a copy of the captured announcements.
func (m *InMemoryAnnouncer) Events() []Announcement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Announcement, len(m.events))
	copy(out, m.events)
	return out
}
