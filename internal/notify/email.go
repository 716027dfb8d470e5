package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(to, subject, body string) error
}

// NopEmailSender implements EmailSender without performing any action.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }

// Email is a single message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	Body    string
}

// InMemoryEmail records messages for tests.
type InMemoryEmail struct {
	mu     sync.Mutex
	outbox []Email
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, Email{To: to, Subject: subject, Body: body})
	return nil
}

// Outbox returns a copy of the captured messages.
func (m *InMemoryEmail) Outbox() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.outbox))
	copy(out, m.outbox)
	return out
}

// APIEmailSender delivers mail through an HTTP transactional-mail API.
type APIEmailSender struct {
	Endpoint string
	APIKey   string
	From     string
	Client   *http.Client
}

// Send posts the message to the configured mail API.
func (s APIEmailSender) Send(to, subject, body string) error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return errors.New("mail api endpoint not configured")
	}
	payload, err := json.Marshal(map[string]string{
		"from":    s.From,
		"to":      to,
		"subject": subject,
		"text":    body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail api responded %d", resp.StatusCode)
	}
	return nil
}
