package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Topics published by the API server.
const (
	TopicUserRegistered  = "user.registered"
	TopicPaymentRecorded = "payment.recorded"
)

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Envelope is the JSON document published for every domain event.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// MQ wraps a backend and encodes domain events.
type MQ struct {
	backend Backend
	now     func() time.Time
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend, now: time.Now}
}

// Publish encodes payload in an Envelope and sends it to topic.
func (m *MQ) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(Envelope{
		Type:       topic,
		OccurredAt: m.now().UTC(),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	attrs := map[string]string{
		"type":         topic,
		"content_type": "application/json",
	}
	if _, err := m.backend.Publish(ctx, topic, data, attrs); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
