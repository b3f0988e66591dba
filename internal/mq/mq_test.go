package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiketi/apiserver/config"
)

type recordingBackend struct {
	topic string
	data  []byte
	attrs map[string]string
	err   error
}

func (b *recordingBackend) Publish(_ context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	b.topic = topic
	b.data = data
	b.attrs = attrs
	return "msg-1", b.err
}

func (b *recordingBackend) Close() error { return nil }

func TestPublishWrapsPayloadInEnvelope(t *testing.T) {
	backend := &recordingBackend{}
	m := New(backend)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	err := m.Publish(context.Background(), TopicUserRegistered, map[string]int{"user_id": 7})
	require.NoError(t, err)

	assert.Equal(t, TopicUserRegistered, backend.topic)
	assert.Equal(t, TopicUserRegistered, backend.attrs["type"])

	var env struct {
		Type       string         `json:"type"`
		OccurredAt time.Time      `json:"occurred_at"`
		Data       map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(backend.data, &env))
	assert.Equal(t, TopicUserRegistered, env.Type)
	assert.True(t, fixed.Equal(env.OccurredAt))
	assert.Equal(t, 7, env.Data["user_id"])
}

func TestPublishReportsBackendFailure(t *testing.T) {
	m := New(&recordingBackend{err: errors.New("broker down")})

	err := m.Publish(context.Background(), TopicPaymentRecorded, struct{}{})
	assert.ErrorContains(t, err, "broker down")
}

func TestNewFromConfigWithoutBackend(t *testing.T) {
	m, err := NewFromConfig(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewFromConfigUnknownBackend(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "payment-recorded", topicName(TopicPaymentRecorded))
}
