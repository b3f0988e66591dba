package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tiketi/apiserver/config"
)

// eventsExchange is the topic exchange every domain event is routed through;
// the routing key is the event type.
const eventsExchange = "tiketi.events"

// RabbitMQClient publishes events to a durable topic exchange.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQClient dials RabbitMQ, opens a confirm-mode channel and
// declares the events exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}

	if err := ch.ExchangeDeclare(eventsExchange, "topic", cfg.ExchangeDurable, cfg.ExchangeAutoDelete, false, false, nil); err != nil {
		closeAll()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		closeAll()
		return nil, err
	}

	return &RabbitMQClient{conn: conn, channel: ch}, nil
}

// Publish sends data to the events exchange with topic as the routing key
// and waits for the broker confirmation.
func (r *RabbitMQClient) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("rabbitmq topic is required")
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := newMessageID()
	confirmation, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, eventsExchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         topic,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", errors.New("rabbitmq broker rejected message")
	}
	return messageID, nil
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
