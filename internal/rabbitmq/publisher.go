package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"studybuddy-chat/internal/telemetry"
)

// Publisher carries chat audit records (Publish) and realtime ws/chat events
// (PublishJSON) to the StudyBuddy topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
	Close() error
}

// NewPublisher connects to the broker and declares a durable topic exchange.
// Any failure degrades to a noop publisher so chat keeps working without a bus.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return newNoop("empty amqp url")
	}

	conn, ch, err := dial(amqpURL, exchange)
	if err != nil {
		return newNoop(err.Error())
	}

	log.Printf("event bus connected exchange=%s", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

func dial(amqpURL, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode %s: %w", routingKey, err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      headerTable(headers),
		Body:         body,
	})
	if err != nil {
		log.Printf("event bus publish failed exchange=%s routing_key=%s: %v", p.exchange, routingKey, err)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// headerTable copies string headers such as x-request-id and trace_id into
// an AMQP table; nil when there is nothing to send.
func headerTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	return table
}

type noopPublisher struct {
	reason string
}

func newNoop(reason string) noopPublisher {
	log.Printf("event bus disabled, audit records will only be logged: %s", reason)
	return noopPublisher{reason: reason}
}

// Publish logs audit records so they are not lost entirely without a broker.
func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	log.Printf("event bus noop routing_key=%s %s", routingKey, describe(event))
	return nil
}

// PublishJSON drops ws and chat events silently; they are high volume.
func (noopPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

func describe(event any) string {
	var envelope telemetry.AuditEnvelope
	switch e := event.(type) {
	case telemetry.AuditEnvelope:
		envelope = e
	case *telemetry.AuditEnvelope:
		if e == nil {
			return "audit=<nil>"
		}
		envelope = *e
	default:
		return fmt.Sprintf("type=%T", event)
	}
	return fmt.Sprintf("audit level=%s text=%q group_id=%s request_id=%s", envelope.Payload.Level, envelope.Payload.Text, envelope.Payload.GroupID, envelope.RequestID)
}

// PublisherMode reports "amqp" or "noop" for startup logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	if n, ok := p.(noopPublisher); ok {
		return n.reason
	}
	return ""
}
