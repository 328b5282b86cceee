package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"gigmarket/internal/config"
	"gigmarket/internal/domain"
)

// NotificationEvent is the wire form of a committed notification.
type NotificationEvent struct {
	NotificationID uint            `json:"notificationId"`
	UserID         uint            `json:"userId"`
	Type           string          `json:"type"`
	Status         string          `json:"status,omitempty"`
	Content        string          `json:"content"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish call, retries included.
const DefaultPublishTimeout = 2 * time.Second

// Publisher announces committed notifications on a topic keyed by the
// addressee, so one user's events stay ordered within a partition.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:            kafka.TCP(cfg.Brokers...),
			Topic:           cfg.Topic,
			Balancer:        &kafka.Hash{},
			RequiredAcks:    kafka.RequireOne,
			BatchTimeout:    10 * time.Millisecond,
			MaxAttempts:     3,
			WriteBackoffMin: 50 * time.Millisecond,
			WriteBackoffMax: 200 * time.Millisecond,
			WriteTimeout:    time.Second,
		},
		timeout: DefaultPublishTimeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, notifications ...domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(notifications))
	for _, n := range notifications {
		msg, err := newMessage(n)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	// The request may already be answered; its cancellation must not drop
	// the events, only the timeout may.
	ctx = context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing notification events: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(n domain.Notification) (kafka.Message, error) {
	payload, err := domain.EncodePayload(n.Payload)
	if err != nil {
		return kafka.Message{}, err
	}

	value, err := json.Marshal(NotificationEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Status:         string(n.Status),
		Content:        n.Content,
		Payload:        payload,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding notification event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(n.UserID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(n.Type)},
		},
	}, nil
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...domain.Notification) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
