// Package events publishes a record of every successful write to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yatube/yatube/pkg/config"
	"github.com/yatube/yatube/pkg/logging"
)

// Event types.
const (
	PostCreated    = "post.created"
	PostUpdated    = "post.updated"
	CommentCreated = "comment.created"
	FollowCreated  = "follow.created"
	FollowDeleted  = "follow.deleted"
)

// Event describes one write.
type Event struct {
	Type      string    `json:"type"`
	ActorID   int64     `json:"actor_id"`
	PostID    int64     `json:"post_id,omitempty"`
	CommentID int64     `json:"comment_id,omitempty"`
	AuthorID  int64     `json:"author_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by event type.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewPublisher returns a KafkaPublisher for the configured brokers, or Nop
// when none are configured.
func NewPublisher(cfg *config.KafkaConfig) Publisher {
	logger := logging.WithComponent("events")
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured; events disabled")
		return Nop{}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}
	logger.Info("Kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return NewKafkaPublisher(w, cfg.WriteTimeout)
}

// NewKafkaPublisher wraps an existing writer.
func NewKafkaPublisher(w MessageWriter, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: timeout, logger: logging.WithComponent("events")}
}

// Publish writes e, waiting at most the configured timeout.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.Type), Value: value}); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	p.logger.Debug("Published event", zap.String("type", e.Type), zap.Int64("actor_id", e.ActorID))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
