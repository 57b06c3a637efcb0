package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/phoneauth/internal/apperror"
)

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Onboarder records that the profile of a user was created.
type Onboarder interface {
	MarkOnboarded(ctx context.Context, userID, identityID string) error
}

// NewKafkaReader builds a consumer group reader for topic.
func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
}

// Consumer applies onboarding events to identities.
type Consumer struct {
	reader    MessageReader
	onboarder Onboarder

	attempts int
	backoff  time.Duration
}

// NewConsumer constructs a Consumer.
func NewConsumer(reader MessageReader, onboarder Onboarder) *Consumer {
	return &Consumer{
		reader:    reader,
		onboarder: onboarder,
		attempts:  3,
		backoff:   time.Second,
	}
}

type onboardedPayload struct {
	UserID string `json:"userId"`
	AuthID string `json:"authId"`
}

// Run consumes until ctx is cancelled. Offsets are committed after a message
// was handled or found unusable.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("[kafka] consumer stopped")
				return nil
			}
			log.Printf("[kafka] fetch failed: %v", err)
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[kafka] dropping %s at %s/%d@%d: %v", string(msg.Key), msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[kafka] commit failed: %v", err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.HandleMessage(ctx, msg)
		if err == nil || !retryable(err) {
			return err
		}
		log.Printf("[kafka] handling %s failed (attempt %d/%d): %v", string(msg.Key), attempt, c.attempts, err)
		if attempt < c.attempts && !sleep(ctx, c.backoff) {
			return ctx.Err()
		}
	}
	return err
}

// HandleMessage applies one message. Events other than user_onboarded are
// ignored.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	if len(msg.Key) == 0 || len(msg.Value) == 0 {
		return nil
	}

	event := string(msg.Key)
	if event != UserOnboarded {
		log.Printf("[kafka] ignoring event %s", event)
		return nil
	}

	var payload onboardedPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return apperror.Validation("malformed " + UserOnboarded + " payload")
	}
	if err := c.onboarder.MarkOnboarded(ctx, payload.UserID, payload.AuthID); err != nil {
		return err
	}
	log.Printf("[kafka] onboarding applied for user %s identity %s", payload.UserID, payload.AuthID)
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// retryable reports whether err may succeed on a later attempt. Rejections
// of the payload itself never will.
func retryable(err error) bool {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Kind == apperror.KindServer
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
