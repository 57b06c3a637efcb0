// Package events connects the auth core to the user event bus on Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event names exchanged with the other services.
const (
	UserSendOTP   = "user_send_otp"
	UserSignup    = "user_signup"
	UserLogin     = "user_login"
	UserOnboarded = "user_onboarded"
)

const sourceHeader = "source"

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes user events. Each message is keyed by the event name and
// carries the JSON encoded payload as its value.
type Publisher struct {
	writer MessageWriter
	topic  string
	source string
}

// NewKafkaWriter builds a writer for brokers. Topics are set per message.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher wraps writer. When topic is empty every event goes to the
// topic named after it.
func NewPublisher(writer MessageWriter, topic, source string) *Publisher {
	return &Publisher{writer: writer, topic: topic, source: source}
}

// Publish serializes data and writes it under event.
func (p *Publisher) Publish(ctx context.Context, event string, data map[string]interface{}) error {
	if p == nil || p.writer == nil {
		return errors.New("events: publisher not configured")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	topic := p.topic
	if topic == "" {
		topic = event
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event),
		Value: payload,
		Headers: []kafka.Header{
			{Key: sourceHeader, Value: []byte(p.source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[kafka] publish %s to %s failed: %v", event, topic, err)
		return err
	}
	log.Printf("[kafka] published %s to %s", event, topic)
	return nil
}

// SendOTP hands the code to the notification service through the bus.
func (p *Publisher) SendOTP(ctx context.Context, phone, code string) error {
	return p.Publish(ctx, UserSendOTP, map[string]interface{}{
		"phoneNumber": phone,
		"otp":         code,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
