package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/logging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes lead events as JSON. Messages for one lead share a key so
// they land on the same partition in order.
type Kafka struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewKafka(brokers []string, topic string, logger *zap.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafka(w, topic, logger), nil
}

func newKafka(w messageWriter, topic string, logger *zap.Logger) *Kafka {
	return &Kafka{w: w, topic: topic, log: logging.OrNop(logger).Named("kafka")}
}

type envelope struct {
	ID string `json:"id"`
	domain.LeadEvent
}

func (k *Kafka) Notify(ctx context.Context, ev domain.LeadEvent) error {
	b, err := json.Marshal(envelope{ID: uuid.NewString(), LeadEvent: ev})
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(messageKey(ev)),
		Value: b,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		k.log.Warn("publish failed", zap.String("topic", k.topic), zap.String("event", ev.Type), zap.Error(err))
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func messageKey(ev domain.LeadEvent) string {
	switch {
	case ev.Lead != nil:
		return strconv.FormatInt(ev.Lead.ID, 10)
	case ev.Change != nil:
		return strconv.FormatInt(ev.Change.LeadID, 10)
	}
	return ev.Type
}

func (k *Kafka) Close() error { return k.w.Close() }
