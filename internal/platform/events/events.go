// Package events delivers domain events to external sinks: a Kafka topic for
// downstream consumers and the websocket hub for open client views.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
	"github.com/itsaddyon/MediBridge/internal/platform/websocket"
)

// Event is a domain event. Key orders events of one aggregate on a Kafka
// partition; Payload is the JSON encoded aggregate snapshot.
type Event struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic, keyed by Event.Key.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
		timeout: 5 * time.Second,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// HubPublisher broadcasts events on a websocket hub topic.
type HubPublisher struct {
	hub   *websocket.Hub
	topic string
}

func NewHubPublisher(hub *websocket.Hub, topic string) *HubPublisher {
	return &HubPublisher{hub: hub, topic: topic}
}

func (p *HubPublisher) Publish(_ context.Context, event Event) error {
	p.hub.Broadcast(p.topic, websocket.Event{
		Type:       event.Type,
		ResourceID: event.Key,
		Timestamp:  event.OccurredAt,
		Data:       event.Payload,
	})
	return nil
}

type sink struct {
	name string
	pub  Publisher
}

// Fanout hands each event to every registered sink. A failing sink does not
// stop the others; failures are logged, counted and returned joined.
type Fanout struct {
	sinks   []sink
	logger  zerolog.Logger
	metrics *metrics.Collector
}

func NewFanout(logger zerolog.Logger, collector *metrics.Collector) *Fanout {
	return &Fanout{logger: logger, metrics: collector}
}

// Add registers a named sink and returns the fanout for chaining.
func (f *Fanout) Add(name string, pub Publisher) *Fanout {
	f.sinks = append(f.sinks, sink{name: name, pub: pub})
	return f
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	var errs []error
	for _, s := range f.sinks {
		if err := s.pub.Publish(ctx, event); err != nil {
			f.logger.Warn().Err(err).
				Str("sink", s.name).
				Str("event", event.Type).
				Str("key", event.Key).
				Msg("event publish failed")
			f.metrics.EventPublished(s.name, "error")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		f.metrics.EventPublished(s.name, "ok")
	}
	return errors.Join(errs...)
}

// Close releases sinks that hold connections.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.pub.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
