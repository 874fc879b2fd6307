package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"lockdrop/core/events"
)

// MessageWriter is the subset of kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards committed events to a Kafka topic. Emit never
// blocks the caller: envelopes are queued and written by a background loop,
// and dropped with a warning when the queue is full.
type KafkaPublisher struct {
	writer  MessageWriter
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	queue chan Envelope
	done  chan struct{}
	once  sync.Once
}

// NewKafkaPublisher builds a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	return NewPublisher(writer, logger, 256), nil
}

// NewPublisher starts a publisher over an arbitrary writer.
func NewPublisher(writer MessageWriter, logger *slog.Logger, buffer int) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1
	}
	p := &KafkaPublisher{
		writer:  writer,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     time.Now,
		queue:   make(chan Envelope, buffer),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Emit implements events.Emitter.
func (p *KafkaPublisher) Emit(e events.Event) {
	if e == nil {
		return
	}
	env, err := NewEnvelope(e, p.now())
	if err != nil {
		p.logger.Warn("kafka: encode event", slog.String("type", e.EventType()), slog.Any("error", err))
		return
	}
	select {
	case p.queue <- env:
	default:
		p.logger.Warn("kafka: queue full, dropping event", slog.String("type", env.Type), slog.String("id", env.ID))
	}
}

func (p *KafkaPublisher) loop() {
	defer close(p.done)
	for env := range p.queue {
		value, err := json.Marshal(env)
		if err != nil {
			p.logger.Warn("kafka: marshal envelope", slog.Any("error", err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err = p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(env.Type),
			Value: value,
			Time:  env.OccurredAt,
		})
		cancel()
		if err != nil {
			p.logger.Warn("kafka: publish failed", slog.String("type", env.Type), slog.String("id", env.ID), slog.Any("error", err))
		}
	}
}

// Close drains queued envelopes and closes the writer.
func (p *KafkaPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.queue)
		<-p.done
		err = p.writer.Close()
	})
	return err
}
