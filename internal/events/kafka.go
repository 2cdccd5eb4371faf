package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaEmitterConfig configures the Kafka-backed emitter.
type KafkaEmitterConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic receives all transition events.
	Topic string

	// MaxAttempts is how many times a produce is retried on transient
	// error. Defaults to 3 if <= 0.
	MaxAttempts int

	// WriteTimeout is the per-attempt timeout. Defaults to 10s if zero.
	WriteTimeout time.Duration

	// Archiver, if set, receives every emitted envelope after the produce
	// (best-effort; archive failures are logged, not returned).
	Archiver Archiver
}

// KafkaEmitter publishes event envelopes to a single topic, keyed by the
// entity id so transitions for one request land on one partition in order.
type KafkaEmitter struct {
	writer      *kafka.Writer
	archiver    Archiver
	maxAttempts int
}

func NewKafkaEmitter(cfg KafkaEmitterConfig) (*KafkaEmitter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaEmitter{
		writer:      w,
		archiver:    cfg.Archiver,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

func (k *KafkaEmitter) Emit(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= k.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   []byte(ev.Key),
			Value: value,
			Time:  ev.Ts,
		}
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := k.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if attempt == k.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("emit %s: %w", ev.Type, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	if lastErr != nil {
		return fmt.Errorf("emit %s after %d attempts: %w", ev.Type, k.maxAttempts, lastErr)
	}

	if k.archiver != nil {
		if err := k.archiver.ArchiveEvent(ctx, ev); err != nil {
			log.Printf("[events] archive %s %s: %v", ev.Type, ev.ID, err)
		}
	}
	return nil
}

func (k *KafkaEmitter) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
