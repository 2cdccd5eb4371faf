package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaEmitterValidation(t *testing.T) {
	_, err := NewKafkaEmitter(KafkaEmitterConfig{Topic: "events"})
	assert.Error(t, err)

	_, err = NewKafkaEmitter(KafkaEmitterConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestKafkaEmitCancelledContextReturnsEarly(t *testing.T) {
	emitter, err := NewKafkaEmitter(KafkaEmitterConfig{
		Brokers: []string{"127.0.0.1:1"},
		Topic:   "events",
	})
	require.NoError(t, err)
	defer emitter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = emitter.Emit(ctx, New(TypeRequestOpened, "key", nil))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "expected the context error, got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second, "cancelled emit must not sit out the backoff schedule")
}
