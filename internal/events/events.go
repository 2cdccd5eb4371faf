package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted on state transitions so the external API layer and its
// database cache can stay eventually consistent without polling full state.
const (
	TypeAgentRegistered       = "AgentRegistered"
	TypeAgentUpdated          = "AgentUpdated"
	TypeAgentDeactivated      = "AgentDeactivated"
	TypeRequestOpened         = "RequestOpened"
	TypeResultSubmitted       = "ResultSubmitted"
	TypeApproved              = "Approved"
	TypeDisputed              = "Disputed"
	TypeDisputeResolved       = "DisputeResolved"
	TypeCancelled             = "Cancelled"
	TypeDistributed           = "Distributed"
	TypeRatingSubmitted       = "RatingSubmitted"
	TypeRatingReported        = "RatingReported"
	TypeRatingModerated       = "RatingModerated"
	TypePauseChanged          = "PauseChanged"
	TypeConfigUpdated         = "ConfigUpdated"
	TypePlatformFeesWithdrawn = "PlatformFeesWithdrawn"
	TypeReconcileAlert        = "ReconcileAlert"
)

// EnvelopeVersion is the wire version of the event envelope. Consumers must
// ignore fields they do not recognize.
const EnvelopeVersion = 1

// Event is the envelope published for every observable transition. Key is the
// entity id the event is about (request or agent), used for partition ordering.
type Event struct {
	ID      uuid.UUID   `json:"id"`
	Type    string      `json:"type"`
	Version int         `json:"version"`
	Key     string      `json:"key"`
	Ts      time.Time   `json:"ts"`
	Payload interface{} `json:"payload,omitempty"`
}

// New builds an envelope with a fresh id and timestamp.
func New(eventType, key string, payload interface{}) Event {
	return Event{
		ID:      uuid.New(),
		Type:    eventType,
		Version: EnvelopeVersion,
		Key:     key,
		Ts:      time.Now().UTC(),
		Payload: payload,
	}
}

// Emitter publishes events. Emission happens after the owning transaction
// committed and is best-effort: the database is the source of truth and
// callers only log emit failures.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// NopEmitter discards events. Used when no broker is configured.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, ev Event) error { return nil }
func (NopEmitter) Close() error                             { return nil }

// MemoryEmitter records events for tests.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEmitter() *MemoryEmitter { return &MemoryEmitter{} }

func (m *MemoryEmitter) Emit(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryEmitter) Close() error { return nil }

// Events returns a copy of everything emitted so far.
func (m *MemoryEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the emitted event types in order.
func (m *MemoryEmitter) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}
