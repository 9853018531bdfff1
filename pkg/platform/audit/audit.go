// Package audit emits change events for directory writes. Events are
// transport-agnostic so sinks can fan out; the Kafka publisher is the
// production sink, the in-memory one serves tests.
package audit

import (
	"context"
	"sync"
	"time"
)

// Action names what happened to the directory.
type Action string

const (
	ActionInviteSaved     Action = "invite_saved"
	ActionUserPromoted    Action = "user_promoted"
	ActionPromotionFailed Action = "promotion_failed"
)

// Event is one audited directory change.
type Event struct {
	Action    Action            `json:"action"`
	DN        string            `json:"dn"`
	Actor     string            `json:"actor,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Publisher delivers events to a sink. Publish returning an error must not
// fail the originating directory operation; emitters log and move on — the
// directory itself is the durable record.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Memory collects events in process, for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
