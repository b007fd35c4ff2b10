// Package events carries session and wizard state changes to listeners
// such as the websocket hub.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Type names a state change
type Type string

const (
	SessionLoaded    Type = "session.loaded"
	MessageAppended  Type = "message.appended"
	ReplyPending     Type = "reply.pending"
	ParamsUpdated    Type = "params.updated"
	BalanceUpdated   Type = "balance.updated"
	MissionCompleted Type = "mission.completed"
	WizardStep       Type = "wizard.step"
	WizardAvatars    Type = "wizard.avatars"
)

// Event is one state change. Key is the user the change belongs to.
type Event struct {
	Type    Type            `json:"type"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// New builds an event, encoding payload as JSON
func New(typ Type, key string, payload any) Event {
	ev := Event{Type: typ, Key: key, At: time.Now().UTC()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// Publisher accepts events
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard is a Publisher that drops everything
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of what was published
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []Type {
	events := r.Events()
	out := make([]Type, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
