// Package audit captures who did what, when, against the roster and the
// attendance ledger. Events are transport-agnostic; publishers fan them out.
package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic for every state-changing action.
type Event struct {
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to a sink. Emit must not block domain logic on
// sink latency; implementations buffer or fire-and-forget.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Emit(context.Context, Event) {}

// Nop returns a publisher that drops every event, for deployments without a
// broker and for tests.
func Nop() Publisher {
	return nopPublisher{}
}
