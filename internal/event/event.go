// Package event defines the domain events emitted after successful state
// transitions. Emission is fire-and-forget: sinks run after the domain
// transaction has committed, and a failing sink never rolls anything back.
package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeInstanceClaimed  Type = "instance_claimed"
	TypeInstanceApproved Type = "instance_approved"
	TypeInstanceRejected Type = "instance_rejected"
	TypeInstanceMissed   Type = "instance_missed"
	TypeClaimingClosed   Type = "claiming_closed"
	TypePointsAwarded    Type = "points_awarded"
	TypePointsAdjusted   Type = "points_adjusted"
	TypeRewardClaimed    Type = "reward_claimed"
	TypeRewardApproved   Type = "reward_approved"
	TypeRewardRejected   Type = "reward_rejected"
	TypeRewardExpired    Type = "reward_expired"
)

// Event carries the serialized form of the entity a transition mutated.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(t Type, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Sink receives events. Implementations must not block the caller for
// long and must swallow their own delivery failures.
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
