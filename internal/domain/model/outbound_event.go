package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LifecycleKind string

const (
	LifecycleWentLive LifecycleKind = "went_live"
	LifecycleEnded    LifecycleKind = "ended"
	LifecycleNotLive  LifecycleKind = "not_live"
	LifecycleFailed   LifecycleKind = "failed"
)

// EventSource is stamped on every event this service publishes.
const EventSource = "live-relay-service"

// OutboundEventer defines the contract for events published from this
// service to the message bus.
type OutboundEventer interface {
	GetRoutingKey() string
	ToJSON() ([]byte, error)
}

var _ OutboundEventer = (*LifecycleEvent)(nil)

// LifecycleEvent announces a session milestone to other consumers.
type LifecycleEvent struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Kind       LifecycleKind `json:"kind"`
	SessionID  uuid.UUID     `json:"session_id"`
	Identifier string        `json:"identifier"`
	StartTime  *time.Time    `json:"start_time,omitempty"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	Duration   float64       `json:"duration,omitempty"`
	OccurredAt int64         `json:"occurred_at"`
}

func NewLifecycleEvent(kind LifecycleKind, sessionID uuid.UUID, identifier string, at time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.NewString(),
		Source:     EventSource,
		Kind:       kind,
		SessionID:  sessionID,
		Identifier: identifier,
		OccurredAt: at.UnixMilli(),
	}
}

// WithWindow attaches live timing; end may be zero for went_live.
func (e *LifecycleEvent) WithWindow(start, end time.Time) *LifecycleEvent {
	if !start.IsZero() {
		s := start.UTC()
		e.StartTime = &s
	}
	if !end.IsZero() {
		en := end.UTC()
		e.EndTime = &en
		e.Duration = Duration(start, end)
	}
	return e
}

// GetRoutingKey follows live_relay.v1.session.{kind}.
func (e *LifecycleEvent) GetRoutingKey() string {
	return "live_relay.v1.session." + string(e.Kind)
}

func (e *LifecycleEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
