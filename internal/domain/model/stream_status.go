package model

import "time"

// StreamStatus is the last known liveness of a target identifier.
type StreamStatus struct {
	Identifier string     `json:"identifier"`
	IsLive     bool       `json:"is_live"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Duration   float64    `json:"duration,omitempty"`
	LastKind   string     `json:"last_kind"`
	// SessionID and EventAt identify the event last folded in; lifecycle
	// topics are consumed independently, so arrival order is not event order.
	SessionID string    `json:"session_id,omitempty"`
	EventAt   int64     `json:"event_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyLifecycle folds a lifecycle event into the status. It reports false,
// leaving the status untouched, when ev is older than what is already stored
// or would reopen a session that has ended.
func (s StreamStatus) ApplyLifecycle(ev *LifecycleEvent, now time.Time) (StreamStatus, bool) {
	if s.supersedes(ev) {
		return s, false
	}

	s.Identifier = ev.Identifier
	s.LastKind = string(ev.Kind)
	s.SessionID = ev.SessionID.String()
	s.EventAt = ev.OccurredAt
	s.UpdatedAt = now.UTC()

	switch ev.Kind {
	case LifecycleWentLive:
		s.IsLive = true
		s.StartedAt = ev.StartTime
		s.EndedAt = nil
		s.Duration = 0
	case LifecycleEnded:
		s.IsLive = false
		if ev.StartTime != nil {
			s.StartedAt = ev.StartTime
		}
		s.EndedAt = ev.EndTime
		s.Duration = ev.Duration
	case LifecycleNotLive, LifecycleFailed:
		s.IsLive = false
	}
	return s, true
}

func (s StreamStatus) supersedes(ev *LifecycleEvent) bool {
	if s.SessionID == "" {
		return false
	}
	if ev.OccurredAt < s.EventAt {
		return true
	}
	// [TERMINAL] Within one session nothing follows ended.
	return s.SessionID == ev.SessionID.String() &&
		s.LastKind == string(LifecycleEnded) &&
		ev.Kind != LifecycleEnded
}
