package model

// SessionState is the lifecycle position of a relay session.
//
//	Idle -> Connecting -> Live -> Reconnecting -> Live ... -> Closed
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateLive
	StateReconnecting
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionSnapshot is a read-only view used by stats and logging.
type SessionSnapshot struct {
	ID         string       `json:"id"`
	Identifier string       `json:"identifier"`
	State      SessionState `json:"-"`
	StateName  string       `json:"state"`
	WentLive   bool         `json:"went_live"`
	Monitoring bool         `json:"monitoring"`
	Attempts   int          `json:"attempts"`
}
