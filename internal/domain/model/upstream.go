package model

import (
	"context"
	"encoding/json"
)

type UpstreamEventKind int16

const (
	UpstreamChat         UpstreamEventKind = iota + 1 // [RELAY]
	UpstreamLike                                      // [RELAY]
	UpstreamGift                                      // [RELAY]
	UpstreamDisconnected                              // [LIFECYCLE]
	UpstreamError                                     // [LIFECYCLE]
)

func (k UpstreamEventKind) String() string {
	switch k {
	case UpstreamChat:
		return "chat"
	case UpstreamLike:
		return "like"
	case UpstreamGift:
		return "gift"
	case UpstreamDisconnected:
		return "disconnected"
	case UpstreamError:
		return "error"
	default:
		return "unknown"
	}
}

// UpstreamEvent is one signal read from the third-party live session.
// Data is kept raw: payloads are relayed without validation.
type UpstreamEvent struct {
	Kind UpstreamEventKind
	Data json.RawMessage
	Err  error
}

// Handle is an established upstream live-session connection.
type Handle interface {
	// Events is closed once the connection stops producing events.
	Events() <-chan UpstreamEvent
	// Disconnect closes the connection and waits for its reader to exit.
	Disconnect(ctx context.Context) error
}

// Dialer opens upstream connections. Connect returns only once the target
// is live, or with an error when it is not reachable or not broadcasting.
type Dialer interface {
	Connect(ctx context.Context, identifier string) (Handle, error)
}
