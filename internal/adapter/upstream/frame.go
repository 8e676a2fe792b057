package upstream

import (
	"encoding/json"

	"github.com/webitel/live-relay-service/internal/domain/model"
)

// Gateway event names.
const (
	frameConnected    = "connected"
	frameChat         = "chat"
	frameLike         = "like"
	frameGift         = "gift"
	frameStreamEnd    = "streamEnd"
	frameDisconnected = "disconnected"
	frameError        = "error"
)

// frame is one JSON text message from the webcast gateway.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type gatewayError struct {
	Message string `json:"message"`
}

// errorMessage pulls a readable message out of an error frame, falling back
// to the raw payload.
func (f frame) errorMessage() string {
	var ge gatewayError
	if err := json.Unmarshal(f.Data, &ge); err == nil && ge.Message != "" {
		return ge.Message
	}
	var s string
	if err := json.Unmarshal(f.Data, &s); err == nil && s != "" {
		return s
	}
	if len(f.Data) > 0 {
		return string(f.Data)
	}
	return "gateway error"
}

// toEvent maps a gateway frame onto the relay's event kinds.
func (f frame) toEvent() (model.UpstreamEvent, bool) {
	switch f.Event {
	case frameChat:
		return model.UpstreamEvent{Kind: model.UpstreamChat, Data: f.Data}, true
	case frameLike:
		return model.UpstreamEvent{Kind: model.UpstreamLike, Data: f.Data}, true
	case frameGift:
		return model.UpstreamEvent{Kind: model.UpstreamGift, Data: f.Data}, true
	case frameStreamEnd, frameDisconnected:
		return model.UpstreamEvent{Kind: model.UpstreamDisconnected, Data: f.Data}, true
	case frameError:
		return model.UpstreamEvent{Kind: model.UpstreamError, Data: f.Data, Err: &GatewayError{Message: f.errorMessage()}}, true
	default:
		return model.UpstreamEvent{}, false
	}
}

// GatewayError is an error reported by the gateway in-band.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string { return "gateway: " + e.Message }
