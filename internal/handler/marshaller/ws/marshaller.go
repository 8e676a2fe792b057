package wsmarshaller

import (
	"encoding/json"
	"errors"

	"github.com/webitel/live-relay-service/internal/domain/model"
)

// MarshallEnvelope prepares one envelope for a WebSocket text frame.
func MarshallEnvelope(env model.Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, errors.New("envelope without type")
	}
	return json.Marshal(env)
}

// ErrorMessage maps a watch rejection onto the subscriber-facing text.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrEmptyIdentifier):
		return model.MsgEmptyIdentifier
	case errors.Is(err, model.ErrSessionInFlight):
		return model.MsgSessionInFlight
	default:
		return model.MsgConnectFailed
	}
}
