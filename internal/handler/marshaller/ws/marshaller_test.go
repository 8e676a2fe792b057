package wsmarshaller

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

func TestMarshallEnvelope(t *testing.T) {
	b, err := MarshallEnvelope(model.NewErrorEnvelope("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, string(b))

	_, err = MarshallEnvelope(model.Envelope{})
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, model.MsgEmptyIdentifier, ErrorMessage(model.ErrEmptyIdentifier))
	assert.Equal(t, model.MsgSessionInFlight, ErrorMessage(fmt.Errorf("watch bob: %w", model.ErrSessionInFlight)))
	assert.Equal(t, model.MsgConnectFailed, ErrorMessage(fmt.Errorf("other")))
}
