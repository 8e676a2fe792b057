package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EnvelopeType tags every unit written to the subscriber channel.
type EnvelopeType string

const (
	EnvelopeStartTime EnvelopeType = "start_time" // [MONITOR]
	EnvelopeChat      EnvelopeType = "chat"       // [RELAY]
	EnvelopeLike      EnvelopeType = "like"       // [RELAY]
	EnvelopeGift      EnvelopeType = "gift"       // [RELAY]
	EnvelopeStatus    EnvelopeType = "status"     // [MONITOR]
	EnvelopeNotLive   EnvelopeType = "not_live"   // [MONITOR]
	EnvelopeEndTime   EnvelopeType = "end_time"   // [RELAY]
	EnvelopeError     EnvelopeType = "error"      // [SYSTEM]
)

// ISO8601 matches the millisecond UTC layout subscribers already parse.
const ISO8601 = "2006-01-02T15:04:05.000Z07:00"

// Error messages surfaced to the subscriber.
const (
	MsgConnectFailed      = "Failed to connect to TikTok live"
	MsgReconnectExhausted = "Reconnect attempts exhausted"
	MsgConnectionLost     = "Lost connection to TikTok live"
	MsgEmptyIdentifier    = "Identifier must not be empty"
	MsgSessionInFlight    = "A session is already active on this connection"
)

// Envelope is the single tagged-variant schema for outbound frames.
// Exactly one of Data or Message is set, depending on Type.
type Envelope struct {
	Type    EnvelopeType `json:"type"`
	Data    any          `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	// Error repeats Message on the connect-failure envelope only; older
	// clients match on {"error": "..."}.
	Error string `json:"error,omitempty"`
}

// EndTimeData summarises a finished live session.
type EndTimeData struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Duration  float64 `json:"duration"`
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

func NewStartTimeEnvelope(at time.Time) Envelope {
	return Envelope{Type: EnvelopeStartTime, Data: FormatTime(at)}
}

// NewRelayEnvelope wraps an upstream payload verbatim.
func NewRelayEnvelope(kind UpstreamEventKind, data json.RawMessage) (Envelope, bool) {
	var t EnvelopeType
	switch kind {
	case UpstreamChat:
		t = EnvelopeChat
	case UpstreamLike:
		t = EnvelopeLike
	case UpstreamGift:
		t = EnvelopeGift
	default:
		return Envelope{}, false
	}

	// An empty RawMessage is not valid JSON; relay it as null.
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Envelope{Type: t, Data: data}, true
}

func NewStatusEnvelope(identifier string) Envelope {
	return Envelope{
		Type:    EnvelopeStatus,
		Message: fmt.Sprintf("%s has not gone live yet.", identifier),
	}
}

func NewNotLiveEnvelope(identifier string, window time.Duration) Envelope {
	return Envelope{
		Type:    EnvelopeNotLive,
		Message: fmt.Sprintf("%s did not go live within %s.", identifier, humanizeWindow(window)),
	}
}

// NewEndTimeEnvelope reports the live duration in fractional seconds.
func NewEndTimeEnvelope(start, end time.Time) Envelope {
	return Envelope{
		Type: EnvelopeEndTime,
		Data: EndTimeData{
			StartTime: FormatTime(start),
			EndTime:   FormatTime(end),
			Duration:  Duration(start, end),
		},
	}
}

func NewErrorEnvelope(message string) Envelope {
	return Envelope{Type: EnvelopeError, Message: message}
}

// NewConnectFailedEnvelope reports the initial connect failure in both the
// typed and the legacy shape.
func NewConnectFailedEnvelope() Envelope {
	return Envelope{Type: EnvelopeError, Message: MsgConnectFailed, Error: MsgConnectFailed}
}

// Duration returns end-start in seconds, clamped at zero.
func Duration(start, end time.Time) float64 {
	d := end.Sub(start).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func humanizeWindow(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	case d >= time.Second && d%time.Second == 0:
		n := int(d / time.Second)
		if n == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", n)
	default:
		return d.String()
	}
}
