package model

import "errors"

var (
	ErrEmptyIdentifier = errors.New("identifier is empty")
	ErrSessionInFlight = errors.New("session already in flight on this connection")
	ErrSessionClosed   = errors.New("subscriber connection closed")
	ErrNotLive         = errors.New("target is not live")
	ErrStatusNotFound  = errors.New("stream status not found")
)
