package session

import "errors"

var (
	// ErrUpstreamUnavailable is returned when the transcription engine
	// cannot be reached while creating a session.
	ErrUpstreamUnavailable = errors.New("transcription upstream unavailable")

	// ErrSessionClosed is returned for operations on a session that has
	// been removed from the store.
	ErrSessionClosed = errors.New("session closed")
)
