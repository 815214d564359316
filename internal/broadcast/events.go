package broadcast

import (
	"time"

	"github.com/scribecast/scribecast/internal/analysis"
	"github.com/scribecast/scribecast/internal/transcribe"
)

const EventVersion = 1

// Event is the header embedded in every published payload. Every concrete
// event also carries the session id so subscribers multiplexing several
// sessions can filter on their side.
type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type TranscriptionEvent struct {
	Event
	SessionID string               `json:"session_id"`
	Segments  []transcribe.Segment `json:"segments"`
}

type AnalysisEvent struct {
	Event
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Emoji     string `json:"emoji,omitempty"`
	Message   string `json:"message"`
	Notes     string `json:"notes,omitempty"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type SessionClosedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	Reason    string  `json:"reason"`
	Duration  float64 `json:"duration"`
}

// NewEvent builds an event header stamped at now; a zero now means the
// current time.
func NewEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func transcriptionEvent(sessionID string, segments []transcribe.Segment) TranscriptionEvent {
	return TranscriptionEvent{
		Event:     NewEvent("transcription", time.Time{}),
		SessionID: sessionID,
		Segments:  segments,
	}
}

func analysisEvent(sessionID string, res analysis.Result) AnalysisEvent {
	return AnalysisEvent{
		Event:     NewEvent("analysis", time.Time{}),
		SessionID: sessionID,
		Text:      res.Text,
		Emoji:     res.Emoji,
		Message:   res.Message,
		Notes:     res.Notes,
	}
}

func sessionStartedEvent(sessionID string) SessionStartedEvent {
	return SessionStartedEvent{
		Event:     NewEvent("session_started", time.Time{}),
		SessionID: sessionID,
	}
}

func sessionClosedEvent(sessionID, reason string, duration time.Duration) SessionClosedEvent {
	return SessionClosedEvent{
		Event:     NewEvent("session_closed", time.Time{}),
		SessionID: sessionID,
		Reason:    reason,
		Duration:  duration.Seconds(),
	}
}
