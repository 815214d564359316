package session

import (
	"context"
	"time"

	"github.com/scribecast/scribecast/internal/transcribe"
)

// Upstream is one session's connection to the transcription engine.
// Send accepts a raw audio chunk and Close tears the connection down.
type Upstream interface {
	Send(chunk []byte) error
	Close() error
}

// Sink receives the callbacks for one session's upstream connection.
// Its method set mirrors the transcription client's handler so a dialer
// can hand it straight through.
type Sink interface {
	OnTokens(words []transcribe.Word)
	OnError(err error)
	OnClose()
}

// Dialer opens the upstream connection for a new session, delivering
// results to sink for the connection's lifetime.
type Dialer func(ctx context.Context, sessionID string, sink Sink) (Upstream, error)

// Publisher is the slice of the broadcast surface the store drives.
type Publisher interface {
	PublishTranscription(sessionID string, segments []transcribe.Segment)
	PublishSessionStarted(sessionID string)
	PublishSessionClosed(sessionID string, reason string, duration time.Duration)
}

// Analyzer watches a session's growing transcript and decides when to
// request commentary.
type Analyzer interface {
	Observe(sessionID string, tr *transcribe.Transcript)
}

// AnalyzerFactory builds the analyzer for a new session. A nil factory
// disables analysis for the whole store.
type AnalyzerFactory func() Analyzer

// Info is a point-in-time snapshot of one session for the status API.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IdleSeconds  float64   `json:"idle_seconds"`
}
