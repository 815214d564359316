// Package broadcast fans session events out to subscribers: an in-process
// websocket hub always, and Kafka topics when brokers are configured.
// Delivery is best-effort and at-most-once on every transport.
package broadcast

import (
	"time"

	"github.com/scribecast/scribecast/internal/analysis"
	"github.com/scribecast/scribecast/internal/transcribe"
)

// Publisher is the full event surface a transport implements.
type Publisher interface {
	PublishTranscription(sessionID string, segments []transcribe.Segment)
	PublishAnalysis(sessionID string, res analysis.Result)
	PublishSessionStarted(sessionID string)
	PublishSessionClosed(sessionID string, reason string, duration time.Duration)
}

// Multi sends every event to each transport in order.
type Multi []Publisher

func (m Multi) PublishTranscription(sessionID string, segments []transcribe.Segment) {
	for _, p := range m {
		p.PublishTranscription(sessionID, segments)
	}
}

func (m Multi) PublishAnalysis(sessionID string, res analysis.Result) {
	for _, p := range m {
		p.PublishAnalysis(sessionID, res)
	}
}

func (m Multi) PublishSessionStarted(sessionID string) {
	for _, p := range m {
		p.PublishSessionStarted(sessionID)
	}
}

func (m Multi) PublishSessionClosed(sessionID string, reason string, duration time.Duration) {
	for _, p := range m {
		p.PublishSessionClosed(sessionID, reason, duration)
	}
}
