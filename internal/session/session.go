package session

import (
	"sync"
	"time"

	"github.com/scribecast/scribecast/internal/broadcast"
	"github.com/scribecast/scribecast/internal/transcribe"
)

// Session is one live transcription session: an upstream connection,
// the transcript assembled from its results, and the bookkeeping the
// reaper needs to evict it.
//
// SendChunk is safe for concurrent use. The transcript, deduper, and
// analyzer are touched only from the upstream's delivery goroutine.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	upstream     Upstream
	lastActivity time.Time
	closed       bool

	dedup      *broadcast.Deduper
	transcript transcribe.Transcript
	analyzer   Analyzer
}

// SendChunk forwards a raw audio chunk to the transcription engine.
// It returns ErrSessionClosed once the session has been removed.
func (s *Session) SendChunk(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastActivity = time.Now()
	return s.upstream.Send(chunk)
}

// LastActivity reports when the session last sent or received data.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Closed reports whether the session has been removed from its store.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// close marks the session closed and tears down the upstream. It
// blocks until any in-flight SendChunk has released the session lock,
// and reports whether this call performed the transition.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	up := s.upstream
	s.mu.Unlock()

	if up != nil {
		_ = up.Close()
	}
	return true
}
