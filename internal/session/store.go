// Package session owns the lifecycle of live transcription sessions:
// creating them on first audio, pumping engine results through the
// segment pipeline, and removing them on stop, disconnect, or idle
// timeout.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/scribecast/scribecast/internal/broadcast"
	"github.com/scribecast/scribecast/internal/transcribe"
)

// Close reasons attached to session_closed events.
const (
	ReasonClientStop     = "client_stop"
	ReasonIdleTimeout    = "idle_timeout"
	ReasonUpstreamClosed = "upstream_closed"
	ReasonShutdown       = "shutdown"
)

// Config tunes store behavior. Zero values fall back to defaults.
type Config struct {
	// IdleTimeout is how long a session may go without activity
	// before the reaper evicts it.
	IdleTimeout time.Duration

	// PauseSplit turns on the pause heuristic for engine results
	// that carry no speaker labels.
	PauseSplit bool

	// PauseGap is the silence, in seconds, that flips the inferred
	// speaker when PauseSplit is on.
	PauseGap float64
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.PauseGap <= 0 {
		c.PauseGap = 0.8
	}
	return c
}

// Store holds all live sessions and builds new ones on demand.
type Store struct {
	cfg         Config
	dial        Dialer
	publisher   Publisher
	newAnalyzer AnalyzerFactory
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]chan struct{}
}

// NewStore creates a session store. newAnalyzer may be nil to disable
// analysis.
func NewStore(cfg Config, dial Dialer, publisher Publisher, newAnalyzer AnalyzerFactory, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:         cfg.withDefaults(),
		dial:        dial,
		publisher:   publisher,
		newAnalyzer: newAnalyzer,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		pending:     make(map[string]chan struct{}),
	}
}

// GetOrCreate returns the session for id, dialing the transcription
// engine to create it if it does not exist. Concurrent calls for the
// same id share one dial. A failed dial leaves the id absent and
// returns an error wrapping ErrUpstreamUnavailable.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	for {
		s.mu.RLock()
		sess, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return sess, nil
		}

		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok {
			s.mu.Unlock()
			return sess, nil
		}
		if wait, inflight := s.pending[id]; inflight {
			s.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		wait := make(chan struct{})
		s.pending[id] = wait
		s.mu.Unlock()

		sess, err := s.create(ctx, id)

		s.mu.Lock()
		delete(s.pending, id)
		// The upstream can die between dial and insert. A session
		// already closed by its own callbacks must not enter the map.
		inserted := err == nil && !sess.Closed()
		if inserted {
			s.sessions[id] = sess
		}
		s.mu.Unlock()
		close(wait)

		if err != nil {
			return nil, err
		}
		if inserted {
			s.publisher.PublishSessionStarted(id)
			s.logger.Info("session started", "session_id", id)
		}
		return sess, nil
	}
}

func (s *Store) create(ctx context.Context, id string) (*Session, error) {
	sess := &Session{
		ID:        id,
		CreatedAt: s.now(),
		dedup:     broadcast.NewDeduper(),
	}
	sess.lastActivity = sess.CreatedAt
	if s.newAnalyzer != nil {
		sess.analyzer = s.newAnalyzer()
	}

	up, err := s.dial(ctx, id, &sink{store: s, sess: sess})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	sess.mu.Lock()
	sess.upstream = up
	sess.mu.Unlock()
	return sess, nil
}

// Get returns the session for id if it exists.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Touch refreshes a session's activity clock, keeping the reaper away
// while a producer is connected but silent.
func (s *Store) Touch(id string) {
	if sess, ok := s.Get(id); ok {
		sess.touch(s.now())
	}
}

// Remove closes the session for id, tears down its upstream, and
// publishes a session_closed event with the given reason. It reports
// whether a session was removed; removing an absent id is a no-op.
func (s *Store) Remove(id, reason string) bool {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return s.removeSession(sess, reason)
}

// removeSession deletes exactly the given session object. A stale
// callback from a torn-down connection cannot evict a newer session
// that reused the same id.
func (s *Store) removeSession(sess *Session, reason string) bool {
	s.mu.Lock()
	cur, ok := s.sessions[sess.ID]
	removed := ok && cur == sess
	if removed {
		delete(s.sessions, sess.ID)
	}
	s.mu.Unlock()

	sess.close()
	if !removed {
		return false
	}

	duration := s.now().Sub(sess.CreatedAt)
	s.publisher.PublishSessionClosed(sess.ID, reason, duration)
	s.logger.Info("session closed",
		"session_id", sess.ID,
		"reason", reason,
		"duration", duration.Round(time.Millisecond),
	)
	return true
}

// handleTokens runs the segment pipeline for one engine result: touch
// the activity clock, group words into speaker segments, drop the ones
// already published, then publish, append to the transcript, and let
// the analyzer look.
func (s *Store) handleTokens(sess *Session, words []transcribe.Word) {
	sess.touch(s.now())

	if s.cfg.PauseSplit {
		words = transcribe.AssignSpeakersByPause(words, s.cfg.PauseGap)
	}
	segments := transcribe.GroupWordsBySpeaker(words)
	fresh := sess.dedup.Filter(segments)
	if len(fresh) == 0 {
		return
	}

	s.publisher.PublishTranscription(sess.ID, fresh)
	for _, seg := range fresh {
		sess.transcript.Append(seg)
	}
	if sess.analyzer != nil {
		sess.analyzer.Observe(sess.ID, &sess.transcript)
	}
}

// Sessions returns a snapshot of all live sessions, oldest first.
func (s *Store) Sessions() []Info {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	now := s.now()
	infos := make([]Info, 0, len(list))
	for _, sess := range list {
		last := sess.LastActivity()
		infos = append(infos, Info{
			ID:           sess.ID,
			CreatedAt:    sess.CreatedAt,
			LastActivity: last,
			IdleSeconds:  now.Sub(last).Seconds(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// idle returns the ids of sessions whose last activity is older than
// the idle timeout at the given instant.
func (s *Store) idle(now time.Time) []string {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	var expired []string
	for _, sess := range list {
		if now.Sub(sess.LastActivity()) > s.cfg.IdleTimeout {
			expired = append(expired, sess.ID)
		}
	}
	return expired
}

// Close removes every live session, publishing shutdown close events.
func (s *Store) Close() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Remove(id, ReasonShutdown)
	}
}

// sink adapts upstream callbacks onto one session's pipeline.
type sink struct {
	store *Store
	sess  *Session
}

func (k *sink) OnTokens(words []transcribe.Word) {
	k.store.handleTokens(k.sess, words)
}

func (k *sink) OnError(err error) {
	k.store.logger.Warn("transcription engine error",
		"session_id", k.sess.ID,
		"error", err,
	)
}

func (k *sink) OnClose() {
	k.store.removeSession(k.sess, ReasonUpstreamClosed)
}
