package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/scribecast/scribecast/internal/analysis"
	"github.com/scribecast/scribecast/internal/transcribe"
)

// Hub fans marshaled events out to in-process subscribers, one buffered
// channel per subscriber. A subscriber that cannot keep up loses events
// rather than blocking the pipeline.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// SubscriberCount reports the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) PublishTranscription(sessionID string, segments []transcribe.Segment) {
	if len(segments) == 0 {
		return
	}
	h.broadcastEvent(transcriptionEvent(sessionID, segments))
}

func (h *Hub) PublishAnalysis(sessionID string, res analysis.Result) {
	h.broadcastEvent(analysisEvent(sessionID, res))
}

func (h *Hub) PublishSessionStarted(sessionID string) {
	h.broadcastEvent(sessionStartedEvent(sessionID))
}

func (h *Hub) PublishSessionClosed(sessionID string, reason string, duration time.Duration) {
	h.broadcastEvent(sessionClosedEvent(sessionID, reason, duration))
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("event marshal failed", "error", err)
		return
	}
	h.Broadcast(payload)
}
