// Package server is the HTTP edge: the producer ingest socket, the
// subscriber event socket, and the small session control API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribecast/scribecast/internal/broadcast"
	"github.com/scribecast/scribecast/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options carries the optional pieces of the HTTP surface.
type Options struct {
	Logger *slog.Logger

	// Warnings supplies configuration warnings for /api/status.
	Warnings func() []string
}

// Handler wires all routes onto a mux. The store is the session
// authority; the hub feeds event subscribers.
func Handler(store *session.Store, hub *broadcast.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	registerIngestRoute(mux, store, logger)
	registerEventsRoute(mux, hub, logger)
	registerAPIRoutes(mux, store, opts, time.Now())
	return mux
}
