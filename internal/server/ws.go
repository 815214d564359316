package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribecast/scribecast/internal/broadcast"
)

// registerEventsRoute mounts the subscriber socket: a hello frame, then
// every event the hub broadcasts. Subscribers filter by session_id on
// their side.
func registerEventsRoute(mux *http.ServeMux, hub *broadcast.Hub, logger *slog.Logger) {
	mux.HandleFunc("GET /ws/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("events upgrade failed", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		// Subscribe before the hello goes out, so nothing published
		// after the hello can be missed.
		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		hello := connectionFrame{
			Event:     broadcast.NewEvent("connection", time.Now().UTC()),
			Connected: true,
		}
		if err := writeFrame(conn, hello); err != nil {
			return
		}

		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})
}
