package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/scribecast/scribecast/internal/session"
)

// registerIngestRoute mounts the producer socket. A producer names its
// session with the session query parameter or takes a generated id,
// streams raw audio as binary frames, and steers the session with JSON
// control frames.
func registerIngestRoute(mux *http.ServeMux, store *session.Store, logger *slog.Logger) {
	mux.HandleFunc("GET /ws/ingest", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ingest upgrade failed", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		if !validSessionID(sessionID) {
			_ = writeFrame(conn, newErrorFrame("", "invalid session id"))
			return
		}

		if err := writeFrame(conn, newSessionFrame(sessionID)); err != nil {
			return
		}
		logger.Info("producer connected", "session_id", sessionID)

		// A producer that vanishes without a stop control still ends
		// its session.
		defer store.Remove(sessionID, session.ReasonClientStop)

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("producer connection error", "session_id", sessionID, "error", err)
				}
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				forwardChunk(conn, store, r, sessionID, data, logger)
			case websocket.TextMessage:
				handleControl(conn, store, r, sessionID, data, logger)
			}
		}
	})
}

// forwardChunk sends one audio chunk into the session, creating it on
// the first chunk. Failures go back to the producer as error frames;
// the socket stays open so the producer can retry or restart.
func forwardChunk(conn *websocket.Conn, store *session.Store, r *http.Request, sessionID string, chunk []byte, logger *slog.Logger) {
	sess, err := store.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		logger.Warn("session create failed", "session_id", sessionID, "error", err)
		_ = writeFrame(conn, newErrorFrame(sessionID, "transcription engine unavailable"))
		return
	}
	if err := sess.SendChunk(chunk); err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			_ = writeFrame(conn, newErrorFrame(sessionID, "session closed"))
			return
		}
		logger.Warn("audio forward failed", "session_id", sessionID, "error", err)
	}
}

func handleControl(conn *websocket.Conn, store *session.Store, r *http.Request, sessionID string, data []byte, logger *slog.Logger) {
	var ctl controlFrame
	if err := json.Unmarshal(data, &ctl); err != nil {
		logger.Warn("discarding malformed control frame", "session_id", sessionID, "error", err)
		return
	}

	switch ctl.Type {
	case "start":
		if _, err := store.GetOrCreate(r.Context(), sessionID); err != nil {
			logger.Warn("session create failed", "session_id", sessionID, "error", err)
			_ = writeFrame(conn, newErrorFrame(sessionID, "transcription engine unavailable"))
		}
	case "stop":
		store.Remove(sessionID, session.ReasonClientStop)
		_ = writeFrame(conn, newStoppedFrame(sessionID))
	default:
		logger.Warn("ignoring unknown control frame", "session_id", sessionID, "control", ctl.Type)
	}
}
