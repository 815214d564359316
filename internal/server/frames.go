package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribecast/scribecast/internal/broadcast"
)

// Socket-local frames. Unlike broadcast events these never leave the
// one connection they are written to.

// sessionFrame is the hello sent to a producer, telling it which
// session id its audio lands in.
type sessionFrame struct {
	broadcast.Event
	SessionID string `json:"session_id"`
}

// connectionFrame is the hello sent to an event subscriber.
type connectionFrame struct {
	broadcast.Event
	Connected bool `json:"connected"`
}

// stoppedFrame acknowledges a stop control.
type stoppedFrame struct {
	broadcast.Event
	SessionID string `json:"session_id"`
}

// errorFrame reports a failure to the producer without closing the
// socket.
type errorFrame struct {
	broadcast.Event
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error"`
}

// controlFrame is a producer-to-server text message.
type controlFrame struct {
	Type string `json:"type"`
}

func writeFrame(conn *websocket.Conn, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func newSessionFrame(sessionID string) sessionFrame {
	return sessionFrame{
		Event:     broadcast.NewEvent("session", time.Now().UTC()),
		SessionID: sessionID,
	}
}

func newStoppedFrame(sessionID string) stoppedFrame {
	return stoppedFrame{
		Event:     broadcast.NewEvent("stopped", time.Now().UTC()),
		SessionID: sessionID,
	}
}

func newErrorFrame(sessionID, msg string) errorFrame {
	return errorFrame{
		Event:     broadcast.NewEvent("error", time.Now().UTC()),
		SessionID: sessionID,
		Error:     msg,
	}
}
