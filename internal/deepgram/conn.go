package deepgram

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle position of a Conn.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions is the set of legal state changes. Anything else is refused.
var transitions = map[State][]State{
	StateConnecting: {StateOpen, StateClosed},
	StateOpen:       {StateClosing, StateClosed},
	StateClosing:    {StateClosed},
	StateClosed:     nil,
}

const (
	writeTimeout = 10 * time.Second
	closeGrace   = 5 * time.Second
)

var (
	keepAliveMsg   = []byte(`{"type":"KeepAlive"}`)
	closeStreamMsg = []byte(`{"type":"CloseStream"}`)
)

// Conn is one live connection to the transcription engine. All socket
// writes go through a single writer goroutine; the reader goroutine parses
// engine events and drives the Handler.
type Conn struct {
	ws        *websocket.Conn
	handler   Handler
	logger    *slog.Logger
	keepAlive time.Duration

	mu    sync.Mutex
	state State

	sendQ     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, next := range transitions[c.state] {
		if next == to {
			c.state = to
			return true
		}
	}
	return false
}

// forceState is for teardown paths where the origin state is unknown.
func (c *Conn) forceState(to State) {
	c.mu.Lock()
	c.state = to
	c.mu.Unlock()
}

// Send queues one audio chunk for the engine. It never blocks: when the
// queue is full the chunk is dropped with a logged warning. Sending on a
// connection that is not open returns ErrNotConnected.
func (c *Conn) Send(chunk []byte) error {
	if c.State() != StateOpen {
		return ErrNotConnected
	}
	select {
	case c.sendQ <- chunk:
		return nil
	default:
		c.logger.Warn("audio send queue full, dropping chunk", "bytes", len(chunk))
		return nil
	}
}

// Close starts a graceful shutdown: the writer drains its queue, tells the
// engine the stream is over, and the socket is released once the engine
// closes its side (or the grace period runs out). Safe to call more than
// once; the Handler's OnClose fires exactly once regardless of how the
// connection ended.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if !c.transition(StateClosing) {
			// Already closed abruptly; nothing to hand back.
			return
		}
		close(c.done)
	})
	return nil
}

func (c *Conn) readLoop() {
	defer c.teardown()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.State() == StateOpen && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("transcription socket closed unexpectedly", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Conn) handleMessage(data []byte) {
	ev, err := parseEvent(data)
	if err != nil {
		c.logger.Warn("discarding malformed engine event", "error", err)
		return
	}

	if ev.Type == eventTypeError {
		c.handler.OnError(fmt.Errorf("engine error: %s", ev.errorText()))
		return
	}

	words := tokensFromEvent(ev)
	if len(words) == 0 {
		return
	}
	c.handler.OnTokens(words)
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case chunk := <-c.sendQ:
			if err := c.write(websocket.BinaryMessage, chunk); err != nil {
				c.fail(err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.TextMessage, keepAliveMsg); err != nil {
				c.fail(err)
				return
			}
		case <-c.done:
			// Flush whatever audio is already queued, then say goodbye.
			for {
				select {
				case chunk := <-c.sendQ:
					if err := c.write(websocket.BinaryMessage, chunk); err != nil {
						c.fail(err)
						return
					}
					continue
				default:
				}
				break
			}
			_ = c.write(websocket.TextMessage, closeStreamMsg)
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

// fail tears the socket down after a write error; the read loop notices the
// closed socket and runs the shared teardown.
func (c *Conn) fail(err error) {
	c.logger.Warn("transcription write failed", "error", err)
	c.forceState(StateClosed)
	_ = c.ws.Close()
}

// teardown runs exactly once, from the read loop's exit path.
func (c *Conn) teardown() {
	c.forceState(StateClosed)
	_ = c.ws.Close()
	c.handler.OnClose()
}
