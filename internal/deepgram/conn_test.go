package deepgram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribecast/scribecast/internal/transcribe"
)

type captureHandler struct {
	mu     sync.Mutex
	tokens [][]transcribe.Word
	errs   []error
	closes int

	tokenSig chan struct{}
	closeSig chan struct{}
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		tokenSig: make(chan struct{}, 16),
		closeSig: make(chan struct{}, 4),
	}
}

func (h *captureHandler) OnTokens(words []transcribe.Word) {
	h.mu.Lock()
	h.tokens = append(h.tokens, words)
	h.mu.Unlock()
	select {
	case h.tokenSig <- struct{}{}:
	default:
	}
}

func (h *captureHandler) OnError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *captureHandler) OnClose() {
	h.mu.Lock()
	h.closes++
	h.mu.Unlock()
	select {
	case h.closeSig <- struct{}{}:
	default:
	}
}

func (h *captureHandler) tokenBatches() [][]transcribe.Word {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]transcribe.Word(nil), h.tokens...)
}

func (h *captureHandler) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func waitSig(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateConnecting, StateOpen, true},
		{StateConnecting, StateClosed, true},
		{StateConnecting, StateClosing, false},
		{StateOpen, StateClosing, true},
		{StateOpen, StateClosed, true},
		{StateOpen, StateConnecting, false},
		{StateClosing, StateClosed, true},
		{StateClosing, StateOpen, false},
		{StateClosed, StateOpen, false},
		{StateClosed, StateClosing, false},
	}

	for _, tt := range tests {
		c := &Conn{state: tt.from}
		if got := c.transition(tt.to); got != tt.ok {
			t.Errorf("%v -> %v: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateConnecting: "connecting",
		StateOpen:       "open",
		StateClosing:    "closing",
		StateClosed:     "closed",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestHandleMessageTolerance(t *testing.T) {
	h := newCaptureHandler()
	c := &Conn{state: StateOpen, handler: h, logger: discardLogger()}

	c.handleMessage([]byte(`{"type":"Results","channel":null,"is_final":true}`))
	c.handleMessage([]byte(`{"type":"Metadata"}`))
	c.handleMessage([]byte(`this is not json`))
	if got := h.tokenBatches(); len(got) != 0 {
		t.Fatalf("expected no token batches, got %d", len(got))
	}

	c.handleMessage([]byte(`{"type":"Error","description":"rate limited"}`))
	h.mu.Lock()
	errCount := len(h.errs)
	h.mu.Unlock()
	if errCount != 1 {
		t.Fatalf("expected 1 surfaced error, got %d", errCount)
	}

	c.handleMessage([]byte(`{
		"channel": {"alternatives": [{"transcript": "still works", "words": []}]},
		"is_final": true
	}`))
	if got := h.tokenBatches(); len(got) != 1 {
		t.Fatalf("expected 1 token batch after garbage, got %d", len(got))
	}
}

// fakeEngine upgrades incoming connections, echoes a canned result for every
// audio chunk, and records control frames.
type fakeEngine struct {
	upgrader websocket.Upgrader
	result   string

	auth    chan string
	query   chan string
	control chan string
}

func newFakeEngine(result string) *fakeEngine {
	return &fakeEngine{
		result:  result,
		auth:    make(chan string, 1),
		query:   make(chan string, 1),
		control: make(chan string, 8),
	}
}

func (e *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case e.auth <- r.Header.Get("Authorization"):
	default:
	}
	select {
	case e.query <- r.URL.RawQuery:
	default:
	}

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			if err := ws.WriteMessage(websocket.TextMessage, []byte(e.result)); err != nil {
				return
			}
		case websocket.TextMessage:
			e.control <- string(data)
		}
	}
}

func TestConnLifecycle(t *testing.T) {
	result := `{
		"type": "Results",
		"channel": {"alternatives": [{"transcript": "hello world", "words": [
			{"word": "hello", "punctuated_word": "hello", "start": 0, "end": 0.5, "speaker": 0},
			{"word": "world", "punctuated_word": "world", "start": 0.5, "end": 1.0, "speaker": 0}
		]}]},
		"is_final": true
	}`
	engine := newFakeEngine(result)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	h := newCaptureHandler()
	opts := Options{
		APIKey:    "test-key",
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		KeepAlive: time.Minute,
		Logger:    discardLogger(),
	}
	opts.Punctuate = true
	opts.Diarize = true

	conn, err := Dial(context.Background(), opts, h)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if got := conn.State(); got != StateOpen {
		t.Fatalf("expected open state after dial, got %v", got)
	}

	select {
	case auth := <-engine.auth:
		if auth != "Token test-key" {
			t.Errorf("expected Token auth header, got %q", auth)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake")
	}
	query := <-engine.query
	for _, want := range []string{"encoding=linear16", "sample_rate=16000", "channels=1", "punctuate=true", "diarize=true"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}

	if err := conn.Send([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitSig(t, h.tokenSig, "tokens")

	batches := h.tokenBatches()
	if len(batches) == 0 || len(batches[0]) != 2 {
		t.Fatalf("expected a 2-word batch, got %#v", batches)
	}
	if batches[0][0].Text != "hello" {
		t.Errorf("got first word %q", batches[0][0].Text)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case frame := <-engine.control:
		if !strings.Contains(frame, "CloseStream") {
			t.Errorf("expected CloseStream control frame, got %q", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CloseStream")
	}

	waitSig(t, h.closeSig, "close callback")
	if got := conn.State(); got != StateClosed {
		t.Errorf("expected closed state, got %v", got)
	}

	// A second Close must not fire the callback again.
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := h.closeCount(); got != 1 {
		t.Errorf("expected exactly one close callback, got %d", got)
	}

	if err := conn.Send([]byte{0x03}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestConnAbruptServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	h := newCaptureHandler()
	opts := Options{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		KeepAlive: time.Minute,
		Logger:    discardLogger(),
	}

	conn, err := Dial(context.Background(), opts, h)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	waitSig(t, h.closeSig, "close callback")
	if got := conn.State(); got != StateClosed {
		t.Errorf("expected closed state after server hangup, got %v", got)
	}
	if got := h.closeCount(); got != 1 {
		t.Errorf("expected exactly one close callback, got %d", got)
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := Options{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		DialTimeout: time.Second,
		Logger:      discardLogger(),
	}
	if _, err := Dial(context.Background(), opts, newCaptureHandler()); err == nil {
		t.Fatal("expected dial error, got nil")
	}
}

func TestBuildURLSpeakerHints(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSpeakers = 2
	opts.MaxSpeakers = 6
	opts = opts.withDefaults()

	endpoint, err := opts.buildURL()
	if err != nil {
		t.Fatalf("buildURL failed: %v", err)
	}
	for _, want := range []string{"min_speakers=2", "max_speakers=6", "model=nova-2", "language=en-US"} {
		if !strings.Contains(endpoint, want) {
			t.Errorf("url %q missing %q", endpoint, want)
		}
	}

	opts.MinSpeakers = 0
	opts.MaxSpeakers = 0
	endpoint, err = opts.buildURL()
	if err != nil {
		t.Fatalf("buildURL failed: %v", err)
	}
	if strings.Contains(endpoint, "speakers") {
		t.Errorf("zero hints should be omitted, got %q", endpoint)
	}
}
