// Package deepgram streams session audio to the Deepgram live-listening API
// over a websocket and reports finalized words back through a Handler.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribecast/scribecast/internal/transcribe"
)

// ErrNotConnected is returned by Send when the connection is not open.
var ErrNotConnected = errors.New("transcription connection not open")

const DefaultURL = "wss://api.deepgram.com/v1/listen"

// Handler receives adapter callbacks. OnTokens and OnError are called from
// the connection's read goroutine, so calls for one connection never
// overlap. OnClose fires exactly once, after the socket is gone.
type Handler interface {
	OnTokens(words []transcribe.Word)
	OnError(err error)
	OnClose()
}

// Options configure one live transcription connection.
type Options struct {
	APIKey   string
	URL      string
	Model    string
	Language string

	Punctuate bool
	Diarize   bool

	// Advisory speaker-count hints for diarization; omitted when zero.
	MinSpeakers int
	MaxSpeakers int

	Encoding   string
	SampleRate int
	Channels   int

	SendQueueSize int
	KeepAlive     time.Duration
	DialTimeout   time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns Options with punctuation and diarization enabled
// and the audio format the ingress edge relays (16 kHz mono PCM).
func DefaultOptions() Options {
	return Options{
		URL:         DefaultURL,
		Model:       "nova-2",
		Language:    "en-US",
		Punctuate:   true,
		Diarize:     true,
		MinSpeakers: 1,
		MaxSpeakers: 4,
	}
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.Model == "" {
		o.Model = "nova-2"
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	if o.Encoding == "" {
		o.Encoding = "linear16"
	}
	if o.SampleRate == 0 {
		o.SampleRate = 16000
	}
	if o.Channels == 0 {
		o.Channels = 1
	}
	if o.SendQueueSize == 0 {
		o.SendQueueSize = 32
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = 5 * time.Second
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) buildURL() (string, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return "", fmt.Errorf("parse engine url: %w", err)
	}

	q := u.Query()
	q.Set("model", o.Model)
	q.Set("language", o.Language)
	q.Set("punctuate", strconv.FormatBool(o.Punctuate))
	q.Set("diarize", strconv.FormatBool(o.Diarize))
	q.Set("encoding", o.Encoding)
	q.Set("sample_rate", strconv.Itoa(o.SampleRate))
	q.Set("channels", strconv.Itoa(o.Channels))
	if o.MinSpeakers > 0 {
		q.Set("min_speakers", strconv.Itoa(o.MinSpeakers))
	}
	if o.MaxSpeakers > 0 {
		q.Set("max_speakers", strconv.Itoa(o.MaxSpeakers))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Dial opens a live transcription connection. The returned Conn is open and
// ready for Send; handler callbacks start immediately.
func Dial(ctx context.Context, opts Options, handler Handler) (*Conn, error) {
	opts = opts.withDefaults()

	endpoint, err := opts.buildURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if opts.APIKey != "" {
		header.Set("Authorization", "Token "+opts.APIKey)
	}

	c := &Conn{
		state:     StateConnecting,
		handler:   handler,
		logger:    opts.Logger,
		sendQ:     make(chan []byte, opts.SendQueueSize),
		done:      make(chan struct{}),
		keepAlive: opts.KeepAlive,
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		c.forceState(StateClosed)
		return nil, fmt.Errorf("dial transcription engine: %w", err)
	}

	c.ws = ws
	c.transition(StateOpen)

	go c.readLoop()
	go c.writePump()

	return c, nil
}
