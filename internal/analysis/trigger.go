// Package analysis watches a session's transcript and asks a language model
// for short running commentary once enough new speech has accumulated.
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scribecast/scribecast/internal/llm"
	"github.com/scribecast/scribecast/internal/transcribe"
)

// DefaultSystemPrompt asks the model for the three labeled sections
// ParseResponse understands.
const DefaultSystemPrompt = `You are a quiet observer of a live conversation. You receive the transcript so far as "Speaker N:" lines. Reply with exactly three labeled sections:
Analysis: one or two sentences of private notes on where the conversation is going.
Emoji: a single emoji capturing the current mood.
Message: one short, friendly remark for the audience, at most two sentences.`

// Publisher receives finished commentary. Satisfied by the broadcast
// transports.
type Publisher interface {
	PublishAnalysis(sessionID string, res Result)
}

// Config tunes one session's trigger. Zero values fall back to defaults.
type Config struct {
	MinNewChars  int
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
	SystemPrompt string
}

func (c Config) withDefaults() Config {
	if c.MinNewChars == 0 {
		c.MinNewChars = 10
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 250
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	return c
}

// Trigger fires a model call whenever the transcript grows by more than
// MinNewChars spoken characters since the last firing. One Trigger serves
// one session.
type Trigger struct {
	cfg       Config
	client    llm.Client
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	lastLen int
}

// NewTrigger builds a trigger. A nil client disables analysis: Observe
// becomes a no-op.
func NewTrigger(cfg Config, client llm.Client, publisher Publisher, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		cfg:       cfg.withDefaults(),
		client:    client,
		publisher: publisher,
		logger:    logger,
	}
}

// Observe considers the transcript after new segments were appended. When
// the threshold is crossed, the model call runs on its own goroutine with
// its own timeout, so token processing never waits on the model. A failed
// or empty model call is logged and skipped; the next threshold crossing
// simply tries again.
func (t *Trigger) Observe(sessionID string, tr *transcribe.Transcript) {
	if t.client == nil || t.publisher == nil {
		return
	}

	newLen := tr.TextLen()
	t.mu.Lock()
	if newLen-t.lastLen <= t.cfg.MinNewChars {
		t.mu.Unlock()
		return
	}
	t.lastLen = newLen
	t.mu.Unlock()

	go t.run(sessionID, tr.Format())
}

func (t *Trigger) run(sessionID, transcript string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeout)
	defer cancel()

	raw, err := t.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: t.cfg.SystemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	})
	if err != nil {
		t.logger.Warn("analysis call failed, skipping", "session_id", sessionID, "error", err)
		return
	}

	res := ParseResponse(raw)
	if res.Message == "" && res.Emoji == "" && res.Notes == "" {
		t.logger.Warn("analysis returned nothing usable, skipping", "session_id", sessionID)
		return
	}

	t.publisher.PublishAnalysis(sessionID, res)
}
