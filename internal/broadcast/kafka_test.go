package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/scribecast/scribecast/internal/analysis"
	"github.com/scribecast/scribecast/internal/transcribe"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) all() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.messages...)
}

func newTestKafka(w kafkaWriter) *Kafka {
	return &Kafka{
		writer:             w,
		transcriptionTopic: "transcripts",
		analysisTopic:      "commentary",
		logger:             testLogger(),
	}
}

func TestKafkaTopicRouting(t *testing.T) {
	w := &fakeWriter{}
	k := newTestKafka(w)

	k.PublishTranscription("sess-1", []transcribe.Segment{{Speaker: 0, Text: "hello"}})
	k.PublishAnalysis("sess-1", analysis.Result{Text: "raw", Message: "hi"})
	k.PublishSessionStarted("sess-1")
	k.PublishSessionClosed("sess-1", "idle", time.Minute)

	msgs := w.all()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}

	wantTopics := []string{"transcripts", "commentary", "transcripts", "transcripts"}
	for i, msg := range msgs {
		if msg.Topic != wantTopics[i] {
			t.Errorf("message %d: topic %q, want %q", i, msg.Topic, wantTopics[i])
		}
		if string(msg.Key) != "sess-1" {
			t.Errorf("message %d: key %q, want session id", i, msg.Key)
		}
	}
}

func TestKafkaMessagePayloadShape(t *testing.T) {
	w := &fakeWriter{}
	k := newTestKafka(w)

	k.PublishTranscription("sess-7", []transcribe.Segment{
		{Speaker: 1, Text: "order matters", StartTime: 3.1, EndTime: 4.0},
	})

	msgs := w.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	var payload TranscriptionEvent
	if err := json.Unmarshal(msgs[0].Value, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Type != "transcription" || payload.SessionID != "sess-7" {
		t.Errorf("payload header %+v", payload.Event)
	}
	if len(payload.Segments) != 1 || payload.Segments[0].Text != "order matters" {
		t.Errorf("payload segments %#v", payload.Segments)
	}
}

func TestKafkaEmptySegmentsSkipped(t *testing.T) {
	w := &fakeWriter{}
	k := newTestKafka(w)

	k.PublishTranscription("sess-1", nil)
	if got := len(w.all()); got != 0 {
		t.Fatalf("expected no messages for empty segments, got %d", got)
	}
}

func TestKafkaWriteFailureDoesNotPropagate(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	k := newTestKafka(w)

	// Must not panic or surface the error to the caller.
	k.PublishTranscription("sess-1", []transcribe.Segment{{Text: "x"}})
	k.PublishSessionClosed("sess-1", "idle", time.Second)
}

func TestKafkaClose(t *testing.T) {
	w := &fakeWriter{}
	k := newTestKafka(w)
	if err := k.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !w.closed {
		t.Fatal("writer not closed")
	}
}
