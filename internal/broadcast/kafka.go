package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/scribecast/scribecast/internal/analysis"
	"github.com/scribecast/scribecast/internal/transcribe"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to one topic per event family: transcription and
// lifecycle events on the transcription topic, commentary on the analysis
// topic. Messages are keyed by session id, so consumers see each session's
// events in order within a topic. Writes are fire-and-forget: delivery
// failures are logged, never retried or surfaced to the pipeline.
type Kafka struct {
	writer             kafkaWriter
	transcriptionTopic string
	analysisTopic      string
	logger             *slog.Logger
}

func NewKafka(brokers []string, transcriptionTopic, analysisTopic string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka delivery failed", "messages", len(messages), "error", err)
			}
		},
	}

	return &Kafka{
		writer:             writer,
		transcriptionTopic: transcriptionTopic,
		analysisTopic:      analysisTopic,
		logger:             logger,
	}
}

func (k *Kafka) PublishTranscription(sessionID string, segments []transcribe.Segment) {
	if len(segments) == 0 {
		return
	}
	k.produce(k.transcriptionTopic, sessionID, transcriptionEvent(sessionID, segments))
}

func (k *Kafka) PublishAnalysis(sessionID string, res analysis.Result) {
	k.produce(k.analysisTopic, sessionID, analysisEvent(sessionID, res))
}

func (k *Kafka) PublishSessionStarted(sessionID string) {
	k.produce(k.transcriptionTopic, sessionID, sessionStartedEvent(sessionID))
}

func (k *Kafka) PublishSessionClosed(sessionID string, reason string, duration time.Duration) {
	k.produce(k.transcriptionTopic, sessionID, sessionClosedEvent(sessionID, reason, duration))
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func (k *Kafka) produce(topic, sessionID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		k.logger.Warn("event marshal failed", "topic", topic, "error", err)
		return
	}

	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(sessionID),
		Value: payload,
	})
	if err != nil {
		k.logger.Warn("kafka publish failed", "topic", topic, "session_id", sessionID, "error", err)
	}
}
