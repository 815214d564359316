package deepgram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scribecast/scribecast/internal/transcribe"
)

const eventTypeError = "Error"

// liveEvent is the subset of the engine's result message the adapter cares
// about. Anything it does not recognize is ignored.
type liveEvent struct {
	Type        string   `json:"type"`
	Channel     *channel `json:"channel"`
	IsFinal     bool     `json:"is_final"`
	Start       float64  `json:"start"`
	Duration    float64  `json:"duration"`
	Description string   `json:"description"`
	Message     string   `json:"message"`
}

type channel struct {
	Alternatives []alternative `json:"alternatives"`
}

type alternative struct {
	Transcript string     `json:"transcript"`
	Words      []wireWord `json:"words"`
}

type wireWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        *int    `json:"speaker"`
}

func parseEvent(data []byte) (liveEvent, error) {
	var ev liveEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return liveEvent{}, fmt.Errorf("decode engine event: %w", err)
	}
	return ev, nil
}

func (ev liveEvent) errorText() string {
	if ev.Description != "" {
		return ev.Description
	}
	if ev.Message != "" {
		return ev.Message
	}
	return "unspecified engine error"
}

// tokensFromEvent turns a result event into finalized words. Events with no
// channel (metadata, keepalive echoes), interim results, and empty
// transcripts yield nothing. A final result that carries a transcript but
// no word list becomes a single word spanning the event, attributed to
// speaker 0, so unattributed engines still produce segments.
func tokensFromEvent(ev liveEvent) []transcribe.Word {
	if ev.Channel == nil || len(ev.Channel.Alternatives) == 0 {
		return nil
	}
	if !ev.IsFinal {
		return nil
	}

	alt := ev.Channel.Alternatives[0]
	transcript := strings.TrimSpace(alt.Transcript)
	if transcript == "" {
		return nil
	}

	if len(alt.Words) == 0 {
		return []transcribe.Word{{
			Text:  transcript,
			Start: ev.Start,
			End:   ev.Start + ev.Duration,
		}}
	}

	words := make([]transcribe.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		speaker := 0
		if w.Speaker != nil {
			speaker = *w.Speaker
		}
		words = append(words, transcribe.Word{
			Text:    text,
			Start:   w.Start,
			End:     w.End,
			Speaker: speaker,
		})
	}
	return words
}
