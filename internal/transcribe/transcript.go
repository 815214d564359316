package transcribe

import (
	"fmt"
	"strings"
)

// Transcript accumulates the segments published for one session and renders
// them as speaker-labeled lines for downstream analysis. It is not safe for
// concurrent use; each session touches its transcript from a single
// goroutine.
type Transcript struct {
	lines   []line
	textLen int
}

type line struct {
	speaker int
	text    string
}

// Append adds a segment to the transcript. A segment spoken by the same
// speaker as the previous one extends the existing line instead of starting
// a new one.
func (t *Transcript) Append(seg Segment) {
	t.textLen += len(seg.Text)
	if n := len(t.lines); n > 0 && t.lines[n-1].speaker == seg.Speaker {
		t.lines[n-1].text += " " + seg.Text
		return
	}
	t.lines = append(t.lines, line{speaker: seg.Speaker, text: seg.Text})
}

// TextLen reports the total number of spoken characters appended so far,
// independent of speaker labels and line breaks.
func (t *Transcript) TextLen() int {
	return t.textLen
}

// Len reports the number of speaker turns.
func (t *Transcript) Len() int {
	return len(t.lines)
}

// Format renders the transcript as one "Speaker N: text" line per speaker
// turn, in spoken order.
func (t *Transcript) Format() string {
	var b strings.Builder
	for i, l := range t.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Speaker %d: %s", l.speaker, l.text)
	}
	return b.String()
}
