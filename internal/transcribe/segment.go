package transcribe

// Word is one finalized token from the transcription engine. Speaker is the
// engine's diarization label; callers that receive unattributed words assign
// speaker 0 before grouping.
type Word struct {
	Text    string
	Start   float64
	End     float64
	Speaker int
}

// Segment is a maximal run of consecutive words attributed to one speaker.
type Segment struct {
	Speaker   int     `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// GroupWordsBySpeaker merges consecutive same-speaker words into segments.
// Word order is preserved and every word lands in exactly one segment.
// The transform is pure: identical input yields identical output.
func GroupWordsBySpeaker(words []Word) []Segment {
	if len(words) == 0 {
		return nil
	}

	var segments []Segment
	current := Segment{
		Speaker:   words[0].Speaker,
		Text:      words[0].Text,
		StartTime: words[0].Start,
		EndTime:   words[0].End,
	}

	for _, w := range words[1:] {
		if w.Speaker == current.Speaker {
			current.Text += " " + w.Text
			current.EndTime = w.End
			continue
		}
		segments = append(segments, current)
		current = Segment{
			Speaker:   w.Speaker,
			Text:      w.Text,
			StartTime: w.Start,
			EndTime:   w.End,
		}
	}

	return append(segments, current)
}

// AssignSpeakersByPause is a rough fallback diarizer for input with no real
// speaker attribution: it alternates between speakers 0 and 1 whenever the
// silence between adjacent words exceeds gap seconds. Words that already
// carry a non-default speaker are returned unchanged, as is the input slice.
func AssignSpeakersByPause(words []Word, gap float64) []Word {
	if len(words) == 0 {
		return nil
	}

	out := make([]Word, len(words))
	copy(out, words)

	for _, w := range words {
		if w.Speaker != 0 {
			return out
		}
	}

	speaker := 0
	for i := 1; i < len(out); i++ {
		if out[i].Start-out[i-1].End > gap {
			speaker = 1 - speaker
		}
		out[i].Speaker = speaker
	}
	return out
}
