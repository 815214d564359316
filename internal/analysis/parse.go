package analysis

import "strings"

// Result is one round of model commentary, split into the labeled sections
// the system prompt asks for. Text always carries the raw model output.
type Result struct {
	Text    string `json:"text"`
	Emoji   string `json:"emoji,omitempty"`
	Message string `json:"message"`
	Notes   string `json:"notes,omitempty"`
}

const (
	markerAnalysis = "analysis:"
	markerEmoji    = "emoji:"
	markerMessage  = "message:"
)

// ParseResponse splits a model reply into its Analysis/Emoji/Message
// sections. Markers are matched case-insensitively at the start of a line
// and a section runs until the next marker. A reply without any markers
// degrades gracefully: the whole text becomes the message and no emoji is
// set.
func ParseResponse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}
	}

	sections := map[string][]string{}
	current := ""
	found := false

	for _, line := range strings.Split(trimmed, "\n") {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		switch {
		case strings.HasPrefix(lower, markerAnalysis):
			current = markerAnalysis
			found = true
			stripped = strings.TrimSpace(stripped[len(markerAnalysis):])
		case strings.HasPrefix(lower, markerEmoji):
			current = markerEmoji
			found = true
			stripped = strings.TrimSpace(stripped[len(markerEmoji):])
		case strings.HasPrefix(lower, markerMessage):
			current = markerMessage
			found = true
			stripped = strings.TrimSpace(stripped[len(markerMessage):])
		}

		if current == "" || stripped == "" {
			continue
		}
		sections[current] = append(sections[current], stripped)
	}

	if !found {
		return Result{Text: raw, Message: trimmed}
	}

	res := Result{
		Text:    raw,
		Notes:   strings.Join(sections[markerAnalysis], " "),
		Message: strings.Join(sections[markerMessage], " "),
	}

	res.Emoji = firstEmoji(strings.Join(sections[markerEmoji], " "))
	if res.Emoji == "" {
		res.Emoji = firstEmoji(res.Message)
	}

	return res
}

// firstEmoji returns the first emoji-like rune in s, or "". A leading emoji
// is found first by construction, so callers need no separate prefix check.
func firstEmoji(s string) string {
	for _, r := range s {
		if isEmojiRune(r) {
			return string(r)
		}
	}
	return ""
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs through symbols-extended
		return true
	case r >= 0x1F000 && r <= 0x1F0FF: // mahjong, dominoes, cards
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0x2B50 || r == 0x2B55: // star, heavy circle
		return true
	}
	return false
}
