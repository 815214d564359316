package broadcast

import "github.com/scribecast/scribecast/internal/transcribe"

// Deduper suppresses segments that were already published for a session, so
// overlapping engine re-reports do not replay identical segments to
// subscribers. A segment that grew since it was last seen (same start,
// longer text) is not a duplicate and passes through as a replacement.
//
// One Deduper serves one session and is driven from that session's event
// goroutine; it is not safe for concurrent use.
type Deduper struct {
	seen map[segmentKey]struct{}
}

type segmentKey struct {
	speaker    int
	start, end float64
	text       string
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[segmentKey]struct{})}
}

// Filter returns the segments not yet published, in input order, and marks
// them as published.
func (d *Deduper) Filter(segments []transcribe.Segment) []transcribe.Segment {
	var fresh []transcribe.Segment
	for _, seg := range segments {
		key := segmentKey{
			speaker: seg.Speaker,
			start:   seg.StartTime,
			end:     seg.EndTime,
			text:    seg.Text,
		}
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.seen[key] = struct{}{}
		fresh = append(fresh, seg)
	}
	return fresh
}
