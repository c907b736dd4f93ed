package search

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Segment is a run of text that is either inside or outside a match.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// Highlight splits text into alternating matched and unmatched segments.
// Spans index the NFC form of text, as returned by Match. Out of range spans
// are clipped.
func Highlight(text string, spans []Span) []Segment {
	runes := []rune(norm.NFC.String(text))
	if len(runes) == 0 {
		return nil
	}

	var (
		segments []Segment
		pos      int
	)
	emit := func(end int, match bool) {
		if end <= pos {
			return
		}
		segments = append(segments, Segment{Text: string(runes[pos:end]), Match: match})
		pos = end
	}

	for _, span := range spans {
		start := max(span.Start, pos)
		end := min(span.End+1, len(runes))
		if start >= end {
			continue
		}
		emit(start, false)
		emit(end, true)
	}
	emit(len(runes), false)
	return segments
}

// Mark renders segments as plain text, wrapping matches with open and close.
// The CLI uses it with terminal escape codes.
func Mark(segments []Segment, open, close string) string {
	var sb strings.Builder
	for _, s := range segments {
		if s.Match {
			sb.WriteString(open)
			sb.WriteString(s.Text)
			sb.WriteString(close)
			continue
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}
