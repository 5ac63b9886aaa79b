package transcription

import (
	"slices"
	"strings"

	"cubby/internal/queue"
	"cubby/internal/textutil"
)

// Shift moves utterances by offset seconds.
func Shift(utterances []Utterance, offset float64) []Utterance {
	out := make([]Utterance, len(utterances))
	for i, u := range utterances {
		out[i] = Utterance{Start: u.Start + offset, End: u.End + offset, Text: u.Text}
	}
	return out
}

// Normalize trims text, drops utterances with empty text or end <= start and
// sorts the rest stably by start time.
func Normalize(utterances []Utterance) []Utterance {
	out := make([]Utterance, 0, len(utterances))
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" || u.End <= u.Start {
			continue
		}
		out = append(out, Utterance{Start: u.Start, End: u.End, Text: text})
	}
	slices.SortStableFunc(out, func(a, b Utterance) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
	return out
}

// ToSegments numbers utterances and renders their timecodes.
func ToSegments(utterances []Utterance) []queue.Segment {
	segments := make([]queue.Segment, len(utterances))
	for i, u := range utterances {
		segments[i] = queue.Segment{
			Seq:           i,
			StartSeconds:  u.Start,
			EndSeconds:    u.End,
			StartTimecode: textutil.FormatTimecode(u.Start),
			EndTimecode:   textutil.FormatTimecode(u.End),
			Text:          u.Text,
		}
	}
	return segments
}

// FullText joins utterance text with single spaces.
func FullText(utterances []Utterance) string {
	parts := make([]string, len(utterances))
	for i, u := range utterances {
		parts[i] = u.Text
	}
	return strings.Join(parts, " ")
}
