package labeling

import (
	"fmt"
	"strings"

	"cubby/internal/queue"
	"cubby/internal/textutil"
)

// SystemPrompt is the fixed contract given to the model.
const SystemPrompt = `You are a video content analyzer. Given a transcript with timestamps, identify meaningful labels for scenes, topics, and key moments. Return a JSON array of labels only, with no explanation and no markdown.

Each label object must have:
- "name": concise label (2-6 words, title case). Examples: "Product Demo", "Q&A Session", "Technical Deep Dive", "Introduction", "Customer Story"
- "start_seconds": float, start of this segment
- "end_seconds": float, end of this segment
- "confidence": float 0.0-1.0

Rules:
- Cover the full duration with non-overlapping segments
- Prefer meaningful topic/scene labels over generic ones
- 5-20 labels for a typical video; scale with length
- Return only valid JSON, no other text`

// TranscriptText renders segments as "[12.0s–15.5s] text" lines and keeps
// at most limit runes from the start.
func TranscriptText(segments []queue.Segment, limit int) string {
	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = fmt.Sprintf("[%.1fs–%.1fs] %s", seg.StartSeconds, seg.EndSeconds, seg.Text)
	}
	return textutil.TruncateRunes(strings.Join(lines, "\n"), limit)
}

// UserPrompt builds the user message for a video of the given duration.
func UserPrompt(durationSeconds float64, transcript string) string {
	return fmt.Sprintf("Video duration: %.1fs\n\nTranscript:\n%s", durationSeconds, transcript)
}
