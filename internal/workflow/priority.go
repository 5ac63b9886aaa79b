package workflow

import (
	"slices"

	"cubby/internal/queue"
)

// unknownRank sorts kinds missing from Priority after every known kind.
const unknownRank = 99

// Priority orders job kinds within a candidate window. Transcription runs
// first so label generation usually finds a transcript.
var Priority = []queue.JobKind{
	queue.KindTranscription,
	queue.KindThumbnailGeneration,
	queue.KindLabelGeneration,
	queue.KindIndexing,
	queue.KindProxyGeneration,
}

// Rank returns kind's position in Priority, or 99.
func Rank(kind queue.JobKind) int {
	if idx := slices.Index(Priority, kind); idx >= 0 {
		return idx
	}
	return unknownRank
}

// SortByPriority orders jobs by Rank, keeping the store's age order within a rank.
func SortByPriority(jobs []*queue.Job) {
	slices.SortStableFunc(jobs, func(a, b *queue.Job) int {
		return Rank(a.Kind) - Rank(b.Kind)
	})
}
