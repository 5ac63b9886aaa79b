package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"cubby/internal/queue"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("cubbyd", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "cubbyd:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("cubbyd", statusOK, "running", true)
	want := text.Colors{text.FgGreen}.Sprint(renderStatusLine("cubbyd", statusOK, "running", false))
	if got != want {
		t.Fatalf("expected green line %q, got %q", want, got)
	}
}

func TestRenderJobsTableOrdersByPriority(t *testing.T) {
	var buf bytes.Buffer
	jobs := []*queue.Job{
		{ID: "j-label", Kind: queue.KindLabelGeneration, Status: queue.JobPending},
		{ID: "j-transcribe", Kind: queue.KindTranscription, Status: queue.JobPending},
	}
	table := renderJobsTable(&buf, jobs)
	if strings.Index(table, "j-transcribe") > strings.Index(table, "j-label") {
		t.Fatalf("expected transcription first:\n%s", table)
	}
	if strings.ContainsRune(table, '╭') {
		t.Fatalf("expected plain style for non-terminal output:\n%s", table)
	}
	if jobs[0].ID != "j-label" {
		t.Fatal("renderJobsTable must not reorder the caller's slice")
	}
}

func TestResolveKinds(t *testing.T) {
	kinds, err := resolveKinds(nil, []string{"transcription", "transcription", "indexing"})
	if err != nil {
		t.Fatalf("resolveKinds: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != queue.KindTranscription || kinds[1] != queue.KindIndexing {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	kinds, err = resolveKinds([]string{"thumbnail_generation"}, []string{"transcription"})
	if err != nil || len(kinds) != 1 || kinds[0] != queue.KindThumbnailGeneration {
		t.Fatalf("flag kinds should win, got %v (%v)", kinds, err)
	}
}

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("a  b\nc", 10); got != "a b c" {
		t.Fatalf("got %q", got)
	}
	if got := truncateCell("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("got %q", got)
	}
}
