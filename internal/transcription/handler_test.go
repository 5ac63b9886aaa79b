package transcription_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cubby/internal/logging"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/services"
	"cubby/internal/testsupport"
	"cubby/internal/transcription"
)

type fakeTool struct {
	mu         sync.Mutex
	audioSize  int
	chunks     int
	durations  map[string]float64
	splitCalls int
}

func (f *fakeTool) Extract(_ context.Context, _ string, dst string) error {
	return os.WriteFile(dst, make([]byte, f.audioSize), 0o644)
}

func (f *fakeTool) Split(_ context.Context, _ string, outDir string, chunkSeconds int) ([]string, error) {
	f.mu.Lock()
	f.splitCalls++
	f.mu.Unlock()
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk seconds %d", chunkSeconds)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var out []string
	for i := range f.chunks {
		path := filepath.Join(outDir, fmt.Sprintf("chunk_%03d.mp3", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

func (f *fakeTool) Duration(_ context.Context, path string) (float64, error) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "chunk_") {
		return f.durations["chunk"], nil
	}
	if d, ok := f.durations[base]; ok {
		return d, nil
	}
	return 0, services.Wrap(services.ErrExternalTool, "test", "probe", base, nil)
}

type fakeProvider struct {
	calls []string
	fn    func(call int) []transcription.Utterance
	err   error
}

func (p *fakeProvider) Transcribe(_ context.Context, audioPath string) ([]transcription.Utterance, error) {
	p.calls = append(p.calls, filepath.Base(audioPath))
	if p.err != nil {
		return nil, p.err
	}
	return p.fn(len(p.calls) - 1), nil
}

type fixture struct {
	store   *queue.Store
	asset   *queue.Asset
	workDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	asset, _ := testsupport.SeedAsset(t, store, "clip.mp4", queue.KindTranscription)
	testsupport.WriteUpload(t, cfg, asset, 64)
	return fixture{store: store, asset: asset, workDir: cfg.Paths.WorkDir}
}

func (f fixture) handler(t *testing.T, tool *fakeTool, provider transcription.Provider, limit int64) *transcription.Handler {
	t.Helper()
	return f.handlerWithStore(t, f.store, tool, provider, limit)
}

func (f fixture) handlerWithStore(t *testing.T, store transcription.Store, tool *fakeTool, provider transcription.Provider, limit int64) *transcription.Handler {
	t.Helper()
	media, err := mediastore.NewLocal(filepath.Join(filepath.Dir(f.workDir), "media"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return transcription.NewHandler(store, media, tool, provider, transcription.Options{
		WorkDir:             f.workDir,
		ChunkSizeLimitBytes: limit,
		SafetyMarginSeconds: 5,
		BatchSize:           2,
		Language:            "en",
	}, logging.NewNop())
}

func TestRunOffsetsChunksMonotonically(t *testing.T) {
	fx := newFixture(t)
	tool := &fakeTool{
		audioSize: 5000,
		chunks:    3,
		durations: map[string]float64{"clip.mp4": 90, "audio.mp3": 100, "chunk": 30},
	}
	provider := &fakeProvider{fn: func(call int) []transcription.Utterance {
		return []transcription.Utterance{
			{Start: 10, End: 20, Text: fmt.Sprintf("chunk %d second", call)},
			{Start: 0, End: 10, Text: fmt.Sprintf("chunk %d first", call)},
		}
	}}
	h := fx.handler(t, tool, provider, 1000)

	if err := h.Run(context.Background(), fx.asset.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tool.splitCalls != 1 || len(provider.calls) != 3 {
		t.Fatalf("split=%d transcribe calls=%v", tool.splitCalls, provider.calls)
	}

	segments, err := fx.store.ListSegments(context.Background(), fx.asset.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	wantStarts := []float64{0, 10, 30, 40, 60, 70}
	if len(segments) != len(wantStarts) {
		t.Fatalf("expected %d segments, got %d", len(wantStarts), len(segments))
	}
	for i, seg := range segments {
		if seg.StartSeconds != wantStarts[i] {
			t.Fatalf("segment %d start = %v, want %v", i, seg.StartSeconds, wantStarts[i])
		}
		if i > 0 && seg.StartSeconds < segments[i-1].StartSeconds {
			t.Fatalf("segments out of order at %d", i)
		}
	}
	if segments[2].Text != "chunk 1 first" || segments[2].StartTimecode != "00:00:30.000" {
		t.Fatalf("unexpected third segment %+v", segments[2])
	}

	asset, err := fx.store.GetAsset(context.Background(), fx.asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.DurationSeconds != 90 {
		t.Fatalf("expected duration 90, got %v", asset.DurationSeconds)
	}
	assertWorkDirEmpty(t, fx.workDir)
}

func TestRunIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	tool := &fakeTool{audioSize: 10, durations: map[string]float64{"clip.mp4": 12, "audio.mp3": 12}}
	provider := &fakeProvider{fn: func(int) []transcription.Utterance {
		return []transcription.Utterance{
			{Start: 0, End: 2, Text: "hello"},
			{Start: 2, End: 4, Text: "  "},
			{Start: 5, End: 5, Text: "zero length"},
			{Start: 4, End: 6, Text: "world"},
		}
	}}
	h := fx.handler(t, tool, provider, 1<<20)

	for i := range 2 {
		if err := h.Run(context.Background(), fx.asset.ID); err != nil {
			t.Fatalf("Run #%d: %v", i+1, err)
		}
	}
	if tool.splitCalls != 0 {
		t.Fatalf("small audio should not be split")
	}
	segments, err := fx.store.ListSegments(context.Background(), fx.asset.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments after two runs, got %d", len(segments))
	}
	transcript, err := fx.store.GetTranscript(context.Background(), fx.asset.ID)
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if transcript.FullText != "hello world" || transcript.Language != "en" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
}

// failingBatchStore fails the failOn-th InsertSegments call.
type failingBatchStore struct {
	*queue.Store
	failOn int
	calls  int
}

func (s *failingBatchStore) InsertSegments(ctx context.Context, transcriptID, assetID string, segments []queue.Segment) error {
	s.calls++
	if s.calls == s.failOn {
		return errors.New("connection reset by peer")
	}
	return s.Store.InsertSegments(ctx, transcriptID, assetID, segments)
}

func TestRunPartialBatchFailureIsRetryable(t *testing.T) {
	fx := newFixture(t)
	tool := &fakeTool{audioSize: 10, durations: map[string]float64{"clip.mp4": 10, "audio.mp3": 10}}
	provider := &fakeProvider{fn: func(int) []transcription.Utterance {
		return []transcription.Utterance{
			{Start: 0, End: 1, Text: "one"},
			{Start: 1, End: 2, Text: "two"},
			{Start: 2, End: 3, Text: "three"},
			{Start: 3, End: 4, Text: "four"},
			{Start: 4, End: 5, Text: "five"},
		}
	}}

	flaky := &failingBatchStore{Store: fx.store, failOn: 2}
	err := fx.handlerWithStore(t, flaky, tool, provider, 1<<20).Run(context.Background(), fx.asset.ID)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), "insert segments") {
		t.Fatalf("expected batch failure in error, got %v", err)
	}
	assertWorkDirEmpty(t, fx.workDir)

	if err := fx.handler(t, tool, provider, 1<<20).Run(context.Background(), fx.asset.ID); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	transcript, err := fx.store.GetTranscript(context.Background(), fx.asset.ID)
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if transcript.FullText != "one two three four five" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
	segments, err := fx.store.ListSegments(context.Background(), fx.asset.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != 5 {
		t.Fatalf("expected 5 segments after rerun, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.Seq != i || seg.TranscriptID != transcript.ID {
			t.Fatalf("segment %d = %+v, want seq %d of transcript %s", i, seg, i, transcript.ID)
		}
	}
}

func TestRunWithNoSpeechSucceeds(t *testing.T) {
	fx := newFixture(t)
	tool := &fakeTool{audioSize: 10, durations: map[string]float64{"clip.mp4": 3, "audio.mp3": 3}}
	provider := &fakeProvider{fn: func(int) []transcription.Utterance { return nil }}
	h := fx.handler(t, tool, provider, 1<<20)

	if err := h.Run(context.Background(), fx.asset.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := fx.store.GetTranscript(context.Background(), fx.asset.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected no transcript, got %v", err)
	}
}

func TestRunProviderFailureIsTransient(t *testing.T) {
	fx := newFixture(t)
	tool := &fakeTool{audioSize: 10, durations: map[string]float64{"clip.mp4": 3, "audio.mp3": 3}}
	provider := &fakeProvider{err: errors.New("429 too many requests")}
	h := fx.handler(t, tool, provider, 1<<20)

	err := h.Run(context.Background(), fx.asset.ID)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	assertWorkDirEmpty(t, fx.workDir)
}

func TestRunMissingSourceIsNotFound(t *testing.T) {
	fx := newFixture(t)
	if err := os.Remove(filepath.Join(filepath.Dir(fx.workDir), "media", "uploads", "clip.mp4")); err != nil {
		t.Fatal(err)
	}
	h := fx.handler(t, &fakeTool{}, &fakeProvider{fn: func(int) []transcription.Utterance { return nil }}, 1<<20)
	if err := h.Run(context.Background(), fx.asset.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNormalizeSortsStably(t *testing.T) {
	got := transcription.Normalize([]transcription.Utterance{
		{Start: 5, End: 6, Text: "b"},
		{Start: 1, End: 2, Text: " a "},
		{Start: 5, End: 7, Text: "c"},
	})
	if len(got) != 3 || got[0].Text != "a" || got[1].Text != "b" || got[2].Text != "c" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected work dir cleaned up, found %d entries", len(entries))
	}
}
