package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestTranscribeRunsUVXAndLoadsSegments(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "chunk_001.mp3")
	if err := os.WriteFile(audio, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	var gotName string
	var gotArgs []string
	svc := NewService(Config{Model: "small", Language: "EN"}).WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		outDir := args[slices.Index(args, "--output_dir")+1]
		payload := `{"segments":[{"text":" hi","start":0.5,"end":1.5},{"text":"there","start":1.5,"end":2.0}]}`
		return os.WriteFile(filepath.Join(outDir, "chunk_001.json"), []byte(payload), 0o644)
	})

	segments, err := svc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if gotName != UVXCommand {
		t.Fatalf("expected uvx, got %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, fragment := range []string{"whisperx " + audio, "--model small", "--output_format json", "--language en", "--device cpu"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args %q", fragment, joined)
		}
	}
	if len(segments) != 2 || segments[0].Start != 0.5 || segments[1].Text != "there" {
		t.Fatalf("unexpected segments %+v", segments)
	}
}

func TestTranscribePropagatesRunnerError(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "a.mp3")
	boom := errors.New("exit status 1")
	svc := NewService(Config{}).WithCommandRunner(func(context.Context, string, ...string) error { return boom })
	if _, err := svc.Transcribe(context.Background(), audio); !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestBuildArgsCUDAAndPyannote(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf"})
	joined := strings.Join(svc.buildArgs("in.mp3", "/out"), " ")
	for _, fragment := range []string{"--index-url " + CUDAIndexURL, "--vad_method pyannote", "--hf_token hf", "--device cuda"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
	if strings.Contains(joined, "--compute_type") {
		t.Fatalf("cuda runs should not force compute type: %q", joined)
	}
}
