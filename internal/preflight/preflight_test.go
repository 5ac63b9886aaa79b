package preflight_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cubby/internal/config"
	"cubby/internal/preflight"
	"cubby/internal/services"
	"cubby/internal/testsupport"
)

func TestCheckWorkDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work", "nested")
	result := preflight.CheckWorkDir("work", dir, 1)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to be created: %v", err)
	}
}

func TestCheckWorkDirRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckWorkDir("work", f, 1); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWorkDirRequiresFreeSpace(t *testing.T) {
	result := preflight.CheckWorkDir("work", t.TempDir(), 1<<62)
	if result.Passed {
		t.Fatal("expected failure for impossible free-space requirement")
	}
	if !strings.Contains(result.Detail, "free, need") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckWorkDirRequiresPath(t *testing.T) {
	if result := preflight.CheckWorkDir("work", "  ", 1); result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRequirementsFollowProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if got := len(preflight.Requirements(cfg)); got != 2 {
		t.Fatalf("expected ffmpeg and ffprobe only, got %d requirements", got)
	}
	cfg.Transcription.Provider = config.ProviderWhisperX
	reqs := preflight.Requirements(cfg)
	if len(reqs) != 3 || reqs[2].Command != "uvx" {
		t.Fatalf("expected uvx requirement for whisperx, got %+v", reqs)
	}
}

func TestCheckBinariesUsesPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	for _, result := range preflight.CheckBinaries(cfg) {
		if !result.Passed {
			t.Fatalf("expected %s to resolve, got %s", result.Name, result.Detail)
		}
	}
}

func TestRunLocalReportsMissingKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithAPIKeys("", ""))
	results := preflight.RunLocal(cfg)

	missing := map[string]bool{}
	for _, r := range preflight.Failures(results) {
		missing[r.Name] = true
	}
	if !missing["Transcription API key"] || !missing["Labeling API key"] {
		t.Fatalf("expected both keys reported missing, got %+v", results)
	}

	err := preflight.Err(results)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunLocalSkipsTranscriptionKeyForWhisperX(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe", "uvx"), testsupport.WithAPIKeys("", "key"))
	cfg.Transcription.Provider = config.ProviderWhisperX
	for _, r := range preflight.RunLocal(cfg) {
		if r.Name == "Transcription API key" {
			t.Fatalf("whisperx should not require a transcription key: %+v", r)
		}
	}
}

func TestErrNilWhenAllPass(t *testing.T) {
	results := []preflight.Result{
		{Name: "a", Passed: true},
		{Name: "b", Optional: true},
	}
	if err := preflight.Err(results); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	cfg := config.Labeling{APIKey: "good-key", BaseURL: srv.URL, Model: "test-model"}
	if result := preflight.CheckLLM(context.Background(), cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg.APIKey = "bad-key"
	if result := preflight.CheckLLM(context.Background(), cfg); result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckWhisper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	result := preflight.CheckWhisper(context.Background(), config.Transcription{APIKey: "k", BaseURL: srv.URL})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := preflight.CheckWhisper(context.Background(), config.Transcription{BaseURL: srv.URL}); result.Passed {
		t.Fatal("expected failure without API key")
	}
}

func TestCheckMediaStoreLocal(t *testing.T) {
	root := t.TempDir()
	result := preflight.CheckMediaStore(context.Background(), config.Storage{Backend: config.BackendLocal, LocalRoot: root})
	if !result.Passed || result.Name != "Media store (local)" {
		t.Fatalf("unexpected result: %+v", result)
	}
	missing := preflight.CheckMediaStore(context.Background(), config.Storage{Backend: config.BackendLocal, LocalRoot: filepath.Join(root, "nope")})
	if missing.Passed {
		t.Fatal("expected failure for missing root")
	}
}

func TestCheckScratchReportsLeftovers(t *testing.T) {
	root := t.TempDir()
	if r := preflight.CheckScratch(root); !r.Passed || r.Detail != "none" {
		t.Fatalf("expected clean work dir, got %+v", r)
	}
	if err := os.MkdirAll(filepath.Join(root, "thumbnail-a-1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r := preflight.CheckScratch(root)
	if !r.Passed || !r.Optional || !strings.HasPrefix(r.Detail, "1 left") {
		t.Fatalf("unexpected result %+v", r)
	}
}
