package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cubby/internal/config"
	"cubby/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cubbyd.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")
	lines, offset, err := logs.Tail(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestTailLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "a\nhalf")
	lines, offset, err := logs.Tail(path, 10, logs.Filter{})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 1 || offset != 2 {
		t.Fatalf("expected one complete line at offset 2, got %#v offset=%d", lines, offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	lines, offset, err := logs.Tail(filepath.Join(t.TempDir(), "none.log"), 5, logs.Filter{})
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestFilterMatchesConsoleAndJSON(t *testing.T) {
	path := writeLog(t, `2026-01-01T00:00:00Z INFO scheduler: job completed asset_id=a1 job_id=j1
2026-01-01T00:00:01Z INFO scheduler: job completed asset_id=a2 job_id=j2
{"ts":"2026-01-01T00:00:02Z","level":"info","msg":"x","asset_id":"a1","job_id":"j3"}
`)
	lines, _, err := logs.Tail(path, 10, logs.Filter{AssetID: "a1"})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected two a1 lines, got %#v", lines)
	}
	lines, _, _ = logs.Tail(path, 10, logs.Filter{AssetID: "a1", JobID: "j3"})
	if len(lines) != 1 {
		t.Fatalf("expected one a1/j3 line, got %#v", lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Tail(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, logs.Filter{}, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected followed lines: %#v", got)
	}
}

func TestWorkerLogPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/cubby"
	if got := logs.WorkerLogPath(&cfg); got != "/var/log/cubby/cubbyd.log" {
		t.Fatalf("unexpected path %q", got)
	}
}
