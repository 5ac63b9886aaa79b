package daemonctl_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofrs/flock"

	"cubby/internal/daemon"
	"cubby/internal/daemonctl"
	"cubby/internal/logging"
	"cubby/internal/queue"
	"cubby/internal/testsupport"
	"cubby/internal/workflow"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeStatus struct{ health bool }

func (f *fakeStatus) Status(_ context.Context, withHealth bool) workflow.StatusSummary {
	f.health = withHealth
	return workflow.StatusSummary{
		WorkerID:  "host-1-abcd",
		Running:   true,
		JobCounts: map[queue.JobStatus]int{queue.JobPending: 2, queue.JobFailed: 1},
	}
}

func TestClientStatusAndReady(t *testing.T) {
	source := &fakeStatus{}
	srv := httptest.NewServer(daemon.NewServer("", fakePinger{}, source, logging.NewNop()).Handler())
	defer srv.Close()

	client := daemonctl.NewClient(srv.URL)
	summary, err := client.Status(context.Background(), true)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !source.health {
		t.Fatal("expected health=1 to reach the status source")
	}
	if summary.WorkerID != "host-1-abcd" || !summary.Running {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.JobCounts[queue.JobPending] != 2 || summary.JobCounts[queue.JobFailed] != 1 {
		t.Fatalf("unexpected counts: %+v", summary.JobCounts)
	}
	if err := client.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}

func TestClientReadyReportsStoreError(t *testing.T) {
	srv := httptest.NewServer(daemon.NewServer("", fakePinger{err: errors.New("db gone")}, &fakeStatus{}, logging.NewNop()).Handler())
	defer srv.Close()

	err := daemonctl.NewClient(srv.URL).Ready(context.Background())
	if err == nil {
		t.Fatal("expected readiness failure")
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(daemon.NewServer("", fakePinger{}, &fakeStatus{}, logging.NewNop()).Handler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	_, err := daemonctl.NewClient(addr).Status(context.Background(), false)
	if !errors.Is(err, daemonctl.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestRunningWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}

	n, err := daemonctl.RunningWorkers(cfg)
	if err != nil || n != 0 {
		t.Fatalf("expected no workers, got n=%d err=%v", n, err)
	}

	for _, id := range []string{"worker-a", "worker-b"} {
		holder := flock.New(daemon.LockPath(cfg, id))
		ok, err := holder.TryLock()
		if err != nil || !ok {
			t.Fatalf("TryLock %s: ok=%v err=%v", id, ok, err)
		}
		defer holder.Unlock()
	}
	// A crashed worker leaves its file behind without holding it.
	if err := os.WriteFile(daemon.LockPath(cfg, "crashed"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	n, err = daemonctl.RunningWorkers(cfg)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 workers, got n=%d err=%v", n, err)
	}
}
