package metrics

import (
	"context"
	"database/sql/driver"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOutcomeCountsByKindAndStatus(t *testing.T) {
	before := testutil.ToFloat64(jobOutcomes.WithLabelValues("transcription", "failed"))
	ObserveOutcome("transcription", "failed", 2*time.Second)
	after := testutil.ToFloat64(jobOutcomes.WithLabelValues("transcription", "failed"))
	if after-before != 1 {
		t.Fatalf("expected outcome counter to advance by 1, got %v", after-before)
	}
}

func TestObserveTickAndReclaim(t *testing.T) {
	ticks := testutil.ToFloat64(schedulerTicks.WithLabelValues(TickIdle))
	reclaimed := testutil.ToFloat64(jobsReclaimed)
	ObserveTick(TickIdle)
	ObserveReclaim()
	if got := testutil.ToFloat64(schedulerTicks.WithLabelValues(TickIdle)) - ticks; got != 1 {
		t.Fatalf("tick delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(jobsReclaimed) - reclaimed; got != 1 {
		t.Fatalf("reclaim delta = %v, want 1", got)
	}
}

func TestQueryMethod(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT id FROM jobs", "select"},
		{"  update jobs SET status = ?", "update"},
		{"", "fallback"},
	}
	for _, tt := range tests {
		if got := queryMethod(tt.query, "fallback"); got != tt.want {
			t.Fatalf("queryMethod(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

type fakeExecer struct{}

func (fakeExecer) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func TestStoreInterceptorMeasuresExec(t *testing.T) {
	before := testutil.ToFloat64(storeOpTotal.WithLabelValues("conn-exec-context"))
	si := &StoreInterceptor{}
	if _, err := si.ConnExecContext(context.Background(), fakeExecer{}, "DELETE FROM labels", nil); err != nil {
		t.Fatalf("ConnExecContext: %v", err)
	}
	if got := testutil.ToFloat64(storeOpTotal.WithLabelValues("conn-exec-context")) - before; got != 1 {
		t.Fatalf("store op delta = %v, want 1", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveClaim("label_generation")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "cubby_jobs_claimed_total") {
		t.Fatalf("metrics output missing claimed counter")
	}
}
