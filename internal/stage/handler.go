package stage

import (
	"context"
)

// Handler runs the work for one job kind against one asset. Handlers must be
// safe to run again after a failed or interrupted attempt.
type Handler interface {
	Run(ctx context.Context, assetID string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, assetID string) error

func (f HandlerFunc) Run(ctx context.Context, assetID string) error {
	return f(ctx, assetID)
}

// HealthChecker is implemented by handlers that can report readiness of their
// external dependencies.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Health is one stage's readiness as shown by /readyz and status.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Report turns a dependency check result into a Health record.
func Report(name string, err error) Health {
	if err != nil {
		return Health{Name: name, Detail: err.Error()}
	}
	return Health{Name: name, Ready: true}
}

// Probe calls dep's HealthCheck when it has one. A nil dep is not ready.
func Probe(ctx context.Context, name string, dep any) Health {
	if dep == nil {
		return Health{Name: name, Detail: "not configured"}
	}
	if checker, ok := dep.(interface{ HealthCheck(context.Context) error }); ok {
		return Report(name, checker.HealthCheck(ctx))
	}
	return Report(name, nil)
}
