// Package daemonctl lets the CLI find out whether a cubbyd worker is running
// and read its status from the worker HTTP surface.
package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"cubby/internal/config"
	"cubby/internal/daemon"
	"cubby/internal/workflow"
)

// ErrUnreachable means nothing answered on the configured bind address.
var ErrUnreachable = errors.New("worker HTTP surface unreachable")

// Client queries a worker's /status and /readyz endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient targets bind, a host:port or a full URL.
func NewClient(bind string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{baseURL: base, httpClient: &http.Client{Timeout: 5 * time.Second}}
}

// Status fetches the scheduler summary. withHealth asks the worker to run
// stage health checks as well.
func (c *Client) Status(ctx context.Context, withHealth bool) (*workflow.StatusSummary, error) {
	path := "/status"
	if withHealth {
		path += "?health=1"
	}
	body, status, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("status: http %d: %s", status, strings.TrimSpace(string(body)))
	}
	var summary workflow.StatusSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("status: decode: %w", err)
	}
	return &summary, nil
}

// Ready reports whether the worker's store answers pings.
func (c *Client) Ready(ctx context.Context) error {
	body, status, err := c.get(ctx, "/readyz")
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	var reply struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &reply)
	if reply.Error == "" {
		reply.Error = fmt.Sprintf("http %d", status)
	}
	return fmt.Errorf("worker not ready: %s", reply.Error)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isRefused(err) {
			return nil, 0, fmt.Errorf("%w at %s", ErrUnreachable, c.baseURL)
		}
		return nil, 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s: %w", path, err)
	}
	return body, resp.StatusCode, nil
}

func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// RunningWorkers counts the local workers holding a lock under cfg's log
// directory. It works whether or not the HTTP surface is enabled. Lock files
// nobody holds are left behind by crashed workers and are ignored.
func RunningWorkers(cfg *config.Config) (int, error) {
	if cfg == nil {
		return 0, errors.New("config is required")
	}
	paths, err := filepath.Glob(daemon.LockPattern(cfg))
	if err != nil {
		return 0, fmt.Errorf("list worker locks: %w", err)
	}
	running := 0
	for _, path := range paths {
		lock := flock.New(path)
		ok, err := lock.TryLock()
		if err != nil {
			return running, fmt.Errorf("check lock %s: %w", path, err)
		}
		if !ok {
			running++
			continue
		}
		if err := lock.Unlock(); err != nil {
			return running, fmt.Errorf("release lock %s: %w", path, err)
		}
	}
	return running, nil
}
