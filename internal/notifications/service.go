package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cubby/internal/config"
	"cubby/internal/queue"
	"cubby/internal/textutil"
)

const userAgent = "cubby/0.1"

// maxErrorRunes bounds the job error quoted in a failure push.
const maxErrorRunes = 300

// Service defines the notification surface exposed to the scheduler.
type Service interface {
	NotifyAssetReady(ctx context.Context, asset *queue.Asset) error
	NotifyAssetFailed(ctx context.Context, asset *queue.Asset, lastError string) error
	NotifyJobsReclaimed(ctx context.Context, count int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		assetReady:  cfg.AssetReady,
		assetFailed: cfg.AssetFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	assetReady  bool
	assetFailed bool
}

func (n *ntfyService) NotifyAssetReady(ctx context.Context, asset *queue.Asset) error {
	if !n.assetReady || asset == nil {
		return nil
	}
	message := fmt.Sprintf("Ready: %s", assetName(asset))
	if asset.DurationSeconds > 0 {
		message += fmt.Sprintf(" (%s)", textutil.FormatTimecode(asset.DurationSeconds))
	}
	return n.send(ctx, payload{
		title:   "Cubby - Asset Ready",
		message: message,
		tags:    []string{"cubby", "asset", "ready"},
	})
}

func (n *ntfyService) NotifyAssetFailed(ctx context.Context, asset *queue.Asset, lastError string) error {
	if !n.assetFailed || asset == nil {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Failed: ")
	builder.WriteString(assetName(asset))
	if lastError = strings.TrimSpace(lastError); lastError != "" {
		builder.WriteString("\n")
		builder.WriteString(textutil.TruncateRunes(lastError, maxErrorRunes))
	}
	return n.send(ctx, payload{
		title:    "Cubby - Asset Failed",
		message:  builder.String(),
		tags:     []string{"cubby", "asset", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyJobsReclaimed(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Cubby - Jobs Reclaimed",
		message: fmt.Sprintf("Reclaimed %d job(s) from a stalled worker", count),
		tags:    []string{"cubby", "scheduler", "reclaim"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Cubby - Test",
		message:  "Notification system test",
		tags:     []string{"cubby", "test"},
		priority: "low",
	})
}

func assetName(asset *queue.Asset) string {
	name := strings.TrimSpace(asset.Filename)
	if name == "" {
		name = asset.ID
	}
	if ws := strings.TrimSpace(asset.WorkspaceID); ws != "" {
		return fmt.Sprintf("%s [%s]", name, ws)
	}
	return name
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAssetReady(context.Context, *queue.Asset) error          { return nil }
func (noopService) NotifyAssetFailed(context.Context, *queue.Asset, string) error { return nil }
func (noopService) NotifyJobsReclaimed(context.Context, int) error                { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
