package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subforge/internal/config"
	"subforge/internal/queue"
)

const userAgent = "subforge/0.1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job *queue.Job) error
	NotifyJobFailed(ctx context.Context, job *queue.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *queue.Job) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Subtitles ready: %s", job.FileName)
	if count := len(job.Subtitles); count > 0 {
		fmt.Fprintf(&b, " (%d subtitles)", count)
	}
	if job.Validation != nil && !job.Validation.IsValid {
		fmt.Fprintf(&b, "\n%d validation problems", len(job.Validation.Errors))
	}
	if job.SubtitlePath != "" {
		fmt.Fprintf(&b, "\nFile: %s", job.SubtitlePath)
	}
	tags := []string{"subforge", "transcription", "completed"}
	if job.Validation != nil && !job.Validation.IsValid {
		tags = append(tags, "warning")
	}
	return n.send(ctx, payload{
		title:   "subforge - Complete",
		message: b.String(),
		tags:    tags,
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *queue.Job) error {
	reason := strings.TrimSpace(job.Error)
	if reason == "" {
		reason = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "subforge - Failed",
		message:  fmt.Sprintf("Transcription failed: %s\n%s", job.FileName, reason),
		tags:     []string{"subforge", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "subforge - Test",
		message:  "Notification system test",
		tags:     []string{"subforge", "test"},
		priority: "low",
	})
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

func (noopService) NotifyJobCompleted(context.Context, *queue.Job) error { return nil }
func (noopService) NotifyJobFailed(context.Context, *queue.Job) error    { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}
