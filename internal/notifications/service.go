package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"streamclean/internal/api"
	"streamclean/internal/config"
)

const userAgent = "streamclean/0.1.0"

// Service defines the notification surface used by the session.
type Service interface {
	NotifyJobFinished(ctx context.Context, job Job) error
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// Job describes a finished job. Dir and Files are optional.
type Job struct {
	ID     string
	Status api.Status
	Dir    string
	Files  int
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
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

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) NotifyJobFinished(ctx context.Context, job Job) error {
	var data payload
	switch job.Status {
	case api.StatusCompleted:
		data = payload{
			title:   "streamclean - Job Complete",
			message: "✅ " + describe(job, "Cleaned"),
			tags:    []string{"streamclean", "job", "completed"},
		}
	case api.StatusFailed:
		data = payload{
			title:    "streamclean - Job Failed",
			message:  "❌ " + describe(job, "Failed to clean"),
			tags:     []string{"streamclean", "job", "failed"},
			priority: "high",
		}
	default:
		return nil
	}
	return n.send(ctx, data)
}

func describe(job Job, verb string) string {
	dir := strings.TrimSpace(job.Dir)
	var b strings.Builder
	b.WriteString(verb)
	switch {
	case dir != "" && job.Files > 0:
		fmt.Fprintf(&b, " %d file(s) in %s", job.Files, dir)
	case dir != "":
		fmt.Fprintf(&b, " %s", dir)
	default:
		b.WriteString(" media")
	}
	fmt.Fprintf(&b, "\nJob: %s", job.ID)
	return b.String()
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "streamclean - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"streamclean", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyJobFinished(context.Context, Job) error { return nil }
func (noopService) TestNotification(context.Context) error       { return nil }
func (noopService) Enabled() bool                                { return false }
