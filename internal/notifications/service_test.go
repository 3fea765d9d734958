package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamclean/internal/api"
	"streamclean/internal/config"
	"streamclean/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if svc.Enabled() {
		t.Fatal("expected noop service without a topic")
	}
	if err := svc.NotifyJobFinished(context.Background(), notifications.Job{ID: "job-1", Status: api.StatusCompleted}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capture struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	captured := &capture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		captured.calls++
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		captured.body = string(body)
		if status != http.StatusOK {
			http.Error(w, "topic closed", status)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestNtfyServiceFormatsJobOutcomes(t *testing.T) {
	tests := []struct {
		name           string
		job            notifications.Job
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "completed with files",
			job:           notifications.Job{ID: "job-1", Status: api.StatusCompleted, Dir: "/movies", Files: 2},
			expectTitle:   "streamclean - Job Complete",
			expectMessage: "✅ Cleaned 2 file(s) in /movies\nJob: job-1",
			expectTags:    "streamclean,job,completed",
		},
		{
			name:          "completed without files",
			job:           notifications.Job{ID: "job-2", Status: api.StatusCompleted, Dir: "/tv"},
			expectTitle:   "streamclean - Job Complete",
			expectMessage: "✅ Cleaned /tv\nJob: job-2",
			expectTags:    "streamclean,job,completed",
		},
		{
			name:           "failed",
			job:            notifications.Job{ID: "job-3", Status: api.StatusFailed},
			expectTitle:    "streamclean - Job Failed",
			expectMessage:  "❌ Failed to clean media\nJob: job-3",
			expectTags:     "streamclean,job,failed",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newNtfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL

			svc := notifications.NewService(&cfg)
			if err := svc.NotifyJobFinished(context.Background(), tc.job); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSkipsNonTerminalStatus(t *testing.T) {
	server, captured := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	for _, status := range []api.Status{api.StatusPending, api.StatusProcessing, ""} {
		if err := svc.NotifyJobFinished(context.Background(), notifications.Job{ID: "job-1", Status: status}); err != nil {
			t.Fatalf("unexpected error for %q: %v", status, err)
		}
	}
	if captured.calls != 0 {
		t.Fatalf("expected no requests, got %d", captured.calls)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for rejected notification")
	}
}
