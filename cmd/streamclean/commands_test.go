package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"streamclean/internal/api"
)

func TestTreeCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "tree")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	requireContains(t, out, "media/")
	requireContains(t, out, "├── movies/")
	requireContains(t, out, "│   └── classics/")
	requireContains(t, out, "└── tv/")
}

func TestListCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "ls", "/movies")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	requireContains(t, out, "Directory: /movies")
	requireContains(t, out, "a.mkv")
	requireContains(t, out, "1:eng, 2:fre")
	requireContains(t, out, "eng (English), fre (French)")

	out, _, err = env.run(t, "ls", "/movies", "--json")
	if err != nil {
		t.Fatalf("ls --json: %v", err)
	}
	var content api.DirectoryContent
	if err := json.Unmarshal([]byte(out), &content); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if content.Dir != "/movies" || len(content.Files) != 2 {
		t.Fatalf("unexpected json %+v", content)
	}

	if _, _, err := env.run(t, "ls", "/missing"); err == nil || err.Error() != "Failed to fetch list" {
		t.Fatalf("expected fetch list failure, got %v", err)
	}
}

func TestProcessDetached(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "process", "/movies", "--drop-audio", "fr", "--exclude", "b.mkv", "--output", "/clean", "--detach")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "Submitted job job-1 (1 file(s) from /movies to /clean)")

	submitted := env.backend.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(submitted))
	}
	req := submitted[0]
	if req.OutputDir != "/clean" || len(req.Selections) != 1 || req.Selections[0].RelPath != "/movies/a.mkv" {
		t.Fatalf("unexpected payload %+v", req)
	}
	if !slices.Equal(req.Selections[0].AudioStreamIDs, []int{1}) || !slices.Equal(req.Selections[0].SubtitleStreamIDs, []int{3}) {
		t.Fatalf("unexpected stream ids %+v", req.Selections[0])
	}
	if !slices.Equal(req.AudioLanguages, []string{"eng", "fre"}) {
		t.Fatalf("unexpected languages %v", req.AudioLanguages)
	}

	out, _, err = env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "job-1")
	requireContains(t, out, "/movies")
}

func TestProcessDryRunAndValidation(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "process", "/movies", "--drop", "eng", "--keep-lang", "fr", "--dry-run")
	if err != nil {
		t.Fatalf("process --dry-run: %v", err)
	}
	requireContains(t, out, "~1:eng")
	requireContains(t, out, "~3:eng")
	requireContains(t, out, "Languages: fre (French)")
	if len(env.backend.Submitted()) != 0 {
		t.Fatal("dry run must not submit")
	}

	if _, _, err := env.run(t, "process", "/movies", "--drop", "de"); err == nil {
		t.Fatal("expected error for unlisted language")
	}
	if _, _, err := env.run(t, "process", "/movies", "--exclude", "zzz.mkv"); err == nil {
		t.Fatal("expected error for unknown file")
	}
	if _, _, err := env.run(t, "process", "/movies", "--output", ""); err == nil {
		t.Fatal("expected error for empty output dir")
	}
	if _, _, err := env.run(t, "process", "/movies", "--exclude", "a.mkv", "--exclude", "b.mkv"); err == nil {
		t.Fatal("expected error when every file is excluded")
	}
}

func TestProcessFollowsUntilCompleted(t *testing.T) {
	env := setupCLITestEnv(t)

	wait := env.runAsync(t, "process", "/movies")
	env.backend.WaitJobSubscribers("job-1", 1)
	env.backend.PushStatus("job-1", api.JobStatus{Status: api.StatusProcessing, OverallPercent: 50, CurrentFile: api.StringPtr("a.mkv"), Logs: []string{"encoding a.mkv"}})
	env.backend.PushStatus("job-1", api.JobStatus{Status: api.StatusCompleted, OverallPercent: 100, Logs: []string{"encoding a.mkv", "done"}})

	out, err := wait()
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "Submitted job job-1")
	requireContains(t, out, "  | encoding a.mkv")
	requireContains(t, out, "  | done")
	requireContains(t, out, "completed")
}

func TestProcessRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.RejectProcess(500)

	_, _, err := env.run(t, "process", "/movies", "--detach")
	if err == nil || err.Error() != "Failed to start process" {
		t.Fatalf("expected submission failure, got %v", err)
	}
}

func TestJobCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.SetJob("job-7", api.JobStatus{
		Status:         api.StatusProcessing,
		OverallPercent: 25,
		CurrentFile:    api.StringPtr("a.mkv"),
		Dir:            "/movies",
		Files:          []string{"a.mkv", "b.mkv"},
		Logs:           []string{"started"},
	})

	out, _, err := env.run(t, "job", "job-7")
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	requireContains(t, out, "Status:   processing")
	requireContains(t, out, "25.0%")
	requireContains(t, out, "Current:  a.mkv")
	requireContains(t, out, "  | started")

	if _, _, err := env.run(t, "job", "missing"); err == nil || err.Error() != "Failed to fetch job" {
		t.Fatalf("expected fetch job failure, got %v", err)
	}

	env.backend.SetJob("job-8", api.JobStatus{Status: api.StatusFailed, OverallPercent: 10})
	out, _, err = env.run(t, "job", "job-8", "--follow")
	if err == nil {
		t.Fatal("expected failure for failed job")
	}
	requireContains(t, out, "failed")
}

func TestJobFollowStreams(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.SetJob("job-3", api.JobStatus{Status: api.StatusPending})

	wait := env.runAsync(t, "job", "job-3", "--follow")
	env.backend.WaitJobSubscribers("job-3", 1)
	env.backend.PushStatus("job-3", api.JobStatus{Status: api.StatusCompleted, OverallPercent: 100})

	out, err := wait()
	if err != nil {
		t.Fatalf("job --follow: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "completed")
}

func TestJobsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	wait := env.runAsync(t, "jobs")
	env.backend.WaitRosterSubscribers(1)
	env.backend.PushJobs([]api.ActiveJob{
		{JobID: "job-1", Dir: "/movies", Status: api.StatusPending, FirstFile: api.StringPtr("a.mkv")},
		{JobID: "job-2", Dir: "/tv", Status: api.StatusProcessing, OverallPercent: 42},
	})

	out, err := wait()
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "job-1")
	requireContains(t, out, "42.0%")
	requireContains(t, out, "a.mkv")
	if strings.Index(out, "job-2") > strings.Index(out, "job-1") {
		t.Fatalf("processing job should be listed first:\n%s", out)
	}
}

func TestCancelCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.SetJob("job-1", api.JobStatus{Status: api.StatusPending})
	env.backend.SetJob("job-2", api.JobStatus{Status: api.StatusProcessing})

	out, _, err := env.run(t, "cancel", "job-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Cancelled job job-1")

	out, _, err = env.run(t, "cancel", "job-2")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "was not cancelled")
	requireNotContains(t, out, "Cancelled job")
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	if _, _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists")
	}

	out, _, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "base_url")
	requireContains(t, out, env.backend.URL())
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No jobs recorded")
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")

	var titles []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles = append(titles, r.Header.Get("Title"))
		w.WriteHeader(http.StatusOK)
	}))
	defer ntfy.Close()

	f, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	fmt.Fprintf(f, "\n[notifications]\nntfy_topic = '%s'\n", ntfy.URL)
	_ = f.Close()

	out, _, err = env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if len(titles) != 1 || titles[0] != "streamclean - Test" {
		t.Fatalf("unexpected ntfy requests %v", titles)
	}
}
