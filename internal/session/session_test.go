package session_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"streamclean/internal/api"
	"streamclean/internal/jobtrack"
	"streamclean/internal/logging"
	"streamclean/internal/session"
	"streamclean/internal/submission"
	"streamclean/internal/testsupport"
)

func moviesBackend(t *testing.T) *testsupport.Backend {
	t.Helper()
	backend := testsupport.NewBackend(t)
	backend.SetTree(api.DirectoryNode{RelPath: "/", Name: "media", Children: []api.DirectoryNode{
		{RelPath: "/movies", Name: "movies", Children: []api.DirectoryNode{}},
	}})
	backend.SetList("/", api.DirectoryContent{Files: []api.MediaFile{}, Languages: []string{}})
	backend.SetList("/movies", api.DirectoryContent{
		Files: []api.MediaFile{
			{
				RelPath:         "/movies/a.mkv",
				Name:            "a.mkv",
				AudioStreams:    []api.Stream{{ID: 1, Language: "en"}, {ID: 2, Language: "fr"}},
				SubtitleStreams: []api.Stream{{ID: 10, Language: "en"}},
			},
			{
				RelPath:         "/movies/b.mkv",
				Name:            "b.mkv",
				AudioStreams:    []api.Stream{{ID: 1, Language: "fr"}},
				SubtitleStreams: []api.Stream{},
			},
		},
		Languages: []string{"en", "fr"},
	})
	return backend
}

func openSession(t *testing.T, backend *testsupport.Backend, opts ...testsupport.ConfigOption) *session.Session {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithBaseURL(backend.URL())}, opts...)...)
	s, err := session.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitFollowsJobToCompletion(t *testing.T) {
	backend := moviesBackend(t)
	s := openSession(t, backend)
	ctx := context.Background()

	if err := s.Catalog.LoadTree(ctx); err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if err := s.Catalog.LoadDirectory(ctx, "/movies"); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if err := s.Catalog.SetIncludeFile("/movies/b.mkv", false); err != nil {
		t.Fatalf("SetIncludeFile: %v", err)
	}
	s.Catalog.ToggleLanguage("fr", "audio", false)

	jobID, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	submitted := backend.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(submitted))
	}
	req := submitted[0]
	if req.Dir != "/movies" || req.OutputDir != "/movies" || len(req.Selections) != 1 {
		t.Fatalf("unexpected payload %+v", req)
	}
	if ids := req.Selections[0].AudioStreamIDs; len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("unexpected audio ids %v", ids)
	}

	backend.WaitJobSubscribers(jobID, 1)
	backend.PushStatus(jobID, api.JobStatus{Status: api.StatusProcessing, OverallPercent: 50, CurrentFile: api.StringPtr("a.mkv"), Logs: []string{"encoding a.mkv"}})
	waitFor(t, "processing status", func() bool { return s.Tracker.Snapshot().Progress == 50 })

	backend.PushStatus(jobID, api.JobStatus{Status: api.StatusCompleted, OverallPercent: 100})
	waitFor(t, "completion", func() bool { return s.Tracker.Snapshot().Status == api.StatusCompleted })

	state := s.Tracker.Snapshot()
	if state.Connected || s.Tracker.Handle() != nil {
		t.Fatal("expected channel closed after completion")
	}
	if len(state.Logs) != 1 || state.Logs[0] != "encoding a.mkv" {
		t.Fatalf("logs should survive events without logs: %v", state.Logs)
	}

	waitFor(t, "history update", func() bool {
		entry, err := s.History.Get(ctx, jobID)
		return err == nil && entry.Status == api.StatusCompleted && entry.FinishedAt != nil
	})
}

func TestSubmitRequiresDirectory(t *testing.T) {
	backend := moviesBackend(t)
	s := openSession(t, backend)

	if _, err := s.Submit(context.Background()); !errors.Is(err, submission.ErrNoDirectory) {
		t.Fatalf("expected ErrNoDirectory, got %v", err)
	}
	if len(backend.Submitted()) != 0 {
		t.Fatal("nothing should be submitted")
	}
}

func TestSubmitRejected(t *testing.T) {
	backend := moviesBackend(t)
	backend.RejectProcess(http.StatusInternalServerError)
	s := openSession(t, backend)
	ctx := context.Background()

	if err := s.Catalog.LoadDirectory(ctx, "/movies"); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	_, err := s.Submit(ctx)
	var subErr *jobtrack.SubmissionError
	if !errors.As(err, &subErr) || err.Error() != "Failed to start process" {
		t.Fatalf("expected submission error, got %v", err)
	}
	if got := s.Tracker.Snapshot(); got.Error != "Failed to start process" || got.ActiveJobID != "" {
		t.Fatalf("unexpected tracker state %+v", got)
	}
	entries, err := s.History.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("rejected submissions should not be recorded")
	}
}

func TestRosterOverHTTP(t *testing.T) {
	backend := moviesBackend(t)
	s := openSession(t, backend)

	s.Roster.ConnectEvents()
	backend.WaitRosterSubscribers(1)
	backend.PushJobs([]api.ActiveJob{
		{JobID: "a", Dir: "/x", Status: api.StatusPending},
		{JobID: "b", Dir: "/y", Status: api.StatusProcessing},
	})
	waitFor(t, "roster update", func() bool { return len(s.Roster.Jobs()) == 2 })
	if ordered := s.Roster.Ordered(); ordered[0].JobID != "b" {
		t.Fatalf("expected processing first, got %+v", ordered)
	}

	backend.Close()
	waitFor(t, "roster disconnect", func() bool { return !s.Roster.Connected() })
	if len(s.Roster.Jobs()) != 2 {
		t.Fatal("roster should keep the last list after the channel drops")
	}
}

type ntfyRecorder struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (r *ntfyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func newNtfyRecorder(t *testing.T) (*ntfyRecorder, string) {
	t.Helper()
	rec := &ntfyRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.titles = append(rec.titles, r.Header.Get("Title"))
		rec.bodies = append(rec.bodies, string(body))
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return rec, server.URL
}

func TestFinishedJobIsAnnounced(t *testing.T) {
	backend := moviesBackend(t)
	rec, topic := newNtfyRecorder(t)
	s := openSession(t, backend, testsupport.WithNtfyTopic(topic))
	ctx := context.Background()

	if err := s.Catalog.LoadDirectory(ctx, "/movies"); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	jobID, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	backend.WaitJobSubscribers(jobID, 1)
	backend.PushStatus(jobID, api.JobStatus{Status: api.StatusProcessing, OverallPercent: 50})
	backend.PushStatus(jobID, api.JobStatus{Status: api.StatusCompleted, OverallPercent: 100})

	waitFor(t, "notification", func() bool { return rec.count() == 1 })
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.titles[0] != "streamclean - Job Complete" {
		t.Fatalf("unexpected title %q", rec.titles[0])
	}
	if want := "✅ Cleaned 2 file(s) in /movies\nJob: " + jobID; rec.bodies[0] != want {
		t.Fatalf("unexpected body %q, want %q", rec.bodies[0], want)
	}
}

func TestAlreadyFinishedJobIsNotAnnounced(t *testing.T) {
	backend := moviesBackend(t)
	backend.SetJob("job-old", api.JobStatus{Status: api.StatusCompleted, OverallPercent: 100})
	rec, topic := newNtfyRecorder(t)
	s := openSession(t, backend, testsupport.WithNtfyTopic(topic))

	if err := s.Follow(context.Background(), "job-old"); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if got := s.Tracker.Snapshot().Status; got != api.StatusCompleted {
		t.Fatalf("expected completed snapshot, got %q", got)
	}
	// The notifier runs synchronously on the tracker's change callbacks.
	if rec.count() != 0 {
		t.Fatalf("expected no notification, got %d", rec.count())
	}
}
