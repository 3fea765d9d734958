// Package session wires the browser components together for one application
// lifetime: a catalog, a submission assembler, the focused-job tracker, and
// the roster, all sharing one REST client and push dialer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"streamclean/internal/api"
	"streamclean/internal/catalog"
	"streamclean/internal/client"
	"streamclean/internal/config"
	"streamclean/internal/history"
	"streamclean/internal/jobtrack"
	"streamclean/internal/logging"
	"streamclean/internal/notifications"
	"streamclean/internal/push"
	"streamclean/internal/roster"
	"streamclean/internal/submission"
)

// Dependencies are the shared collaborators injected into every component.
// History and Notifier are optional.
type Dependencies struct {
	Client   *client.Client
	Dialer   push.Dialer
	History  *history.Store
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Session owns one instance of each component.
type Session struct {
	Client    *client.Client
	Catalog   *catalog.Catalog
	Assembler *submission.Assembler
	Tracker   *jobtrack.Tracker
	Roster    *roster.Roster
	History   *history.Store

	notifier    notifications.Service
	logger      *slog.Logger
	unsubscribe []func()

	mu        sync.Mutex
	recorded  map[string]api.Status
	observed  map[string]api.Status
	summaries map[string]notifications.Job
	closed    bool
}

// New builds a session from explicit dependencies.
func New(deps Dependencies) (*Session, error) {
	if deps.Client == nil {
		return nil, errors.New("session: client is required")
	}
	if deps.Dialer == nil {
		return nil, errors.New("session: dialer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	cat := catalog.New(deps.Client, logger)
	s := &Session{
		Client:    deps.Client,
		Catalog:   cat,
		Assembler: submission.New(cat),
		Tracker:   jobtrack.New(deps.Client, deps.Dialer, logger),
		Roster:    roster.New(deps.Client, deps.Dialer, logger),
		History:   deps.History,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "session"),
		recorded:  map[string]api.Status{},
		observed:  map[string]api.Status{},
		summaries: map[string]notifications.Job{},
	}
	s.unsubscribe = []func(){
		s.Tracker.Subscribe(s.syncHistory),
		s.Tracker.Subscribe(s.notifyFinished),
	}
	return s, nil
}

// Open builds a session from configuration: an HTTP client against the
// configured server, an event-stream dialer, the local history store, and the
// ntfy notifier.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: config is required")
	}
	c, err := client.New(cfg.Server.BaseURL, cfg.RequestTimeout(), logger)
	if err != nil {
		return nil, err
	}
	// Channels stay open for the life of a job; only the dial is bounded.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.EventsTimeout()
	dialer := push.NewHTTPDialer(&http.Client{Transport: transport}, logger)

	store, err := history.Open(ctx, cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s, err := New(Dependencies{
		Client:   c,
		Dialer:   dialer,
		History:  store,
		Notifier: notifications.NewService(cfg),
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

// Submit assembles the payload from the catalog and starts the job.
func (s *Session) Submit(ctx context.Context) (string, error) {
	req, err := s.Assembler.Build()
	if err != nil {
		return "", err
	}
	jobID, err := s.Tracker.StartJob(ctx, req)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.summaries[jobID] = notifications.Job{ID: jobID, Dir: req.Dir, Files: len(req.Selections)}
	s.mu.Unlock()
	s.record(ctx, jobID, req)
	return jobID, nil
}

// Follow resumes tracking of an existing job.
func (s *Session) Follow(ctx context.Context, jobID string) error {
	return s.Tracker.Resume(ctx, jobID)
}

// Close disconnects both channels and closes the history store.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, cancel := range s.unsubscribe {
		cancel()
	}
	s.Tracker.Disconnect()
	s.Roster.Disconnect()
	if s.History != nil {
		return s.History.Close()
	}
	return nil
}

func (s *Session) record(ctx context.Context, jobID string, req api.ProcessRequest) {
	if s.History == nil {
		return
	}
	if err := s.History.Record(ctx, jobID, req); err != nil {
		s.logger.Warn("history record failed",
			slog.String(logging.FieldJobID, jobID),
			slog.String(logging.FieldEventType, "history_failed"),
			logging.Error(err),
		)
		return
	}
	// Status events may have landed before the row existed.
	s.syncHistory()
}

func (s *Session) syncHistory() {
	if s.History == nil {
		return
	}
	state := s.Tracker.Snapshot()
	if state.ActiveJobID == "" || !(state.Status.Active() || state.Status.Terminal()) {
		return
	}

	s.mu.Lock()
	if s.closed || s.recorded[state.ActiveJobID] == state.Status {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.History.UpdateStatus(context.Background(), state.ActiveJobID, state.Status)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return
	case err != nil:
		s.logger.Warn("history update failed",
			slog.String(logging.FieldJobID, state.ActiveJobID),
			slog.String(logging.FieldEventType, "history_failed"),
			logging.Error(err),
		)
		return
	}
	s.mu.Lock()
	s.recorded[state.ActiveJobID] = state.Status
	s.mu.Unlock()
}

// notifyFinished publishes a job's outcome when it is seen moving into a
// terminal state. Jobs that were already finished when first observed are
// not announced.
func (s *Session) notifyFinished() {
	if !s.notifier.Enabled() {
		return
	}
	state := s.Tracker.Snapshot()
	if state.ActiveJobID == "" || state.Status == "" {
		return
	}

	s.mu.Lock()
	prev, seen := s.observed[state.ActiveJobID]
	s.observed[state.ActiveJobID] = state.Status
	announce := !s.closed && seen && !prev.Terminal() && state.Status.Terminal()
	job, known := s.summaries[state.ActiveJobID]
	s.mu.Unlock()
	if !announce {
		return
	}

	if !known {
		job = s.summaryFromHistory(state.ActiveJobID)
	}
	job.ID = state.ActiveJobID
	job.Status = state.Status
	if err := s.notifier.NotifyJobFinished(context.Background(), job); err != nil {
		s.logger.Warn("notification failed",
			slog.String(logging.FieldJobID, job.ID),
			slog.String(logging.FieldEventType, "notify_failed"),
			logging.Error(err),
		)
	}
}

func (s *Session) summaryFromHistory(jobID string) notifications.Job {
	if s.History == nil {
		return notifications.Job{}
	}
	entry, err := s.History.Get(context.Background(), jobID)
	if err != nil {
		return notifications.Job{}
	}
	return notifications.Job{Dir: entry.Dir, Files: entry.FileCount}
}
