package jobtrack

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"streamclean/internal/api"
	"streamclean/internal/logging"
	"streamclean/internal/observe"
	"streamclean/internal/push"
)

// StatusEvent is the event name carried by the per-job channel.
const StatusEvent = "status"

// Client is the subset of the REST client the tracker needs.
type Client interface {
	StartProcess(ctx context.Context, req api.ProcessRequest) (api.ProcessResponse, error)
	FetchJob(ctx context.Context, jobID string) (api.JobStatus, error)
	JobEventsURL(jobID string) string
}

// State is a snapshot of the tracked job. An empty Status means idle.
type State struct {
	ActiveJobID string
	Status      api.Status
	Progress    float64
	CurrentFile string
	Logs        []string
	Error       string
	Connected   bool
}

// connection identifies one opened channel; callbacks compare it with the
// tracker's current connection to discard stale events.
type connection struct {
	jobID string
}

// Tracker follows a single job. It is safe for concurrent use. Dialers must
// not invoke listener callbacks synchronously from Open.
type Tracker struct {
	client Client
	dialer push.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	handle   push.Handle
	conn     *connection
	startSeq uint64
	sampler  *logging.ProgressSampler

	notifier observe.Notifier
}

// New constructs an idle tracker.
func New(client Client, dialer push.Dialer, logger *slog.Logger) *Tracker {
	return &Tracker{
		client:  client,
		dialer:  dialer,
		logger:  logging.NewComponentLogger(logger, "jobtrack"),
		state:   State{Logs: []string{}},
		sampler: logging.NewProgressSampler(10),
	}
}

// Subscribe registers fn to run after every state change.
func (t *Tracker) Subscribe(fn func()) func() {
	return t.notifier.Subscribe(fn)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.state
	out.Logs = append([]string{}, t.state.Logs...)
	return out
}

// Handle returns the open channel or nil.
func (t *Tracker) Handle() push.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

// StartJob submits payload and follows the resulting job. On rejection the
// error is recorded in State.Error, no channel is opened, and a
// *SubmissionError is returned.
func (t *Tracker) StartJob(ctx context.Context, payload api.ProcessRequest) (string, error) {
	t.mu.Lock()
	t.closeLocked()
	t.startSeq++
	seq := t.startSeq
	t.state = State{Status: api.StatusStarting, Logs: []string{}}
	t.mu.Unlock()
	t.notifier.Notify()

	resp, err := t.client.StartProcess(ctx, payload)

	t.mu.Lock()
	if seq != t.startSeq {
		// A newer StartJob or Resume took over.
		t.mu.Unlock()
		if err != nil {
			return "", &SubmissionError{Err: err}
		}
		return resp.JobID, nil
	}
	if err != nil {
		t.state.Error = err.Error()
		t.state.Status = ""
		t.mu.Unlock()
		t.notifier.Notify()
		t.logger.Warn("job submission rejected",
			slog.String(logging.FieldDir, payload.Dir),
			slog.String(logging.FieldEventType, "submission_failed"),
			logging.Error(err),
		)
		return "", &SubmissionError{Err: err}
	}
	t.state.ActiveJobID = resp.JobID
	t.connectLocked(resp.JobID)
	t.mu.Unlock()
	t.notifier.Notify()

	t.logger.Info("job submitted",
		slog.String(logging.FieldJobID, resp.JobID),
		slog.String(logging.FieldDir, payload.Dir),
		slog.Int("files", len(payload.Selections)),
	)
	return resp.JobID, nil
}

// ConnectEvents follows jobID, replacing any open channel.
func (t *Tracker) ConnectEvents(jobID string) {
	t.mu.Lock()
	t.startSeq++
	t.state.ActiveJobID = jobID
	t.connectLocked(jobID)
	t.mu.Unlock()
	t.notifier.Notify()
}

// Resume seeds state from the job endpoint and connects unless the job has
// already finished.
func (t *Tracker) Resume(ctx context.Context, jobID string) error {
	t.mu.Lock()
	t.closeLocked()
	t.startSeq++
	seq := t.startSeq
	t.mu.Unlock()

	snapshot, err := t.client.FetchJob(ctx, jobID)

	t.mu.Lock()
	if seq != t.startSeq {
		t.mu.Unlock()
		return err
	}
	if err != nil {
		t.state.Error = err.Error()
		t.mu.Unlock()
		t.notifier.Notify()
		t.logger.Warn("job lookup failed",
			slog.String(logging.FieldJobID, jobID),
			slog.String(logging.FieldEventType, "fetch_failed"),
			logging.Error(err),
		)
		return err
	}
	t.state = State{
		ActiveJobID: jobID,
		Status:      snapshot.Status,
		Progress:    snapshot.OverallPercent,
		CurrentFile: snapshot.CurrentFileName(),
		Logs:        append([]string{}, snapshot.Logs...),
	}
	if !snapshot.Status.Terminal() {
		t.connectLocked(jobID)
	}
	t.mu.Unlock()
	t.notifier.Notify()
	return nil
}

// Disconnect closes the open channel, if any. Tracked state is kept.
func (t *Tracker) Disconnect() {
	t.mu.Lock()
	had := t.handle != nil
	t.closeLocked()
	t.mu.Unlock()
	if had {
		t.notifier.Notify()
	}
}

func (t *Tracker) connectLocked(jobID string) {
	t.closeLocked()

	conn := &connection{jobID: jobID}
	listener := push.Listener{
		Events: map[string]func([]byte){
			StatusEvent: func(data []byte) { t.handleStatus(conn, data) },
		},
		OnError: func(err error) { t.handleChannelError(conn, err) },
	}
	t.conn = conn
	t.sampler.Reset()
	t.handle = t.dialer.Open(t.client.JobEventsURL(jobID), listener)
	t.state.Connected = true
	t.logger.Debug("job channel opened", slog.String(logging.FieldJobID, jobID))
}

func (t *Tracker) closeLocked() {
	if t.handle != nil {
		t.handle.Close()
	}
	t.handle = nil
	t.conn = nil
	t.state.Connected = false
}

func (t *Tracker) handleStatus(conn *connection, data []byte) {
	var event api.JobStatus
	if err := json.Unmarshal(data, &event); err != nil {
		t.logger.Warn("malformed status event",
			slog.String(logging.FieldJobID, conn.jobID),
			slog.String(logging.FieldEventType, "malformed_event"),
			logging.Error(err),
		)
		return
	}
	if err := event.Validate(); err != nil {
		t.logger.Warn("invalid status event",
			slog.String(logging.FieldJobID, conn.jobID),
			slog.String(logging.FieldEventType, "malformed_event"),
			logging.Error(err),
		)
		return
	}

	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.state.Status = event.Status
	t.state.Progress = event.OverallPercent
	t.state.CurrentFile = event.CurrentFileName()
	if len(event.Logs) > 0 {
		t.state.Logs = append([]string{}, event.Logs...)
	}
	logProgress := t.sampler.ShouldLog(event.OverallPercent, t.state.CurrentFile)
	terminal := event.Status.Terminal()
	if terminal {
		t.closeLocked()
	}
	t.mu.Unlock()
	t.notifier.Notify()

	switch {
	case terminal:
		t.logger.Info("job finished",
			slog.String(logging.FieldJobID, conn.jobID),
			slog.String("status", string(event.Status)),
		)
	case logProgress:
		t.logger.Info("job progress",
			slog.String(logging.FieldJobID, conn.jobID),
			slog.String("status", string(event.Status)),
			slog.Float64("percent", event.OverallPercent),
			slog.String("current_file", event.CurrentFileName()),
		)
	}
}

func (t *Tracker) handleChannelError(conn *connection, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.closeLocked()
	t.mu.Unlock()
	t.notifier.Notify()

	t.logger.Warn("job channel lost",
		slog.String(logging.FieldJobID, conn.jobID),
		slog.String(logging.FieldEventType, "channel_error"),
		logging.Error(err),
	)
}
