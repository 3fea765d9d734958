// Package roster mirrors the set of active jobs on the server.
//
// The roster is ambient: it keeps one channel open to the jobs list stream
// and replaces its list with every "jobs_list" event. Channel failures are
// logged and drop the channel without touching the visible list; the caller
// reconnects by calling ConnectEvents again.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"streamclean/internal/api"
	"streamclean/internal/logging"
	"streamclean/internal/observe"
	"streamclean/internal/push"
)

// JobsListEvent is the event name carried by the roster channel.
const JobsListEvent = "jobs_list"

// Client is the subset of the REST client the roster needs.
type Client interface {
	CancelJob(ctx context.Context, jobID string) (api.CancelResponse, error)
	JobsListEventsURL() string
}

// connection identifies one opened channel. It must not be zero-sized so that
// each connect gets a distinct pointer.
type connection struct {
	seq uint64
}

// Roster tracks active jobs. It is safe for concurrent use.
type Roster struct {
	client Client
	dialer push.Dialer
	logger *slog.Logger

	mu         sync.Mutex
	jobs       []api.ActiveJob
	generation uint64
	handle     push.Handle
	conn       *connection
	connSeq    uint64

	notifier observe.Notifier
}

// New constructs a disconnected roster.
func New(client Client, dialer push.Dialer, logger *slog.Logger) *Roster {
	return &Roster{
		client: client,
		dialer: dialer,
		logger: logging.NewComponentLogger(logger, "roster"),
		jobs:   []api.ActiveJob{},
	}
}

// Subscribe registers fn to run after every change.
func (r *Roster) Subscribe(fn func()) func() {
	return r.notifier.Subscribe(fn)
}

// ConnectEvents opens the roster channel unless one is already open.
func (r *Roster) ConnectEvents() {
	r.mu.Lock()
	if r.handle != nil {
		r.mu.Unlock()
		return
	}
	r.connSeq++
	conn := &connection{seq: r.connSeq}
	listener := push.Listener{
		Events: map[string]func([]byte){
			JobsListEvent: func(data []byte) { r.handleJobs(conn, data) },
		},
		OnError: func(err error) { r.handleChannelError(conn, err) },
	}
	r.conn = conn
	r.handle = r.dialer.Open(r.client.JobsListEventsURL(), listener)
	r.mu.Unlock()
	r.notifier.Notify()
	r.logger.Debug("roster channel opened")
}

// Disconnect closes the channel if one is open.
func (r *Roster) Disconnect() {
	r.mu.Lock()
	had := r.handle != nil
	r.closeLocked()
	r.mu.Unlock()
	if had {
		r.notifier.Notify()
	}
}

// Connected reports whether a channel is open.
func (r *Roster) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle != nil
}

// Handle returns the open channel or nil.
func (r *Roster) Handle() push.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Jobs returns the roster in payload order.
func (r *Roster) Jobs() []api.ActiveJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.ActiveJob{}, r.jobs...)
}

// Generation counts the lists received so far; it changes on every
// jobs_list event.
func (r *Roster) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Ordered returns the roster with processing jobs ahead of pending ones,
// otherwise keeping payload order.
func (r *Roster) Ordered() []api.ActiveJob {
	return Order(r.Jobs())
}

// Order sorts jobs for display without mutating the input.
func Order(jobs []api.ActiveJob) []api.ActiveJob {
	out := append([]api.ActiveJob{}, jobs...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Status) < rank(out[j].Status)
	})
	return out
}

func rank(status api.Status) int {
	if status == api.StatusProcessing {
		return 0
	}
	return 1
}

// Cancelable reports whether the roster offers cancellation for job.
func Cancelable(job api.ActiveJob) bool {
	return job.Status == api.StatusPending
}

// Cancel asks the server to cancel jobID. The roster itself updates when the
// server pushes the next list.
func (r *Roster) Cancel(ctx context.Context, jobID string) (bool, error) {
	resp, err := r.client.CancelJob(ctx, jobID)
	if err != nil {
		r.logger.Warn("cancel failed",
			slog.String(logging.FieldJobID, jobID),
			slog.String(logging.FieldEventType, "cancel_failed"),
			logging.Error(err),
		)
		return false, err
	}
	r.logger.Info("cancel requested",
		slog.String(logging.FieldJobID, jobID),
		slog.Bool("cancelled", resp.Cancelled),
	)
	return resp.Cancelled, nil
}

func (r *Roster) closeLocked() {
	if r.handle != nil {
		r.handle.Close()
	}
	r.handle = nil
	r.conn = nil
}

func (r *Roster) handleJobs(conn *connection, data []byte) {
	jobs, err := decodeJobs(data)
	if err != nil {
		r.logger.Warn("malformed jobs list event",
			slog.String(logging.FieldEventType, "malformed_event"),
			logging.Error(err),
		)
		return
	}

	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.jobs = jobs
	r.generation++
	r.mu.Unlock()
	r.notifier.Notify()
}

func decodeJobs(data []byte) ([]api.ActiveJob, error) {
	var jobs []api.ActiveJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		return nil, fmt.Errorf("jobs list: expected array")
	}
	for i := range jobs {
		if err := jobs[i].Validate(); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (r *Roster) handleChannelError(conn *connection, err error) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.closeLocked()
	r.mu.Unlock()
	r.notifier.Notify()

	r.logger.Warn("roster channel lost",
		slog.String(logging.FieldEventType, "channel_error"),
		logging.Error(err),
	)
}
