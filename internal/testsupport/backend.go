package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"streamclean/internal/api"
)

const rosterKey = "*roster*"

// Backend is an in-process fake of the processing service. Every endpoint
// lives under /api; push channels are served as text/event-stream.
type Backend struct {
	t      testing.TB
	server *httptest.Server

	mu          sync.Mutex
	tree        api.DirectoryNode
	lists       map[string]api.DirectoryContent
	jobs        map[string]api.JobStatus
	submitted   []api.ProcessRequest
	cancelled   []string
	rejectWith  int
	nextID      int
	subscribers map[string]map[chan sseMessage]struct{}
	subscribed  *sync.Cond
}

type sseMessage struct {
	event string
	data  []byte
}

// NewBackend starts a fake service and registers its shutdown.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		t:           t,
		tree:        api.DirectoryNode{RelPath: "/", Name: "media", Children: []api.DirectoryNode{}},
		lists:       map[string]api.DirectoryContent{},
		jobs:        map[string]api.JobStatus{},
		subscribers: map[string]map[chan sseMessage]struct{}{},
	}
	b.subscribed = sync.NewCond(&b.mu)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tree", b.handleTree)
	mux.HandleFunc("GET /api/list", b.handleList)
	mux.HandleFunc("POST /api/process", b.handleProcess)
	mux.HandleFunc("GET /api/jobs/events", b.handleRosterEvents)
	mux.HandleFunc("GET /api/jobs/{id}", b.handleJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", b.handleCancel)
	mux.HandleFunc("GET /api/jobs/{id}/events", b.handleJobEvents)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// URL returns the API base URL.
func (b *Backend) URL() string {
	return b.server.URL + "/api"
}

// Close stops the server and ends open streams.
func (b *Backend) Close() {
	b.mu.Lock()
	for key, subs := range b.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(b.subscribers, key)
	}
	b.mu.Unlock()
	b.server.Close()
}

// SetTree replaces the served directory tree.
func (b *Backend) SetTree(tree api.DirectoryNode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree = tree
}

// SetList serves content for dir.
func (b *Backend) SetList(dir string, content api.DirectoryContent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists[dir] = content
}

// SetJob seeds a job snapshot.
func (b *Backend) SetJob(jobID string, status api.JobStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[jobID] = status
}

// RejectProcess makes POST /process fail with status (0 restores success).
func (b *Backend) RejectProcess(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectWith = status
}

// Submitted returns every accepted or rejected submission body.
func (b *Backend) Submitted() []api.ProcessRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.ProcessRequest{}, b.submitted...)
}

// Cancelled returns the job ids passed to DELETE /jobs/<id>.
func (b *Backend) Cancelled() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.cancelled...)
}

// PushStatus records status for jobID and sends it on the job's channel.
func (b *Backend) PushStatus(jobID string, status api.JobStatus) {
	b.mu.Lock()
	b.jobs[jobID] = status
	b.mu.Unlock()
	b.broadcast(jobID, "status", status)
}

// PushJobs sends a roster snapshot.
func (b *Backend) PushJobs(jobs []api.ActiveJob) {
	if jobs == nil {
		jobs = []api.ActiveJob{}
	}
	b.broadcast(rosterKey, "jobs_list", jobs)
}

// WaitJobSubscribers blocks until jobID has at least n open channels.
func (b *Backend) WaitJobSubscribers(jobID string, n int) {
	b.t.Helper()
	b.waitSubscribers(jobID, n)
}

// WaitRosterSubscribers blocks until the roster has at least n open channels.
func (b *Backend) WaitRosterSubscribers(n int) {
	b.t.Helper()
	b.waitSubscribers(rosterKey, n)
}

func (b *Backend) waitSubscribers(key string, n int) {
	deadline := time.Now().Add(5 * time.Second)
	timer := time.AfterFunc(5*time.Second, func() {
		b.mu.Lock()
		b.subscribed.Broadcast()
		b.mu.Unlock()
	})
	defer timer.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.subscribers[key]) < n {
		if time.Now().After(deadline) {
			b.t.Fatalf("timed out waiting for %d subscribers on %s", n, key)
		}
		b.subscribed.Wait()
	}
}

func (b *Backend) broadcast(key, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.t.Fatalf("encode %s payload: %v", event, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[key] {
		ch <- sseMessage{event: event, data: data}
	}
}

func (b *Backend) handleTree(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	tree := b.tree
	b.mu.Unlock()
	writeJSON(w, tree)
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	b.mu.Lock()
	content, ok := b.lists[dir]
	b.mu.Unlock()
	if !ok {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, content)
}

func (b *Backend) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req api.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.submitted = append(b.submitted, req)
	if b.rejectWith != 0 {
		status := b.rejectWith
		b.mu.Unlock()
		http.Error(w, "rejected", status)
		return
	}
	b.nextID++
	jobID := fmt.Sprintf("job-%d", b.nextID)
	files := make([]string, 0, len(req.Selections))
	for _, sel := range req.Selections {
		files = append(files, sel.RelPath)
	}
	b.jobs[jobID] = api.JobStatus{JobID: jobID, Status: api.StatusPending, Dir: req.Dir, Files: files}
	b.mu.Unlock()
	writeJSON(w, api.ProcessResponse{JobID: jobID})
}

func (b *Backend) handleJob(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status, ok := b.jobs[r.PathValue("id")]
	b.mu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, status)
}

func (b *Backend) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b.mu.Lock()
	b.cancelled = append(b.cancelled, id)
	status, ok := b.jobs[id]
	cancelled := ok && status.Status == api.StatusPending
	if cancelled {
		status.Status = api.StatusFailed
		b.jobs[id] = status
	}
	b.mu.Unlock()
	writeJSON(w, api.CancelResponse{Cancelled: cancelled})
}

func (b *Backend) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	b.stream(w, r, r.PathValue("id"))
}

func (b *Backend) handleRosterEvents(w http.ResponseWriter, r *http.Request) {
	b.stream(w, r, rosterKey)
}

func (b *Backend) stream(w http.ResponseWriter, r *http.Request, key string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	// Buffered so broadcast never blocks on a slow reader.
	ch := make(chan sseMessage, 64)
	b.mu.Lock()
	if b.subscribers[key] == nil {
		b.subscribers[key] = map[chan sseMessage]struct{}{}
	}
	b.subscribers[key][ch] = struct{}{}
	b.subscribed.Broadcast()
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[key]; ok {
			if _, live := subs[ch]; live {
				delete(subs, ch)
			}
		}
		b.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
