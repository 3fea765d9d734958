package api

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownLanguage is the language reported for streams without a language tag.
const UnknownLanguage = "unknown"

// Status is the lifecycle state of a processing job.
type Status string

const (
	// StatusStarting is client-side only: the submit call is in flight.
	StatusStarting   Status = "starting"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further updates will arrive for the job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether the job is queued or running on the server.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// DirectoryNode is one folder of the server-side input tree.
type DirectoryNode struct {
	RelPath  string          `json:"rel_path"`
	Name     string          `json:"name"`
	Children []DirectoryNode `json:"children"`
	// Key is assigned by the catalog after fetching and mirrors RelPath.
	Key string `json:"key,omitempty"`
}

// Validate checks that every node in the tree carries a path.
func (n *DirectoryNode) Validate() error {
	if n == nil {
		return errors.New("directory node missing")
	}
	if strings.TrimSpace(n.RelPath) == "" {
		return fmt.Errorf("directory node %q: rel_path missing", n.Name)
	}
	for i := range n.Children {
		if err := n.Children[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits the node and every descendant in depth-first order.
func (n *DirectoryNode) Walk(fn func(node *DirectoryNode, depth int)) {
	n.walk(fn, 0)
}

func (n *DirectoryNode) walk(fn func(node *DirectoryNode, depth int), depth int) {
	if n == nil {
		return
	}
	fn(n, depth)
	for i := range n.Children {
		n.Children[i].walk(fn, depth+1)
	}
}

// Clone returns a deep copy of the tree.
func (n *DirectoryNode) Clone() *DirectoryNode {
	if n == nil {
		return nil
	}
	out := &DirectoryNode{RelPath: n.RelPath, Name: n.Name, Key: n.Key}
	if n.Children != nil {
		out.Children = make([]DirectoryNode, len(n.Children))
		for i := range n.Children {
			out.Children[i] = *n.Children[i].Clone()
		}
	}
	return out
}

// Stream is one audio or subtitle track inside a media file.
type Stream struct {
	ID       int    `json:"id"`
	Language string `json:"language"`
	Title    string `json:"title,omitempty"`
}

// MediaFile is a media file with its probed streams.
type MediaFile struct {
	RelPath         string   `json:"rel_path"`
	Name            string   `json:"name"`
	AudioStreams    []Stream `json:"audio_streams"`
	SubtitleStreams []Stream `json:"subtitle_streams"`
}

// DirectoryContent is the response of the directory listing endpoint.
type DirectoryContent struct {
	Dir       string      `json:"dir,omitempty"`
	Files     []MediaFile `json:"files"`
	Languages []string    `json:"languages"`
}

// Validate rejects listings with unnamed files or duplicate stream ids.
func (c *DirectoryContent) Validate() error {
	if c.Files == nil {
		return errors.New("listing: files missing")
	}
	if c.Languages == nil {
		return errors.New("listing: languages missing")
	}
	seen := make(map[string]struct{}, len(c.Files))
	for _, f := range c.Files {
		if strings.TrimSpace(f.RelPath) == "" {
			return fmt.Errorf("listing: file %q has no rel_path", f.Name)
		}
		if _, dup := seen[f.RelPath]; dup {
			return fmt.Errorf("listing: duplicate file %q", f.RelPath)
		}
		seen[f.RelPath] = struct{}{}
		if err := uniqueStreamIDs(f.AudioStreams); err != nil {
			return fmt.Errorf("listing: %s audio: %w", f.RelPath, err)
		}
		if err := uniqueStreamIDs(f.SubtitleStreams); err != nil {
			return fmt.Errorf("listing: %s subtitles: %w", f.RelPath, err)
		}
	}
	return nil
}

func uniqueStreamIDs(streams []Stream) error {
	seen := make(map[int]struct{}, len(streams))
	for _, s := range streams {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate stream id %d", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// FileSelection lists the streams to keep for one file.
type FileSelection struct {
	RelPath           string `json:"rel_path"`
	AudioStreamIDs    []int  `json:"audio_stream_ids"`
	SubtitleStreamIDs []int  `json:"subtitle_stream_ids"`
}

// ProcessRequest is the body of the job submission endpoint.
type ProcessRequest struct {
	Dir               string          `json:"dir"`
	OutputDir         string          `json:"output_dir"`
	AudioLanguages    []string        `json:"audio_languages"`
	SubtitleLanguages []string        `json:"subtitle_languages"`
	Selections        []FileSelection `json:"selections"`
}

// ProcessResponse is returned by the job submission endpoint.
type ProcessResponse struct {
	JobID string `json:"jobId"`
}

// Validate requires a job id.
func (r *ProcessResponse) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("process response: jobId missing")
	}
	return nil
}

// JobStatus is a full job snapshot, used both by the job endpoint and the
// per-job status events.
type JobStatus struct {
	JobID          string   `json:"job_id,omitempty"`
	Status         Status   `json:"status"`
	OverallPercent float64  `json:"overall_percent"`
	CurrentFile    *string  `json:"current_file"`
	Dir            string   `json:"dir,omitempty"`
	Files          []string `json:"files,omitempty"`
	Logs           []string `json:"logs,omitempty"`
}

// Validate checks status and percent bounds.
func (j *JobStatus) Validate() error {
	if !j.Status.known() {
		return fmt.Errorf("job status: unknown status %q", j.Status)
	}
	if j.OverallPercent < 0 || j.OverallPercent > 100 {
		return fmt.Errorf("job status: overall_percent %v out of range", j.OverallPercent)
	}
	return nil
}

// CurrentFileName returns the current file or an empty string.
func (j *JobStatus) CurrentFileName() string {
	if j.CurrentFile == nil {
		return ""
	}
	return *j.CurrentFile
}

// ActiveJob is one roster entry pushed on the jobs_list channel.
type ActiveJob struct {
	JobID          string  `json:"job_id"`
	Dir            string  `json:"dir"`
	Status         Status  `json:"status"`
	OverallPercent float64 `json:"overall_percent"`
	CurrentFile    *string `json:"current_file"`
	FirstFile      *string `json:"first_file"`
}

// Validate requires an id and an active status.
func (a *ActiveJob) Validate() error {
	if strings.TrimSpace(a.JobID) == "" {
		return errors.New("active job: job_id missing")
	}
	if !a.Status.Active() {
		return fmt.Errorf("active job %s: unexpected status %q", a.JobID, a.Status)
	}
	return nil
}

// Label returns the name shown for a roster entry: the first file when known,
// otherwise the directory.
func (a ActiveJob) Label() string {
	if a.FirstFile != nil && strings.TrimSpace(*a.FirstFile) != "" {
		return *a.FirstFile
	}
	return a.Dir
}

// CancelResponse is returned by the job cancellation endpoint.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
