// Package submission derives the job submission payload from the catalog.
//
// The output directory follows the current directory until the user sets it
// explicitly; an override only applies to the directory it was set on, so
// navigating elsewhere resets it. Clearing the output directory disables
// submission.
package submission

import (
	"errors"
	"strings"
	"sync"

	"streamclean/internal/api"
	"streamclean/internal/catalog"
)

var (
	// ErrNoDirectory is returned when no directory has been opened.
	ErrNoDirectory = errors.New("no directory selected")
	// ErrNoOutputDir is returned when the output directory was cleared.
	ErrNoOutputDir = errors.New("output directory is empty")
)

// StateSource provides catalog snapshots.
type StateSource interface {
	Snapshot() catalog.State
}

// Assembler builds process requests from catalog state.
type Assembler struct {
	source StateSource

	mu          sync.Mutex
	overrideDir string
	outputDir   string
	hasOverride bool
}

// New returns an assembler reading from source.
func New(source StateSource) *Assembler {
	return &Assembler{source: source}
}

// SetOutputDir overrides the output directory for the current directory.
func (a *Assembler) SetOutputDir(dir string) {
	current := a.source.Snapshot().CurrentDir
	a.mu.Lock()
	a.overrideDir = current
	a.outputDir = strings.TrimSpace(dir)
	a.hasOverride = true
	a.mu.Unlock()
}

// OutputDir returns the effective output directory.
func (a *Assembler) OutputDir() string {
	return a.outputDirFor(a.source.Snapshot().CurrentDir)
}

func (a *Assembler) outputDirFor(current string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasOverride && a.overrideDir == current {
		return a.outputDir
	}
	return current
}

// Ready reports whether Build would succeed.
func (a *Assembler) Ready() error {
	state := a.source.Snapshot()
	return a.ready(state)
}

func (a *Assembler) ready(state catalog.State) error {
	if state.CurrentDir == "" {
		return ErrNoDirectory
	}
	if a.outputDirFor(state.CurrentDir) == "" {
		return ErrNoOutputDir
	}
	return nil
}

// Build returns the payload for the current catalog state. Excluded files
// are omitted; languages mirror the catalog's selected language filter.
func (a *Assembler) Build() (api.ProcessRequest, error) {
	state := a.source.Snapshot()
	if err := a.ready(state); err != nil {
		return api.ProcessRequest{}, err
	}
	return Assemble(state, a.outputDirFor(state.CurrentDir)), nil
}

// Assemble is the pure derivation behind Build.
func Assemble(state catalog.State, outputDir string) api.ProcessRequest {
	included := state.Included()
	selections := make([]api.FileSelection, 0, len(included))
	for _, f := range included {
		selections = append(selections, f.Selection())
	}
	return api.ProcessRequest{
		Dir:               state.CurrentDir,
		OutputDir:         outputDir,
		AudioLanguages:    append([]string{}, state.SelectedLanguages...),
		SubtitleLanguages: append([]string{}, state.SelectedLanguages...),
		Selections:        selections,
	}
}
