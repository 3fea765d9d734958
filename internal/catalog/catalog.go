package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"streamclean/internal/api"
	"streamclean/internal/logging"
	"streamclean/internal/observe"
)

// RootDir is the listing loaded after the tree.
const RootDir = "/"

// Source fetches tree and listing data.
type Source interface {
	FetchTree(ctx context.Context) (*api.DirectoryNode, error)
	FetchList(ctx context.Context, dir string) (api.DirectoryContent, error)
}

// Catalog is the directory browser store. It is safe for concurrent use.
type Catalog struct {
	source Source
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	loadSeq uint64

	notifier observe.Notifier
}

// New constructs an empty catalog.
func New(source Source, logger *slog.Logger) *Catalog {
	return &Catalog{
		source: source,
		logger: logging.NewComponentLogger(logger, "catalog"),
		state: State{
			ExpandedKeys:      map[string]bool{},
			Files:             []File{},
			Languages:         []string{},
			SelectedLanguages: []string{},
		},
	}
}

// Subscribe registers fn to run after every state change.
func (c *Catalog) Subscribe(fn func()) func() {
	return c.notifier.Subscribe(fn)
}

// Snapshot returns a deep copy of the current state.
func (c *Catalog) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// beginLoad marks a load as started and returns its release function. Only
// the release of the most recent load clears Loading.
func (c *Catalog) beginLoad() func() {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.state.Loading = true
	c.state.Error = ""
	c.mu.Unlock()
	c.notifier.Notify()

	return func() {
		c.mu.Lock()
		changed := false
		if seq == c.loadSeq && c.state.Loading {
			c.state.Loading = false
			changed = true
		}
		c.mu.Unlock()
		if changed {
			c.notifier.Notify()
		}
	}
}

// LoadTree fetches the folder tree, expands every node, and then loads the
// root listing. Failures are recorded in Error and returned.
func (c *Catalog) LoadTree(ctx context.Context) error {
	release := c.beginLoad()
	tree, err := c.source.FetchTree(ctx)
	if err != nil {
		c.fail("load tree", err)
		release()
		return err
	}

	expanded := make(map[string]bool)
	tree.Walk(func(node *api.DirectoryNode, _ int) {
		node.Key = node.RelPath
		expanded[node.RelPath] = true
	})

	c.mu.Lock()
	c.state.Tree = tree
	c.state.ExpandedKeys = expanded
	c.mu.Unlock()
	c.notifier.Notify()
	c.logger.Debug("tree loaded", slog.Int("folders", len(expanded)))

	// The directory load takes over the Loading flag before this one releases.
	defer release()
	return c.LoadDirectory(ctx, RootDir)
}

// LoadDirectory navigates to dir and fetches its listing. CurrentDir changes
// immediately; files and languages change only on success.
func (c *Catalog) LoadDirectory(ctx context.Context, dir string) error {
	release := c.beginLoad()
	defer release()

	c.mu.Lock()
	c.state.CurrentDir = dir
	c.mu.Unlock()
	c.notifier.Notify()

	content, err := c.source.FetchList(ctx, dir)
	if err != nil {
		c.fail("load directory", err, slog.String(logging.FieldDir, dir))
		return err
	}

	files := make([]File, 0, len(content.Files))
	for _, m := range content.Files {
		files = append(files, newFile(m))
	}
	languages := append([]string{}, content.Languages...)

	c.mu.Lock()
	c.state.Files = files
	c.state.Languages = languages
	c.state.SelectedLanguages = append([]string{}, languages...)
	c.mu.Unlock()
	c.notifier.Notify()

	c.logger.Debug("directory loaded",
		slog.String(logging.FieldDir, dir),
		slog.Int("files", len(files)),
		slog.Int("languages", len(languages)),
	)
	return nil
}

func (c *Catalog) fail(action string, err error, attrs ...slog.Attr) {
	c.mu.Lock()
	c.state.Error = err.Error()
	c.mu.Unlock()
	c.notifier.Notify()

	attrs = append(attrs, slog.String(logging.FieldEventType, "fetch_failed"), logging.Error(err))
	c.logger.Warn(action+" failed", logging.Args(attrs...)...)
}

// ToggleLanguage selects or deselects every stream in lang across included
// files. kind picks audio, subtitle, or both stream families.
func (c *Catalog) ToggleLanguage(lang string, kind Kind, selected bool) {
	c.mu.Lock()
	for i := range c.state.Files {
		f := &c.state.Files[i]
		if !f.IncludeFile {
			continue
		}
		if kind.audio() {
			f.SelectedAudio = applyLanguage(f.AudioStreams, f.SelectedAudio, lang, selected)
		}
		if kind.subtitle() {
			f.SelectedSubs = applyLanguage(f.SubtitleStreams, f.SelectedSubs, lang, selected)
		}
	}
	c.mu.Unlock()
	c.notifier.Notify()
}

// SetIncludeFile toggles whether a file takes part in the submission.
func (c *Catalog) SetIncludeFile(relPath string, include bool) error {
	c.mu.Lock()
	f := c.findLocked(relPath)
	if f == nil {
		c.mu.Unlock()
		return fmt.Errorf("catalog: file %q not listed", relPath)
	}
	f.IncludeFile = include
	c.mu.Unlock()
	c.notifier.Notify()
	return nil
}

// SetStreamSelected selects or deselects one stream of one file. kind must
// be audio or subtitle; ids the file does not carry are rejected.
func (c *Catalog) SetStreamSelected(relPath string, kind Kind, id int, selected bool) error {
	c.mu.Lock()
	f := c.findLocked(relPath)
	if f == nil {
		c.mu.Unlock()
		return fmt.Errorf("catalog: file %q not listed", relPath)
	}
	switch kind {
	case KindAudio:
		if !hasStream(f.AudioStreams, id) {
			c.mu.Unlock()
			return fmt.Errorf("catalog: %s has no audio stream %d", relPath, id)
		}
		f.SelectedAudio = applyStream(f.AudioStreams, f.SelectedAudio, id, selected)
	case KindSubtitle:
		if !hasStream(f.SubtitleStreams, id) {
			c.mu.Unlock()
			return fmt.Errorf("catalog: %s has no subtitle stream %d", relPath, id)
		}
		f.SelectedSubs = applyStream(f.SubtitleStreams, f.SelectedSubs, id, selected)
	default:
		c.mu.Unlock()
		return fmt.Errorf("catalog: stream kind %q is ambiguous for a single stream", kind)
	}
	c.mu.Unlock()
	c.notifier.Notify()
	return nil
}

// SetLanguageSelected edits the language filter sent with the submission.
// The list keeps the order of Languages.
func (c *Catalog) SetLanguageSelected(lang string, selected bool) error {
	c.mu.Lock()
	known := false
	for _, l := range c.state.Languages {
		if l == lang {
			known = true
			break
		}
	}
	if !known {
		c.mu.Unlock()
		return fmt.Errorf("catalog: language %q not listed", lang)
	}
	current := make(map[string]bool, len(c.state.SelectedLanguages))
	for _, l := range c.state.SelectedLanguages {
		current[l] = true
	}
	current[lang] = selected
	next := make([]string, 0, len(c.state.Languages))
	for _, l := range c.state.Languages {
		if current[l] {
			next = append(next, l)
		}
	}
	c.state.SelectedLanguages = next
	c.mu.Unlock()
	c.notifier.Notify()
	return nil
}

// SetExpanded records whether a folder is expanded in the tree view.
func (c *Catalog) SetExpanded(relPath string, expanded bool) {
	c.mu.Lock()
	if c.state.ExpandedKeys == nil {
		c.state.ExpandedKeys = map[string]bool{}
	}
	if expanded {
		c.state.ExpandedKeys[relPath] = true
	} else {
		delete(c.state.ExpandedKeys, relPath)
	}
	c.mu.Unlock()
	c.notifier.Notify()
}

func (c *Catalog) findLocked(relPath string) *File {
	for i := range c.state.Files {
		if c.state.Files[i].RelPath == relPath {
			return &c.state.Files[i]
		}
	}
	return nil
}
