package catalog

import (
	"fmt"
	"strings"

	"streamclean/internal/api"
)

// Kind selects which stream family a selection applies to.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindSubtitle Kind = "subtitle"
	KindBoth     Kind = "both"
)

// ParseKind accepts the kind names used by the CLI.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "audio", "a":
		return KindAudio, nil
	case "subtitle", "subtitles", "subs", "sub", "s":
		return KindSubtitle, nil
	case "both", "all", "":
		return KindBoth, nil
	}
	return "", fmt.Errorf("unknown stream kind %q", value)
}

func (k Kind) audio() bool    { return k == KindAudio || k == KindBoth }
func (k Kind) subtitle() bool { return k == KindSubtitle || k == KindBoth }

// File is a listed media file plus its selection state.
type File struct {
	api.MediaFile
	IncludeFile   bool
	SelectedAudio []int
	SelectedSubs  []int
}

func newFile(m api.MediaFile) File {
	return File{
		MediaFile:     m,
		IncludeFile:   true,
		SelectedAudio: streamIDs(m.AudioStreams),
		SelectedSubs:  streamIDs(m.SubtitleStreams),
	}
}

// Selection returns the wire selection for this file.
func (f File) Selection() api.FileSelection {
	return api.FileSelection{
		RelPath:           f.RelPath,
		AudioStreamIDs:    append([]int{}, f.SelectedAudio...),
		SubtitleStreamIDs: append([]int{}, f.SelectedSubs...),
	}
}

// AudioSelected reports whether the audio stream id is selected.
func (f File) AudioSelected(id int) bool { return containsID(f.SelectedAudio, id) }

// SubtitleSelected reports whether the subtitle stream id is selected.
func (f File) SubtitleSelected(id int) bool { return containsID(f.SelectedSubs, id) }

func (f File) clone() File {
	out := f
	out.AudioStreams = append([]api.Stream(nil), f.AudioStreams...)
	out.SubtitleStreams = append([]api.Stream(nil), f.SubtitleStreams...)
	out.SelectedAudio = append([]int{}, f.SelectedAudio...)
	out.SelectedSubs = append([]int{}, f.SelectedSubs...)
	return out
}

// State is a snapshot of the catalog.
type State struct {
	Tree              *api.DirectoryNode
	ExpandedKeys      map[string]bool
	CurrentDir        string
	Files             []File
	Languages         []string
	SelectedLanguages []string
	Loading           bool
	Error             string
}

// File returns the listed file with relPath.
func (s State) File(relPath string) (File, bool) {
	for _, f := range s.Files {
		if f.RelPath == relPath {
			return f, true
		}
	}
	return File{}, false
}

// Included returns the files participating in the next submission.
func (s State) Included() []File {
	out := make([]File, 0, len(s.Files))
	for _, f := range s.Files {
		if f.IncludeFile {
			out = append(out, f)
		}
	}
	return out
}

func (s State) clone() State {
	out := s
	out.Tree = s.Tree.Clone()
	out.ExpandedKeys = make(map[string]bool, len(s.ExpandedKeys))
	for k, v := range s.ExpandedKeys {
		out.ExpandedKeys[k] = v
	}
	out.Files = make([]File, len(s.Files))
	for i, f := range s.Files {
		out.Files[i] = f.clone()
	}
	out.Languages = append([]string{}, s.Languages...)
	out.SelectedLanguages = append([]string{}, s.SelectedLanguages...)
	return out
}

func streamIDs(streams []api.Stream) []int {
	ids := make([]int, 0, len(streams))
	for _, s := range streams {
		ids = append(ids, s.ID)
	}
	return ids
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
