package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"streamclean/internal/api"
	"streamclean/internal/catalog"
	"streamclean/internal/session"
)

func newTreeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the server's media folder tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd.Context(), func(s *session.Session) error {
				// The root listing loaded after the tree may fail on its own.
				err := s.Catalog.LoadTree(cmd.Context())
				state := s.Catalog.Snapshot()
				if state.Tree == nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, state.Tree)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTree(state.Tree, state.ExpandedKeys))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderTree(root *api.DirectoryNode, expanded map[string]bool) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	var walk func(node *api.DirectoryNode, prefix string, last, top bool)
	walk = func(node *api.DirectoryNode, prefix string, last, top bool) {
		name := node.Name
		if name == "" {
			name = node.RelPath
		}
		childPrefix := prefix
		if top {
			fmt.Fprintf(&b, "%s/\n", name)
		} else {
			connector := "├── "
			childPrefix += "│   "
			if last {
				connector = "└── "
				childPrefix = prefix + "    "
			}
			fmt.Fprintf(&b, "%s%s%s/\n", prefix, connector, name)
		}
		if !expanded[node.RelPath] {
			return
		}
		for i := range node.Children {
			walk(&node.Children[i], childPrefix, i == len(node.Children)-1, false)
		}
	}
	walk(root, "", true, true)
	return b.String()
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "ls [dir]",
		Aliases: []string{"list"},
		Short:   "List media files and their streams",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := catalog.RootDir
			if len(args) == 1 {
				dir = args[0]
			}
			return ctx.withSession(cmd.Context(), func(s *session.Session) error {
				if err := s.Catalog.LoadDirectory(cmd.Context(), dir); err != nil {
					return err
				}
				state := s.Catalog.Snapshot()
				if jsonOutput {
					files := make([]api.MediaFile, 0, len(state.Files))
					for _, f := range state.Files {
						files = append(files, f.MediaFile)
					}
					return writeJSON(cmd, api.DirectoryContent{Dir: state.CurrentDir, Files: files, Languages: state.Languages})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderListing(state))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderListing(state catalog.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", state.CurrentDir)
	if len(state.Files) == 0 {
		b.WriteString("No media files found\n")
		return b.String()
	}
	rows := make([][]string, 0, len(state.Files))
	for _, f := range state.Files {
		rows = append(rows, []string{
			f.Name,
			renderStreams(f.AudioStreams, nil),
			renderStreams(f.SubtitleStreams, nil),
		})
	}
	b.WriteString(renderTable([]column{
		{title: "File", width: 50},
		{title: "Audio", width: 40},
		{title: "Subtitles", width: 40},
	}, rows))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Languages: %s\n", renderLanguages(state.Languages))
	return b.String()
}
