package main

import (
	"fmt"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"streamclean/internal/catalog"
	"streamclean/internal/language"
	"streamclean/internal/session"
	"streamclean/internal/submission"
)

type processOptions struct {
	outputDir    string
	outputSet    bool
	dropAudio    []string
	dropSubs     []string
	drop         []string
	keepLanguage []string
	exclude      []string
	detach       bool
	dryRun       bool
	jsonOutput   bool
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	opts := processOptions{}

	cmd := &cobra.Command{
		Use:   "process <dir>",
		Short: "Submit a clean job for a directory",
		Long: `Submit a clean job for every media file in a directory.

All audio and subtitle streams are kept by default. Use --drop, --drop-audio,
and --drop-subs to remove streams by language, --exclude to skip files, and
--keep-lang to limit the languages sent to the service.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.outputSet = cmd.Flags().Changed("output")
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withSession(runCtx, func(s *session.Session) error {
				if err := s.Catalog.LoadDirectory(runCtx, args[0]); err != nil {
					return err
				}
				if err := applyProcessOptions(s, opts); err != nil {
					return err
				}

				req, err := s.Assembler.Build()
				if err != nil {
					return fmt.Errorf("cannot submit: %w", err)
				}
				if len(req.Selections) == 0 {
					return fmt.Errorf("cannot submit: every file in %s is excluded", req.Dir)
				}
				if opts.dryRun {
					if opts.jsonOutput {
						return writeJSON(cmd, req)
					}
					fmt.Fprint(cmd.OutOrStdout(), renderPlan(s.Catalog.Snapshot(), req.OutputDir, shouldColorize(cmd.OutOrStdout())))
					return nil
				}

				jobID, err := s.Submit(runCtx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd, map[string]string{"jobId": jobID})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submitted job %s (%d file(s) from %s to %s)\n", jobID, len(req.Selections), req.Dir, req.OutputDir)
				if opts.detach {
					fmt.Fprintf(out, "Follow progress with: streamclean job %s --follow\n", jobID)
					return nil
				}
				return followJob(runCtx, out, s.Tracker, jobID)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.outputDir, "output", "o", "", "Output directory (defaults to the source directory)")
	flags.StringSliceVar(&opts.dropAudio, "drop-audio", nil, "Drop audio streams in these languages")
	flags.StringSliceVar(&opts.dropSubs, "drop-subs", nil, "Drop subtitle streams in these languages")
	flags.StringSliceVar(&opts.drop, "drop", nil, "Drop audio and subtitle streams in these languages")
	flags.StringSliceVar(&opts.keepLanguage, "keep-lang", nil, "Only send these languages as the job's language filter")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "Skip files by name or path")
	flags.BoolVarP(&opts.detach, "detach", "d", false, "Return after submitting instead of following progress")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Show the selections without submitting")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func applyProcessOptions(s *session.Session, opts processOptions) error {
	state := s.Catalog.Snapshot()

	for _, name := range opts.exclude {
		relPath, err := resolveFile(state, name)
		if err != nil {
			return err
		}
		if err := s.Catalog.SetIncludeFile(relPath, false); err != nil {
			return err
		}
	}

	toggles := []struct {
		langs []string
		kind  catalog.Kind
	}{
		{opts.drop, catalog.KindBoth},
		{opts.dropAudio, catalog.KindAudio},
		{opts.dropSubs, catalog.KindSubtitle},
	}
	for _, toggle := range toggles {
		for _, input := range toggle.langs {
			lang, ok := language.Match(state.Languages, input)
			if !ok {
				return fmt.Errorf("language %q does not appear in %s (available: %s)", input, state.CurrentDir, strings.Join(state.Languages, ", "))
			}
			s.Catalog.ToggleLanguage(lang, toggle.kind, false)
		}
	}

	if len(opts.keepLanguage) > 0 {
		keep := map[string]bool{}
		for _, input := range opts.keepLanguage {
			lang, ok := language.Match(state.Languages, input)
			if !ok {
				return fmt.Errorf("language %q does not appear in %s", input, state.CurrentDir)
			}
			keep[lang] = true
		}
		for _, lang := range state.Languages {
			if err := s.Catalog.SetLanguageSelected(lang, keep[lang]); err != nil {
				return err
			}
		}
	}

	if opts.outputSet {
		s.Assembler.SetOutputDir(opts.outputDir)
		if strings.TrimSpace(opts.outputDir) == "" {
			return fmt.Errorf("cannot submit: %w", submission.ErrNoOutputDir)
		}
	}
	return nil
}

func resolveFile(state catalog.State, name string) (string, error) {
	name = strings.TrimSpace(name)
	var matches []string
	for _, f := range state.Files {
		if f.RelPath == name {
			return f.RelPath, nil
		}
		if f.Name == name || path.Base(f.RelPath) == name {
			matches = append(matches, f.RelPath)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("file %q is not listed in %s", name, state.CurrentDir)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("file %q is ambiguous: %s", name, strings.Join(matches, ", "))
}

func renderPlan(state catalog.State, outputDir string, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source:    %s\n", state.CurrentDir)
	fmt.Fprintf(&b, "Output:    %s\n", outputDir)
	fmt.Fprintf(&b, "Languages: %s\n", renderLanguages(state.SelectedLanguages))
	rows := make([][]string, 0, len(state.Files))
	for _, f := range state.Files {
		include := paint("yes", ansiGreen, colorize)
		if !f.IncludeFile {
			include = paint("no", ansiDim, colorize)
		}
		rows = append(rows, []string{
			f.Name,
			include,
			renderStreams(f.AudioStreams, f.AudioSelected),
			renderStreams(f.SubtitleStreams, f.SubtitleSelected),
		})
	}
	b.WriteString(renderTable([]column{
		{title: "File", width: 50},
		{title: "Include"},
		{title: "Audio (~ dropped)", width: 40},
		{title: "Subtitles (~ dropped)", width: 40},
	}, rows))
	b.WriteString("\n")
	return b.String()
}
