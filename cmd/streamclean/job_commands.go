package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"streamclean/internal/api"
	"streamclean/internal/roster"
	"streamclean/internal/session"
)

var rosterRetryDelay = 2 * time.Second

func newJobCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show or follow one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withSession(runCtx, func(s *session.Session) error {
				if follow {
					if err := s.Follow(runCtx, jobID); err != nil {
						return err
					}
					return followJob(runCtx, cmd.OutOrStdout(), s.Tracker, jobID)
				}
				status, err := s.Client.FetchJob(runCtx, jobID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJob(status, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress until the job finishes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderJob(status api.JobStatus, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:      %s\n", status.JobID)
	fmt.Fprintf(&b, "Status:   %s\n", renderStatus(status.Status, colorize))
	fmt.Fprintf(&b, "Progress: %s %s\n", progressBar(status.OverallPercent, 24), renderPercent(status.OverallPercent))
	if status.Dir != "" {
		fmt.Fprintf(&b, "Dir:      %s\n", status.Dir)
	}
	if file := status.CurrentFileName(); file != "" {
		fmt.Fprintf(&b, "Current:  %s\n", file)
	}
	if len(status.Files) > 0 {
		fmt.Fprintf(&b, "Files:    %d\n", len(status.Files))
		for _, f := range status.Files {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	if len(status.Logs) > 0 {
		b.WriteString("Logs:\n")
		for _, line := range status.Logs {
			fmt.Fprintf(&b, "  | %s\n", line)
		}
	}
	return b.String()
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show active jobs on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withSession(runCtx, func(s *session.Session) error {
				if watch {
					return watchRoster(runCtx, cmd.OutOrStdout(), s.Roster)
				}
				jobs, err := firstRoster(runCtx, s.Roster, cfg.EventsTimeout())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, jobs)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderRoster(jobs, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep the list open and redraw on every update")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

var errRosterUnavailable = errors.New("jobs list channel closed before the first update")

// firstRoster connects, waits for one jobs_list event, and disconnects.
func firstRoster(ctx context.Context, r *roster.Roster, timeout time.Duration) ([]api.ActiveJob, error) {
	updates := make(chan struct{}, 1)
	cancel := r.Subscribe(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer cancel()

	seen := r.Generation()
	r.ConnectEvents()
	defer r.Disconnect()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if r.Generation() != seen {
			return r.Ordered(), nil
		}
		if !r.Connected() {
			return nil, errRosterUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("no jobs list received within %s", timeout)
		case <-updates:
		}
	}
}

// watchRoster redraws the roster on every update. A dropped channel is
// reopened after a short delay.
func watchRoster(ctx context.Context, out io.Writer, r *roster.Roster) error {
	updates := make(chan struct{}, 1)
	cancel := r.Subscribe(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer cancel()
	defer r.Disconnect()

	colorize := shouldColorize(out)
	// Zero means nothing drawn yet; the server sends its current list once
	// per connection, so any list already received must be drawn.
	var drawn uint64
	r.ConnectEvents()
	for {
		if gen := r.Generation(); gen != drawn {
			drawn = gen
			if colorize {
				fmt.Fprint(out, "\x1b[H\x1b[2J")
			}
			fmt.Fprintf(out, "%s  (%s)\n", "Active jobs", time.Now().Format("15:04:05"))
			fmt.Fprint(out, renderRoster(r.Ordered(), colorize))
		}

		var retry <-chan time.Time
		if !r.Connected() {
			fmt.Fprintln(out, paint("jobs list disconnected; reconnecting", ansiYellow, colorize))
			retry = time.After(rosterRetryDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry:
			r.ConnectEvents()
		case <-updates:
		}
	}
}

func renderRoster(jobs []api.ActiveJob, colorize bool) string {
	if len(jobs) == 0 {
		return "No active jobs\n"
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		cancelable := "-"
		if roster.Cancelable(job) {
			cancelable = "yes"
		}
		current := ""
		if job.CurrentFile != nil {
			current = *job.CurrentFile
		}
		rows = append(rows, []string{
			job.JobID,
			renderStatus(job.Status, colorize),
			renderPercent(job.OverallPercent),
			job.Label(),
			valueOrDash(current),
			cancelable,
		})
	}
	return renderTable([]column{
		{title: "Job"},
		{title: "Status"},
		{title: "Progress", align: alignRight},
		{title: "Item", width: 40},
		{title: "Current File", width: 40},
		{title: "Cancel"},
	}, rows) + "\n"
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd.Context(), func(s *session.Session) error {
				cancelled, err := s.Roster.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if cancelled {
					fmt.Fprintf(out, "Cancelled job %s\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Job %s was not cancelled (only pending jobs can be cancelled)\n", args[0])
				return nil
			})
		},
	}
}
