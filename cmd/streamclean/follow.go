package main

import (
	"context"
	"fmt"
	"io"

	"streamclean/internal/api"
	"streamclean/internal/jobtrack"
)

// followJob prints tracker updates until the job finishes, the channel drops,
// or ctx is cancelled.
func followJob(ctx context.Context, out io.Writer, tracker *jobtrack.Tracker, jobID string) error {
	updates := make(chan struct{}, 1)
	cancel := tracker.Subscribe(func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer cancel()

	printer := &progressPrinter{out: out, colorize: shouldColorize(out)}
	for {
		state := tracker.Snapshot()
		printer.update(state)

		switch {
		case state.Status == api.StatusFailed:
			return fmt.Errorf("job %s failed", jobID)
		case state.Status.Terminal():
			return nil
		case state.Error != "":
			return fmt.Errorf("job %s: %s", jobID, state.Error)
		case !state.Connected:
			return fmt.Errorf("lost connection to job %s updates; resume with: streamclean job %s --follow", jobID, jobID)
		}

		select {
		case <-ctx.Done():
			tracker.Disconnect()
			return ctx.Err()
		case <-updates:
		}
	}
}

type progressPrinter struct {
	out      io.Writer
	colorize bool

	lastStatus  api.Status
	lastPercent float64
	lastFile    string
	printedLogs []string
	started     bool
}

func (p *progressPrinter) update(state jobtrack.State) {
	changed := !p.started ||
		state.Status != p.lastStatus ||
		state.Progress != p.lastPercent ||
		state.CurrentFile != p.lastFile
	if changed {
		p.started = true
		p.lastStatus = state.Status
		p.lastPercent = state.Progress
		p.lastFile = state.CurrentFile
		line := fmt.Sprintf("%-10s %s %6s", renderStatus(state.Status, p.colorize), progressBar(state.Progress, 24), renderPercent(state.Progress))
		if state.CurrentFile != "" {
			line += "  " + state.CurrentFile
		}
		fmt.Fprintln(p.out, line)
	}
	p.printLogs(state.Logs)
}

// printLogs prints log lines not shown yet. Batches replace each other, so a
// batch that does not extend the previous one is printed in full.
func (p *progressPrinter) printLogs(logs []string) {
	start := 0
	if len(logs) >= len(p.printedLogs) && hasPrefix(logs, p.printedLogs) {
		start = len(p.printedLogs)
	} else if len(logs) == 0 {
		return
	}
	for _, line := range logs[start:] {
		fmt.Fprintln(p.out, paint("  | "+line, ansiDim, p.colorize))
	}
	p.printedLogs = append([]string{}, logs...)
}

func hasPrefix(logs, prefix []string) bool {
	for i := range prefix {
		if logs[i] != prefix[i] {
			return false
		}
	}
	return true
}
