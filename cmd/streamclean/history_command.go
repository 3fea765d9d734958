package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"streamclean/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs submitted from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(cmd.Context(), func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if entries == nil {
						entries = []history.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderHistory(entries, time.Now(), shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderHistory(entries []history.Entry, now time.Time, colorize bool) string {
	if len(entries) == 0 {
		return "No jobs recorded\n"
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		finished := "-"
		if e.FinishedAt != nil {
			finished = humanize.RelTime(*e.FinishedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{
			e.JobID,
			renderStatus(e.Status, colorize),
			e.Dir,
			e.OutputDir,
			strconv.Itoa(e.FileCount),
			valueOrDash(strings.Join(e.Languages, ",")),
			humanize.RelTime(e.SubmittedAt, now, "ago", "from now"),
			finished,
		})
	}
	return renderTable([]column{
		{title: "Job"},
		{title: "Status"},
		{title: "Dir", width: 40},
		{title: "Output", width: 40},
		{title: "Files", align: alignRight},
		{title: "Languages"},
		{title: "Submitted"},
		{title: "Finished"},
	}, rows) + "\n"
}
