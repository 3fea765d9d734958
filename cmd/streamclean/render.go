package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"streamclean/internal/api"
	"streamclean/internal/language"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiDim    = "\x1b[2m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(value, color string, colorize bool) string {
	if !colorize || color == "" {
		return value
	}
	return color + value + ansiReset
}

func statusColor(status api.Status) string {
	switch status {
	case api.StatusCompleted:
		return ansiGreen
	case api.StatusFailed:
		return ansiRed
	case api.StatusProcessing:
		return ansiBlue
	case api.StatusPending, api.StatusStarting:
		return ansiYellow
	}
	return ""
}

func renderStatus(status api.Status, colorize bool) string {
	label := string(status)
	if label == "" {
		label = "idle"
	}
	return paint(label, statusColor(status), colorize)
}

func renderPercent(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}

func progressBar(percent float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// renderStreams formats streams as "id:lang" pairs; selected marks the ids that
// will be kept when non-nil.
func renderStreams(streams []api.Stream, selected func(int) bool) string {
	if len(streams) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(streams))
	for _, s := range streams {
		part := fmt.Sprintf("%d:%s", s.ID, s.Language)
		if title := strings.TrimSpace(s.Title); title != "" {
			part += " " + title
		}
		if selected != nil && !selected(s.ID) {
			part = "~" + part
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func renderLanguages(codes []string) string {
	if len(codes) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(codes))
	for _, code := range codes {
		labels = append(labels, language.Label(code))
	}
	return strings.Join(labels, ", ")
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
