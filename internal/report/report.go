// Package report renders the end-of-run summary.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"chatarchive/internal/importer"
)

// Summary is what a report describes.
type Summary struct {
	Archive string
	RunID   string
	DryRun  bool
	Elapsed time.Duration
	Stats   importer.RunStats
}

// FromResult builds a Summary from a finished pipeline run.
func FromResult(res *importer.Result) Summary {
	return Summary{
		Archive: res.Archive,
		RunID:   res.RunID,
		DryRun:  res.DryRun,
		Elapsed: res.FinishedAt.Sub(res.StartedAt),
		Stats:   res.Stats,
	}
}

type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   r.NewStyle().Width(22),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warn:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	}
}

// Write renders s to w, styled for w's terminal capabilities.
func Write(w io.Writer, s Summary) error {
	_, err := io.WriteString(w, Render(lipgloss.NewRenderer(w), s))
	return err
}

// Render formats s. It has no side effects.
func Render(r *lipgloss.Renderer, s Summary) string {
	st := newStyles(r)
	stats := s.Stats

	var b strings.Builder
	title := "Import summary"
	if s.DryRun {
		title += " (dry run)"
	}
	b.WriteString(st.heading.Render(title))
	b.WriteString("\n")

	line := func(label, value, note string) {
		b.WriteString("  ")
		b.WriteString(st.label.Render(label))
		b.WriteString(value)
		if note != "" {
			b.WriteString("  ")
			b.WriteString(st.muted.Render(note))
		}
		b.WriteString("\n")
	}

	if s.Archive != "" {
		line("archive", s.Archive, "")
	}
	if s.RunID != "" {
		line("run id", s.RunID, "")
	}
	line("processed", count(stats.Processed), "")
	line("new conversations", count(stats.NewConversations), share(stats.NewConversations, stats.Processed, "processed"))
	line("skipped conversations", count(stats.SkippedConversations), share(stats.SkippedConversations, stats.Processed, "processed"))
	line("auto-assigned", count(stats.AutoAssignedProjects), share(stats.AutoAssignedProjects, stats.NewConversations, "new conversations"))
	totalMessages := stats.NewMessages + stats.SkippedMessages
	line("new messages", count(stats.NewMessages), share(stats.NewMessages, totalMessages, "messages seen"))
	line("skipped messages", count(stats.SkippedMessages), share(stats.SkippedMessages, totalMessages, "messages seen"))
	if stats.ClassifyFailures > 0 {
		line("classify failures", count(stats.ClassifyFailures), "")
	}
	line("errors", count(stats.Errors), "")
	if s.Elapsed > 0 {
		line("elapsed", s.Elapsed.Round(time.Millisecond).String(), "")
	}

	status := Status(s)
	if stats.Errors > 0 {
		b.WriteString(st.warn.Render(status))
	} else {
		b.WriteString(st.ok.Render(status))
	}
	b.WriteString("\n")
	return b.String()
}

// Status is the one-line verdict at the end of a report.
func Status(s Summary) string {
	stats := s.Stats
	prefix := "Import"
	if s.DryRun {
		prefix = "Dry run"
	}
	switch {
	case stats.Processed == 0:
		return prefix + " finished: no conversations in export"
	case stats.Errors > 0:
		return fmt.Sprintf("%s finished with %s", prefix, humanize.Comma(int64(stats.Errors))+plural(stats.Errors, " error", " errors"))
	case stats.NewConversations == 0 && stats.NewMessages == 0:
		return prefix + " finished: archive already up to date"
	default:
		return prefix + " finished successfully"
	}
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

// share returns "(x.y% of what)" or "" when whole is zero.
func share(part, whole int, what string) string {
	if whole == 0 {
		return ""
	}
	return fmt.Sprintf("(%.1f%% of %s)", float64(part)*100/float64(whole), what)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
