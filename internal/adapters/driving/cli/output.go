package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	defaultWidth = 100
)

// terminalWidth returns the stdout width, or defaultWidth when stdout is
// not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// formatSeconds renders a stream offset as h:mm:ss.
func formatSeconds(sec float64) string {
	total := int(sec)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// printReport renders a run summary.
func printReport(cmd *cobra.Command, r *domain.RunReport) {
	status := okStyle.Render("ok")
	if failed := r.FailedUnits(); len(failed) > 0 {
		status = warnStyle.Render(fmt.Sprintf("partial (%d failed)", len(failed)))
	}

	cmd.Printf("%s %s\n", headerStyle.Render(r.VideoID), status)
	cmd.Printf("  Segments:  %d", r.Segments)
	if r.SegmentationReused {
		cmd.Print(dimStyle.Render(" (cached)"))
	}
	cmd.Println()
	cmd.Printf("  Blocks:    %d\n", r.Blocks)
	cmd.Printf("  Opinions:  %d written, %d cached, %d without mentions, %d calls\n",
		r.OpinionsWritten, r.CacheHits, r.MentionNegative, r.OpinionCalls)
	if r.Exported {
		cmd.Println("  Export:    written")
	}
	for _, f := range r.Failures {
		style := failStyle
		if f.Kind == domain.FailureRepaired {
			style = dimStyle
		}
		cmd.Printf("  %s\n", style.Render(truncate(f.String(), terminalWidth()-2)))
	}
}
