package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// maxListed caps the per-section path listing in the text summary.
const maxListed = 20

// TextReporter writes human-readable output to a writer.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout.
// color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the banner for a cycle.
func (r *TextReporter) PrintHeader(report *CycleReport) {
	mode := ""
	if report.DryRun {
		mode = r.c(colorYellow) + " (dry-run)" + r.c(colorReset)
	}
	fmt.Fprintf(r.w, "purgelogs: %s, retention %d days, cutoff %s (%s)%s\n\n",
		report.Root, report.RetentionDays,
		report.Cutoff.Format(time.DateOnly), humanize.Time(report.Cutoff), mode)
}

// PrintCycle writes the per-section breakdown and summary of a finished cycle.
func (r *TextReporter) PrintCycle(report *CycleReport) {
	label := "REMOVED"
	if report.DryRun {
		label = "WOULD REMOVE"
	}
	r.printActions(label, colorRed, report.Removed)
	r.printActions("PROTECTED", colorGreen, report.Spared)

	if len(report.ProtectedBuildsets) > 0 {
		fmt.Fprintf(r.w, "  %sBUILDSETS  [%d]%s\n", r.c(colorCyan), len(report.ProtectedBuildsets), r.c(colorReset))
		for _, b := range report.ProtectedBuildsets {
			fmt.Fprintf(r.w, "    %-40s %s  %s%s%s\n", b.Project, b.Buildset,
				r.c(colorDim), humanize.Time(b.Latest), r.c(colorReset))
		}
		fmt.Fprintln(r.w)
	}

	if len(report.Unreadable) > 0 {
		fmt.Fprintf(r.w, "  %sUNREADABLE  [%d]%s\n", r.c(colorYellow), len(report.Unreadable), r.c(colorReset))
		for _, p := range report.Unreadable {
			fmt.Fprintf(r.w, "    %s\n", p)
		}
		fmt.Fprintln(r.w)
	}

	r.PrintSummary(report)
}

// PrintSummary writes the final summary line.
func (r *TextReporter) PrintSummary(report *CycleReport) {
	fmt.Fprintf(r.w, "%s--- Summary ---%s\n", r.c(colorCyan), r.c(colorReset))
	fmt.Fprintf(r.w, "Job dirs: %s  ", humanize.Comma(int64(report.JobDirs)))
	fmt.Fprintf(r.w, "%sRemoved: %s%s  ", r.c(colorRed), humanize.Comma(int64(report.Deleted)), r.c(colorReset))
	fmt.Fprintf(r.w, "%sProtected: %s%s  ", r.c(colorGreen), humanize.Comma(int64(report.Protected)), r.c(colorReset))
	fmt.Fprintf(r.w, "Kept: %s  ", humanize.Comma(int64(report.Kept)))
	fmt.Fprintf(r.w, "Duration: %s", report.Duration.Truncate(time.Millisecond))
	if report.Error != "" {
		fmt.Fprintf(r.w, "  %sError: %s%s", r.c(colorRed), report.Error, r.c(colorReset))
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) printActions(label, color string, actions []Action) {
	if len(actions) == 0 {
		return
	}
	fmt.Fprintf(r.w, "  %s%s  [%d]%s\n", r.c(color), label, len(actions), r.c(colorReset))
	for i, a := range actions {
		if i == maxListed {
			fmt.Fprintf(r.w, "    %s… and %d more%s\n", r.c(colorDim), len(actions)-maxListed, r.c(colorReset))
			break
		}
		suffix := humanize.Time(a.ModTime)
		if a.Buildset != "" {
			suffix = a.Buildset + ", " + suffix
		}
		fmt.Fprintf(r.w, "    %s  %s(%s)%s\n", a.Path, r.c(colorDim), suffix, r.c(colorReset))
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}
