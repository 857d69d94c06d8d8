package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/picklr-io/sitedeploy/internal/engine"
	"github.com/picklr-io/sitedeploy/internal/ir"
)

const (
	barWidth = 40

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// progressBar renders pct (0-100) as a fixed-width bar.
func progressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "]"
}

// renderer prints deploy events as they arrive.
type renderer struct {
	w          io.Writer
	inProgress bool
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w}
}

func (r *renderer) handle(e engine.DeployEvent) {
	switch e.Status {
	case engine.StatusStarted:
		return
	case engine.StatusProgress:
		if e.Detail != "" {
			r.endLine()
			fmt.Fprintf(r.w, "  %s\n", e.Detail)
		}
		fmt.Fprintf(r.w, "\r  %s %5.1f%%", progressBar(e.Progress, barWidth), e.Progress)
		r.inProgress = true
		return
	}

	r.endLine()
	color := colorGreen
	label := "ok"
	switch e.Status {
	case engine.StatusSkipped:
		color, label = colorGray, "skipped"
	case engine.StatusDegraded:
		color, label = colorYellow, "degraded"
	case engine.StatusFailed:
		color, label = colorRed, "failed"
	}

	line := fmt.Sprintf("%s%-8s%s %-10s", colorize(color), label, colorize(colorReset), e.Step)
	if e.Detail != "" {
		line += " " + e.Detail
	}
	if e.Error != nil {
		line += ": " + e.Error.Error()
	}
	if e.Duration > 0 && e.Status != engine.StatusSkipped {
		line += fmt.Sprintf(" (%s)", e.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(r.w, line)
}

func (r *renderer) endLine() {
	if r.inProgress {
		fmt.Fprintln(r.w)
		r.inProgress = false
	}
}

// summary prints the outcome of a deployment report.
func (r *renderer) summary(report *ir.DeployReport) {
	r.endLine()
	if report == nil || report.Website == nil {
		return
	}
	fmt.Fprintln(r.w)

	if report.ChangeID != "" && !report.Status.Pending() && report.Status != "" {
		fmt.Fprintf(r.w, "%sDeployment complete!%s http://%s\n", colorize(colorGreen), colorize(colorReset), report.Website.BucketName)
	}
	if report.Zone.ID != "" {
		fmt.Fprintf(r.w, "  hosted zone: %s (%s)\n", report.Zone.Name, report.Zone.ID)
	}
	if report.Bucket.Name != "" {
		fmt.Fprintf(r.w, "  bucket:      %s\n", report.Bucket.Name)
	}
	if report.ChangeID != "" {
		fmt.Fprintf(r.w, "  change:      %s (%s)\n", report.ChangeID, report.Status)
	}

	if report.Degraded() {
		fmt.Fprintf(r.w, "\n%sWarning:%s some steps did not complete:\n", colorize(colorYellow), colorize(colorReset))
		for _, s := range report.Steps {
			if s.Outcome != ir.OutcomeDegraded && s.Outcome != ir.OutcomeFailed {
				continue
			}
			msg := string(s.Outcome)
			if s.Err != nil {
				msg = errorLines(s.Err)
			}
			fmt.Fprintf(r.w, "  - %s: %s\n", s.Step, msg)
		}
	}
}

// errorLines flattens joined errors onto one line.
func errorLines(err error) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		parts := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			parts = append(parts, e.Error())
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
