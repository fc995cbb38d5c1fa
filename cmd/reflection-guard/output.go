package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stoicmail/reflection-guard/internal/engine"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

var (
	fileStyle   = lipgloss.NewStyle().Bold(true)
	passedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	failedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	detailStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func statusStyle(status models.SecurityStatus) lipgloss.Style {
	switch status {
	case models.StatusPassed:
		return passedStyle
	case models.StatusRejected:
		return failedStyle
	}
	return errorStyle
}

// renderText formats one result for a terminal.
func renderText(r fileResult) string {
	var b strings.Builder
	if r.Report == nil {
		fmt.Fprintf(&b, "%s %s\n", fileStyle.Render(r.File), errorStyle.Render(string(models.StatusError)))
		b.WriteString(detailStyle.Render(r.Err) + "\n")
		return b.String()
	}

	rep := r.Report
	status := statusStyle(rep.SecurityStatus).Render(string(rep.SecurityStatus))
	if errors.Is(engine.Verdict(*rep), utils.ErrContentFlagged) {
		status += " " + errorStyle.Render("flagged")
	}
	fmt.Fprintf(&b, "%s %s %s\n",
		fileStyle.Render(r.File),
		status,
		dimStyle.Render(fmt.Sprintf("(%.2fms, correlation %s)", rep.ValidationDurationMs, rep.CorrelationID)))

	if rep.Error != "" {
		b.WriteString(detailStyle.Render("error: "+rep.Error) + "\n")
	}
	for _, cr := range rep.CheckResults {
		if cr.Passed && len(cr.MatchedPatterns) == 0 {
			continue
		}
		line := fmt.Sprintf("[%s] %s: %s", cr.Severity, cr.CheckName, cr.Details)
		b.WriteString(detailStyle.Render(statusForCheck(cr).Render(line)) + "\n")
	}
	if rep.AnomalyDetection != nil && rep.AnomalyDetection.IsAnomaly {
		b.WriteString(detailStyle.Render(fmt.Sprintf("anomaly score %.2f", rep.AnomalyDetection.AnomalyScore)) + "\n")
	}
	if rep.ContentPolicy != nil {
		for _, v := range rep.ContentPolicy.Violations {
			b.WriteString(detailStyle.Render("policy: "+v) + "\n")
		}
	}
	if !rep.AuditSaved {
		b.WriteString(detailStyle.Render(dimStyle.Render("audit trail not saved")) + "\n")
	}
	return b.String()
}

func statusForCheck(cr models.CheckResult) lipgloss.Style {
	if cr.Blocking() {
		return failedStyle
	}
	return errorStyle
}

// renderSummary is the footer printed after several inputs.
func renderSummary(results []fileResult, latency utils.LatencySummary) string {
	counts := map[models.SecurityStatus]int{}
	for _, r := range results {
		if r.Report == nil {
			counts[models.StatusError]++
			continue
		}
		counts[r.Report.SecurityStatus]++
	}
	line := fmt.Sprintf("%d inputs: %s, %s, %s",
		len(results),
		passedStyle.Render(fmt.Sprintf("%d passed", counts[models.StatusPassed])),
		failedStyle.Render(fmt.Sprintf("%d rejected", counts[models.StatusRejected])),
		errorStyle.Render(fmt.Sprintf("%d errors", counts[models.StatusError])))
	return line + " " + dimStyle.Render(fmt.Sprintf("(p50 %s, p95 %s)", latency.P50, latency.P95)) + "\n"
}
