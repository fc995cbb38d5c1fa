package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// Verdict converts a finished report into an error for callers that branch on
// the outcome. Clean content yields nil. Rejected content wraps
// utils.ErrContentRejected, and content that passed with advisory findings
// wraps utils.ErrContentFlagged.
func Verdict(report models.ValidationReport) error {
	switch report.SecurityStatus {
	case models.StatusPassed:
		if findings := advisories(report); len(findings) > 0 {
			return fmt.Errorf("%w: %s", utils.ErrContentFlagged, strings.Join(findings, "; "))
		}
		return nil
	case models.StatusRejected:
		var blocked []string
		for _, cr := range report.CheckResults {
			if cr.Blocking() {
				blocked = append(blocked, cr.CheckName)
			}
		}
		return fmt.Errorf("%w: %s", utils.ErrContentRejected, strings.Join(blocked, ", "))
	}
	if report.Error == "" {
		return errors.New("validation failed")
	}
	return errors.New(report.Error)
}

func advisories(report models.ValidationReport) []string {
	var out []string
	for _, cr := range report.CheckResults {
		if cr.Flagged() {
			out = append(out, cr.CheckName)
		}
	}
	if report.AnomalyDetection != nil && report.AnomalyDetection.IsAnomaly {
		out = append(out, fmt.Sprintf("anomaly score %.2f", report.AnomalyDetection.AnomalyScore))
	}
	if report.ContentPolicy != nil {
		out = append(out, report.ContentPolicy.Violations...)
	}
	return out
}
