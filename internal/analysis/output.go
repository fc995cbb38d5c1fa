package analysis

import (
	"context"
	"log/slog"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/store"
)

// OutputReport is the semantic validation of text that already passed the
// rule checks.
type OutputReport struct {
	Statistics   models.ResponseStatistics `json:"statistics"`
	Anomaly      *models.AnomalyResult     `json:"anomaly_detection"`
	Policy       models.PolicyResult       `json:"content_policy"`
	OverallValid bool                      `json:"overall_valid"`
	Issues       []string                  `json:"issues"`
	// BaselineError is set when the anomaly baseline could not be read or
	// written. It never affects OverallValid.
	BaselineError error `json:"-"`
}

// OutputValidator runs statistics, anomaly detection and content policy in
// that order.
type OutputValidator struct {
	detector *Detector
	policy   *PolicyValidator
	logger   *slog.Logger
}

// NewOutputValidator wires the validator. Anomaly detection is skipped
// entirely when disabled in cfg.
func NewOutputValidator(st store.HistoryStore, cfg config.SecurityConfig, logger *slog.Logger) *OutputValidator {
	if logger == nil {
		logger = slog.Default()
	}
	v := &OutputValidator{
		policy: NewPolicyValidator(cfg.ContentPolicy),
		logger: logger,
	}
	if cfg.AnomalyDetection.Enabled && st != nil {
		v.detector = NewDetector(st, cfg.AnomalyDetection, logger)
	}
	return v
}

// Validate analyses text. Anomalies are reported as issues but only policy
// violations make the result invalid.
func (v *OutputValidator) Validate(ctx context.Context, text string, checkAnomalies bool) (bool, OutputReport) {
	report := OutputReport{Issues: []string{}}

	report.Statistics = Analyze(text)
	v.logger.Info("response statistics",
		slog.Int("words", report.Statistics.WordCount),
		slog.Int("paragraphs", report.Statistics.ParagraphCount))

	if checkAnomalies && v.detector != nil {
		result, err := v.detector.Detect(ctx, report.Statistics)
		report.Anomaly = &result
		report.BaselineError = err
		for _, a := range result.Anomalies {
			report.Issues = append(report.Issues, "Anomaly: "+a)
		}
	}

	report.Policy = v.policy.Validate(text)
	if !report.Policy.Valid {
		v.logger.Warn("content policy violations", slog.Any("violations", report.Policy.Violations))
		report.Issues = append(report.Issues, report.Policy.Violations...)
	}

	report.OverallValid = report.Policy.Valid
	return report.OverallValid, report
}
