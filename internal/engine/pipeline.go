package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stoicmail/reflection-guard/internal/alerting"
	"github.com/stoicmail/reflection-guard/internal/analysis"
	"github.com/stoicmail/reflection-guard/internal/audit"
	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/security"
	"github.com/stoicmail/reflection-guard/internal/store"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// DefaultContentType is used when a request does not name one.
const DefaultContentType = "reflection"

// ErrEmptyContent is reported for blank input.
var ErrEmptyContent = errors.New("content is empty")

// Request is one piece of generated content to validate.
type Request struct {
	Text          string
	ContentType   string
	CorrelationID string
	RequestID     string
	// SkipAnomaly disables the baseline comparison for this request only.
	SkipAnomaly bool
}

// Dependencies are the external collaborators of the pipeline. Any of them may be nil.
type Dependencies struct {
	History  store.HistoryStore
	Audit    store.AuditStore
	Metrics  alerting.MetricsSink
	Notifier alerting.Notifier
}

// Pipeline runs the full defense-in-depth validation of one piece of content.
// It is safe for concurrent use; per-call state lives in the audit trail and
// alert manager created by Validate.
type Pipeline struct {
	cfg       config.SecurityConfig
	validator *security.Validator
	output    *analysis.OutputValidator
	deps      Dependencies
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline compiles the policy and wires collaborators. It fails only on
// malformed configuration.
func NewPipeline(cfg config.SecurityConfig, deps Dependencies, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	validator, err := security.NewValidator(cfg, logger)
	if err != nil {
		return nil, err
	}

	var output *analysis.OutputValidator
	if cfg.ContentPolicy.Enabled || cfg.AnomalyDetection.Enabled {
		output = analysis.NewOutputValidator(deps.History, cfg, logger)
	}

	return &Pipeline{
		cfg:       cfg,
		validator: validator,
		output:    output,
		deps:      deps,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Validate never returns an error: rejections, flags and unexpected failures
// are all reported through the ValidationReport.
func (p *Pipeline) Validate(ctx context.Context, req Request) (report models.ValidationReport) {
	start := p.now()
	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	trail := audit.NewLogger(p.deps.Audit, req.CorrelationID, req.RequestID, p.logger)
	logger := p.logger.With(slog.String("correlation_id", trail.CorrelationID()))
	alerts := alerting.NewManager(p.cfg.Alerting, p.deps.Metrics, p.deps.Notifier, logger)

	defer func() {
		if r := recover(); r != nil {
			report = p.errorReport(ctx, trail, alerts, logger, contentType, fmt.Errorf("%w: %v", utils.ErrUnexpected, r))
		}
	}()

	if strings.TrimSpace(req.Text) == "" {
		return p.errorReport(ctx, trail, alerts, logger, contentType, ErrEmptyContent)
	}

	trail.LogValidationStart(contentType, audit.HashContent(req.Text))
	logger.Info("starting security validation", slog.String("content_type", contentType))

	res := p.validator.ValidateAndSanitize(req.Text, contentType)
	for _, cr := range res.Checks {
		trail.LogSecurityCheck(cr.CheckName, cr.Passed, cr.Severity, map[string]any{
			"message":          cr.Details,
			"matched_patterns": cr.MatchedPatterns,
		})
	}
	if len(res.Modifications) > 0 {
		trail.LogSanitization(res.Modifications, utf8.RuneCountInString(req.Text), utf8.RuneCountInString(res.Sanitized))
	}

	for _, failure := range res.Critical() {
		alerts.AlertBlockedContent(ctx, failure.CheckName, failure.Details, failure.MatchedPatterns)
		trail.LogSecurityIncident(models.EventBlockedContent, models.SeverityCritical,
			"Security check failed: "+failure.CheckName,
			map[string]any{
				"check":    failure.CheckName,
				"details":  failure.Details,
				"patterns": failure.MatchedPatterns,
			})
	}
	for _, warning := range res.Flagged() {
		alerts.AlertSuspiciousContent(ctx, warning.CheckName, warning.Details, warning.MatchedPatterns)
	}

	report = models.ValidationReport{
		ContentType:     contentType,
		Sanitized:       len(res.Modifications) > 0,
		Modifications:   res.Modifications,
		ChecksPerformed: len(res.Checks),
		CheckResults:    res.Checks,
		CorrelationID:   trail.CorrelationID(),
	}
	checkIssues := failedDetails(res.Checks)

	if !res.Safe {
		logger.Error("content failed security validation and was rejected")
		duration := p.now().Sub(start)
		trail.LogValidationComplete(false, duration, len(res.Checks), checkIssues)
		alerts.PublishValidationMetrics(false, duration, len(res.Checks))

		report.Success = false
		report.SecurityStatus = models.StatusRejected
		report.Reason = "Failed security validation"
		report.Issues = checkIssues
		return p.finish(ctx, report, trail, alerts, duration)
	}

	issues := checkIssues
	checksLogged := len(res.Checks)
	if p.output != nil {
		checksLogged++
		valid, out := p.output.Validate(ctx, res.Sanitized, !req.SkipAnomaly)
		if out.BaselineError != nil {
			logger.Warn("anomaly baseline unavailable", slog.Any("error", out.BaselineError))
		}

		stats := out.Statistics
		report.Statistics = &stats
		report.AnomalyDetection = out.Anomaly
		if p.cfg.ContentPolicy.Enabled {
			policy := out.Policy
			report.ContentPolicy = &policy
		}

		if a := out.Anomaly; a != nil {
			if a.IsAnomaly {
				trail.LogAnomalyDetection(true, a.AnomalyScore, a.Anomalies)
				alerts.AlertAnomalyDetected(ctx, a.Anomalies, a.AnomalyScore)
			} else {
				trail.LogAnomalyDetection(false, a.AnomalyScore, nil)
			}
		}
		if !valid {
			alerts.AlertValidationFailure(ctx, strings.Join(out.Issues, "; "), map[string]any{
				"issues":            out.Issues,
				"content_policy":    out.Policy,
				"anomaly_detection": out.Anomaly,
			})
		}
		issues = append(issues, out.Issues...)
	}

	duration := p.now().Sub(start)
	trail.LogValidationComplete(true, duration, checksLogged, issues)
	alerts.PublishValidationMetrics(true, duration, len(res.Checks))

	sanitized := res.Sanitized
	report.Success = true
	report.SecurityStatus = models.StatusPassed
	report.SanitizedText = &sanitized
	report.Issues = issues
	logger.Info("security validation passed", slog.Duration("duration", duration))
	return p.finish(ctx, report, trail, alerts, duration)
}

func (p *Pipeline) finish(ctx context.Context, report models.ValidationReport, trail *audit.Logger, alerts *alerting.Manager, duration time.Duration) models.ValidationReport {
	report.AuditSaved = trail.Save(ctx)
	report.ValidationDurationMs = float64(duration) / float64(time.Millisecond)
	alertSummary := alerts.Summary()
	report.AlertSummary = &alertSummary
	auditSummary := trail.Summary()
	report.AuditSummary = &auditSummary
	return report
}

func (p *Pipeline) errorReport(ctx context.Context, trail *audit.Logger, alerts *alerting.Manager, logger *slog.Logger, contentType string, err error) models.ValidationReport {
	logger.Error("validation error", slog.Any("error", err))
	trail.LogSecurityIncident("validation_error", models.SeverityCritical,
		"Failed to validate content: "+err.Error(),
		map[string]any{"error": err.Error()})

	auditSummary := trail.Summary()
	alertSummary := alerts.Summary()
	return models.ValidationReport{
		Success:        false,
		SecurityStatus: models.StatusError,
		Error:          err.Error(),
		ContentType:    contentType,
		CorrelationID:  trail.CorrelationID(),
		AuditSaved:     trail.Save(ctx),
		AlertSummary:   &alertSummary,
		AuditSummary:   &auditSummary,
	}
}

func failedDetails(checks []models.CheckResult) []string {
	out := []string{}
	for _, c := range checks {
		if !c.Passed {
			out = append(out, c.Details)
		}
	}
	return out
}
