package services

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stoicmail/reflection-guard/internal/api"
	"github.com/stoicmail/reflection-guard/internal/audit"
	"github.com/stoicmail/reflection-guard/internal/engine"
	"github.com/stoicmail/reflection-guard/internal/metrics"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// MaxRequestBytes bounds the text accepted over the transport.
const MaxRequestBytes = 1 << 20

var contentTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Validator runs the end-to-end validation.
type Validator interface {
	Validate(ctx context.Context, req engine.Request) models.ValidationReport
}

// GuardService implements the gRPC ContentGuard service.
type GuardService struct {
	logger    *slog.Logger
	pipeline  Validator
	latencies *utils.LatencyTracker
}

// NewGuardService constructs the validation service facade.
func NewGuardService(logger *slog.Logger, pipeline Validator) *GuardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardService{
		logger:    logger,
		pipeline:  pipeline,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Validate checks the request envelope and runs the pipeline. Rejections and
// pipeline errors are reported in the ValidationReport, not as gRPC errors.
func (s *GuardService) Validate(ctx context.Context, req *api.ValidateRequest) (*models.ValidationReport, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.pipeline == nil {
		return nil, status.Error(codes.FailedPrecondition, "pipeline not configured")
	}
	if len(req.Text) > MaxRequestBytes {
		return nil, status.Errorf(codes.InvalidArgument, "text exceeds %d bytes", MaxRequestBytes)
	}
	if req.ContentType != "" && !contentTypePattern.MatchString(req.ContentType) {
		return nil, status.Error(codes.InvalidArgument, "content_type must be a lowercase identifier")
	}
	if req.CorrelationID != "" && !audit.ValidCorrelationID(req.CorrelationID) {
		return nil, status.Error(codes.InvalidArgument, "correlation_id must be 1-64 letters, digits, '-' or '_'")
	}

	requestID := api.RequestIDFromContext(ctx)
	s.logger.Debug("Validate called",
		slog.String("content_type", req.ContentType),
		slog.String("request_id", requestID),
		slog.Int("bytes", len(req.Text)))

	start := time.Now()
	report := s.pipeline.Validate(ctx, engine.Request{
		Text:          req.Text,
		ContentType:   req.ContentType,
		CorrelationID: req.CorrelationID,
		RequestID:     requestID,
		SkipAnomaly:   req.SkipAnomaly,
	})
	duration := time.Since(start)

	metrics.ObserveValidation(Outcome(report))
	s.latencies.Observe(duration)
	if total := s.latencies.Total(); total%20 == 0 {
		sum := s.latencies.Summary()
		s.logger.Info("validation latency",
			slog.Duration("p50", sum.P50),
			slog.Duration("p95", sum.P95),
			slog.Int("samples", sum.Samples))
	}

	return &report, nil
}

// Outcome maps a report to its metrics label.
func Outcome(report models.ValidationReport) string {
	switch report.SecurityStatus {
	case models.StatusPassed:
		return metrics.OutcomePassed
	case models.StatusRejected:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

// Latency summarises recent validation durations.
func (s *GuardService) Latency() utils.LatencySummary {
	return s.latencies.Summary()
}
