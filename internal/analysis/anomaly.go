package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/store"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// ReasonInsufficientHistory marks results produced before the baseline holds
// enough samples to judge.
const ReasonInsufficientHistory = "insufficient_historical_data"

// Detector compares responses against a rolling baseline of earlier ones.
//
// Every analysed response joins the baseline, anomalous or not. Until
// MinSamplesForDetection samples exist nothing is flagged, which means the
// first responses shape the baseline unchecked.
type Detector struct {
	store  store.HistoryStore
	cfg    config.AnomalyDetectionConfig
	logger *slog.Logger
}

// NewDetector builds a detector persisting through st.
func NewDetector(st store.HistoryStore, cfg config.AnomalyDetectionConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryKey == "" {
		cfg.HistoryKey = config.DefaultHistoryKey
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = config.DefaultMaxHistory
	}
	if cfg.DeviationThresholdSigma <= 0 {
		cfg.DeviationThresholdSigma = config.DefaultSigmaThreshold
	}
	if cfg.MinSamplesForDetection <= 0 {
		cfg.MinSamplesForDetection = config.DefaultMinSamples
	}
	return &Detector{store: st, cfg: cfg, logger: logger}
}

// Detect evaluates current against the stored baseline and appends it. The
// returned result is always usable. A non-nil error reports a persistence
// failure: when the baseline could not be read the result is computed against
// an empty baseline and nothing is written back.
func (d *Detector) Detect(ctx context.Context, current models.ResponseStatistics) (models.AnomalyResult, error) {
	if atomic, ok := d.store.(store.AtomicHistoryStore); ok {
		return d.detectAtomic(ctx, atomic, current)
	}
	return d.detectLoadSave(ctx, current)
}

func (d *Detector) detectAtomic(ctx context.Context, st store.AtomicHistoryStore, current models.ResponseStatistics) (models.AnomalyResult, error) {
	var (
		result models.AnomalyResult
		loaded bool
	)
	err := st.UpdateHistory(ctx, d.cfg.HistoryKey, func(history []models.ResponseStatistics) []models.ResponseStatistics {
		loaded = true
		result = d.evaluate(history, current)
		return d.appendTrimmed(history, current)
	})
	if err != nil {
		if !loaded {
			result = d.evaluate(nil, current)
		}
		d.logger.Warn("anomaly baseline update failed", slog.String("key", d.cfg.HistoryKey), slog.Any("error", err))
		return result, utils.PersistenceError("analysis.Detect", err)
	}
	return result, nil
}

// detectLoadSave serves stores without atomic updates. Two validations racing
// here can each append to the same snapshot, dropping one sample. That only
// shrinks the baseline and never changes a single decision.
func (d *Detector) detectLoadSave(ctx context.Context, current models.ResponseStatistics) (models.AnomalyResult, error) {
	history, _, err := d.store.LoadHistory(ctx, d.cfg.HistoryKey)
	if err != nil {
		d.logger.Warn("anomaly baseline unavailable, using empty baseline", slog.Any("error", err))
		return d.evaluate(nil, current), utils.PersistenceError("analysis.Detect", err)
	}
	result := d.evaluate(history, current)
	if err := d.store.SaveHistory(ctx, d.cfg.HistoryKey, d.appendTrimmed(history, current)); err != nil {
		d.logger.Warn("anomaly baseline save failed", slog.Any("error", err))
		return result, utils.PersistenceError("analysis.Detect", err)
	}
	return result, nil
}

func (d *Detector) appendTrimmed(history []models.ResponseStatistics, current models.ResponseStatistics) []models.ResponseStatistics {
	next := append(history[:len(history):len(history)], current)
	if over := len(next) - d.cfg.MaxHistory; over > 0 {
		next = next[over:]
	}
	return next
}

func (d *Detector) evaluate(history []models.ResponseStatistics, current models.ResponseStatistics) models.AnomalyResult {
	if len(history) < d.cfg.MinSamplesForDetection {
		d.logger.Info("insufficient history for anomaly detection",
			slog.Int("samples", len(history)), slog.Int("required", d.cfg.MinSamplesForDetection))
		return models.AnomalyResult{
			Anomalies:   []string{},
			Reason:      ReasonInsufficientHistory,
			SampleCount: len(history),
		}
	}

	result := models.AnomalyResult{
		Anomalies:   []string{},
		Deviations:  make(map[string]models.MetricDeviation),
		SampleCount: len(history),
	}
	values := make([]float64, len(history))
	for _, m := range trackedMetrics {
		for i, h := range history {
			values[i] = m.value(h)
		}
		mean, stdev := meanStdDev(values)
		if stdev <= 0 {
			continue
		}
		cur := m.value(current)
		z := math.Abs(cur-mean) / stdev
		result.Deviations[m.name] = models.MetricDeviation{Current: cur, Mean: mean, StdDev: stdev, ZScore: z}
		result.AnomalyScore = math.Max(result.AnomalyScore, z)
		if z > d.cfg.DeviationThresholdSigma {
			result.Anomalies = append(result.Anomalies,
				fmt.Sprintf("%s: %.2f (expected %.2f±%.2f, z=%.2f)", m.name, cur, mean, stdev, z))
		}
	}
	result.IsAnomaly = len(result.Anomalies) > 0
	if result.IsAnomaly {
		d.logger.Warn("anomaly detected", slog.Int("metrics", len(result.Anomalies)), slog.Float64("score", result.AnomalyScore))
	}
	return result
}
