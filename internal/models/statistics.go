package models

import "time"

// ResponseStatistics holds structural metrics of one validated text.
type ResponseStatistics struct {
	CharCount         int       `json:"char_count"`
	WordCount         int       `json:"word_count"`
	SentenceCount     int       `json:"sentence_count"`
	ParagraphCount    int       `json:"paragraph_count"`
	AvgWordLength     float64   `json:"avg_word_length"`
	AvgSentenceLength float64   `json:"avg_sentence_length"`
	UniqueWordRatio   float64   `json:"unique_word_ratio"`
	Timestamp         time.Time `json:"timestamp"`
}

// MetricDeviation describes how far one metric sits from the baseline.
type MetricDeviation struct {
	Current float64 `json:"current"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stdev"`
	ZScore  float64 `json:"z_score"`
}

// AnomalyResult is the outcome of comparing a response against the baseline.
type AnomalyResult struct {
	IsAnomaly    bool                       `json:"is_anomaly"`
	AnomalyScore float64                    `json:"anomaly_score"`
	Anomalies    []string                   `json:"anomalies"`
	Deviations   map[string]MetricDeviation `json:"deviations,omitempty"`
	Reason       string                     `json:"reason,omitempty"`
	SampleCount  int                        `json:"sample_count"`
}

// PolicyResult is the outcome of the content policy checks.
type PolicyResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}
