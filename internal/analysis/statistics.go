package analysis

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stoicmail/reflection-guard/internal/models"
)

var sentenceTerminators = regexp.MustCompile(`[.!?]+`)

// Analyze computes the structural metrics of text.
func Analyze(text string) models.ResponseStatistics {
	return AnalyzeAt(text, time.Now().UTC())
}

// AnalyzeAt is Analyze with an explicit timestamp.
func AnalyzeAt(text string, at time.Time) models.ResponseStatistics {
	words := strings.Fields(text)
	wordCount := len(words)

	sentences := max(len(sentenceTerminators.FindAllStringIndex(text, -1)), 1)

	stats := models.ResponseStatistics{
		CharCount:         utf8.RuneCountInString(text),
		WordCount:         wordCount,
		SentenceCount:     sentences,
		ParagraphCount:    max(CountParagraphs(text), 1),
		AvgSentenceLength: float64(wordCount) / float64(sentences),
		Timestamp:         at,
	}

	if wordCount > 0 {
		totalLen := 0
		unique := make(map[string]struct{}, wordCount)
		for _, w := range words {
			totalLen += utf8.RuneCountInString(w)
			unique[strings.ToLower(w)] = struct{}{}
		}
		stats.AvgWordLength = float64(totalLen) / float64(wordCount)
		stats.UniqueWordRatio = float64(len(unique)) / float64(wordCount)
	}
	return stats
}

// CountParagraphs counts non-blank blocks separated by blank lines.
func CountParagraphs(text string) int {
	n := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			n++
		}
	}
	return n
}

// metric names a tracked statistic and how to read it.
type metric struct {
	name  string
	value func(models.ResponseStatistics) float64
}

// trackedMetrics are compared against the baseline. sentence_count is left
// out since avg_sentence_length already reflects it.
var trackedMetrics = []metric{
	{"char_count", func(s models.ResponseStatistics) float64 { return float64(s.CharCount) }},
	{"word_count", func(s models.ResponseStatistics) float64 { return float64(s.WordCount) }},
	{"paragraph_count", func(s models.ResponseStatistics) float64 { return float64(s.ParagraphCount) }},
	{"avg_word_length", func(s models.ResponseStatistics) float64 { return s.AvgWordLength }},
	{"avg_sentence_length", func(s models.ResponseStatistics) float64 { return s.AvgSentenceLength }},
	{"unique_word_ratio", func(s models.ResponseStatistics) float64 { return s.UniqueWordRatio }},
}

// meanStdDev returns the mean and sample standard deviation. The deviation is
// zero for fewer than two values.
func meanStdDev(values []float64) (mean, stdev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
