package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/engine"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/utils"
)

// Exit codes of the check command.
const (
	codePassed   = 0
	codeError    = 1
	codeRejected = 2
)

type checkOptions struct {
	configPath  string
	envFile     string
	contentType string
	format      string
	parallel    int
	noAnomaly   bool
}

// fileResult is one input and its report.
type fileResult struct {
	File   string                   `json:"file"`
	Report *models.ValidationReport `json:"report,omitempty"`
	Err    string                   `json:"error,omitempty"`
}

func runCheck(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts checkOptions
	flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (YAML or JSON)")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flagSet.StringVarP(&opts.contentType, "content-type", "t", engine.DefaultContentType, "content type recorded in the audit trail")
	flagSet.StringVarP(&opts.format, "format", "f", "text", "output format: text or json")
	flagSet.IntVarP(&opts.parallel, "parallel", "p", 4, "files validated concurrently")
	flagSet.BoolVar(&opts.noAnomaly, "no-anomaly", false, "skip the baseline comparison")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &exitError{code: codeError, err: err}
	}

	inputs := flagSet.Args()
	if len(inputs) == 0 {
		return &exitError{code: codeError, err: errors.New("check needs at least one file, or - for stdin")}
	}
	if opts.format != "text" && opts.format != "json" {
		return &exitError{code: codeError, err: fmt.Errorf("unknown format %q", opts.format)}
	}
	if opts.parallel < 1 {
		opts.parallel = 1
	}

	if err := loadDotEnv(opts.envFile); err != nil {
		return &exitError{code: codeError, err: err}
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &exitError{code: codeError, err: fmt.Errorf("load config: %w", err)}
	}
	logger := utils.NewLoggerTo(stderr, cfg.Logging.Level, cfg.Logging.JSON)

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return &exitError{code: codeError, err: err}
	}
	defer rt.close()

	results := make([]fileResult, len(inputs))
	latencies := utils.NewLatencyTracker(len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	for i, input := range inputs {
		g.Go(func() error {
			start := time.Now()
			results[i] = checkOne(gctx, rt.pipeline, input, stdin, opts)
			latencies.Observe(time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	if err := writeResults(stdout, opts.format, results, latencies.Summary()); err != nil {
		return &exitError{code: codeError, err: err}
	}

	switch code := exitCode(results); code {
	case codePassed:
		return nil
	case codeRejected:
		return &exitError{code: code, err: fmt.Errorf("%d of %d inputs: %w", countRejected(results), len(results), utils.ErrContentRejected)}
	default:
		return &exitError{code: code}
	}
}

func checkOne(ctx context.Context, pipeline *engine.Pipeline, input string, stdin io.Reader, opts checkOptions) fileResult {
	res := fileResult{File: input}
	text, err := readInput(input, stdin)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	report := pipeline.Validate(ctx, engine.Request{
		Text:        text,
		ContentType: opts.contentType,
		RequestID:   "cli:" + filepath.Base(input),
		SkipAnomaly: opts.noAnomaly,
	})
	res.Report = &report
	return res
}

func readInput(input string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if input == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", input, err)
	}
	return string(data), nil
}

// exitCode is 1 if any input errored, else 2 if any was rejected, else 0.
// Flagged content still passes.
func exitCode(results []fileResult) int {
	code := codePassed
	for _, r := range results {
		if r.Err != "" || r.Report == nil {
			return codeError
		}
		switch err := engine.Verdict(*r.Report); {
		case err == nil, errors.Is(err, utils.ErrContentFlagged):
		case errors.Is(err, utils.ErrContentRejected):
			code = codeRejected
		default:
			return codeError
		}
	}
	return code
}

func countRejected(results []fileResult) int {
	n := 0
	for _, r := range results {
		if r.Report != nil && r.Report.SecurityStatus == models.StatusRejected {
			n++
		}
	}
	return n
}

func writeResults(w io.Writer, format string, results []fileResult, latency utils.LatencySummary) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(renderText(r))
	}
	if len(results) > 1 {
		b.WriteString(renderSummary(results, latency))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
