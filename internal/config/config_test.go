package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stoicmail/reflection-guard/internal/utils"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REFLECTION_GUARD_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Security.ContentLimits.MaxChars != 10000 || cfg.Security.ContentLimits.MinWords != 50 {
		t.Fatalf("unexpected content limits: %+v", cfg.Security.ContentLimits)
	}
	if cfg.Security.Sanitization.MaxConsecutiveNewlines != 3 {
		t.Fatalf("expected newline cap 3")
	}
	if cfg.Security.Alerting.AlertOnValidationFailure {
		t.Fatalf("validation failure alerts must default off")
	}
	if cfg.Store.Driver != "file" {
		t.Fatalf("expected file store by default, got %s", cfg.Store.Driver)
	}
}

func TestLoadJSONPolicyKeepsMissingDefaults(t *testing.T) {
	path := writeFile(t, "security_config.json", `{
  "content_limits": {"max_reflection_length_chars": 5000},
  "url_detection": {"enabled": true, "max_urls_allowed": 2, "block_all_urls": false, "suspicious_domains": ["bit.ly"]},
  "anomaly_detection": {"deviation_threshold_sigma": 2.5}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sec := cfg.Security
	if sec.ContentLimits.MaxChars != 5000 || sec.ContentLimits.MaxWords != 2000 {
		t.Fatalf("expected override plus default, got %+v", sec.ContentLimits)
	}
	if sec.URLDetection.BlockAllURLs || sec.URLDetection.MaxURLsAllowed != 2 {
		t.Fatalf("unexpected url policy: %+v", sec.URLDetection)
	}
	if sec.URLDetection.URLPattern != DefaultURLPattern {
		t.Fatalf("expected default url pattern to survive")
	}
	if sec.AnomalyDetection.DeviationThresholdSigma != 2.5 || sec.AnomalyDetection.MinSamplesForDetection != 10 {
		t.Fatalf("unexpected anomaly config: %+v", sec.AnomalyDetection)
	}
}

func TestLoadYAMLWithServiceSections(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  address: ":6000"
store:
  driver: sql
  sql:
    dialect: postgres
    dsn: "host=db"
malicious_patterns:
  enabled: true
  patterns: ["(?i)<iframe"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":6000" || cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.SQL.Dialect != "postgres" {
		t.Fatalf("expected postgres dialect")
	}
	if got := cfg.Security.MaliciousPatterns.Patterns; len(got) != 1 || got[0] != "(?i)<iframe" {
		t.Fatalf("expected patterns to be replaced, got %v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REFLECTION_GUARD_STORE_DRIVER", "memory")
	t.Setenv("REFLECTION_GUARD_ANOMALY_SIGMA", "2")
	t.Setenv("REFLECTION_GUARD_ALERTING_ENABLED", "false")
	t.Setenv("REFLECTION_GUARD_LOG_FORMAT", "json")

	cfg, err := Load(writeFile(t, "empty.yaml", "{}"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "memory" || cfg.Security.AnomalyDetection.DeviationThresholdSigma != 2 {
		t.Fatalf("env overrides not applied: %+v", cfg.Store)
	}
	if cfg.Security.Alerting.Enabled || !cfg.Logging.JSON {
		t.Fatalf("expected alerting disabled and json logging")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsMalformedPolicy(t *testing.T) {
	cases := map[string]func(*Config){
		"bad regex":         func(c *Config) { c.Security.MaliciousPatterns.Patterns = []string{"(unclosed"} },
		"bad url regex":     func(c *Config) { c.Security.URLDetection.URLPattern = "[" },
		"min above max":     func(c *Config) { c.Security.ContentLimits.MinChars = 20000 },
		"zero sigma":        func(c *Config) { c.Security.AnomalyDetection.DeviationThresholdSigma = 0 },
		"negative newlines": func(c *Config) { c.Security.Sanitization.MaxConsecutiveNewlines = -1 },
		"paragraph bounds":  func(c *Config) { c.Security.ContentPolicy.RequiredElements.MinParagraphs = 11 },
		"unknown driver":    func(c *Config) { c.Store.Driver = "s3" },
		"unknown dialect":   func(c *Config) { c.Store.Driver = "sql"; c.Store.SQL.Dialect = "oracle" },
		"small history":     func(c *Config) { c.Security.AnomalyDetection.MaxHistory = 5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, utils.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "reflection-guard.yaml"))
	if err != nil {
		t.Fatalf("example config must load: %v", err)
	}
	if len(cfg.Security.ContentPolicy.ForbiddenTopics) != 2 || len(cfg.Security.URLDetection.SuspiciousDomains) != 2 {
		t.Fatalf("unexpected policy lists: %+v", cfg.Security.ContentPolicy)
	}
	if cfg.Store.Redis.AuditTTL.Hours() != 720 || cfg.Store.Retry.Attempts != 3 {
		t.Fatalf("unexpected store settings: %+v", cfg.Store)
	}
	if cfg.Security.Alerting.MaxNotificationsPerMinute != 30 {
		t.Fatalf("unexpected alerting: %+v", cfg.Security.Alerting)
	}
}
