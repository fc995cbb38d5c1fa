package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REFLECTION_GUARD_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("REFLECTION_GUARD_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("REFLECTION_GUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REFLECTION_GUARD_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("REFLECTION_GUARD_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REFLECTION_GUARD_STORE_ROOT"); v != "" {
		cfg.Store.File.Root = v
	}
	if v := os.Getenv("REFLECTION_GUARD_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("REFLECTION_GUARD_REDIS_USERNAME"); v != "" {
		cfg.Store.Redis.Username = v
	}
	if v := os.Getenv("REFLECTION_GUARD_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("REFLECTION_GUARD_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("REFLECTION_GUARD_SQL_DIALECT"); v != "" {
		cfg.Store.SQL.Dialect = v
	}
	if v := os.Getenv("REFLECTION_GUARD_SQL_DSN"); v != "" {
		cfg.Store.SQL.DSN = v
	}
	if v := os.Getenv("REFLECTION_GUARD_STORE_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.Retry.Attempts = n
		}
	}
	if v := os.Getenv("REFLECTION_GUARD_STORE_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.Retry.Backoff = d
		}
	}
	if v := os.Getenv("REFLECTION_GUARD_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
	}
	if v := os.Getenv("REFLECTION_GUARD_NATS_URL"); v != "" {
		cfg.Notifications.NATS.URL = v
	}
	if v := os.Getenv("REFLECTION_GUARD_ALERTING_ENABLED"); v != "" {
		cfg.Security.Alerting.Enabled = parseBool(v)
	}
	if v := os.Getenv("REFLECTION_GUARD_ANOMALY_ENABLED"); v != "" {
		cfg.Security.AnomalyDetection.Enabled = parseBool(v)
	}
	if v := os.Getenv("REFLECTION_GUARD_ANOMALY_SIGMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.AnomalyDetection.DeviationThresholdSigma = f
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
