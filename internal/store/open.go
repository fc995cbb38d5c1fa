package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stoicmail/reflection-guard/internal/config"
)

// Open builds the configured backend wrapped in the retry policy. onConflict,
// if non-nil, is invoked whenever an optimistic baseline update has to retry.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger, onConflict func()) (Store, error) {
	var (
		inner Store
		err   error
	)
	switch cfg.Driver {
	case "memory":
		inner = NewMemory()
	case "file":
		inner, err = NewFile(cfg.File.Root, cfg.File.CompressAudit)
	case "redis":
		var r *Redis
		r, err = NewRedis(ctx, RedisConfig{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			AuditTTL:     cfg.Redis.AuditTTL,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err == nil {
			r.OnConflict = onConflict
			inner = r
		}
	case "sql":
		var s *SQL
		s, err = OpenSQL(cfg.SQL.Dialect, cfg.SQL.DSN)
		if err == nil {
			s.OnConflict = onConflict
			inner = s
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(inner, RetryPolicy{Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}, logger), nil
}
