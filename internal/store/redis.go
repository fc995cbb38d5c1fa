package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stoicmail/reflection-guard/internal/models"
)

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	AuditTTL     time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis stores the baseline as one JSON document per key and each audit
// record under its own key. Baseline updates use WATCH/MULTI so concurrent
// validators on different hosts retry instead of overwriting each other.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	// OnConflict, when set, is called each time an optimistic update is retried.
	OnConflict func()
}

// NewRedis connects and pings the server so bad credentials fail at startup.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	r := &Redis{client: client, cfg: cfg}
	if err := r.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return r, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, cfg RedisConfig) *Redis {
	return &Redis{client: client, cfg: cfg}
}

func (r *Redis) key(k string) string { return r.cfg.KeyPrefix + k }

func (r *Redis) LoadHistory(ctx context.Context, key string) ([]models.ResponseStatistics, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get history: %w", err)
	}
	history, err := decodeHistory(data)
	if err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (r *Redis) SaveHistory(ctx context.Context, key string, history []models.ResponseStatistics) error {
	data, err := encodeHistory(history)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("set history: %w", err)
	}
	return nil
}

func (r *Redis) UpdateHistory(ctx context.Context, key string, fn UpdateFunc) error {
	fullKey := r.key(key)
	txf := func(tx *redis.Tx) error {
		var history []models.ResponseStatistics
		data, err := tx.Get(ctx, fullKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("get history: %w", err)
		default:
			if history, err = decodeHistory(data); err != nil {
				return err
			}
		}

		encoded, err := encodeHistory(fn(history))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, encoded, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, fullKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if r.OnConflict != nil {
			r.OnConflict()
		}
		if err := sleepCtx(ctx, backoff(attempt, 5*time.Millisecond)); err != nil {
			return err
		}
	}
	return ErrConflict
}

func (r *Redis) AppendAuditLog(ctx context.Context, record models.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	key, err := auditKey(record)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(key), data, r.cfg.AuditTTL).Result()
	if err != nil {
		return fmt.Errorf("store audit record: %w", err)
	}
	if ok {
		return nil
	}
	// A retry after a lost reply finds its own earlier write.
	existing, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return fmt.Errorf("read existing audit record: %w", err)
	}
	if !bytes.Equal(existing, data) {
		return fmt.Errorf("%w: %s", ErrAuditExists, key)
	}
	return nil
}

// ReadAuditLog fetches a stored audit record by key.
func (r *Redis) ReadAuditLog(ctx context.Context, key string) (models.AuditRecord, error) {
	var record models.AuditRecord
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return record, fmt.Errorf("get audit record: %w", err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode audit record: %w", err)
	}
	record.Key = key
	return record, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
