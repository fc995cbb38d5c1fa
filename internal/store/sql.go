package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stoicmail/reflection-guard/internal/models"
)

type historyRow struct {
	HistoryKey string `gorm:"column:history_key;primaryKey;size:255"`
	Version    int64  `gorm:"not null"`
	Payload    string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (historyRow) TableName() string { return "response_history" }

type auditRow struct {
	AuditKey      string    `gorm:"column:audit_key;primaryKey;size:255"`
	CorrelationID string    `gorm:"size:64;index"`
	Timestamp     time.Time `gorm:"index"`
	EntryCount    int
	Payload       string `gorm:"type:text;not null"`
}

func (auditRow) TableName() string { return "audit_logs" }

// SQL persists through gorm. Each baseline row carries a version column and
// updates only succeed against the version they read, so concurrent writers
// retry instead of overwriting each other.
type SQL struct {
	db *gorm.DB
	// OnConflict, when set, is called each time an optimistic update is retried.
	OnConflict func()
}

// OpenSQL opens a sqlite or postgres database and migrates the schema.
func OpenSQL(dialect, dsn string) (*SQL, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s (supported: sqlite, postgres)", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	return NewSQL(db)
}

// NewSQL wraps an open gorm handle and migrates the schema.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&historyRow{}, &auditRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) LoadHistory(ctx context.Context, key string) ([]models.ResponseStatistics, bool, error) {
	row, found, err := s.loadRow(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	history, err := decodeHistory([]byte(row.Payload))
	if err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (s *SQL) loadRow(ctx context.Context, key string) (historyRow, bool, error) {
	var row historyRow
	err := s.db.WithContext(ctx).Where("history_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("load history: %w", err)
	}
	return row, true, nil
}

func (s *SQL) SaveHistory(ctx context.Context, key string, history []models.ResponseStatistics) error {
	return s.UpdateHistory(ctx, key, func([]models.ResponseStatistics) []models.ResponseStatistics {
		return history
	})
}

func (s *SQL) UpdateHistory(ctx context.Context, key string, fn UpdateFunc) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		row, found, err := s.loadRow(ctx, key)
		if err != nil {
			return err
		}
		var history []models.ResponseStatistics
		if found {
			if history, err = decodeHistory([]byte(row.Payload)); err != nil {
				return err
			}
		}
		payload, err := encodeHistory(fn(history))
		if err != nil {
			return err
		}

		var res *gorm.DB
		now := time.Now().UTC()
		if !found {
			res = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&historyRow{
				HistoryKey: key,
				Version:    1,
				Payload:    string(payload),
				UpdatedAt:  now,
			})
		} else {
			res = s.db.WithContext(ctx).Model(&historyRow{}).
				Where("history_key = ? AND version = ?", key, row.Version).
				Updates(map[string]any{"payload": string(payload), "version": row.Version + 1, "updated_at": now})
		}
		if res.Error != nil {
			return fmt.Errorf("write history: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}

		if s.OnConflict != nil {
			s.OnConflict()
		}
		if err := sleepCtx(ctx, backoff(attempt, 5*time.Millisecond)); err != nil {
			return err
		}
	}
	return ErrConflict
}

func (s *SQL) AppendAuditLog(ctx context.Context, record models.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	key, err := auditKey(record)
	if err != nil {
		return err
	}
	row := auditRow{
		AuditKey:      key,
		CorrelationID: record.CorrelationID,
		Timestamp:     record.Timestamp.UTC(),
		EntryCount:    record.EntryCount,
		Payload:       string(payload),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		var existing auditRow
		if lookup := s.db.WithContext(ctx).Where("audit_key = ?", key).Take(&existing).Error; lookup != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
		if existing.Payload != row.Payload {
			return fmt.Errorf("%w: %s", ErrAuditExists, key)
		}
	}
	return nil
}

// AuditRecordsFor returns the stored records for one correlation id, oldest first.
func (s *SQL) AuditRecordsFor(ctx context.Context, correlationID string) ([]models.AuditRecord, error) {
	var rows []auditRow
	if err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).Order("timestamp").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	out := make([]models.AuditRecord, 0, len(rows))
	for _, row := range rows {
		var record models.AuditRecord
		if err := json.Unmarshal([]byte(row.Payload), &record); err != nil {
			return nil, fmt.Errorf("decode audit record: %w", err)
		}
		record.Key = row.AuditKey
		out = append(out, record)
	}
	return out, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
