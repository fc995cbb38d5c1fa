package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/stoicmail/reflection-guard/internal/models"
)

// HistoryStore persists the rolling statistics baseline. A key that was never
// written reports found=false, which is not an error.
type HistoryStore interface {
	LoadHistory(ctx context.Context, key string) ([]models.ResponseStatistics, bool, error)
	SaveHistory(ctx context.Context, key string, history []models.ResponseStatistics) error
}

// UpdateFunc receives the current baseline and returns the one to persist. It
// may be called more than once when a concurrent writer wins the race.
type UpdateFunc func(history []models.ResponseStatistics) []models.ResponseStatistics

// AtomicHistoryStore can apply a read-modify-write to the baseline without
// losing concurrent updates.
type AtomicHistoryStore interface {
	HistoryStore
	UpdateHistory(ctx context.Context, key string, fn UpdateFunc) error
}

// AuditStore receives the audit trail of one validation as a single record.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, record models.AuditRecord) error
}

// Store is implemented by every backend.
type Store interface {
	AtomicHistoryStore
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}

// ErrConflict signals that an optimistic update lost to another writer.
var ErrConflict = errors.New("concurrent history update")

var (
	// ErrInvalidAuditKey marks an audit key that does not name a single object
	// directly under the audit prefix.
	ErrInvalidAuditKey = errors.New("invalid audit key")
	// ErrAuditExists marks an audit key already holding a different record.
	ErrAuditExists = errors.New("audit record already exists")
)

// AuditPrefix holds every audit record.
const AuditPrefix = "security/audit_logs/"

// maxUpdateAttempts bounds optimistic retries before giving up on a sample.
const maxUpdateAttempts = 8

// historyDocument is the stored form of a baseline.
type historyDocument struct {
	Statistics  []models.ResponseStatistics `json:"statistics"`
	LastUpdated time.Time                   `json:"last_updated"`
}

func encodeHistory(history []models.ResponseStatistics) ([]byte, error) {
	if history == nil {
		history = []models.ResponseStatistics{}
	}
	return json.MarshalIndent(historyDocument{Statistics: history, LastUpdated: time.Now().UTC()}, "", "  ")
}

func decodeHistory(data []byte) ([]models.ResponseStatistics, error) {
	var doc historyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return doc.Statistics, nil
}

// AuditKey returns the object key for an audit record,
// security/audit_logs/<YYYYmmdd_HHMMSS>_<correlation id>.json.
func AuditKey(record models.AuditRecord) string {
	if record.Key != "" {
		return record.Key
	}
	return fmt.Sprintf("%s%s_%s.json", AuditPrefix, record.Timestamp.UTC().Format("20060102_150405"), record.CorrelationID)
}

// CheckAuditKey rejects keys that would resolve outside AuditPrefix or onto
// a nested path, such as one built from a correlation id containing "/..".
func CheckAuditKey(key string) error {
	name, ok := strings.CutPrefix(key, AuditPrefix)
	if !ok || name == "" || name == "." || name == ".." || path.Clean(key) != key || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidAuditKey, key)
	}
	return nil
}

// auditKey is AuditKey for writers: the key is checked before use.
func auditKey(record models.AuditRecord) (string, error) {
	key := AuditKey(record)
	return key, CheckAuditKey(key)
}

func cloneHistory(history []models.ResponseStatistics) []models.ResponseStatistics {
	if history == nil {
		return nil
	}
	return append([]models.ResponseStatistics(nil), history...)
}
