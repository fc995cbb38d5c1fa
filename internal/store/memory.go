package store

import (
	"context"
	"sync"

	"github.com/stoicmail/reflection-guard/internal/models"
)

// Memory keeps history and audit records in process. It backs tests and the
// CLI when no durable store is configured.
type Memory struct {
	mu      sync.Mutex
	history map[string][]models.ResponseStatistics
	audit   []models.AuditRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{history: make(map[string][]models.ResponseStatistics)}
}

func (m *Memory) LoadHistory(_ context.Context, key string) ([]models.ResponseStatistics, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[key]
	return cloneHistory(h), ok, nil
}

func (m *Memory) SaveHistory(_ context.Context, key string, history []models.ResponseStatistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[key] = cloneHistory(history)
	return nil
}

// UpdateHistory holds the store lock across the read-modify-write.
func (m *Memory) UpdateHistory(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[key] = cloneHistory(fn(cloneHistory(m.history[key])))
	return nil
}

func (m *Memory) AppendAuditLog(_ context.Context, record models.AuditRecord) error {
	key, err := auditKey(record)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Key = key
	m.audit = append(m.audit, record)
	return nil
}

// AuditRecords returns a copy of every record appended so far.
func (m *Memory) AuditRecords() []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditRecord(nil), m.audit...)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
