package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoicmail/reflection-guard/internal/models"
)

func TestFileStore(t *testing.T) {
	root := t.TempDir()
	st, err := NewFile(root, false)
	require.NoError(t, err)
	exerciseStore(t, st)

	_, err = os.Stat(filepath.Join(root, "security", "response_statistics.json"))
	require.NoError(t, err, "baseline should use the bucket-style key")

	keys, err := st.AuditKeys()
	require.NoError(t, err)
	require.Equal(t, []string{"security/audit_logs/20260304_050607_cid-1.json"}, keys)

	record, err := st.ReadAuditLog(keys[0])
	require.NoError(t, err)
	assert.Equal(t, "cid-1", record.CorrelationID)
	assert.Equal(t, "STARTED", record.Entries[0].Result)
}

func TestFileStoreCompressedAudit(t *testing.T) {
	st, err := NewFile(t.TempDir(), true)
	require.NoError(t, err)

	record := models.AuditRecord{CorrelationID: "zip", Timestamp: time.Now().UTC(), EntryCount: 0}
	require.NoError(t, st.AppendAuditLog(context.Background(), record))

	keys, err := st.AuditKeys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, ".zst", filepath.Ext(keys[0]))

	got, err := st.ReadAuditLog(keys[0])
	require.NoError(t, err)
	assert.Equal(t, "zip", got.CorrelationID)
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	st, err := NewFile(t.TempDir(), false)
	require.NoError(t, err)

	_, _, err = st.LoadHistory(context.Background(), "../outside.json")
	assert.Error(t, err)
}

func TestFileStoreCorruptHistoryIsAnError(t *testing.T) {
	root := t.TempDir()
	st, err := NewFile(root, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "security"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "security", "response_statistics.json"), []byte("{not json"), 0o600))

	_, found, err := st.LoadHistory(context.Background(), testKey)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestFileStoreAuditCannotOverwriteBaseline(t *testing.T) {
	ctx := context.Background()
	st, err := NewFile(t.TempDir(), false)
	require.NoError(t, err)
	require.NoError(t, st.SaveHistory(ctx, testKey, []models.ResponseStatistics{sample(100), sample(101)}))

	for _, cid := range []string{"/../../response_statistics", "a/../../../response_statistics", `..\x`} {
		err := st.AppendAuditLog(ctx, models.AuditRecord{CorrelationID: cid, Timestamp: time.Now()})
		assert.ErrorIs(t, err, ErrInvalidAuditKey, cid)
	}

	history, found, err := st.LoadHistory(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, history, 2)
	keys, err := st.AuditKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
