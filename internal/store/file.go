package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/stoicmail/reflection-guard/internal/models"
)

// Shared zstd coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

// File stores objects beneath a root directory using bucket-style keys, so
// the baseline lives at <root>/security/response_statistics.json and audit
// records under <root>/security/audit_logs/. Writes go through a temp file and
// rename. Updates are serialised within the process only; run one writer per
// root directory.
type File struct {
	root     string
	compress bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFile creates the root directory if needed. When compressAudit is set,
// audit records are written zstd-compressed with a .zst suffix.
func NewFile(root string, compressAudit bool) (*File, error) {
	if root == "" {
		return nil, errors.New("file store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &File{root: root, compress: compressAudit, locks: make(map[string]*sync.Mutex)}, nil
}

func (f *File) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *File) keyLock(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[key]
	if !ok {
		l = &sync.Mutex{}
		f.locks[key] = l
	}
	return l
}

func (f *File) LoadHistory(ctx context.Context, key string) ([]models.ResponseStatistics, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read history: %w", err)
	}
	history, err := decodeHistory(data)
	if err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (f *File) SaveHistory(ctx context.Context, key string, history []models.ResponseStatistics) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	data, err := encodeHistory(history)
	if err != nil {
		return err
	}
	return writeAtomic(p, data)
}

func (f *File) UpdateHistory(ctx context.Context, key string, fn UpdateFunc) error {
	l := f.keyLock(key)
	l.Lock()
	defer l.Unlock()

	history, _, err := f.LoadHistory(ctx, key)
	if err != nil {
		return err
	}
	return f.SaveHistory(ctx, key, fn(history))
}

func (f *File) AppendAuditLog(ctx context.Context, record models.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := auditKey(record)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	if f.compress {
		key += ".zst"
		data = zstdEncoder.EncodeAll(data, nil)
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return writeAtomic(p, data)
}

// ReadAuditLog loads a record written by AppendAuditLog, transparently
// decompressing .zst objects.
func (f *File) ReadAuditLog(key string) (models.AuditRecord, error) {
	var record models.AuditRecord
	p, err := f.path(key)
	if err != nil {
		return record, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return record, fmt.Errorf("read audit record: %w", err)
	}
	if strings.HasSuffix(key, ".zst") {
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return record, fmt.Errorf("decompress audit record: %w", err)
		}
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode audit record: %w", err)
	}
	record.Key = key
	return record, nil
}

// AuditKeys lists stored audit record keys in lexical (and so chronological) order.
func (f *File) AuditKeys() ([]string, error) {
	dir := filepath.Join(f.root, "security", "audit_logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			keys = append(keys, AuditPrefix+e.Name())
		}
	}
	return keys, nil
}

func (f *File) Ping(context.Context) error {
	_, err := os.Stat(f.root)
	return err
}

func (f *File) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
