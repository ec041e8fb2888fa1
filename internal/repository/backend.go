package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/pkg/database"
)

// Record keys, one per stored collection
const (
	KeySeller     = "invoice_seller"
	KeyBuyers     = "invoice_buyers"
	KeyInvoices   = "invoice_history"
	KeyKSeFConfig = "ksef_config"
)

var (
	// ErrVersionConflict is returned when a write is based on a stale version
	ErrVersionConflict = errors.New("record version conflict")
	// ErrCorruptRecord is returned when a stored record cannot be decoded
	ErrCorruptRecord = errors.New("corrupt stored record")
	// ErrRecordNotFound is returned when an id is not present in its collection
	ErrRecordNotFound = errors.New("record not found")
)

// Backend is a versioned key-value store. Version 0 means the key is absent; every
// successful Put returns the next version.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, version int64, err error)
	Put(ctx context.Context, key string, value []byte, expectedVersion int64) (newVersion int64, err error)
	Delete(ctx context.Context, key string) error
}

// SQLiteBackend stores records in the kv_store table
type SQLiteBackend struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSQLiteBackend creates a backend over a migrated database
func NewSQLiteBackend(db *database.DB, logger *zap.Logger) *SQLiteBackend {
	return &SQLiteBackend{
		db:     db,
		logger: logger,
	}
}

// Get returns the value and version stored under key
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var value []byte
	var version int64

	err := b.db.QueryRowContext(ctx,
		"SELECT value, version FROM kv_store WHERE key = ?", key,
	).Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		b.logger.Error("Failed to read record", zap.String("key", key), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	return value, version, nil
}

// Put writes value when the stored version equals expectedVersion
func (b *SQLiteBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	var result sql.Result
	var err error

	if expectedVersion == 0 {
		result, err = b.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO kv_store (key, value, version) VALUES (?, ?, 1)",
			key, value)
	} else {
		result, err = b.db.ExecContext(ctx, `
			UPDATE kv_store
			SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE key = ? AND version = ?
		`, value, key, expectedVersion)
	}
	if err != nil {
		b.logger.Error("Failed to write record", zap.String("key", key), zap.Error(err))
		return 0, fmt.Errorf("failed to write record %s: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

// Delete removes key; deleting an absent key is not an error
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		b.logger.Error("Failed to delete record", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

type memoryEntry struct {
	value   []byte
	version int64
}

// MemoryBackend is an in-process Backend selected by database.driver "memory"
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

// Get returns a copy of the value stored under key
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, 0, nil
	}
	return append([]byte(nil), entry.value...), entry.version, nil
}

// Put writes value when the stored version equals expectedVersion
func (b *MemoryBackend) Put(_ context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entries[key].version != expectedVersion {
		return 0, ErrVersionConflict
	}
	next := expectedVersion + 1
	b.entries[key] = memoryEntry{value: append([]byte(nil), value...), version: next}
	return next, nil
}

// Delete removes key
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}
