package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/pkg/database"
)

func newSQLiteBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "faktura.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(context.Background()))
	return NewSQLiteBackend(db, logger)
}

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": newSQLiteBackend(t),
	}
}

func TestBackend_VersionedWrites(t *testing.T) {
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			value, version, err := backend.Get(ctx, "k")
			require.NoError(t, err)
			assert.Nil(t, value)
			assert.Zero(t, version)

			v1, err := backend.Put(ctx, "k", []byte(`"a"`), 0)
			require.NoError(t, err)
			assert.Equal(t, int64(1), v1)

			// Creating an existing key is a conflict
			_, err = backend.Put(ctx, "k", []byte(`"b"`), 0)
			assert.ErrorIs(t, err, ErrVersionConflict)

			v2, err := backend.Put(ctx, "k", []byte(`"b"`), v1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), v2)

			// Stale write
			_, err = backend.Put(ctx, "k", []byte(`"c"`), v1)
			assert.ErrorIs(t, err, ErrVersionConflict)

			value, version, err = backend.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, `"b"`, string(value))
			assert.Equal(t, v2, version)

			require.NoError(t, backend.Delete(ctx, "k"))
			_, version, err = backend.Get(ctx, "k")
			require.NoError(t, err)
			assert.Zero(t, version)

			require.NoError(t, backend.Delete(ctx, "missing"))
		})
	}
}

// racingBackend lets another writer slip in before the first Put of each key
type racingBackend struct {
	Backend
	races int
}

func (b *racingBackend) Put(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if b.races > 0 {
		b.races--
		if _, err := b.Backend.Put(ctx, key, value, expected); err != nil {
			return 0, err
		}
	}
	return b.Backend.Put(ctx, key, value, expected)
}

func TestMutate_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{Backend: NewMemoryBackend(), races: 1}

	calls := 0
	err := mutate(ctx, backend, zap.NewNop(), "counter", func(n *int) error {
		calls++
		*n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	n, version, err := load[int](ctx, backend, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, 2, n)
}

func TestMutate_GivesUpAfterBoundedAttempts(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{Backend: NewMemoryBackend(), races: maxMutateAttempts}

	err := mutate(ctx, backend, zap.NewNop(), "counter", func(n *int) error {
		*n++
		return nil
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestLoad_CorruptRecordFailsClosed(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	_, err := backend.Put(ctx, KeyInvoices, []byte(`{not json`), 0)
	require.NoError(t, err)

	_, err = NewInvoiceRepository(backend, zap.NewNop()).List(ctx)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = NewInvoiceRepository(backend, zap.NewNop()).Add(ctx, invoiceFixture("1/1/2025"))
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
