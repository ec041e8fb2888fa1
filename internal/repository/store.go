package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// maxMutateAttempts bounds read-modify-write retries on version conflicts
const maxMutateAttempts = 3

// errSkipWrite aborts a mutation without writing and without reporting a failure
var errSkipWrite = errors.New("mutation skipped")

// load decodes the record under key into a T. An absent key yields the zero value.
func load[T any](ctx context.Context, backend Backend, key string) (T, int64, error) {
	var value T

	raw, version, err := backend.Get(ctx, key)
	if err != nil {
		return value, 0, err
	}
	if version == 0 || len(raw) == 0 {
		return value, version, nil
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return value, version, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, key, err)
	}
	return value, version, nil
}

// mutate reads the whole record under key, applies fn and writes it back against the
// version it read. Conflicting writes are retried with a fresh read.
func mutate[T any](ctx context.Context, backend Backend, logger *zap.Logger, key string, fn func(*T) error) error {
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		value, version, err := load[T](ctx, backend, key)
		if err != nil {
			return err
		}

		if err := fn(&value); err != nil {
			return err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", key, err)
		}

		_, err = backend.Put(ctx, key, data, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}

		logger.Debug("Record changed concurrently, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt))
	}

	return fmt.Errorf("failed to update record %s after %d attempts: %w", key, maxMutateAttempts, ErrVersionConflict)
}

// replace overwrites the record under key without decoding what is stored, so a corrupt
// record can still be replaced wholesale
func replace(ctx context.Context, backend Backend, logger *zap.Logger, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}

	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		_, version, err := backend.Get(ctx, key)
		if err != nil {
			return err
		}

		_, err = backend.Put(ctx, key, data, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}

		logger.Debug("Record changed concurrently, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt))
	}

	return fmt.Errorf("failed to replace record %s after %d attempts: %w", key, maxMutateAttempts, ErrVersionConflict)
}
