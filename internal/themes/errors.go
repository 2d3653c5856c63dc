package themes

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned for a stylesheet read before any record exists.
	ErrNotFound        = errors.New("theme not found")
	ErrPresetNotFound  = errors.New("preset not found")
	ErrLogoUnsupported = errors.New("logos are only supported by the global theme")
)

// StorageError is an opaque failure from the storage collaborator. It is never retried.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("theme storage %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError checks if an error is a storage error (including wrapped errors).
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

// storageFailure logs err with its stack and wraps it for the caller.
func storageFailure(ctx context.Context, op, key string, err error) error {
	wrapped := pkgerrors.WithStack(err)
	log.Ctx(ctx).Error().
		Stack().
		Err(wrapped).
		Str("op", op).
		Str("theme_key", key).
		Msg("Theme storage failure")
	return &StorageError{Op: op, Key: key, Err: wrapped}
}
