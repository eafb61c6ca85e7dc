package checkpoint

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/orchestra/internal/errors"
)

// Repository is the key-value surface the store needs from a storage engine.
// Implementations must make each Update atomic: either the new value is
// durably visible to the next Get, or the previous value still is.
type Repository interface {
	// Get returns the value stored under key, or found=false.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Update atomically replaces the value under key with fn's result.
	// current is nil when the key is absent. An error from fn aborts the
	// update and is returned unchanged.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List calls fn for every stored key and value.
	List(ctx context.Context, fn func(key string, value []byte) error) error

	// Close releases the storage engine.
	Close() error
}

// RepositoryError is the single error kind for storage failures. It carries
// the failed operation, the key involved, and the engine's original error.
type RepositoryError struct {
	Op  string
	Key string
	Err error
}

func (e *RepositoryError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("checkpoint repository %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkpoint repository %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the original cause
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// ErrorCode implements errors.Coded
func (e *RepositoryError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeRepository
}

func repoErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Key: key, Err: err}
}
