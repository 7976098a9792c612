package config

import (
	"errors"
	"fmt"
)

// ErrEmptyNamePool is returned when a name draw needs a pool that is missing
// or empty. It is a configuration error: the caller must fix the
// configuration before retrying.
var ErrEmptyNamePool = errors.New("empty name pool")

// PoolError identifies which name pool was empty.
type PoolError struct {
	Pool string
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Pool, ErrEmptyNamePool)
}

// Unwrap lets errors.Is match ErrEmptyNamePool.
func (e *PoolError) Unwrap() error {
	return ErrEmptyNamePool
}
