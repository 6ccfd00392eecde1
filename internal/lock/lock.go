// Package lock serializes work on a single session.
package lock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when the lock could not be taken in time.
var ErrLockTimeout = errors.New("session lock wait timed out")

// SessionLocker hands out one holder per key at a time.
type SessionLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
