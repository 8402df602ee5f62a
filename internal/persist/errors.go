package persist

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

var (
	// ErrPersistence matches every *Error via errors.Is.
	ErrPersistence = errors.New("persistence failed")
	// ErrNotExist is returned by Load when nothing has been saved yet.
	ErrNotExist = errors.New("snapshot does not exist")
)

// Error reports a failed durable write or read of a snapshot.
type Error struct {
	Op       string
	Location string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrPersistence
}

// Temporary reports whether retrying the operation may succeed.
func (e *Error) Temporary() bool {
	switch {
	case errors.Is(e.Err, syscall.ENOSPC),
		errors.Is(e.Err, syscall.EAGAIN),
		errors.Is(e.Err, syscall.EINTR):
		return true
	case errors.Is(e.Err, gobreaker.ErrOpenState),
		errors.Is(e.Err, gobreaker.ErrTooManyRequests),
		errors.Is(e.Err, redis.Nil):
		return false
	}
	var t interface{ Temporary() bool }
	if errors.As(e.Err, &t) {
		return t.Temporary()
	}
	var timeout interface{ Timeout() bool }
	if errors.As(e.Err, &timeout) {
		return timeout.Timeout()
	}
	return false
}
