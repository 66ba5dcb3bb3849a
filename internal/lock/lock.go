// Package lock serializes mutating distroshift commands across processes.
package lock

import (
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/mutex/v2"
)

// Name is the machine-wide mutex guarding snapshots, history and the
// mapping store.
const Name = "distroshift"

// ErrBusy is returned when another invocation holds the lock.
var ErrBusy = errors.New("another distroshift command is running")

// Releaser releases a held lock.
type Releaser interface {
	Release()
}

// Acquire takes the named machine-wide lock, waiting up to timeout.
func Acquire(name string, timeout time.Duration) (Releaser, error) {
	spec := mutex.Spec{
		Name:    name,
		Clock:   clock.WallClock,
		Delay:   250 * time.Millisecond,
		Timeout: timeout,
	}
	r, err := mutex.Acquire(spec)
	if errors.Is(err, mutex.ErrTimeout) {
		return nil, fmt.Errorf("%w (waited %s for lock %q)", ErrBusy, timeout, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}
	return r, nil
}
