package state

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when attempting to get or delete an item that
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrKeyExists is returned by a backend's PutIfAbsent when the key is
// already set.
var ErrKeyExists = errors.New("key exists")

// A LockHeldError is returned when acquiring the state lock while another
// run holds it. The caller should fail fast rather than wait.
type LockHeldError struct {
	Token      string
	PID        int
	AcquiredAt time.Time
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf(
		"state is locked by another run (pid %d, since %s)",
		e.PID, e.AcquiredAt.Format(time.RFC3339),
	)
}
