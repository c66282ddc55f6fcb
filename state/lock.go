package state

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// lockInfo is the persisted contents of a held lock.
type lockInfo struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func lockKey(project string) string {
	return project + "/meta/lock"
}

// Lock acquires the exclusive project lock for a plan+apply cycle. The
// returned token must be passed to Unlock.
//
// If the lock is already held, Lock fails immediately with *LockHeldError;
// it never waits.
func (s *Store) Lock(ctx context.Context, project string) (string, error) {
	info := lockInfo{
		Token:      ksuid.New().String(),
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", errors.Wrap(err, "marshal lock")
	}
	err = s.Backend.PutIfAbsent(ctx, lockKey(project), data)
	if err == nil {
		return info.Token, nil
	}
	if errors.Cause(err) != ErrKeyExists {
		return "", errors.Wrap(err, "acquire lock")
	}

	held, err := s.Backend.Get(ctx, lockKey(project))
	if err != nil {
		// The lock was released between the failed acquire and the read.
		// Treat it as held; the next run will get it.
		return "", &LockHeldError{}
	}
	var existing lockInfo
	if err := json.Unmarshal(held, &existing); err != nil {
		return "", &LockHeldError{}
	}
	return "", &LockHeldError{
		Token:      existing.Token,
		PID:        existing.PID,
		AcquiredAt: existing.AcquiredAt,
	}
}

// Unlock releases the project lock. The token must match the one returned
// from Lock, so a run cannot release a lock it does not hold.
func (s *Store) Unlock(ctx context.Context, project, token string) error {
	data, err := s.Backend.Get(ctx, lockKey(project))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return errors.New("lock is not held")
		}
		return errors.Wrap(err, "read lock")
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return errors.Wrap(err, "unmarshal lock")
	}
	if info.Token != token {
		return errors.New("lock is held by another run")
	}
	return s.Backend.Delete(ctx, lockKey(project))
}
