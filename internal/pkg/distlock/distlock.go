// Package distlock provides a named, non-blocking lock used to keep a
// concurrent operation from running twice for the same key — one
// enrichment run per (batch_id, check_type) is the only caller
// (spec.md §4.8's "process-local de-duplication suffices... or use a
// named lease").
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a non-blocking, TTL-bounded named lock. Implementations must
// be safe for use from a single goroutine; concurrent use across
// goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock builds a lock on the best available backend: Redis when a
// client is given (cross-host, TTL-bounded), a PostgreSQL advisory lock
// when only a *sql.DB is given, or an in-process lock when neither is
// given — the last case only de-duplicates within this one process, which
// is sufficient when the caller runs a single replica.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	return NewLocalLock(key)
}

// PGAdvisoryLock implements DistLock using a session-scoped PostgreSQL
// advisory lock, released automatically if the connection drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic advisory lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire calls pg_try_advisory_lock, which returns immediately.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release calls pg_advisory_unlock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// localLocks holds the keys currently held by a LocalLock in this process.
var localLocks sync.Map

// LocalLock implements DistLock with an in-memory registry, scoped to the
// current process. Used when neither Redis nor Postgres is available to
// coordinate across hosts; adequate only when a single replica runs the
// caller.
type LocalLock struct {
	key string
}

// NewLocalLock builds a lock held in this process's memory only.
func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

// Acquire claims the key if no other LocalLock in this process currently
// holds it.
func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	_, alreadyHeld := localLocks.LoadOrStore(l.key, struct{}{})
	return !alreadyHeld, nil
}

// Release frees the key so a later Acquire in this process can claim it.
func (l *LocalLock) Release(ctx context.Context) error {
	localLocks.Delete(l.key)
	return nil
}
