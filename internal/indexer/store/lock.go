package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/postgres"
)

// AdvisoryLock guards a run with a PostgreSQL session-level advisory lock.
// It is the fallback when no Redis is configured.
//
// Advisory locks belong to the session, so the TTL is ignored: the lock is
// held until Release or until the pinned connection closes.
type AdvisoryLock struct {
	client *postgres.Client
}

func NewAdvisoryLock(client *postgres.Client) *AdvisoryLock {
	return &AdvisoryLock{client: client}
}

// lockKey maps a lock name onto the int64 key space of pg advisory locks.
func lockKey(name string) int64 {
	return int64(xxhash.Sum64String("search-indexer:lock:" + name))
}

// Acquire tries pg_try_advisory_lock without blocking.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, _ time.Duration) (bool, error) {
	var acquired bool
	err := l.client.Conn().QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey(name)).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("acquire advisory lock %s: %w", name, err)
	}
	return acquired, nil
}

// Release unlocks name. Releasing a lock that is not held is not an error.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	var released bool
	err := l.client.Conn().QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockKey(name)).Scan(&released)
	if err != nil {
		return fmt.Errorf("release advisory lock %s: %w", name, err)
	}
	return nil
}
