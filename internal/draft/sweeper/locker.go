package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Locker is the narrow set-if-absent-with-TTL primitive the sweeper
// coordinates through. Acquire reports false, without blocking, when another
// holder owns a live lock for the key.
type Locker interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, holder string) error
}

// PGLocker implements Locker on the sweep_locks table. Dead rows are
// overwritten in place rather than cleaned up by a separate reaper.
type PGLocker struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// NewPGLocker creates a new Postgres-backed locker.
func NewPGLocker(pool *pgxpool.Pool, clock clockwork.Clock) *PGLocker {
	return &PGLocker{pool: pool, clock: clock}
}

func (l *PGLocker) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	now := l.clock.Now()
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO sweep_locks (key, holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE sweep_locks.expires_at <= $4`,
		key, holder, now.Add(ttl), now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PGLocker) Release(ctx context.Context, key, holder string) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM sweep_locks WHERE key = $1 AND holder = $2`,
		key, holder,
	)
	if err != nil {
		return fmt.Errorf("failed to release sweep lock %s: %w", key, err)
	}
	return nil
}

// MemoryLocker implements Locker in process memory. Suitable for tests and
// single-instance deployments.
type MemoryLocker struct {
	clock clockwork.Clock

	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	holder    string
	expiresAt time.Time
}

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker(clock clockwork.Clock) *MemoryLocker {
	return &MemoryLocker{
		clock: clock,
		locks: make(map[string]memoryLock),
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key, holder string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if cur, ok := l.locks[key]; ok && cur.expiresAt.After(now) {
		return false, nil
	}
	l.locks[key] = memoryLock{holder: holder, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.locks[key]; ok && cur.holder == holder {
		delete(l.locks, key)
	}
	return nil
}
