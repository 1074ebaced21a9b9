package guard

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LockStore persists ingestion locks with a uniqueness constraint on the
// lock key.
type LockStore interface {
	InsertLock(ctx context.Context, key string, at time.Time) error
	DeleteLock(ctx context.Context, key string) error
}

// Locker is a best-effort, per-company mutual exclusion marker. A lock is
// acquired only when the insert succeeds; any insert failure, including a
// database outage, counts as not acquired.
//
// The key is any stable company identifier. Ingestion locks by normalized
// CNPJ because the lock is taken before the company row, and its id, exist;
// callers that already hold a company id may lock on that instead, but one
// caller must not mix both for the same company.
type Locker struct {
	store LockStore
	now   func() time.Time
	log   *zap.Logger
}

// NewLocker creates a Locker backed by store.
func NewLocker(store LockStore) *Locker {
	return &Locker{
		store: store,
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "guard.lock")),
	}
}

// TryLockCompany attempts to take the ingestion lock for key (normalized
// CNPJ during ingestion). An empty key is never locked.
func (l *Locker) TryLockCompany(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	if err := l.store.InsertLock(ctx, key, l.now().UTC()); err != nil {
		l.log.Info("guard: ingestion lock not acquired",
			zap.String("lock_key", key),
			zap.Error(err),
		)
		return false
	}
	return true
}

// ReleaseLock removes the lock for key. Failures are logged only.
func (l *Locker) ReleaseLock(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := l.store.DeleteLock(ctx, key); err != nil {
		l.log.Warn("guard: release ingestion lock",
			zap.String("lock_key", key),
			zap.Error(err),
		)
	}
}
