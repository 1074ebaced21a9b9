package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memLockStore struct {
	mu        sync.Mutex
	held      map[string]time.Time
	insertErr error
	deleteErr error
}

func newMemLockStore() *memLockStore {
	return &memLockStore{held: map[string]time.Time{}}
}

func (s *memLockStore) InsertLock(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.held[id]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	s.held[id] = at
	return nil
}

func (s *memLockStore) DeleteLock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.held, id)
	return nil
}

func TestLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(newMemLockStore())

	assert.True(t, l.TryLockCompany(ctx, "c1"))
	assert.False(t, l.TryLockCompany(ctx, "c1"))
	assert.True(t, l.TryLockCompany(ctx, "c2"))

	l.ReleaseLock(ctx, "c1")
	assert.True(t, l.TryLockCompany(ctx, "c1"))
}

func TestLocker_StoreErrorMeansNotAcquired(t *testing.T) {
	store := newMemLockStore()
	store.insertErr = errors.New("database is down")
	l := NewLocker(store)

	assert.False(t, l.TryLockCompany(context.Background(), "c1"))
}

func TestLocker_EmptyID(t *testing.T) {
	store := newMemLockStore()
	l := NewLocker(store)

	assert.False(t, l.TryLockCompany(context.Background(), ""))
	l.ReleaseLock(context.Background(), "")
	assert.Empty(t, store.held)
}

func TestLocker_ReleaseErrorIsSwallowed(t *testing.T) {
	store := newMemLockStore()
	l := NewLocker(store)
	ctx := context.Background()

	assert.True(t, l.TryLockCompany(ctx, "c1"))
	store.deleteErr = errors.New("timeout")
	l.ReleaseLock(ctx, "c1")
	assert.False(t, l.TryLockCompany(ctx, "c1"))
}

func TestLocker_NoDoubleAcquire(t *testing.T) {
	l := NewLocker(newMemLockStore())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryLockCompany(context.Background(), "contended") {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}
