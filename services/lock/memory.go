package locksvc

import (
	"context"
	"sync"
	"time"

	"github.com/casbytes/lms-sub000/core"
)

// memoryLocker is the in-process Locker used when no Redis address is configured.
type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	seq   uint64
}

type memoryLock struct {
	seq       uint64
	expiresAt time.Time
}

var _ core.Locker = (*memoryLocker)(nil)

func NewMemoryLocker() core.Locker {
	return &memoryLocker{locks: make(map[string]memoryLock)}
}

func (l *memoryLocker) Obtain(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if lk, ok := l.locks[key]; ok && now.Before(lk.expiresAt) {
		return nil, core.NewConflictError(key)
	}
	l.seq++
	seq := l.seq
	l.locks[key] = memoryLock{seq: seq, expiresAt: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lk, ok := l.locks[key]; ok && lk.seq == seq {
			delete(l.locks, key)
		}
	}, nil
}
