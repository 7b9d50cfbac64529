package library

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ScopeLocker serializes structural mutations per scope lock key.
// Waiting for a key honours context cancellation.
type ScopeLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewScopeLocker creates an empty locker
func NewScopeLocker() *ScopeLocker {
	return &ScopeLocker{entries: make(map[string]*lockEntry)}
}

// Lock acquires every key in sorted order and returns the function that
// releases them. Duplicate keys are acquired once.
func (l *ScopeLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedUnique(keys)

	acquired := make([]string, 0, len(keys))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.release(acquired[i])
		}
	}

	for _, key := range keys {
		entry := l.retain(key)
		if err := entry.sem.Acquire(ctx, 1); err != nil {
			l.drop(key)
			release()
			return nil, err
		}
		acquired = append(acquired, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// Held returns the number of keys currently locked or waited on
func (l *ScopeLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *ScopeLocker) retain(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *ScopeLocker) release(key string) {
	l.mu.Lock()
	entry := l.entries[key]
	l.mu.Unlock()

	entry.sem.Release(1)
	l.drop(key)
}

func (l *ScopeLocker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[key]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
