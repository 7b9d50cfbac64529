package memory

import (
	"context"
	"fmt"
	"sync"

	"courseware/internal/domain"
	"courseware/internal/domain/models/library"
	"courseware/internal/domain/services"
)

// ContentStore keeps blob metadata in a map. Used in dev mode and tests;
// the bytes themselves live with the upload transport.
type ContentStore struct {
	blobs   map[string]services.ContentInfo
	baseURL string
	mu      sync.RWMutex
}

// NewContentStore creates an empty content store. URLs of registered blobs
// are baseURL + "/" + content id unless given explicitly.
func NewContentStore(baseURL string) *ContentStore {
	return &ContentStore{
		blobs:   make(map[string]services.ContentInfo),
		baseURL: baseURL,
	}
}

// Put registers blob metadata
func (s *ContentStore) Put(info services.ContentInfo) {
	if info.URL == "" {
		info.URL = s.baseURL + "/" + info.ContentID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[info.ContentID] = info
}

// Stat returns blob metadata
func (s *ContentStore) Stat(ctx context.Context, contentID string) (*services.ContentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.blobs[contentID]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", contentID, domain.ErrNotFound)
	}
	return &info, nil
}

// QuotaManager tracks bytes charged to each trainee's personal space
type QuotaManager struct {
	limit int64
	used  map[string]int64
	mu    sync.Mutex
}

// NewQuotaManager creates a quota manager with the same limit for every trainee
func NewQuotaManager(limitBytes int64) *QuotaManager {
	return &QuotaManager{
		limit: limitBytes,
		used:  make(map[string]int64),
	}
}

// Charge reserves bytes for the scope. Non-personal scopes are not metered.
func (q *QuotaManager) Charge(ctx context.Context, scope library.Scope, bytes int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !scope.IsPersonal() || bytes <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := scope.Key()
	if bytes > q.limit-q.used[key] {
		return fmt.Errorf("%s uses %d of %d bytes, cannot add %d: %w",
			key, q.used[key], q.limit, bytes, domain.ErrQuotaExceeded)
	}
	q.used[key] += bytes
	return nil
}

// Refund releases previously charged bytes
func (q *QuotaManager) Refund(ctx context.Context, scope library.Scope, bytes int64) error {
	if !scope.IsPersonal() || bytes <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := scope.Key()
	q.used[key] -= bytes
	if q.used[key] <= 0 {
		delete(q.used, key)
	}
	return nil
}

// Used returns the bytes currently charged to a scope
func (q *QuotaManager) Used(scope library.Scope) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used[scope.Key()]
}
