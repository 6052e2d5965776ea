package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gracechapel/backend/internal/cache"
)

// ViewTracker is the ephemeral store behind view dedup and per-IP rate
// limiting. Implementations must treat Incr as atomic per key. Errors mean
// the store is unreachable; callers decide whether that is fatal.
type ViewTracker interface {
	// WasViewedRecently reports whether this session already has a counted
	// view for the content item inside the dedup window.
	WasViewedRecently(ctx context.Context, ref ContentRef, sessionID string) (bool, error)

	// MarkViewed opens a dedup window for (session, content)
	MarkViewed(ctx context.Context, ref ContentRef, sessionID string, ttl time.Duration) error

	// IncrViewCount bumps the per-IP counter for the content item and
	// returns the new count. The window starts at the first increment.
	IncrViewCount(ctx context.Context, ref ContentRef, ip string, window time.Duration) (int64, error)
}

func dedupKey(ref ContentRef, sessionID string) string {
	return fmt.Sprintf("view:dedup:%s:%s:%s", ref.Type, ref.ID, sessionID)
}

func rateKey(ref ContentRef, ip string) string {
	return fmt.Sprintf("view:rate:%s:%s:%s", ref.Type, ref.ID, ip)
}

// RedisViewStore is the production ViewTracker
type RedisViewStore struct {
	redis *cache.RedisClient
}

func NewRedisViewStore(rc *cache.RedisClient) *RedisViewStore {
	return &RedisViewStore{redis: rc}
}

func (s *RedisViewStore) WasViewedRecently(ctx context.Context, ref ContentRef, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, dedupKey(ref, sessionID))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisViewStore) MarkViewed(ctx context.Context, ref ContentRef, sessionID string, ttl time.Duration) error {
	return s.redis.SetEx(ctx, dedupKey(ref, sessionID), "1", ttl)
}

func (s *RedisViewStore) IncrViewCount(ctx context.Context, ref ContentRef, ip string, window time.Duration) (int64, error) {
	key := rateKey(ref, ip)

	count, err := s.redis.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	// First increment in the window starts the clock
	if count == 1 {
		if err := s.redis.Expire(ctx, key, window); err != nil {
			return count, err
		}
	}

	return count, nil
}

var _ ViewTracker = (*RedisViewStore)(nil)

// MemoryViewStore is an in-process ViewTracker for tests and single-node
// deployments without Redis. Expiry is lazy.
type MemoryViewStore struct {
	mu     sync.Mutex
	dedup  map[string]time.Time // key -> window end
	counts map[string]*rateEntry

	// now is swappable in tests
	now func() time.Time
}

type rateEntry struct {
	count   int64
	resetAt time.Time
}

func NewMemoryViewStore() *MemoryViewStore {
	return &MemoryViewStore{
		dedup:  make(map[string]time.Time),
		counts: make(map[string]*rateEntry),
		now:    time.Now,
	}
}

func (s *MemoryViewStore) WasViewedRecently(_ context.Context, ref ContentRef, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.dedup[dedupKey(ref, sessionID)]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.dedup, dedupKey(ref, sessionID))
		return false, nil
	}
	return true, nil
}

func (s *MemoryViewStore) MarkViewed(_ context.Context, ref ContentRef, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dedup[dedupKey(ref, sessionID)] = s.now().Add(ttl)
	return nil
}

func (s *MemoryViewStore) IncrViewCount(_ context.Context, ref ContentRef, ip string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rateKey(ref, ip)
	entry, ok := s.counts[key]
	if !ok || s.now().After(entry.resetAt) {
		entry = &rateEntry{resetAt: s.now().Add(window)}
		s.counts[key] = entry
	}
	entry.count++
	return entry.count, nil
}

var _ ViewTracker = (*MemoryViewStore)(nil)

// FailingViewStore always errors; used to exercise outage handling
type FailingViewStore struct {
	Err error
}

func (s *FailingViewStore) WasViewedRecently(context.Context, ContentRef, string) (bool, error) {
	return false, s.Err
}

func (s *FailingViewStore) MarkViewed(context.Context, ContentRef, string, time.Duration) error {
	return s.Err
}

func (s *FailingViewStore) IncrViewCount(context.Context, ContentRef, string, time.Duration) (int64, error) {
	return 0, s.Err
}

var _ ViewTracker = (*FailingViewStore)(nil)
