package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no record exists for a session id
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport failures talking to Redis
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store persists session records keyed by session id
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// sweepInterval bounds how often Save scans for expired entries
const sweepInterval = time.Minute

// MemoryStore keeps encoded sessions in process memory. Expired entries are
// swept by Save at most once per sweepInterval.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// sweep drops expired entries. Callers hold m.mu.
func (m *MemoryStore) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for id, entry := range m.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return Decode(id, entry.data)
}

func (m *MemoryStore) Save(_ context.Context, s *Session, ttl time.Duration) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	now := m.now()
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	m.sweep(now)
	m.entries[s.ID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// RedisStore keeps encoded sessions in Redis, one key per session
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + "session:" + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrRedisUnavailable, err)
	}
	return Decode(id, data)
}

// Save writes the whole record with a single SET so a transition is applied atomically
func (r *RedisStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}
	return nil
}
