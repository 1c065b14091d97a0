package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
)

const defaultMaxEntries = 4096

// MemoryStore is an in-process Store backed by ttlcache. Reads never extend
// an entry's lifetime; when the store is full, expired entries are dropped
// first and then the least recently used one.
type MemoryStore struct {
	items      *ttlcache.Cache[string, []byte]
	maxEntries int
}

// NewMemoryStore returns an empty store. A zero ttl uses IntelCacheTTL.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = constants.IntelCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		items: ttlcache.New[string, []byte](
			ttlcache.WithTTL[string, []byte](ttl),
			ttlcache.WithCapacity[string, []byte](uint64(maxEntries)),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
		maxEntries: maxEntries,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := m.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, sharedErrors.ErrCacheMiss
	}
	return append([]byte(nil), item.Value()...), nil
}

// Set stores a copy of value. A zero ttl uses the store default.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	if !m.items.Has(key) && m.items.Len() >= m.maxEntries {
		m.items.DeleteExpired()
	}
	m.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryStore) Expire(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of live entries.
func (m *MemoryStore) Len() int {
	m.items.DeleteExpired()
	return m.items.Len()
}
