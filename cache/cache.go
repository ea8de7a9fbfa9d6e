// Package cache stores the bounding boxes handed to a browser under
// their seed, so a later upload can be verified against the exact
// regions the stimulus was generated for. It replaces an older
// process-global lookup table with an explicit Get/Put/Evict contract
// owned by the serving layer, never by the placement core.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/kenaz/spatial"
)

// DefaultTTL bounds how long recorded regions stay valid. A stability
// run uploads its capture right after drawing, so an expired entry
// means the run was abandoned.
const DefaultTTL = time.Minute * 10

// ErrTypeUnknownSeed marks an upload whose seed has no recorded
// regions, because none were generated or the entry expired.
const ErrTypeUnknownSeed = "regions_unknown_seed"

// Store is a region cache keyed by seed.
type Store interface {
	// Get returns the regions recorded under the seed. The second
	// return is false when the seed is unknown or expired.
	Get(ctx context.Context, seed string) ([]spatial.AABB, bool, error)

	// Put records the regions under the seed, replacing any previous
	// entry. A ttl of 0 selects DefaultTTL.
	Put(ctx context.Context, seed string, boxes []spatial.AABB, ttl time.Duration) error

	// Evict removes the seed. Evicting an unknown seed is not an
	// error.
	Evict(ctx context.Context, seed string) error

	Close() error
}

type memoryEntry struct {
	boxes     []spatial.AABB
	expiresAt time.Time
}

// MemoryStore is the in-memory backend used by single-instance
// deployments and tests.
type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(ctx context.Context, seed string) ([]spatial.AABB, bool, error) {
	s.mutex.RLock()
	entry, ok := s.entries[seed]
	s.mutex.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		s.mutex.Lock()
		delete(s.entries, seed)
		s.mutex.Unlock()
		return nil, false, nil
	}

	boxes := make([]spatial.AABB, len(entry.boxes))
	copy(boxes, entry.boxes)
	return boxes, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, seed string, boxes []spatial.AABB, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	stored := make([]spatial.AABB, len(boxes))
	copy(stored, boxes)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[seed] = memoryEntry{
		boxes:     stored,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Evict(ctx context.Context, seed string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, seed)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
