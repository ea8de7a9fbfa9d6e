package cache

import (
	"context"
	"time"

	"github.com/aukilabs/kenaz/spatial"
)

// NullStore never records anything. Used when upload verification is
// disabled by feature flag.
type NullStore struct{}

func NewNullStore() *NullStore {
	return &NullStore{}
}

func (s *NullStore) Get(ctx context.Context, seed string) ([]spatial.AABB, bool, error) {
	return nil, false, nil
}

func (s *NullStore) Put(ctx context.Context, seed string, boxes []spatial.AABB, ttl time.Duration) error {
	return nil
}

func (s *NullStore) Evict(ctx context.Context, seed string) error {
	return nil
}

func (s *NullStore) Close() error {
	return nil
}

var _ Store = (*NullStore)(nil)
