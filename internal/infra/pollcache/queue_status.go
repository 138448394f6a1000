package pollcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/redis/go-redis/v9"
)

const queueStatusKey = "carwash:queue-status"

// Store caches the queue-status snapshot between supervisor passes so the
// 3-5 second pollers do not hammer Postgres. A short TTL bounds staleness;
// mutations invalidate eagerly.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Save(ctx context.Context, snapshot *readmodel.QueueStatusRM) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, queueStatusKey, data, s.ttl).Err()
}

// Get returns (nil, nil) on a cache miss.
func (s *Store) Get(ctx context.Context) (*readmodel.QueueStatusRM, error) {
	result, err := s.client.Get(ctx, queueStatusKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var snapshot readmodel.QueueStatusRM
	if err := json.Unmarshal([]byte(result), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *Store) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, queueStatusKey).Err()
}
