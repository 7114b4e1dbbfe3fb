package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// SnapshotStore persists engine snapshots so a restarting monitor does not
// lose the sliding windows accumulated inside the current epoch.
type SnapshotStore struct {
	rdb *Client
	key string
}

func NewSnapshotStore(rdb *Client, prefix string) *SnapshotStore {
	if prefix == "" {
		prefix = "pumpwatch"
	}
	return &SnapshotStore{
		rdb: rdb,
		key: fmt.Sprintf("%s:engine:snapshot", prefix),
	}
}

func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	// TTL 0: the snapshot is overwritten every interval and invalidated
	// explicitly on epoch reset
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save engine snapshot: %w", err)
	}
	return nil
}

// Load returns nil data without error when no snapshot exists.
func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load engine snapshot: %w", err)
	}
	return data, nil
}

func (s *SnapshotStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear engine snapshot: %w", err)
	}
	return nil
}
