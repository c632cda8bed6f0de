package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// progressTTL bounds how long a finished job stays queryable. Without an
// expiry the registry would grow one record per sync forever.
const progressTTL = 24 * time.Hour

// RedisStore is the ProgressStore used when several service instances need
// to see each other's jobs, or when records should outlive a restart.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("progress: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("progress: redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func progressKey(jobID string) string {
	return "sync_progress:" + jobID
}

func (s *RedisStore) Set(ctx context.Context, jobID string, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("progress: marshal job %s: %w", jobID, err)
	}
	return s.client.Set(ctx, progressKey(jobID), data, progressTTL).Err()
}

// Get distinguishes a job that never existed (redis.Nil) from the registry
// being unreadable; the latter is an error so pollers don't mistake an
// outage for an unknown job.
func (s *RedisStore) Get(ctx context.Context, jobID string) (Progress, bool, error) {
	val, err := s.client.Get(ctx, progressKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("progress: fetch job %s: %w", jobID, err)
	}
	var p Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return Progress{}, false, fmt.Errorf("progress: decode job %s: %w", jobID, err)
	}
	return p, true, nil
}
