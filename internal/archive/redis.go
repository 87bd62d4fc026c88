package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-session-host/internal/domain"
)

// RedisArchive stores one JSON record per session key with a TTL, for hosts
// that want results to survive the process without running Postgres.
type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisArchive(client *redis.Client, ttl time.Duration) *RedisArchive {
	return &RedisArchive{client: client, ttl: ttl}
}

func (a *RedisArchive) Save(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := a.client.Set(ctx, a.key(record.SessionID), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (a *RedisArchive) Load(ctx context.Context, sessionID string) (Record, error) {
	data, err := a.client.Get(ctx, a.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, domain.ErrResultsNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return record, nil
}

func (a *RedisArchive) key(sessionID string) string {
	return "session:results:" + sessionID
}
