// Package redis backs the per-session blob cache. Values are small JSON
// documents keyed by session id plus one of three fixed slots; everything
// expires with the session TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{client: client, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Save writes the blob best-effort. Serialization and backend errors are
// logged and swallowed: losing a session mirror never fails the pipeline.
func (s *Store) Save(ctx context.Context, sessionID, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		slog.Warn("session_blob_marshal_failed", "session_id", sessionID, "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, blobKey(sessionID, key), payload, s.ttl).Err(); err != nil {
		slog.Warn("session_blob_save_failed", "session_id", sessionID, "key", key, "error", err)
	}
}

// Load fills out and reports whether a usable blob existed. Corrupt payloads
// count as absent.
func (s *Store) Load(ctx context.Context, sessionID, key string, out any) bool {
	payload, err := s.client.Get(ctx, blobKey(sessionID, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("session_blob_load_failed", "session_id", sessionID, "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		slog.Warn("session_blob_corrupt", "session_id", sessionID, "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) Clear(ctx context.Context, sessionID, key string) {
	if err := s.client.Del(ctx, blobKey(sessionID, key)).Err(); err != nil {
		slog.Warn("session_blob_clear_failed", "session_id", sessionID, "key", key, "error", err)
	}
}

func blobKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}
