// Package status publishes per-bot runtime state and log lines so external
// consumers can observe running sessions.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusTTL   = time.Hour
	maxLogLines = 1000
)

// Store persists bot status and logs in Redis. Status entries expire so a
// crashed bot stops reporting as running on its own.
type Store struct {
	rdb *redis.Client
}

// NewStore connects using a redis URL (redis://host:port/db). A ping failure
// is returned so the caller can fall back to local-only recording.
func NewStore(ctx context.Context, rawURL string) (*Store, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func statusKey(botID string) string { return "user:" + botID + ":status" }
func logsKey(botID string) string   { return "user:" + botID + ":logs" }

// SetStatus writes the bot's current state with a one hour expiry.
func (s *Store) SetStatus(ctx context.Context, botID, state string) error {
	return s.rdb.SetEx(ctx, statusKey(botID), state, statusTTL).Err()
}

// Status reads the bot's last reported state, empty when expired or unset.
func (s *Store) Status(ctx context.Context, botID string) (string, error) {
	v, err := s.rdb.Get(ctx, statusKey(botID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// AppendLog pushes a log line, keeping only the newest maxLogLines.
func (s *Store) AppendLog(ctx context.Context, botID, line string) error {
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, logsKey(botID), line)
	pipe.LTrim(ctx, logsKey(botID), 0, maxLogLines-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Logs returns up to n newest log lines, newest first.
func (s *Store) Logs(ctx context.Context, botID string, n int) ([]string, error) {
	if n <= 0 || n > maxLogLines {
		n = maxLogLines
	}
	return s.rdb.LRange(ctx, logsKey(botID), 0, int64(n-1)).Result()
}

// ActiveBots scans for bots with a live status key.
func (s *Store) ActiveBots(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, "user:*:status", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := strings.TrimSuffix(strings.TrimPrefix(key, "user:"), ":status")
		out = append(out, id)
	}
	return out, iter.Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
