package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scamdunk/scamguard/pkg/config"
	"github.com/scamdunk/scamguard/pkg/logging"
)

// Store is the persistence surface the orchestrator and queue processor
// depend on: the analysis cache, scan/batch results and the work queues.
type Store interface {
	CacheAnalysis(ctx context.Context, fingerprint string, a *Analysis, ttl time.Duration) error
	GetCachedAnalysis(ctx context.Context, fingerprint string) (*Analysis, error)

	SetScanResult(ctx context.Context, r *ScanResult, ttl time.Duration) error
	GetScanResult(ctx context.Context, id string) (*ScanResult, error)

	SetBatchStatus(ctx context.Context, s *BatchStatus, ttl time.Duration) error
	GetBatchStatus(ctx context.Context, id string) (*BatchStatus, error)

	Enqueue(ctx context.Context, queue string, payload any) error
	Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (queue string, payload []byte, err error)
	QueueDepth(ctx context.Context, queue string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// RedisStore implements Store on go-redis. Values are stored as JSON.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	log       *logging.Logger
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, log *logging.Logger) (*RedisStore, error) {
	log = log.WithComponent("redis_store")
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", cfg.Addr()).Msg("connected to redis")
	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix, log: log}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string, log *logging.Logger) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix, log: log.WithComponent("redis_store")}
}

func (s *RedisStore) key(parts ...string) string {
	out := s.keyPrefix
	for i, p := range parts {
		if i > 0 {
			out += ":"
		}
		out += p
	}
	return out
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheAnalysis stores an analysis under its content fingerprint.
func (s *RedisStore) CacheAnalysis(ctx context.Context, fingerprint string, a *Analysis, ttl time.Duration) error {
	return s.setJSON(ctx, s.key("analysis", fingerprint), a, ttl)
}

// GetCachedAnalysis returns ErrNotFound on a miss.
func (s *RedisStore) GetCachedAnalysis(ctx context.Context, fingerprint string) (*Analysis, error) {
	var a Analysis
	if err := s.getJSON(ctx, s.key("analysis", fingerprint), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SetScanResult stores a queued scan outcome under scan_result:<id>.
func (s *RedisStore) SetScanResult(ctx context.Context, r *ScanResult, ttl time.Duration) error {
	return s.setJSON(ctx, s.key("scan_result", r.ID), r, ttl)
}

func (s *RedisStore) GetScanResult(ctx context.Context, id string) (*ScanResult, error) {
	var r ScanResult
	if err := s.getJSON(ctx, s.key("scan_result", id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RedisStore) SetBatchStatus(ctx context.Context, st *BatchStatus, ttl time.Duration) error {
	return s.setJSON(ctx, s.key("batch_status", st.BatchID), st, ttl)
}

func (s *RedisStore) GetBatchStatus(ctx context.Context, id string) (*BatchStatus, error) {
	var st BatchStatus
	if err := s.getJSON(ctx, s.key("batch_status", id), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Enqueue pushes a JSON payload onto the tail of a queue.
func (s *RedisStore) Enqueue(ctx context.Context, queue string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job for %s: %w", queue, err)
	}
	return s.client.RPush(ctx, s.key(queue), data).Err()
}

// Dequeue blocks up to timeout on the given queues, honoring their order, and
// returns the queue a job came from. A timeout returns ErrNotFound.
func (s *RedisStore) Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (string, []byte, error) {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = s.key(q)
	}
	res, err := s.client.BLPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, ErrNotFound
		}
		return "", nil, err
	}
	// res[0] is the full key; strip the prefix back off.
	queue := res[0]
	if len(s.keyPrefix) > 0 && len(queue) > len(s.keyPrefix) {
		queue = queue[len(s.keyPrefix):]
	}
	return queue, []byte(res[1]), nil
}

func (s *RedisStore) QueueDepth(ctx context.Context, queue string) (int64, error) {
	return s.client.LLen(ctx, s.key(queue)).Result()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
