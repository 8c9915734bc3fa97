// Package storage keeps the registry of benchmark runs. Backends share
// the Store interface: an in-memory map for tests, a JSON file next to
// the experiment data, and Redis for shared multi-host setups.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "microtune:run:"

// RedisStore implements Store on Redis so several benchmark hosts can
// share one run registry. Records never expire; runs are audit data.
type RedisStore struct {
	client *redis.Client
	mu     sync.Mutex
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("storage: redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("storage: redis database number must be >= 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client}, nil
}

// Put stores a run record under "microtune:run:{id}" and indexes it in
// the workload's sorted set by start time.
func (r *RedisStore) Put(ctx context.Context, record RunRecord) error {
	if record.ID == "" || record.Workload == "" {
		return errors.New("storage: run record needs an ID and a workload")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("storage: marshal run record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+record.ID, data, 0)
	pipe.ZAdd(ctx, redisKeyPrefix+"by-workload:"+record.Workload, redis.Z{
		Score:  float64(record.StartedAt.Unix()),
		Member: record.ID,
	})
	pipe.SAdd(ctx, redisKeyPrefix+"ids", record.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: store run record: %w", err)
	}
	return nil
}

// GetLatest returns the most recently started run of a workload.
func (r *RedisStore) GetLatest(ctx context.Context, workload string) (RunRecord, bool, error) {
	if workload == "" {
		return RunRecord{}, false, errors.New("storage: workload name required")
	}

	ids, err := r.client.ZRevRange(ctx, redisKeyPrefix+"by-workload:"+workload, 0, 0).Result()
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("storage: query run index: %w", err)
	}
	if len(ids) == 0 {
		return RunRecord{}, false, nil
	}
	return r.get(ctx, ids[0])
}

// List returns every stored record ordered by run ID.
func (r *RedisStore) List(ctx context.Context) ([]RunRecord, error) {
	ids, err := r.client.SMembers(ctx, redisKeyPrefix+"ids").Result()
	if err != nil {
		return nil, fmt.Errorf("storage: list run ids: %w", err)
	}

	out := make([]RunRecord, 0, len(ids))
	for _, id := range ids {
		record, found, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, record)
		}
	}
	sortRecords(out)
	return out, nil
}

func (r *RedisStore) get(ctx context.Context, id string) (RunRecord, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, fmt.Errorf("storage: get run record: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return RunRecord{}, false, fmt.Errorf("storage: unmarshal run record: %w", err)
	}
	return record, true, nil
}

// Close closes the Redis client. Safe to call multiple times.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
