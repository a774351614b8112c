package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjannette/trahn-dca/internal/models"
)

const (
	keyHolding = "trahn:%s:holding"
	keyLevel   = "trahn:%s:dca_level"
)

// RedisStore keeps the counters as two string keys written in one MULTI/EXEC.
type RedisStore struct {
	client     *redis.Client
	holdingKey string
	levelKey   string
}

// NewRedisClient connects using a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, pairKey string) *RedisStore {
	return &RedisStore{
		client:     client,
		holdingKey: fmt.Sprintf(keyHolding, pairKey),
		levelKey:   fmt.Sprintf(keyLevel, pairKey),
	}
}

// Load reads both keys. Absent or malformed values read as zero.
func (s *RedisStore) Load(ctx context.Context) (models.Counters, error) {
	vals, err := s.client.MGet(ctx, s.holdingKey, s.levelKey).Result()
	if err != nil {
		return models.Counters{}, fmt.Errorf("redis mget counters: %w", err)
	}

	var c models.Counters
	if str, ok := vals[0].(string); ok {
		if v, err := strconv.ParseFloat(str, 64); err == nil {
			c.HoldingValue = v
		}
	}
	if str, ok := vals[1].(string); ok {
		if v, err := strconv.ParseUint(str, 10, 32); err == nil {
			c.DCALevel = uint32(v)
		}
	}
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c models.Counters) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.holdingKey, strconv.FormatFloat(c.HoldingValue, 'f', -1, 64), 0)
		pipe.Set(ctx, s.levelKey, strconv.FormatUint(uint64(c.DCALevel), 10), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save counters: %w", err)
	}
	return nil
}
