package tally

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	fieldProcessed = "processed"
	fieldFlagged   = "flagged"
	fieldSavings   = "savings"

	maxRecordRetries = 16
)

// RedisStore keeps totals in a Redis hash so several API nodes share them.
// Savings are stored as decimal text and updated inside WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and returns a store writing to key.
func NewRedisStore(addr, password string, db int, key string) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if key == "" {
		key = "govguard:tally"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, key: key}, nil
}

// Record folds d into the shared totals, retrying when another writer
// changes the hash between the read and the write.
func (s *RedisStore) Record(ctx context.Context, d domain.Decision) error {
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		current.Add(d)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key,
				fieldProcessed, current.Processed,
				fieldFlagged, current.Flagged,
				fieldSavings, current.Savings.String(),
			)
			return nil
		})
		return err
	}

	for i := 0; i < maxRecordRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to record decision: %w", err)
	}

	return fmt.Errorf("failed to record decision: too much contention on %s", s.key)
}

// Snapshot reads the current totals.
func (s *RedisStore) Snapshot(ctx context.Context) (Totals, error) {
	return s.read(ctx, s.client)
}

// Reset deletes the totals hash.
func (s *RedisStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisStore) read(ctx context.Context, c hashReader) (Totals, error) {
	fields, err := c.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Totals{}, fmt.Errorf("failed to read totals: %w", err)
	}
	return parseTotals(fields)
}

func parseTotals(fields map[string]string) (Totals, error) {
	t := Totals{Savings: decimal.Zero}

	if v, ok := fields[fieldProcessed]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Totals{}, fmt.Errorf("invalid %s value %q: %w", fieldProcessed, v, err)
		}
		t.Processed = n
	}
	if v, ok := fields[fieldFlagged]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Totals{}, fmt.Errorf("invalid %s value %q: %w", fieldFlagged, v, err)
		}
		t.Flagged = n
	}
	if v, ok := fields[fieldSavings]; ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Totals{}, fmt.Errorf("invalid %s value %q: %w", fieldSavings, v, err)
		}
		t.Savings = d
	}

	return t, nil
}
