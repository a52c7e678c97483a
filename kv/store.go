package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get and HGetAll when the key is absent.
var ErrNotFound = errors.New("kv: not found")

// Config configures the Store's connection to the backing K/V store.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// Store is the typed K/V adapter of spec.md §4.1. It owns the connection
// pool; retries on transient network faults are handled by the underlying
// client (MaxRetries), not by this package.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore dials the backing store and verifies connectivity.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: connect: %w", err)
	}

	return &Store{client: client, logger: logger.With(zap.String("component", "kv"))}, nil
}

// NewStoreFromClient wraps an existing go-redis client, used by tests to
// plug in a miniredis-backed instance.
func NewStoreFromClient(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger.With(zap.String("component", "kv"))}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity, used by the /healthz handler.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the string value at key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: get %s: %w", key, err)
	}
	return val, nil
}

// Set writes key unconditionally, with ttl of 0 meaning no expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

// SetNX atomically sets key only if absent, applying ttl on success. It
// reports whether this call was the one that set the value — the contract
// the Idempotency Guard's try_acquire depends on (spec.md §4.3).
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv: setnx %s: %w", key, err)
	}
	return ok, nil
}

// SetTTL re-applies an expiry to an existing key without changing its value.
func (s *Store) SetTTL(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("kv: expire %s: %w", key, err)
	}
	return nil
}

// Del removes one or more keys. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("kv: del: %w", err)
	}
	return nil
}

// Exists reports how many of the given keys are present.
func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	count, err := s.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: exists: %w", err)
	}
	return count, nil
}

// HSet writes a hash field map, used to store Event records.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]any) error {
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("kv: hset %s: %w", key, err)
	}
	return nil
}

// HGet reads a single hash field.
func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: hget %s/%s: %w", key, field, err)
	}
	return val, nil
}

// HGetAll reads the full hash, returning ErrNotFound when it is empty or
// absent (go-redis does not distinguish the two cases).
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	val, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: hgetall %s: %w", key, err)
	}
	if len(val) == 0 {
		return nil, ErrNotFound
	}
	return val, nil
}
