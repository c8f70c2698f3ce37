package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/passbi/ridepool/internal/dispatch"
	"github.com/passbi/ridepool/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when another worker holds a simulation lock too long
var ErrLockTimeout = errors.New("timeout waiting for lock")

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// Config holds Redis configuration
type Config struct {
	Host       string
	Port       int
	Password   string
	DB         int
	TLSEnabled bool
	TTL        time.Duration
	MutexTTL   time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	if err != nil {
		ttl = 10 * time.Minute
	}
	mutexTTL, err := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))
	if err != nil {
		mutexTTL = 5 * time.Second
	}

	return &Config{
		Host:       getEnv("REDIS_HOST", "localhost"),
		Port:       port,
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         db,
		TLSEnabled: getEnv("REDIS_TLS_ENABLED", "false") == "true",
		TTL:        ttl,
		MutexTTL:   mutexTTL,
	}
}

// Options converts the configuration into go-redis client options
func (c *Config) Options() *redis.Options {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Managed Redis providers such as Upstash require TLS
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return opts
}

// GetClient returns the global Redis client (singleton pattern)
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		config := LoadConfigFromEnv()
		client = redis.NewClient(config.Options())

		// Test connection
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
			return
		}
	})

	return client, clientErr
}

// Close closes the Redis client
func Close() {
	if client != nil {
		client.Close()
	}
}

// Store caches simulation results. Simulations are deterministic, so a
// cached result is identical to a recomputation over the same input.
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	mutexTTL time.Duration
}

// NewStore wraps a Redis client
func NewStore(client *redis.Client, config *Config) *Store {
	return &Store{
		client:   client,
		ttl:      config.TTL,
		mutexTTL: config.MutexTTL,
	}
}

// SimulationKey generates a cache key for a simulation input.
// Every field that influences the outcome is part of the hash.
func SimulationKey(params models.Params, limits dispatch.Limits, demands []models.Demand) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%g|%g|%g|%g|%g|%d|%d\n",
		params.Capacity, params.Speed, params.MaxTimeGap,
		params.MaxOriginDistance, params.MaxDestinationDistance, params.MinEfficiency,
		limits.MaxRides, limits.MaxEvents)
	for _, d := range demands {
		fmt.Fprintf(h, "%d|%g|%g|%g|%g|%g\n",
			d.ID, d.Time, d.Origin.X, d.Origin.Y, d.Destination.X, d.Destination.Y)
	}
	return fmt.Sprintf("sim:%x", h.Sum(nil)[:16])
}

// LockKey generates a mutex lock key
func LockKey(simKey string) string {
	return fmt.Sprintf("lock:%s", simKey)
}

// GetResult retrieves a cached simulation result. A miss returns nil, nil.
func (s *Store) GetResult(ctx context.Context, key string) (*dispatch.Result, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}

	var result dispatch.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}

	return &result, nil
}

// SetResult caches a simulation result
func (s *Store) SetResult(ctx context.Context, key string, result *dispatch.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// AcquireLock attempts to acquire the computation lock for a simulation key.
// Returns true if the lock was acquired, false if already locked.
func (s *Store) AcquireLock(ctx context.Context, simKey string) (bool, error) {
	return s.client.SetNX(ctx, LockKey(simKey), "1", s.mutexTTL).Result()
}

// ReleaseLock releases the computation lock for a simulation key
func (s *Store) ReleaseLock(ctx context.Context, simKey string) error {
	return s.client.Del(ctx, LockKey(simKey)).Err()
}

// WaitForResult waits for another worker to release the lock and then reads
// its result, so identical concurrent requests compute only once
func (s *Store) WaitForResult(ctx context.Context, simKey string, maxWait time.Duration) (*dispatch.Result, error) {
	lockKey := LockKey(simKey)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		exists, err := s.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return s.GetResult(ctx, simKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil, ErrLockTimeout
}

// HealthCheck performs a health check on the Redis connection
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
