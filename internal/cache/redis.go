// Package cache хранит в Redis снимки подписок, ключи идемпотентности
// и короткие блокировки мутаций подписки одного ментора.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
)

// ErrLocked возвращается, если блокировка уже занята другой операцией.
var ErrLocked = errors.New("key is locked")

// Cache обертка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

// Get читает JSON по ключу в result. false без ошибки означает промах.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в JSON.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetNX сохраняет значение, только если ключа еще нет.
func (c *Cache) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	const op = "cache.SetNX"
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := c.Db.SetNX(ctx, key, data, expiration).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Invalidate удаляет ключи.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	const op = "cache.Invalidate"
	if len(keys) == 0 {
		return nil
	}
	if err := c.Db.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// releaseScript удаляет блокировку, только если ее держит владелец токена.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock занимает блокировку key на ttl. Возвращает функцию освобождения
// или ErrLocked, если блокировку держит кто-то другой.
func (c *Cache) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	const op = "cache.Lock"
	token := uuid.NewString()
	ok, err := c.Db.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrLocked)
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, c.Db, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("cache.Unlock: %w", err)
		}
		return nil
	}, nil
}
