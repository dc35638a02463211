package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow делает INCR по ключу и ставит TTL, если ключ создаётся впервые.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// TTL ставится только при создании ключа: окно фиксированное.
	pipe.ExpireNX(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// Ключи лимитов: login считается по адресу клиента, мутации — по пользователю.
func AuthKey(ip string) string {
	return fmt.Sprintf("rl:auth:%s", ip)
}

func ModifyKey(userID uint64) string {
	return fmt.Sprintf("rl:modify:%d", userID)
}

func GeneralKey(ip string) string {
	return fmt.Sprintf("rl:general:%s", ip)
}
