// Package cache holds the Redis-backed chat answer cache and request rate
// limiter.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "studydeck:"

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Cache{client: client, now: time.Now}, nil
}

// answerKey keys an answer by book and normalized question.
func answerKey(bookID, question string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(question), " "))
	sum := sha256.Sum256([]byte(norm))
	return keyPrefix + "chat:" + bookID + ":" + hex.EncodeToString(sum[:])
}

func rateKey(client string, window time.Duration, now time.Time) string {
	bucket := now.Unix() / int64(window.Seconds())
	return fmt.Sprintf("%srate:%s:%d", keyPrefix, client, bucket)
}

// GetAnswer returns a cached answer. ok is false on a miss.
func (c *Cache) GetAnswer(ctx context.Context, bookID, question string) (answer string, ok bool, err error) {
	answer, err = c.client.Get(ctx, answerKey(bookID, question)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cached answer: %w", err)
	}
	return answer, true, nil
}

// SetAnswer caches an answer for ttl.
func (c *Cache) SetAnswer(ctx context.Context, bookID, question, answer string, ttl time.Duration) error {
	if err := c.client.Set(ctx, answerKey(bookID, question), answer, ttl).Err(); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}
	return nil
}

// InvalidateBook drops every cached answer of a book. Called when the book's
// documents change.
func (c *Cache) InvalidateBook(ctx context.Context, bookID string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"chat:"+bookID+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("invalidate answers: %w", err)
		}
	}
	return iter.Err()
}

// Allow counts a request from client in a fixed window and reports whether
// it is within limit.
func (c *Cache) Allow(ctx context.Context, client string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window < time.Second {
		window = time.Second
	}
	key := rateKey(client, window, c.now())

	// The counter and its expiry are written together so a key never
	// outlives its window.
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
