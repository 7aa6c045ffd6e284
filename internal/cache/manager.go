// Package cache keeps upstream API responses in Redis for a short time so
// repeated lookups from the Mini App do not burn the YouTube quota.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Manager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func New(client *redis.Client, prefix string, ttl time.Duration) *Manager {
	return &Manager{client: client, prefix: prefix, ttl: ttl}
}

// Dial connects to url and verifies the connection.
func Dial(ctx context.Context, url, prefix string, ttl time.Duration) (*Manager, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("cache: redis ready at %s (ttl %s)", opt.Addr, ttl)
	return New(client, prefix, ttl), nil
}

// Get returns the cached body for key. Redis failures are logged and treated
// as a miss.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	data, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: get %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (m *Manager) Set(ctx context.Context, key string, body []byte) {
	if m.ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := m.client.Set(ctx, m.prefix+key, body, m.ttl).Err(); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.client.Del(ctx, m.prefix+key).Err()
}

func (m *Manager) Close() error {
	return m.client.Close()
}
