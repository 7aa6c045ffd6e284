package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisBodyPrefix = "blob:body:"
	redisMetaKey    = "blob:meta"
)

// RedisStore keeps blob bodies as plain keys and their metadata in one hash.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis parses a redis:// or rediss:// URL and pings the server.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
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
	return client, nil
}

func (r *RedisStore) List(ctx context.Context, prefix string) ([]Blob, error) {
	all, err := r.client.HGetAll(ctx, redisMetaKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	out := make([]Blob, 0, len(all))
	for pathname, raw := range all {
		if !strings.HasPrefix(pathname, prefix) {
			continue
		}
		var b Blob
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blob meta %s: %w", pathname, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *RedisStore) Get(ctx context.Context, url string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisBodyPrefix+url).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (Blob, error) {
	if opts.AddRandomSuffix {
		pathname = withRandomSuffix(pathname)
	}
	meta := Blob{
		URL:        pathname,
		Pathname:   pathname,
		Size:       int64(len(body)),
		UploadedAt: time.Now().UTC(),
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to marshal blob meta: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisBodyPrefix+pathname, body, 0)
		p.HSet(ctx, redisMetaKey, pathname, rawMeta)
		return nil
	})
	if err != nil {
		return Blob{}, fmt.Errorf("failed to put blob: %w", err)
	}
	return meta, nil
}

func (r *RedisStore) Delete(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		keys = append(keys, redisBodyPrefix+u)
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.HDel(ctx, redisMetaKey, urls...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete blobs: %w", err)
	}
	return nil
}
