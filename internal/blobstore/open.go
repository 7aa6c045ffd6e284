package blobstore

import (
	"context"
	"fmt"
	"log"

	"morentube/internal/config"
)

// Open builds the store selected by BLOB_BACKEND. The returned func releases
// any connections the store holds.
func Open(ctx context.Context, cfg config.Config) (Store, func(), error) {
	noop := func() {}
	switch cfg.BlobBackend {
	case "vercel":
		if cfg.BlobToken == "" {
			return nil, noop, fmt.Errorf("blob backend vercel: BLOB_READ_WRITE_TOKEN is not set")
		}
		log.Printf("blobstore: vercel blob")
		return NewVercel(cfg.BlobToken, cfg.BlobAPIURL), noop, nil
	case "redis":
		client, err := DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("blobstore: redis %s", client.Options().Addr)
		return NewRedis(client), func() { _ = client.Close() }, nil
	case "postgres":
		s, err := ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		log.Printf("blobstore: postgres")
		return s, s.Close, nil
	case "memory":
		log.Printf("blobstore: in-memory, data is lost on restart")
		return NewMemory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}
