package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps blobs in a single table.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 5
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{Pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS blobs (
  pathname TEXT PRIMARY KEY,
  body BYTEA NOT NULL,
  content_type TEXT NOT NULL DEFAULT 'application/json',
  uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS blobs_uploaded_at_idx ON blobs (uploaded_at DESC);
`)
	if err != nil {
		return fmt.Errorf("migrate blobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string) ([]Blob, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT pathname, octet_length(body), uploaded_at
FROM blobs
WHERE starts_with(pathname, $1)
ORDER BY uploaded_at DESC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	var out []Blob
	for rows.Next() {
		var b Blob
		if err := rows.Scan(&b.Pathname, &b.Size, &b.UploadedAt); err != nil {
			return nil, err
		}
		b.URL = b.Pathname
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := s.Pool.QueryRow(ctx, `SELECT body FROM blobs WHERE pathname=$1`, url).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return body, nil
}

func (s *PostgresStore) Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (Blob, error) {
	if opts.AddRandomSuffix {
		pathname = withRandomSuffix(pathname)
	}
	var uploadedAt time.Time
	err := s.Pool.QueryRow(ctx, `
INSERT INTO blobs (pathname, body, content_type, uploaded_at)
VALUES ($1, $2, $3, clock_timestamp())
ON CONFLICT (pathname) DO UPDATE
SET body=EXCLUDED.body, content_type=EXCLUDED.content_type, uploaded_at=EXCLUDED.uploaded_at
RETURNING uploaded_at`, pathname, body, contentTypeOr(opts)).Scan(&uploadedAt)
	if err != nil {
		return Blob{}, fmt.Errorf("put blob: %w", err)
	}
	return Blob{URL: pathname, Pathname: pathname, Size: int64(len(body)), UploadedAt: uploadedAt}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	if _, err := s.Pool.Exec(ctx, `DELETE FROM blobs WHERE pathname = ANY($1)`, urls); err != nil {
		return fmt.Errorf("delete blobs: %w", err)
	}
	return nil
}
