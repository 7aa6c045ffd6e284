package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// SQLStore keeps each catalog key as a JSON document in a key/value table.
// Opened through libsql (Turso) in production; any sqlx driver works.
type SQLStore struct {
	db *sqlx.DB
}

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// OpenLibsql connects to a libsql/Turso database and creates the table.
func OpenLibsql(ctx context.Context, dbURL, authToken string) (*SQLStore, error) {
	dsn, err := libsqlDSN(dbURL, authToken)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libsql: %w", err)
	}
	s := NewSQL(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// libsqlDSN adds authToken to the query of dbURL, keeping other parameters.
func libsqlDSN(dbURL, authToken string) (string, error) {
	if authToken == "" {
		return dbURL, nil
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("invalid libsql url: %w", err)
	}
	q := u.Query()
	q.Set("authToken", authToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func NewSQL(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS catalog_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create catalog table: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (Snapshot, error) {
	var rows []kvRow
	query := s.db.Rebind(`SELECT key, value FROM catalog_kv WHERE key IN (?, ?)`)
	if err := s.db.SelectContext(ctx, &rows, query, KeyCategories, KeyItems); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("load catalog: %w", err)
	}

	var snap Snapshot
	for _, r := range rows {
		var err error
		switch r.Key {
		case KeyCategories:
			err = json.Unmarshal([]byte(r.Value), &snap.Categories)
		case KeyItems:
			err = json.Unmarshal([]byte(r.Value), &snap.Items)
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode catalog %s: %w", r.Key, err)
		}
	}
	return snap, nil
}

func (s *SQLStore) Save(ctx context.Context, snap Snapshot) error {
	cats, err := json.Marshal(snap.Categories)
	if err != nil {
		return err
	}
	items, err := json.Marshal(snap.Items)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := tx.Rebind(`INSERT INTO catalog_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`)
	for _, kv := range []kvRow{{KeyCategories, string(cats)}, {KeyItems, string(items)}} {
		if _, err := tx.ExecContext(ctx, upsert, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("save catalog %s: %w", kv.Key, err)
		}
	}
	return tx.Commit()
}
