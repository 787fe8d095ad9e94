// Package vfs provides the encrypted virtual filesystem: a SQLite-backed record
// store whose blobs are sealed with AES-GCM under a single session key.
package vfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/starford/hedgey/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	enc        BOOLEAN NOT NULL DEFAULT 0,
	iv         TEXT NOT NULL DEFAULT '',
	blob       BLOB
);

CREATE INDEX IF NOT EXISTS idx_files_kind ON files(kind);
CREATE INDEX IF NOT EXISTS idx_files_updated_at ON files(updated_at);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Meta keys.
const (
	metaCryptoKey   = "crypto_key"
	metaDesktopTags = "desktop_tags"
	metaNoticeShown = "encryption_notice_shown"
)

// FileModel is a row of the files table.
type FileModel struct {
	bun.BaseModel `bun:"table:files"`

	ID        string `bun:"id,pk"`
	Name      string `bun:"name,notnull"`
	NameKey   string `bun:"name_key,notnull"` // lowercase name for collision checks
	Kind      string `bun:"kind,notnull"`
	Type      string `bun:"type,notnull"`
	Size      int64  `bun:"size,notnull"`
	UpdatedAt int64  `bun:"updated_at,notnull"` // Unix milliseconds
	Enc       bool   `bun:"enc,notnull"`
	IV        string `bun:"iv,notnull"`
	Blob      []byte `bun:"blob"`
}

// MetaModel is a row of the meta table.
type MetaModel struct {
	bun.BaseModel `bun:"table:meta"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// Settings is a small persisted key/value store.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// DB wraps the SQLite connection with Bun's query builder.
type DB struct {
	conn *sql.DB
	bun  *bun.DB
}

var _ Settings = (*DB)(nil)

// Open opens (or creates) the database at dsn and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("vfs: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vfs: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vfs: apply schema: %w", err)
	}
	return &DB{conn: conn, bun: bun.NewDB(conn, sqlitedialect.New())}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.bun.Close()
}

func (db *DB) allFiles(ctx context.Context) ([]FileModel, error) {
	var rows []FileModel
	err := db.bun.NewSelect().
		Model(&rows).
		Order("updated_at DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, unavailable("list files", err)
	}
	return rows, nil
}

func (db *DB) fileByID(ctx context.Context, id string) (*FileModel, error) {
	var row FileModel
	err := db.bun.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get file", err)
	}
	return &row, nil
}

func (db *DB) putFile(ctx context.Context, row *FileModel) error {
	err := retry.Do(func() error {
		_, err := db.bun.NewInsert().
			Model(row).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("name_key = EXCLUDED.name_key").
			Set("kind = EXCLUDED.kind").
			Set("type = EXCLUDED.type").
			Set("size = EXCLUDED.size").
			Set("updated_at = EXCLUDED.updated_at").
			Set("enc = EXCLUDED.enc").
			Set("iv = EXCLUDED.iv").
			Set("blob = EXCLUDED.blob").
			Exec(ctx)
		return err
	}, writeRetryOptions(ctx)...)
	if err != nil {
		return unavailable("put file", err)
	}
	return nil
}

func (db *DB) deleteFile(ctx context.Context, id string) (bool, error) {
	res, err := db.bun.NewDelete().
		Model((*FileModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, unavailable("delete file", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetSetting returns the value stored under key and whether it exists.
func (db *DB) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var row MetaModel
	err := db.bun.NewSelect().
		Model(&row).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get setting", err)
	}
	return row.Value, true, nil
}

// SetSetting upserts a value.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	err := retry.Do(func() error {
		_, err := db.bun.NewInsert().
			Model(&MetaModel{Key: key, Value: value}).
			On("CONFLICT (key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		return err
	}, writeRetryOptions(ctx)...)
	if err != nil {
		return unavailable("set setting", err)
	}
	return nil
}

// writeRetryOptions retries transient lock contention with linear backoff.
func writeRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(300 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isDatabaseLocked),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

func isDatabaseLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func unavailable(op string, err error) error {
	return fmt.Errorf("vfs: %s: %w: %w", op, apperr.ErrStorageUnavailable, err)
}
