package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteBackend struct {
	db *sql.DB
	d  dialect
}

// OpenSQLite opens (creating if needed) dataDir/sprintboard.db.
func OpenSQLite(dataDir string) (Backend, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sprintboard.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps read-modify-write
	// updates from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{db: db, d: sqliteDialect}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *sqliteBackend) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_collection ON documents(collection, seq)`,
	}

	for _, m := range migrations {
		if _, err := b.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (b *sqliteBackend) Get(ctx context.Context, collection, id string) (Doc, error) {
	query, args, err := b.d.getDoc(collection, id)
	if err != nil {
		return nil, err
	}
	var data string
	err = b.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return unmarshalDoc([]byte(data))
}

func (b *sqliteBackend) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	query, args, err := b.d.selectDocs(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		d, err := unmarshalDoc([]byte(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (b *sqliteBackend) Create(ctx context.Context, collection, id string, d Doc) error {
	data, err := marshalDoc(d)
	if err != nil {
		return err
	}
	query, args, err := b.d.insertDoc(collection, id, data, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Set(ctx context.Context, collection, id string, d Doc) error {
	data, err := marshalDoc(d)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = b.db.ExecContext(ctx, `INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(data), now, now)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Update(ctx context.Context, collection, id string, fields Doc) (Doc, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query, args, err := b.d.getDoc(collection, id)
	if err != nil {
		return nil, err
	}
	var data string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	current, err := unmarshalDoc([]byte(data))
	if err != nil {
		return nil, err
	}

	next := merge(current, fields)
	raw, err := marshalDoc(next)
	if err != nil {
		return nil, err
	}
	query, args, err = b.d.updateDoc(collection, id, raw, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (b *sqliteBackend) Delete(ctx context.Context, collection, id string) error {
	query, args, err := b.d.deleteDoc(collection, id)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
