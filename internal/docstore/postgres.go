package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresBackend struct {
	pool *pgxpool.Pool
	d    dialect
}

// OpenPostgres connects to dsn, pings it and creates the documents table.
func OpenPostgres(ctx context.Context, dsn string) (Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	b := &postgresBackend{pool: pool, d: postgresDialect}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *postgresBackend) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE(collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_collection ON documents(collection, seq)`,
	}
	for _, m := range migrations {
		if _, err := b.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (b *postgresBackend) Get(ctx context.Context, collection, id string) (Doc, error) {
	query, args, err := b.d.getDoc(collection, id)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.pool.QueryRow(ctx, query, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return unmarshalDoc(data)
}

func (b *postgresBackend) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	query, args, err := b.d.selectDocs(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		d, err := unmarshalDoc(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (b *postgresBackend) Create(ctx context.Context, collection, id string, d Doc) error {
	data, err := marshalDoc(d)
	if err != nil {
		return err
	}
	query, args, err := b.d.insertDoc(collection, id, data, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := b.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (b *postgresBackend) Set(ctx context.Context, collection, id string, d Doc) error {
	data, err := marshalDoc(d)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = b.pool.Exec(ctx, `INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		collection, id, string(data), now)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (b *postgresBackend) Update(ctx context.Context, collection, id string, fields Doc) (Doc, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	current, err := unmarshalDoc(data)
	if err != nil {
		return nil, err
	}

	next := merge(current, fields)
	raw, err := marshalDoc(next)
	if err != nil {
		return nil, err
	}
	query, args, err := b.d.updateDoc(collection, id, raw, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (b *postgresBackend) Delete(ctx context.Context, collection, id string) error {
	query, args, err := b.d.deleteDoc(collection, id)
	if err != nil {
		return err
	}
	if _, err := b.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
