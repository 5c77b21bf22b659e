package repositories

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "clipforge/internal/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the query surface the repositories need. *pgxpool.Pool and
// pgx.Tx both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the postgres backend for jobs and the video library.
type Store struct {
	*JobRepository
	*VideoRepository
	db *pgxpool.Pool
}

// Open connects, pings and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "postgres.connect", "failed to connect to PostgreSQL")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "postgres.ping", "failed to ping PostgreSQL")
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		JobRepository:   NewJobRepository(db),
		VideoRepository: NewVideoRepository(db),
		db:              db,
	}
}

// Migrate applies schema.sql. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return apperrors.Wrap(err, "postgres.migrate", "failed to apply schema")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
