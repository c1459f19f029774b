package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/fendi147258369-dot/omnisafe-web/backend/pkg/database"
)

const storageTable = "client_storage"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps values in the client_storage table.
type PostgresStore struct {
	logger     *slog.Logger
	db         tx.DBGetter
	transactor *tx.Transactor
	now        func() time.Time
}

// NewPostgresStore creates a store over an open pool.
func NewPostgresStore(logger *slog.Logger, pg *database.Postgres) *PostgresStore {
	return &PostgresStore{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
		now:        time.Now,
	}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := psql.Select("value", "expires_at").
		From(storageTable).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var (
		value     []byte
		expiresAt *time.Time
	)
	err = s.db(ctx).QueryRow(ctx, query, args...).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if isExpired(expiresAt, s.now()) {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	query, args, err := psql.Insert(storageTable).
		Columns("key", "value", "expires_at", "updated_at").
		Values(key, value, expiresAt(now, ttl), now).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	if _, err = s.db(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes all keys in one transaction.
func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, key := range keys {
			query, args, err := psql.Delete(storageTable).Where(sq.Eq{"key": key}).ToSql()
			if err != nil {
				return fmt.Errorf("failed to build delete: %w", err)
			}
			if _, err = s.db(ctx).Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	query, args, err := psql.Delete(storageTable).
		Where(sq.LtOrEq{"expires_at": s.now()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sweep: %w", err)
	}

	tag, err := s.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
