package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-runner/internal/domain"
)

// KVStore keeps string values in the kv_store table.
type KVStore struct {
	pool *pgxpool.Pool
}

func NewKVStore(pool *pgxpool.Pool) *KVStore {
	return &KVStore{pool: pool}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// SetIfGreater relies on the row lock taken by ON CONFLICT; the WHERE clause sees the
// committed value, so concurrent writers serialize on the key.
func (s *KVStore) SetIfGreater(ctx context.Context, key string, value int) (int, bool, error) {
	if value > 0 {
		var stored string
		err := s.pool.QueryRow(ctx, `
			INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
			WHERE (CASE WHEN btrim(kv_store.value) ~ '^[0-9]{1,9}$' THEN btrim(kv_store.value)::int ELSE 0 END) < $3
			RETURNING value`,
			key, strconv.Itoa(value), value).Scan(&stored)
		if err == nil {
			return value, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("kv set-if-greater %s: %w", key, err)
		}
	}
	raw, _, err := s.Get(ctx, key)
	if err != nil {
		return 0, false, err
	}
	current, _ := domain.ParseScore(raw)
	return current, false, nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key=$1`, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
