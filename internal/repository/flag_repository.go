package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// FlagRepository persists named boolean flags. Set must be a single atomic write.
type FlagRepository interface {
	// Get reports found=false when the flag was never written.
	Get(ctx context.Context, key string) (value bool, found bool, err error)
	Set(ctx context.Context, key string, value bool) error
}

type postgresFlagRepository struct {
	db DBTX
}

// NewPostgresFlagRepository stores flags as rows in the settings table.
func NewPostgresFlagRepository(db DBTX) FlagRepository {
	return &postgresFlagRepository{db: db}
}

func (r *postgresFlagRepository) Get(ctx context.Context, key string) (bool, bool, error) {
	const query = `SELECT value_json FROM settings WHERE key=$1`

	var raw string
	if err := r.db.QueryRow(ctx, query, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	v, err := parseBool(raw)
	if err != nil {
		return false, false, err
	}
	return v, true, nil
}

func (r *postgresFlagRepository) Set(ctx context.Context, key string, value bool) error {
	const query = `
        INSERT INTO settings (key, value_json) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value_json=EXCLUDED.value_json, updated_at=NOW()`

	_, err := r.db.Exec(ctx, query, key, strconv.FormatBool(value))
	return err
}

type redisFlagRepository struct {
	client redis.Cmdable
}

// NewRedisFlagRepository stores flags as plain string keys.
func NewRedisFlagRepository(client redis.Cmdable) FlagRepository {
	return &redisFlagRepository{client: client}
}

func (r *redisFlagRepository) Get(ctx context.Context, key string) (bool, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	v, err := parseBool(raw)
	if err != nil {
		return false, false, err
	}
	return v, true, nil
}

func (r *redisFlagRepository) Set(ctx context.Context, key string, value bool) error {
	return r.client.Set(ctx, key, strconv.FormatBool(value), 0).Err()
}

// MemoryFlagRepository keeps flags in process memory.
type MemoryFlagRepository struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryFlagRepository returns an empty flag store.
func NewMemoryFlagRepository() *MemoryFlagRepository {
	return &MemoryFlagRepository{flags: make(map[string]bool)}
}

func (r *MemoryFlagRepository) Get(ctx context.Context, key string) (bool, bool, error) {
	if err := ctx.Err(); err != nil {
		return false, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.flags[key]
	return v, ok, nil
}

func (r *MemoryFlagRepository) Set(ctx context.Context, key string, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[key] = value
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}
