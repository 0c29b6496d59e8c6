package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/user-service/internal/domain"
)

// UserRepository defines persistence access for user records keyed by name and domain.
type UserRepository interface {
	// Find returns nil, nil when no user has the given name and domain.
	Find(ctx context.Context, name, userDomain string) (*domain.User, error)
	// Insert fails with ErrAlreadyExists when the key is taken. Timestamps are set on user.
	Insert(ctx context.Context, user *domain.User) error
	// Update overwrites mutable fields and fails with ErrNotFound when the key is absent.
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, name, userDomain string) error
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, domain, password_hash, roles, account_locked, created_at, updated_at`

func (r *userRepository) Find(ctx context.Context, name, userDomain string) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE name=$1 AND domain=$2`

	user, err := scanUser(r.db.QueryRow(ctx, query, name, userDomain))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Insert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, domain, password_hash, roles, account_locked)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Domain,
		user.PasswordHash,
		nonNilRoles(user.Roles),
		user.AccountLocked,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET password_hash=$1, roles=$2, account_locked=$3, updated_at=NOW()
        WHERE name=$4 AND domain=$5
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.PasswordHash,
		nonNilRoles(user.Roles),
		user.AccountLocked,
		user.Name,
		user.Domain,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users ORDER BY domain, name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) Delete(ctx context.Context, name, userDomain string) error {
	const query = `DELETE FROM users WHERE name=$1 AND domain=$2`

	cmd, err := r.db.Exec(ctx, query, name, userDomain)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Domain,
		&user.PasswordHash,
		&user.Roles,
		&user.AccountLocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nonNilRoles(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}
