package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/user-service/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It backs the service when no
// Postgres DSN is configured and in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
	nowF  func() time.Time
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]domain.User),
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryUserRepository) Find(ctx context.Context, name, userDomain string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[domain.QualifyName(name, userDomain)]
	if !ok {
		return nil, nil
	}
	out := cloneUser(u)
	return &out, nil
}

// Insert checks and writes under one lock so concurrent inserts of a key yield one winner.
func (r *MemoryUserRepository) Insert(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := user.FullyQualifiedName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return ErrAlreadyExists
	}
	now := r.nowF()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := cloneUser(*user)
	stored.Password = ""
	r.users[key] = stored
	return nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := user.FullyQualifiedName()

	r.mu.Lock()
	defer r.mu.Unlock()
	current, exists := r.users[key]
	if !exists {
		return ErrNotFound
	}
	user.ID = current.ID
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.nowF()
	stored := cloneUser(*user)
	stored.Password = ""
	r.users[key] = stored
	return nil
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	keys := make([]string, 0, len(r.users))
	for k := range r.users {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	users := make([]domain.User, 0, len(keys))
	for _, k := range keys {
		users = append(users, cloneUser(r.users[k]))
	}
	r.mu.RUnlock()
	return users, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, name, userDomain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := domain.QualifyName(name, userDomain)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; !exists {
		return ErrNotFound
	}
	delete(r.users, key)
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.Roles = slices.Clone(u.Roles)
	return u
}
