package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

func TestCreateUser_DefaultsDomain(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)

	user, err := svc.CreateUser(context.Background(), domain.User{Name: "user1"})
	require.NoError(t, err)
	assert.Equal(t, "user1", user.Name)
	assert.Equal(t, testDomain, user.Domain)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, []string{}, user.Roles)
}

func TestCreateUser_SplitsQualifiedName(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)

	user, err := svc.CreateUser(context.Background(), domain.User{Name: "ops@corp.example"})
	require.NoError(t, err)
	assert.Equal(t, "ops", user.Name)
	assert.Equal(t, "corp.example", user.Domain)

	_, err = svc.CreateUser(context.Background(), domain.User{Name: "ops@corp.example", Domain: "other"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCreateUser_RejectsAmbiguousQualifiedNames(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{Name: "a", Domain: "b@c"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	_, err = svc.CreateUser(ctx, domain.User{Name: "a@b@c"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUpdateUser_AmbiguousKeyDoesNotRenameRecord(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{Name: "a", Domain: "c", Roles: []string{"ops"}})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, domain.User{Name: "a@b@c", Roles: []string{"root"}})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	_, err = svc.UpdateUser(ctx, domain.User{Name: "a", Domain: "b@c", Roles: []string{"root"}})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = svc.GetUser(ctx, "a@b@c")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	err = svc.DeleteUsers(ctx, []string{"a@b@c"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "a", users[0].Name)
	assert.Equal(t, "c", users[0].Domain)
	assert.Equal(t, []string{"ops"}, users[0].Roles)
}

func TestCreateUser_RequiresName(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)

	_, err := svc.CreateUser(context.Background(), domain.User{Name: "  "})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCreateUser_HashesPassword(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	svc := newTestUserService(repo, fakeIdentity{}, nil)

	user, err := svc.CreateUser(context.Background(), domain.User{Name: "user1", Password: "pw"})
	require.NoError(t, err)
	assert.Empty(t, user.Password)
	assert.Equal(t, "hashed:pw", user.PasswordHash)
}

func TestCreateUser_Duplicate(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	svc := newTestUserService(repo, fakeIdentity{}, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{Name: "user1", Roles: []string{"viewer"}})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, domain.User{Name: "user1", Domain: testDomain, Roles: []string{"admin"}})
	require.ErrorIs(t, err, apperrors.ErrDuplicateUser)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, "user1@mangle.local", de.Details["user"])

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, []string{"viewer"}, users[0].Roles)
}

func TestCreateUser_SameNameOtherDomain(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{Name: "user1"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, domain.User{Name: "user1", Domain: "corp.example"})
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestCreateUser_ConcurrentSingleWinner(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	svc := newTestUserService(repo, fakeIdentity{}, nil)

	const workers = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateUser(context.Background(), domain.User{Name: "racer"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperrors.ErrDuplicateUser):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, duplicates)
	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUpdateUser_GhostIsNotCreated(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	_, err := svc.UpdateUser(ctx, domain.User{Name: "ghost"})
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.Equal(t, http.StatusNotFound, apperrors.ToDomainError(err).HTTPStatus)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUpdateUser_KeepsHashAndIdentity(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, domain.User{Name: "user1", Password: "pw"})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, domain.User{ID: "forged", Name: "user1", Roles: []string{"ops"}, AccountLocked: true})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "hashed:pw", updated.PasswordHash)
	assert.Equal(t, []string{"ops"}, updated.Roles)
	assert.True(t, updated.AccountLocked)

	updated, err = svc.UpdateUser(ctx, domain.User{Name: "user1", Password: "new"})
	require.NoError(t, err)
	assert.Equal(t, "hashed:new", updated.PasswordHash)
}

func TestUpdateUser_AdminCannotBeLocked(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{Name: "admin", Password: "pw", Roles: []string{"admin"}})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, domain.User{Name: "admin@" + testDomain, Roles: []string{"admin"}, AccountLocked: true})
	require.ErrorIs(t, err, apperrors.NewForbidden(""))

	admin, err := svc.GetUser(ctx, "admin")
	require.NoError(t, err)
	assert.False(t, admin.AccountLocked)

	updated, err := svc.UpdateUser(ctx, domain.User{Name: "admin", Password: "new", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.Equal(t, "hashed:new", updated.PasswordHash)
}

func TestRoundTrip(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, domain.User{Name: "user1", Password: "pw", Roles: []string{"viewer"}})
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, *created, users[0])

	updated, err := svc.UpdateUser(ctx, domain.User{Name: "user1", Roles: []string{"ops"}})
	require.NoError(t, err)

	fetched, err := svc.GetUser(ctx, "user1@mangle.local")
	require.NoError(t, err)
	assert.Equal(t, *updated, *fetched)
}

func TestGetCurrentUser(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	ctx := context.Background()
	seed := newTestUserService(repo, fakeIdentity{}, nil)
	_, err := seed.CreateUser(ctx, domain.User{Name: "admin"})
	require.NoError(t, err)

	for _, username := range []string{"admin", "admin@mangle.local"} {
		svc := newTestUserService(repo, fakeIdentity{username: username}, nil)
		user, err := svc.GetCurrentUser(ctx)
		require.NoError(t, err, username)
		assert.Equal(t, "admin@mangle.local", user.FullyQualifiedName())
	}
}

func TestGetCurrentUser_MissingRecordIsIntegrityError(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{username: "nobody"}, nil)

	_, err := svc.GetCurrentUser(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, true, de.Details["integrity"])
}

func TestGetCurrentUser_NoIdentity(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)

	_, err := svc.GetCurrentUser(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrAuthContext)

	svc = newTestUserService(repository.NewMemoryUserRepository(),
		fakeIdentity{err: apperrors.NewAuthContextError("no principal")}, nil)
	_, err = svc.GetCurrentUser(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrAuthContext)

	svc = newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{username: "a@b@c"}, nil)
	_, err = svc.GetCurrentUser(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrAuthContext)
}

func TestStoreFailuresBecomeStoreErrors(t *testing.T) {
	svc := newTestUserService(brokenUserRepo{err: errors.New("connection refused")}, fakeIdentity{username: "admin"}, nil)
	ctx := context.Background()

	_, err := svc.ListUsers(ctx)
	assert.ErrorIs(t, err, apperrors.ErrStore)
	_, err = svc.CreateUser(ctx, domain.User{Name: "user1"})
	assert.ErrorIs(t, err, apperrors.ErrStore)
	_, err = svc.UpdateUser(ctx, domain.User{Name: "user1"})
	assert.ErrorIs(t, err, apperrors.ErrStore)
	_, err = svc.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, apperrors.ErrStore)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.ToDomainError(err).HTTPStatus)
}

func TestCancelledContextLeavesNoRecord(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	svc := newTestUserService(repo, fakeIdentity{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.CreateUser(ctx, domain.User{Name: "user1"})
	require.ErrorIs(t, err, apperrors.ErrStore)
	assert.ErrorIs(t, err, context.Canceled)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDeleteUsers(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	svc := newTestUserService(repo, fakeIdentity{}, nil)
	ctx := context.Background()

	for _, name := range []string{"admin", "user1", "user2"} {
		_, err := svc.CreateUser(ctx, domain.User{Name: name})
		require.NoError(t, err)
	}

	err := svc.DeleteUsers(ctx, []string{"user1", "admin@mangle.local"})
	assert.ErrorIs(t, err, apperrors.NewForbidden(""))
	users, _ := svc.ListUsers(ctx)
	assert.Len(t, users, 3)

	require.NoError(t, svc.DeleteUsers(ctx, []string{"user1", "user2@mangle.local"}))
	users, _ = svc.ListUsers(ctx)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Name)

	err = svc.DeleteUsers(ctx, []string{"user1"})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	err = svc.DeleteUsers(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestEnsureUser(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	ctx := context.Background()

	first, created, err := svc.EnsureUser(ctx, domain.User{Name: "admin", Password: "admin"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.EnsureUser(ctx, domain.User{Name: "admin", Password: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hashed:admin", second.PasswordHash)
}

func TestUserEventsArePublished(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{username: "admin@mangle.local"}, dispatcher)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{Name: "user1"})
	require.NoError(t, err)
	_, err = svc.UpdateUser(ctx, domain.User{Name: "user1", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUsers(ctx, []string{"user1"}))
	_, err = svc.CreateUser(ctx, domain.User{Name: "user1", Domain: testDomain})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, domain.User{Name: "user1"})
	require.Error(t, err)

	assert.Equal(t, "user_created,user_updated,user_deleted,user_created", joinTypes(dispatcher.types()))
	assert.Equal(t, "admin@mangle.local", dispatcher.events[0].Actor)
	assert.Equal(t, "user1@mangle.local", dispatcher.events[0].Subject)
}

func TestAdminFQN(t *testing.T) {
	svc := newTestUserService(repository.NewMemoryUserRepository(), fakeIdentity{}, nil)
	assert.Equal(t, "admin@mangle.local", svc.AdminFQN())
}
