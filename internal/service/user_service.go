package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// DomainProvider supplies the domain assigned to users created without one.
type DomainProvider interface {
	DefaultDomain() string
}

// StaticDomain is a DomainProvider backed by configuration.
type StaticDomain string

func (d StaticDomain) DefaultDomain() string { return string(d) }

// IdentityResolver resolves the authenticated caller of the current request.
type IdentityResolver interface {
	CurrentUsername(ctx context.Context) (string, error)
}

// PasswordHasher hashes and verifies credential material.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hashed, plain string) error
}

// UserDependencies encapsulates collaborators of the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Domains    DomainProvider
	Identity   IdentityResolver
	Hasher     PasswordHasher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// AdminName is the built-in administrator; it lives in the default domain.
	AdminName string
}

// UserService owns user record lifecycle and identity invariants.
type UserService struct {
	users      repository.UserRepository
	domains    DomainProvider
	identity   IdentityResolver
	hasher     PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
	adminName  string
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		domains:    deps.Domains,
		identity:   deps.Identity,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		adminName:  deps.AdminName,
	}
}

// AdminFQN returns the fully-qualified name of the built-in administrator.
func (s *UserService) AdminFQN() string {
	return domain.QualifyName(s.adminName, s.domains.DefaultDomain())
}

// ListUsers returns every stored user.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("list", "", err)
	}
	return users, nil
}

// CreateUser stores a new user. An empty domain resolves to the default domain.
func (s *UserService) CreateUser(ctx context.Context, candidate domain.User) (*domain.User, error) {
	user, err := s.normalize(candidate)
	if err != nil {
		return nil, err
	}
	fqn := user.FullyQualifiedName()

	existing, err := s.users.Find(ctx, user.Name, user.Domain)
	if err != nil {
		return nil, apperrors.NewStoreError("find", fqn, err)
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateUser(fqn)
	}

	if user.Password != "" {
		hash, err := s.hasher.Hash(user.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	user.Password = ""
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	// The store enforces uniqueness on insert; the Find above only avoids the write.
	if err := s.users.Insert(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperrors.NewDuplicateUser(fqn)
		}
		return nil, apperrors.NewStoreError("insert", fqn, err)
	}

	s.logger.Info("user created", zap.String("user", fqn))
	s.publish(ctx, events.EventUserCreated, fqn, events.UserChangedPayload{
		Roles:           user.Roles,
		AccountLocked:   user.AccountLocked,
		PasswordChanged: user.PasswordHash != "",
	})
	return &user, nil
}

// UpdateUser overwrites the mutable fields of an existing user. It never creates.
// An empty password keeps the stored hash. The built-in administrator cannot be
// locked through an update.
func (s *UserService) UpdateUser(ctx context.Context, candidate domain.User) (*domain.User, error) {
	user, err := s.normalize(candidate)
	if err != nil {
		return nil, err
	}
	fqn := user.FullyQualifiedName()

	existing, err := s.users.Find(ctx, user.Name, user.Domain)
	if err != nil {
		return nil, apperrors.NewStoreError("find", fqn, err)
	}
	if existing == nil {
		return nil, apperrors.NewUserNotFound(fqn)
	}
	if user.AccountLocked && !existing.AccountLocked && fqn == s.AdminFQN() {
		return nil, apperrors.NewForbidden("the built-in administrator cannot be locked")
	}

	passwordChanged := user.Password != ""
	if passwordChanged {
		hash, err := s.hasher.Hash(user.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	} else {
		user.PasswordHash = existing.PasswordHash
	}
	user.Password = ""
	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFound(fqn)
		}
		return nil, apperrors.NewStoreError("update", fqn, err)
	}

	s.logger.Info("user updated", zap.String("user", fqn), zap.Bool("password_changed", passwordChanged))
	s.publish(ctx, events.EventUserUpdated, fqn, events.UserChangedPayload{
		Roles:           user.Roles,
		AccountLocked:   user.AccountLocked,
		PasswordChanged: passwordChanged,
	})
	return &user, nil
}

// GetCurrentUser returns the record behind the authenticated caller. A caller
// without a record is an integrity failure.
func (s *UserService) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	username, err := s.identity.CurrentUsername(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthContext) {
			return nil, err
		}
		return nil, apperrors.NewAuthContextError(err.Error())
	}
	name, userDomain, err := s.qualify(username)
	if err != nil {
		return nil, apperrors.NewAuthContextError("authenticated username is malformed")
	}
	fqn := domain.QualifyName(name, userDomain)

	user, err := s.users.Find(ctx, name, userDomain)
	if err != nil {
		return nil, apperrors.NewStoreError("find", fqn, err)
	}
	if user == nil {
		s.logger.Error("authenticated user has no record", zap.String("user", fqn))
		return nil, apperrors.NewCurrentUserMissing(fqn)
	}
	return user, nil
}

// GetUser looks a user up by bare or fully-qualified name.
func (s *UserService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	name, userDomain, err := s.qualify(username)
	if err != nil {
		return nil, err
	}
	fqn := domain.QualifyName(name, userDomain)

	user, err := s.users.Find(ctx, name, userDomain)
	if err != nil {
		return nil, apperrors.NewStoreError("find", fqn, err)
	}
	if user == nil {
		return nil, apperrors.NewUserNotFound(fqn)
	}
	return user, nil
}

// DeleteUsers removes the named users in order. The built-in administrator is
// refused before anything is deleted.
func (s *UserService) DeleteUsers(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return apperrors.NewValidationError("at least one username is required", nil)
	}
	adminFQN := s.AdminFQN()
	keys := make([][2]string, 0, len(usernames))
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			return apperrors.NewValidationError("username must not be empty", nil)
		}
		name, userDomain, err := s.qualify(username)
		if err != nil {
			return err
		}
		if domain.QualifyName(name, userDomain) == adminFQN {
			return apperrors.NewForbidden("the built-in administrator cannot be deleted")
		}
		keys = append(keys, [2]string{name, userDomain})
	}

	for _, key := range keys {
		fqn := domain.QualifyName(key[0], key[1])
		if err := s.users.Delete(ctx, key[0], key[1]); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUserNotFound(fqn)
			}
			return apperrors.NewStoreError("delete", fqn, err)
		}
		s.logger.Info("user deleted", zap.String("user", fqn))
		s.publish(ctx, events.EventUserDeleted, fqn, nil)
	}
	return nil
}

// EnsureUser creates the user unless one with the same key already exists.
// It reports whether a record was created.
func (s *UserService) EnsureUser(ctx context.Context, candidate domain.User) (*domain.User, bool, error) {
	user, err := s.CreateUser(ctx, candidate)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, apperrors.ErrDuplicateUser) {
		return nil, false, err
	}
	normalized, nerr := s.normalize(candidate)
	if nerr != nil {
		return nil, false, nerr
	}
	existing, err := s.GetUser(ctx, normalized.FullyQualifiedName())
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// normalize validates the candidate key and fills in the default domain. Neither
// part of the key may contain "@", so every fully-qualified name splits back into
// exactly one (name, domain) pair.
func (s *UserService) normalize(candidate domain.User) (domain.User, error) {
	user := candidate
	user.Name = strings.TrimSpace(user.Name)
	user.Domain = strings.TrimSpace(user.Domain)
	if user.Name == "" {
		return user, apperrors.NewValidationError("user name is required", map[string]any{"field": "name"})
	}
	if strings.Contains(user.Domain, "@") {
		return user, apperrors.NewValidationError("domain must not contain '@'", map[string]any{"field": "domain"})
	}
	if strings.Contains(user.Name, "@") {
		if user.Domain != "" {
			return user, apperrors.NewValidationError("user name must not contain a domain when domain is set", map[string]any{"field": "name"})
		}
		user.Name, user.Domain = domain.SplitName(user.Name)
	}
	if err := checkKey(user.Name, user.Domain); err != nil {
		return user, err
	}
	if user.Domain == "" {
		user.Domain = s.domains.DefaultDomain()
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	return user, nil
}

// qualify splits a bare or fully-qualified username, defaulting the domain.
func (s *UserService) qualify(username string) (string, string, error) {
	name, userDomain := domain.SplitName(strings.TrimSpace(username))
	if err := checkKey(name, userDomain); err != nil {
		return "", "", err
	}
	if userDomain == "" {
		userDomain = s.domains.DefaultDomain()
	}
	return name, userDomain, nil
}

func checkKey(name, userDomain string) error {
	if name == "" {
		return apperrors.NewValidationError("user name is required", map[string]any{"field": "name"})
	}
	if strings.Contains(name, "@") {
		return apperrors.NewValidationError("user name must contain at most one '@'", map[string]any{"field": "name"})
	}
	if strings.Contains(userDomain, "@") {
		return apperrors.NewValidationError("domain must not contain '@'", map[string]any{"field": "domain"})
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, subject string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	actor := ""
	if s.identity != nil {
		actor, _ = s.identity.CurrentUsername(ctx)
	}
	if err := s.dispatcher.Publish(ctx, events.NewEvent(eventType, subject, actor, payload)); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
