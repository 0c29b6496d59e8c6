package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// AuthService coordinates login flows.
type AuthService struct {
	users    repository.UserRepository
	domains  DomainProvider
	hasher   PasswordHasher
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Domains      DomainProvider
	Hasher       PasswordHasher
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    deps.UserRepo,
		domains:  deps.Domains,
		hasher:   deps.Hasher,
		tokenMgr: deps.TokenManager,
		logger:   logger,
	}
}

// Login authenticates a bare or fully-qualified username and issues a token
// whose subject is the fully-qualified name.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, domain.Token, error) {
	name, userDomain := domain.SplitName(strings.TrimSpace(username))
	if userDomain == "" {
		userDomain = s.domains.DefaultDomain()
	}
	if name == "" || password == "" {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	fqn := domain.QualifyName(name, userDomain)

	user, err := s.users.Find(ctx, name, userDomain)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewStoreError("find", fqn, err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.AccountLocked {
		s.logger.Warn("login refused for locked account", zap.String("user", fqn))
		return nil, domain.Token{}, apperrors.NewForbidden("account locked")
	}

	token, err := s.tokenMgr.GenerateToken(fqn)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
