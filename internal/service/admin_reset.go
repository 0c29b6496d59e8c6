package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// CredentialUpdater loads an existing user and applies new credential material to it.
type CredentialUpdater interface {
	GetUser(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, candidate domain.User) (*domain.User, error)
}

// ResetStatusUpdater completes the first-login reset transition.
type ResetStatusUpdater interface {
	UpdateResetStatus(ctx context.Context) (bool, error)
}

// AdminResetService runs the administrator's first-login credential reset.
type AdminResetService struct {
	users       CredentialUpdater
	gate        ResetStatusUpdater
	adminName   string
	adminDomain string
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewAdminResetService constructs the service for the administrator adminName@adminDomain.
func NewAdminResetService(users CredentialUpdater, gate ResetStatusUpdater, adminName, adminDomain string, dispatcher events.Dispatcher, logger *zap.Logger) *AdminResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminResetService{
		users:       users,
		gate:        gate,
		adminName:   adminName,
		adminDomain: adminDomain,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// ResetAdminCredsForFirstLogin replaces the administrator password and then clears
// the reset gate. Roles and the lock flag of the stored record are kept. The gate is not touched when the update fails. When the gate
// update fails the new credentials stay in effect and the gate error is returned.
func (s *AdminResetService) ResetAdminCredsForFirstLogin(ctx context.Context, candidate domain.User) error {
	candidate.Name = strings.TrimSpace(candidate.Name)
	candidate.Domain = strings.TrimSpace(candidate.Domain)
	if candidate.Name == "" {
		candidate.Name = s.adminName
	}
	if candidate.Domain == "" {
		name, userDomain := domain.SplitName(candidate.Name)
		if userDomain == "" {
			userDomain = s.adminDomain
		}
		candidate.Name, candidate.Domain = name, userDomain
	}
	adminFQN := domain.QualifyName(s.adminName, s.adminDomain)
	if fqn := candidate.FullyQualifiedName(); fqn != adminFQN {
		return apperrors.NewValidationError("only the administrator account can be reset here", map[string]any{"user": fqn})
	}
	if candidate.Password == "" {
		return apperrors.NewValidationError("a new password is required", map[string]any{"field": "password"})
	}

	current, err := s.users.GetUser(ctx, adminFQN)
	if err != nil {
		return err
	}
	update := *current
	update.Password = candidate.Password
	if _, err := s.users.UpdateUser(ctx, update); err != nil {
		return err
	}

	if _, err := s.gate.UpdateResetStatus(ctx); err != nil {
		s.logger.Error("admin credentials changed but reset gate was not cleared",
			zap.String("user", adminFQN), zap.Error(err))
		s.publish(ctx, adminFQN, false)
		return err
	}

	s.logger.Info("admin first-login reset completed", zap.String("user", adminFQN))
	s.publish(ctx, adminFQN, true)
	return nil
}

func (s *AdminResetService) publish(ctx context.Context, adminFQN string, cleared bool) {
	if s.dispatcher == nil {
		return
	}
	event := events.NewEvent(events.EventAdminCredentialsReset, adminFQN, adminFQN,
		events.AdminCredentialsResetPayload{GateCleared: cleared})
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
