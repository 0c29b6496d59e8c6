package service

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/events"
)

// AuditService writes an audit line for every user lifecycle event.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	recorded   atomic.Int64
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserCreated, a.handle)
	a.dispatcher.Subscribe(events.EventUserUpdated, a.handle)
	a.dispatcher.Subscribe(events.EventUserDeleted, a.handle)
	a.dispatcher.Subscribe(events.EventAdminCredentialsReset, a.handleAdminReset)
}

// Recorded returns the number of audit lines written.
func (a *AuditService) Recorded() int64 {
	return a.recorded.Load()
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.String("actor", event.Actor),
		zap.Time("at", event.Timestamp),
	}
	if p, ok := event.Payload.(events.UserChangedPayload); ok {
		fields = append(fields,
			zap.Strings("roles", p.Roles),
			zap.Bool("account_locked", p.AccountLocked),
			zap.Bool("password_changed", p.PasswordChanged))
	}
	a.logger.Info(string(event.Type), fields...)
	a.recorded.Add(1)
	return nil
}

func (a *AuditService) handleAdminReset(_ context.Context, event events.Event) error {
	cleared := false
	if p, ok := event.Payload.(events.AdminCredentialsResetPayload); ok {
		cleared = p.GateCleared
	}
	if cleared {
		a.logger.Info(string(event.Type), zap.String("event_id", event.ID), zap.String("subject", event.Subject))
	} else {
		a.logger.Warn(string(event.Type)+"_incomplete",
			zap.String("event_id", event.ID), zap.String("subject", event.Subject), zap.Bool("gate_cleared", false))
	}
	a.recorded.Add(1)
	return nil
}
