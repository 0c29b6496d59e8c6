package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// ResetGate tracks whether the built-in administrator still owes a first-login
// credential reset. The flag is read from its store on every call; an absent
// flag means the reset is still pending.
type ResetGate struct {
	mu     sync.RWMutex
	flags  repository.FlagRepository
	key    string
	logger *zap.Logger
}

// NewResetGate builds a gate over the given flag store and key.
func NewResetGate(flags repository.FlagRepository, key string, logger *zap.Logger) *ResetGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetGate{flags: flags, key: key, logger: logger}
}

// ReadResetStatus reports whether the reset is still required.
func (g *ResetGate) ReadResetStatus(ctx context.Context) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	value, found, err := g.flags.Get(ctx, g.key)
	if err != nil {
		return false, apperrors.NewGateError("read", err)
	}
	if !found {
		return true, nil
	}
	return value, nil
}

// UpdateResetStatus marks the reset as done. Repeating it is harmless and
// still reports success.
func (g *ResetGate) UpdateResetStatus(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.flags.Set(ctx, g.key, false); err != nil {
		return false, apperrors.NewGateError("update", err)
	}
	g.logger.Info("admin password reset gate cleared", zap.String("key", g.key))
	return true, nil
}
