package auth

import (
	"context"

	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// ContextIdentity resolves the caller's username from the principal that
// AuthMiddleware placed in the request context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUsername(ctx context.Context) (string, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.Username == "" {
		return "", apperrors.NewAuthContextError("no authenticated principal in request context")
	}
	return p.Username, nil
}
