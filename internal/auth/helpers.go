package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"connectrpc.com/connect"
	"github.com/castlemilk/pointsledger/internal/model"
)

// RequireAuth extracts user claims from context or returns an unauthenticated
// error carrying the NoActiveSession kind.
func RequireAuth(ctx context.Context) (*UserClaims, error) {
	claims, ok := GetUserClaims(ctx)
	if !ok || claims.UID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, model.NoActiveSession())
	}
	return claims, nil
}

// RequireUserAccess verifies the authenticated user matches the requested user ID
func RequireUserAccess(ctx context.Context, requestedUserID string) (*UserClaims, error) {
	claims, err := RequireAuth(ctx)
	if err != nil {
		return nil, err
	}

	if requestedUserID != "" && requestedUserID != claims.UID {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("cannot access another user's resources"))
	}

	return claims, nil
}

// CheckSchedulerSecret reports whether got matches the configured scheduler
// secret. An unset secret never matches.
func CheckSchedulerSecret(configured, got string) bool {
	if configured == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(got)) == 1
}

// NormalizePageSize returns a valid page size (default 100, max 1000)
func NormalizePageSize(pageSize int32) int32 {
	if pageSize <= 0 {
		return 100
	}
	if pageSize > 1000 {
		return 1000
	}
	return pageSize
}
