package auth

import (
	"context"
	"net/http"
)

// LocalDevInterceptor provides a mock user context for local development.
// An identity set by the debug interceptor is kept.
func LocalDevInterceptor() *Interceptor {
	return &Interceptor{resolve: func(ctx context.Context, procedure string, _ http.Header) (context.Context, error) {
		if isPublicEndpoint(procedure) {
			return ctx, nil
		}
		if _, ok := GetUserClaims(ctx); ok {
			return ctx, nil
		}

		return withUserClaims(ctx, &UserClaims{
			UID:         localDevUserID,
			Email:       "dev@localhost",
			DisplayName: "Local Dev User",
			Verified:    true,
		}), nil
	}}
}
