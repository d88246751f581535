package auth

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/castlemilk/pointsledger/internal/model"
)

// Request headers understood by the interceptors.
const (
	AuthorizationHeader     = "Authorization"
	ImpersonateHeader       = "X-Debug-Impersonate-User"
	SchedulerSecretHeader   = "X-Scheduler-Secret"
	localDevUserID          = "local-dev-user"
	impersonatedEmailDomain = "@debug.local"
)

// resolver attaches an identity to ctx or refuses the call.
type resolver func(ctx context.Context, procedure string, header http.Header) (context.Context, error)

// Interceptor applies a resolver to unary calls and to the handler side of
// streaming calls. Client-side streams pass through untouched.
type Interceptor struct {
	resolve resolver
}

var _ connect.Interceptor = (*Interceptor)(nil)

func (i *Interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := i.resolve(ctx, req.Spec().Procedure, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *Interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *Interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := i.resolve(ctx, conn.Spec().Procedure, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// AuthInterceptor verifies the bearer token on every non-public procedure.
// Procedures listed in optional run without claims when no Authorization
// header is sent; their handlers decide what an anonymous call may do.
func AuthInterceptor(verifier TokenVerifier, optional ...string) *Interceptor {
	optionalSet := make(map[string]bool, len(optional))
	for _, p := range optional {
		optionalSet[p] = true
	}

	return &Interceptor{resolve: func(ctx context.Context, procedure string, header http.Header) (context.Context, error) {
		if isPublicEndpoint(procedure) {
			return ctx, nil
		}
		// Already resolved by the debug interceptor.
		if _, ok := GetUserClaims(ctx); ok {
			return ctx, nil
		}

		authHeader := header.Get(AuthorizationHeader)
		if authHeader == "" {
			if optionalSet[procedure] {
				return ctx, nil
			}
			return nil, connect.NewError(connect.CodeUnauthenticated, model.NoActiveSession())
		}

		token, err := ExtractTokenFromHeader(authHeader)
		if err != nil {
			return nil, connect.NewError(connect.CodeUnauthenticated, model.NoActiveSessionCause(err))
		}

		claims, err := verifier.VerifyToken(ctx, token)
		if err != nil {
			return nil, connect.NewError(connect.CodeUnauthenticated, model.NoActiveSessionCause(err))
		}

		return withUserClaims(ctx, claims), nil
	}}
}

// DebugAuthInterceptor creates an interceptor that allows impersonation via header
// ONLY use this in development - never in production!
func DebugAuthInterceptor(skipAuth bool) *Interceptor {
	return &Interceptor{resolve: func(ctx context.Context, _ string, header http.Header) (context.Context, error) {
		if !skipAuth {
			return ctx, nil
		}
		if uid := header.Get(ImpersonateHeader); uid != "" {
			ctx = withUserClaims(ctx, &UserClaims{
				UID:   uid,
				Email: uid + impersonatedEmailDomain,
			})
		}
		return ctx, nil
	}}
}

// isPublicEndpoint checks if an endpoint should be accessible without authentication
func isPublicEndpoint(procedure string) bool {
	switch procedure {
	case "/health", "/ping":
		return true
	}
	return false
}

// Context keys
type contextKey string

const userClaimsKey contextKey = "user_claims"

// withUserClaims adds user claims to the context
func withUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// WithUserClaims is the exported version for testing purposes
func WithUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return withUserClaims(ctx, claims)
}

// GetUserClaims extracts user claims from context
func GetUserClaims(ctx context.Context) (*UserClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*UserClaims)
	return claims, ok && claims != nil
}

// GetUserID is a convenience function to get the user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	if claims, ok := GetUserClaims(ctx); ok {
		return claims.UID, true
	}
	return "", false
}
