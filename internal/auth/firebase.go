package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, idToken string) (*UserClaims, error)
}

// FirebaseAuth verifies Firebase ID tokens.
type FirebaseAuth struct {
	client *auth.Client
}

// UserClaims represents the authenticated user information
type UserClaims struct {
	UID         string
	Email       string
	DisplayName string
	Verified    bool
}

// NewFirebaseApp initializes the Firebase app shared by auth and messaging.
// When credentialsFile is empty the service account path is taken from the
// environment, falling back to default credentials on Cloud Run.
func NewFirebaseApp(ctx context.Context, credentialsFile string) (*firebase.App, error) {
	opts := []option.ClientOption{}

	if credentialsFile == "" {
		credentialsFile = getServiceAccountPath()
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %w", err)
	}
	return app, nil
}

// NewFirebaseAuth creates a new FirebaseAuth instance
func NewFirebaseAuth(ctx context.Context, app *firebase.App) (*FirebaseAuth, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %w", err)
	}

	return &FirebaseAuth{
		client: client,
	}, nil
}

// VerifyToken verifies a Firebase ID token and returns the user claims.
func (f *FirebaseAuth) VerifyToken(ctx context.Context, idToken string) (*UserClaims, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	return claimsFromToken(token.UID, token.Claims), nil
}

func claimsFromToken(uid string, raw map[string]interface{}) *UserClaims {
	verified, _ := raw["email_verified"].(bool)
	claims := &UserClaims{
		UID:      uid,
		Verified: verified,
	}
	if email, ok := raw["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := raw["name"].(string); ok {
		claims.DisplayName = name
	}
	return claims
}

// ExtractTokenFromHeader extracts the Bearer token from Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("authorization header must be Bearer token")
	}

	return parts[1], nil
}

// getServiceAccountPath returns the path to service account key file if available
func getServiceAccountPath() string {
	for _, envVar := range []string{
		"GOOGLE_APPLICATION_CREDENTIALS",
		"FIREBASE_SERVICE_ACCOUNT_KEY",
	} {
		if path := os.Getenv(envVar); path != "" {
			return path
		}
	}
	return ""
}

var _ TokenVerifier = (*FirebaseAuth)(nil)
