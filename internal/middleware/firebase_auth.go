package middleware

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/anonto42/career-hub/backend/internal/models"
)

// IDTokenVerifier is the part of *auth.Client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthenticator verifies Firebase ID tokens.
type FirebaseAuthenticator struct {
	verifier IDTokenVerifier
}

// NewFirebaseAuthenticator wraps a Firebase auth client.
func NewFirebaseAuthenticator(v IDTokenVerifier) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{verifier: v}
}

// Authenticate implements Authenticator.
func (a *FirebaseAuthenticator) Authenticate(ctx context.Context, idToken string) (*models.Identity, error) {
	token, err := a.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("middleware/FirebaseAuthenticate: %w", err)
	}
	return IdentityFromToken(token), nil
}

// IdentityFromToken reads uid, display name and sign-in time from a
// verified token. Tokens without auth_time fall back to their issue time.
func IdentityFromToken(token *auth.Token) *models.Identity {
	id := &models.Identity{UID: token.UID}
	switch {
	case token.AuthTime > 0:
		id.SignedInAt = time.Unix(token.AuthTime, 0)
	case token.IssuedAt > 0:
		id.SignedInAt = time.Unix(token.IssuedAt, 0)
	}
	if token.Expires > 0 {
		id.ExpiresAt = time.Unix(token.Expires, 0)
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id
}
