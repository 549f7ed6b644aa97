package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Role   Role
	User   *User
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached to ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// UserLookup is the subset of UserRepository the Authenticator needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// Authenticator resolves an Authorization header to an active user. It is
// the single identity-resolution path for both the request middleware and
// handlers that require a caller.
type Authenticator struct {
	codec *TokenCodec
	users UserLookup
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(codec *TokenCodec, users UserLookup) *Authenticator {
	return &Authenticator{codec: codec, users: users}
}

// Authenticate returns the user named by a valid bearer access token whose
// subject is an active account. A missing or invalid token, an unknown
// subject and an inactive account all yield (nil, nil); the reason is not
// exposed. A non-nil error means the user lookup itself failed.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Identity, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, nil
	}

	claims := a.codec.VerifyAccess(token)
	if claims == nil {
		return nil, nil
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving token subject: %w", err)
	}
	if !user.IsActive {
		return nil, nil
	}

	return &Identity{UserID: user.ID, Role: user.Role, User: user}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
