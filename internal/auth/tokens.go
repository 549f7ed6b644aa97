package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the payload carried by every issued token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role      `json:"role"`
	Type TokenType `json:"type"`
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	Secret     string
	Algorithm  string // HS256, HS384 or HS512
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenPair is the access/refresh pair returned by login-like flows.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
}

// TokenCodec signs and verifies bearer tokens with a single shared secret.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec validates cfg and returns a codec. Zero TTLs fall back to
// the defaults; an empty algorithm means HS256.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, alg)
	}

	c := &TokenCodec{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if c.accessTTL <= 0 {
		c.accessTTL = DefaultAccessTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = DefaultRefreshTTL
	}
	return c, nil
}

// SetClock replaces the codec's time source. Intended for tests.
func (c *TokenCodec) SetClock(now func() time.Time) {
	c.now = now
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess signs a short-lived access token for subject.
func (c *TokenCodec) IssueAccess(subject string, role Role) (string, error) {
	return c.issue(subject, role, TokenAccess, c.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for subject.
func (c *TokenCodec) IssueRefresh(subject string, role Role) (string, error) {
	return c.issue(subject, role, TokenRefresh, c.refreshTTL)
}

// IssuePair signs a fresh access and refresh token bound to user.
func (c *TokenCodec) IssuePair(user *User) (*TokenPair, error) {
	access, err := c.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := c.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: c.accessTTL}, nil
}

func (c *TokenCodec) issue(subject string, role Role, typ TokenType, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
		Type: typ,
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of a token and returns its
// claims. Expired tokens yield ErrTokenExpired; every other failure
// yields ErrTokenInvalid.
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	if claims.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrTokenInvalid)
	}

	return claims, nil
}

// VerifyAccess returns the claims of a valid access token, or nil.
func (c *TokenCodec) VerifyAccess(tokenString string) *Claims {
	return c.verifyType(tokenString, TokenAccess)
}

// VerifyRefresh returns the claims of a valid refresh token, or nil.
func (c *TokenCodec) VerifyRefresh(tokenString string) *Claims {
	return c.verifyType(tokenString, TokenRefresh)
}

func (c *TokenCodec) verifyType(tokenString string, want TokenType) *Claims {
	claims, err := c.Decode(tokenString)
	if err != nil || claims.Type != want {
		return nil
	}
	return claims
}
