// Package token issues, validates and rotates the signed bearer tokens the
// gateway accepts. Tokens are self-contained HS256 JWTs carrying a
// token_type discriminator; refresh tokens are single-use and their ids are
// tracked in a revocation store until they would have expired anyway.
package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"edugate.org/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Identity is the resolved subject of a validated token. It lives only for
// the duration of one request.
type Identity struct {
	ID        string
	Role      string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Pair bundles a freshly issued access/refresh token couple.
type Pair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Claims is the JWT payload used for both token types. Role and email are
// merged into access tokens only.
type Claims struct {
	TokenType string `json:"token_type"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared secret.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    RevocationStore
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithRevocationStore replaces the in-memory revocation list, e.g. with the
// Redis-backed store when the gateway runs as multiple instances.
func WithRevocationStore(store RevocationStore) Option {
	return func(s *Service) {
		if store != nil {
			s.revoked = store
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service. The signing secret is required.
func NewService(secret string, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	s := &Service{
		secret:     []byte(secret),
		issuer:     "edugate",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		revoked:    NewMemoryRevocations(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// Issue produces a new token pair for the identity. Role and email claims go
// into the access token; the refresh token carries only the subject and a
// fresh token id.
func (s *Service) Issue(identity Identity) (Pair, error) {
	userID := strings.TrimSpace(identity.ID)
	if userID == "" {
		return Pair{}, errors.New("token: identity id is required")
	}
	now := s.now().UTC()

	access, err := s.sign(Claims{
		TokenType: typeAccess,
		Role:      identity.Role,
		Email:     identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        ids.New(),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	refresh, err := s.sign(Claims{
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			ID:        ids.New(),
		},
	})
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		IssuedAt:     now,
	}, nil
}

// Validate verifies an access token and returns the resolved identity.
// Refresh tokens presented here fail with ErrMalformed.
func (s *Service) Validate(tokenString string) (Identity, error) {
	claims, err := s.parse(tokenString, typeAccess)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:        claims.Subject,
		Role:      claims.Role,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. Revoking the presented
// token's id is a single test-and-set against the store, so of any number
// of concurrent rotations with the same token exactly one wins; the rest
// fail with ErrRevoked.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return Pair{}, err
	}
	already, err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now()))
	if err != nil {
		return Pair{}, err
	}
	if already {
		return Pair{}, ErrRevoked
	}
	return s.Issue(Identity{ID: claims.Subject})
}

// Revoke marks a token id revoked for ttl. Used on logout; revoking an
// already-revoked id is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return errors.New("token: token id is required")
	}
	if ttl <= 0 {
		return nil
	}
	_, err := s.revoked.Revoke(ctx, tokenID, ttl)
	return err
}

// IsRevoked reports whether a token id is on the revocation list.
func (s *Service) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.revoked.IsRevoked(ctx, tokenID)
}

func (s *Service) sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (s *Service) parse(tokenString, wantType string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMalformed
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrSignature
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != wantType {
		return nil, ErrMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformed
	}
	if claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignature
	default:
		return ErrMalformed
	}
}
