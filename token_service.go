package register

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens
	DefaultRefreshTokenTTL = 24 * time.Hour * 7
)

// TokenPair is an access plus refresh token minted together. Refresh
// responses reuse the pair shape with the original refresh token.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService mints, validates, refreshes and revokes JWT pairs.
type TokenService interface {
	IssuePair(identity Identity, scopes ...string) (*TokenPair, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	ValidateRefresh(ctx context.Context, tokenString string) (AuthClaims, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// TokenServiceOption customizes the token service.
type TokenServiceOption func(*TokenServiceImpl)

// WithAccessTokenTTL sets the access token lifetime.
func WithAccessTokenTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if ttl > 0 {
			ts.accessTTL = ttl
		}
	}
}

// WithRefreshTokenTTL sets the refresh token lifetime.
func WithRefreshTokenTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if ttl > 0 {
			ts.refreshTTL = ttl
		}
	}
}

// WithRevocationStore wires the denylist consulted on refresh and logout.
// Without a store, revocation checks pass and Revoke fails.
func WithRevocationStore(store RevocationStore) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.revocations = store
	}
}

// WithTokenLogger overrides the token service logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// TokenServiceImpl implements the TokenService interface with HS256.
type TokenServiceImpl struct {
	signingKey  []byte
	issuer      string
	audience    jwt.ClaimStrings
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationStore
	logger      Logger
	now         Clock
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, audience jwt.ClaimStrings, opts ...TokenServiceOption) TokenService {
	ts := &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// IssuePair mints an access and a refresh token for the identity. Any
// scopes are stamped on both tokens: a registration scoped pair stays
// registration scoped across refreshes.
func (ts *TokenServiceImpl) IssuePair(identity Identity, scopes ...string) (*TokenPair, error) {
	if identity == nil {
		return nil, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := ts.now()

	access, accessExp, err := ts.mint(identity, TokenKindAccess, now, ts.accessTTL, scopes)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := ts.mint(identity, TokenKindRefresh, now, ts.refreshTTL, scopes)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (ts *TokenServiceImpl) mint(identity Identity, kind string, issuedAt time.Time, ttl time.Duration, scopes []string) (string, time.Time, error) {
	expiresAt := issuedAt.Add(ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:           identity.ID(),
		UserRole:      identity.Role(),
		AccountStatus: identity.Status(),
		TokenKind:     kind,
	}

	if len(scopes) > 0 {
		claims.Scopes = append([]string(nil), scopes...)
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// ValidateRefresh validates a refresh token, including the kind claim and
// the revocation denylist. Access tokens never pass.
func (ts *TokenServiceImpl) ValidateRefresh(ctx context.Context, tokenString string) (AuthClaims, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Kind() != TokenKindRefresh {
		return nil, ErrTokenMalformed.WithMetadata(map[string]any{
			"kind": claims.Kind(),
		})
	}

	jwtClaims, ok := claims.(*JWTClaims)
	if !ok || jwtClaims.ID == "" {
		return nil, ErrTokenMalformed
	}

	if ts.revocations != nil {
		jti, err := uuid.Parse(jwtClaims.ID)
		if err != nil {
			return nil, ErrTokenMalformed
		}

		revoked, err := ts.revocations.IsRevoked(ctx, jti)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check token revocation")
		}

		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is untouched and stays usable until expiry or
// revocation.
func (ts *TokenServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := ts.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	jwtClaims := claims.(*JWTClaims)

	access, accessExp, err := ts.mint(claimsIdentity{jwtClaims}, TokenKindAccess, ts.now(), ts.accessTTL, jwtClaims.Scopes)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: claims.Expires(),
	}, nil
}

// Revoke puts a refresh token on the denylist. Revocation is permanent:
// the JTI never leaves the list before the token's own expiry.
func (ts *TokenServiceImpl) Revoke(ctx context.Context, refreshToken string) error {
	if ts.revocations == nil {
		return goerrors.New("revocation store is not configured", goerrors.CategoryInternal)
	}

	claims, err := ts.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	jwtClaims := claims.(*JWTClaims)

	jti, err := uuid.Parse(jwtClaims.ID)
	if err != nil {
		return ErrTokenMalformed
	}

	accountID, err := uuid.Parse(jwtClaims.UserID())
	if err != nil {
		return ErrTokenMalformed
	}

	if err := ts.revocations.Revoke(ctx, jti, accountID, claims.Expires()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke token")
	}

	return nil
}

// claimsIdentity lets refreshed access tokens inherit the identity
// attributes captured in the refresh token.
type claimsIdentity struct {
	claims *JWTClaims
}

func (c claimsIdentity) ID() string         { return c.claims.UserID() }
func (c claimsIdentity) Username() string   { return "" }
func (c claimsIdentity) Email() string      { return "" }
func (c claimsIdentity) Role() string       { return c.claims.Role() }
func (c claimsIdentity) Status() AuthStatus { return c.claims.Status() }

func newTokenID() string {
	return uuid.NewString()
}
