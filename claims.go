package register

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds minted by the token service. The kind claim keeps access
// tokens out of refresh endpoints and refresh tokens off protected routes.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// ScopeRegistration marks tokens minted before the profile is complete.
// They unlock only the remaining registration steps.
const ScopeRegistration = "registration"

// AuthClaims represents structured JWT claims with role and scope checks
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Status() AuthStatus
	Kind() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	HasScope(scope string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID           string     `json:"uid,omitempty"`
	UserRole      string     `json:"role,omitempty"`
	AccountStatus AuthStatus `json:"sts,omitempty"`
	Scopes        []string   `json:"scopes,omitempty"`
	TokenKind     string     `json:"kind,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Status returns the registration status captured at mint time
func (c *JWTClaims) Status() AuthStatus {
	return c.AccountStatus
}

// Kind returns the token kind, access or refresh
func (c *JWTClaims) Kind() string {
	return c.TokenKind
}

// HasRole checks if the account has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the account's role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return RoleAtLeast(c.UserRole, minRole)
}

// HasScope checks for an explicit scope on the token. Tokens minted
// without scopes are unscoped, not all-scoped.
func (c *JWTClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IsRegistrationScoped reports whether the token only unlocks the
// remaining registration steps.
func (c *JWTClaims) IsRegistrationScoped() bool {
	return c.HasScope(ScopeRegistration)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = newTokenID()
	}
}
