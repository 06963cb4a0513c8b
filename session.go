package register

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the session view of a validated access token.
type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Scopes         []string       `json:"scopes,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetScopes() []string {
	return s.Scopes
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// HasScope checks for an explicit scope on the session
func (s *SessionObject) HasScope(scope string) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// HasRole checks if the session carries a specific role
func (s *SessionObject) HasRole(role string) bool {
	return s.getRole() == role
}

// IsAtLeast checks if the session role is at least the minimum required role
func (s *SessionObject) IsAtLeast(minRole AccountRole) bool {
	return RoleAtLeast(s.getRole(), minRole)
}

// RegistrationStatus returns the auth status stamped on the token, if any
func (s *SessionObject) RegistrationStatus() AuthStatus {
	if s.Data != nil {
		if raw, exists := s.Data["status"]; exists {
			if status, ok := raw.(string); ok {
				return AuthStatus(status)
			}
		}
	}
	return ""
}

func (s *SessionObject) getRole() AccountRole {
	if s.Data != nil {
		if roleData, exists := s.Data["role"]; exists {
			if roleStr, ok := roleData.(string); ok {
				if role, valid := ParseRole(roleStr); valid {
					return role
				}
			}
		}
	}
	return RoleOrdinaryUser
}

// TODO: enable only in development!
func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s scopes=%v data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Scopes,
		s.Data,
	)
}

// sessionFromAuthClaims creates a SessionObject from validated claims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	data := make(map[string]any)
	data["role"] = claims.Role()
	if claims.Status() != "" {
		data["status"] = string(claims.Status())
	}

	var audience []string
	var scopes []string
	issuer := claims.Subject()

	if jwtClaims, ok := claims.(*JWTClaims); ok {
		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)
		scopes = append(scopes, jwtClaims.Scopes...)
		if jwtClaims.RegisteredClaims.Issuer != "" {
			issuer = jwtClaims.RegisteredClaims.Issuer
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Audience:       audience,
		Issuer:         issuer,
		Scopes:         scopes,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
