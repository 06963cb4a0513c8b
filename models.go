package register

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role label. Roles are stored but never
// mutated by any registration or authentication flow.
type AccountRole = string

const (
	// RoleOrdinaryUser is the default role for self-registered accounts
	RoleOrdinaryUser AccountRole = "ordinary_user"
	// RoleManager is a staff role
	RoleManager AccountRole = "manager"
	// RoleAdmin is an administrative role
	RoleAdmin AccountRole = "admin"
)

// AuthStatus tracks an account's progress through registration.
// Statuses only ever advance: new -> code_verified -> done -> photo_done.
type AuthStatus string

const (
	// StatusNew is a freshly created account with no verification yet
	StatusNew AuthStatus = "new"
	// StatusCodeVerified means the account confirmed a verification code
	StatusCodeVerified AuthStatus = "code_verified"
	// StatusDone means the account completed its profile
	StatusDone AuthStatus = "done"
	// StatusPhotoDone means the account attached a profile photo
	StatusPhotoDone AuthStatus = "photo_done"
)

// IsValid checks the status is one of the known registration stages
func (s AuthStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusCodeVerified, StatusDone, StatusPhotoDone:
		return true
	default:
		return false
	}
}

// Rank places the status on the registration progression. Unknown
// statuses rank below new so they can never mask a real stage.
func (s AuthStatus) Rank() int {
	switch s {
	case StatusNew:
		return 0
	case StatusCodeVerified:
		return 1
	case StatusDone:
		return 2
	case StatusPhotoDone:
		return 3
	default:
		return -1
	}
}

// CanLogin reports whether credential login is permitted for the status
func (s AuthStatus) CanLogin() bool {
	return s == StatusDone || s == StatusPhotoDone
}

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          AccountRole `bun:"role,notnull" json:"role,omitempty"`
	Status        AuthStatus  `bun:"auth_status,notnull" json:"auth_status,omitempty"`
	FirstName     string      `bun:"first_name" json:"first_name,omitempty"`
	LastName      string      `bun:"last_name" json:"last_name,omitempty"`
	Username      string      `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string      `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone         string      `bun:"phone_number" json:"phone_number,omitempty"`
	Photo         string      `bun:"photo" json:"photo,omitempty"`
	PasswordHash  string      `bun:"password_hash,notnull" json:"-"`
	// Provisional flags mark auto generated credential material the account
	// holder has not chosen yet. Explicit columns, not a string prefix
	// convention.
	ProvisionalUsername bool       `bun:"provisional_username" json:"provisional_username,omitempty"`
	ProvisionalPassword bool       `bun:"provisional_password" json:"provisional_password,omitempty"`
	LoggedInAt          *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills the zero value so legacy rows behave like new accounts
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusNew
	}
}

// FullName joins first and last name for login responses
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// VerificationCode is a one time numeric secret proving email ownership.
// Codes are never deleted; confirmed or expired rows are retained for audit
// and simply stop matching.
type VerificationCode struct {
	bun.BaseModel `bun:"table:verification_codes,alias:vc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	Code          string     `bun:"code,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Confirmed     bool       `bun:"confirmed,notnull,default:false" json:"confirmed,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Active reports whether the code can still be matched at the given instant
func (c *VerificationCode) Active(now time.Time) bool {
	return !c.Confirmed && !c.ExpiresAt.Before(now)
}

// RevokedToken is a denylist entry for a refresh token. Entries are keyed
// by the token's JTI and carry the token's natural expiry so the list can
// be pruned once revocation no longer matters.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero,default:current_timestamp" json:"revoked_at,omitempty"`
}
