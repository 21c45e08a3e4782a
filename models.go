package registry

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleAdmin manages every account in the registry
	RoleAdmin UserRole = "admin"
	// RoleClinician is a staff account
	RoleClinician UserRole = "clinician"
	// RoleParticipant is the default role for registered subjects
	RoleParticipant UserRole = "participant"
	// RoleImport is a placeholder account created by bulk imports,
	// it can exist in storage but never authenticates
	RoleImport UserRole = "import"
)

// RoleFilterAll expands the list filter to include admin accounts.
// Import accounts stay excluded regardless of the filter.
const RoleFilterAll = "all"

// ParseRole validates a role string
func ParseRole(role string) (UserRole, bool) {
	switch role {
	case RoleAdmin, RoleClinician, RoleParticipant, RoleImport:
		return role, true
	default:
		return "", false
	}
}

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	// Username is unique as stored. When no explicit username is given at
	// registration it is derived from the lowercased email and tracks
	// later email changes.
	Username string   `bun:"username,notnull,unique" json:"username,omitempty"`
	Email    string   `bun:"email,notnull" json:"email,omitempty"`
	Role     UserRole `bun:"user_role,notnull" json:"role,omitempty"`
	// OriginalUsername is the username exactly as supplied at registration,
	// it is the canonical name carried in session identities.
	OriginalUsername string  `bun:"original_username,nullzero" json:"-"`
	FirstName        *string `bun:"firstname,nullzero" json:"firstname,omitempty"`
	LastName         *string `bun:"lastname,nullzero" json:"lastname,omitempty"`
	Institution      *string `bun:"institution,nullzero" json:"institution,omitempty"`
	PasswordHash     string  `bun:"password_hash,notnull" json:"-"`

	ResetToken     *string    `bun:"reset_password_token,nullzero" json:"-"`
	ResetExpiresAt *time.Time `bun:"reset_password_expires,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// HasDerivedUsername reports whether the username was derived from the email
// rather than set explicitly. Derived usernames cannot be changed directly,
// they follow the email.
func (u *User) HasDerivedUsername() bool {
	return u.Username == strings.ToLower(u.Email)
}

// CanAuthenticate reports whether the account is allowed to log in
// interactively. Imported placeholder accounts never are.
func (u *User) CanAuthenticate() bool {
	return u.Role != RoleImport
}

// HasActiveResetToken reports whether an unexpired reset token is outstanding.
func (u *User) HasActiveResetToken(now time.Time) bool {
	if u.ResetToken == nil || u.ResetExpiresAt == nil {
		return false
	}
	return now.Before(*u.ResetExpiresAt)
}

// PublicUser is the outward serialization of a user record. The password
// hash and reset token never leave the process; nil optional fields are
// omitted from the payload.
type PublicUser struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        UserRole   `json:"role"`
	FirstName   *string    `json:"firstname,omitempty"`
	LastName    *string    `json:"lastname,omitempty"`
	Institution *string    `json:"institution,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Public projects the exposed attributes of the record.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Institution: u.Institution,
		CreatedAt:   u.CreatedAt,
	}
}
