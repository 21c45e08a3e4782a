package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Username       string         `json:"username,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetUsername() string {
	return s.Username
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

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// Role returns the role carried in the session data, empty when absent.
func (s *SessionObject) Role() string {
	if s.Data == nil {
		return ""
	}
	if role, ok := s.Data["role"].(string); ok {
		return role
	}
	return ""
}

// IsAdmin reports whether the session carries the admin role.
func (s *SessionObject) IsAdmin() bool {
	return s.Role() == RoleAdmin
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s username=%s iss=%s iat=%s",
		s.UserID,
		s.Username,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromClaims creates a SessionObject from validated token claims
func sessionFromClaims(claims *JWTClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToDecodeSession
	}

	data := map[string]any{
		"role": claims.UserRole,
	}

	var audience []string
	for _, aud := range claims.Audience {
		audience = append(audience, aud)
	}

	issuedAt := claims.IssuedAtTime()
	expiresAt := claims.ExpiresTime()

	return &SessionObject{
		UserID:         claims.UserID(),
		Username:       claims.Username,
		Audience:       audience,
		Issuer:         claims.Issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
