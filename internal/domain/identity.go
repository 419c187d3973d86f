package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidEmail is returned when an address fails the structural check.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidRole is returned for roles outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidSessionKey is returned when a session key cannot be parsed.
	ErrInvalidSessionKey = errors.New("invalid session key")
)

var emailPattern = regexp.MustCompile(`^(.+)@(\S+)$`)

// Role enumerates member roles carried in access tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Email is a validated email address.
type Email struct {
	value string
}

// NewEmail validates and wraps an address.
func NewEmail(address string) (Email, error) {
	if !emailPattern.MatchString(address) {
		return Email{}, fmt.Errorf("%w: %q", ErrInvalidEmail, address)
	}
	return Email{value: address}, nil
}

func (e Email) String() string {
	return e.value
}

func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.value)
}

func (e *Email) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewEmail(raw)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// SessionKey identifies the session record of one member.
type SessionKey string

// NewSessionKey derives the key from the numeric id and the external user id.
func NewSessionKey(id int64, userID string) SessionKey {
	return SessionKey(strconv.FormatInt(id, 10) + "/" + userID)
}

// ParseSessionKey splits a key back into its id and user id.
func ParseSessionKey(raw string) (int64, string, error) {
	idPart, userID, ok := strings.Cut(raw, "/")
	if !ok || userID == "" {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidSessionKey, raw)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidSessionKey, raw)
	}
	return id, userID, nil
}

// IdentityPayload is the authenticated subject embedded in an access token.
type IdentityPayload struct {
	id     int64
	userID string
	email  Email
	role   Role
}

// NewIdentityPayload builds a payload from already-authenticated account data.
func NewIdentityPayload(id int64, userID, email string, role Role) (IdentityPayload, error) {
	addr, err := NewEmail(email)
	if err != nil {
		return IdentityPayload{}, err
	}
	if !role.Valid() {
		return IdentityPayload{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return IdentityPayload{id: id, userID: userID, email: addr, role: role}, nil
}

func (p IdentityPayload) ID() int64 { return p.id }
func (p IdentityPayload) UserID() string { return p.userID }
func (p IdentityPayload) Email() Email { return p.email }
func (p IdentityPayload) Role() Role { return p.role }

// SessionKey returns the key under which this identity's tokens are stored.
func (p IdentityPayload) SessionKey() SessionKey {
	return NewSessionKey(p.id, p.userID)
}

type identityPayloadJSON struct {
	ID     int64  `json:"id"`
	UserID string `json:"userId"`
	Email  Email  `json:"email"`
	Role   Role   `json:"role"`
}

func (p IdentityPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityPayloadJSON{ID: p.id, UserID: p.userID, Email: p.email, Role: p.role})
}

func (p *IdentityPayload) UnmarshalJSON(data []byte) error {
	var raw identityPayloadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := NewIdentityPayload(raw.ID, raw.UserID, raw.Email.String(), raw.Role)
	if err != nil {
		return err
	}
	*p = payload
	return nil
}
