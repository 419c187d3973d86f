package domain

import "time"

// SocialType identifies where a member account authenticates.
type SocialType string

const (
	SocialTypeLocal  SocialType = "LOCAL"
	SocialTypeGoogle SocialType = "GOOGLE"
	SocialTypeKakao  SocialType = "KAKAO"
	SocialTypeNaver  SocialType = "NAVER"
)

// Member is the persisted account an Identity Payload is built from.
type Member struct {
	ID           int64
	UserID       string
	Email        string
	PasswordHash string
	Role         Role
	SocialType   SocialType
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityPayload builds the token payload for the member.
func (m *Member) IdentityPayload() (IdentityPayload, error) {
	return NewIdentityPayload(m.ID, m.UserID, m.Email, m.Role)
}
