package dto

import (
	"time"

	"github.com/spec-kit/member-session/internal/domain"
)

// LoginRequest payload for local login.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// MemberResponse describes the authenticated member.
type MemberResponse struct {
	ID         int64             `json:"id"`
	UserID     string            `json:"userId"`
	Email      string            `json:"email"`
	Role       domain.Role       `json:"role"`
	SocialType domain.SocialType `json:"socialType"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// NewMemberResponse maps a member to its response shape.
func NewMemberResponse(m *domain.Member) MemberResponse {
	return MemberResponse{
		ID:         m.ID,
		UserID:     m.UserID,
		Email:      m.Email,
		Role:       m.Role,
		SocialType: m.SocialType,
		CreatedAt:  m.CreatedAt,
	}
}
