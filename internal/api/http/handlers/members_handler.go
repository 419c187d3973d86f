package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/member-session/internal/api/dto"
	"github.com/spec-kit/member-session/internal/auth"
	"github.com/spec-kit/member-session/internal/service"
	apperrors "github.com/spec-kit/member-session/pkg/util"
)

// MembersHandler serves member lookups for authenticated callers.
type MembersHandler struct {
	svc *service.AuthService
}

// NewMembersHandler builds the handler.
func NewMembersHandler(svc *service.AuthService) *MembersHandler {
	return &MembersHandler{svc: svc}
}

// Me returns the member behind the access token.
func (h *MembersHandler) Me(c *fiber.Ctx) error {
	payload, ok := auth.PayloadFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing access token")
	}
	member, err := h.svc.Member(c.UserContext(), payload.ID())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewMemberResponse(member))
}
