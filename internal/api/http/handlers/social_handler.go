package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/member-session/internal/auth"
	"github.com/spec-kit/member-session/internal/domain"
	"github.com/spec-kit/member-session/internal/service"
)

// ProfileResolver turns a provider callback request into the profile the
// provider verified.
type ProfileResolver func(c *fiber.Ctx, provider domain.SocialType) (service.SocialProfile, error)

// SocialHandler completes logins that a social provider already authenticated.
// The provider exchange itself happens upstream; its callback hands the
// verified profile to Complete.
type SocialHandler struct {
	svc     *service.AuthService
	success *auth.LoginSuccessHandler
}

// NewSocialHandler builds the handler.
func NewSocialHandler(svc *service.AuthService, success *auth.LoginSuccessHandler) *SocialHandler {
	return &SocialHandler{svc: svc, success: success}
}

// Complete resolves the member for profile and redirects with session cookies.
func (h *SocialHandler) Complete(c *fiber.Ctx, profile service.SocialProfile) error {
	payload, err := h.svc.SocialLogin(c.UserContext(), profile)
	if err != nil {
		return err
	}
	return h.success.Handle(c, payload, domain.LoginFlowSocial)
}

// Callback serves GET /oauth2/callback/:provider using resolve for the
// provider exchange.
func (h *SocialHandler) Callback(resolve ProfileResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provider := domain.SocialType(strings.ToUpper(c.Params("provider")))
		profile, err := resolve(c, provider)
		if err != nil {
			return err
		}
		return h.Complete(c, profile)
	}
}
