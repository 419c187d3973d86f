package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/member-session/internal/api/dto"
	"github.com/spec-kit/member-session/internal/auth"
	"github.com/spec-kit/member-session/internal/config"
	"github.com/spec-kit/member-session/internal/domain"
	"github.com/spec-kit/member-session/internal/service"
	apperrors "github.com/spec-kit/member-session/pkg/util"
)

// AuthHandler exposes login, refresh and logout.
type AuthHandler struct {
	svc     *service.AuthService
	success *auth.LoginSuccessHandler
	cookies auth.CookieFactory
	cfg     config.AuthConfig
}

// NewAuthHandler builds the handler.
func NewAuthHandler(cfg config.AuthConfig, svc *service.AuthService, success *auth.LoginSuccessHandler) *AuthHandler {
	return &AuthHandler{
		svc:     svc,
		success: success,
		cookies: auth.CookieFactory{Secure: cfg.CookieSecure},
		cfg:     cfg,
	}
}

// Login authenticates with user id and password and issues a session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Password == "" {
		return apperrors.NewValidationError("userId and password are required", nil)
	}

	payload, err := h.svc.Login(c.UserContext(), req.UserID, req.Password)
	if err != nil {
		return err
	}
	return h.success.Handle(c, payload, domain.LoginFlowStandard)
}

// Refresh exchanges the current refresh token for a new session.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token, err := h.refreshToken(c)
	if err != nil {
		return err
	}
	payload, err := h.svc.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}
	return h.success.Handle(c, payload, domain.LoginFlowRefresh)
}

// Logout removes the session record and expires the session cookies.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	payload, ok := auth.PayloadFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing access token")
	}
	if err := h.svc.Logout(c.UserContext(), payload); err != nil {
		return err
	}

	c.Cookie(h.cookies.Expired(h.cfg.RefreshTokenHeader, true))
	c.Cookie(h.cookies.Expired(h.cfg.AccessTokenHeader, false))
	c.Cookie(h.cookies.Expired(auth.IDCookieName, false))
	return c.SendStatus(fiber.StatusNoContent)
}

// refreshToken reads the header first, then falls back to the cookie.
func (h *AuthHandler) refreshToken(c *fiber.Ctx) (string, error) {
	if header := strings.TrimSpace(c.Get(h.cfg.RefreshTokenHeader)); header != "" {
		return auth.StripPrefix(header, h.cfg.TokenPrefix), nil
	}
	if raw := c.Cookies(h.cfg.RefreshTokenHeader); raw != "" {
		value, err := url.QueryUnescape(raw)
		if err != nil {
			return "", apperrors.NewUnauthorized("malformed refresh cookie")
		}
		return auth.StripPrefix(value, h.cfg.TokenPrefix), nil
	}
	return "", apperrors.NewUnauthorized("missing refresh token")
}
