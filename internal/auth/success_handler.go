package auth

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/member-session/internal/config"
	"github.com/spec-kit/member-session/internal/domain"
	"github.com/spec-kit/member-session/internal/events"
	"github.com/spec-kit/member-session/internal/observability"
	"github.com/spec-kit/member-session/internal/repository"
)

// LoginSuccessHandler is the only place session tokens are minted and
// delivered. Handlers call it once the member is authenticated.
type LoginSuccessHandler struct {
	tokens     *TokenManager
	sessions   repository.SessionRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cookies    CookieFactory
	cfg        config.AuthConfig
}

// LoginSuccessDependencies bundles collaborators of the success handler.
type LoginSuccessDependencies struct {
	Tokens     *TokenManager
	Sessions   repository.SessionRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewLoginSuccessHandler constructs the handler.
func NewLoginSuccessHandler(cfg config.AuthConfig, deps LoginSuccessDependencies) *LoginSuccessHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginSuccessHandler{
		tokens:     deps.Tokens,
		sessions:   deps.Sessions,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cookies:    CookieFactory{Secure: cfg.CookieSecure},
		cfg:        cfg,
	}
}

// Handle issues a token pair for payload, records it in the session store and
// writes the response for the given flow. Nothing is written to the response
// unless both store writes succeeded.
func (h *LoginSuccessHandler) Handle(c *fiber.Ctx, payload domain.IdentityPayload, flow domain.LoginFlow) error {
	key := payload.SessionKey()

	pair, err := h.tokens.CreateTokenPair(payload)
	if err != nil {
		h.logger.Error("token issuance failed", zap.String("session_key", string(key)), zap.Error(err))
		return err
	}

	ctx := c.UserContext()
	if err := h.sessions.SaveAccessToken(ctx, key, pair.AccessToken); err != nil {
		return h.storeFailure(key, "access", err)
	}
	if err := h.sessions.SaveRefreshToken(ctx, key, pair.RefreshToken); err != nil {
		return h.storeFailure(key, "refresh", err)
	}

	h.metrics.RecordSessionIssued(string(flow))
	h.logger.Info("session issued",
		zap.String("session_key", string(key)),
		zap.Int64("member_id", payload.ID()),
		zap.String("flow", string(flow)),
	)
	if h.dispatcher != nil {
		event := events.NewEvent(events.EventSessionIssued, key, payload.ID(), events.SessionIssuedPayload{Flow: flow})
		if err := h.dispatcher.Publish(ctx, event); err != nil {
			h.logger.Error("publish session issued", zap.String("session_key", string(key)), zap.Error(err))
		}
	}

	c.Cookie(h.cookies.New(h.cfg.RefreshTokenHeader, pair.RefreshToken, h.tokens.RefreshTokenTTL(), true))

	if flow.Redirects() {
		return h.redirect(c, payload, pair)
	}
	return h.respond(c, payload, pair)
}

func (h *LoginSuccessHandler) redirect(c *fiber.Ctx, payload domain.IdentityPayload, pair domain.TokenPair) error {
	accessTTL := h.tokens.AccessTokenTTL()
	c.Cookie(h.cookies.New(h.cfg.AccessTokenHeader, h.cfg.TokenPrefix+pair.AccessToken, accessTTL, false))
	c.Cookie(h.cookies.New(IDCookieName, strconv.FormatInt(payload.ID(), 10), accessTTL, false))
	return c.Redirect(h.cfg.SocialRedirectURL, fiber.StatusFound)
}

func (h *LoginSuccessHandler) respond(c *fiber.Ctx, payload domain.IdentityPayload, pair domain.TokenPair) error {
	body, err := c.App().Config().JSONEncoder(domain.LoginResponse{Token: pair, ID: payload.ID()})
	if err != nil {
		return err
	}

	c.Status(fiber.StatusOK)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	c.Set(h.cfg.AccessTokenHeader, h.cfg.TokenPrefix+pair.AccessToken)
	c.Set(h.cfg.RefreshTokenHeader, h.cfg.TokenPrefix+pair.RefreshToken)
	return c.Send(body)
}

func (h *LoginSuccessHandler) storeFailure(key domain.SessionKey, field string, err error) error {
	h.logger.Error("session store write failed",
		zap.String("session_key", string(key)),
		zap.String("field", field),
		zap.Error(err),
	)
	return &SessionStoreWriteError{Key: key, Field: field, Err: err}
}
