package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/member-session/internal/domain"
	"github.com/spec-kit/member-session/internal/events"
	"github.com/spec-kit/member-session/internal/observability"
	apperrors "github.com/spec-kit/member-session/pkg/util"
)

const payloadKey = "auth_payload"

// AuthMiddleware verifies access tokens and exposes the identity payload to
// downstream handlers.
type AuthMiddleware struct {
	tokens     *TokenManager
	header     string
	prefix     string
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware reading the token from header,
// with prefix stripped when present.
func NewAuthMiddleware(tokens *TokenManager, header, prefix string, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:     tokens,
		header:     header,
		prefix:     prefix,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Get(m.header))
	if raw == "" {
		return apperrors.NewUnauthorized("missing access token")
	}

	payload, err := m.tokens.VerifyToken(StripPrefix(raw, m.prefix))
	if err != nil {
		var invalid *InvalidTokenError
		if !errors.As(err, &invalid) {
			return err
		}
		m.reject(c, invalid)
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(payloadKey, payload)
	return c.Next()
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, invalid *InvalidTokenError) {
	kind := string(invalid.Kind)
	m.metrics.RecordTokenRejected(kind)
	m.logger.Info("access token rejected", zap.String("kind", kind), zap.String("path", c.Path()), zap.Error(invalid.Err))
	if m.dispatcher == nil {
		return
	}
	event := events.NewEvent(events.EventTokenRejected, "", 0, events.TokenRejectedPayload{Kind: kind, Path: c.Path()})
	if err := m.dispatcher.Publish(c.UserContext(), event); err != nil {
		m.logger.Error("publish token rejected", zap.Error(err))
	}
}

// PayloadFromContext retrieves the authenticated identity.
func PayloadFromContext(c *fiber.Ctx) (domain.IdentityPayload, bool) {
	payload, ok := c.Locals(payloadKey).(domain.IdentityPayload)
	return payload, ok
}

// StripPrefix removes the configured scheme prefix from a transported token.
// The comparison ignores case so "bearer x" and "Bearer x" both work.
func StripPrefix(value, prefix string) string {
	if prefix != "" && len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return value
}
