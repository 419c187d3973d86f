package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/member-session/internal/config"
	"github.com/spec-kit/member-session/internal/domain"
)

// MinSecretLength is the HS512 key size in bytes.
const MinSecretLength = 64

var signingMethod = jwt.SigningMethodHS512

// TokenManager issues and validates HS512 session tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a manager from the auth configuration. Key material
// is checked when a token is signed or verified; call Ready at startup.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		now:        time.Now,
	}
}

// accessClaims is the claim set of both token kinds; refresh tokens leave Payload nil.
type accessClaims struct {
	Payload *domain.IdentityPayload `json:"payload,omitempty"`
	jwt.RegisteredClaims
}

// Ready reports whether the key material can sign HS512 tokens.
func (tm *TokenManager) Ready() error {
	switch {
	case len(tm.secret) == 0:
		return &ConfigurationError{Reason: "jwt secret is not set"}
	case len(tm.secret) < MinSecretLength:
		return &ConfigurationError{Reason: fmt.Sprintf("jwt secret must be at least %d bytes for %s, got %d", MinSecretLength, signingMethod.Alg(), len(tm.secret))}
	}
	return nil
}

// AccessTokenTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTokenTTL() time.Duration { return tm.accessTTL }

// RefreshTokenTTL returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshTokenTTL() time.Duration { return tm.refreshTTL }

// CreateAccessToken signs a token embedding the identity payload.
func (tm *TokenManager) CreateAccessToken(payload domain.IdentityPayload) (string, error) {
	return tm.createAccessToken(payload, tm.now())
}

// CreateRefreshToken signs a payload-free token whose subject is the session key.
func (tm *TokenManager) CreateRefreshToken(key domain.SessionKey) (string, error) {
	return tm.createRefreshToken(key, tm.now())
}

// CreateTokenPair signs both tokens for one issuance instant.
func (tm *TokenManager) CreateTokenPair(payload domain.IdentityPayload) (domain.TokenPair, error) {
	issuedAt := tm.now()
	access, err := tm.createAccessToken(payload, issuedAt)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := tm.createRefreshToken(payload.SessionKey(), issuedAt)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (tm *TokenManager) createAccessToken(payload domain.IdentityPayload, issuedAt time.Time) (string, error) {
	p := payload
	return tm.sign(accessClaims{
		Payload:          &p,
		RegisteredClaims: tm.registeredClaims(string(payload.SessionKey()), issuedAt, tm.accessTTL),
	})
}

func (tm *TokenManager) createRefreshToken(key domain.SessionKey, issuedAt time.Time) (string, error) {
	return tm.sign(accessClaims{
		RegisteredClaims: tm.registeredClaims(string(key), issuedAt, tm.refreshTTL),
	})
}

func (tm *TokenManager) registeredClaims(subject string, issuedAt time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tm.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
}

func (tm *TokenManager) sign(claims accessClaims) (string, error) {
	if err := tm.Ready(); err != nil {
		return "", err
	}
	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// VerifyToken validates an access token and returns its identity payload.
// Every rejection is an *InvalidTokenError; a *ConfigurationError is returned
// only when no key is configured.
func (tm *TokenManager) VerifyToken(tokenStr string) (domain.IdentityPayload, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return domain.IdentityPayload{}, err
	}
	if claims.Payload == nil {
		return domain.IdentityPayload{}, &InvalidTokenError{Kind: KindMissingPayload}
	}
	return *claims.Payload, nil
}

// VerifyRefreshToken validates a refresh token and returns its session key.
func (tm *TokenManager) VerifyRefreshToken(tokenStr string) (domain.SessionKey, error) {
	claims, err := tm.parse(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.Payload != nil {
		return "", &InvalidTokenError{Kind: KindMalformed, Err: errors.New("refresh token carries a payload claim")}
	}
	if _, _, err := domain.ParseSessionKey(claims.Subject); err != nil {
		return "", &InvalidTokenError{Kind: KindMalformed, Err: err}
	}
	return domain.SessionKey(claims.Subject), nil
}

func (tm *TokenManager) parse(tokenStr string) (*accessClaims, error) {
	if err := tm.Ready(); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
		jwt.WithStrictDecoding(),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && signatureUndecodable(parser, tokenStr) {
			return nil, &InvalidTokenError{Kind: KindSignatureMismatch, Err: err}
		}
		return nil, classifyTokenError(err)
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, &InvalidTokenError{Kind: KindMalformed, Err: jwt.ErrTokenInvalidClaims}
	}
	return claims, nil
}

// signatureUndecodable reports whether header and claims decode cleanly, which
// leaves the signature segment as the malformed part.
func signatureUndecodable(parser *jwt.Parser, tokenStr string) bool {
	_, _, err := parser.ParseUnverified(tokenStr, &accessClaims{})
	return err == nil
}

func classifyTokenError(err error) *InvalidTokenError {
	kind := KindMalformed
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		kind = KindMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		kind = KindSignatureMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		kind = KindExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		kind = KindIssuerMismatch
	}
	return &InvalidTokenError{Kind: kind, Err: err}
}
