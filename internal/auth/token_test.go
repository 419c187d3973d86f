package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/member-session/internal/config"
	"github.com/spec-kit/member-session/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:              testSecret,
		Issuer:                 "member-session-test",
		AccessTokenTTLMinutes:  30,
		RefreshTokenTTLMinutes: 24 * 60,
		AccessTokenHeader:      "Authorization",
		RefreshTokenHeader:     "Refresh-Token",
		TokenPrefix:            "Bearer ",
		SocialRedirectURL:      "http://localhost:8081/oauth2-signin-success",
	}
}

func testPayload(t *testing.T, id int64, userID, email string, role domain.Role) domain.IdentityPayload {
	t.Helper()
	p, err := domain.NewIdentityPayload(id, userID, email, role)
	require.NoError(t, err)
	return p
}

func requireTokenKind(t *testing.T, err error, kind TokenErrorKind) {
	t.Helper()
	var invalid *InvalidTokenError
	require.True(t, errors.As(err, &invalid), "expected *InvalidTokenError, got %v", err)
	assert.Equal(t, kind, invalid.Kind)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())

	payloads := []domain.IdentityPayload{
		testPayload(t, 7, "alice", "a@b.com", domain.RoleUser),
		testPayload(t, 1, "root", "root@example.org", domain.RoleAdmin),
		testPayload(t, 9223372036854775807, "kakao_12345", "weird+tag@sub.example.co.kr", domain.RoleUser),
	}
	for _, p := range payloads {
		token, err := tm.CreateAccessToken(p)
		require.NoError(t, err)

		got, err := tm.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestAccessTokenClaims(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tm.now = func() time.Time { return issued }

	token, err := tm.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "HS512", parsed.Header["alg"])
	assert.Equal(t, "7/alice", claims["sub"])
	assert.Equal(t, "member-session-test", claims["iss"])
	assert.EqualValues(t, issued.Unix(), claims["iat"])
	assert.EqualValues(t, issued.Add(30*time.Minute).Unix(), claims["exp"])
	assert.Equal(t, map[string]interface{}{
		"id":     float64(7),
		"userId": "alice",
		"email":  "a@b.com",
		"role":   "USER",
	}, claims["payload"])
}

func TestRefreshTokenCarriesNoPayload(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	key := domain.NewSessionKey(7, "alice")

	token, err := tm.CreateRefreshToken(key)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.NotContains(t, claims, "payload")
	assert.Equal(t, "7/alice", claims["sub"])

	_, err = tm.VerifyToken(token)
	requireTokenKind(t, err, KindMissingPayload)

	gotKey, err := tm.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
}

func TestVerifyRefreshTokenRejectsAccessToken(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	access, err := tm.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	_, err = tm.VerifyRefreshToken(access)
	requireTokenKind(t, err, KindMalformed)
}

func TestTokenPairSharesIssuanceInstant(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	issued := time.Now().Truncate(time.Second)
	tm.now = func() time.Time { return issued }

	pair, err := tm.CreateTokenPair(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	for _, token := range []string{pair.AccessToken, pair.RefreshToken} {
		claims := jwt.MapClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(token, claims)
		require.NoError(t, err)
		assert.EqualValues(t, issued.Unix(), claims["iat"])
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	token, err := tm.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	for i := 0; i < len(parts[2]); i++ {
		sig := []byte(parts[2])
		if sig[i] == 'A' {
			sig[i] = 'B'
		} else {
			sig[i] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(sig)

		_, err := tm.VerifyToken(tampered)
		requireTokenKind(t, err, KindSignatureMismatch)
	}
}

func TestVerifyRejectsEveryOtherFinalSignatureChar(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	token, err := tm.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := token[len(token)-1]
	for _, ch := range []byte(alphabet) {
		if ch == last {
			continue
		}
		tampered := token[:len(token)-1] + string(ch)
		_, err := tm.VerifyToken(tampered)
		requireTokenKind(t, err, KindSignatureMismatch)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := tm.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.VerifyToken(token)
	requireTokenKind(t, err, KindExpired)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	otherCfg := testAuthConfig()
	otherCfg.Issuer = "someone-else"
	other := NewTokenManager(otherCfg)

	token, err := other.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
	require.NoError(t, err)

	_, err = NewTokenManager(testAuthConfig()).VerifyToken(token)
	requireTokenKind(t, err, KindIssuerMismatch)
}

func TestVerifyRejectsOtherAlgorithm(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "7/alice",
		Issuer:    "member-session-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testAuthConfig()).VerifyToken(token)
	requireTokenKind(t, err, KindSignatureMismatch)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	tm := NewTokenManager(testAuthConfig())

	for _, token := range []string{"", "not.a.jwt", "abc", "a.b"} {
		_, err := tm.VerifyToken(token)
		requireTokenKind(t, err, KindMalformed)
	}
}

func TestVerifyRejectsPayloadWithInvalidEmail(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":     "7/alice",
		"iss":     "member-session-test",
		"exp":     time.Now().Add(time.Minute).Unix(),
		"payload": map[string]interface{}{"id": 7, "userId": "alice", "email": "no-at-sign", "role": "USER"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testAuthConfig()).VerifyToken(token)
	requireTokenKind(t, err, KindMalformed)
}

func TestVerifyRejectsPayloadWithoutEmail(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":     "7/alice",
		"iss":     "member-session-test",
		"exp":     time.Now().Add(time.Minute).Unix(),
		"payload": map[string]interface{}{"id": 7, "userId": "alice", "role": "USER"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testAuthConfig()).VerifyToken(token)
	requireTokenKind(t, err, KindMalformed)
}

func TestMissingSecretIsConfigurationError(t *testing.T) {
	for _, secret := range []string{"", "too-short-for-hs512"} {
		cfg := testAuthConfig()
		cfg.JWTSecret = secret
		tm := NewTokenManager(cfg)

		token, err := tm.CreateAccessToken(testPayload(t, 7, "alice", "a@b.com", domain.RoleUser))
		assert.Empty(t, token)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)

		_, err = tm.CreateRefreshToken(domain.NewSessionKey(7, "alice"))
		require.ErrorAs(t, err, &cfgErr)
		assert.ErrorAs(t, tm.Ready(), &cfgErr)
	}
}
