package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/member-session/internal/config"
	"github.com/spec-kit/member-session/internal/domain"
	"github.com/spec-kit/member-session/internal/events"
	"github.com/spec-kit/member-session/internal/observability"
	"github.com/spec-kit/member-session/internal/repository"
	apperrors "github.com/spec-kit/member-session/pkg/util"
)

type successFixture struct {
	app        *fiber.App
	tokens     *TokenManager
	sessions   repository.SessionRepository
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	payload    domain.IdentityPayload
}

func testErrorHandler(c *fiber.Ctx, err error) error {
	de := apperrors.ToDomainError(err)
	return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code}})
}

func newSuccessFixture(t *testing.T, cfg config.AuthConfig, sessions repository.SessionRepository) *successFixture {
	t.Helper()
	if sessions == nil {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		sessions = repository.NewSessionRepository(rdb, 0)
	}

	f := &successFixture{
		tokens:     NewTokenManager(cfg),
		sessions:   sessions,
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(),
		payload:    testPayload(t, 7, "alice", "a@b.com", domain.RoleUser),
	}
	handler := NewLoginSuccessHandler(cfg, LoginSuccessDependencies{
		Tokens:     f.tokens,
		Sessions:   f.sessions,
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
	})

	f.app = fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	f.app.Post("/login/:flow", func(c *fiber.Ctx) error {
		return handler.Handle(c, f.payload, domain.LoginFlow(c.Params("flow")))
	})
	return f
}

func (f *successFixture) login(t *testing.T, flow domain.LoginFlow) *http.Response {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/login/"+string(flow), nil), -1)
	require.NoError(t, err)
	return resp
}

func cookiesByName(resp *http.Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestStandardLoginWritesJSONAndHeaders(t *testing.T) {
	f := newSuccessFixture(t, testAuthConfig(), nil)

	resp := f.login(t, domain.LoginFlowStandard)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.MIMEApplicationJSONCharsetUTF8, resp.Header.Get(fiber.HeaderContentType))

	var body domain.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(7), body.ID)
	require.NotEmpty(t, body.Token.AccessToken)
	require.NotEmpty(t, body.Token.RefreshToken)

	assert.Equal(t, "Bearer "+body.Token.AccessToken, resp.Header.Get("Authorization"))
	assert.Equal(t, "Bearer "+body.Token.RefreshToken, resp.Header.Get("Refresh-Token"))

	cookies := cookiesByName(resp)
	require.Len(t, cookies, 1)
	refresh := cookies["Refresh-Token"]
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.False(t, refresh.Secure)
	assert.Equal(t, "/", refresh.Path)
	assert.Equal(t, 24*60*60, refresh.MaxAge)
	assert.Equal(t, url.QueryEscape(body.Token.RefreshToken), refresh.Value)

	record, err := f.sessions.Find(context.Background(), f.payload.SessionKey())
	require.NoError(t, err)
	assert.Equal(t, body.Token.AccessToken, record.AccessToken)
	assert.Equal(t, body.Token.RefreshToken, record.RefreshToken)

	got, err := f.tokens.VerifyToken(body.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.payload, got)

	assert.Equal(t, int64(1), f.metrics.Snapshot().SessionsIssued["standard"])
}

func TestRefreshFlowUsesJSONTail(t *testing.T) {
	f := newSuccessFixture(t, testAuthConfig(), nil)

	resp := f.login(t, domain.LoginFlowRefresh)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Authorization"))
	assert.Empty(t, resp.Header.Get(fiber.HeaderLocation))
}

func TestSocialLoginRedirectsWithCookies(t *testing.T) {
	cfg := testAuthConfig()
	f := newSuccessFixture(t, cfg, nil)

	var issued []events.Event
	f.dispatcher.Subscribe(events.EventSessionIssued, func(_ context.Context, e events.Event) error {
		issued = append(issued, e)
		return nil
	})

	resp := f.login(t, domain.LoginFlowSocial)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, cfg.SocialRedirectURL, resp.Header.Get(fiber.HeaderLocation))
	assert.Empty(t, resp.Header.Get("Authorization"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)

	cookies := cookiesByName(resp)
	require.Len(t, cookies, 3)

	assert.True(t, cookies["Refresh-Token"].HttpOnly)
	assert.Equal(t, 24*60*60, cookies["Refresh-Token"].MaxAge)

	access := cookies["Authorization"]
	require.NotNil(t, access)
	assert.False(t, access.HttpOnly)
	assert.Equal(t, 30*60, access.MaxAge)
	decoded, err := url.QueryUnescape(access.Value)
	require.NoError(t, err)
	require.Equal(t, "Bearer ", decoded[:len("Bearer ")])
	got, err := f.tokens.VerifyToken(decoded[len("Bearer "):])
	require.NoError(t, err)
	assert.Equal(t, f.payload, got)

	id := cookies[IDCookieName]
	require.NotNil(t, id)
	assert.False(t, id.HttpOnly)
	assert.Equal(t, "7", id.Value)
	assert.Equal(t, 30*60, id.MaxAge)

	require.Len(t, issued, 1)
	assert.Equal(t, f.payload.SessionKey(), issued[0].SessionKey)
	assert.Equal(t, events.SessionIssuedPayload{Flow: domain.LoginFlowSocial}, issued[0].Payload)
}

func TestSecureCookieFlagFollowsConfig(t *testing.T) {
	cfg := testAuthConfig()
	cfg.CookieSecure = true
	f := newSuccessFixture(t, cfg, nil)

	resp := f.login(t, domain.LoginFlowStandard)
	defer resp.Body.Close()

	assert.True(t, cookiesByName(resp)["Refresh-Token"].Secure)
}

func TestSequentialLoginsKeepOnlyLatestPair(t *testing.T) {
	f := newSuccessFixture(t, testAuthConfig(), nil)
	clock := time.Now()
	f.tokens.now = func() time.Time { return clock }

	first := f.login(t, domain.LoginFlowStandard)
	var firstBody domain.LoginResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&firstBody))
	first.Body.Close()

	clock = clock.Add(time.Minute)
	second := f.login(t, domain.LoginFlowStandard)
	var secondBody domain.LoginResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&secondBody))
	second.Body.Close()

	require.NotEqual(t, firstBody.Token, secondBody.Token)

	record, err := f.sessions.Find(context.Background(), f.payload.SessionKey())
	require.NoError(t, err)
	assert.Equal(t, secondBody.Token.AccessToken, record.AccessToken)
	assert.Equal(t, secondBody.Token.RefreshToken, record.RefreshToken)

	// Superseded tokens still verify by signature until their own expiry.
	for _, token := range []string{firstBody.Token.AccessToken, secondBody.Token.AccessToken} {
		got, err := f.tokens.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, f.payload, got)
	}
}

func TestConcurrentLoginsBothVerify(t *testing.T) {
	f := newSuccessFixture(t, testAuthConfig(), nil)

	const logins = 2
	var wg sync.WaitGroup
	bodies := make([]domain.LoginResponse, logins)
	errs := make([]error, logins)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/login/standard", nil), -1)
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			errs[i] = json.NewDecoder(resp.Body).Decode(&bodies[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < logins; i++ {
		require.NoError(t, errs[i])
		_, err := f.tokens.VerifyToken(bodies[i].Token.AccessToken)
		require.NoError(t, err)
	}

	record, err := f.sessions.Find(context.Background(), f.payload.SessionKey())
	require.NoError(t, err)
	assert.Contains(t, []string{bodies[0].Token.AccessToken, bodies[1].Token.AccessToken}, record.AccessToken)
}

type failingSessions struct {
	repository.SessionRepository
	failAccess  bool
	failRefresh bool
	writes      []string
}

func (s *failingSessions) SaveAccessToken(_ context.Context, _ domain.SessionKey, _ string) error {
	s.writes = append(s.writes, "access")
	if s.failAccess {
		return errors.New("redis down")
	}
	return nil
}

func (s *failingSessions) SaveRefreshToken(_ context.Context, _ domain.SessionKey, _ string) error {
	s.writes = append(s.writes, "refresh")
	if s.failRefresh {
		return errors.New("redis down")
	}
	return nil
}

func TestSessionStoreFailureEmitsNoTokens(t *testing.T) {
	cases := map[string]*failingSessions{
		"access write fails":  {failAccess: true},
		"refresh write fails": {failRefresh: true},
	}
	for name, store := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSuccessFixture(t, testAuthConfig(), store)

			for _, flow := range []domain.LoginFlow{domain.LoginFlowStandard, domain.LoginFlowSocial} {
				resp := f.login(t, flow)
				resp.Body.Close()

				assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
				assert.Empty(t, resp.Cookies())
				assert.Empty(t, resp.Header.Get("Authorization"))
				assert.Empty(t, resp.Header.Get("Refresh-Token"))
				assert.Empty(t, resp.Header.Get(fiber.HeaderLocation))
			}
			assert.Empty(t, f.metrics.Snapshot().SessionsIssued)
		})
	}

	ordered := &failingSessions{failRefresh: true}
	f := newSuccessFixture(t, testAuthConfig(), ordered)
	f.login(t, domain.LoginFlowStandard).Body.Close()
	assert.Equal(t, []string{"access", "refresh"}, ordered.writes)
}

func TestMissingSecretAbortsBeforeStore(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTSecret = ""
	store := &failingSessions{}
	f := newSuccessFixture(t, cfg, store)

	resp := f.login(t, domain.LoginFlowStandard)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Cookies())
	assert.Empty(t, store.writes)
}
