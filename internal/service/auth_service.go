package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/member-session/internal/auth"
	"github.com/spec-kit/member-session/internal/domain"
	"github.com/spec-kit/member-session/internal/events"
	"github.com/spec-kit/member-session/internal/repository"
	apperrors "github.com/spec-kit/member-session/pkg/util"
)

var (
	// ErrInvalidCredentials covers unknown members and wrong passwords alike.
	ErrInvalidCredentials = apperrors.NewDomainError("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized, nil)
	// ErrRefreshTokenRevoked means the refresh token is no longer the one on record.
	ErrRefreshTokenRevoked = apperrors.NewDomainError("REFRESH_TOKEN_REVOKED", "refresh token is no longer valid", http.StatusUnauthorized, nil)
)

// SocialProfile is the identity a social provider vouched for.
type SocialProfile struct {
	Provider       domain.SocialType
	ProviderUserID string
	Email          string
}

// AuthService resolves the identity payload for each login flow. Minting and
// delivering tokens is left to auth.LoginSuccessHandler.
type AuthService struct {
	members    repository.MemberRepository
	sessions   repository.SessionRepository
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	MemberRepo  repository.MemberRepository
	SessionRepo repository.SessionRepository
	Tokens      *auth.TokenManager
	Dispatcher  events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		members:    deps.MemberRepo,
		sessions:   deps.SessionRepo,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
	}
}

// Login authenticates a local member by user id and password.
func (s *AuthService) Login(ctx context.Context, userID, password string) (domain.IdentityPayload, error) {
	member, err := s.members.GetByUserIDAndSocialType(ctx, userID, domain.SocialTypeLocal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IdentityPayload{}, ErrInvalidCredentials
		}
		return domain.IdentityPayload{}, fmt.Errorf("load member: %w", err)
	}
	if err := auth.ComparePassword(member.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return domain.IdentityPayload{}, ErrInvalidCredentials
		}
		return domain.IdentityPayload{}, err
	}
	return member.IdentityPayload()
}

// Refresh exchanges a refresh token for the identity it was issued to. The
// token must still be the one recorded for its session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.IdentityPayload, error) {
	key, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return domain.IdentityPayload{}, err
	}

	record, err := s.sessions.Find(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domain.IdentityPayload{}, ErrRefreshTokenRevoked
		}
		return domain.IdentityPayload{}, fmt.Errorf("load session: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(record.RefreshToken), []byte(refreshToken)) != 1 {
		return domain.IdentityPayload{}, ErrRefreshTokenRevoked
	}

	id, userID, err := domain.ParseSessionKey(string(key))
	if err != nil {
		return domain.IdentityPayload{}, ErrRefreshTokenRevoked
	}
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IdentityPayload{}, ErrRefreshTokenRevoked
		}
		return domain.IdentityPayload{}, fmt.Errorf("load member: %w", err)
	}
	if member.UserID != userID {
		return domain.IdentityPayload{}, ErrRefreshTokenRevoked
	}
	return member.IdentityPayload()
}

// SocialLogin finds or creates the member for a social profile.
func (s *AuthService) SocialLogin(ctx context.Context, profile SocialProfile) (domain.IdentityPayload, error) {
	if profile.Provider == "" || profile.Provider == domain.SocialTypeLocal || profile.ProviderUserID == "" {
		return domain.IdentityPayload{}, apperrors.NewValidationError("invalid social profile", map[string]any{"provider": profile.Provider})
	}

	member, err := s.members.GetByUserIDAndSocialType(ctx, profile.ProviderUserID, profile.Provider)
	if err == nil {
		return member.IdentityPayload()
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.IdentityPayload{}, fmt.Errorf("load member: %w", err)
	}

	if _, err := domain.NewEmail(profile.Email); err != nil {
		return domain.IdentityPayload{}, apperrors.NewValidationError("invalid email", map[string]any{"email": profile.Email})
	}
	member = &domain.Member{
		UserID:     profile.ProviderUserID,
		Email:      profile.Email,
		Role:       domain.RoleUser,
		SocialType: profile.Provider,
	}
	if err := s.members.Create(ctx, member); err != nil {
		if !errors.Is(err, repository.ErrMemberExists) {
			return domain.IdentityPayload{}, fmt.Errorf("create member: %w", err)
		}
		// a concurrent first login created it
		member, err = s.members.GetByUserIDAndSocialType(ctx, profile.ProviderUserID, profile.Provider)
		if err != nil {
			return domain.IdentityPayload{}, fmt.Errorf("reload member: %w", err)
		}
	}
	return member.IdentityPayload()
}

// Logout deletes the session record so the refresh token can no longer be exchanged.
func (s *AuthService) Logout(ctx context.Context, payload domain.IdentityPayload) error {
	key := payload.SessionKey()
	if err := s.sessions.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if s.dispatcher == nil {
		return nil
	}
	event := events.NewEvent(events.EventSessionRevoked, key, payload.ID(), events.SessionRevokedPayload{Reason: "logout"})
	return s.dispatcher.Publish(ctx, event)
}

// Member returns the member behind an authenticated payload.
func (s *AuthService) Member(ctx context.Context, id int64) (*domain.Member, error) {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("member", map[string]any{"id": id})
		}
		return nil, err
	}
	return member, nil
}
