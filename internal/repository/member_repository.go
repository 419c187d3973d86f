package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/member-session/internal/domain"
)

// ErrMemberExists is returned by Create when (user_id, social_type) is taken.
var ErrMemberExists = errors.New("member already exists")

const uniqueViolation = "23505"

// MemberRepository defines persistence access for member accounts.
type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) error
	GetByID(ctx context.Context, id int64) (*domain.Member, error)
	GetByUserIDAndSocialType(ctx context.Context, userID string, socialType domain.SocialType) (*domain.Member, error)
}

type memberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository returns a Postgres-backed implementation.
func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepository{pool: pool}
}

const memberColumns = `id, user_id, email, COALESCE(password_hash, ''), role, social_type, created_at, updated_at`

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	const query = `
        INSERT INTO members (user_id, email, password_hash, role, social_type)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		member.UserID,
		member.Email,
		member.PasswordHash,
		member.Role,
		member.SocialType,
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
	return mapCreateError(err, member)
}

func mapCreateError(err error, member *domain.Member) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s/%s", ErrMemberExists, member.SocialType, member.UserID)
	}
	return err
}

func (r *memberRepository) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id=$1`

	var member domain.Member
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&member.ID,
		&member.UserID,
		&member.Email,
		&member.PasswordHash,
		&member.Role,
		&member.SocialType,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) GetByUserIDAndSocialType(ctx context.Context, userID string, socialType domain.SocialType) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id=$1 AND social_type=$2`

	var member domain.Member
	if err := r.pool.QueryRow(ctx, query, userID, socialType).Scan(
		&member.ID,
		&member.UserID,
		&member.Email,
		&member.PasswordHash,
		&member.Role,
		&member.SocialType,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &member, nil
}
