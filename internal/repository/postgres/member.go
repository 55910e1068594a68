package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/repository"
	"github.com/clubworks/portal-api/pkg/errors"
)

type memberRepository struct {
	*BaseRepository
}

func NewMemberRepository(base *BaseRepository) repository.MemberRepository {
	return &memberRepository{BaseRepository: base}
}

func (r *memberRepository) Get(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	query := `SELECT id, name, email, status, created_at FROM members WHERE id = $1`

	var member model.Member
	err := r.db.GetContext(ctx, &member, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("member")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

func (r *memberRepository) ListApplicable(ctx context.Context, rule model.Applicability, specific []uuid.UUID) ([]*model.Member, error) {
	query := `SELECT id, name, email, status, created_at FROM members`
	args := []interface{}{}

	switch rule {
	case model.ApplicabilityAll:
		// no filter
	case model.ApplicabilitySpecific:
		ids := make([]string, len(specific))
		for i, id := range specific {
			ids[i] = id.String()
		}
		query += ` WHERE id = ANY($1)`
		args = append(args, pq.StringArray(ids))
	default:
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY created_at ASC`

	var members []*model.Member
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list applicable members: %w", err)
	}
	return members, nil
}
