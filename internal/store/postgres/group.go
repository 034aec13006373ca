package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kadro-hq/kadro/internal/domain"
)

// GroupRepo persists groups with a member join table so membership can be
// edited without rewriting the group row.
type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("groupRepo.Create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO groups (id, name, description, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.Name, g.Description, g.CreatedBy, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("groupRepo.Create: %w", err)
	}

	for _, userID := range g.MemberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			g.ID, userID,
		); err != nil {
			return fmt.Errorf("groupRepo.Create: member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("groupRepo.Create: commit: %w", err)
	}

	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	var g domain.Group

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_by, created_at, updated_at
		 FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("groupRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("groupRepo.GetByID: %w", err)
	}

	members, err := r.ResolveMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.GetByID: %w", err)
	}
	g.MemberIDs = members

	return &g, nil
}

func (r *GroupRepo) List(ctx context.Context) ([]*domain.Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name, g.description, g.created_by, g.created_at, g.updated_at
		 FROM groups g ORDER BY g.name LIMIT 1000`)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.List: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("groupRepo.List: scan: %w", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("groupRepo.List: rows: %w", err)
	}

	for _, g := range groups {
		members, err := r.ResolveMembers(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("groupRepo.List: %w", err)
		}
		g.MemberIDs = members
	}

	return groups, nil
}

// ResolveMembers returns the current member set. An unknown group id is
// ErrNotFound; a known empty group resolves to an empty set.
func (r *GroupRepo) ResolveMembers(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("groupRepo.ResolveMembers: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("groupRepo.ResolveMembers: %w", domain.ErrNotFound)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.ResolveMembers: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("groupRepo.ResolveMembers: scan: %w", err)
		}
		members = append(members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("groupRepo.ResolveMembers: rows: %w", err)
	}

	return members, nil
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := r.GetByID(ctx, groupID); err != nil {
		return fmt.Errorf("groupRepo.AddMember: %w", err)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("groupRepo.AddMember: %w", err)
	}

	return nil
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("groupRepo.RemoveMember: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("groupRepo.RemoveMember: %w", domain.ErrNotFound)
	}

	return nil
}
