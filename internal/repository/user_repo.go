package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fyp-inbox/internal/db"
	"fyp-inbox/internal/domain"
)

// UserRepository expone el directorio de participantes (usuarios, roles y grupos).
// El directorio lo administra otra parte del sistema; aqui solo se lee.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetMany(ctx context.Context, ids []string) ([]domain.User, error)
	ListIDsByRoles(ctx context.Context, roles domain.RoleFlags) ([]string, error)
	// ListGroupMemberIDs devuelve los miembros del grupo con alguno de los roles,
	// o todos los miembros si roles esta vacio.
	ListGroupMemberIDs(ctx context.Context, groupID string, roles domain.RoleFlags) ([]string, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, display_name, is_student, is_advisor, is_judge, is_coordinator, created_at`

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, db.Classify("get user", err)
	}
	return u, nil
}

func (r *PgUserRepository) GetMany(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, db.Classify("get users", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, db.Classify("get users", err)
	}
	return users, nil
}

func (r *PgUserRepository) ListIDsByRoles(ctx context.Context, roles domain.RoleFlags) ([]string, error) {
	const query = `
		SELECT id
		FROM users
		WHERE ($1 AND is_student)
		   OR ($2 AND is_advisor)
		   OR ($3 AND is_judge)
		   OR ($4 AND is_coordinator)
		ORDER BY id
	`
	return r.collectIDs(ctx, "list users by role", query,
		roles.Student, roles.Advisor, roles.Judge, roles.Coordinator)
}

func (r *PgUserRepository) ListGroupMemberIDs(ctx context.Context, groupID string, roles domain.RoleFlags) ([]string, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists); err != nil {
		return nil, db.Classify("get group", err)
	}
	if !exists {
		return nil, fmt.Errorf("get group %s: %w", groupID, domain.ErrNotFound)
	}

	const query = `
		SELECT u.id
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		  AND (
			$2
			OR ($3 AND u.is_student)
			OR ($4 AND u.is_advisor)
			OR ($5 AND u.is_judge)
			OR ($6 AND u.is_coordinator)
		  )
		ORDER BY u.id
	`
	return r.collectIDs(ctx, "list group members", query,
		groupID, roles.Empty(), roles.Student, roles.Advisor, roles.Judge, roles.Coordinator)
}

func (r *PgUserRepository) collectIDs(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(op, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, db.Classify(op, err)
	}
	return ids, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.Roles.Student,
		&u.Roles.Advisor,
		&u.Roles.Judge,
		&u.Roles.Coordinator,
		&u.CreatedAt,
	)
	return u, err
}
