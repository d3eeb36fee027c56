//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks

package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"fyp-inbox/internal/domain"
	"fyp-inbox/internal/repository"
)

// Directory resuelve identidades, roles y membresías de grupo.
type Directory interface {
	ResolveUser(ctx context.Context, id string) (domain.User, error)
	// ResolveUsers devuelve los usuarios indexados por id; falla con
	// domain.ErrNotFound si alguno no existe.
	ResolveUsers(ctx context.Context, ids []string) (map[string]domain.User, error)
	UsersMatchingRole(ctx context.Context, roles domain.RoleFlags, groupID string) ([]string, error)
}

// RepoDirectory implementa Directory sobre UserRepository.
type RepoDirectory struct {
	users repository.UserRepository
}

func NewRepoDirectory(users repository.UserRepository) *RepoDirectory {
	return &RepoDirectory{users: users}
}

func (d *RepoDirectory) ResolveUser(ctx context.Context, id string) (domain.User, error) {
	return d.users.GetByID(ctx, id)
}

func (d *RepoDirectory) ResolveUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	ids = lo.Uniq(ids)
	users, err := d.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(users, func(u domain.User) string { return u.ID })
	missing := lo.Filter(ids, func(id string, _ int) bool {
		_, ok := byID[id]
		return !ok
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("users %v: %w", missing, domain.ErrNotFound)
	}
	return byID, nil
}

// UsersMatchingRole evalua el predicado de roles, opcionalmente acotado a un grupo.
func (d *RepoDirectory) UsersMatchingRole(ctx context.Context, roles domain.RoleFlags, groupID string) ([]string, error) {
	if groupID != "" {
		return d.users.ListGroupMemberIDs(ctx, groupID, roles)
	}
	return d.users.ListIDsByRoles(ctx, roles)
}
