package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/learnsmart/core/admin"
)

type roleRepository struct {
	db *roleTable
}

var _ admin.Repository = (*roleRepository)(nil)

func NewRoleRepository(db *DB) *roleRepository {
	return &roleRepository{db: db.role}
}

func (repo *roleRepository) CreateRole(_ context.Context, role admin.Role) (admin.Role, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[role.UserID]; ok {
		return admin.Role{}, admin.ErrAlreadyExists
	}
	role.Email = ""
	repo.db.table[role.UserID] = &role
	return role, nil
}

func (repo *roleRepository) GetRole(_ context.Context, userID string) (admin.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if role, ok := repo.db.table[userID]; ok {
		return *role, nil
	}
	return admin.Role{}, admin.ErrNotFound
}

func (repo *roleRepository) QueryRoles(_ context.Context) ([]admin.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	roles := make([]admin.Role, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		roles = append(roles, *r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].CreatedAt.After(roles[j].CreatedAt) })
	return roles, nil
}

func (repo *roleRepository) DeleteRole(_ context.Context, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, userID)
	return nil
}
