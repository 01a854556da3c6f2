package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/user"
)

type userRepository struct {
	db *userTable
	// rows removed along with their user, as the postgres foreign keys do
	roles         *roleTable
	notifications *notificationTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user, roles: db.role, notifications: db.notification}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.table {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = uuid.New().String()
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := repo.query()
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			if less, ok := compareUsers(users[i], users[j], ord); ok {
				return less
			}
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// compareUsers reports whether a sorts before b on ord; ok is false when they are equal on it.
func compareUsers(a, b user.User, ord core.DBOrdering) (less, ok bool) {
	switch ord.Field {
	case "email":
		if a.Email == b.Email {
			return false, false
		}
		less = a.Email < b.Email
	case "created_at":
		if a.CreatedAt.Equal(b.CreatedAt) {
			return false, false
		}
		less = a.CreatedAt.Before(b.CreatedAt)
	default:
		return false, false
	}
	if !ord.Ascending {
		less = !less
	}
	return less, true
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		origUsr.LastLogin = usr.LastLogin
	}
	origUsr.UpdatedAt = usr.UpdatedAt
	return *origUsr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.roles.mutex.Lock()
	defer repo.roles.mutex.Unlock()
	repo.notifications.mutex.Lock()
	defer repo.notifications.mutex.Unlock()

	deleted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		delete(repo.db.table, id)
		delete(repo.roles.table, id)
		deleted[id] = struct{}{}
	}
	for id, n := range repo.notifications.table {
		if _, ok := deleted[n.UserID]; ok {
			delete(repo.notifications.table, id)
		}
	}
	return nil
}
