package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/user"
)

var userColumns = []string{"id", "email", "password_hash", "created_at", "updated_at", "last_login"}

// orderable user columns
var userOrderings = map[string]bool{"email": true, "created_at": true}

type userRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := exec(ctx, repo.db, psql.Insert("users").
		Columns("id", "email", "password_hash", "created_at", "updated_at").
		Values(usr.ID, usr.Email, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, where sq.Eq) (user.User, error) {
	var row userRow
	if err := get(ctx, repo.db, &row, psql.Select(userColumns...).From("users").Where(where)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email})
}

func (repo *userRepository) QueryUsers(ctx context.Context, ordering []core.DBOrdering) ([]user.User, error) {
	b := psql.Select(userColumns...).From("users")
	for _, ord := range ordering {
		if userOrderings[ord.Field] {
			b = b.OrderBy(ord.String())
		}
	}
	b = b.OrderBy("id ASC")

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// UpdateUser only saves set fields.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	set := sq.Eq{"updated_at": usr.UpdatedAt}
	if usr.PasswordHash != nil {
		set["password_hash"] = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		set["last_login"] = usr.LastLogin
	}
	res, err := exec(ctx, repo.db, psql.Update("users").SetMap(set).Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err := affected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := exec(ctx, repo.db, psql.Delete("users").Where(sq.Eq{"id": ids}))
	return errors.Wrap(err, "deleting users")
}
