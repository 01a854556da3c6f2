package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core/admin"
)

var roleColumns = []string{"user_id", "role", "created_by", "created_at"}

type roleRow struct {
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

func (r roleRow) toRole() admin.Role {
	return admin.Role{UserID: r.UserID, Role: r.Role, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt.UTC()}
}

type roleRepository struct {
	db *sqlx.DB
}

var _ admin.Repository = (*roleRepository)(nil)

func NewRoleRepository(db *sqlx.DB) *roleRepository {
	return &roleRepository{db: db}
}

func (repo *roleRepository) CreateRole(ctx context.Context, role admin.Role) (admin.Role, error) {
	_, err := exec(ctx, repo.db, psql.Insert("admin_roles").
		Columns(roleColumns...).
		Values(role.UserID, role.Role, role.CreatedBy, role.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return admin.Role{}, admin.ErrAlreadyExists
		}
		return admin.Role{}, errors.Wrap(err, "inserting role")
	}
	role.Email = ""
	return role, nil
}

func (repo *roleRepository) GetRole(ctx context.Context, userID string) (admin.Role, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return admin.Role{}, admin.ErrNotFound
	}
	var row roleRow
	err := get(ctx, repo.db, &row, psql.Select(roleColumns...).From("admin_roles").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return admin.Role{}, admin.ErrNotFound
		}
		return admin.Role{}, errors.Wrap(err, "selecting role")
	}
	return row.toRole(), nil
}

func (repo *roleRepository) QueryRoles(ctx context.Context) ([]admin.Role, error) {
	var rows []roleRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select(roleColumns...).From("admin_roles").OrderBy("created_at ASC")); err != nil {
		return nil, errors.Wrap(err, "selecting roles")
	}
	roles := make([]admin.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, r.toRole())
	}
	return roles, nil
}

func (repo *roleRepository) DeleteRole(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return nil
	}
	_, err := exec(ctx, repo.db, psql.Delete("admin_roles").Where(sq.Eq{"user_id": userID}))
	return errors.Wrap(err, "deleting role")
}
