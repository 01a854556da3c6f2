// Package sqlxrepos implements the repositories on Postgres with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func get(ctx context.Context, db *sqlx.DB, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return db.GetContext(ctx, dest, query, args...)
}

func selectRows(ctx context.Context, db *sqlx.DB, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return db.SelectContext(ctx, dest, query, args...)
}

func exec(ctx context.Context, db *sqlx.DB, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return db.ExecContext(ctx, query, args...)
}

// affected fails with notFound when res changed no row.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// scopeFilter matches the non-empty fields of a course/branch/semester triple.
func scopeFilter(course, branch, semester string) sq.Eq {
	eq := sq.Eq{}
	if course != "" {
		eq["course"] = course
	}
	if branch != "" {
		eq["branch"] = branch
	}
	if semester != "" {
		eq["semester"] = semester
	}
	return eq
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
