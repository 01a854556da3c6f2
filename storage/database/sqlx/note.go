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
	"github.com/trezcool/learnsmart/core/note"
)

var noteColumns = []string{"id", "title", "content", "pdf_path", "course", "branch", "semester", "user_id", "created_at", "updated_at"}

type noteRow struct {
	ID        string         `db:"id"`
	Title     string         `db:"title"`
	Content   string         `db:"content"`
	PDFPath   sql.NullString `db:"pdf_path"`
	Course    string         `db:"course"`
	Branch    string         `db:"branch"`
	Semester  string         `db:"semester"`
	UserID    string         `db:"user_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r noteRow) toNote() note.Note {
	return note.Note{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		PDFPath:   r.PDFPath.String,
		Scope:     core.Scope{Course: r.Course, Branch: r.Branch, Semester: r.Semester},
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type noteRepository struct {
	db *sqlx.DB
}

var _ note.Repository = (*noteRepository)(nil)

func NewNoteRepository(db *sqlx.DB) *noteRepository {
	return &noteRepository{db: db}
}

func (repo *noteRepository) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	n.ID = uuid.New().String()
	_, err := exec(ctx, repo.db, psql.Insert("notes").
		Columns(noteColumns...).
		Values(n.ID, n.Title, n.Content, nullString(n.PDFPath), n.Course, n.Branch, n.Semester, n.UserID, n.CreatedAt, n.UpdatedAt))
	if err != nil {
		return note.Note{}, errors.Wrap(err, "inserting note")
	}
	return n, nil
}

func (repo *noteRepository) GetNoteByID(ctx context.Context, id string) (note.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return note.Note{}, note.ErrNotFound
	}
	var row noteRow
	if err := get(ctx, repo.db, &row, psql.Select(noteColumns...).From("notes").Where(sq.Eq{"id": id})); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return note.Note{}, note.ErrNotFound
		}
		return note.Note{}, errors.Wrap(err, "selecting note")
	}
	return row.toNote(), nil
}

func (repo *noteRepository) QueryNotes(ctx context.Context, scope core.Scope) ([]note.Note, error) {
	b := psql.Select(noteColumns...).From("notes").
		Where(scopeFilter(scope.Course, scope.Branch, scope.Semester)).
		OrderBy("created_at DESC", "id DESC")

	var rows []noteRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting notes")
	}
	notes := make([]note.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.toNote())
	}
	return notes, nil
}

func (repo *noteRepository) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	res, err := exec(ctx, repo.db, psql.Update("notes").
		SetMap(sq.Eq{
			"title":      n.Title,
			"content":    n.Content,
			"pdf_path":   nullString(n.PDFPath),
			"course":     n.Course,
			"branch":     n.Branch,
			"semester":   n.Semester,
			"updated_at": n.UpdatedAt,
		}).
		Where(sq.Eq{"id": n.ID}))
	if err != nil {
		return note.Note{}, errors.Wrap(err, "updating note")
	}
	if err := affected(res, note.ErrNotFound); err != nil {
		return note.Note{}, err
	}
	return repo.GetNoteByID(ctx, n.ID)
}

func (repo *noteRepository) DeleteNote(ctx context.Context, id string) error {
	_, err := exec(ctx, repo.db, psql.Delete("notes").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting note")
}
