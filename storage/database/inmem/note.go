package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/note"
)

type noteRepository struct {
	db *noteTable
}

var _ note.Repository = (*noteRepository)(nil)

func NewNoteRepository(db *DB) *noteRepository {
	return &noteRepository{db: db.note}
}

func (repo *noteRepository) CreateNote(_ context.Context, n note.Note) (note.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n.ID = uuid.New().String()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *noteRepository) GetNoteByID(_ context.Context, id string) (note.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return note.Note{}, note.ErrNotFound
}

func (repo *noteRepository) QueryNotes(_ context.Context, scope core.Scope) ([]note.Note, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notes := make([]note.Note, 0)
	for _, n := range repo.db.table {
		if scope.Matches(n.Scope) {
			notes = append(notes, *n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (repo *noteRepository) UpdateNote(_ context.Context, n note.Note) (note.Note, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[n.ID]
	if !ok {
		return note.Note{}, note.ErrNotFound
	}
	n.UserID = orig.UserID
	n.CreatedAt = orig.CreatedAt
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *noteRepository) DeleteNote(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}
