package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/quiz"
)

type quizRepository struct {
	questions *questionTable
	results   *resultTable
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) *quizRepository {
	return &quizRepository{questions: db.question, results: db.result}
}

func (repo *quizRepository) CreateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	repo.questions.mutex.Lock()
	defer repo.questions.mutex.Unlock()

	q.ID = uuid.New().String()
	q.Options = append([]string(nil), q.Options...)
	repo.questions.table[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) GetQuestionByID(_ context.Context, id string) (quiz.Question, error) {
	repo.questions.mutex.RLock()
	defer repo.questions.mutex.RUnlock()

	if q, ok := repo.questions.table[id]; ok {
		return *q, nil
	}
	return quiz.Question{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryQuestions(_ context.Context, scope core.Scope) ([]quiz.Question, error) {
	repo.questions.mutex.RLock()
	defer repo.questions.mutex.RUnlock()

	questions := make([]quiz.Question, 0)
	for _, q := range repo.questions.table {
		if scope.Matches(q.Scope) {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].CreatedAt.Equal(questions[j].CreatedAt) {
			return questions[i].ID < questions[j].ID
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
	return questions, nil
}

func (repo *quizRepository) UpdateQuestion(_ context.Context, q quiz.Question) (quiz.Question, error) {
	repo.questions.mutex.Lock()
	defer repo.questions.mutex.Unlock()

	orig, ok := repo.questions.table[q.ID]
	if !ok {
		return quiz.Question{}, quiz.ErrNotFound
	}
	q.UserID = orig.UserID
	q.CreatedAt = orig.CreatedAt
	q.Options = append([]string(nil), q.Options...)
	repo.questions.table[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) DeleteQuestion(_ context.Context, id string) error {
	repo.questions.mutex.Lock()
	defer repo.questions.mutex.Unlock()
	delete(repo.questions.table, id)
	return nil
}

func (repo *quizRepository) CreateResult(_ context.Context, r quiz.Result) (quiz.Result, error) {
	repo.results.mutex.Lock()
	defer repo.results.mutex.Unlock()

	r.ID = uuid.New().String()
	repo.results.rows = append(repo.results.rows, r)
	return r, nil
}

// QueryResults keeps insertion order, which is chronological.
func (repo *quizRepository) QueryResults(_ context.Context, userID string, scope core.Scope) ([]quiz.Result, error) {
	repo.results.mutex.RLock()
	defer repo.results.mutex.RUnlock()

	results := make([]quiz.Result, 0)
	for _, r := range repo.results.rows {
		if r.UserID == userID && scope.Matches(r.Scope) {
			results = append(results, r)
		}
	}
	return results, nil
}
