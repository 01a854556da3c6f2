package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/quiz"
)

var (
	questionColumns = []string{"id", "question", "options", "correct_option", "course", "branch", "semester", "user_id", "created_at", "updated_at"}
	resultColumns   = []string{"id", "user_id", "course", "branch", "semester", "score", "total_questions", "created_at"}
)

type questionRow struct {
	ID            string         `db:"id"`
	Question      string         `db:"question"`
	Options       pq.StringArray `db:"options"`
	CorrectOption int            `db:"correct_option"`
	Course        string         `db:"course"`
	Branch        string         `db:"branch"`
	Semester      string         `db:"semester"`
	UserID        string         `db:"user_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r questionRow) toQuestion() quiz.Question {
	return quiz.Question{
		ID:            r.ID,
		Question:      r.Question,
		Options:       []string(r.Options),
		CorrectOption: r.CorrectOption,
		Scope:         core.Scope{Course: r.Course, Branch: r.Branch, Semester: r.Semester},
		UserID:        r.UserID,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type resultRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Course         string    `db:"course"`
	Branch         string    `db:"branch"`
	Semester       string    `db:"semester"`
	Score          int       `db:"score"`
	TotalQuestions int       `db:"total_questions"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r resultRow) toResult() quiz.Result {
	return quiz.Result{
		ID:             r.ID,
		UserID:         r.UserID,
		Scope:          core.Scope{Course: r.Course, Branch: r.Branch, Semester: r.Semester},
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *sqlx.DB) *quizRepository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	q.ID = uuid.New().String()
	_, err := exec(ctx, repo.db, psql.Insert("quiz_questions").
		Columns(questionColumns...).
		Values(q.ID, q.Question, pq.Array(q.Options), q.CorrectOption, q.Course, q.Branch, q.Semester, q.UserID, q.CreatedAt, q.UpdatedAt))
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo *quizRepository) GetQuestionByID(ctx context.Context, id string) (quiz.Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quiz.Question{}, quiz.ErrNotFound
	}
	var row questionRow
	err := get(ctx, repo.db, &row, psql.Select(questionColumns...).From("quiz_questions").Where(sq.Eq{"id": id}))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Question{}, quiz.ErrNotFound
		}
		return quiz.Question{}, errors.Wrap(err, "selecting question")
	}
	return row.toQuestion(), nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, scope core.Scope) ([]quiz.Question, error) {
	b := psql.Select(questionColumns...).From("quiz_questions").
		Where(scopeFilter(scope.Course, scope.Branch, scope.Semester)).
		OrderBy("created_at ASC", "id ASC")

	var rows []questionRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}
	questions := make([]quiz.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.toQuestion())
	}
	return questions, nil
}

func (repo *quizRepository) UpdateQuestion(ctx context.Context, q quiz.Question) (quiz.Question, error) {
	res, err := exec(ctx, repo.db, psql.Update("quiz_questions").
		SetMap(sq.Eq{
			"question":       q.Question,
			"options":        pq.Array(q.Options),
			"correct_option": q.CorrectOption,
			"course":         q.Course,
			"branch":         q.Branch,
			"semester":       q.Semester,
			"updated_at":     q.UpdatedAt,
		}).
		Where(sq.Eq{"id": q.ID}))
	if err != nil {
		return quiz.Question{}, errors.Wrap(err, "updating question")
	}
	if err := affected(res, quiz.ErrNotFound); err != nil {
		return quiz.Question{}, err
	}
	return repo.GetQuestionByID(ctx, q.ID)
}

func (repo *quizRepository) DeleteQuestion(ctx context.Context, id string) error {
	_, err := exec(ctx, repo.db, psql.Delete("quiz_questions").Where(sq.Eq{"id": id}))
	return errors.Wrap(err, "deleting question")
}

func (repo *quizRepository) CreateResult(ctx context.Context, r quiz.Result) (quiz.Result, error) {
	r.ID = uuid.New().String()
	_, err := exec(ctx, repo.db, psql.Insert("quiz_results").
		Columns(resultColumns...).
		Values(r.ID, r.UserID, r.Course, r.Branch, r.Semester, r.Score, r.TotalQuestions, r.CreatedAt))
	if err != nil {
		return quiz.Result{}, errors.Wrap(err, "inserting result")
	}
	return r, nil
}

func (repo *quizRepository) QueryResults(ctx context.Context, userID string, scope core.Scope) ([]quiz.Result, error) {
	where := scopeFilter(scope.Course, scope.Branch, scope.Semester)
	where["user_id"] = userID
	b := psql.Select(resultColumns...).From("quiz_results").
		Where(where).
		OrderBy("created_at ASC", "id ASC")

	var rows []resultRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting results")
	}
	results := make([]quiz.Result, 0, len(rows))
	for _, r := range rows {
		results = append(results, r.toResult())
	}
	return results, nil
}
