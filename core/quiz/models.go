package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsmart/core"
)

// OptionCount is the number of choices every question offers.
const OptionCount = 4

type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	core.Scope
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"-"`          // UTC
}

// PublicQuestion is a Question as shown to quiz takers, without its answer.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	core.Scope
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Question: q.Question, Options: q.Options, Scope: q.Scope, CreatedAt: q.CreatedAt}
}

// NewQuestion contains information needed to create a Question.
type NewQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"len=4,dive,required"`
	CorrectOption *int     `json:"correct_option" validate:"required,min=0,max=3"`
	core.Scope
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Question = core.CleanString(nq.Question)
	for i := range nq.Options {
		nq.Options[i] = core.CleanString(nq.Options[i])
	}
	nq.Scope.Clean()
	return validate.Struct(nq)
}

// UpdateQuestion replaces every editable field of a Question.
type UpdateQuestion NewQuestion

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	return (*NewQuestion)(uq).Validate(validate)
}

// Result is one immutable quiz attempt.
type Result struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	core.Scope
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

// Percentage is the score out of 100, rounded half away from zero.
func (r Result) Percentage() int {
	if r.TotalQuestions <= 0 {
		return 0
	}
	return roundDiv(r.Score*100, r.TotalQuestions)
}

// ResultEntry flags the earliest attempt of its (course, branch, semester).
type ResultEntry struct {
	Result
	Percentage   int  `json:"percentage"`
	FirstAttempt bool `json:"first_attempt"`
}

type Stats struct {
	Attempts     int `json:"attempts"`
	AverageScore int `json:"average_score"` // percent
	BestScore    int `json:"best_score"`    // percent
}

// Attempt carries a user's answers for the questions of Scope, keyed by question id.
type Attempt struct {
	core.Scope
	Answers map[string]int `json:"answers"`
}

func (a *Attempt) Validate(validate *validator.Validate) error {
	a.Scope.Clean()
	return validate.Struct(a)
}

func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}
