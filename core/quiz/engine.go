package quiz

import (
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
)

var (
	ErrNoQuestions   = core.NewError(core.ErrNotFound, "No questions available for this selection")
	ErrIncomplete    = core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "Please answer all questions before submitting"})
	ErrInvalidState  = core.NewValidationError(errors.New("quiz is not in progress"))
	ErrUnknownAnswer = core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "answer does not match any question"})
)

// Score gives one point per question whose recorded answer equals its correct option.
func Score(questions []Question, answers map[string]int) int {
	score := 0
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && a == q.CorrectOption {
			score++
		}
	}
	return score
}

type State int

const (
	StateSelecting State = iota
	StateListing
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateListing:
		return "listing"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Session walks one user through a quiz:
// Selecting -> Listing -> InProgress -> Completed.
type Session struct {
	state     State
	scope     core.Scope
	questions []Question
	index     int
	answers   map[string]int
	score     int
}

func NewSession() *Session {
	return &Session{answers: make(map[string]int)}
}

func (s *Session) State() State      { return s.state }
func (s *Session) Scope() core.Scope { return s.scope }
func (s *Session) Index() int        { return s.index }
func (s *Session) Score() int        { return s.score }

// Select starts over for a new (course, branch, semester).
func (s *Session) Select(scope core.Scope) {
	*s = Session{state: StateSelecting, scope: scope, answers: make(map[string]int)}
}

// List loads the question set of the selected scope.
func (s *Session) List(questions []Question) {
	s.questions = questions
	s.state = StateListing
}

// Start begins the quiz at the first question with no answers.
func (s *Session) Start() error {
	if s.state != StateListing && s.state != StateCompleted {
		return ErrInvalidState
	}
	if len(s.questions) == 0 {
		return ErrNoQuestions
	}
	s.state = StateInProgress
	s.index = 0
	s.score = 0
	s.answers = make(map[string]int)
	return nil
}

// Current returns the question at the current index.
func (s *Session) Current() (Question, bool) {
	if s.state != StateInProgress {
		return Question{}, false
	}
	return s.questions[s.index], true
}

func (s *Session) Next() {
	if s.state == StateInProgress && s.index < len(s.questions)-1 {
		s.index++
	}
}

func (s *Session) Previous() {
	if s.state == StateInProgress && s.index > 0 {
		s.index--
	}
}

// Answer records option for questionID, replacing any previous answer.
func (s *Session) Answer(questionID string, option int) error {
	if s.state != StateInProgress {
		return ErrInvalidState
	}
	if option < 0 || option >= OptionCount {
		return core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "answer must be between 0 and 3"})
	}
	for _, q := range s.questions {
		if q.ID == questionID {
			s.answers[questionID] = option
			return nil
		}
	}
	return ErrUnknownAnswer
}

func (s *Session) Answered() int { return len(s.answers) }

// Complete scores the quiz once every question has an answer.
func (s *Session) Complete() (int, error) {
	if s.state != StateInProgress {
		return 0, ErrInvalidState
	}
	if len(s.answers) < len(s.questions) {
		return 0, ErrIncomplete
	}
	s.score = Score(s.questions, s.answers)
	s.state = StateCompleted
	return s.score, nil
}
