// Package quiz manages quiz questions, scores attempts and keeps every result.
package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/user"
)

var ErrNotFound = core.NewError(core.ErrNotFound, "question not found")

var NowFunc = time.Now // mockable

type (
	Repository interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestionByID(ctx context.Context, id string) (Question, error)
		// QueryQuestions returns the questions within scope, oldest first.
		QueryQuestions(ctx context.Context, scope core.Scope) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, id string) error

		CreateResult(ctx context.Context, r Result) (Result, error)
		// QueryResults returns userID's results within scope, oldest first.
		QueryResults(ctx context.Context, userID string, scope core.Scope) ([]Result, error)
	}

	Authorizer interface {
		Authorize(ctx context.Context, usr user.User, obj, act string) error
	}

	Announcer interface {
		Announce(ctx context.Context, a notification.Announcement) error
	}

	Service struct {
		repo      Repository
		auth      Authorizer
		announcer Announcer
		logger    core.Logger
	}
)

func NewService(repo Repository, auth Authorizer, announcer Announcer, logger core.Logger) *Service {
	return &Service{repo: repo, auth: auth, announcer: announcer, logger: logger}
}

// CreateQuestion stores a Question and announces it to every other user.
func (svc *Service) CreateQuestion(ctx context.Context, actor user.User, nq NewQuestion) (Question, error) {
	if err := svc.auth.Authorize(ctx, actor, admin.ObjContent, admin.ActWrite); err != nil {
		return Question{}, err
	}
	now := NowFunc().UTC()
	q, err := svc.repo.CreateQuestion(ctx, Question{
		Question:      nq.Question,
		Options:       nq.Options,
		CorrectOption: *nq.CorrectOption,
		Scope:         nq.Scope,
		UserID:        actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Question{}, errors.Wrap(err, "creating question")
	}

	if err := svc.announcer.Announce(ctx, notification.QuizAnnouncement(actor.ID, q.Scope)); err != nil {
		svc.logger.Error(fmt.Sprintf("announcing question %s", q.ID), err, actor)
	}
	return q, nil
}

func (svc *Service) UpdateQuestion(ctx context.Context, actor user.User, id string, uq UpdateQuestion) (Question, error) {
	if err := svc.auth.Authorize(ctx, actor, admin.ObjContent, admin.ActWrite); err != nil {
		return Question{}, err
	}
	q, err := svc.repo.GetQuestionByID(ctx, id)
	if err != nil {
		return Question{}, err
	}
	q.Question = uq.Question
	q.Options = uq.Options
	q.CorrectOption = *uq.CorrectOption
	q.Scope = uq.Scope
	q.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateQuestion(ctx, q)
}

func (svc *Service) DeleteQuestion(ctx context.Context, actor user.User, id string) error {
	if err := svc.auth.Authorize(ctx, actor, admin.ObjContent, admin.ActWrite); err != nil {
		return err
	}
	if _, err := svc.repo.GetQuestionByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteQuestion(ctx, id)
}

// Questions returns the question set of scope. Empty scope fields match anything.
func (svc *Service) Questions(ctx context.Context, scope core.Scope) ([]Question, error) {
	scope.Clean()
	return svc.repo.QueryQuestions(ctx, scope)
}

// SubmitAttempt scores a's answers against the question set of a.Scope and appends the Result.
// Unanswered questions score nothing.
func (svc *Service) SubmitAttempt(ctx context.Context, usr user.User, a Attempt) (Result, error) {
	questions, err := svc.repo.QueryQuestions(ctx, a.Scope)
	if err != nil {
		return Result{}, errors.Wrap(err, "loading questions")
	}

	s := NewSession()
	s.Select(a.Scope)
	s.List(questions)
	if err := s.Start(); err != nil {
		return Result{}, err
	}
	for id, opt := range a.Answers {
		if err := s.Answer(id, opt); err != nil {
			return Result{}, err
		}
	}

	return svc.repo.CreateResult(ctx, Result{
		UserID:         usr.ID,
		Scope:          a.Scope,
		Score:          Score(questions, a.Answers),
		TotalQuestions: len(questions),
		CreatedAt:      NowFunc().UTC(),
	})
}

// Results returns usr's attempts within scope, oldest first, with their stats.
func (svc *Service) Results(ctx context.Context, usr user.User, scope core.Scope) ([]ResultEntry, Stats, error) {
	scope.Clean()
	results, err := svc.repo.QueryResults(ctx, usr.ID, scope)
	if err != nil {
		return nil, Stats{}, err
	}
	entries := MarkFirstAttempts(results)
	return entries, ComputeStats(results), nil
}

// MarkFirstAttempts flags the earliest result of each (course, branch, semester); results must be oldest first.
func MarkFirstAttempts(results []Result) []ResultEntry {
	seen := make(map[core.Scope]bool)
	entries := make([]ResultEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, ResultEntry{
			Result:       r,
			Percentage:   r.Percentage(),
			FirstAttempt: !seen[r.Scope],
		})
		seen[r.Scope] = true
	}
	return entries
}

// ComputeStats averages the per-attempt percentages.
func ComputeStats(results []Result) Stats {
	st := Stats{Attempts: len(results)}
	if st.Attempts == 0 {
		return st
	}
	var sum float64
	for _, r := range results {
		if r.TotalQuestions > 0 {
			sum += float64(r.Score) / float64(r.TotalQuestions) * 100
		}
		if p := r.Percentage(); p > st.BestScore {
			st.BestScore = p
		}
	}
	st.AverageScore = int(sum/float64(st.Attempts) + 0.5)
	return st
}
