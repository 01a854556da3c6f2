package quiz

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsmart/core"
)

func TestScore(t *testing.T) {
	questions := []Question{{ID: "1", CorrectOption: 0}, {ID: "2", CorrectOption: 2}}

	tests := []struct {
		name    string
		answers map[string]int
		want    int
	}{
		{"one right", map[string]int{"1": 0, "2": 1}, 1},
		{"all right", map[string]int{"1": 0, "2": 2}, 2},
		{"no answers", map[string]int{}, 0},
		{"nil answers", nil, 0},
		{"unknown ids ignored", map[string]int{"3": 0}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(questions, tc.answers))
		})
	}
}

func TestSession(t *testing.T) {
	questions := []Question{{ID: "a", CorrectOption: 1}, {ID: "b", CorrectOption: 3}, {ID: "c", CorrectOption: 0}}
	scope := core.Scope{Course: "BCA", Branch: "Mechanical", Semester: "8th"}

	s := NewSession()
	s.Select(scope)
	assert.Equal(t, StateSelecting, s.State())
	assert.Equal(t, scope, s.Scope())
	assert.Equal(t, ErrInvalidState, s.Start())

	s.List(questions)
	assert.Equal(t, StateListing, s.State())
	require.NoError(t, s.Start())
	assert.Equal(t, "in_progress", s.State().String())

	q, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "a", q.ID)

	s.Previous() // clamped at the first question
	assert.Equal(t, 0, s.Index())
	s.Next()
	s.Next()
	s.Next() // clamped at the last question
	assert.Equal(t, 2, s.Index())

	require.NoError(t, s.Answer("a", 1))
	require.NoError(t, s.Answer("b", 0))
	require.NoError(t, s.Answer("b", 3)) // replaced
	assert.Equal(t, 2, s.Answered())

	_, err := s.Complete()
	assert.Equal(t, ErrIncomplete, err)

	var verr *core.ValidationError
	assert.True(t, errors.As(s.Answer("a", 4), &verr))
	assert.True(t, errors.As(s.Answer("a", -1), &verr))
	assert.Equal(t, ErrUnknownAnswer, s.Answer("zzz", 0))

	require.NoError(t, s.Answer("c", 2))
	score, err := s.Complete()
	require.NoError(t, err)
	assert.Equal(t, 2, score)
	assert.Equal(t, StateCompleted, s.State())
	_, ok = s.Current()
	assert.False(t, ok)
	assert.Equal(t, ErrInvalidState, s.Answer("a", 0))

	// retaking starts fresh
	require.NoError(t, s.Start())
	assert.Zero(t, s.Answered())
	assert.Zero(t, s.Score())
}

func TestSession_NoQuestions(t *testing.T) {
	s := NewSession()
	s.Select(core.Scope{})
	s.List(nil)
	err := s.Start()
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Equal(t, StateListing, s.State())
}

func TestResult_Percentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{5, 5, 100},
		{0, 0, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Result{Score: tc.score, TotalQuestions: tc.total}.Percentage(), "%d/%d", tc.score, tc.total)
	}
}

func TestMarkFirstAttemptsAndStats(t *testing.T) {
	s1 := core.Scope{Course: "B.Tech", Branch: "Electronics", Semester: "1st"}
	s2 := core.Scope{Course: "MCA", Branch: "Electronics", Semester: "1st"}
	results := []Result{
		{ID: "r1", Scope: s1, Score: 1, TotalQuestions: 2},
		{ID: "r2", Scope: s2, Score: 3, TotalQuestions: 3},
		{ID: "r3", Scope: s1, Score: 2, TotalQuestions: 2},
		{ID: "r4", Scope: s1, Score: 0, TotalQuestions: 3},
	}

	entries := MarkFirstAttempts(results)
	require.Len(t, entries, 4)
	first := make([]bool, 0, 4)
	for _, e := range entries {
		first = append(first, e.FirstAttempt)
	}
	assert.Equal(t, []bool{true, true, false, false}, first)
	assert.Equal(t, 50, entries[0].Percentage)

	// (50 + 100 + 100 + 0) / 4
	assert.Equal(t, Stats{Attempts: 4, AverageScore: 63, BestScore: 100}, ComputeStats(results))
	assert.Equal(t, Stats{}, ComputeStats(nil))
}
