package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsmart/core"
)

// notification types
const (
	TypeNote = "note"
	TypeQuiz = "quiz"
)

// Notification belongs to exactly one recipient. Only Read ever changes, from false to true.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Announcement is fanned out to every user except ExcludeUserID.
type Announcement struct {
	ExcludeUserID string `json:"exclude_user_id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Type          string `json:"type"`
}

// FanoutResult reports how many recipients were attempted and how many got their notification row.
type FanoutResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
}

// EmailNotice is a one-off notification email.
type EmailNotice struct {
	Email   string `json:"email" validate:"required,email"`
	Type    string `json:"type" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Details string `json:"details"`
}

func (en *EmailNotice) Validate(validate *validator.Validate) error {
	en.Email = core.CleanString(en.Email, true /* lower */)
	en.Type = core.CleanString(en.Type, true /* lower */)
	en.Title = core.CleanString(en.Title)
	en.Details = core.CleanString(en.Details)
	return validate.Struct(en)
}

// NoteAnnouncement describes a newly added note.
func NoteAnnouncement(authorID, title string, scope core.Scope) Announcement {
	return Announcement{
		ExcludeUserID: authorID,
		Title:         "New Study Material Available",
		Content:       `A new note "` + title + `" has been added for ` + scope.String(),
		Type:          TypeNote,
	}
}

// QuizAnnouncement describes a newly added quiz question.
func QuizAnnouncement(authorID string, scope core.Scope) Announcement {
	return Announcement{
		ExcludeUserID: authorID,
		Title:         "New Quiz Question Available",
		Content:       "A new quiz question has been added for " + scope.String(),
		Type:          TypeQuiz,
	}
}
