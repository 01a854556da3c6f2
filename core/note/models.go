package note

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsmart/core"
)

type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	PDFPath string `json:"pdf_path,omitempty"`
	core.Scope
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"-"`          // UTC
}

// NewNote contains information needed to create a Note.
type NewNote struct {
	Title   string `json:"title" form:"title" validate:"required,max=200"`
	Content string `json:"content" form:"content" validate:"required"`
	core.Scope
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Content = core.CleanString(nn.Content)
	nn.Scope.Clean()
	return validate.Struct(nn)
}

// UpdateNote replaces the editable fields of a Note. The PDF is kept unless a new one is provided.
type UpdateNote NewNote

func (un *UpdateNote) Validate(validate *validator.Validate) error {
	return (*NewNote)(un).Validate(validate)
}

// PDF is an uploaded document attached to a Note.
type PDF struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
