// Package note manages course-scoped study notes and their PDF attachments.
package note

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/user"
)

const pdfContentType = "application/pdf"

var NowFunc = time.Now // mockable

var (
	// errors
	ErrNotFound    = core.NewError(core.ErrNotFound, "note not found")
	ErrNoPDF       = core.NewError(core.ErrNotFound, "note has no PDF")
	errPDFRequired = errors.New("only PDF files are allowed")
)

type (
	Repository interface {
		CreateNote(ctx context.Context, n Note) (Note, error)
		GetNoteByID(ctx context.Context, id string) (Note, error)
		// QueryNotes returns the notes within scope, newest first.
		QueryNotes(ctx context.Context, scope core.Scope) ([]Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNote(ctx context.Context, id string) error
	}

	Authorizer interface {
		Authorize(ctx context.Context, usr user.User, obj, act string) error
	}

	Announcer interface {
		Announce(ctx context.Context, a notification.Announcement) error
	}

	Service struct {
		repo      Repository
		storage   core.FileStorage
		auth      Authorizer
		announcer Announcer
		logger    core.Logger
	}
)

func NewService(repo Repository, storage core.FileStorage, auth Authorizer, announcer Announcer, logger core.Logger) *Service {
	return &Service{repo: repo, storage: storage, auth: auth, announcer: announcer, logger: logger}
}

// Create stores a Note authored by actor, uploads its PDF if any, and announces it to every other user.
func (svc *Service) Create(ctx context.Context, actor user.User, nn NewNote, pdf *PDF) (Note, error) {
	if err := svc.auth.Authorize(ctx, actor, admin.ObjContent, admin.ActWrite); err != nil {
		return Note{}, err
	}

	n := Note{
		Title:   nn.Title,
		Content: nn.Content,
		Scope:   nn.Scope,
		UserID:  actor.ID,
	}
	if pdf != nil {
		p, err := svc.uploadPDF(ctx, actor.ID, pdf)
		if err != nil {
			return Note{}, err
		}
		n.PDFPath = p
	}

	n.CreatedAt = NowFunc().UTC()
	n.UpdatedAt = n.CreatedAt
	created, err := svc.repo.CreateNote(ctx, n)
	if err != nil {
		svc.removePDF(ctx, n.PDFPath)
		return Note{}, errors.Wrap(err, "creating note")
	}
	n = created

	if err := svc.announcer.Announce(ctx, notification.NoteAnnouncement(actor.ID, n.Title, n.Scope)); err != nil {
		svc.logger.Error(fmt.Sprintf("announcing note %s", n.ID), err, actor)
	}
	return n, nil
}

// Update replaces a Note's fields. A new PDF replaces the stored one, which is then removed.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, un UpdateNote, pdf *PDF) (Note, error) {
	if err := svc.auth.Authorize(ctx, actor, admin.ObjContent, admin.ActWrite); err != nil {
		return Note{}, err
	}
	n, err := svc.repo.GetNoteByID(ctx, id)
	if err != nil {
		return Note{}, err
	}

	oldPDF := ""
	if pdf != nil {
		p, err := svc.uploadPDF(ctx, actor.ID, pdf)
		if err != nil {
			return Note{}, err
		}
		oldPDF, n.PDFPath = n.PDFPath, p
	}
	n.Title = un.Title
	n.Content = un.Content
	n.Scope = un.Scope
	n.UpdatedAt = NowFunc().UTC()

	updated, err := svc.repo.UpdateNote(ctx, n)
	if err != nil {
		if pdf != nil {
			svc.removePDF(ctx, n.PDFPath)
		}
		return Note{}, errors.Wrap(err, "updating note")
	}
	svc.removePDF(ctx, oldPDF)
	return updated, nil
}

// Delete removes a Note and, best-effort, its PDF.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if err := svc.auth.Authorize(ctx, actor, admin.ObjContent, admin.ActWrite); err != nil {
		return err
	}
	n, err := svc.repo.GetNoteByID(ctx, id)
	if err != nil {
		return err
	}
	svc.removePDF(ctx, n.PDFPath)
	return svc.repo.DeleteNote(ctx, id)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Note, error) {
	return svc.repo.GetNoteByID(ctx, id)
}

// Query returns the notes within scope, newest first. Empty scope fields match anything.
func (svc *Service) Query(ctx context.Context, scope core.Scope) ([]Note, error) {
	scope.Clean()
	return svc.repo.QueryNotes(ctx, scope)
}

// DownloadPDF opens the PDF attached to note id. The caller closes the reader.
func (svc *Service) DownloadPDF(ctx context.Context, id string) (Note, io.ReadCloser, error) {
	n, err := svc.repo.GetNoteByID(ctx, id)
	if err != nil {
		return Note{}, nil, err
	}
	if n.PDFPath == "" {
		return Note{}, nil, ErrNoPDF
	}
	rc, err := svc.storage.Download(ctx, n.PDFPath)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Note{}, nil, ErrNoPDF
		}
		return Note{}, nil, core.NewUpstreamError("storage", "Failed to download PDF", err)
	}
	return n, rc, nil
}

func (svc *Service) uploadPDF(ctx context.Context, userID string, pdf *PDF) (string, error) {
	if !isPDF(pdf) {
		return "", core.NewValidationError(errPDFRequired, core.FieldError{Field: "pdf", Error: errPDFRequired.Error()})
	}
	p := path.Join(userID, uuid.New().String()+".pdf")
	if err := svc.storage.Upload(ctx, p, pdf.Body, pdfContentType); err != nil {
		return "", core.NewUpstreamError("storage", "Failed to upload PDF", err)
	}
	return p, nil
}

func (svc *Service) removePDF(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if err := svc.storage.Remove(ctx, p); err != nil && !errors.Is(err, core.ErrNotFound) {
		svc.logger.Warn(fmt.Sprintf("removing PDF %s", p), err)
	}
}

func isPDF(pdf *PDF) bool {
	if pdf.ContentType != "" {
		mt, _, err := mime.ParseMediaType(pdf.ContentType)
		return err == nil && mt == pdfContentType
	}
	return path.Ext(pdf.Filename) == ".pdf"
}
