package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/note"
)

const pdfFormField = "pdf"

func (s *Server) registerNoteAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	canWrite := s.permissionMiddleware(admin.ObjContent, admin.ActWrite)

	ng := g.Group("/notes")
	ng.GET("", s.queryNotes, jwt)
	ng.POST("", s.createNote, jwt, canWrite)
	ng.GET("/:id", s.retrieveNote, jwt)
	ng.PUT("/:id", s.updateNote, jwt, canWrite)
	ng.DELETE("/:id", s.destroyNote, jwt, canWrite)
	ng.GET("/:id/pdf", s.downloadNotePDF, jwt)
}

// Handlers

func (s *Server) queryNotes(ctx echo.Context) error {
	notes, err := s.deps.NoteSvc.Query(ctx.Request().Context(), bindScope(ctx))
	if err != nil {
		return errors.Wrap(err, "querying notes")
	}
	if notes == nil {
		notes = []note.Note{}
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (s *Server) createNote(ctx echo.Context) error {
	var data note.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	pdf, cleanup, err := formPDF(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := s.deps.NoteSvc.Create(ctx.Request().Context(), usr, data, pdf)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (s *Server) retrieveNote(ctx echo.Context) error {
	n, err := s.deps.NoteSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding note by ID")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (s *Server) updateNote(ctx echo.Context) error {
	var data note.UpdateNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNote")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	pdf, cleanup, err := formPDF(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := s.deps.NoteSvc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data, pdf)
	if err != nil {
		return errors.Wrap(err, "updating note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (s *Server) destroyNote(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := s.deps.NoteSvc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) downloadNotePDF(ctx echo.Context) error {
	n, rc, err := s.deps.NoteSvc.DownloadPDF(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "downloading note PDF")
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+pdfFilename(n)+`"`)
	return ctx.Stream(http.StatusOK, "application/pdf", rc)
}

// formPDF returns the optional `pdf` file of a multipart request; JSON requests never carry one.
func formPDF(ctx echo.Context) (*note.PDF, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, noop, nil
	}

	fh, err := ctx.FormFile(pdfFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, errors.Wrap(err, "reading pdf form file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, errors.Wrap(err, "opening pdf form file")
	}
	pdf := &note.PDF{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        f,
	}
	return pdf, func() { _ = f.Close() }, nil
}

func pdfFilename(n note.Note) string {
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < ' ' {
			return -1
		}
		return r
	}, n.Title)
	if name == "" {
		name = n.ID
	}
	return name + ".pdf"
}
