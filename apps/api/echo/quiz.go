package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/quiz"
)

func (s *Server) registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	canWrite := s.permissionMiddleware(admin.ObjContent, admin.ActWrite)

	qg := g.Group("/quiz")
	qg.GET("/questions", s.queryQuestions, jwt)
	qg.POST("/questions", s.createQuestion, jwt, canWrite)
	qg.PUT("/questions/:id", s.updateQuestion, jwt, canWrite)
	qg.DELETE("/questions/:id", s.destroyQuestion, jwt, canWrite)

	qg.POST("/attempts", s.submitAttempt, jwt)
	qg.GET("/results", s.queryResults, jwt)
}

// Handlers

// queryQuestions hides the correct options from users who cannot edit content.
func (s *Server) queryQuestions(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	questions, err := s.deps.QuizSvc.Questions(ctx.Request().Context(), bindScope(ctx))
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}

	if err := s.deps.AdminSvc.Authorize(ctx.Request().Context(), usr, admin.ObjContent, admin.ActWrite); err != nil {
		if !errors.Is(err, core.ErrForbidden) {
			return err
		}
		public := make([]quiz.PublicQuestion, 0, len(questions))
		for _, q := range questions {
			public = append(public, q.Public())
		}
		return ctx.JSON(http.StatusOK, public)
	}

	if questions == nil {
		questions = []quiz.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (s *Server) createQuestion(ctx echo.Context) error {
	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := s.deps.QuizSvc.CreateQuestion(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (s *Server) updateQuestion(ctx echo.Context) error {
	var data quiz.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := s.deps.QuizSvc.UpdateQuestion(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (s *Server) destroyQuestion(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := s.deps.QuizSvc.DeleteQuestion(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) submitAttempt(ctx echo.Context) error {
	var data quiz.Attempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Attempt")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := s.deps.QuizSvc.SubmitAttempt(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusCreated, AttemptResponse{Result: res, Percentage: res.Percentage()})
}

func (s *Server) queryResults(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entries, stats, err := s.deps.QuizSvc.Results(ctx.Request().Context(), usr, bindScope(ctx))
	if err != nil {
		return errors.Wrap(err, "loading results")
	}
	if entries == nil {
		entries = []quiz.ResultEntry{}
	}
	return ctx.JSON(http.StatusOK, ResultsResponse{Results: entries, Stats: stats})
}

type (
	AttemptResponse struct {
		quiz.Result
		Percentage int `json:"percentage"`
	}

	ResultsResponse struct {
		Results []quiz.ResultEntry `json:"results"`
		Stats   quiz.Stats         `json:"stats"`
	}
)
