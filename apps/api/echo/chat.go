package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core/chat"
)

// The Bearer credential is the caller's session token; the completion API key never leaves the server.
func (s *Server) registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	g.POST("/chat", s.askChat, jwt)
}

func (s *Server) askChat(ctx echo.Context) error {
	var data chat.Question
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Question")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	answer, err := s.deps.ChatSvc.Ask(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "asking AI")
	}
	return ctx.JSON(http.StatusOK, answer)
}
