package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/notification"
)

// streamKeepAlive is how often an idle SSE stream gets a comment line so proxies keep it open.
var streamKeepAlive = 25 * time.Second

func (s *Server) registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	g.POST("/send-notification-email", s.sendNotificationEmail, jwt)

	ng := g.Group("/notifications")
	ng.GET("", s.notificationFeed, jwt)
	ng.GET("/all", s.queryNotifications, jwt)
	ng.GET("/unread-count", s.unreadCount, jwt)
	ng.POST("/read-all", s.markAllRead, jwt)
	ng.POST("/:id/read", s.markRead, jwt)
	ng.GET("/stream", s.streamNotifications, jwtHeaderOrQuery(s.deps.Conf))
}

// Handlers

func (s *Server) sendNotificationEmail(ctx echo.Context) error {
	var data notification.EmailNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailNotice")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	err := s.deps.NotifSvc.SendEmail(ctx.Request().Context(), data.Email, data.Type, data.Title, data.Details)
	if err != nil {
		if uerr, ok := core.AsUpstream(err); ok {
			err = uerr.Err
		}
		return core.NewUpstreamError("mail", "Failed to send notification email", err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Notification email sent successfully"})
}

func (s *Server) notificationFeed(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ns, err := s.deps.NotifSvc.Feed(ctx.Request().Context(), usr.ID, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "loading notification feed")
	}
	return ctx.JSON(http.StatusOK, notificationList(ns))
}

func (s *Server) queryNotifications(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ns, err := s.deps.NotifSvc.List(ctx.Request().Context(), usr.ID, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, notificationList(ns))
}

func (s *Server) unreadCount(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	count, err := s.deps.NotifSvc.UnreadCount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (s *Server) markRead(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := s.deps.NotifSvc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) markAllRead(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := s.deps.NotifSvc.MarkAllRead(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// streamNotifications pushes the user's new notifications as server-sent events until the client goes away.
func (s *Server) streamNotifications(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	events, unsubscribe := s.deps.Hub.Subscribe(usr.ID)
	defer unsubscribe()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
		return nil
	}
	res.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				s.deps.Logger.Error(fmt.Sprintf("encoding %s event", ev.Type), err, usr)
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return nil
			}
			res.Flush()

		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

type CountResponse struct {
	Count int `json:"count"`
}

func notificationList(ns []notification.Notification) []notification.Notification {
	if ns == nil {
		return []notification.Notification{}
	}
	return ns
}
