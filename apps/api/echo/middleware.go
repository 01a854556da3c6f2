package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core/admin"
)

// permissionMiddleware lets the request through only if the context user's role may perform act on obj.
func (s *Server) permissionMiddleware(obj, act string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := s.getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if err := s.deps.AdminSvc.Authorize(ctx.Request().Context(), usr, obj, act); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// mainAdminMiddleware lets the request through only for the configured main admin.
func (s *Server) mainAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := s.getContextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !s.deps.AdminSvc.IsMainAdmin(usr) {
			return admin.ErrForbidden
		}
		return next(ctx)
	}
}
