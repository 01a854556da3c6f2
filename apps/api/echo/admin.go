package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/user"
)

var errNoUsers = echo.NewHTTPError(http.StatusNotFound, "No users found")

func (s *Server) registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	ag := g.Group("/admin")
	ag.GET("/users", s.queryUsers, jwt, s.permissionMiddleware(admin.ObjUsers, admin.ActRead))
	ag.DELETE("/users/:userId", s.destroyUser, jwt, s.permissionMiddleware(admin.ObjUsers, admin.ActDelete))

	ag.GET("/sub-admins", s.querySubAdmins, jwt, s.permissionMiddleware(admin.ObjUsers, admin.ActRead))
	ag.POST("/sub-admins", s.addSubAdmin, jwt, s.mainAdminMiddleware)
	ag.DELETE("/sub-admins/:userId", s.removeSubAdmin, jwt, s.mainAdminMiddleware)
}

// Handlers

func (s *Server) queryUsers(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := s.deps.UserSvc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return core.NewUpstreamError("users", "Failed to fetch users", err)
	}
	if len(users) == 0 {
		return errNoUsers
	}

	resp := make([]UserResponse, 0, len(users))
	for _, usr := range users {
		resp = append(resp, newUserResponse(usr))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (s *Server) destroyUser(ctx echo.Context) error {
	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id := ctx.Param("userId")
	if id == ctxUsr.ID {
		return admin.ErrNotPermitted
	}

	if err := s.deps.UserSvc.Delete(ctx.Request().Context(), id); err != nil {
		return core.NewUpstreamError("users", "Failed to delete user", err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "User deleted successfully"})
}

func (s *Server) querySubAdmins(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	roles, err := s.deps.AdminSvc.ListSubAdmins(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing sub-admins")
	}
	if roles == nil {
		roles = []admin.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (s *Server) addSubAdmin(ctx echo.Context) error {
	var data SubAdminRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubAdminRequest")
	}
	if err := s.deps.Validate.Struct(&data); err != nil {
		return err
	}
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	role, err := s.deps.AdminSvc.AddSubAdmin(ctx.Request().Context(), usr, core.CleanString(data.UserID))
	if err != nil {
		return errors.Wrap(err, "adding sub-admin")
	}
	return ctx.JSON(http.StatusCreated, role)
}

func (s *Server) removeSubAdmin(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := s.deps.AdminSvc.RemoveSubAdmin(ctx.Request().Context(), usr, ctx.Param("userId")); err != nil {
		return errors.Wrap(err, "removing sub-admin")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

type (
	// UserResponse is a User as listed to admins.
	UserResponse struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		CreatedAt string `json:"created_at"`
	}

	SubAdminRequest struct {
		UserID string `json:"user_id" validate:"required"`
	}
)

func newUserResponse(usr user.User) UserResponse {
	return UserResponse{
		ID:        usr.ID,
		Email:     usr.Email,
		CreatedAt: usr.CreatedAt.UTC().Format(isoTime),
	}
}
