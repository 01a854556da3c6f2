package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/otp"
	"github.com/trezcool/learnsmart/core/user"
)

func (s *Server) registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	// TODO: rate limit `/send-otp` & `/verify-otp` per email
	g.POST("/send-otp", s.sendOTP)
	g.POST("/verify-otp", s.verifyOTP)

	ag := g.Group("/auth")
	ag.POST("/signup", s.signup)
	ag.POST("/login", s.login)
	ag.POST("/password-reset", s.resetPassword)
	ag.POST("/token-refresh", s.refreshTokenHandler, jwt)
	ag.GET("/me", s.me, jwt)
}

// Handlers

func (s *Server) sendOTP(ctx echo.Context) error {
	var data SendOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendOTPRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	flow, err := otp.ParseFlow(data.Type)
	if err != nil {
		return err
	}

	if _, err := s.deps.OTPSvc.Issue(ctx.Request().Context(), data.Email, flow); err != nil {
		if uerr, ok := core.AsUpstream(err); ok {
			return core.NewUpstreamError(uerr.Service, "Failed to send OTP", uerr.Err)
		}
		return errors.Wrap(err, "issuing OTP")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "OTP sent successfully"})
}

func (s *Server) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	flow, err := otp.ParseFlow(data.Type)
	if err != nil {
		return err
	}

	if err := s.deps.OTPSvc.Verify(ctx.Request().Context(), data.Email, flow, data.OTP); err != nil {
		// a missing entry is a client mistake here, not a missing resource
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrExpired) || errors.Is(err, core.ErrMismatch) {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "verifying OTP")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Email verified successfully"})
}

func (s *Server) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	usr, err := s.deps.UserSvc.Signup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing user up")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	claims, err := s.authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(s.deps.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (s *Server) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	if err := s.deps.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Password has been reset with the new password."})
}

func (s *Server) refreshTokenHandler(ctx echo.Context) error {
	token, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (s *Server) me(ctx echo.Context) error {
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	role, err := s.deps.AdminSvc.RoleOf(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "resolving role")
	}
	return ctx.JSON(http.StatusOK, MeResponse{
		User:        usr,
		Role:        role,
		IsAdmin:     role != "",
		IsMainAdmin: s.deps.AdminSvc.IsMainAdmin(usr),
	})
}

type (
	SendOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		Type  string `json:"type" validate:"omitempty,otptype"`
	}

	VerifyOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required"`
		Type  string `json:"type" validate:"omitempty,otptype"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}

	MeResponse struct {
		user.User
		Role        string `json:"role,omitempty"`
		IsAdmin     bool   `json:"is_admin"`
		IsMainAdmin bool   `json:"is_main_admin"`
	}
)

func (r *SendOTPRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Type = core.CleanString(r.Type, true /* lower */)
	return validate.Struct(r)
}

func (r *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.OTP = core.CleanString(r.OTP)
	r.Type = core.CleanString(r.Type, true /* lower */)
	return validate.Struct(r)
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
