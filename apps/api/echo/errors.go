package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "Invalid email or password")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// kindStatus maps core error kinds to HTTP status codes, checked in order.
var kindStatus = []struct {
	kind error
	code int
}{
	{core.ErrNotFound, http.StatusNotFound},
	{core.ErrForbidden, http.StatusForbidden},
	{core.ErrUnauthorized, http.StatusUnauthorized},
	{core.ErrAlreadyExists, http.StatusConflict},
	{core.ErrExpired, http.StatusBadRequest},
	{core.ErrMismatch, http.StatusBadRequest},
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, resp := errorResponse(err, translator)

		if code == http.StatusInternalServerError {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Email = claims.Email
			}
			logger.Error(resp.Error, errors.Wrap(err, resp.Error), usr)

			if ctx.Echo().Debug && resp.Details == "" {
				resp.Details = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func errorResponse(err error, translator ut.Translator) (int, ErrorResponse) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, ErrorResponse{Error: messageOf(origErr.Message)}
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, ErrorResponse{Error: messageOf(origErr.Message)}

	case validator.ValidationErrors:
		resp := ErrorResponse{Fields: make(map[string]string, len(origErr))}
		for _, vErr := range origErr {
			msg := vErr.Translate(translator)
			if resp.Error == "" {
				resp.Error = msg
			}
			resp.Fields[vErr.Field()] = msg
		}
		return http.StatusBadRequest, resp

	case *core.ValidationError:
		resp := ErrorResponse{Error: origErr.Error()}
		if len(origErr.Fields) > 0 {
			resp.Fields = make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				resp.Fields[fErr.Field] = fErr.Error
			}
		}
		return http.StatusBadRequest, resp
	}

	if uerr, ok := core.AsUpstream(err); ok {
		return http.StatusInternalServerError, ErrorResponse{Error: uerr.Message, Details: uerr.Details()}
	}
	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			return ks.code, ErrorResponse{Error: kindMessage(err, ks.kind)}
		}
	}

	// any other error is a server error
	return http.StatusInternalServerError, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
}

// kindMessage returns the user-facing message of the first error of kind in err's chain.
func kindMessage(err, kind error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.Is(e, kind) {
			if u := errors.Unwrap(e); u == nil || !errors.Is(u, kind) {
				return e.Error()
			}
		}
	}
	return kind.Error()
}

func messageOf(m interface{}) string {
	if s, ok := m.(string); ok {
		return s
	}
	if e, ok := m.(error); ok {
		return e.Error()
	}
	return http.StatusText(http.StatusInternalServerError)
}
