package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/user"
)

const (
	tokenContextKey = "userToken"
	contextUserKey  = "user"
	tokenQueryParam = "token"
)

// NowFunc is mockable.
var NowFunc = time.Now

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
	IsMainAdmin  bool   `json:"is_main_admin,omitempty"`
}

// NewJWTConfig returns the JWT auth middleware config reading the token from the Authorization header.
func NewJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// GetUserClaims builds the Claims of usr; role is the one returned by admin.Service.RoleOf.
func GetUserClaims(conf *core.Config, usr user.User, role string, origIat ...int64) *Claims {
	now := NowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		IsAdmin:      role != "",
		IsMainAdmin:  role == admin.RoleAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// jwtHeaderOrQuery authenticates with the Authorization header when present, else with the `token` query param.
// EventSource clients cannot set headers.
func jwtHeaderOrQuery(conf *core.Config) echo.MiddlewareFunc {
	header := middleware.JWTWithConfig(NewJWTConfig(conf))
	qconf := NewJWTConfig(conf)
	qconf.TokenLookup = "query:" + tokenQueryParam
	query := middleware.JWTWithConfig(qconf)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h, q := header(next), query(next)
		return func(ctx echo.Context) error {
			if ctx.Request().Header.Get(echo.HeaderAuthorization) != "" {
				return h(ctx)
			}
			return q(ctx)
		}
	}
}

func (s *Server) authenticate(ctx context.Context, email, pwd string) (*Claims, error) {
	usr, err := s.deps.UserSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	usr, err = s.deps.UserSvc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	role, err := s.deps.AdminSvc.RoleOf(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving role")
	}
	return GetUserClaims(s.deps.Conf, usr, role), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the User behind the request's token once per request.
// A token whose User has since been deleted is unauthorized.
func (s *Server) getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := s.deps.UserSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (s *Server) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := s.getContextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.deps.Conf.Server.JWTRefreshExpirationDelta)
	if NowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	// roles may have changed since the token was issued
	role, err := s.deps.AdminSvc.RoleOf(ctx.Request().Context(), usr)
	if err != nil {
		return "", errors.Wrap(err, "resolving role")
	}
	token, err := GenerateToken(s.deps.Conf, GetUserClaims(s.deps.Conf, usr, role, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
