package echoapi

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/chat"
	"github.com/trezcool/learnsmart/core/note"
	"github.com/trezcool/learnsmart/core/notification"
	"github.com/trezcool/learnsmart/core/otp"
	"github.com/trezcool/learnsmart/core/quiz"
	"github.com/trezcool/learnsmart/core/user"
	realtimesvc "github.com/trezcool/learnsmart/services/realtime"
)

type (
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc  *user.Service
		OTPSvc   *otp.Service
		AdminSvc *admin.Service
		NotifSvc *notification.Service
		NoteSvc  *note.Service
		QuizSvc  *quiz.Service
		ChatSvc  *chat.Service
		Hub      *realtimesvc.Hub
	}

	Server struct {
		*http.Server
		deps     *Deps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps *Deps) *Server {
	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:         deps.Conf.Server.Host,
			Handler:      app,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // SSE streams stay open
		},
		deps:     deps,
		app:      app,
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	// open SSE streams end as soon as Shutdown starts
	baseCtx, cancel := context.WithCancel(context.Background())
	s.BaseContext = func(net.Listener) context.Context { return baseCtx }
	s.RegisterOnShutdown(cancel)

	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/health", health)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(NewJWTConfig(conf))

	s.registerAuthAPI(g, jwt)
	s.registerAdminAPI(g, jwt)
	s.registerNotificationAPI(g, jwt)
	s.registerNoteAPI(g, jwt)
	s.registerQuizAPI(g, jwt)
	s.registerChatAPI(g, jwt)
}

// Start serves until the listener fails or the Server is shut down; failures are reported on Errors.
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// isoTime formats UTC timestamps with millisecond precision, eg. 2024-03-01T09:30:00.000Z.
const isoTime = "2006-01-02T15:04:05.000Z07:00"

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: NowFunc().UTC().Format(isoTime),
	})
}
