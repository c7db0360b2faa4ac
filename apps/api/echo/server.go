package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/checker"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/solution"
	"github.com/trezcool/darasa/core/user"
)

type (
	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		UserSvc         *user.Service
		ExerciseSvc     *exercise.Service
		SolutionSvc     *solution.Service
		NotificationSvc *notification.Service
		CommentSvc      *comment.Service
		Ingestor        *checker.Ingestor
		Validate        *validator.Validate
		Translator      ut.Translator

		DisableReqLogs bool
	}

	Server struct {
		deps      ServerDeps
		app       *echo.Echo
		jwtConfig middleware.JWTConfig
		errors    chan error
		shutdown  chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:      deps,
		app:       echo.New(),
		jwtConfig: newJWTConfig(deps.Conf),
		errors:    make(chan error, 1),
		shutdown:  make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
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

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.jwtConfig)

	registerUserAPI(v1, jwt, s)
	registerExerciseAPI(v1, jwt, s)
	registerSolutionAPI(v1, jwt, s)
	registerNotificationAPI(v1, jwt, s)
	registerCommentAPI(v1, jwt, s)
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown requests a graceful stop; used when an integrity error
// means the process should not keep serving.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
