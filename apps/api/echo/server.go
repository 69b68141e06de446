package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
)

// ServerDeps holds the dependencies of the API server. It is filled in by the dig container.
type ServerDeps struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validator     *core.Validator
	OrgSvc        *organization.Service
	RegSvc        *registration.Service
	Authenticator identity.Authenticator
}

type Server struct {
	app      *echo.Echo
	address  string
	errors   chan error
	shutdown chan os.Signal
}

var _ http.Handler = (*Server)(nil) // interface compliance check

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		address:  deps.Conf.Server.Address,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.Validator = deps.Validator
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Validator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(identityMiddleware(deps.Authenticator))

	s.app.GET("/", home)

	api := s.app.Group("/api")
	registerOrganizationAPI(api, deps.OrgSvc)
	registerRegistrationAPI(api, deps.RegSvc)
	registerSessionAPI(api, deps.RegSvc, deps.OrgSvc, deps.Logger)
}

// Start listens on the configured address. A listener failure is reported on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
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
	default: // already shutting down
	}
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
	return ctx.String(http.StatusOK, "Welcome to Juku API!")
}
