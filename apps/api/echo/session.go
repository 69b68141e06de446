package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
	"github.com/trezcool/juku/core/session"
)

const orgCodeParam = "org"

type (
	sessionApi struct {
		deps      session.Deps
		registrar session.Registrar
		logger    core.Logger
	}

	sessionResponse struct {
		session.Outcome
		Session *session.Session `json:"session"`
	}

	guardianForm struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
)

func registerSessionAPI(g *echo.Group, regSvc *registration.Service, orgSvc *organization.Service, logger core.Logger) {
	api := sessionApi{
		deps:      session.Deps{Registrations: regSvc, Organizations: orgSvc},
		registrar: regSvc,
		logger:    logger,
	}

	sg := g.Group("/session")
	sg.GET("", api.bootstrap)
	sg.POST("/guardian", api.registerGuardian)
	sg.POST("/students", api.registerStudent)
}

// start bootstraps the session of the request's user.
func (api *sessionApi) start(ctx echo.Context) (*session.Session, session.Outcome) {
	sess, outcome := session.Bootstrap(
		ctx.Request().Context(),
		api.deps,
		getContextProvider(ctx),
		ctx.QueryParam(orgCodeParam),
	)
	if sess != nil {
		ctx.Set(contextUserKey, sess.User)
	}
	return sess, outcome
}

// outcomeError converts an error outcome to the error rendered by the error handler.
func outcomeError(outcome session.Outcome) error {
	switch {
	case outcome.Message == session.MsgOpenFromApp:
		return core.NewIdentityError(outcome.Err, outcome.Message)
	case outcome.Message == session.MsgOrgNotFound:
		return core.NewNotFoundError(outcome.Message)
	case outcome.Err != nil:
		return errors.Wrap(outcome.Err, "bootstrapping session")
	default:
		return core.NewValidationError(errors.New(outcome.Message))
	}
}

// Handlers

// bootstrap always answers 200: the client follows the outcome route, error screens included.
func (api *sessionApi) bootstrap(ctx echo.Context) error {
	sess, outcome := api.start(ctx)
	if outcome.Err != nil {
		if core.IsIdentityError(outcome.Err) {
			api.logger.Warn("identity: "+outcome.Err.Error(), outcome.Err)
		} else {
			api.logger.Error(outcome.Message, errors.Wrap(outcome.Err, "bootstrapping session"))
		}
	}
	return ctx.JSON(http.StatusOK, sessionResponse{Outcome: outcome, Session: sess})
}

func (api *sessionApi) registerGuardian(ctx echo.Context) error {
	var data guardianForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to guardianForm")
	}

	sess, outcome := api.start(ctx)
	if outcome.Route == session.RouteError {
		return outcomeError(outcome)
	}

	outcome, err := sess.RegisterGuardian(ctx.Request().Context(), api.registrar, data.Name, data.Phone)
	if err != nil {
		return errors.Wrap(err, "registering guardian")
	}
	return ctx.JSON(http.StatusCreated, sessionResponse{Outcome: outcome, Session: sess})
}

func (api *sessionApi) registerStudent(ctx echo.Context) error {
	var data registration.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	sess, outcome := api.start(ctx)
	if outcome.Route == session.RouteError {
		return outcomeError(outcome)
	}

	std, err := sess.RegisterStudent(ctx.Request().Context(), api.registrar, data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"student": std})
}
