package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core/registration"
)

type registrationApi struct {
	svc *registration.Service
}

func registerRegistrationAPI(g *echo.Group, svc *registration.Service) {
	api := registrationApi{svc: svc}

	gg := g.Group("/guardians")
	gg.GET("/check", api.check)
	gg.GET("/:externalUserId/check", api.check)
	gg.POST("", api.createGuardian)
	gg.GET("/:id/students", api.queryStudents)

	g.POST("/students", api.createStudent)
}

// Handlers

// check reports the registration of an external user id, given as a query or a path param.
func (api *registrationApi) check(ctx echo.Context) error {
	externalUserID := ctx.Param("externalUserId")
	if externalUserID == "" {
		externalUserID = ctx.QueryParam("externalUserId")
	}
	reg, err := api.svc.Lookup(ctx.Request().Context(), externalUserID)
	if err != nil {
		return errors.Wrap(err, "checking registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *registrationApi) createGuardian(ctx echo.Context) error {
	var data registration.NewGuardian
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGuardian")
	}

	g, err := api.svc.CreateGuardian(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating guardian")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"guardian": g})
}

func (api *registrationApi) queryStudents(ctx echo.Context) error {
	students, err := api.svc.StudentsOfGuardian(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"students": students})
}

func (api *registrationApi) createStudent(ctx echo.Context) error {
	var data registration.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	std, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"student": std})
}
