package echoapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
)

type organizationApi struct {
	svc *organization.Service
}

func registerOrganizationAPI(g *echo.Group, svc *organization.Service) {
	api := organizationApi{svc: svc}

	og := g.Group("/organizations")
	og.GET("/:org", api.retrieve)
	og.GET("/:org/classes", api.queryClasses)
}

// Handlers

// retrieve finds an organization by id or by access code.
func (api *organizationApi) retrieve(ctx echo.Context) error {
	org, err := api.svc.Resolve(ctx.Request().Context(), ctx.Param("org"))
	if err != nil {
		return errors.Wrap(err, "resolving organization")
	}
	return ctx.JSON(http.StatusOK, org)
}

// queryClasses lists the class sessions of an organization, given by id or by code.
// An unknown organization id has no classes.
func (api *organizationApi) queryClasses(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	orgID := ctx.Param("org")
	org, err := api.svc.Resolve(reqCtx, orgID)
	switch {
	case err == nil:
		orgID = org.ID
	case core.IsNotFound(err) && isUUID(orgID): // unknown id, no classes
	default:
		return errors.Wrap(err, "resolving organization")
	}

	classes, err := api.svc.ListClasses(reqCtx, orgID)
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"classes": classes})
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
