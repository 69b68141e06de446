package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/juku/core/identity"
)

const (
	contextProviderKey = "identity"
	contextUserKey     = "user"
	bearerPrefix       = "Bearer "
)

// identityMiddleware puts the identity.Provider of the request's bearer token in the echo.Context.
// A request without token gets a provider that is not logged in.
func identityMiddleware(auth identity.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var token string
			if h := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, bearerPrefix) {
				token = strings.TrimSpace(h[len(bearerPrefix):])
			}
			ctx.Set(contextProviderKey, auth.Provider(token))
			return next(ctx)
		}
	}
}

func getContextProvider(ctx echo.Context) identity.Provider {
	p, _ := ctx.Get(contextProviderKey).(identity.Provider)
	return p
}
