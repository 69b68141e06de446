package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, validate *core.Validator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}

			httpErr  *echo.HTTPError
			vErr     *core.ValidationError
			nfErr    *core.NotFoundError
			cErr     *core.ConflictError
			idErr    *core.IdentityError
			fldsErrs validator.ValidationErrors
		)

		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &fldsErrs):
			fldErrs := make(map[string]string, len(fldsErrs))
			for _, fe := range fldsErrs {
				fldErrs[fe.Field()] = fe.Translate(validate.Translator())
			}
			code = http.StatusBadRequest
			message = fldErrs
		case errors.As(err, &vErr):
			if len(vErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(vErr.Fields))
				for _, fe := range vErr.Fields {
					fldErrs[fe.Field] = fe.Error
				}
				message = fldErrs
			} else {
				message = vErr.Error()
			}
			code = http.StatusBadRequest
		case errors.As(err, &nfErr):
			code = http.StatusNotFound
			message = nfErr.Error()
		case errors.As(err, &cErr):
			code = http.StatusConflict
			message = cErr.Error()
		case errors.As(err, &idErr):
			code = http.StatusUnauthorized
			message = idErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr identity.User
			if u, ok := ctx.Get(contextUserKey).(identity.User); ok {
				usr = u
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
