package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
	"github.com/trezcool/syllabus/core/task"
)

// retryAfter is sent along with 503 responses, in seconds.
const retryAfter = "5"

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			cErr *task.CycleError
			uErr *task.UnknownDependencyError
			dErr *task.DependencyConflictError
		)

		switch {
		case errors.As(err, &cErr):
			code = http.StatusConflict
			message = echo.Map{"error": cErr.Error(), "cycle": cErr.Path}
		case errors.As(err, &uErr):
			code = http.StatusBadRequest
			message = echo.Map{"error": uErr.Error(), "missing": uErr.Missing}
		case errors.As(err, &dErr):
			code = http.StatusConflict
			message = echo.Map{"error": dErr.Error(), "dependents": dErr.Dependents}
		case errors.Is(err, task.ErrRepositoryUnavailable):
			code = http.StatusServiceUnavailable
			message = task.ErrRepositoryUnavailable.Error()
			ctx.Response().Header().Set(echo.HeaderRetryAfter, retryAfter)
			logger.Warn(err.Error(), err, contextPerson(ctx))
		case errors.Is(err, task.ErrNotFound), errors.Is(err, degree.ErrNotFound):
			code = errHttpNotFound.Code
			message = errHttpNotFound.Message
		default:
			code, message = appErrorResponse(err, ctx, logger, translator, signalShutdown)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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

func appErrorResponse(
	err error,
	ctx echo.Context,
	logger core.Logger,
	translator ut.Translator,
	signalShutdown func(),
) (int, interface{}) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, fErr := range origErr {
			fldErrs[fErr.Field()] = fErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	default: // any other error is a server error
		msg := http.StatusText(http.StatusInternalServerError)
		logger.Error(msg, errors.Wrap(err, msg), contextPerson(ctx))

		// shutting down...
		if core.IsShutdown(err) {
			signalShutdown()
		}
		return http.StatusInternalServerError, msg
	}
}

func contextPerson(ctx echo.Context) core.Person {
	claims, _ := getContextClaims(ctx)
	return claims.Person()
}
