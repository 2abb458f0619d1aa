package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
	"github.com/trezcool/masomo-academy/core/weekday"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// domainErrs maps the domain sentinel errors to their HTTP status.
var domainErrs = []struct {
	err  error
	code int
}{
	{core.ErrParentNotFound, http.StatusNotFound},
	{user.ErrNotFound, http.StatusNotFound},
	{curriculum.ErrProgramNotFound, http.StatusNotFound},
	{curriculum.ErrPhaseNotFound, http.StatusNotFound},
	{curriculum.ErrBookNotFound, http.StatusNotFound},
	{curriculum.ErrLessonNotFound, http.StatusNotFound},
	{curriculum.ErrQuestionNotFound, http.StatusNotFound},
	{curriculum.ErrPhaseBookNotFound, http.StatusNotFound},
	{session.ErrNotFound, http.StatusNotFound},
	{session.ErrEventNotFound, http.StatusNotFound},
	{session.ErrExamNotFound, http.StatusNotFound},
	{session.ErrMemberNotFound, http.StatusNotFound},
	{session.ErrAttemptNotFound, http.StatusNotFound},
	{curriculum.ErrDuplicateOrder, http.StatusConflict},
	{curriculum.ErrBookAlreadyInPhase, http.StatusConflict},
	{curriculum.ErrInvalidOrderValue, http.StatusBadRequest},
	{session.ErrInvalidDuration, http.StatusBadRequest},
	{session.ErrNoStudyDaysConfigured, http.StatusBadRequest},
	{session.ErrInvalidRole, http.StatusBadRequest},
	{session.ErrExamClosed, http.StatusBadRequest},
	{session.ErrNotEnrolled, http.StatusBadRequest},
	{session.ErrMaxAttemptsReached, http.StatusBadRequest},
	{weekday.ErrInvalidDayName, http.StatusBadRequest},
	{weekday.ErrOutOfRangeBitmask, http.StatusBadRequest},
}

// domainErrCode compares rather than hashes cause, which may be unhashable.
func domainErrCode(cause error) (int, bool) {
	for _, de := range domainErrs {
		if cause == de.err {
			return de.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if c, ok := domainErrCode(cause); ok {
			code = c
			if cause == core.ErrParentNotFound {
				message = err.Error()
			} else {
				message = cause.Error()
			}
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
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
