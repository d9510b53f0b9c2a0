// Package respond renders the API's response envelope. Every payload carries
// success plus message; failures are produced centrally by ErrorHandler so
// handlers only return errors.
package respond

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebridge/hms/internal/platform/apperr"
)

// Payload is the success envelope. Extra carries resource-specific keys
// (e.g. "prescription", "prescriptions" + "count") merged into the body.
type Payload map[string]interface{}

func envelope(success bool, message string, extra Payload) map[string]interface{} {
	body := map[string]interface{}{
		"success": success,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

// OK writes a 200 success envelope.
func OK(c echo.Context, message string, extra Payload) error {
	return c.JSON(http.StatusOK, envelope(true, message, extra))
}

// Created writes a 201 success envelope.
func Created(c echo.Context, message string, extra Payload) error {
	return c.JSON(http.StatusCreated, envelope(true, message, extra))
}

// ErrorHandler returns an echo HTTPErrorHandler that maps application errors
// to {success:false, message} with the status of their kind. Unknown errors
// become 500 with a generic message; the cause goes to the log only.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		if appErr := apperr.From(err); appErr != nil {
			status = appErr.Kind.HTTPStatus()
			message = appErr.Message
			if appErr.Kind == apperr.KindInternal {
				message = "internal server error"
			}
		} else if httpErr, ok := err.(*echo.HTTPError); ok {
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, envelope(false, message, nil))
	}
}
