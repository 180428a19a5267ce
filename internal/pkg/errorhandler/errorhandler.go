package errorhandler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/coinloop/rewards-api/internal/pkg/response"
)

// HandleError logs an unexpected error with request context and sends a
// formatted error response. Expected domain outcomes (insufficient balance,
// quota exceeded, ...) are mapped directly in the handlers and never pass
// through here.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := log.Error().
		Str("request_id", getRequestID(ctx)).
		Str("error_code", code).
		Int("status_code", status)

	if err != nil {
		event = event.Err(err)
	}

	event.Msg(message)

	response.Error(w, status, code, message)
}

type requestIDKey string

// RequestIDKey is the context key for the request id set by the middleware.
const RequestIDKey requestIDKey = "request_id"

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
