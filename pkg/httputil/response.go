package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/rhvlabs/identity/pkg/errors"
	"github.com/rhvlabs/identity/pkg/logger"
	"github.com/rhvlabs/identity/pkg/validator"
)

// Response is the standard JSON response envelope. Failures always carry
// `{"success": false, "message": ...}` regardless of the failing layer so
// clients cannot distinguish internal failure modes.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// OK builds a success envelope.
func OK(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, the error is logged but headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized error response based on the error type.
// It prefers the request-scoped logger from context (set by the RequestLogger
// middleware) over the fallback logger, and logs internal errors without
// leaking their message to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status == http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		WriteJSON(w, appErr.Status, Response{
			Success: false,
			Message: appErr.Message,
			Errors:  appErr.Fields,
		})
		return
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusUnprocessableEntity, Response{
			Success: false,
			Message: "request validation failed",
			Errors:  valErr.Fields(),
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		message = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		message = "Unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		message = "Access Denied"
	}

	if status == http.StatusInternalServerError {
		logInternal(l, r, err)
	}

	WriteJSON(w, status, Response{Success: false, Message: message})
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}
