package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/userimport/internal/backend"
	"github.com/JonMunkholm/userimport/internal/core"
	"github.com/JonMunkholm/userimport/internal/logging"
	"github.com/JonMunkholm/userimport/internal/session"
)

// ErrorResponse is the JSON body of every API error.
// Code is machine readable, Message and Action are for people.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var sizeErr *core.SizeLimitError
	var parseErr *core.ParseError
	var transportErr *backend.TransportError

	switch {
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &parseErr),
		errors.Is(err, core.ErrUnsupportedExtension),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, session.ErrEmptySelection),
		errors.Is(err, session.ErrUnknownKey),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrDiscarded):
		return http.StatusConflict
	case errors.Is(err, errSessionNotFound),
		errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
