package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"vidshare/internal/domain"
)

// envelope is the body of every API response. Data is omitted on errors and
// on successes that carry no payload.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, envelope{Message: message, Data: data})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, envelope{Message: message})
}

// publicError replaces the default client message for one error class
// while keeping the underlying error for errors.Is.
type publicError struct {
	message string
	err     error
}

func (e *publicError) Error() string { return e.err.Error() }
func (e *publicError) Unwrap() error { return e.err }

// withMessage attaches message to err when err is target.
func withMessage(err, target error, message string) error {
	if errors.Is(err, target) {
		return &publicError{message: message, err: err}
	}
	return err
}

// domainStatus maps err onto the HTTP status and default client message.
func domainStatus(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Message != "" {
			return http.StatusBadRequest, verr.Message
		}
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusBadRequest, "Email already exists"
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrTokenExpired):
		return http.StatusBadRequest, "Invalid or expired token"
	case errors.Is(err, domain.ErrExternalAccountExists):
		return http.StatusBadRequest, "Account already linked to another identity"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Authorization header is missing or invalid"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "Unsupported file type. Only video files (MP4, AVI, MKV, MOV) are allowed."
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func WriteDomainError(w http.ResponseWriter, err error) {
	status, message := domainStatus(err)
	var pe *publicError
	if status != http.StatusInternalServerError && errors.As(err, &pe) {
		message = pe.message
	}
	WriteError(w, status, message)
}

// fail logs server-side failures with the request id before answering.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := domainStatus(err); status == http.StatusInternalServerError {
		fields := []any{"method", r.Method, "path", r.URL.Path, "err", err}
		if rid, ok := GetRequestID(r.Context()); ok {
			fields = append(fields, "request_id", rid)
		}
		a.logger.Error("request failed", fields...)
	}
	WriteDomainError(w, err)
}
