package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/taskcamp/internal/common"
)

// FieldError is one entry of the errors list, keyed by request field.
type FieldError map[string]string

type successEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorEnvelope struct {
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Success    bool         `json:"success"`
	Errors     []FieldError `json:"errors"`
}

// Problem maps a service error to its HTTP status and the message shown to
// the client. Token invalid and token expired share one message.
func Problem(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrTokenMissing):
		return http.StatusUnauthorized, "unauthorized request"
	case errors.Is(err, common.ErrTokenInvalid), errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "invalid or expired token"
	case errors.Is(err, common.ErrRefreshTokenStale):
		return http.StatusUnauthorized, common.ErrRefreshTokenStale.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.Is(err, common.ErrNotAMember):
		return http.StatusForbidden, common.ErrNotAMember.Error()
	case errors.Is(err, common.ErrInsufficientPermission):
		return http.StatusForbidden, common.ErrInsufficientPermission.Error()
	case errors.Is(err, common.ErrTokenInvalidOrExpired):
		return http.StatusBadRequest, common.ErrTokenInvalidOrExpired.Error()
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, common.ErrNotFound.Error()
	case errors.Is(err, common.ErrDuplicateUser):
		return http.StatusConflict, common.ErrDuplicateUser.Error()
	case errors.Is(err, common.ErrAlreadyVerified):
		return http.StatusConflict, common.ErrAlreadyVerified.Error()
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, status, successEnvelope{StatusCode: status, Data: data, Message: message, Success: true})
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := Problem(err)
	writeJSON(w, status, errorEnvelope{StatusCode: status, Message: msg, Errors: []FieldError{}})
}

func writeValidation(w http.ResponseWriter, fields []FieldError) {
	status := http.StatusUnprocessableEntity
	writeJSON(w, status, errorEnvelope{StatusCode: status, Message: "received data is not valid", Errors: fields})
}
