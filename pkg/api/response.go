package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/service"
	"github.com/shelfd/shelfd/pkg/storage"
)

// ErrorBody is the JSON error shape surfaced to clients. The message never
// leaks internal paths or driver errors.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":500,"message":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// WriteError writes the standard error body.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Status: status, Message: message})
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 error response.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

// InternalServerError writes a 500 error response.
func InternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// MapError converts an engine error into its HTTP status and client-safe
// message.
func MapError(err error) (int, string) {
	var fse *storage.FileSizeError
	var ufe *storage.UnexpectedFileSizeError
	var serr *storage.Error

	switch {
	case errors.As(err, &fse):
		return http.StatusBadRequest, fse.Error()
	case errors.As(err, &ufe):
		return http.StatusBadRequest, ufe.Error()

	case errors.Is(err, models.ErrMultipartInvalidChunkSize),
		errors.Is(err, models.ErrMultipartInvalidPartNumber),
		errors.Is(err, models.ErrMultipartInvalidSize),
		errors.Is(err, models.ErrMultipartMissingParts),
		errors.Is(err, models.ErrInvalidKey),
		errors.Is(err, models.ErrInvalidStorageClass),
		errors.Is(err, models.ErrInvalidSlug),
		errors.Is(err, models.ErrInvalidOperation),
		errors.Is(err, service.ErrChecksumMismatch):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, models.ErrFileInstanceAlreadySet),
		errors.Is(err, models.ErrMultipartAlreadyCompleted),
		errors.Is(err, models.ErrBucketLocked),
		errors.Is(err, models.ErrDuplicateLocation):
		return http.StatusConflict, err.Error()

	case service.IsNotFound(err):
		return http.StatusNotFound, err.Error()

	case errors.As(err, &serr):
		return http.StatusInternalServerError, "storage failure"

	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// WriteMappedError maps err and writes the error body.
func WriteMappedError(w http.ResponseWriter, err error) {
	status, message := MapError(err)
	WriteError(w, status, message)
}
