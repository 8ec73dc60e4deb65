package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tradepost/marketplace/internal/domain"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a JSON error response, detecting domain.AppError for status codes.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.Status, map[string]string{
			"code":       appErr.Code,
			"message":    appErr.Message,
			"request_id": requestID,
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, map[string]string{
		"code":       "INTERNAL_ERROR",
		"message":    "internal server error",
		"request_id": requestID,
	})
}

// DecodeJSON reads and decodes a JSON request body into dst. Bodies over
// 1 MiB are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst)
}
