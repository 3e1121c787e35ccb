package internal

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/scheduling"
	"scheduling-api/internal/store"
	"scheduling-api/internal/uploads"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps domain errors onto statuses and the shared error body
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = "internal server error"
	}
	auth.SendErrorResponse(w, msg, code, status)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, scheduling.ErrDuplicateName), errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict, "DUPLICATE_NAME"
	case errors.Is(err, scheduling.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, scheduling.ErrPastStartTime):
		return http.StatusBadRequest, "PAST_START_TIME"
	case errors.Is(err, scheduling.ErrInvalidDuration):
		return http.StatusBadRequest, "INVALID_DURATION"
	case errors.Is(err, scheduling.ErrInvalidInput), errors.Is(err, uploads.ErrUnsupportedType),
		errors.Is(err, uploads.ErrInvalidName):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, scheduling.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, scheduling.ErrCyclicDependency):
		return http.StatusUnprocessableEntity, "CYCLIC_DEPENDENCY"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// decodeJSON reads a request body into v, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		auth.SendErrorResponse(w, "invalid JSON: "+err.Error(), "INVALID_JSON", http.StatusBadRequest)
		return false
	}
	return true
}
