package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
)

// ApiResponse is the envelope for successful responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error to a status code. Illegal
// transitions are logged and answered with generic wording.
func writeServiceError(w http.ResponseWriter, op string, err error, logger *zap.Logger) {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error(), logger)
	case apperrors.IsIllegalTransition(err):
		logger.Warn("Illegal transition requested", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusConflict, "action_not_allowed", "This action is not available right now", logger)
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Not found", logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "Conflicts with the current state. Refresh and try again.", logger)
	case apperrors.IsPersistence(err):
		logger.Error("Persistence failure", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "persistence_failed", "Could not save. Your changes are kept, please retry.", logger)
	case apperrors.IsSuggestionUnavailable(err):
		logger.Info("Suggestion unavailable", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusBadGateway, "suggestion_unavailable", "No suggestion available yet", logger)
	default:
		logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong", logger)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}
