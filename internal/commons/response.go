package commons

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "gigmarket/internal/errors"
)

type ErrorResponse struct {
	TraceID   string                       `json:"traceId,omitempty"`
	Status    int                          `json:"status"`
	Code      string                       `json:"code"`
	Message   string                       `json:"message"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

// TraceLogger tags logger with a fresh traceId for one request.
func TraceLogger(logger *zap.Logger) (string, *zap.Logger) {
	traceID := uuid.New().String()
	return traceID, logger.With(zap.String("traceId", traceID))
}

// URLParamID reads a positive integer path parameter.
func URLParamID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid "+name, apperrors.ValidationDetail{
			Field:   name,
			Message: name + " must be a positive integer",
		})
	}
	return uint(id), nil
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
	}
	return nil
}

// StatusFor maps an error kind to its HTTP status and code.
func StatusFor(err error) (int, string) {
	if _, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest, "VALIDATION_ERROR"
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound, "NOT_FOUND"
	}
	if _, ok := apperrors.IsForbiddenError(err); ok {
		return http.StatusForbidden, "FORBIDDEN"
	}
	if _, ok := apperrors.IsInvalidTransitionError(err); ok {
		return http.StatusConflict, "INVALID_TRANSITION"
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return http.StatusConflict, "CONFLICT"
	}
	if _, ok := apperrors.IsInvalidOperationError(err); ok {
		return http.StatusUnprocessableEntity, "INVALID_OPERATION"
	}
	if _, ok := apperrors.IsUnavailableError(err); ok {
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// WriteError renders err as an ErrorResponse. Unexpected kinds are logged
// and their message hidden.
func WriteError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	status, code := StatusFor(err)

	response := ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	if ve, ok := apperrors.IsValidationError(err); ok {
		response.Details = ve.Details
	}

	switch status {
	case http.StatusInternalServerError:
		logger.Error("unexpected error", zap.Error(err))
		response.Message = "an unexpected error occurred"
	case http.StatusServiceUnavailable:
		logger.Error("storage unavailable", zap.Error(err))
		response.Message = "service temporarily unavailable, retry the request"
	default:
		logger.Warn("request rejected", zap.String("code", code), zap.String("reason", err.Error()))
	}

	WriteJSON(w, status, response, logger)
}

func WriteJSON(w http.ResponseWriter, status int, data any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
