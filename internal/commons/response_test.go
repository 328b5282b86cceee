package commons

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "gigmarket/internal/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NewValidationError("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{apperrors.NewNotFoundError("missing"), http.StatusNotFound, "NOT_FOUND"},
		{apperrors.NewForbiddenError("no"), http.StatusForbidden, "FORBIDDEN"},
		{apperrors.NewInvalidTransitionError("pending", "completed"), http.StatusConflict, "INVALID_TRANSITION"},
		{apperrors.NewConflictError("race"), http.StatusConflict, "CONFLICT"},
		{apperrors.NewInvalidOperationError("twice"), http.StatusUnprocessableEntity, "INVALID_OPERATION"},
		{apperrors.NewUnavailableError("db", nil), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{stderrors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "trace-1", stderrors.New("dsn root:secret@tcp"), zap.NewNop())

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "trace-1", body.TraceID)
	assert.NotContains(t, body.Message, "secret")
}

func TestWriteError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "trace-2", apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
		Field: "rating", Message: "rating must be between 1 and 5",
	}), zap.NewNop())

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "rating", body.Details[0].Field)
}

func TestRequireActor(t *testing.T) {
	var seen uint
	handler := RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "abc", "0", "-4"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(UserIDHeader, header)
		}
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "17")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uint(17), seen)
}
