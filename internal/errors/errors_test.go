package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_IsNotFoundError(t *testing.T) {
	err := NewNotFoundError("order not found")

	nfe, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.NotNil(t, nfe)
	assert.Equal(t, "order not found", nfe.Message)
	assert.Equal(t, "order not found", err.Error())
}

func TestNotFoundError_IsNotFoundError_WithOtherError(t *testing.T) {
	err := errors.New("some other error")

	nfe, ok := IsNotFoundError(err)
	assert.False(t, ok)
	assert.Nil(t, nfe)
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("accepting order: %w", NewForbiddenError("not your order"))

	fe, ok := IsForbiddenError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "not your order", fe.Message)

	_, ok = IsConflictError(wrapped)
	assert.False(t, ok)
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := NewInvalidTransitionError("delivered", "pending")

	ite, ok := IsInvalidTransitionError(err)
	assert.True(t, ok)
	assert.Equal(t, "delivered", ite.From)
	assert.Equal(t, "pending", ite.To)
	assert.Equal(t, "cannot move order from delivered to pending", err.Error())
}

func TestInvalidOperationAndConflict(t *testing.T) {
	_, ok := IsInvalidOperationError(NewInvalidOperationError("already reviewed"))
	assert.True(t, ok)

	_, ok = IsConflictError(NewConflictError("active order exists"))
	assert.True(t, ok)

	_, ok = IsInvalidOperationError(NewConflictError("active order exists"))
	assert.False(t, ok)
}

func TestValidationError_Creation(t *testing.T) {
	details := []ValidationDetail{
		{Field: "rating", Message: "rating must be between 1 and 5"},
		{Field: "comment", Message: "comment is required"},
	}

	err := NewValidationError("validation failed", details...)

	assert.Equal(t, "validation failed", err.Error())
	assert.Len(t, err.Details, 2)

	ve, ok := IsValidationError(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, "rating", ve.Details[0].Field)
}

func TestUnavailableError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailableError("beginning transaction", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "beginning transaction")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInternalError_NilCause(t *testing.T) {
	err := NewInternalError("no cause", nil)

	assert.Equal(t, "no cause", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("anything", nil))

	conflict := NewConflictError("lost race")
	assert.Same(t, conflict, Classify("committing", conflict))

	raw := errors.New("driver: bad connection")
	classified := Classify("committing", raw)
	ue, ok := IsUnavailableError(classified)
	assert.True(t, ok)
	assert.Equal(t, "committing", ue.Message)
	assert.True(t, errors.Is(classified, raw))
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(NewNotFoundError("x")))
	assert.True(t, IsDomainError(fmt.Errorf("ctx: %w", NewInvalidTransitionError("a", "b"))))
	assert.False(t, IsDomainError(errors.New("plain")))
	assert.False(t, IsDomainError(nil))
}
