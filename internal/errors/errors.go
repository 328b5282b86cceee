package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// NotFoundError reports that the addressed entity does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

// ForbiddenError reports that the actor has no rights over the entity.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// InvalidTransitionError reports a move the order state machine rejects.
type InvalidTransitionError struct {
	Message string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return e.Message
}

func NewInvalidTransitionError(from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{
		Message: fmt.Sprintf("cannot move order from %s to %s", from, to),
		From:    from,
		To:      to,
	}
}

func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if stderrors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

// InvalidOperationError reports a request that is semantically illegal even
// when the state machine alone would allow it.
type InvalidOperationError struct {
	Message string
}

func (e *InvalidOperationError) Error() string {
	return e.Message
}

func NewInvalidOperationError(message string) *InvalidOperationError {
	return &InvalidOperationError{Message: message}
}

func IsInvalidOperationError(err error) (*InvalidOperationError, bool) {
	var ioe *InvalidOperationError
	if stderrors.As(err, &ioe) {
		return ioe, true
	}
	return nil, false
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// UnavailableError wraps storage failures. The operation left no partial
// effect behind and may be retried as a whole.
type UnavailableError struct {
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

func NewUnavailableError(message string, cause error) *UnavailableError {
	return &UnavailableError{
		Message: message,
		Cause:   cause,
	}
}

func IsUnavailableError(err error) (*UnavailableError, bool) {
	var ue *UnavailableError
	if stderrors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

// IsDomainError reports whether err carries one of the decision kinds above,
// as opposed to a raw driver or network failure.
func IsDomainError(err error) bool {
	switch {
	case err == nil:
		return false
	case isA[*ValidationError](err),
		isA[*NotFoundError](err),
		isA[*ForbiddenError](err),
		isA[*InvalidTransitionError](err),
		isA[*InvalidOperationError](err),
		isA[*ConflictError](err),
		isA[*UnavailableError](err),
		isA[*InternalError](err):
		return true
	}
	return false
}

// Classify returns err untouched when it is a domain error and wraps anything
// else as Unavailable.
func Classify(message string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return NewUnavailableError(message, err)
}

func isA[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}
