package usecase

import (
	"errors"
	"fmt"

	"jobboard-messaging/internal/domain"
)

type ErrorCode string

const (
	ErrorInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrorNotAuthenticated       ErrorCode = "NOT_AUTHENTICATED"
	ErrorNoConversationSelected ErrorCode = "NO_CONVERSATION_SELECTED"
	ErrorNotFound               ErrorCode = "NOT_FOUND"
	ErrorForbidden              ErrorCode = "FORBIDDEN"
	ErrorStoreUnavailable       ErrorCode = "STORE_UNAVAILABLE"
	ErrorInternal               ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Message is the text shown to an end user.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	switch e.Code {
	case ErrorInvalidInput:
		return "The request is invalid."
	case ErrorNotAuthenticated:
		return "You need to sign in first."
	case ErrorNoConversationSelected:
		return "Select a conversation first."
	case ErrorNotFound:
		return "The conversation no longer exists."
	case ErrorForbidden:
		return "You are not part of this conversation."
	case ErrorStoreUnavailable:
		return "Messaging is temporarily unavailable. Please try again."
	default:
		return "Something went wrong."
	}
}

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool {
	return e != nil && e.Code == ErrorStoreUnavailable
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// storeFailure classifies an error returned by a ConversationStore.
func storeFailure(reason string, err error) *Error {
	if errors.Is(err, domain.ErrConversationNotFound) {
		return newError(ErrorNotFound, "conversation_not_found", err)
	}
	if errors.Is(err, domain.ErrDuplicateMessage) {
		return newError(ErrorInvalidInput, "duplicate_message", err)
	}
	return newError(ErrorStoreUnavailable, reason, err)
}

// CodeOf returns the code of a *Error in err's chain, or ErrorInternal.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}
