package usecase

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"jobboard-messaging/internal/domain"
)

func TestError_MessageAndRetryable(t *testing.T) {
	err := newError(ErrorStoreUnavailable, "append_message_error", errors.New("timeout"))
	require.True(t, err.Retryable())
	require.Contains(t, err.Message(), "try again")
	require.Contains(t, err.Error(), "STORE_UNAVAILABLE (append_message_error): timeout")
	require.EqualError(t, err.Unwrap(), "timeout")

	forbidden := newError(ErrorForbidden, "not_a_participant", nil)
	require.False(t, forbidden.Retryable())
	require.Equal(t, "usecase: FORBIDDEN (not_a_participant)", forbidden.Error())

	var nilErr *Error
	require.Empty(t, nilErr.Error())
	require.False(t, nilErr.Retryable())
}

func TestCodeOf(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), newError(ErrorNotFound, "conversation_not_found", nil))
	require.Equal(t, ErrorNotFound, CodeOf(wrapped))
	require.Equal(t, ErrorInternal, CodeOf(errors.New("plain")))
}

func TestStoreFailure_ClassifiesNotFound(t *testing.T) {
	err := storeFailure("update_error", domain.ErrConversationNotFound)
	require.Equal(t, ErrorNotFound, err.Code)
	require.ErrorIs(t, err, domain.ErrConversationNotFound)

	err = storeFailure("append_message_error", fmt.Errorf("repository: AppendMessage m1: %w", domain.ErrDuplicateMessage))
	require.Equal(t, ErrorInvalidInput, err.Code)
	require.Equal(t, "duplicate_message", err.Reason)
	require.False(t, err.Retryable())

	err = storeFailure("update_error", errors.New("boom"))
	require.Equal(t, ErrorStoreUnavailable, err.Code)
	require.Equal(t, "update_error", err.Reason)
}
