package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"jobboard-messaging/internal/domain"
)

func newTestTracker(t *testing.T, store ConversationStore) *Tracker {
	t.Helper()
	tr, err := NewTracker(store, discardLogger())
	require.NoError(t, err)
	return tr
}

func TestMarkAsRead_ResetsCounterAndStampsReceipts(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	d := newTestDispatcher(t, store)
	tr := newTestTracker(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := d.Send(ctx, textFrom("c1", "U1", "U2", "hi"))
		require.NoError(t, err)
	}
	_, err := d.Send(ctx, textFrom("c1", "U2", "U1", "hey"))
	require.NoError(t, err)

	require.NoError(t, tr.MarkAsRead(ctx, "c1", "U2"))

	conv := store.conversation(t, "c1")
	require.Zero(t, conv.UnreadFor("U2"))
	require.Equal(t, 1, conv.UnreadFor("U1"))

	msgs, err := store.ListMessages(ctx, "c1")
	require.NoError(t, err)
	for _, m := range msgs {
		if m.ReceiverID == "U2" {
			require.True(t, m.Read)
			require.Equal(t, domain.StatusRead, m.Status)
		} else {
			require.False(t, m.Read)
		}
	}
}

func TestMarkAsRead_ZeroStaysZero(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	tr := newTestTracker(t, store)

	require.NoError(t, tr.MarkAsRead(context.Background(), "c1", "U1"))
	require.Zero(t, store.conversation(t, "c1").UnreadFor("U1"))
}

func TestMarkAsRead_ReceiptFailureIsSwallowed(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	require.NoError(t, store.UpdateConversation(context.Background(), "c1", domain.ConversationPatch{IncrementUnread: []string{"U2"}}))
	store.markReadErr = errors.New("partial outage")
	tr := newTestTracker(t, store)

	require.NoError(t, tr.MarkAsRead(context.Background(), "c1", "U2"))
	require.Zero(t, store.conversation(t, "c1").UnreadFor("U2"))
}

func TestMarkAsRead_Errors(t *testing.T) {
	store := newRecordingStore()
	tr := newTestTracker(t, store)
	ctx := context.Background()

	err := tr.MarkAsRead(ctx, "", "U1")
	expectError(t, err, ErrorInvalidInput, "missing_conversation")

	err = tr.MarkAsRead(ctx, "c1", "")
	expectError(t, err, ErrorNotAuthenticated, "missing_user")

	err = tr.MarkAsRead(ctx, "gone", "U1")
	expectError(t, err, ErrorNotFound, "conversation_not_found")

	store.updateErr = errors.New("store unavailable")
	err = tr.MarkAsRead(ctx, "c1", "U1")
	expectError(t, err, ErrorStoreUnavailable, "reset_unread_error")
}
