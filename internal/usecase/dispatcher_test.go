package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobboard-messaging/internal/domain"
)

func newTestDispatcher(t *testing.T, store ConversationStore) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(store, discardLogger())
	require.NoError(t, err)
	d.now = func() time.Time { return testNow }
	return d
}

func textFrom(convID, sender, receiver, content string) SendInput {
	return SendInput{
		ConversationID: convID,
		SenderID:       sender,
		SenderName:     "Sender " + sender,
		ReceiverID:     receiver,
		Content:        content,
	}
}

func TestDispatcherSend_HappyPath(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	d := newTestDispatcher(t, store)

	msg, err := d.Send(context.Background(), textFrom("c1", "U1", "U2", "  Hello  "))
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "Hello", msg.Content)
	require.Equal(t, domain.MessageTypeText, msg.Type)
	require.Equal(t, domain.StatusSent, msg.Status)
	require.False(t, msg.Read)

	conv := store.conversation(t, "c1")
	require.NotNil(t, conv.LastMessage)
	require.Equal(t, domain.LastMessage{Content: "Hello", SenderID: "U1", CreatedAt: testNow}, *conv.LastMessage)
	require.Equal(t, 1, conv.UnreadFor("U2"))
	require.Equal(t, 0, conv.UnreadFor("U1"))
	require.Equal(t, testNow, conv.UpdatedAt)

	msgs, err := store.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, msg, msgs[0])
}

func TestDispatcherSend_UnreadCountsEveryMessage(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	d := newTestDispatcher(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpdateConversation(ctx, "c1", domain.ConversationPatch{IncrementUnread: []string{"U1", "U1"}}))

	for i := 0; i < 5; i++ {
		_, err := d.Send(ctx, textFrom("c1", "U1", "U2", "ping"))
		require.NoError(t, err)
	}

	conv := store.conversation(t, "c1")
	require.Equal(t, 5, conv.UnreadFor("U2"))
	require.Equal(t, 2, conv.UnreadFor("U1"), "sender counter is untouched")
}

func TestDispatcherSend_ClearsSenderTyping(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	d := newTestDispatcher(t, store)
	ctx := context.Background()
	require.NoError(t, store.UpdateConversation(ctx, "c1", domain.ConversationPatch{Typing: map[string]bool{"U1": true, "U2": true}}))

	_, err := d.Send(ctx, textFrom("c1", "U1", "U2", "done typing"))
	require.NoError(t, err)

	conv := store.conversation(t, "c1")
	require.False(t, conv.IsTyping("U1"))
	require.True(t, conv.IsTyping("U2"), "other participant's flag is not ours to clear")
}

func TestDispatcherSend_OrdersTiesByInsertion(t *testing.T) {
	sequentialIDs(t, "m")
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	d := newTestDispatcher(t, store)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := d.Send(ctx, textFrom("c1", "U1", "U2", text))
		require.NoError(t, err)
	}

	msgs, err := store.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Content)
	require.Equal(t, "two", msgs[1].Content)
	require.Equal(t, "three", msgs[2].Content)
}

func TestDispatcherSend_MediaAndReply(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	d := newTestDispatcher(t, store)

	in := textFrom("c1", "U2", "U1", "look")
	in.Type = domain.MessageTypeImage
	in.MediaURL = "https://cdn/cake.png"
	in.ReplyTo = &domain.ReplyTo{MessageID: "m0", Content: "send a photo", SenderID: "U1"}

	msg, err := d.Send(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "https://cdn/cake.png", msg.MediaURL)
	require.Equal(t, "m0", msg.ReplyTo.MessageID)

	in.ReplyTo.Content = "changed later"
	require.Equal(t, "send a photo", msg.ReplyTo.Content)
}

func TestDispatcherSend_ValidationErrors(t *testing.T) {
	d := newTestDispatcher(t, newRecordingStore())
	ctx := context.Background()

	_, err := d.Send(ctx, textFrom("c1", "U1", "U2", "   "))
	expectError(t, err, ErrorInvalidInput, "empty_content")

	_, err = d.Send(ctx, textFrom("", "U1", "U2", "hi"))
	expectError(t, err, ErrorNoConversationSelected, "missing_conversation")

	_, err = d.Send(ctx, textFrom("c1", "", "U2", "hi"))
	expectError(t, err, ErrorNotAuthenticated, "missing_sender")

	_, err = d.Send(ctx, textFrom("c1", "U1", "", "hi"))
	expectError(t, err, ErrorInvalidInput, "missing_receiver")

	_, err = d.Send(ctx, textFrom("c1", "U1", "U1", "hi"))
	expectError(t, err, ErrorInvalidInput, "same_participant")

	_, err = d.Send(ctx, textFrom("c1", "U1", "U2", strings.Repeat("a", maxContentLen+1)))
	expectError(t, err, ErrorInvalidInput, "content_too_long")

	bad := textFrom("c1", "U1", "U2", "hi")
	bad.Type = "sticker"
	_, err = d.Send(ctx, bad)
	expectError(t, err, ErrorInvalidInput, "invalid_message_type")

	file := textFrom("c1", "U1", "U2", "cv.pdf")
	file.Type = domain.MessageTypeFile
	_, err = d.Send(ctx, file)
	expectError(t, err, ErrorInvalidInput, "missing_media_url")
}

func TestDispatcherSend_StoreErrors(t *testing.T) {
	store := newRecordingStore()
	d := newTestDispatcher(t, store)
	ctx := context.Background()

	_, err := d.Send(ctx, textFrom("missing", "U1", "U2", "hi"))
	expectError(t, err, ErrorNotFound, "conversation_not_found")

	store.seed(t, "c1", "U1", "U2")
	store.appendErr = errors.New("store unavailable")
	_, err = d.Send(ctx, textFrom("c1", "U1", "U2", "hi"))
	expectError(t, err, ErrorStoreUnavailable, "append_message_error")
}
