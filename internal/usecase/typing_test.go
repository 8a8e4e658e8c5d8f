package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSignaler(t *testing.T, store ConversationStore, clock *fakeClock) *Signaler {
	t.Helper()
	s, err := NewSignaler(store, 0, discardLogger())
	require.NoError(t, err)
	s.after = clock.after
	return s
}

func TestSignaler_ExpiresAfterWindow(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)

	s.SetTyping(context.Background(), "c1", "U1", true)
	require.True(t, store.conversation(t, "c1").IsTyping("U1"))
	require.Equal(t, DefaultTypingExpiry, clock.lastDuration())

	require.Equal(t, 1, clock.fire())
	require.False(t, store.conversation(t, "c1").IsTyping("U1"))
	require.Equal(t, []bool{true, false}, store.typingWrites("U1"))
	require.Zero(t, s.pendingCount())
}

func TestSignaler_DebounceProducesOneExpiry(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.SetTyping(ctx, "c1", "U1", true)
	}
	require.Equal(t, 1, clock.active(), "only one countdown is live")
	require.Equal(t, []bool{true}, store.typingWrites("U1"), "repeated true is not re-written")

	require.Equal(t, 1, clock.fire())
	clock.fireStopped()
	require.Equal(t, []bool{true, false}, store.typingWrites("U1"))
}

func TestSignaler_FalseCancelsAndWritesImmediately(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)
	ctx := context.Background()

	s.SetTyping(ctx, "c1", "U1", true)
	s.SetTyping(ctx, "c1", "U1", false)
	require.False(t, store.conversation(t, "c1").IsTyping("U1"))
	require.Zero(t, clock.active())

	clock.fireStopped()
	require.Equal(t, []bool{true, false}, store.typingWrites("U1"))
}

func TestSignaler_KeysAreIndependent(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	store.seed(t, "c2", "U1", "U3")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)
	ctx := context.Background()

	s.SetTyping(ctx, "c1", "U1", true)
	s.SetTyping(ctx, "c1", "U2", true)
	s.SetTyping(ctx, "c2", "U1", true)
	require.Equal(t, 3, clock.active())

	s.CancelConversation("c1")
	require.Equal(t, 1, clock.active())
	require.Equal(t, 1, s.pendingCount())
}

func TestSignaler_ClearDropsWithoutWriting(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)

	s.SetTyping(context.Background(), "c1", "U1", true)
	s.Clear("c1", "U1")
	clock.fireStopped()

	require.Equal(t, []bool{true}, store.typingWrites("U1"))
}

func TestSignaler_CloseStopsTimers(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)
	ctx := context.Background()

	s.SetTyping(ctx, "c1", "U1", true)
	s.Close()
	require.Zero(t, clock.active())

	clock.fireStopped()
	s.SetTyping(ctx, "c1", "U1", true)
	require.Equal(t, []bool{true}, store.typingWrites("U1"))
}

func TestSignaler_StoreFailureIsSwallowed(t *testing.T) {
	store := newRecordingStore()
	store.updateErr = errors.New("store unavailable")
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)

	require.NotPanics(t, func() {
		s.SetTyping(context.Background(), "c1", "U1", true)
		clock.fire()
	})
	require.Equal(t, []bool{true, false}, store.typingWrites("U1"))
}

func TestSignaler_IgnoresMissingIDs(t *testing.T) {
	store := newRecordingStore()
	clock := &fakeClock{}
	s := newTestSignaler(t, store, clock)

	s.SetTyping(context.Background(), "", "U1", true)
	s.SetTyping(context.Background(), "c1", " ", true)
	require.Zero(t, clock.active())
	require.Empty(t, store.typingWrites("U1"))
}

func TestSignaler_RealTimerExpires(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, "c1", "U1", "U2")
	s, err := NewSignaler(store, 20*time.Millisecond, discardLogger())
	require.NoError(t, err)
	defer s.Close()

	s.SetTyping(context.Background(), "c1", "U1", true)
	require.Eventually(t, func() bool {
		return !store.conversation(t, "c1").IsTyping("U1")
	}, time.Second, 5*time.Millisecond)
}
