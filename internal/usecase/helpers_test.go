package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobboard-messaging/internal/domain"
	"jobboard-messaging/internal/repository"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.UserProfile
	err      error
	calls    map[string]int
}

func newFakeProfiles(profiles ...domain.UserProfile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]domain.UserProfile{}, calls: map[string]int{}}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) GetUserProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[userID]++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProfiles) callCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

// recordingStore wraps a MemoryStore, counting writes and injecting errors.
type recordingStore struct {
	*repository.MemoryStore

	mu           sync.Mutex
	creates      int
	updates      []domain.ConversationPatch
	findErr      error
	createErr    error
	updateErr    error
	appendErr    error
	markReadErr  error
	beforeCreate func(conv domain.Conversation)
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: repository.NewMemoryStore(discardLogger())}
}

func (r *recordingStore) FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	r.mu.Lock()
	err := r.findErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.MemoryStore.FindConversation(ctx, a, b)
}

func (r *recordingStore) CreateConversation(ctx context.Context, conv domain.Conversation) (string, error) {
	r.mu.Lock()
	r.creates++
	err, hook := r.createErr, r.beforeCreate
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	if hook != nil {
		hook(conv)
	}
	return r.MemoryStore.CreateConversation(ctx, conv)
}

func (r *recordingStore) UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch) error {
	r.mu.Lock()
	r.updates = append(r.updates, patch)
	err := r.updateErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.UpdateConversation(ctx, id, patch)
}

func (r *recordingStore) AppendMessage(ctx context.Context, msg domain.Message, patch domain.ConversationPatch) error {
	r.mu.Lock()
	err := r.appendErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.AppendMessage(ctx, msg, patch)
}

func (r *recordingStore) MarkMessagesRead(ctx context.Context, conversationID, receiverID string) error {
	r.mu.Lock()
	err := r.markReadErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryStore.MarkMessagesRead(ctx, conversationID, receiverID)
}

func (r *recordingStore) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

// typingWrites returns the typing values written for userID, in order.
func (r *recordingStore) typingWrites(userID string) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bool
	for _, p := range r.updates {
		if v, ok := p.Typing[userID]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (r *recordingStore) conversation(t *testing.T, id string) domain.Conversation {
	t.Helper()
	conv, err := r.GetConversation(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, conv, "conversation %s not found", id)
	return *conv
}

func (r *recordingStore) seed(t *testing.T, id, a, b string) domain.Conversation {
	t.Helper()
	conv := domain.Conversation{
		ID:           id,
		Participants: domain.SortedPair(a, b),
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	_, err := r.MemoryStore.CreateConversation(context.Background(), conv)
	require.NoError(t, err)
	return conv
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock collects scheduled callbacks so tests decide when they run.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) after(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every scheduled callback that has not been stopped.
func (c *fakeClock) fire() int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// fireStopped runs callbacks that were stopped, as a timer racing its Stop
// would.
func (c *fakeClock) fireStopped() {
	c.mu.Lock()
	var stale []*fakeTimer
	for _, t := range c.timers {
		if t.stopped && !t.fired {
			t.fired = true
			stale = append(stale, t)
		}
	}
	c.mu.Unlock()

	for _, t := range stale {
		t.f()
	}
}

func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) lastDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return 0
	}
	return c.timers[len(c.timers)-1].d
}

func newTestService(t *testing.T, store ConversationStore, profiles ProfileSource, clock *fakeClock) *Service {
	t.Helper()
	svc, err := NewService(store, profiles, WithServiceLogger(discardLogger()))
	require.NoError(t, err)
	if clock != nil {
		svc.after = clock.after
	}
	return svc
}

func expectError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	if reason != "" {
		require.Equal(t, reason, usecaseErr.Reason)
	}
}

// sequentialIDs makes newUUID deterministic for one test.
func sequentialIDs(t *testing.T, prefix string) {
	t.Helper()
	var (
		mu sync.Mutex
		n  int
	)
	orig := newUUID
	newUUID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
	t.Cleanup(func() { newUUID = orig })
}

var (
	ada = domain.UserProfile{ID: "U1", FullName: "Ada Lovelace", Avatar: "https://img/ada.png"}
	bo  = domain.UserProfile{ID: "U2", FullName: "Bo Diddley"}
	cy  = domain.UserProfile{ID: "U3", FullName: "Cy Young"}
)
