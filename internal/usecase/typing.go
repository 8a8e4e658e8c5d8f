package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"jobboard-messaging/internal/domain"
)

const (
	DefaultTypingExpiry = 3 * time.Second
	typingWriteTimeout  = 5 * time.Second
)

type stopper interface {
	Stop() bool
}

// afterFunc schedules f after d. time.AfterFunc in production.
type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

type typingKey struct {
	conversationID string
	userID         string
}

type pendingExpiry struct {
	timer stopper
	gen   uint64
}

// Signaler writes typing flags and expires them automatically. At most one
// expiry is pending per (conversation, user).
type Signaler struct {
	store  ConversationStore
	expiry time.Duration
	after  afterFunc
	logger *slog.Logger

	mu      sync.Mutex
	pending map[typingKey]*pendingExpiry
	gen     uint64
	closed  bool
}

func NewSignaler(store ConversationStore, expiry time.Duration, logger *slog.Logger) (*Signaler, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Signaler{
		store:   store,
		expiry:  expiry,
		after:   realAfterFunc,
		logger:  logger.With("component", "typing"),
		pending: make(map[typingKey]*pendingExpiry),
	}, nil
}

// SetTyping raises or clears userID's typing flag. A true call while a
// countdown is live only restarts the countdown. Failures are logged.
func (s *Signaler) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) {
	k := typingKey{conversationID: strings.TrimSpace(conversationID), userID: strings.TrimSpace(userID)}
	if k.conversationID == "" || k.userID == "" {
		s.logger.Warn("typing signal without conversation or user")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !isTyping {
		s.cancelLocked(k)
		s.mu.Unlock()
		s.write(ctx, k, false)
		return
	}

	_, live := s.pending[k]
	s.cancelLocked(k)
	s.gen++
	gen := s.gen
	p := &pendingExpiry{gen: gen}
	p.timer = s.after(s.expiry, func() { s.expire(k, gen) })
	s.pending[k] = p
	s.mu.Unlock()

	if !live {
		s.write(ctx, k, true)
	}
}

// Clear drops a pending expiry without writing.
func (s *Signaler) Clear(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(typingKey{conversationID: conversationID, userID: userID})
}

// CancelConversation drops every pending expiry of a conversation.
func (s *Signaler) CancelConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.pending {
		if k.conversationID == conversationID {
			s.cancelLocked(k)
		}
	}
}

// Close stops every pending expiry. Nothing is written after Close returns.
func (s *Signaler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for k := range s.pending {
		s.cancelLocked(k)
	}
}

func (s *Signaler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Signaler) cancelLocked(k typingKey) {
	p, ok := s.pending[k]
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.pending, k)
}

func (s *Signaler) expire(k typingKey, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[k]
	if s.closed || !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, k)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("typing expiry panic", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), typingWriteTimeout)
	defer cancel()
	s.write(ctx, k, false)
}

func (s *Signaler) write(ctx context.Context, k typingKey, isTyping bool) {
	err := s.store.UpdateConversation(ctx, k.conversationID, domain.ConversationPatch{
		Typing: map[string]bool{k.userID: isTyping},
	})
	if err != nil {
		s.logger.Warn("typing update failed",
			"conversation_id", k.conversationID,
			"user_id", k.userID,
			"typing", isTyping,
			"err", err,
		)
	}
}
