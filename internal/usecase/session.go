package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"jobboard-messaging/internal/domain"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateListening
	StateConversationSelected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConversationSelected:
		return "conversation_selected"
	default:
		return "unknown"
	}
}

// Observer receives the session's live views. Calls come from store
// goroutines and must not block or call back into the Session.
type Observer interface {
	ConversationsChanged(convs []domain.Conversation)
	MessagesChanged(conversationID string, msgs []domain.Message)
}

// ObserverFuncs adapts plain funcs to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Conversations func([]domain.Conversation)
	Messages      func(string, []domain.Message)
}

func (o ObserverFuncs) ConversationsChanged(convs []domain.Conversation) {
	if o.Conversations != nil {
		o.Conversations(convs)
	}
}

func (o ObserverFuncs) MessagesChanged(conversationID string, msgs []domain.Message) {
	if o.Messages != nil {
		o.Messages(conversationID, msgs)
	}
}

// MessageDraft is what the signed-in user types into the selected
// conversation.
type MessageDraft struct {
	Content  string
	Type     domain.MessageType
	MediaURL string
	ReplyTo  *domain.ReplyTo
}

// Session holds one signed-in user's subscriptions. At most one message
// subscription is live at any time.
type Session struct {
	svc      *Service
	user     domain.UserProfile
	observer Observer
	typing   *Signaler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes operations that change subscriptions.
	opMu sync.Mutex

	mu            sync.RWMutex
	state         State
	conversations []domain.Conversation
	selectedID    string
	messages      []domain.Message
	msgGen        uint64
	unsubList     domain.Unsubscribe
	unsubMessages domain.Unsubscribe
}

// OpenSession subscribes to user's conversation list. The session lives
// until Close or until ctx ends.
func (s *Service) OpenSession(ctx context.Context, user domain.UserProfile, observer Observer) (*Session, error) {
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return nil, newError(ErrorNotAuthenticated, "missing_user", nil)
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	typing, err := NewSignaler(s.store, s.typingExpiry, s.logger)
	if err != nil {
		return nil, newError(ErrorInternal, "typing_signaler_error", err)
	}
	typing.after = s.after

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &Session{
		svc:      s,
		user:     user,
		observer: observer,
		typing:   typing,
		logger:   s.logger.With("component", "session", "user_id", user.ID),
		ctx:      sessCtx,
		cancel:   cancel,
		state:    StateListening,
	}

	unsub, err := s.sync.Subscribe(sessCtx, user.ID, sess.onConversations)
	if err != nil {
		cancel()
		return nil, err
	}
	sess.mu.Lock()
	sess.unsubList = unsub
	sess.mu.Unlock()

	sess.logger.Info("session opened")
	return sess, nil
}

// Close tears down every subscription and typing timer. It is idempotent.
func (s *Session) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	unsubList, unsubMessages := s.unsubList, s.unsubMessages
	s.unsubList, s.unsubMessages = nil, nil
	s.msgGen++
	s.selectedID = ""
	s.conversations = nil
	s.messages = nil
	s.mu.Unlock()

	// Cancel first so an in-flight snapshot load or profile lookup returns
	// and the unsubscribe calls below do not wait on it.
	s.cancel()
	if unsubMessages != nil {
		unsubMessages()
	}
	if unsubList != nil {
		unsubList()
	}
	s.typing.Close()
	s.logger.Info("session closed")
}

// User returns the signed-in profile.
func (s *Session) User() domain.UserProfile {
	return s.user
}

// StartConversation returns the conversation with otherUserID, creating it
// with job as context when needed. It does not select it.
func (s *Session) StartConversation(ctx context.Context, otherUserID string, job domain.JobRef) (string, error) {
	if s.State() == StateIdle {
		return "", newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	return s.svc.resolver.GetOrCreateConversation(ctx, s.user.ID, otherUserID, job)
}

// SelectConversation switches the live message stream to id. The previous
// stream is torn down before the new one starts. A non-zero unread counter
// for the user is cleared; failures of that step are only logged.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return newError(ErrorInvalidInput, "missing_conversation", nil)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateIdle {
		return newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	conv, err := s.svc.authorize(ctx, s.user.ID, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.unsubMessages
	s.unsubMessages = nil
	s.msgGen++
	gen := s.msgGen
	s.selectedID = ""
	s.messages = nil
	s.state = StateListening
	s.mu.Unlock()

	if prev != nil {
		prev()
	}

	unsub, err := s.svc.store.SubscribeMessagesForConversation(s.ctx, id, func(msgs []domain.Message) {
		s.onMessages(gen, id, msgs)
	})
	if err != nil {
		return storeFailure("subscribe_messages_error", err)
	}

	s.mu.Lock()
	s.unsubMessages = unsub
	s.selectedID = id
	s.state = StateConversationSelected
	unread := conv.UnreadFor(s.user.ID)
	if synced, ok := s.findLocked(id); ok {
		unread = synced.UnreadFor(s.user.ID)
	}
	s.mu.Unlock()

	s.logger.Debug("conversation selected", "conversation_id", id, "unread", unread)
	if unread > 0 {
		if err := s.svc.tracker.MarkAsRead(ctx, id, s.user.ID); err != nil {
			s.logger.Warn("auto mark-read failed", "conversation_id", id, "err", err)
		}
	}
	return nil
}

// SendMessage sends draft into the selected conversation and clears the
// sender's own unread counter.
func (s *Session) SendMessage(ctx context.Context, draft MessageDraft) (domain.Message, error) {
	s.mu.RLock()
	state, selected := s.state, s.selectedID
	conv, synced := s.findLocked(selected)
	s.mu.RUnlock()

	if state == StateIdle {
		return domain.Message{}, newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	if selected == "" {
		return domain.Message{}, newError(ErrorNoConversationSelected, "no_selection", nil)
	}
	if !synced {
		fetched, err := s.svc.authorize(ctx, s.user.ID, selected)
		if err != nil {
			return domain.Message{}, err
		}
		conv = *fetched
	}

	msg, err := s.svc.dispatcher.Send(ctx, SendInput{
		ConversationID: selected,
		SenderID:       s.user.ID,
		SenderName:     s.user.FullName,
		SenderAvatar:   s.user.Avatar,
		ReceiverID:     conv.OtherParticipant(s.user.ID),
		Content:        draft.Content,
		Type:           draft.Type,
		MediaURL:       draft.MediaURL,
		ReplyTo:        draft.ReplyTo,
	})
	if err != nil {
		return domain.Message{}, err
	}

	// The send already wrote typing=false.
	s.typing.Clear(selected, s.user.ID)
	if err := s.svc.tracker.MarkAsRead(ctx, selected, s.user.ID); err != nil {
		s.logger.Warn("own unread reset failed", "conversation_id", selected, "err", err)
	}
	return msg, nil
}

// SetTyping signals composition in the selected conversation. Store
// failures are logged, not returned.
func (s *Session) SetTyping(ctx context.Context, isTyping bool) error {
	s.mu.RLock()
	state, selected := s.state, s.selectedID
	s.mu.RUnlock()

	if state == StateIdle {
		return newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	if selected == "" {
		return newError(ErrorNoConversationSelected, "no_selection", nil)
	}
	s.typing.SetTyping(ctx, selected, s.user.ID, isTyping)
	return nil
}

// MarkAsRead clears the user's unread counter of id, or of the selected
// conversation when id is empty.
func (s *Session) MarkAsRead(ctx context.Context, id string) error {
	s.mu.RLock()
	state, selected := s.state, s.selectedID
	s.mu.RUnlock()

	if state == StateIdle {
		return newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = selected
	}
	if id == "" {
		return newError(ErrorNoConversationSelected, "no_selection", nil)
	}
	if _, err := s.svc.authorize(ctx, s.user.ID, id); err != nil {
		return err
	}
	return s.svc.tracker.MarkAsRead(ctx, id, s.user.ID)
}

// RemoveConversation deletes id. When it was selected the session falls
// back to Listening.
func (s *Session) RemoveConversation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return newError(ErrorInvalidInput, "missing_conversation", nil)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateIdle {
		return newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	if err := s.svc.DeleteConversation(ctx, s.user.ID, id); err != nil {
		return err
	}

	s.mu.Lock()
	var prev domain.Unsubscribe
	if s.selectedID == id {
		prev = s.unsubMessages
		s.unsubMessages = nil
		s.msgGen++
		s.selectedID = ""
		s.messages = nil
		s.state = StateListening
	}
	kept := s.conversations[:0:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	s.typing.CancelConversation(id)
	return nil
}

// SetPinned sets the pinned flag of id.
func (s *Session) SetPinned(ctx context.Context, id string, pinned bool) error {
	if s.State() == StateIdle {
		return newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	return s.svc.SetPinned(ctx, s.user.ID, id, pinned)
}

// SetArchived sets the archived flag of id.
func (s *Session) SetArchived(ctx context.Context, id string, archived bool) error {
	if s.State() == StateIdle {
		return newError(ErrorNotAuthenticated, "session_closed", nil)
	}
	return s.svc.SetArchived(ctx, s.user.ID, id, archived)
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) SelectedConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// Conversations returns a copy of the synced list.
func (s *Session) Conversations() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	return out
}

// Messages returns a copy of the selected conversation's messages.
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.messages...)
}

// TotalUnreadCount sums the user's counters over the synced list without
// touching the store.
func (s *Session) TotalUnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.TotalUnread(s.conversations, s.user.ID)
}

func (s *Session) findLocked(id string) (domain.Conversation, bool) {
	if id == "" {
		return domain.Conversation{}, false
	}
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

func (s *Session) onConversations(convs []domain.Conversation) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.conversations = convs
	s.mu.Unlock()

	s.observer.ConversationsChanged(convs)
}

func (s *Session) onMessages(gen uint64, id string, msgs []domain.Message) {
	s.mu.Lock()
	if s.state == StateIdle || gen != s.msgGen {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	s.mu.Unlock()

	s.observer.MessagesChanged(id, msgs)
}
