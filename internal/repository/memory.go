package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"jobboard-messaging/internal/domain"
)

// MemoryStore is an in-process conversation store with push-driven live
// subscriptions. It backs local development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	pairs         map[string]string            // pair key -> conversation id
	messages      map[string][]domain.Message  // conversation id -> messages
	hub           *hub
	logger        *slog.Logger
}

// NewMemoryStore creates an empty MemoryStore. Pass nil logger for default.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		conversations: make(map[string]domain.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string][]domain.Message),
		hub:           newHub(),
		logger:        logger.With("component", "memory_store"),
	}
}

// FindConversation returns the conversation between a and b, or nil.
func (s *MemoryStore) FindConversation(_ context.Context, a, b string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[domain.PairKey(a, b)]
	if !ok {
		return nil, nil
	}
	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	out := conv.Clone()
	return &out, nil
}

// CreateConversation stores a new conversation. The participant pair must not
// already own one.
func (s *MemoryStore) CreateConversation(_ context.Context, conv domain.Conversation) (string, error) {
	if conv.ID == "" {
		return "", errors.New("repository: CreateConversation: id is required")
	}
	if conv.Participants[0] == "" || conv.Participants[0] == conv.Participants[1] {
		return "", errors.New("repository: CreateConversation: two distinct participants are required")
	}

	key := domain.PairKey(conv.Participants[0], conv.Participants[1])

	s.mu.Lock()
	if _, exists := s.pairs[key]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("repository: CreateConversation: %w", domain.ErrConversationExists)
	}
	if _, exists := s.conversations[conv.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("repository: CreateConversation: id %q already used", conv.ID)
	}
	stored := conv.Clone()
	ensureMaps(&stored)
	s.conversations[conv.ID] = stored
	s.pairs[key] = conv.ID
	s.mu.Unlock()

	s.hub.publish(participantTopics(stored)...)
	return conv.ID, nil
}

// GetConversation returns the conversation or nil when it does not exist.
func (s *MemoryStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	out := conv.Clone()
	return &out, nil
}

// UpdateConversation applies a partial patch.
func (s *MemoryStore) UpdateConversation(_ context.Context, id string, patch domain.ConversationPatch) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("repository: UpdateConversation: %w", domain.ErrConversationNotFound)
	}
	patch.Apply(&conv)
	s.conversations[id] = conv
	s.mu.Unlock()

	s.hub.publish(participantTopics(conv)...)
	return nil
}

// AppendMessage stores msg and applies patch to its conversation as one step.
func (s *MemoryStore) AppendMessage(_ context.Context, msg domain.Message, patch domain.ConversationPatch) error {
	if msg.ID == "" || msg.ConversationID == "" {
		return errors.New("repository: AppendMessage: message id and conversation id are required")
	}

	s.mu.Lock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("repository: AppendMessage: %w", domain.ErrConversationNotFound)
	}
	for _, existing := range s.messages[msg.ConversationID] {
		if existing.ID == msg.ID {
			s.mu.Unlock()
			return fmt.Errorf("repository: AppendMessage %s: %w", msg.ID, domain.ErrDuplicateMessage)
		}
	}
	patch.Apply(&conv)
	s.conversations[msg.ConversationID] = conv
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], cloneMessage(msg))
	s.mu.Unlock()

	s.hub.publish(append(participantTopics(conv), conversationTopic(msg.ConversationID))...)
	return nil
}

// MarkMessagesRead stamps every unread message addressed to receiverID.
func (s *MemoryStore) MarkMessagesRead(_ context.Context, conversationID, receiverID string) error {
	s.mu.Lock()
	changed := false
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].ReceiverID == receiverID && !msgs[i].Read {
			msgs[i].Read = true
			msgs[i].Status = domain.StatusRead
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.hub.publish(conversationTopic(conversationID))
	}
	return nil
}

// DeleteConversation removes the conversation, its pair index and messages.
func (s *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("repository: DeleteConversation: %w", domain.ErrConversationNotFound)
	}
	delete(s.conversations, id)
	delete(s.pairs, domain.PairKey(conv.Participants[0], conv.Participants[1]))
	delete(s.messages, id)
	s.mu.Unlock()

	s.hub.publish(append(participantTopics(conv), conversationTopic(id))...)
	return nil
}

// ListConversations returns every conversation userID participates in.
func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	out := make([]domain.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, conv.Clone())
		}
	}
	s.mu.RUnlock()

	domain.SortConversations(out)
	return out, nil
}

// ListMessages returns the conversation's messages in ascending order.
func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	src := s.messages[conversationID]
	out := make([]domain.Message, 0, len(src))
	for _, m := range src {
		out = append(out, cloneMessage(m))
	}
	s.mu.RUnlock()

	domain.SortMessages(out)
	return out, nil
}

// SubscribeConversationsForUser delivers the user's conversation list on
// every change.
func (s *MemoryStore) SubscribeConversationsForUser(ctx context.Context, userID string, onChange func([]domain.Conversation)) (domain.Unsubscribe, error) {
	if onChange == nil {
		return nil, errors.New("repository: SubscribeConversationsForUser: callback must not be nil")
	}
	load := func(ctx context.Context) ([]domain.Conversation, error) {
		return s.ListConversations(ctx, userID)
	}
	return subscribe(ctx, s.hub, load, onChange, 0, s.logger.With("user_id", userID), userTopic(userID)), nil
}

// SubscribeMessagesForConversation delivers the conversation's messages on
// every change.
func (s *MemoryStore) SubscribeMessagesForConversation(ctx context.Context, conversationID string, onChange func([]domain.Message)) (domain.Unsubscribe, error) {
	if onChange == nil {
		return nil, errors.New("repository: SubscribeMessagesForConversation: callback must not be nil")
	}
	load := func(ctx context.Context) ([]domain.Message, error) {
		return s.ListMessages(ctx, conversationID)
	}
	return subscribe(ctx, s.hub, load, onChange, 0, s.logger.With("conversation_id", conversationID), conversationTopic(conversationID)), nil
}

// MessageSubscribers reports how many live message streams watch a
// conversation.
func (s *MemoryStore) MessageSubscribers(conversationID string) int {
	return s.hub.subscribers(conversationTopic(conversationID))
}

func ensureMaps(conv *domain.Conversation) {
	if conv.UnreadCount == nil {
		conv.UnreadCount = map[string]int{}
	}
	if conv.Typing == nil {
		conv.Typing = map[string]bool{}
	}
	if conv.ParticipantDetails == nil {
		conv.ParticipantDetails = map[string]domain.ParticipantDetails{}
	}
}

func cloneMessage(m domain.Message) domain.Message {
	out := m
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		out.ReplyTo = &r
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = append([]string(nil), v...)
		}
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	return out
}
