package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"jobboard-messaging/internal/domain"
)

// Service wires the messaging components over one store. It opens live
// sessions and offers stateless variants of the session operations for
// request/response callers.
type Service struct {
	store      ConversationStore
	profiles   ProfileSource
	resolver   *Resolver
	dispatcher *Dispatcher
	tracker    *Tracker
	sync       *Synchronizer

	typingExpiry time.Duration
	after        afterFunc
	logger       *slog.Logger
}

type ServiceOption func(*Service)

// WithTypingExpiry sets how long a typing flag lives without a refresh.
func WithTypingExpiry(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.typingExpiry = d
		}
	}
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store ConversationStore, profiles ProfileSource, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if profiles == nil {
		return nil, errors.New("usecase: profile source must not be nil")
	}
	s := &Service{
		store:        store,
		profiles:     profiles,
		typingExpiry: DefaultTypingExpiry,
		after:        realAfterFunc,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.resolver, err = NewResolver(store, s.logger); err != nil {
		return nil, err
	}
	if s.dispatcher, err = NewDispatcher(store, s.logger); err != nil {
		return nil, err
	}
	if s.tracker, err = NewTracker(store, s.logger); err != nil {
		return nil, err
	}
	if s.sync, err = NewSynchronizer(store, profiles, s.logger); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) setClock(now func() time.Time) {
	s.resolver.now = now
	s.dispatcher.now = now
	s.tracker.now = now
}

// StartConversation resolves the conversation between userID and otherUserID.
func (s *Service) StartConversation(ctx context.Context, userID, otherUserID string, job domain.JobRef) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", newError(ErrorNotAuthenticated, "missing_user", nil)
	}
	return s.resolver.GetOrCreateConversation(ctx, userID, otherUserID, job)
}

// SendMessage sends as in.SenderID, who must be a participant. The receiver
// is the other participant; a mismatching in.ReceiverID is rejected.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (domain.Message, error) {
	conv, err := s.authorize(ctx, in.SenderID, in.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	receiver := conv.OtherParticipant(strings.TrimSpace(in.SenderID))
	if r := strings.TrimSpace(in.ReceiverID); r != "" && r != receiver {
		return domain.Message{}, newError(ErrorInvalidInput, "receiver_not_participant", nil)
	}
	in.ReceiverID = receiver

	if strings.TrimSpace(in.SenderName) == "" {
		in.SenderName, in.SenderAvatar = s.displayName(ctx, in.SenderID)
	}

	msg, err := s.dispatcher.Send(ctx, in)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.tracker.MarkAsRead(ctx, conv.ID, msg.SenderID); err != nil {
		s.logger.Warn("sender unread reset failed", "conversation_id", conv.ID, "err", err)
	}
	return msg, nil
}

// MarkAsRead clears userID's unread counter.
func (s *Service) MarkAsRead(ctx context.Context, userID, conversationID string) error {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	return s.tracker.MarkAsRead(ctx, conv.ID, userID)
}

// DeleteConversation hard-deletes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conv.ID); err != nil {
		return storeFailure("delete_conversation_error", err)
	}
	s.logger.Info("conversation deleted", "conversation_id", conv.ID, "user_id", userID)
	return nil
}

// ListConversations returns userID's hydrated conversation list.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.sync.Snapshot(ctx, userID)
}

// ListMessages returns a conversation's messages in ascending order.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID string) ([]domain.Message, error) {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, storeFailure("list_messages_error", err)
	}
	return msgs, nil
}

// SetPinned sets the pinned flag.
func (s *Service) SetPinned(ctx context.Context, userID, conversationID string, pinned bool) error {
	return s.setFlags(ctx, userID, conversationID, domain.ConversationPatch{IsPinned: &pinned})
}

// SetArchived sets the archived flag.
func (s *Service) SetArchived(ctx context.Context, userID, conversationID string, archived bool) error {
	return s.setFlags(ctx, userID, conversationID, domain.ConversationPatch{IsArchived: &archived})
}

func (s *Service) setFlags(ctx context.Context, userID, conversationID string, patch domain.ConversationPatch) error {
	conv, err := s.authorize(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateConversation(ctx, conv.ID, patch); err != nil {
		return storeFailure("update_conversation_error", err)
	}
	return nil
}

// authorize loads a conversation and checks userID takes part in it.
func (s *Service) authorize(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, newError(ErrorNotAuthenticated, "missing_user", nil)
	}
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return nil, newError(ErrorInvalidInput, "missing_conversation", nil)
	}
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeFailure("get_conversation_error", err)
	}
	if conv == nil {
		return nil, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	if !conv.HasParticipant(uid) {
		return nil, newError(ErrorForbidden, "not_a_participant", nil)
	}
	return conv, nil
}

func (s *Service) displayName(ctx context.Context, userID string) (name, avatar string) {
	profile, err := s.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("sender profile lookup failed", "user_id", userID, "err", err)
		return domain.UnknownUserName, ""
	}
	if profile == nil || strings.TrimSpace(profile.FullName) == "" {
		return domain.UnknownUserName, ""
	}
	return profile.FullName, profile.Avatar
}
