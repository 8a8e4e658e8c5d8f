package usecase

import (
	"context"

	"jobboard-messaging/internal/domain"
)

// ConversationStore is the document store behind every use case.
// repository.Client and repository.MemoryStore implement it.
type ConversationStore interface {
	FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, conv domain.Conversation) (string, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch) error
	AppendMessage(ctx context.Context, msg domain.Message, patch domain.ConversationPatch) error
	MarkMessagesRead(ctx context.Context, conversationID, receiverID string) error
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	SubscribeConversationsForUser(ctx context.Context, userID string, onChange func([]domain.Conversation)) (domain.Unsubscribe, error)
	SubscribeMessagesForConversation(ctx context.Context, conversationID string, onChange func([]domain.Message)) (domain.Unsubscribe, error)
}

// ProfileSource looks up display profiles. A nil profile with a nil error
// means the user is unknown.
type ProfileSource interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}
