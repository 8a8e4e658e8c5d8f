package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobboard-messaging/internal/domain"
)

const maxContentLen = 4000

// SendInput is one outgoing message.
type SendInput struct {
	ConversationID string
	SenderID       string
	SenderName     string
	SenderAvatar   string
	ReceiverID     string
	Content        string
	Type           domain.MessageType
	MediaURL       string
	ReplyTo        *domain.ReplyTo
}

// Dispatcher appends messages and updates the conversation summary in the
// same store step.
type Dispatcher struct {
	store  ConversationStore
	now    func() time.Time
	logger *slog.Logger
}

func NewDispatcher(store ConversationStore, logger *slog.Logger) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "dispatcher"),
	}, nil
}

// Send stores the message, sets lastMessage, increments the receiver's
// unread counter and clears the sender's typing flag. The sender's own
// counter is not touched.
func (d *Dispatcher) Send(ctx context.Context, in SendInput) (domain.Message, error) {
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		return domain.Message{}, newError(ErrorNoConversationSelected, "missing_conversation", nil)
	}
	sender := strings.TrimSpace(in.SenderID)
	if sender == "" {
		return domain.Message{}, newError(ErrorNotAuthenticated, "missing_sender", nil)
	}
	receiver := strings.TrimSpace(in.ReceiverID)
	if receiver == "" {
		return domain.Message{}, newError(ErrorInvalidInput, "missing_receiver", nil)
	}
	if receiver == sender {
		return domain.Message{}, newError(ErrorInvalidInput, "same_participant", nil)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return domain.Message{}, newError(ErrorInvalidInput, "empty_content", nil)
	}
	if len(content) > maxContentLen {
		return domain.Message{}, newError(ErrorInvalidInput, "content_too_long", nil)
	}
	kind := in.Type
	if kind == "" {
		kind = domain.MessageTypeText
	}
	if !kind.Valid() {
		return domain.Message{}, newError(ErrorInvalidInput, "invalid_message_type", nil)
	}
	mediaURL := strings.TrimSpace(in.MediaURL)
	if kind != domain.MessageTypeText && mediaURL == "" {
		return domain.Message{}, newError(ErrorInvalidInput, "missing_media_url", nil)
	}

	now := d.now().UTC()
	msg := domain.Message{
		ID:             newUUID(),
		ConversationID: convID,
		SenderID:       sender,
		SenderName:     in.SenderName,
		SenderAvatar:   in.SenderAvatar,
		ReceiverID:     receiver,
		Content:        content,
		Type:           kind,
		MediaURL:       mediaURL,
		CreatedAt:      now,
		Status:         domain.StatusSent,
	}
	if in.ReplyTo != nil {
		quote := *in.ReplyTo
		msg.ReplyTo = &quote
	}

	patch := domain.ConversationPatch{
		LastMessage:     &domain.LastMessage{Content: content, SenderID: sender, CreatedAt: now},
		IncrementUnread: []string{receiver},
		Typing:          map[string]bool{sender: false},
		UpdatedAt:       now,
	}
	if err := d.store.AppendMessage(ctx, msg, patch); err != nil {
		return domain.Message{}, storeFailure("append_message_error", err)
	}

	d.logger.Debug("message sent", "conversation_id", convID, "message_id", msg.ID)
	return msg, nil
}

// newUUID returns a time-ordered id so ids break createdAt ties in
// insertion order.
var newUUID = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
