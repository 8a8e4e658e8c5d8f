package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"jobboard-messaging/internal/domain"
)

// Tracker resets unread counters and stamps read receipts.
type Tracker struct {
	store  ConversationStore
	now    func() time.Time
	logger *slog.Logger
}

func NewTracker(store ConversationStore, logger *slog.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "read_state"),
	}, nil
}

// MarkAsRead sets unreadCount[userID] to zero. Receipts on the individual
// messages are best-effort and only logged on failure.
func (t *Tracker) MarkAsRead(ctx context.Context, conversationID, userID string) error {
	convID := strings.TrimSpace(conversationID)
	if convID == "" {
		return newError(ErrorInvalidInput, "missing_conversation", nil)
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return newError(ErrorNotAuthenticated, "missing_user", nil)
	}

	err := t.store.UpdateConversation(ctx, convID, domain.ConversationPatch{
		ResetUnread: []string{uid},
		UpdatedAt:   t.now().UTC(),
	})
	if err != nil {
		return storeFailure("reset_unread_error", err)
	}

	if err := t.store.MarkMessagesRead(ctx, convID, uid); err != nil {
		t.logger.Warn("read receipts not stamped", "conversation_id", convID, "user_id", uid, "err", err)
	}
	return nil
}
