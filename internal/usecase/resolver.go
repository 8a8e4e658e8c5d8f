package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"jobboard-messaging/internal/domain"
)

// Resolver finds or creates the single conversation of a participant pair.
type Resolver struct {
	store  ConversationStore
	now    func() time.Time
	logger *slog.Logger
}

func NewResolver(store ConversationStore, logger *slog.Logger) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "resolver"),
	}, nil
}

// GetOrCreateConversation returns the id of the conversation between userA
// and userB, creating it with job as its context when none exists. An
// existing conversation keeps its original job context.
func (r *Resolver) GetOrCreateConversation(ctx context.Context, userA, userB string, job domain.JobRef) (string, error) {
	a, b := strings.TrimSpace(userA), strings.TrimSpace(userB)
	if a == "" || b == "" {
		return "", newError(ErrorInvalidInput, "missing_participant", nil)
	}
	if a == b {
		return "", newError(ErrorInvalidInput, "same_participant", nil)
	}

	existing, err := r.store.FindConversation(ctx, a, b)
	if err != nil {
		return "", storeFailure("find_conversation_error", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	now := r.now().UTC()
	conv := domain.Conversation{
		ID:                 newUUID(),
		Participants:       domain.SortedPair(a, b),
		ParticipantDetails: map[string]domain.ParticipantDetails{},
		JobID:              strings.TrimSpace(job.ID),
		JobTitle:           strings.TrimSpace(job.Title),
		UnreadCount:        map[string]int{},
		Typing:             map[string]bool{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	id, err := r.store.CreateConversation(ctx, conv)
	if err == nil {
		r.logger.Info("conversation created", "conversation_id", id, "job_id", conv.JobID)
		return id, nil
	}
	if !errors.Is(err, domain.ErrConversationExists) {
		return "", storeFailure("create_conversation_error", err)
	}

	// Another caller created the pair first; its conversation wins.
	winner, err := r.store.FindConversation(ctx, a, b)
	if err != nil {
		return "", storeFailure("find_conversation_error", err)
	}
	if winner == nil {
		return "", newError(ErrorInternal, "pair_without_conversation", nil)
	}
	r.logger.Info("conversation creation lost race", "conversation_id", winner.ID)
	return winner.ID, nil
}
