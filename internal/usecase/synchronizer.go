package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"jobboard-messaging/internal/domain"
)

// Synchronizer keeps a user's live conversation list and fills in missing
// details of the other participant.
type Synchronizer struct {
	store    ConversationStore
	profiles ProfileSource
	logger   *slog.Logger
}

func NewSynchronizer(store ConversationStore, profiles ProfileSource, logger *slog.Logger) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if profiles == nil {
		return nil, errors.New("usecase: profile source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		store:    store,
		profiles: profiles,
		logger:   logger.With("component", "synchronizer"),
	}, nil
}

// Subscribe delivers userID's sorted, hydrated conversation list on every
// change until the returned func is called or ctx ends.
func (s *Synchronizer) Subscribe(ctx context.Context, userID string, onChange func([]domain.Conversation)) (domain.Unsubscribe, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, newError(ErrorNotAuthenticated, "missing_user", nil)
	}
	if onChange == nil {
		return nil, newError(ErrorInvalidInput, "missing_callback", nil)
	}

	h := s.newHydrator(uid)
	unsub, err := s.store.SubscribeConversationsForUser(ctx, uid, func(convs []domain.Conversation) {
		onChange(h.hydrate(ctx, convs))
	})
	if err != nil {
		return nil, storeFailure("subscribe_conversations_error", err)
	}
	return unsub, nil
}

// Snapshot returns the hydrated list once.
func (s *Synchronizer) Snapshot(ctx context.Context, userID string) ([]domain.Conversation, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, newError(ErrorNotAuthenticated, "missing_user", nil)
	}
	convs, err := s.store.ListConversations(ctx, uid)
	if err != nil {
		return nil, storeFailure("list_conversations_error", err)
	}
	return s.newHydrator(uid).hydrate(ctx, convs), nil
}

func (s *Synchronizer) newHydrator(userID string) *hydrator {
	return &hydrator{
		sync:    s,
		userID:  userID,
		fetched: make(map[string]domain.ParticipantDetails),
	}
}

// hydrator belongs to one subscription; the store delivers its snapshots
// serially, so it needs no lock.
type hydrator struct {
	sync    *Synchronizer
	userID  string
	fetched map[string]domain.ParticipantDetails // conversation id -> details
}

func (h *hydrator) hydrate(ctx context.Context, convs []domain.Conversation) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(convs))
	for _, c := range convs {
		conv := c.Clone()
		if conv.ParticipantDetails == nil {
			conv.ParticipantDetails = map[string]domain.ParticipantDetails{}
		}
		other := conv.OtherParticipant(h.userID)
		if other != "" {
			if _, ok := conv.ParticipantDetails[other]; !ok {
				conv.ParticipantDetails[other] = h.details(ctx, conv, other)
			}
		}
		out = append(out, conv)
	}
	domain.SortConversations(out)
	return out
}

// details resolves the other participant once per conversation. A found
// profile is written back; a missing one stays a local placeholder.
func (h *hydrator) details(ctx context.Context, conv domain.Conversation, other string) domain.ParticipantDetails {
	if d, ok := h.fetched[conv.ID]; ok {
		return d
	}

	placeholder := domain.ParticipantDetails{Name: domain.UnknownUserName}
	profile, err := h.sync.profiles.GetUserProfile(ctx, other)
	if err != nil {
		h.sync.logger.Warn("profile lookup failed", "conversation_id", conv.ID, "user_id", other, "err", err)
		h.fetched[conv.ID] = placeholder
		return placeholder
	}
	if profile == nil {
		h.fetched[conv.ID] = placeholder
		return placeholder
	}

	d := profile.Details()
	if strings.TrimSpace(d.Name) == "" {
		d.Name = domain.UnknownUserName
	}
	h.fetched[conv.ID] = d

	// No UpdatedAt: a cache fill is not activity, and conv may be stale.
	err = h.sync.store.UpdateConversation(ctx, conv.ID, domain.ConversationPatch{
		ParticipantDetails: map[string]domain.ParticipantDetails{other: d},
	})
	if err != nil {
		h.sync.logger.Warn("participant details write-back failed", "conversation_id", conv.ID, "err", err)
	}
	return d
}
