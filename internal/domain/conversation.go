package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// UnknownUserName is shown for a participant whose profile cannot be resolved.
const UnknownUserName = "Unknown User"

var (
	// ErrConversationExists is returned by a store when the participant pair
	// already owns a conversation.
	ErrConversationExists = errors.New("conversation already exists for participant pair")
	// ErrConversationNotFound is returned by a store when a conversation id
	// does not resolve to a record.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrDuplicateMessage is returned by a store when a message id is
	// already stored in the conversation.
	ErrDuplicateMessage = errors.New("message already stored")
)

// ParticipantDetails is the denormalized display record kept per participant.
type ParticipantDetails struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Online bool   `json:"online,omitempty"`
}

// LastMessage is the snapshot of the newest message in a conversation.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobRef links a conversation to the job posting that started it.
type JobRef struct {
	ID    string `json:"jobId,omitempty"`
	Title string `json:"jobTitle,omitempty"`
}

// IsZero reports whether no job context was supplied.
func (j JobRef) IsZero() bool {
	return j.ID == "" && j.Title == ""
}

// Conversation is the shared record of a two-party thread.
type Conversation struct {
	ID                 string                        `json:"id"`
	Participants       [2]string                     `json:"participants"`
	ParticipantDetails map[string]ParticipantDetails `json:"participantDetails"`
	JobID              string                        `json:"jobId,omitempty"`
	JobTitle           string                        `json:"jobTitle,omitempty"`
	LastMessage        *LastMessage                  `json:"lastMessage,omitempty"`
	UnreadCount        map[string]int                `json:"unreadCount"`
	Typing             map[string]bool               `json:"typing"`
	IsPinned           bool                          `json:"isPinned,omitempty"`
	IsArchived         bool                          `json:"isArchived,omitempty"`
	CreatedAt          time.Time                     `json:"createdAt"`
	UpdatedAt          time.Time                     `json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// OtherParticipant returns the participant that is not userID, or "" when
// userID is not a participant.
func (c Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	default:
		return ""
	}
}

// UnreadFor returns the unread counter for userID.
func (c Conversation) UnreadFor(userID string) int {
	return c.UnreadCount[userID]
}

// IsTyping reports whether userID is currently composing.
func (c Conversation) IsTyping(userID string) bool {
	return c.Typing[userID]
}

// PairKey is the deterministic, order-independent key of a participant pair.
func PairKey(a, b string) string {
	p := SortedPair(a, b)
	return p[0] + "|" + p[1]
}

// SortedPair orders two user ids lexically.
func SortedPair(a, b string) [2]string {
	if strings.Compare(a, b) > 0 {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

// activity is the timestamp used for recency ordering.
func (c Conversation) activity() time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LastMessage.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// SortConversations orders pinned conversations first, then by most recent
// activity, then by id for a stable result.
func SortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].IsPinned != convs[j].IsPinned {
			return convs[i].IsPinned
		}
		ai, aj := convs[i].activity(), convs[j].activity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return convs[i].ID < convs[j].ID
	})
}

// ConversationPatch is a partial, key-level update of a conversation record.
// Fields left empty are not touched.
type ConversationPatch struct {
	LastMessage        *LastMessage
	IncrementUnread    []string
	ResetUnread        []string
	Typing             map[string]bool
	ParticipantDetails map[string]ParticipantDetails
	IsPinned           *bool
	IsArchived         *bool
	UpdatedAt          time.Time
}

// IsEmpty reports whether the patch would change nothing but the timestamp.
func (p ConversationPatch) IsEmpty() bool {
	return p.LastMessage == nil &&
		len(p.IncrementUnread) == 0 &&
		len(p.ResetUnread) == 0 &&
		len(p.Typing) == 0 &&
		len(p.ParticipantDetails) == 0 &&
		p.IsPinned == nil &&
		p.IsArchived == nil
}

// Apply mutates conv in place the way a store applies the patch.
func (p ConversationPatch) Apply(conv *Conversation) {
	if conv.UnreadCount == nil {
		conv.UnreadCount = map[string]int{}
	}
	if conv.Typing == nil {
		conv.Typing = map[string]bool{}
	}
	if conv.ParticipantDetails == nil {
		conv.ParticipantDetails = map[string]ParticipantDetails{}
	}
	if p.LastMessage != nil {
		lm := *p.LastMessage
		conv.LastMessage = &lm
	}
	for _, id := range p.IncrementUnread {
		conv.UnreadCount[id]++
	}
	for _, id := range p.ResetUnread {
		conv.UnreadCount[id] = 0
	}
	for id, v := range p.Typing {
		conv.Typing[id] = v
	}
	for id, d := range p.ParticipantDetails {
		conv.ParticipantDetails[id] = d
	}
	if p.IsPinned != nil {
		conv.IsPinned = *p.IsPinned
	}
	if p.IsArchived != nil {
		conv.IsArchived = *p.IsArchived
	}
	if !p.UpdatedAt.IsZero() {
		conv.UpdatedAt = p.UpdatedAt
	}
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	if c.ParticipantDetails != nil {
		out.ParticipantDetails = make(map[string]ParticipantDetails, len(c.ParticipantDetails))
		for k, v := range c.ParticipantDetails {
			out.ParticipantDetails[k] = v
		}
	}
	if c.UnreadCount != nil {
		out.UnreadCount = make(map[string]int, len(c.UnreadCount))
		for k, v := range c.UnreadCount {
			out.UnreadCount[k] = v
		}
	}
	if c.Typing != nil {
		out.Typing = make(map[string]bool, len(c.Typing))
		for k, v := range c.Typing {
			out.Typing[k] = v
		}
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// Unsubscribe ends a live subscription. After it returns, the subscription's
// callback is not invoked again. It must not be called from inside that
// callback.
type Unsubscribe func()

// TotalUnread sums userID's unread counters across convs.
func TotalUnread(convs []Conversation, userID string) int {
	total := 0
	for _, c := range convs {
		total += c.UnreadFor(userID)
	}
	return total
}
