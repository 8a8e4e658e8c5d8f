package domain

import (
	"sort"
	"time"
)

// MessageType is the payload kind of a message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// MessageStatus is the send lifecycle of a message.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// ReplyTo is a denormalized quote of an earlier message.
type ReplyTo struct {
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
}

// Message is a single persisted message within a conversation.
type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	SenderName     string              `json:"senderName"`
	SenderAvatar   string              `json:"senderAvatar,omitempty"`
	ReceiverID     string              `json:"receiverId"`
	Content        string              `json:"content"`
	Type           MessageType         `json:"type"`
	MediaURL       string              `json:"mediaUrl,omitempty"`
	Read           bool                `json:"read"`
	CreatedAt      time.Time           `json:"createdAt"`
	ReplyTo        *ReplyTo            `json:"replyTo,omitempty"`
	Reactions      map[string][]string `json:"reactions,omitempty"`
	Status         MessageStatus       `json:"status,omitempty"`
	EditedAt       *time.Time          `json:"editedAt,omitempty"`
}

// SortMessages orders messages by creation time, ties broken by id.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}
