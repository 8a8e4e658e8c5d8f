package realtime

import (
	"jobboard-messaging/internal/domain"
	"jobboard-messaging/internal/usecase"
)

const (
	frameStart   = "start"
	frameSelect  = "select"
	frameSend    = "send"
	frameTyping  = "typing"
	frameRead    = "read"
	frameRemove  = "remove"
	framePin     = "pin"
	frameArchive = "archive"

	frameConnected     = "connected"
	frameConversations = "conversations"
	frameMessages      = "messages"
	frameAck           = "ack"
	frameError         = "error"
)

// inboundFrame is every client command. Ref is echoed back on the ack or
// error so clients can correlate replies.
type inboundFrame struct {
	Type           string             `json:"type" validate:"required,oneof=start select send typing read remove pin archive"`
	Ref            string             `json:"ref,omitempty" validate:"max=64"`
	ConversationID string             `json:"conversationId,omitempty" validate:"max=128,required_if=Type select,required_if=Type remove,required_if=Type pin,required_if=Type archive"`
	OtherUserID    string             `json:"otherUserId,omitempty" validate:"max=128,required_if=Type start"`
	JobID          string             `json:"jobId,omitempty" validate:"max=128"`
	JobTitle       string             `json:"jobTitle,omitempty" validate:"max=256"`
	Content        string             `json:"content,omitempty"`
	MessageType    domain.MessageType `json:"messageType,omitempty" validate:"omitempty,oneof=text image file"`
	MediaURL       string             `json:"mediaUrl,omitempty" validate:"omitempty,url"`
	ReplyTo        *domain.ReplyTo    `json:"replyTo,omitempty"`
	Value          *bool              `json:"value,omitempty" validate:"required_if=Type typing,required_if=Type pin,required_if=Type archive"`
}

type connectedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type conversationsFrame struct {
	Type          string                `json:"type"`
	Conversations []domain.Conversation `json:"conversations"`
	TotalUnread   int                   `json:"totalUnread"`
}

type messagesFrame struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversationId"`
	Messages       []domain.Message `json:"messages"`
}

type ackFrame struct {
	Type           string          `json:"type"`
	Ref            string          `json:"ref,omitempty"`
	Command        string          `json:"command"`
	ConversationID string          `json:"conversationId,omitempty"`
	Message        *domain.Message `json:"message,omitempty"`
}

type errorFrame struct {
	Type      string `json:"type"`
	Ref       string `json:"ref,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func newErrorFrame(ref string, err error) errorFrame {
	f := errorFrame{Type: frameError, Ref: ref, Code: string(usecase.CodeOf(err))}
	if ue, ok := asUsecaseError(err); ok {
		f.Reason = ue.Reason
		f.Message = ue.Message()
		f.Retryable = ue.Retryable()
		return f
	}
	f.Message = (&usecase.Error{Code: usecase.ErrorInternal}).Message()
	return f
}
