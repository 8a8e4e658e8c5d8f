package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"jobboard-messaging/internal/domain"
)

const (
	pkConvPrefix = "CONV#"
	pkPairPrefix = "PAIR#"
	pkUserPrefix = "USER#"
	skMeta       = "META#"
	skPair       = "PAIR#"
	skPrefixConv = "CONV#"
	skPrefixMsg  = "MSG#"

	// sortableTime keeps a fixed width so sort keys order lexically.
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// convPK returns the partition key for a conversation.
func convPK(conversationID string) string {
	return pkConvPrefix + conversationID
}

// pairPK returns the partition key of the participant-pair lock.
func pairPK(a, b string) string {
	return pkPairPrefix + domain.PairKey(a, b)
}

// userPK returns the partition key of a user's membership index.
func userPK(userID string) string {
	return pkUserPrefix + userID
}

// msgSK returns the sort key for a message; time first, id as tie-break.
func msgSK(ts time.Time, messageID string) string {
	return skPrefixMsg + formatTime(ts) + "#" + messageID
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(sortableTime)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func metaKey(conversationID string) map[string]types.AttributeValue {
	return key(convPK(conversationID), skMeta)
}

func conversationItem(conv domain.Conversation) map[string]types.AttributeValue {
	unread := make(map[string]types.AttributeValue, len(conv.UnreadCount))
	for id, n := range conv.UnreadCount {
		unread[id] = numberAttr(n)
	}
	typing := make(map[string]types.AttributeValue, len(conv.Typing))
	for id, v := range conv.Typing {
		typing[id] = &types.AttributeValueMemberBOOL{Value: v}
	}
	details := make(map[string]types.AttributeValue, len(conv.ParticipantDetails))
	for id, d := range conv.ParticipantDetails {
		details[id] = detailsAttr(d)
	}

	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conv.ID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"entity":         &types.AttributeValueMemberS{Value: "conversation"},
		"conversationId": &types.AttributeValueMemberS{Value: conv.ID},
		"participants": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: conv.Participants[0]},
			&types.AttributeValueMemberS{Value: conv.Participants[1]},
		}},
		"participantDetails": &types.AttributeValueMemberM{Value: details},
		"unreadCount":        &types.AttributeValueMemberM{Value: unread},
		"typing":             &types.AttributeValueMemberM{Value: typing},
		"isPinned":           &types.AttributeValueMemberBOOL{Value: conv.IsPinned},
		"isArchived":         &types.AttributeValueMemberBOOL{Value: conv.IsArchived},
		"createdAt":          &types.AttributeValueMemberS{Value: formatTime(conv.CreatedAt)},
		"updatedAt":          &types.AttributeValueMemberS{Value: formatTime(conv.UpdatedAt)},
	}
	if conv.JobID != "" {
		item["jobId"] = &types.AttributeValueMemberS{Value: conv.JobID}
	}
	if conv.JobTitle != "" {
		item["jobTitle"] = &types.AttributeValueMemberS{Value: conv.JobTitle}
	}
	if conv.LastMessage != nil {
		item["lastMessage"] = lastMessageAttr(*conv.LastMessage)
	}
	return item
}

func pairItem(conv domain.Conversation) map[string]types.AttributeValue {
	item := key(pairPK(conv.Participants[0], conv.Participants[1]), skPair)
	item["entity"] = &types.AttributeValueMemberS{Value: "pair"}
	item["conversationId"] = &types.AttributeValueMemberS{Value: conv.ID}
	return item
}

func membershipItem(userID, conversationID string) map[string]types.AttributeValue {
	item := key(userPK(userID), skPrefixConv+conversationID)
	item["entity"] = &types.AttributeValueMemberS{Value: "membership"}
	item["conversationId"] = &types.AttributeValueMemberS{Value: conversationID}
	return item
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(msg.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(msg.CreatedAt, msg.ID)},
		"entity":         &types.AttributeValueMemberS{Value: "message"},
		"messageId":      &types.AttributeValueMemberS{Value: msg.ID},
		"conversationId": &types.AttributeValueMemberS{Value: msg.ConversationID},
		"senderId":       &types.AttributeValueMemberS{Value: msg.SenderID},
		"senderName":     &types.AttributeValueMemberS{Value: msg.SenderName},
		"receiverId":     &types.AttributeValueMemberS{Value: msg.ReceiverID},
		"content":        &types.AttributeValueMemberS{Value: msg.Content},
		"type":           &types.AttributeValueMemberS{Value: string(msg.Type)},
		"read":           &types.AttributeValueMemberBOOL{Value: msg.Read},
		"status":         &types.AttributeValueMemberS{Value: string(msg.Status)},
		"createdAt":      &types.AttributeValueMemberS{Value: formatTime(msg.CreatedAt)},
	}
	if msg.SenderAvatar != "" {
		item["senderAvatar"] = &types.AttributeValueMemberS{Value: msg.SenderAvatar}
	}
	if msg.MediaURL != "" {
		item["mediaUrl"] = &types.AttributeValueMemberS{Value: msg.MediaURL}
	}
	if msg.ReplyTo != nil {
		item["replyTo"] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"messageId":  &types.AttributeValueMemberS{Value: msg.ReplyTo.MessageID},
			"content":    &types.AttributeValueMemberS{Value: msg.ReplyTo.Content},
			"senderId":   &types.AttributeValueMemberS{Value: msg.ReplyTo.SenderID},
			"senderName": &types.AttributeValueMemberS{Value: msg.ReplyTo.SenderName},
		}}
	}
	if len(msg.Reactions) > 0 {
		reactions := make(map[string]types.AttributeValue, len(msg.Reactions))
		for emoji, users := range msg.Reactions {
			list := make([]types.AttributeValue, 0, len(users))
			for _, u := range users {
				list = append(list, &types.AttributeValueMemberS{Value: u})
			}
			reactions[emoji] = &types.AttributeValueMemberL{Value: list}
		}
		item["reactions"] = &types.AttributeValueMemberM{Value: reactions}
	}
	if msg.EditedAt != nil {
		item["editedAt"] = &types.AttributeValueMemberS{Value: formatTime(*msg.EditedAt)}
	}
	return item
}

func detailsAttr(d domain.ParticipantDetails) types.AttributeValue {
	m := map[string]types.AttributeValue{
		"name":   &types.AttributeValueMemberS{Value: d.Name},
		"online": &types.AttributeValueMemberBOOL{Value: d.Online},
	}
	if d.Avatar != "" {
		m["avatar"] = &types.AttributeValueMemberS{Value: d.Avatar}
	}
	return &types.AttributeValueMemberM{Value: m}
}

func lastMessageAttr(lm domain.LastMessage) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"content":   &types.AttributeValueMemberS{Value: lm.Content},
		"senderId":  &types.AttributeValueMemberS{Value: lm.SenderID},
		"createdAt": &types.AttributeValueMemberS{Value: formatTime(lm.CreatedAt)},
	}}
}

func numberAttr(n int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

// itemToConversation converts a META# item to a Conversation.
func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	id, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Conversation{}, err
	}
	participants, err := listAttr(item, "participants")
	if err != nil {
		return domain.Conversation{}, err
	}
	if len(participants) != 2 {
		return domain.Conversation{}, fmt.Errorf("repository: conversation %q has %d participants", id, len(participants))
	}
	conv := domain.Conversation{
		ID:                 id,
		ParticipantDetails: map[string]domain.ParticipantDetails{},
		UnreadCount:        map[string]int{},
		Typing:             map[string]bool{},
	}
	for i, p := range participants {
		s, ok := p.(*types.AttributeValueMemberS)
		if !ok {
			return domain.Conversation{}, fmt.Errorf("repository: attribute %q is not a string list", "participants")
		}
		conv.Participants[i] = s.Value
	}

	conv.JobID, _ = strAttr(item, "jobId")       // optional
	conv.JobTitle, _ = strAttr(item, "jobTitle") // optional
	conv.IsPinned, _ = boolAttr(item, "isPinned")
	conv.IsArchived, _ = boolAttr(item, "isArchived")
	if conv.CreatedAt, err = timeAttr(item, "createdAt"); err != nil {
		return domain.Conversation{}, err
	}
	if conv.UpdatedAt, err = timeAttr(item, "updatedAt"); err != nil {
		return domain.Conversation{}, err
	}

	if unread, ok := mapAttr(item, "unreadCount"); ok {
		for uid := range unread {
			n, err := intAttr(unread, uid)
			if err != nil {
				return domain.Conversation{}, err
			}
			conv.UnreadCount[uid] = n
		}
	}
	if typing, ok := mapAttr(item, "typing"); ok {
		for uid := range typing {
			conv.Typing[uid], _ = boolAttr(typing, uid)
		}
	}
	if details, ok := mapAttr(item, "participantDetails"); ok {
		for uid := range details {
			d, ok := mapAttr(details, uid)
			if !ok {
				continue
			}
			name, _ := strAttr(d, "name")
			avatar, _ := strAttr(d, "avatar")
			online, _ := boolAttr(d, "online")
			conv.ParticipantDetails[uid] = domain.ParticipantDetails{Name: name, Avatar: avatar, Online: online}
		}
	}
	if lm, ok := mapAttr(item, "lastMessage"); ok {
		content, _ := strAttr(lm, "content")
		sender, _ := strAttr(lm, "senderId")
		created, err := timeAttr(lm, "createdAt")
		if err != nil {
			return domain.Conversation{}, err
		}
		conv.LastMessage = &domain.LastMessage{Content: content, SenderID: sender, CreatedAt: created}
	}
	return conv, nil
}

// itemToMessage converts a MSG# item to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	id, err := strAttr(item, "messageId")
	if err != nil {
		return domain.Message{}, err
	}
	conversationID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Message{}, err
	}
	sender, err := strAttr(item, "senderId")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	created, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      created,
	}
	msg.SenderName, _ = strAttr(item, "senderName")
	msg.SenderAvatar, _ = strAttr(item, "senderAvatar")
	msg.ReceiverID, _ = strAttr(item, "receiverId")
	msg.MediaURL, _ = strAttr(item, "mediaUrl")
	msg.Read, _ = boolAttr(item, "read")
	kind, _ := strAttr(item, "type")
	msg.Type = domain.MessageType(kind)
	if msg.Type == "" {
		msg.Type = domain.MessageTypeText
	}
	status, _ := strAttr(item, "status")
	msg.Status = domain.MessageStatus(status)

	if reply, ok := mapAttr(item, "replyTo"); ok {
		r := &domain.ReplyTo{}
		r.MessageID, _ = strAttr(reply, "messageId")
		r.Content, _ = strAttr(reply, "content")
		r.SenderID, _ = strAttr(reply, "senderId")
		r.SenderName, _ = strAttr(reply, "senderName")
		msg.ReplyTo = r
	}
	if reactions, ok := mapAttr(item, "reactions"); ok {
		msg.Reactions = make(map[string][]string, len(reactions))
		emojis := make([]string, 0, len(reactions))
		for emoji := range reactions {
			emojis = append(emojis, emoji)
		}
		sort.Strings(emojis)
		for _, emoji := range emojis {
			users, _ := listAttr(reactions, emoji)
			for _, u := range users {
				if s, ok := u.(*types.AttributeValueMemberS); ok {
					msg.Reactions[emoji] = append(msg.Reactions[emoji], s.Value)
				}
			}
		}
	}
	if _, ok := item["editedAt"]; ok {
		edited, err := timeAttr(item, "editedAt")
		if err != nil {
			return domain.Message{}, err
		}
		msg.EditedAt = &edited
	}
	return msg, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, fmt.Errorf("repository: missing attribute %q", key)
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a bool", key)
	}
	return b.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := parseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return ts, nil
}

func mapAttr(item map[string]types.AttributeValue, key string) (map[string]types.AttributeValue, bool) {
	m, ok := item[key].(*types.AttributeValueMemberM)
	if !ok {
		return nil, false
	}
	return m.Value, true
}

func listAttr(item map[string]types.AttributeValue, key string) ([]types.AttributeValue, error) {
	v, ok := item[key]
	if !ok {
		return nil, fmt.Errorf("repository: missing attribute %q", key)
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	return l.Value, nil
}

// conversationIDFromSK extracts the id from a membership sort key.
func conversationIDFromSK(sk string) string {
	return strings.TrimPrefix(sk, skPrefixConv)
}
