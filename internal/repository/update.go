package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"jobboard-messaging/internal/domain"
)

// updateExpr is a compiled UpdateExpression with its placeholders.
type updateExpr struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// compilePatch turns a patch into per-key SET clauses so concurrent writers of
// other keys in the same maps are never clobbered. A user listed in both
// IncrementUnread and ResetUnread is reset. updatedAt is written only when the
// patch carries one, matching ConversationPatch.Apply. A patch with nothing to
// write compiles to an empty expression.
func compilePatch(p domain.ConversationPatch) updateExpr {
	b := &exprBuilder{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}

	if p.LastMessage != nil {
		b.set("lastMessage = " + b.value(lastMessageAttr(*p.LastMessage)))
	}

	reset := make(map[string]bool, len(p.ResetUnread))
	for _, id := range dedupe(p.ResetUnread) {
		reset[id] = true
		b.set(fmt.Sprintf("unreadCount.%s = %s", b.name(id), b.value(numberAttr(0))))
	}
	for _, id := range dedupe(p.IncrementUnread) {
		if reset[id] {
			continue
		}
		n := b.name(id)
		b.set(fmt.Sprintf("unreadCount.%s = if_not_exists(unreadCount.%s, %s) + %s",
			n, n, b.value(numberAttr(0)), b.value(numberAttr(1))))
	}
	for _, id := range sortedKeys(p.Typing) {
		b.set(fmt.Sprintf("typing.%s = %s", b.name(id), b.value(&types.AttributeValueMemberBOOL{Value: p.Typing[id]})))
	}
	for _, id := range sortedKeys(p.ParticipantDetails) {
		b.set(fmt.Sprintf("participantDetails.%s = %s", b.name(id), b.value(detailsAttr(p.ParticipantDetails[id]))))
	}
	if p.IsPinned != nil {
		b.set("isPinned = " + b.value(&types.AttributeValueMemberBOOL{Value: *p.IsPinned}))
	}
	if p.IsArchived != nil {
		b.set("isArchived = " + b.value(&types.AttributeValueMemberBOOL{Value: *p.IsArchived}))
	}

	if !p.UpdatedAt.IsZero() {
		b.set("updatedAt = " + b.value(&types.AttributeValueMemberS{Value: formatTime(p.UpdatedAt)}))
	}

	if len(b.clauses) == 0 {
		return updateExpr{}
	}
	return updateExpr{
		Expression: "SET " + strings.Join(b.clauses, ", "),
		Names:      b.names,
		Values:     b.values,
	}
}

type exprBuilder struct {
	clauses []string
	names   map[string]string
	values  map[string]types.AttributeValue
	byName  map[string]string
}

func (b *exprBuilder) set(clause string) {
	b.clauses = append(b.clauses, clause)
}

// name returns a placeholder for a map key; user ids are arbitrary strings
// and cannot appear in a document path directly.
func (b *exprBuilder) name(raw string) string {
	if b.byName == nil {
		b.byName = map[string]string{}
	}
	if ph, ok := b.byName[raw]; ok {
		return ph
	}
	ph := fmt.Sprintf("#k%d", len(b.byName))
	b.byName[raw] = ph
	b.names[ph] = raw
	return ph
}

func (b *exprBuilder) value(v types.AttributeValue) string {
	ph := fmt.Sprintf(":v%d", len(b.values))
	b.values[ph] = v
	return ph
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
