package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"jobboard-messaging/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	batchGetLimit       = 100
	batchWriteLimit     = 25
	maxBatchRetries     = 5
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding conversations, messages and their
// index records in a single-table layout.
type Client struct {
	api          dynamodbAPI
	tableName    string
	pollInterval time.Duration
	hub          *hub
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets how often live subscriptions re-read the table.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{
		api:          api,
		tableName:    tableName,
		pollInterval: defaultPollInterval,
		hub:          newHub(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "dynamodb_store", "table", tableName)
	return c, nil
}

// FindConversation resolves the pair lock for a and b and loads the
// conversation it points at. It returns nil when the pair has none.
func (c *Client) FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(pairPK(a, b), skPair),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: FindConversation get pair: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	id, err := strAttr(out.Item, "conversationId")
	if err != nil {
		return nil, fmt.Errorf("repository: FindConversation decode pair: %w", err)
	}
	conv, err := c.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("repository: FindConversation: %w", err)
	}
	return conv, nil
}

// CreateConversation writes the conversation, its pair lock and both
// membership records in one transaction. A pair lock held by a live
// conversation yields domain.ErrConversationExists; a lock left behind by a
// conversation that no longer exists is taken over.
func (c *Client) CreateConversation(ctx context.Context, conv domain.Conversation) (string, error) {
	if conv.ID == "" {
		return "", errors.New("repository: CreateConversation: id is required")
	}
	if conv.Participants[0] == "" || conv.Participants[0] == conv.Participants[1] {
		return "", errors.New("repository: CreateConversation: two distinct participants are required")
	}
	ensureMaps(&conv)

	stale := ""
	for attempt := 0; ; attempt++ {
		err := c.createTx(ctx, conv, stale)
		if err == nil {
			break
		}
		if !cancelledAt(err, txCreatePair) {
			if conditionFailed(err) {
				return "", fmt.Errorf("repository: CreateConversation: %w", domain.ErrConversationExists)
			}
			return "", fmt.Errorf("repository: CreateConversation: %w", err)
		}
		if attempt > 0 {
			return "", fmt.Errorf("repository: CreateConversation: %w", domain.ErrConversationExists)
		}

		owner, live, err := c.pairOwner(ctx, conv.Participants[0], conv.Participants[1])
		if err != nil {
			return "", fmt.Errorf("repository: CreateConversation: %w", err)
		}
		if live {
			return "", fmt.Errorf("repository: CreateConversation: %w", domain.ErrConversationExists)
		}
		if owner != "" {
			c.logger.Warn("taking over stale pair lock", "stale_conversation_id", owner, "conversation_id", conv.ID)
		}
		stale = owner
	}

	c.hub.publish(participantTopics(conv)...)
	return conv.ID, nil
}

// Transaction item positions, used to read cancellation reasons.
const (
	txCreateMeta = 0
	txCreatePair = 1

	txAppendMessage = 0
	txAppendMeta    = 1

	txDeleteMeta = 0
)

// createTx puts the conversation records. When stale is set the pair lock may
// replace a lock that still names that conversation id.
func (c *Client) createTx(ctx context.Context, conv domain.Conversation, stale string) error {
	notExists := aws.String("attribute_not_exists(PK)")
	pairPut := &types.Put{TableName: aws.String(c.tableName), Item: pairItem(conv), ConditionExpression: notExists}
	if stale != "" {
		pairPut.ConditionExpression = aws.String("attribute_not_exists(PK) OR conversationId = :stale")
		pairPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":stale": &types.AttributeValueMemberS{Value: stale},
		}
	}
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			txCreateMeta: {Put: &types.Put{TableName: aws.String(c.tableName), Item: conversationItem(conv), ConditionExpression: notExists}},
			txCreatePair: {Put: pairPut},
			{Put: &types.Put{TableName: aws.String(c.tableName), Item: membershipItem(conv.Participants[0], conv.ID)}},
			{Put: &types.Put{TableName: aws.String(c.tableName), Item: membershipItem(conv.Participants[1], conv.ID)}},
		},
	})
	return err
}

// pairOwner returns the conversation id named by the pair lock of a and b and
// whether that conversation still exists.
func (c *Client) pairOwner(ctx context.Context, a, b string) (string, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(pairPK(a, b), skPair),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get pair: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	id, err := strAttr(out.Item, "conversationId")
	if err != nil {
		return "", false, fmt.Errorf("decode pair: %w", err)
	}
	conv, err := c.GetConversation(ctx, id)
	if err != nil {
		return "", false, err
	}
	return id, conv != nil, nil
}

// GetConversation returns the conversation or nil when it does not exist.
func (c *Client) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            metaKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetConversation get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	conv, err := itemToConversation(out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: GetConversation unmarshal: %w", err)
	}
	return &conv, nil
}

// UpdateConversation applies a partial patch to an existing conversation.
func (c *Client) UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch) error {
	expr := compilePatch(patch)
	if expr.Expression == "" {
		conv, err := c.GetConversation(ctx, id)
		if err != nil {
			return fmt.Errorf("repository: UpdateConversation: %w", err)
		}
		if conv == nil {
			return fmt.Errorf("repository: UpdateConversation: %w", domain.ErrConversationNotFound)
		}
		return nil
	}
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       metaKey(id),
		UpdateExpression:          aws.String(expr.Expression),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  namesOrNil(expr.Names),
		ExpressionAttributeValues: expr.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if conditionFailed(err) {
			return fmt.Errorf("repository: UpdateConversation: %w", domain.ErrConversationNotFound)
		}
		return fmt.Errorf("repository: UpdateConversation: %w", err)
	}

	c.publishConversation(id, out)
	return nil
}

// AppendMessage writes the message and the conversation patch in one
// transaction. A message id already stored yields domain.ErrDuplicateMessage.
func (c *Client) AppendMessage(ctx context.Context, msg domain.Message, patch domain.ConversationPatch) error {
	if msg.ID == "" || msg.ConversationID == "" {
		return errors.New("repository: AppendMessage: message id and conversation id are required")
	}

	meta := types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:           aws.String(c.tableName),
			Key:                 metaKey(msg.ConversationID),
			ConditionExpression: aws.String("attribute_exists(PK)"),
		},
	}
	if expr := compilePatch(patch); expr.Expression != "" {
		meta = types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(c.tableName),
				Key:                       metaKey(msg.ConversationID),
				UpdateExpression:          aws.String(expr.Expression),
				ConditionExpression:       aws.String("attribute_exists(PK)"),
				ExpressionAttributeNames:  namesOrNil(expr.Names),
				ExpressionAttributeValues: expr.Values,
			},
		}
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			txAppendMessage: {
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(msg),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			txAppendMeta: meta,
		},
	})
	switch {
	case err == nil:
	case cancelledAt(err, txAppendMeta):
		return fmt.Errorf("repository: AppendMessage: %w", domain.ErrConversationNotFound)
	case cancelledAt(err, txAppendMessage):
		return fmt.Errorf("repository: AppendMessage %s: %w", msg.ID, domain.ErrDuplicateMessage)
	default:
		return fmt.Errorf("repository: AppendMessage: %w", err)
	}

	c.hub.publish(conversationTopic(msg.ConversationID), userTopic(msg.SenderID), userTopic(msg.ReceiverID))
	return nil
}

// MarkMessagesRead stamps read receipts on unread messages addressed to
// receiverID.
func (c *Client) MarkMessagesRead(ctx context.Context, conversationID, receiverID string) error {
	items, err := c.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("receiverId = :rid AND #read = :false"),
		ExpressionAttributeNames: map[string]string{
			"#read": "read",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
			":rid":    &types.AttributeValueMemberS{Value: receiverID},
			":false":  &types.AttributeValueMemberBOOL{Value: false},
		},
		ProjectionExpression: aws.String("PK, SK"),
	})
	if err != nil {
		return fmt.Errorf("repository: MarkMessagesRead query: %w", err)
	}

	for _, item := range items {
		_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(c.tableName),
			Key:              map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]},
			UpdateExpression: aws.String("SET #read = :true, #status = :status"),
			ExpressionAttributeNames: map[string]string{
				"#read":   "read",
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true":   &types.AttributeValueMemberBOOL{Value: true},
				":status": &types.AttributeValueMemberS{Value: string(domain.StatusRead)},
			},
		})
		if err != nil {
			return fmt.Errorf("repository: MarkMessagesRead update: %w", err)
		}
	}

	if len(items) > 0 {
		c.hub.publish(conversationTopic(conversationID))
	}
	return nil
}

// DeleteConversation removes the conversation record, its pair lock and both
// membership records in one transaction, then sweeps the message items. Once
// the transaction commits the conversation is gone for both participants; a
// failed sweep only leaves unreachable message items behind.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	conv, err := c.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("repository: DeleteConversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("repository: DeleteConversation: %w", domain.ErrConversationNotFound)
	}

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			txDeleteMeta: {Delete: &types.Delete{
				TableName:           aws.String(c.tableName),
				Key:                 metaKey(id),
				ConditionExpression: aws.String("attribute_exists(PK)"),
			}},
			{Delete: &types.Delete{
				TableName:           aws.String(c.tableName),
				Key:                 key(pairPK(conv.Participants[0], conv.Participants[1]), skPair),
				ConditionExpression: aws.String("attribute_not_exists(PK) OR conversationId = :id"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":id": &types.AttributeValueMemberS{Value: id},
				},
			}},
			{Delete: &types.Delete{TableName: aws.String(c.tableName), Key: key(userPK(conv.Participants[0]), skPrefixConv+id)}},
			{Delete: &types.Delete{TableName: aws.String(c.tableName), Key: key(userPK(conv.Participants[1]), skPrefixConv+id)}},
		},
	})
	if err != nil {
		if cancelledAt(err, txDeleteMeta) {
			return fmt.Errorf("repository: DeleteConversation: %w", domain.ErrConversationNotFound)
		}
		return fmt.Errorf("repository: DeleteConversation: %w", err)
	}
	c.hub.publish(append(participantTopics(*conv), conversationTopic(id))...)

	if err := c.deleteMessages(ctx, id); err != nil {
		c.logger.Warn("message sweep incomplete after delete", "conversation_id", id, "err", err)
	}
	return nil
}

func (c *Client) deleteMessages(ctx context.Context, id string) error {
	items, err := c.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(id)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ProjectionExpression: aws.String("PK, SK"),
	})
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
	}
	return c.deleteKeys(ctx, keys)
}

// ListConversations reads the user's membership index and batch-loads the
// referenced conversations.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	members, err := c.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixConv},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListConversations query: %w", err)
	}

	keys := make([]map[string]types.AttributeValue, 0, len(members))
	for _, m := range members {
		sk, err := strAttr(m, "SK")
		if err != nil {
			return nil, fmt.Errorf("repository: ListConversations decode membership: %w", err)
		}
		keys = append(keys, metaKey(conversationIDFromSK(sk)))
	}

	items, err := c.batchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("repository: ListConversations: %w", err)
	}

	convs := make([]domain.Conversation, 0, len(items))
	for _, item := range items {
		conv, err := itemToConversation(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListConversations unmarshal: %w", err)
		}
		convs = append(convs, conv)
	}
	domain.SortConversations(convs)
	return convs, nil
}

// ListMessages queries every MSG# item of a conversation in ascending order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	items, err := c.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListMessages query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListMessages unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

// SubscribeConversationsForUser polls the user's conversation list and
// delivers it on change. Writes through this Client wake it immediately.
func (c *Client) SubscribeConversationsForUser(ctx context.Context, userID string, onChange func([]domain.Conversation)) (domain.Unsubscribe, error) {
	if onChange == nil {
		return nil, errors.New("repository: SubscribeConversationsForUser: callback must not be nil")
	}
	load := func(ctx context.Context) ([]domain.Conversation, error) {
		return c.ListConversations(ctx, userID)
	}
	return subscribe(ctx, c.hub, load, onChange, c.pollInterval, c.logger.With("user_id", userID), userTopic(userID)), nil
}

// SubscribeMessagesForConversation polls a conversation's messages and
// delivers them on change.
func (c *Client) SubscribeMessagesForConversation(ctx context.Context, conversationID string, onChange func([]domain.Message)) (domain.Unsubscribe, error) {
	if onChange == nil {
		return nil, errors.New("repository: SubscribeMessagesForConversation: callback must not be nil")
	}
	load := func(ctx context.Context) ([]domain.Message, error) {
		return c.ListMessages(ctx, conversationID)
	}
	return subscribe(ctx, c.hub, load, onChange, c.pollInterval, c.logger.With("conversation_id", conversationID), conversationTopic(conversationID)), nil
}

// queryAll follows LastEvaluatedKey until the result set is exhausted.
func (c *Client) queryAll(ctx context.Context, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return items, nil
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// batchGet loads keys in chunks, retrying unprocessed keys.
func (c *Client) batchGet(ctx context.Context, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for start := 0; start < len(keys); start += batchGetLimit {
		end := min(start+batchGetLimit, len(keys))
		pending := keys[start:end]

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt >= maxBatchRetries {
				return nil, fmt.Errorf("batch get: %d keys left unprocessed", len(pending))
			}
			out, err := c.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					c.tableName: {Keys: pending, ConsistentRead: aws.Bool(true)},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("batch get: %w", err)
			}
			if out == nil {
				break
			}
			items = append(items, out.Responses[c.tableName]...)
			pending = out.UnprocessedKeys[c.tableName].Keys
		}
	}
	return items, nil
}

// deleteKeys removes keys in chunks of 25, retrying unprocessed requests.
func (c *Client) deleteKeys(ctx context.Context, keys []map[string]types.AttributeValue) error {
	for start := 0; start < len(keys); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(keys))
		pending := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			pending = append(pending, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt >= maxBatchRetries {
				return fmt.Errorf("batch delete: %d requests left unprocessed", len(pending))
			}
			out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{c.tableName: pending},
			})
			if err != nil {
				return fmt.Errorf("batch delete: %w", err)
			}
			if out == nil {
				break
			}
			pending = out.UnprocessedItems[c.tableName]
		}
	}
	return nil
}

// publishConversation wakes the participants of an updated conversation.
func (c *Client) publishConversation(id string, out *dynamodb.UpdateItemOutput) {
	if out != nil && len(out.Attributes) > 0 {
		if conv, err := itemToConversation(out.Attributes); err == nil {
			c.hub.publish(participantTopics(conv)...)
			return
		}
	}
	c.logger.Debug("update returned no attributes, relying on poll", "conversation_id", id)
}

// conditionFailed reports whether err is a failed condition check, either
// directly or as a cancellation reason of a transaction.
func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// cancelledAt reports whether the transaction item at index failed its
// condition check.
func cancelledAt(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || index >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[index].Code) == "ConditionalCheckFailed"
}

func namesOrNil(names map[string]string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	return names
}
