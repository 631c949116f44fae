package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"message-relay/internal/domain"
)

const (
	skMessage    = "MESSAGE"
	skDedup      = "DEDUP"
	skConfig     = "CONFIG"
	pkWebhook    = "WEBHOOK#ACTIVE"
	notExistsPK  = "attribute_not_exists(PK)"
	conditionErr = "ConditionalCheckFailed"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores messages and the active webhook configuration in one table.
type Client struct {
	api       dynamodbAPI
	tableName string
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Client)

// WithTimeout bounds every DynamoDB call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
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
	c := &Client{api: api, tableName: tableName, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func messagePK(messageID string) string {
	return "MSG#" + messageID
}

func dedupPK(whatsappID string) string {
	return "WA#" + whatsappID
}

// SaveMessage inserts msg under a freshly assigned id and returns it. The
// message item and a marker keyed by the channel message id are written in one
// transaction, so a redelivered event fails with domain.ErrDuplicate.
func (c *Client) SaveMessage(ctx context.Context, msg domain.PersistedMessage) (string, error) {
	if strings.TrimSpace(msg.WhatsAppID) == "" {
		return "", errors.New("repository: SaveMessage: whatsapp id is required")
	}
	msg.MessageID = newID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.now().UTC()
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                dedupItem(msg),
					ConditionExpression: aws.String(notExistsPK),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(msg),
					ConditionExpression: aws.String(notExistsPK),
				},
			},
		},
	})
	if err != nil {
		if isDedupConflict(err) {
			return "", fmt.Errorf("repository: SaveMessage %q: %w", msg.WhatsAppID, domain.ErrDuplicate)
		}
		return "", fmt.Errorf("repository: SaveMessage: %w", err)
	}
	return msg.MessageID, nil
}

// isDedupConflict reports whether the transaction was cancelled by the
// dedup marker condition (the first transact item).
func isDedupConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || len(tce.CancellationReasons) == 0 {
		return false
	}
	return aws.ToString(tce.CancellationReasons[0].Code) == conditionErr
}

// GetMessage loads a persisted message by id.
func (c *Client) GetMessage(ctx context.Context, messageID string) (domain.PersistedMessage, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: messagePK(messageID)},
			"SK": &types.AttributeValueMemberS{Value: skMessage},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("repository: GetMessage get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.PersistedMessage{}, fmt.Errorf("repository: GetMessage %q: %w", messageID, domain.ErrNotFound)
	}
	msg, err := itemToMessage(out.Item)
	if err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("repository: GetMessage unmarshal: %w", err)
	}
	return msg, nil
}

// GetActiveWebhookConfig returns the active config, or nil when none is set.
func (c *Client) GetActiveWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkWebhook},
			"SK": &types.AttributeValueMemberS{Value: skConfig},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveWebhookConfig get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	if active, ok := out.Item["active"].(*types.AttributeValueMemberBOOL); ok && !active.Value {
		return nil, nil
	}

	url, err := strAttr(out.Item, "url")
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveWebhookConfig decode: %w", err)
	}
	secret, err := strAttr(out.Item, "secret")
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveWebhookConfig decode: %w", err)
	}
	retries, err := intAttr(out.Item, "retries")
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveWebhookConfig decode: %w", err)
	}
	return &domain.WebhookConfig{URL: url, Secret: secret, Retries: retries}, nil
}

// PutActiveWebhookConfig replaces the active config.
func (c *Client) PutActiveWebhookConfig(ctx context.Context, cfg domain.WebhookConfig) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return errors.New("repository: PutActiveWebhookConfig: url is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: pkWebhook},
			"SK":        &types.AttributeValueMemberS{Value: skConfig},
			"url":       &types.AttributeValueMemberS{Value: cfg.URL},
			"secret":    &types.AttributeValueMemberS{Value: cfg.Secret},
			"retries":   &types.AttributeValueMemberN{Value: strconv.Itoa(cfg.Retries)},
			"active":    &types.AttributeValueMemberBOOL{Value: true},
			"updatedAt": &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutActiveWebhookConfig: %w", err)
	}
	return nil
}

func messageItem(msg domain.PersistedMessage) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: messagePK(msg.MessageID)},
		"SK":             &types.AttributeValueMemberS{Value: skMessage},
		"messageId":      &types.AttributeValueMemberS{Value: msg.MessageID},
		"whatsappId":     &types.AttributeValueMemberS{Value: msg.WhatsAppID},
		"fromNumber":     &types.AttributeValueMemberS{Value: msg.FromNumber},
		"body":           &types.AttributeValueMemberS{Value: msg.Body},
		"isFromMe":       &types.AttributeValueMemberBOOL{Value: msg.IsFromMe},
		"conversationId": &types.AttributeValueMemberS{Value: msg.ConversationID.String()},
		"userId":         &types.AttributeValueMemberS{Value: msg.UserID.String()},
		"createdAt":      &types.AttributeValueMemberS{Value: msg.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func dedupItem(msg domain.PersistedMessage) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: dedupPK(msg.WhatsAppID)},
		"SK":        &types.AttributeValueMemberS{Value: skDedup},
		"messageId": &types.AttributeValueMemberS{Value: msg.MessageID},
	}
}

func itemToMessage(item map[string]types.AttributeValue) (domain.PersistedMessage, error) {
	id, err := strAttr(item, "messageId")
	if err != nil {
		return domain.PersistedMessage{}, err
	}
	from, err := strAttr(item, "fromNumber")
	if err != nil {
		return domain.PersistedMessage{}, err
	}
	whatsappID, _ := strAttr(item, "whatsappId")
	body, _ := strAttr(item, "body") // empty bodies are valid
	convID, _ := strAttr(item, "conversationId")
	userID, _ := strAttr(item, "userId")

	msg := domain.PersistedMessage{
		MessageID:      id,
		WhatsAppID:     whatsappID,
		FromNumber:     from,
		Body:           body,
		ConversationID: domain.ID(convID),
		UserID:         domain.ID(userID),
	}
	if v, ok := item["isFromMe"].(*types.AttributeValueMemberBOOL); ok {
		msg.IsFromMe = v.Value
	}
	if created, err := strAttr(item, "createdAt"); err == nil {
		if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			msg.CreatedAt = ts
		}
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

var newID = func() string {
	return uuid.NewString()
}
