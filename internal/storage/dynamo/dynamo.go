package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"courseware/internal/domain"
	"courseware/internal/domain/models/library"
	"courseware/internal/domain/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client the storage collaborators use.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// ContentStore reads blob metadata written by the upload transport.
// Items are keyed by "content_id".
type ContentStore struct {
	client    API
	tableName string
}

// NewContentStore creates a DynamoDB-backed content store
func NewContentStore(client API, tableName string) *ContentStore {
	return &ContentStore{client: client, tableName: tableName}
}

// Stat returns blob metadata
func (s *ContentStore) Stat(ctx context.Context, contentID string) (*services.ContentInfo, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"content_id": &types.AttributeValueMemberS{Value: contentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s: %w", contentID, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("content %s: %w", contentID, domain.ErrNotFound)
	}

	var info services.ContentInfo
	if err := attributevalue.UnmarshalMap(out.Item, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content %s: %w", contentID, err)
	}
	return &info, nil
}

// QuotaItem is the stored usage record of one personal scope
type QuotaItem struct {
	ScopeKey  string `dynamodbav:"scope_key"`
	CourseID  string `dynamodbav:"course_id"`
	TraineeID string `dynamodbav:"trainee_id"`
	UsedBytes int64  `dynamodbav:"used_bytes"`
}

// QuotaManager meters personal scopes with conditional atomic counters.
// Items are keyed by "scope_key".
type QuotaManager struct {
	client    API
	tableName string
	limit     int64
}

// NewQuotaManager creates a DynamoDB-backed quota manager
func NewQuotaManager(client API, tableName string, limitBytes int64) *QuotaManager {
	return &QuotaManager{client: client, tableName: tableName, limit: limitBytes}
}

// Charge reserves bytes for the scope. The increment only applies while the
// stored usage leaves room for it, so concurrent charges cannot overshoot.
func (q *QuotaManager) Charge(ctx context.Context, scope library.Scope, bytes int64) error {
	if !scope.IsPersonal() || bytes <= 0 {
		return nil
	}
	if bytes > q.limit {
		return fmt.Errorf("%s cannot hold %d bytes (limit %d): %w", scope, bytes, q.limit, domain.ErrQuotaExceeded)
	}

	_, err := q.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(q.tableName),
		Key:                 q.key(scope),
		UpdateExpression:    aws.String("SET course_id = :course, trainee_id = :trainee ADD used_bytes :bytes"),
		ConditionExpression: aws.String("attribute_not_exists(used_bytes) OR used_bytes <= :max"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":course":  &types.AttributeValueMemberS{Value: scope.CourseID},
			":trainee": &types.AttributeValueMemberS{Value: scope.TraineeID},
			":bytes":   number(bytes),
			":max":     number(q.limit - bytes),
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return fmt.Errorf("%s cannot add %d bytes (limit %d): %w", scope, bytes, q.limit, domain.ErrQuotaExceeded)
		}
		return fmt.Errorf("failed to charge quota: %w", err)
	}
	return nil
}

// Refund releases previously charged bytes
func (q *QuotaManager) Refund(ctx context.Context, scope library.Scope, bytes int64) error {
	if !scope.IsPersonal() || bytes <= 0 {
		return nil
	}

	_, err := q.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(q.tableName),
		Key:                 q.key(scope),
		UpdateExpression:    aws.String("ADD used_bytes :bytes"),
		ConditionExpression: aws.String("attribute_exists(used_bytes)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":bytes": number(-bytes),
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return fmt.Errorf("no usage recorded for %s: %w", scope, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to refund quota: %w", err)
	}
	return nil
}

// Usage returns the stored usage record of a scope
func (q *QuotaManager) Usage(ctx context.Context, scope library.Scope) (*QuotaItem, error) {
	out, err := q.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(q.tableName),
		Key:       q.key(scope),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get quota usage: %w", err)
	}
	if out.Item == nil {
		return &QuotaItem{ScopeKey: scope.Key(), CourseID: scope.CourseID, TraineeID: scope.TraineeID}, nil
	}

	var item QuotaItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quota usage: %w", err)
	}
	return &item, nil
}

func (q *QuotaManager) key(scope library.Scope) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"scope_key": &types.AttributeValueMemberS{Value: scope.Key()},
	}
}

func number(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
