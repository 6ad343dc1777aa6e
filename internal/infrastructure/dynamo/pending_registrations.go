package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-email-verify/internal/domain"
)

// PendingRegistrationRepo stores pending registrations in DynamoDB so that
// several API instances can share codes.
// PK: email. expires_at is a TTL attribute; DynamoDB reaps rows lazily, so
// validity is always judged from issued_at.
type PendingRegistrationRepo struct {
	api       API
	tableName string
	ttl       time.Duration
}

func NewPendingRegistrationRepo(api API, tableName string, ttl time.Duration) *PendingRegistrationRepo {
	return &PendingRegistrationRepo{api: api, tableName: tableName, ttl: ttl}
}

// Put replaces any existing row for reg.Email.
func (r *PendingRegistrationRepo) Put(ctx context.Context, reg *domain.PendingRegistration) error {
	item, err := attributevalue.MarshalMap(toItem(reg, r.ttl))
	if err != nil {
		return fmt.Errorf("marshal pending registration: %w", err)
	}
	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put pending registration: %w", err)
	}
	return nil
}

// TryConsume deletes the row only if it exists, holds code and is still
// within the validity window. When the condition fails the old row tells
// us which of not-found, expired or mismatch applies.
func (r *PendingRegistrationRepo) TryConsume(ctx context.Context, email, code string, now time.Time) (*domain.PendingRegistration, error) {
	cutoff := now.Add(-r.ttl).UnixNano()
	out, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(attrEmail, email),
		ConditionExpression: aws.String("attribute_exists(#email) AND #code = :code AND #issued >= :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#email":  attrEmail,
			"#code":   attrCode,
			"#issued": attrIssuedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code":   &types.AttributeValueMemberS{Value: code},
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff, 10)},
		},
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		var it pendingItem
		if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
			return nil, fmt.Errorf("unmarshal pending registration: %w", err)
		}
		return it.toDomain(), nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return nil, fmt.Errorf("consume pending registration: %w", err)
	}
	if len(ccf.Item) == 0 {
		return nil, domain.ErrNotFound
	}
	var old pendingItem
	if err := attributevalue.UnmarshalMap(ccf.Item, &old); err != nil {
		return nil, fmt.Errorf("unmarshal pending registration: %w", err)
	}
	if old.IssuedAt < cutoff {
		r.evict(ctx, email, old.RegistrationID)
		return nil, domain.ErrExpired
	}
	return nil, domain.ErrCodeMismatch
}

// evict removes the expired row observed by TryConsume. The condition on
// registration_id keeps a concurrent re-issue for the same email intact.
func (r *PendingRegistrationRepo) evict(ctx context.Context, email, registrationID string) {
	_, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrEmail, email),
		ConditionExpression:       aws.String("#rid = :rid"),
		ExpressionAttributeNames:  map[string]string{"#rid": attrRegistrationID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":rid": &types.AttributeValueMemberS{Value: registrationID}},
	})
	var ccf *types.ConditionalCheckFailedException
	if err != nil && !errors.As(err, &ccf) {
		slog.Warn("failed to evict expired registration", "registration_id", registrationID, "err", err)
	}
}
