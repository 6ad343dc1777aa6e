package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-email-verify/internal/domain"
)

// Attribute names of the pending_registrations table.
const (
	attrEmail          = "email"
	attrRegistrationID = "registration_id"
	attrCode           = "code"
	attrIssuedAt       = "issued_at"
	attrExpiresAt      = "expires_at"
)

// pendingItem is the stored shape of a PendingRegistration.
// IssuedAt is unix nanoseconds; ExpiresAt is unix seconds for DynamoDB TTL.
type pendingItem struct {
	Email          string `dynamodbav:"email"`
	RegistrationID string `dynamodbav:"registration_id"`
	Nickname       string `dynamodbav:"nickname"`
	Password       string `dynamodbav:"password"`
	Code           string `dynamodbav:"code"`
	IssuedAt       int64  `dynamodbav:"issued_at"`
	ExpiresAt      int64  `dynamodbav:"expires_at"`
}

func toItem(reg *domain.PendingRegistration, ttl time.Duration) pendingItem {
	return pendingItem{
		Email:          reg.Email,
		RegistrationID: reg.ID,
		Nickname:       reg.Nickname,
		Password:       reg.Password,
		Code:           reg.Code,
		IssuedAt:       reg.IssuedAt.UnixNano(),
		ExpiresAt:      reg.IssuedAt.Add(ttl).Unix() + 1,
	}
}

func (it pendingItem) toDomain() *domain.PendingRegistration {
	return &domain.PendingRegistration{
		ID:       it.RegistrationID,
		Email:    it.Email,
		Nickname: it.Nickname,
		Password: it.Password,
		Code:     it.Code,
		IssuedAt: time.Unix(0, it.IssuedAt).UTC(),
	}
}

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}
