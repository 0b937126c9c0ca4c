package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-listing-sync/internal/aws"
	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// DynamoLedger keeps processed fingerprints in a DynamoDB table keyed by
// fingerprint. DynamoDB TTL deletion lags by hours, so reads re-check age.
type DynamoLedger struct {
	client    aws.DynamoDBAPI
	tableName string
	ttl       time.Duration
	nowFunc   func() time.Time
}

// NewDynamoLedger returns a ledger bound to tableName.
func NewDynamoLedger(client aws.DynamoDBAPI, tableName string) *DynamoLedger {
	return &DynamoLedger{
		client:    client,
		tableName: tableName,
		ttl:       DefaultTTL,
		nowFunc:   time.Now,
	}
}

func (l *DynamoLedger) IsDuplicate(ctx context.Context, fp events.Fingerprint) (bool, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"fingerprint": &types.AttributeValueMemberS{Value: string(fp)},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return false, wrapAPIError("get item", err)
	}
	if len(out.Item) == 0 {
		return false, nil
	}
	var entry LedgerEntry
	if err := attributevalue.UnmarshalMap(out.Item, &entry); err != nil {
		return false, fmt.Errorf("unmarshal ledger entry: %w", err)
	}
	return !expired(entry.ProcessedAtEpochMillis, l.nowFunc(), l.ttl), nil
}

// Claim writes the entry only if none exists or the stored one is past the TTL.
// Items DynamoDB has not yet reaped still count as free once expired.
func (l *DynamoLedger) Claim(ctx context.Context, fp events.Fingerprint) (bool, error) {
	now := l.nowFunc()
	item, err := l.entry(fp, now)
	if err != nil {
		return false, err
	}
	cutoff := strconv.FormatInt(now.Add(-l.ttl).UnixMilli(), 10)
	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &l.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(fingerprint) OR processed_at_ms <= :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: cutoff},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return false, nil
		}
		return false, wrapAPIError("conditional put item", err)
	}
	return true, nil
}

func (l *DynamoLedger) MarkProcessed(ctx context.Context, fp events.Fingerprint) error {
	item, err := l.entry(fp, l.nowFunc())
	if err != nil {
		return err
	}
	if _, err := l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	}); err != nil {
		return wrapAPIError("put item", err)
	}
	return nil
}

func (l *DynamoLedger) entry(fp events.Fingerprint, now time.Time) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(LedgerEntry{
		Fingerprint:            string(fp),
		ProcessedAtEpochMillis: now.UnixMilli(),
		ExpiresAt:              now.Add(l.ttl).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ledger entry: %w", err)
	}
	return item, nil
}

// wrapAPIError surfaces the DynamoDB error code (throttling, missing table) in the message.
func wrapAPIError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s (%s): %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func awsBool(b bool) *bool { return &b }

func awsString(s string) *string { return &s }
