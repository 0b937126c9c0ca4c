package idempotency

import (
	"context"
	"errors"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a very small in-memory mock for PutItem/GetItem used in unit tests.
type simpleMock struct {
	mu       sync.Mutex
	table    map[string]map[string]types.AttributeValue
	putCalls int
	getCalls int
	failWith error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	keyAttr, ok := params.Item["fingerprint"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing key")
	}
	if params.ConditionExpression != nil && !m.conditionHolds(keyAttr.Value, params) {
		return nil, &types.ConditionalCheckFailedException{Message: awsString("The conditional request failed")}
	}
	m.table[keyAttr.Value] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	keyAttr, ok := params.Key["fingerprint"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing key")
	}
	item, ok := m.table[keyAttr.Value]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// conditionHolds evaluates the ledger's claim condition:
// attribute_not_exists(fingerprint) OR processed_at_ms <= :cutoff.
func (m *simpleMock) conditionHolds(key string, params *dyn.PutItemInput) bool {
	existing, ok := m.table[key]
	if !ok {
		return true
	}
	stored, ok := existing["processed_at_ms"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	cutoff, ok := params.ExpressionAttributeValues[":cutoff"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	s, err1 := strconv.ParseInt(stored.Value, 10, 64)
	c, err2 := strconv.ParseInt(cutoff.Value, 10, 64)
	return err1 == nil && err2 == nil && s <= c
}
