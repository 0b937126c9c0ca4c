package app

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-listing-sync/internal/aws"
	"github.com/imrishuroy/go-listing-sync/internal/config"
	"github.com/imrishuroy/go-listing-sync/internal/idempotency"
)

type nopDynamo struct{}

func (nopDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (nopDynamo) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

type nopSQS struct{}

func (nopSQS) SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{}, nil
}

type nopCloudWatch struct{}

func (nopCloudWatch) PutMetricData(context.Context, *cloudwatch.PutMetricDataInput, ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func countingLoader(calls *int) AWSLoader {
	return func(context.Context) (*aws.AWSClients, error) {
		*calls++
		return &aws.AWSClients{DynamoDB: nopDynamo{}, SQS: nopSQS{}, CloudWatch: nopCloudWatch{}}, nil
	}
}

func mustConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	return cfg
}

func TestBuild_MinimalConfigNeedsNoAWS(t *testing.T) {
	calls := 0
	d, err := Build(context.Background(), mustConfig(t, nil), zerolog.Nop(), countingLoader(&calls))
	require.NoError(t, err)

	assert.Zero(t, calls)
	assert.IsType(t, &idempotency.MemoryLedger{}, d.Ledger)
	assert.False(t, d.Dispatcher.Capabilities().Search.Enabled)
	assert.False(t, d.Dispatcher.Capabilities().Revalidate.Enabled)
	assert.Nil(t, d.FailureSink)
	assert.True(t, d.Verifier.ReducedSecurity())
	assert.Len(t, d.Observers, 1)
}

func TestBuild_EnablesConfiguredAdapters(t *testing.T) {
	calls := 0
	cfg := mustConfig(t, map[string]string{
		"WEBHOOK_SECRET":         "s",
		"SEARCH_HOST":            "http://localhost:9200",
		"SEARCH_API_KEY":         "k",
		"REVALIDATE_URL":         "http://localhost:3000/api/revalidate",
		"REVALIDATE_SECRET":      "r",
		"LEDGER_BACKEND":         "dynamodb",
		"LEDGER_TABLE":           "listing-sync-ledger",
		"SYNC_FAILURE_QUEUE_URL": "http://localhost:4566/000000000000/sync-failures",
		"CLOUDWATCH_NAMESPACE":   "ListingSync",
	})

	d, err := Build(context.Background(), cfg, zerolog.Nop(), countingLoader(&calls))
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "aws clients are built once")
	assert.True(t, d.Dispatcher.Capabilities().Search.Enabled)
	assert.True(t, d.Dispatcher.Capabilities().Revalidate.Enabled)
	assert.IsType(t, &idempotency.DynamoLedger{}, d.Ledger)
	assert.NotNil(t, d.FailureSink)
	assert.Len(t, d.Observers, 2)
	assert.False(t, d.Verifier.ReducedSecurity())

	rc := d.RouterConfig(zerolog.Nop())
	assert.True(t, rc.Health.Search)
	assert.NotNil(t, rc.Metrics)
}

func TestBuild_RedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := mustConfig(t, map[string]string{"LEDGER_BACKEND": "redis", "REDIS_ADDR": mr.Addr()})

	d, err := Build(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &idempotency.RedisLedger{}, d.Ledger)
	assert.NoError(t, d.Close())
}

func TestBuild_AWSFailure(t *testing.T) {
	cfg := mustConfig(t, map[string]string{"SYNC_FAILURE_QUEUE_URL": "q"})
	loader := func(context.Context) (*aws.AWSClients, error) { return nil, errors.New("no credentials") }

	_, err := Build(context.Background(), cfg, zerolog.Nop(), loader)
	assert.ErrorContains(t, err, "no credentials")
}
