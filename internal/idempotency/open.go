package idempotency

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-listing-sync/internal/aws"
)

// Options selects and configures the ledger backend.
type Options struct {
	Backend string
	Redis   RedisConfig
	Table   string          // DynamoDB table name
	Dynamo  aws.DynamoDBAPI // required for the dynamodb backend
}

// Open builds the ledger named by opts.Backend. An empty backend means memory.
func Open(ctx context.Context, opts Options) (Ledger, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryLedger(), nil
	case BackendRedis:
		l, err := NewRedisLedger(ctx, opts.Redis)
		if err != nil {
			return nil, err
		}
		return l, nil
	case BackendDynamoDB:
		if opts.Dynamo == nil || opts.Table == "" {
			return nil, fmt.Errorf("dynamodb ledger needs a client and a table name")
		}
		return NewDynamoLedger(opts.Dynamo, opts.Table), nil
	default:
		return nil, fmt.Errorf("ledger backend %q is not supported", opts.Backend)
	}
}
