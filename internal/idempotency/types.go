package idempotency

import (
	"context"
	"time"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

const (
	// DefaultTTL is how long a processed fingerprint suppresses redeliveries.
	DefaultTTL = 5 * time.Minute
	// MaxEntries bounds the in-memory ledger; growing past it triggers a sweep.
	MaxEntries = 10000
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Ledger remembers which event fingerprints were already processed.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// IsDuplicate reports whether fp was processed less than the TTL ago.
	IsDuplicate(ctx context.Context, fp events.Fingerprint) (bool, error)
	// Claim atomically records fp as in flight. It returns false when another
	// caller processed or claimed fp less than the TTL ago.
	Claim(ctx context.Context, fp events.Fingerprint) (bool, error)
	// MarkProcessed records fp as processed now, overwriting any older entry.
	MarkProcessed(ctx context.Context, fp events.Fingerprint) error
}

// LedgerEntry is the shape persisted in the DynamoDB ledger table.
type LedgerEntry struct {
	Fingerprint            string `dynamodbav:"fingerprint"` // PK
	ProcessedAtEpochMillis int64  `dynamodbav:"processed_at_ms"`
	ExpiresAt              int64  `dynamodbav:"expires_at"` // TTL epoch seconds
}

func expired(processedAtMillis int64, now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-processedAtMillis >= ttl.Milliseconds()
}
