package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// MemoryLedger is a process-local ledger. It does not survive restarts and is not
// shared between instances.
type MemoryLedger struct {
	mu         sync.Mutex
	entries    map[events.Fingerprint]int64 // processed at, epoch millis
	ttl        time.Duration
	maxEntries int
	nowFunc    func() time.Time
}

// NewMemoryLedger returns a ledger with the default TTL and size ceiling.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries:    make(map[events.Fingerprint]int64),
		ttl:        DefaultTTL,
		maxEntries: MaxEntries,
		nowFunc:    time.Now,
	}
}

func (l *MemoryLedger) IsDuplicate(_ context.Context, fp events.Fingerprint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	processedAt, ok := l.entries[fp]
	if !ok {
		return false, nil
	}
	if expired(processedAt, l.nowFunc(), l.ttl) {
		delete(l.entries, fp)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLedger) Claim(_ context.Context, fp events.Fingerprint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if processedAt, ok := l.entries[fp]; ok && !expired(processedAt, now, l.ttl) {
		return false, nil
	}
	l.entries[fp] = now.UnixMilli()
	if len(l.entries) > l.maxEntries {
		l.sweep(now)
	}
	return true, nil
}

func (l *MemoryLedger) MarkProcessed(_ context.Context, fp events.Fingerprint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.entries[fp] = now.UnixMilli()
	if len(l.entries) > l.maxEntries {
		l.sweep(now)
	}
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweep drops every expired entry. Caller holds mu.
func (l *MemoryLedger) sweep(now time.Time) {
	for fp, processedAt := range l.entries {
		if expired(processedAt, now, l.ttl) {
			delete(l.entries, fp)
		}
	}
}
