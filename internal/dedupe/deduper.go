package dedupe

import "context"

// General contract for dedup ledgers
type Deduper interface {
	// if alreadySeen=true -> duplicate, the item can be skipped
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)

	// Mark records id as processed; callers mark only after the item
	// parsed, so a malformed item stays retryable
	Mark(ctx context.Context, id string) error

	// Reset wipes the ledger; called on epoch rollover
	Reset()
}
