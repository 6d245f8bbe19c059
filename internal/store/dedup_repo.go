package store

import (
	"context"
	"time"
)

// DedupRetention is how long inbound message ids are remembered.
const DedupRetention = 24 * time.Hour

// DedupRepo remembers inbound provider message ids so webhook redeliveries are processed once.
type DedupRepo interface {
	// RecordInbound records messageID for sessionID. It returns false when the id was seen before.
	RecordInbound(ctx context.Context, messageID, sessionID string) (bool, error)

	// MarkProcessed stamps the time the message's turn finished.
	MarkProcessed(ctx context.Context, messageID string) error

	// PruneDedup forgets ids received before the cutoff and returns how many were removed.
	PruneDedup(ctx context.Context, before time.Time) (int, error)
}
