package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/flow"
)

// OutboxStatus represents the lifecycle state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusQueued  OutboxStatus = "queued"
	OutboxStatusSending OutboxStatus = "sending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// KindLead marks an outbox message carrying a lead payload for the backend.
const KindLead = "lead"

// OutboxMessage is a durable request to the backend that failed during a conversation and is
// retried in the background.
type OutboxMessage struct {
	ID            string       `json:"id"`
	SessionID     string       `json:"session_id"`
	UserID        string       `json:"user_id"`
	Kind          string       `json:"kind"`
	PayloadJSON   string       `json:"payload_json"`
	Status        OutboxStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	NextAttemptAt *time.Time   `json:"next_attempt_at"`
	DedupeKey     string       `json:"dedupe_key"`
	LockedAt      *time.Time   `json:"locked_at"`
	LastError     string       `json:"last_error"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// OutboxRepo persists outbox messages.
type OutboxRepo interface {
	// EnqueueOutboxMessage inserts a queued message. When dedupeKey is non-empty and a message with
	// that key is still pending, the existing id is returned instead.
	EnqueueOutboxMessage(ctx context.Context, msg OutboxMessage) (string, error)

	// ClaimDueOutboxMessages marks up to limit queued messages whose next attempt is due as sending
	// and returns them.
	ClaimDueOutboxMessages(ctx context.Context, now time.Time, limit int) ([]OutboxMessage, error)

	// MarkOutboxMessageSent marks a message as delivered.
	MarkOutboxMessageSent(ctx context.Context, id string) error

	// FailOutboxMessage records a failed attempt. A zero nextAttemptAt gives up on the message.
	FailOutboxMessage(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error

	// RequeueStaleSendingMessages puts messages stuck in sending since before staleBefore back in
	// the queue.
	RequeueStaleSendingMessages(ctx context.Context, staleBefore time.Time) (int, error)
}

// EnqueueLead queues payload for another create-lead attempt on behalf of the deployment userID.
// One pending lead is kept per session.
func EnqueueLead(ctx context.Context, repo OutboxRepo, sessionID, userID string, payload flow.LeadPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode lead payload: %w", err)
	}
	return repo.EnqueueOutboxMessage(ctx, OutboxMessage{
		SessionID:   sessionID,
		UserID:      userID,
		Kind:        KindLead,
		PayloadJSON: string(data),
		DedupeKey:   KindLead + ":" + sessionID,
	})
}
