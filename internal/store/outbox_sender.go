package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/observability"
)

const (
	// DefaultOutboxSchedule polls the outbox every ten seconds.
	DefaultOutboxSchedule = "@every 10s"
	// DefaultMaxAttempts is how many times a message is tried before it is marked failed.
	DefaultMaxAttempts = 8
)

// OutboxSendFunc performs the delivery of one outbox message.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// LeadCreator is the backend call that outbox leads are replayed through.
type LeadCreator interface {
	CreateLead(ctx context.Context, userID string, payload flow.LeadPayload) error
}

// JobScheduler registers periodic jobs.
type JobScheduler interface {
	AddJob(name, expr string, task func()) error
}

// LeadSendFunc replays KindLead messages through creator.
func LeadSendFunc(creator LeadCreator) OutboxSendFunc {
	return func(ctx context.Context, msg OutboxMessage) error {
		if msg.Kind != KindLead {
			return fmt.Errorf("unsupported outbox kind %q", msg.Kind)
		}
		var payload flow.LeadPayload
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("failed to decode lead payload: %w", err)
		}
		return creator.CreateLead(ctx, msg.UserID, payload)
	}
}

// OutboxSender claims due outbox messages and attempts to deliver them.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	staleThreshold time.Duration
	claimLimit     int
	maxAttempts    int
	now            func() time.Time
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc) *OutboxSender {
	return &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
		maxAttempts:    DefaultMaxAttempts,
		now:            time.Now,
	}
}

// RecoverStaleMessages requeues messages left in sending by a crashed process.
// Should be called once at startup.
func (s *OutboxSender) RecoverStaleMessages(ctx context.Context) error {
	n, err := s.repo.RequeueStaleSendingMessages(ctx, s.now().Add(-s.staleThreshold))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Register schedules Poll. An empty schedule uses DefaultOutboxSchedule.
func (s *OutboxSender) Register(ctx context.Context, sched JobScheduler, schedule string) error {
	if schedule == "" {
		schedule = DefaultOutboxSchedule
	}
	return sched.AddJob("lead-outbox", schedule, func() { s.Poll(ctx) })
}

// Poll delivers the messages that are due and returns how many succeeded.
func (s *OutboxSender) Poll(ctx context.Context) int {
	now := s.now()
	msgs, err := s.repo.ClaimDueOutboxMessages(ctx, now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.Poll: claim failed", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		slog.Debug("OutboxSender.Poll: sending message", "id", msg.ID, "session", msg.SessionID, "kind", msg.Kind, "attempts", msg.Attempts)
		if err := s.sendFunc(ctx, msg); err != nil {
			slog.Error("OutboxSender.Poll: send failed", "id", msg.ID, "attempts", msg.Attempts+1, "error", err)
			var next time.Time
			if msg.Attempts+1 < s.maxAttempts {
				// Exponential backoff: 10s, 20s, 40s, ...
				next = now.Add(time.Duration(10*(1<<msg.Attempts)) * time.Second)
			} else {
				slog.Warn("OutboxSender.Poll: giving up on message", "id", msg.ID, "session", msg.SessionID)
				observability.RecordLead("outbox", "abandoned")
			}
			if err := s.repo.FailOutboxMessage(ctx, msg.ID, err.Error(), next); err != nil {
				slog.Error("OutboxSender.Poll: fail message error", "id", msg.ID, "error", err)
			}
			continue
		}
		if err := s.repo.MarkOutboxMessageSent(ctx, msg.ID); err != nil {
			slog.Error("OutboxSender.Poll: mark sent error", "id", msg.ID, "error", err)
			continue
		}
		observability.RecordLead("outbox", "created")
		sent++
		slog.Info("OutboxSender.Poll: message sent", "id", msg.ID, "session", msg.SessionID)
	}
	return sent
}
