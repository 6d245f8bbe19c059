// Package session holds the per-conversation record and the store abstraction it lives in.
//
// A Session is owned by one channel adapter and mutated by one turn at a time; Locks
// serializes turns for the same id. Stores keep sessions by id and index them by the
// caller's phone number and by the deployment's channel address.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/workflow"
)

const (
	// DefaultTimeout is how long a session may stay idle before it is swept.
	DefaultTimeout = 5 * time.Minute
	// MaxHistory bounds the stored conversation history; older entries are dropped.
	MaxHistory = 50
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is the state of one end-user conversation.
type Session struct {
	ID      string         `json:"id"`
	Channel models.Channel `json:"channel"`
	// Address is the deployment's channel address the user wrote to, e.g. the Twilio number or page id.
	Address string `json:"address,omitempty"`
	// Phone is the caller's number on channels that know it.
	Phone        string           `json:"phone,omitempty"`
	UserID       string           `json:"userId"`
	Context      *models.Context  `json:"context,omitempty"`
	Flow         *flow.Controller `json:"flow"`
	Workflow     workflow.Engine  `json:"workflow"`
	History      []models.Message `json:"history,omitempty"`
	Language     string           `json:"language,omitempty"`
	Greeted      bool             `json:"greeted"`
	Done         bool             `json:"done"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastActivity time.Time        `json:"lastActivity"`
}

// New creates a session in the GREETING state configured from the deployment context and the
// channel's capabilities. An empty id is replaced by a random one.
func New(id string, ch models.Channel, userID string, c *models.Context, phone string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	integration := models.DefaultIntegration()
	if c != nil {
		integration = c.Integration
	}
	fc := flow.New(integration)
	fc.ConfigureForChannel(ch, phone)
	now := time.Now()
	return &Session{
		ID:           id,
		Channel:      ch,
		Phone:        phone,
		UserID:       userID,
		Context:      c,
		Flow:         fc,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Key builds the session id of a messaging conversation: "{channel}:{from}".
func Key(ch models.Channel, from string) string {
	return string(ch) + ":" + strings.TrimSpace(from)
}

// AddMessage appends to the history, dropping the oldest entries beyond MaxHistory.
func (s *Session) AddMessage(role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	s.History = append(s.History, models.Message{Role: role, Content: content})
	if len(s.History) > MaxHistory {
		s.History = append([]models.Message(nil), s.History[len(s.History)-MaxHistory:]...)
	}
}

// LastAssistantMessage returns the most recent assistant entry.
func (s *Session) LastAssistantMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == models.RoleAssistant {
			return s.History[i].Content
		}
	}
	return ""
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// Expired reports whether the session has been idle longer than timeout at now.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the session with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Put inserts or replaces a session and updates its indexes.
	Put(ctx context.Context, s *Session) error
	// Delete removes a session and its index entries. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
	// GetByPhone returns the session most recently stored for a caller phone number.
	GetByPhone(ctx context.Context, phone string) (*Session, error)
	// SweepExpired removes sessions idle longer than timeout at now and returns how many were removed.
	SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
	// DeleteByAddress removes every session of channel opened against a deployment address.
	DeleteByAddress(ctx context.Context, ch models.Channel, address string) (int, error)
	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
}
