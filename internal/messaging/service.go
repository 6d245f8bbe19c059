// Package messaging connects the asynchronous messaging channels (WhatsApp, Messenger and
// Instagram) to the conversation driver.
//
// Each transport implements Service: it turns webhooks or client events into InboundMessage
// values on Responses() and delivers replies with SendMessage. The ResponseHandler consumes
// every service's responses, runs the turn and sends the outcome back on the same service.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer of the receipt and response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an event waits for a full channel before it is dropped.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by SendMessage after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message transport.
type Service interface {
	// SendMessage delivers body. from is the deployment's channel-prefixed address the user wrote
	// to, to is the user's channel-prefixed address.
	SendMessage(ctx context.Context, from, to, body string) error

	// Start begins any background processing (e.g., client event handlers).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the event channels.
	Stop() error

	// Receipts returns a channel of delivery receipts.
	Receipts() <-chan models.Receipt

	// Responses returns a channel of inbound user messages.
	Responses() <-chan models.InboundMessage
}

// eventQueue holds the channels shared by the service implementations. Emits never block longer
// than DefaultChannelTimeout and are dropped after Stop.
type eventQueue struct {
	name      string
	receipts  chan models.Receipt
	responses chan models.InboundMessage
	mu        sync.RWMutex
	stopped   bool
}

func newEvents(name string) *eventQueue {
	return &eventQueue{
		name:      name,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
}

func (e *eventQueue) isStopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopped
}

// stop closes both channels once.
func (e *eventQueue) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.receipts)
	close(e.responses)
}

func (e *eventQueue) emitResponse(msg models.InboundMessage) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		slog.Warn("messaging: dropping inbound message, service stopped", "service", e.name, "from", msg.From)
		return false
	}
	select {
	case e.responses <- msg:
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("messaging: responses channel blocked, dropping message", "service", e.name, "from", msg.From)
		return false
	}
}

func (e *eventQueue) emitReceipt(r models.Receipt) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return
	}
	select {
	case e.receipts <- r:
	case <-time.After(DefaultChannelTimeout):
		slog.Debug("messaging: receipts channel blocked, dropping receipt", "service", e.name, "to", r.To)
	}
}

// Receipts returns the receipt channel.
func (e *eventQueue) Receipts() <-chan models.Receipt {
	return e.receipts
}

// Responses returns the inbound message channel.
func (e *eventQueue) Responses() <-chan models.InboundMessage {
	return e.responses
}
