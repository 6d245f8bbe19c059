package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/LeadPipe/internal/conversation"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/routes"
	"github.com/BTreeMap/LeadPipe/internal/session"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

// TurnHandler runs one conversation turn. conversation.Driver implements it.
type TurnHandler interface {
	Handle(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error)
	End(ctx context.Context, sessionID string)
}

// ResponseHandler routes inbound messages from messaging services into conversation turns and
// sends the replies back on the service the message came from.
type ResponseHandler struct {
	turns  TurnHandler
	routes RouteLookup
	dedup  store.DedupRepo
	wg     sync.WaitGroup
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*ResponseHandler)

// WithDedup drops messages whose transport id was already processed.
func WithDedup(repo store.DedupRepo) HandlerOption {
	return func(h *ResponseHandler) {
		h.dedup = repo
	}
}

// NewResponseHandler creates a handler.
func NewResponseHandler(turns TurnHandler, lookup RouteLookup, opts ...HandlerOption) *ResponseHandler {
	h := &ResponseHandler{turns: turns, routes: lookup}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Inbound converts a transport message into a conversation turn for the given route.
func Inbound(msg models.InboundMessage, route routes.Route) conversation.Inbound {
	in := conversation.Inbound{
		SessionID: session.Key(msg.Channel, msg.From),
		Channel:   msg.Channel,
		UserID:    route.UserID,
		Address:   msg.To,
		Text:      msg.Body,
	}
	if msg.Channel == models.ChannelWhatsApp {
		in.Phone = msg.From
	}
	return in
}

// ProcessResponse runs the turn for msg and sends every outcome message through svc. A
// completed conversation is ended so the next message starts a new one.
func (h *ResponseHandler) ProcessResponse(ctx context.Context, svc Service, msg models.InboundMessage) error {
	sessionID := session.Key(msg.Channel, msg.From)
	if h.dedup != nil && msg.MessageID != "" {
		first, err := h.dedup.RecordInbound(ctx, msg.MessageID, sessionID)
		if err != nil {
			slog.Error("ResponseHandler.ProcessResponse: dedup check failed", "messageID", msg.MessageID, "error", err)
		} else if !first {
			slog.Info("ResponseHandler.ProcessResponse: duplicate message ignored", "messageID", msg.MessageID, "sessionID", sessionID)
			return nil
		}
	}

	route, err := h.routes.Lookup(msg.Channel, msg.To)
	if err != nil {
		slog.Warn("ResponseHandler.ProcessResponse: no deployment for address", "channel", msg.Channel, "to", msg.To)
		return err
	}

	out, err := h.turns.Handle(ctx, Inbound(msg, route))
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: turn failed", "sessionID", sessionID, "error", err)
	}

	from := models.PrefixAddress(msg.Channel, msg.To)
	to := models.PrefixAddress(msg.Channel, msg.From)
	var sendErr error
	for _, text := range out.Messages {
		if err := svc.SendMessage(ctx, from, to, text); err != nil {
			slog.Error("ResponseHandler.ProcessResponse: reply not delivered", "sessionID", sessionID, "error", err)
			sendErr = fmt.Errorf("failed to send reply: %w", err)
			break
		}
	}

	if out.Done {
		h.turns.End(ctx, sessionID)
	}
	if h.dedup != nil && msg.MessageID != "" {
		if err := h.dedup.MarkProcessed(ctx, msg.MessageID); err != nil {
			slog.Error("ResponseHandler.ProcessResponse: failed to mark processed", "messageID", msg.MessageID, "error", err)
		}
	}
	return sendErr
}

// Start consumes svc's responses until ctx is done or the service stops. Each message runs in
// its own goroutine; turns of one session are serialized by the driver.
func (h *ResponseHandler) Start(ctx context.Context, svc Service) {
	slog.Info("ResponseHandler.Start: processing responses")
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case msg, ok := <-svc.Responses():
				if !ok {
					return
				}
				h.wg.Add(1)
				go func() {
					defer h.wg.Done()
					if err := h.ProcessResponse(ctx, svc, msg); err != nil {
						slog.Error("ResponseHandler.Start: failed to process response", "from", msg.From, "error", err)
					}
				}()
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer h.wg.Done()
		for {
			select {
			case r, ok := <-svc.Receipts():
				if !ok {
					return
				}
				slog.Debug("ResponseHandler.Start: receipt", "to", r.To, "status", r.Status)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until every started loop and in-flight turn has returned.
func (h *ResponseHandler) Wait() {
	h.wg.Wait()
}
