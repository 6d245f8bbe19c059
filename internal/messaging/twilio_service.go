package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/twiliowhatsapp"
)

// TwilioService implements Service over the Twilio Messaging API. Inbound messages arrive on
// its webhook handler.
type TwilioService struct {
	*eventQueue
	client    twiliowhatsapp.Sender
	validator *twiliowhatsapp.Validator
}

// NewTwilioService wraps a Twilio sender. A nil validator accepts unsigned webhooks.
func NewTwilioService(client twiliowhatsapp.Sender, validator *twiliowhatsapp.Validator) *TwilioService {
	return &TwilioService{
		eventQueue: newEvents("twilio"),
		client:     client,
		validator:  validator,
	}
}

// Start is a no-op; Twilio pushes messages to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *TwilioService) Stop() error {
	s.stop()
	return nil
}

// SendMessage sends a reply through the Twilio REST API and emits a sent receipt.
func (s *TwilioService) SendMessage(ctx context.Context, from, to, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	if err := s.client.SendMessage(ctx, from, to, body); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	s.emitReceipt(models.Receipt{To: to, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// WebhookHandler accepts Twilio messaging webhooks. The reply is sent asynchronously, so the
// handler answers with empty TwiML right away.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService.WebhookHandler: failed to parse form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validator.Valid(r) {
		slog.Warn("TwilioService.WebhookHandler: invalid signature", "reason", errorsx.ReasonTransportInvalidSignature)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	msg, err := twiliowhatsapp.ParseWebhook(r.PostForm)
	switch {
	case errors.Is(err, twiliowhatsapp.ErrMissingFields):
		// Status callbacks and media-only messages carry no text.
		slog.Debug("TwilioService.WebhookHandler: ignoring webhook without text", "from", msg.From)
	case err != nil:
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	default:
		slog.Info("TwilioService.WebhookHandler: inbound message", "channel", msg.Channel, "from", msg.From, "messageSid", msg.MessageID)
		s.emitResponse(msg)
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, twiliowhatsapp.EmptyTwiML)
}
