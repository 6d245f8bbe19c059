package messaging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

// WhatsAppService implements Service over a directly linked whatsmeow client.
type WhatsAppService struct {
	*eventQueue
	client   whatsapp.WhatsAppSender
	waClient *whatsapp.Client
	own      string
}

// NewWhatsAppService wraps a sender. When it is a *whatsapp.Client, Start subscribes to its events.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	s := &WhatsAppService{eventQueue: newEvents("whatsapp"), client: client}
	if wa, ok := client.(*whatsapp.Client); ok {
		s.waClient = wa
		s.own = wa.OwnNumber()
	}
	return s
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService.Start: no live client, skipping event handler")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		}
	})
	slog.Info("WhatsAppService.Start: event handler registered", "number", s.own)
	return nil
}

// Stop closes the event channels and disconnects the linked client.
func (s *WhatsAppService) Stop() error {
	s.stop()
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	return nil
}

// SendMessage sends body to the user's number. from is ignored; there is one linked number.
func (s *WhatsAppService) SendMessage(ctx context.Context, from, to, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	_, number, _ := models.SplitAddress(to)
	if err := s.client.SendMessage(ctx, number, body); err != nil {
		slog.Error("WhatsAppService.SendMessage: send failed", "to", number, "error", err)
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	s.emitReceipt(models.Receipt{To: to, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	text := messageText(evt)
	if text == "" {
		slog.Debug("WhatsAppService.handleIncomingMessage: ignoring non-text message", "from", evt.Info.Sender.User)
		return
	}
	s.emitResponse(models.InboundMessage{
		Channel:     models.ChannelWhatsApp,
		From:        whatsapp.E164(evt.Info.Sender.User),
		To:          s.own,
		Body:        text,
		MessageID:   evt.Info.ID,
		ProfileName: evt.Info.PushName,
		Time:        evt.Info.Timestamp.Unix(),
	})
}

func messageText(evt *events.Message) string {
	m := evt.Message
	switch {
	case m.GetConversation() != "":
		return strings.TrimSpace(m.GetConversation())
	case m.GetExtendedTextMessage().GetText() != "":
		return strings.TrimSpace(m.GetExtendedTextMessage().GetText())
	case m.GetButtonsResponseMessage().GetSelectedDisplayText() != "":
		return strings.TrimSpace(m.GetButtonsResponseMessage().GetSelectedDisplayText())
	case m.GetListResponseMessage().GetTitle() != "":
		return strings.TrimSpace(m.GetListResponseMessage().GetTitle())
	}
	return ""
}

func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}
	s.emitReceipt(models.Receipt{
		To:     models.PrefixAddress(models.ChannelWhatsApp, whatsapp.E164(evt.MessageSource.Sender.User)),
		Status: status,
		Time:   evt.Timestamp.Unix(),
	})
}
