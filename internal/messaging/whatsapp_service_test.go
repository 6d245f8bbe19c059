package messaging

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

// Ensure WhatsAppService implements Service interface
func TestWhatsAppService_ImplementsService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
}

func TestWhatsAppService_SendMessage_Receipt(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	to := "whatsapp:+15551234567"
	if err := svc.SendMessage(context.Background(), "whatsapp:+15550000000", to, "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(mockClient.Sent) != 1 || mockClient.Sent[0] != "+15551234567|hello" {
		t.Errorf("prefix not stripped: %v", mockClient.Sent)
	}
	select {
	case receipt := <-svc.Receipts():
		if receipt.To != to || receipt.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt %+v", receipt)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
}

func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if _, ok := <-svc.Receipts(); ok {
		t.Error("expected receipts channel closed")
	}
	if _, ok := <-svc.Responses(); ok {
		t.Error("expected responses channel closed")
	}
	if err := svc.SendMessage(context.Background(), "", "whatsapp:+1", "x"); err != ErrServiceStopped {
		t.Errorf("send after stop: %v", err)
	}
}

func incoming(text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender: types.NewJID("15551234567", types.DefaultUserServer),
			},
			ID:        "3EB0ABC",
			PushName:  "Jane",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestWhatsAppService_HandleIncomingMessage(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	svc.own = "+15550000000"
	svc.handleIncomingMessage(incoming("  I need a quote "))

	select {
	case msg := <-svc.Responses():
		if msg.Channel != models.ChannelWhatsApp || msg.From != "+15551234567" || msg.To != "+15550000000" {
			t.Errorf("addresses: %+v", msg)
		}
		if msg.Body != "I need a quote" || msg.MessageID != "3EB0ABC" || msg.ProfileName != "Jane" || msg.Time != 1700000000 {
			t.Errorf("fields: %+v", msg)
		}
	default:
		t.Fatal("expected a response")
	}

	fromMe := incoming("echo")
	fromMe.Info.IsFromMe = true
	svc.handleIncomingMessage(fromMe)
	group := incoming("group chatter")
	group.Info.IsGroup = true
	svc.handleIncomingMessage(group)
	svc.handleIncomingMessage(&events.Message{Message: &waE2E.Message{}})

	select {
	case msg := <-svc.Responses():
		t.Errorf("unexpected response %+v", msg)
	default:
	}
}

func TestMessageText_Interactive(t *testing.T) {
	evt := &events.Message{Message: &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("linked text")},
	}}
	if got := messageText(evt); got != "linked text" {
		t.Errorf("extended text = %q", got)
	}
	evt = &events.Message{Message: &waE2E.Message{
		ListResponseMessage: &waE2E.ListResponseMessage{Title: proto.String("Roof repair")},
	}}
	if got := messageText(evt); got != "Roof repair" {
		t.Errorf("list title = %q", got)
	}
}

func TestWhatsAppService_HandleMessageReceipt(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	svc.handleMessageReceipt(&events.Receipt{
		MessageSource: types.MessageSource{Sender: types.NewJID("15551234567", types.DefaultUserServer)},
		Type:          events.ReceiptTypeRead,
		Timestamp:     time.Unix(1700000001, 0),
	})
	select {
	case r := <-svc.Receipts():
		if r.To != "whatsapp:+15551234567" || r.Status != models.MessageStatusRead {
			t.Errorf("unexpected receipt %+v", r)
		}
	default:
		t.Fatal("expected receipt")
	}
}
