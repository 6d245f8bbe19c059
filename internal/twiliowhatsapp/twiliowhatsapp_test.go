package twiliowhatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

type fakeCreator struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestClient_SendMessagePrefixesBothAddresses(t *testing.T) {
	fc := &fakeCreator{}
	c := &Client{api: fc, from: "whatsapp:+15550000000"}

	if err := c.SendMessage(context.Background(), "+15559999999", "messenger:psid-1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := c.SendMessage(context.Background(), "", "+15551234567", "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got := *fc.params[0].To; got != "messenger:psid-1" {
		t.Errorf("To = %q", got)
	}
	if got := *fc.params[0].From; got != "messenger:+15559999999" {
		t.Errorf("From = %q", got)
	}
	if got := *fc.params[1].From; got != "whatsapp:+15550000000" {
		t.Errorf("default From = %q", got)
	}
	if got := *fc.params[1].Body; got != "hi" {
		t.Errorf("Body = %q", got)
	}
}

func TestClient_SendMessageErrors(t *testing.T) {
	c := &Client{api: &fakeCreator{}}
	if err := c.SendMessage(context.Background(), "", "+1555", "x"); err == nil {
		t.Error("expected error without a sender")
	}
	c = &Client{api: &fakeCreator{err: errors.New("rate limited")}, from: "+1555"}
	if err := c.SendMessage(context.Background(), "", "+1666", "x"); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in   string
		ch   models.Channel
		bare string
	}{
		{"whatsapp:+15551234567", models.ChannelWhatsApp, "+15551234567"},
		{"messenger:12345", models.ChannelMessenger, "12345"},
		{"instagram: 777", models.ChannelInstagram, "777"},
		{"+15551234567", models.ChannelWhatsApp, "+15551234567"},
	}
	for _, tt := range tests {
		ch, bare := SplitAddress(tt.in)
		if ch != tt.ch || bare != tt.bare {
			t.Errorf("SplitAddress(%q) = %s, %q", tt.in, ch, bare)
		}
	}
	if got := Address(models.ChannelWhatsApp, "whatsapp:+1"); got != "whatsapp:+1" {
		t.Errorf("Address double-prefixed: %q", got)
	}
	if got := Address(models.ChannelInstagram, ""); got != "" {
		t.Errorf("Address of empty = %q", got)
	}
}

func TestParseWebhook(t *testing.T) {
	form := url.Values{
		"From":        {"messenger:psid-9"},
		"To":          {"messenger:page-1"},
		"Body":        {""},
		"ButtonTitle": {"Call back"},
		"ButtonId":    {"lt_1"},
		"MessageSid":  {"SM1"},
		"ProfileName": {"Jane"},
	}
	msg, err := ParseWebhook(form)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if msg.Channel != models.ChannelMessenger || msg.From != "psid-9" || msg.To != "page-1" {
		t.Errorf("addresses: %+v", msg)
	}
	if msg.Body != "Call back" || msg.MessageID != "SM1" || msg.ProfileName != "Jane" {
		t.Errorf("fields: %+v", msg)
	}

	msg, err = ParseWebhook(url.Values{"From": {"+1555"}, "To": {"instagram:acct"}, "ListId": {"svc_2"}})
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if msg.Channel != models.ChannelInstagram || msg.Body != "svc_2" {
		t.Errorf("channel from To / list id: %+v", msg)
	}

	if _, err := ParseWebhook(url.Values{"From": {"whatsapp:+1"}}); !errors.Is(err, ErrMissingFields) {
		t.Errorf("missing body: %v", err)
	}
}

// sign computes a Twilio signature the way Twilio does for form posts.
func sign(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidator(t *testing.T) {
	form := url.Values{"From": {"whatsapp:+1555"}, "Body": {"hi"}}
	v := NewValidator("token", "https://bot.example.com/")

	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, sign("token", "https://bot.example.com/twilio/webhook", form))
	if err := req.ParseForm(); err != nil {
		t.Fatal(err)
	}
	if !v.Valid(req) {
		t.Error("valid signature rejected")
	}

	req.Header.Set(SignatureHeader, sign("other", "https://bot.example.com/twilio/webhook", form))
	if v.Valid(req) {
		t.Error("forged signature accepted")
	}
	req.Header.Del(SignatureHeader)
	if v.Valid(req) {
		t.Error("missing signature accepted")
	}
}

func TestMockClient_SendMessage(t *testing.T) {
	mock := NewMockClient()
	if err := mock.SendMessage(context.Background(), "+1", "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Body != "Hello Test" || sent[0].To != "12345" {
		t.Errorf("unexpected messages: %+v", sent)
	}
}
