// Package twiliowhatsapp wraps the Twilio Messaging API for the WhatsApp, Messenger and Instagram
// channels Twilio fronts. Addresses on the wire carry a channel prefix ("whatsapp:+15551234567").
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ErrMissingFields is returned for webhooks without a sender or any text.
var ErrMissingFields = errors.New("webhook missing From or message text")

// Sender delivers text to a prefixed channel address.
type Sender interface {
	SendMessage(ctx context.Context, from, to, body string) error
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID string
	AuthToken  string
	// From is the default sender, used when a reply has no deployment address.
	From string
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

// WithAccountSID sets the account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the auth token used for the REST API and webhook signatures.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the default sender address.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Client wraps the Twilio REST API.
type Client struct {
	api  messageCreator
	from string
}

// NewClient builds a client. Options fall back to TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and
// TWILIO_WHATSAPP_FROM.
func NewClient(opts ...Option) (*Client, error) {
	cfg := resolve(opts)
	slog.Debug("twiliowhatsapp.NewClient: config loaded",
		"accountSIDSet", cfg.AccountSID != "",
		"authTokenSet", cfg.AuthToken != "",
		"fromSet", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{api: rest.Api, from: cfg.From}, nil
}

func resolve(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_WHATSAPP_FROM")
	}
	return cfg
}

// SendMessage sends body from one address to another. Both may be bare or prefixed; the channel
// of to decides the prefix. An empty from uses the configured default.
func (c *Client) SendMessage(ctx context.Context, from, to, body string) error {
	ch, bareTo := SplitAddress(to)
	if from == "" {
		from = c.from
	}
	if from == "" {
		return fmt.Errorf("no sender address for %s", ch)
	}
	_, bareFrom := SplitAddress(from)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(Address(ch, bareTo))
	params.SetFrom(Address(ch, bareFrom))
	params.SetBody(body)

	msg, err := c.api.CreateMessage(params)
	if err != nil {
		slog.Error("Client.SendMessage: twilio send failed", "channel", ch, "to", bareTo, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", bareTo, err)
	}
	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	slog.Debug("Client.SendMessage: message sent", "channel", ch, "to", bareTo, "sid", sid)
	return nil
}

// Address prefixes a bare address with its channel.
func Address(ch models.Channel, addr string) string {
	return models.PrefixAddress(ch, addr)
}

// SplitAddress returns the channel named by addr's prefix and the bare address. Unprefixed
// addresses are WhatsApp.
func SplitAddress(addr string) (models.Channel, string) {
	ch, bare, ok := models.SplitAddress(addr)
	if !ok {
		return models.ChannelWhatsApp, bare
	}
	return ch, bare
}

// ParseWebhook converts a Twilio messaging webhook form into an inbound message. Interactive
// replies without a Body use the button or list title, then its id.
func ParseWebhook(form url.Values) (models.InboundMessage, error) {
	rawFrom := strings.TrimSpace(form.Get("From"))
	rawTo := strings.TrimSpace(form.Get("To"))

	ch, from := SplitAddress(rawFrom)
	if !strings.Contains(rawFrom, ":") {
		ch, _ = SplitAddress(rawTo)
	}
	_, to := SplitAddress(rawTo)

	body := firstNonEmpty(form.Get("Body"), form.Get("ButtonTitle"), form.Get("ListTitle"),
		form.Get("ButtonId"), form.Get("ListId"))

	msg := models.InboundMessage{
		Channel:     ch,
		From:        from,
		To:          to,
		Body:        body,
		MessageID:   strings.TrimSpace(form.Get("MessageSid")),
		ProfileName: strings.TrimSpace(form.Get("ProfileName")),
		Time:        time.Now().Unix(),
	}
	if msg.From == "" || msg.Body == "" {
		return msg, ErrMissingFields
	}
	return msg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Validator checks X-Twilio-Signature on form-encoded webhooks.
type Validator struct {
	validator twilioclient.RequestValidator
	publicURL string
}

// NewValidator creates a validator for authToken. When publicURL is set it replaces the scheme
// and host of the request URL, which is what Twilio signed behind a proxy.
func NewValidator(authToken, publicURL string) *Validator {
	return &Validator{
		validator: twilioclient.NewRequestValidator(authToken),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Valid reports whether r carries a correct signature. r.ParseForm must have been called.
func (v *Validator) Valid(r *http.Request) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(v.requestURL(r), params, signature)
}

func (v *Validator) requestURL(r *http.Request) string {
	if v.publicURL != "" {
		return v.publicURL + r.URL.RequestURI()
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil && strings.HasPrefix(r.Host, "localhost") {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// EmptyTwiML is the webhook acknowledgement when replies go out over the REST API.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// MockClient records messages instead of sending them.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

// SentMessage is one recorded send.
type SentMessage struct {
	From string
	To   string
	Body string
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

// SendMessage records the message and returns m.Err.
func (m *MockClient) SendMessage(ctx context.Context, from, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{From: from, To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
