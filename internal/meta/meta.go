// Package meta talks to Facebook Messenger and Instagram direct messages through the Graph API:
// webhook verification, signature checks, event parsing and sending text replies.
package meta

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/observability"
)

const (
	// DefaultGraphVersion is the Graph API version used when none is configured.
	DefaultGraphVersion = "v21.0"
	// DefaultVerifyToken answers webhook subscription checks when META_VERIFY_TOKEN is unset.
	DefaultVerifyToken = "assistly_instagram_verify_token"
	// SignatureHeader carries the HMAC-SHA256 of the webhook body.
	SignatureHeader = "X-Hub-Signature-256"
	// MaxMessageLength is the Messenger text limit.
	MaxMessageLength = 2000

	defaultBaseURL = "https://graph.facebook.com"
	sendTimeout    = 30 * time.Second
)

var (
	// ErrMissingToken is returned when a reply has no page access token.
	ErrMissingToken = errors.New("page access token is required")
	// ErrUnsupportedObject is returned for webhooks that are neither page nor instagram.
	ErrUnsupportedObject = errors.New("unsupported webhook object")
)

// Opts configures a Client.
type Opts struct {
	Version    string
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Opts)

// WithVersion selects the Graph API version.
func WithVersion(v string) Option {
	return func(o *Opts) { o.Version = v }
}

// WithBaseURL points the client at another host, for tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends messages through the Graph API.
type Client struct {
	http     *http.Client
	endpoint string
}

// NewClient creates a Graph API client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{Version: DefaultGraphVersion, BaseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultGraphVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: sendTimeout}
	}
	return &Client{
		http:     cfg.HTTPClient,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.Version + "/me/messages",
	}
}

type sendRequest struct {
	Recipient     recipient   `json:"recipient"`
	Message       textMessage `json:"message"`
	MessagingType string      `json:"messaging_type,omitempty"`
}

type recipient struct {
	ID string `json:"id"`
}

type textMessage struct {
	Text string `json:"text"`
}

// StatusError is a non-2xx Graph API response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph api returned %d: %s", e.Status, e.Body)
}

// SendMessage sends text to a Messenger PSID or Instagram IGSID using the page token.
func (c *Client) SendMessage(ctx context.Context, ch models.Channel, recipientID, text, accessToken string) error {
	if accessToken == "" {
		return ErrMissingToken
	}
	req := sendRequest{Recipient: recipient{ID: recipientID}, Message: textMessage{Text: Truncate(text)}}
	if ch == models.ChannelMessenger {
		req.MessagingType = "RESPONSE"
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode graph request: %w", err)
	}

	ctx, span := observability.StartSpan(ctx, "meta.send")
	defer span.End()

	u := c.endpoint + "?access_token=" + url.QueryEscape(accessToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build graph request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return errorsx.Wrap(fmt.Errorf("graph request failed: %w", err), errorsx.ReasonTransportSend)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		span.RecordError(err)
		slog.Error("Client.SendMessage: graph api error", "channel", ch, "status", resp.StatusCode)
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	var out struct {
		MessageID string `json:"message_id"`
	}
	_ = json.Unmarshal(body, &out)
	slog.Debug("Client.SendMessage: sent", "channel", ch, "recipient", recipientID, "messageID", out.MessageID, "length", len(req.Message.Text))
	return nil
}

// Truncate caps text at MaxMessageLength characters, ending in "..." when cut.
func Truncate(text string) string {
	r := []rune(text)
	if len(r) <= MaxMessageLength {
		return text
	}
	return string(r[:MaxMessageLength-3]) + "..."
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>") against the body.
func VerifySignature(body []byte, header, appSecret string) bool {
	if header == "" || appSecret == "" {
		return false
	}
	algo, digest, ok := strings.Cut(header, "=")
	if !ok || algo != "sha256" || digest == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(digest))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySubscription answers the GET handshake. It returns the challenge to echo when the mode
// is subscribe and the token matches.
func VerifySubscription(q url.Values, verifyToken string) (string, bool) {
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != verifyToken {
		return "", false
	}
	return q.Get("hub.challenge"), true
}
