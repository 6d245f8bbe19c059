// Package voice answers phone calls. Twilio fetches TwiML from the voice webhook, which connects
// the call to a media stream websocket. Caller audio is transcribed by Deepgram, each final
// transcript runs as a conversation turn and the reply is synthesized and streamed back.
package voice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/BTreeMap/LeadPipe/internal/conversation"
	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/routes"
	"github.com/BTreeMap/LeadPipe/internal/twiliowhatsapp"
)

// DefaultStreamPath is where Twilio opens the media stream.
const DefaultStreamPath = "/voice/stream"

// Media stream custom parameters carrying the call's numbers.
const (
	ParamFrom = "from"
	ParamTo   = "to"
)

// TurnHandler runs conversation turns. conversation.Driver implements it.
type TurnHandler interface {
	Start(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error)
	Handle(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error)
	End(ctx context.Context, sessionID string)
}

// RouteLookup resolves the deployment answering a dialed number.
type RouteLookup interface {
	Lookup(ch models.Channel, address string) (routes.Route, error)
}

// Synthesizer turns text into 8 kHz μ-law audio without a container.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// TranscriberFactory creates the transcriber for one media stream.
type TranscriberFactory func(streamID string) Transcriber

// Opts configures a Handler.
type Opts struct {
	// PublicURL is the externally reachable base URL; it decides the stream URL in TwiML.
	PublicURL  string
	StreamPath string
	// Validator checks X-Twilio-Signature on the voice webhook. Nil disables the check.
	Validator *twiliowhatsapp.Validator
}

// Option configures a Handler.
type Option func(*Opts)

// WithPublicURL sets the base URL used to build the stream URL.
func WithPublicURL(u string) Option {
	return func(o *Opts) {
		o.PublicURL = u
	}
}

// WithStreamPath overrides DefaultStreamPath.
func WithStreamPath(p string) Option {
	return func(o *Opts) {
		o.StreamPath = p
	}
}

// WithValidator enables signature checks on the voice webhook.
func WithValidator(v *twiliowhatsapp.Validator) Option {
	return func(o *Opts) {
		o.Validator = v
	}
}

// Handler serves the voice webhook and the media stream.
type Handler struct {
	turns      TurnHandler
	routes     RouteLookup
	newSTT     TranscriberFactory
	tts        Synthesizer
	validator  *twiliowhatsapp.Validator
	publicURL  string
	streamPath string
	upgrader   websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(turns TurnHandler, lookup RouteLookup, stt TranscriberFactory, tts Synthesizer, opts ...Option) *Handler {
	cfg := Opts{StreamPath: DefaultStreamPath}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{
		turns:      turns,
		routes:     lookup,
		newSTT:     stt,
		tts:        tts,
		validator:  cfg.Validator,
		publicURL:  cfg.PublicURL,
		streamPath: cfg.StreamPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio sends no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// TwiMLHandler answers Twilio's incoming call webhook with TwiML that connects the call to the
// media stream. Calls to numbers without a deployment are rejected.
func (h *Handler) TwiMLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if h.validator != nil && !h.validator.Valid(r) {
		slog.Warn("Handler.TwiMLHandler: invalid signature", "reason", errorsx.ReasonTransportInvalidSignature)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	to := strings.TrimSpace(r.PostForm.Get("To"))
	callSID := r.PostForm.Get("CallSid")

	w.Header().Set("Content-Type", "text/xml")
	if _, err := h.routes.Lookup(models.ChannelVoice, to); err != nil {
		slog.Warn("Handler.TwiMLHandler: no deployment for number, rejecting", "to", to, "callSid", callSID)
		_, _ = io.WriteString(w, `<Response><Reject/></Response>`)
		return
	}
	slog.Info("Handler.TwiMLHandler: incoming call", "callSid", callSID, "from", from, "to", to)
	_, _ = io.WriteString(w, StreamTwiML(h.streamURL(r), map[string]string{ParamFrom: from, ParamTo: to}))
}

// StreamTwiML connects a call to the media stream at wsURL, passing params as custom parameters.
func StreamTwiML(wsURL string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(`<Response><Connect><Stream url="`)
	b.WriteString(xmlEscape(wsURL))
	b.WriteString(`">`)
	for _, name := range []string{ParamFrom, ParamTo} {
		if v, ok := params[name]; ok && v != "" {
			fmt.Fprintf(&b, `<Parameter name="%s" value="%s"/>`, name, xmlEscape(v))
		}
	}
	b.WriteString(`</Stream></Connect></Response>`)
	return b.String()
}

func (h *Handler) streamURL(r *http.Request) string {
	host := r.Host
	if h.publicURL != "" {
		host = hostOf(h.publicURL)
	}
	return "wss://" + host + h.streamPath
}

func hostOf(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimRight(u, "/")
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}
