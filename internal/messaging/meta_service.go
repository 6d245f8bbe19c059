package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/meta"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/routes"
)

const maxWebhookBody = 1 << 20

// GraphSender sends Messenger and Instagram replies.
type GraphSender interface {
	SendMessage(ctx context.Context, ch models.Channel, recipientID, text, accessToken string) error
}

// RouteLookup resolves the deployment and page token behind a channel address.
type RouteLookup interface {
	Lookup(ch models.Channel, address string) (routes.Route, error)
}

// MetaService implements Service over the Graph API for Messenger and Instagram.
type MetaService struct {
	*eventQueue
	client      GraphSender
	routes      RouteLookup
	verifyToken string
	appSecret   string
}

// NewMetaService creates the service. An empty appSecret disables signature checks.
func NewMetaService(client GraphSender, lookup RouteLookup, verifyToken, appSecret string) *MetaService {
	if verifyToken == "" {
		verifyToken = meta.DefaultVerifyToken
	}
	return &MetaService{
		eventQueue:  newEvents("meta"),
		client:      client,
		routes:      lookup,
		verifyToken: verifyToken,
		appSecret:   appSecret,
	}
}

// Start is a no-op; Meta pushes events to the webhook.
func (s *MetaService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *MetaService) Stop() error {
	s.stop()
	return nil
}

// SendMessage replies from the page or account in from to the user in to, using that route's token.
func (s *MetaService) SendMessage(ctx context.Context, from, to, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	ch, page, ok := models.SplitAddress(from)
	if !ok {
		return fmt.Errorf("sender address %q has no channel", from)
	}
	_, recipient, _ := models.SplitAddress(to)
	route, err := s.routes.Lookup(ch, page)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, ch, recipient, body, route.AccessToken); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	s.emitReceipt(models.Receipt{To: to, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// WebhookHandler serves both the subscription handshake (GET) and event delivery (POST).
func (s *MetaService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		challenge, ok := meta.VerifySubscription(r.URL.Query(), s.verifyToken)
		if !ok {
			slog.Warn("MetaService.WebhookHandler: verification failed", "mode", r.URL.Query().Get("hub.mode"))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, challenge)
	case http.MethodPost:
		s.receive(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *MetaService) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if s.appSecret != "" && !meta.VerifySignature(body, r.Header.Get(meta.SignatureHeader), s.appSecret) {
		slog.Warn("MetaService.receive: invalid signature", "reason", errorsx.ReasonTransportInvalidSignature)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	msgs, err := meta.ParseEvents(body)
	if errors.Is(err, meta.ErrUnsupportedObject) {
		slog.Debug("MetaService.receive: ignoring webhook", "error", err)
		_, _ = io.WriteString(w, "EVENT_RECEIVED")
		return
	}
	if err != nil {
		slog.Error("MetaService.receive: failed to parse webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	for _, msg := range msgs {
		slog.Info("MetaService.receive: inbound message", "channel", msg.Channel, "from", msg.From, "to", msg.To)
		s.emitResponse(msg)
	}
	_, _ = io.WriteString(w, "EVENT_RECEIVED")
}
