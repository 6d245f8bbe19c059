package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/LeadPipe/internal/meta"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/routes"
)

type graphCall struct {
	ch        models.Channel
	recipient string
	text      string
	token     string
}

type fakeGraph struct {
	calls []graphCall
}

func (f *fakeGraph) SendMessage(ctx context.Context, ch models.Channel, recipientID, text, accessToken string) error {
	f.calls = append(f.calls, graphCall{ch, recipientID, text, accessToken})
	return nil
}

const messengerEvent = `{"object":"page","entry":[{"id":"PAGE1","time":1700000000000,"messaging":[
	{"sender":{"id":"PSID1"},"recipient":{"id":"PAGE1"},"timestamp":1700000000000,"message":{"mid":"m1","text":"hi there"}}]}]}`

func TestMetaService_ImplementsService(t *testing.T) {
	var _ Service = (*MetaService)(nil)
}

func TestMetaService_Verification(t *testing.T) {
	svc := NewMetaService(&fakeGraph{}, routes.New(""), "", "")

	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, httptest.NewRequest(http.MethodGet,
		"/meta/webhook?hub.mode=subscribe&hub.verify_token="+meta.DefaultVerifyToken+"&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = httptest.NewRecorder()
	svc.WebhookHandler(rec, httptest.NewRequest(http.MethodGet,
		"/meta/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetaService_ReceiveSigned(t *testing.T) {
	svc := NewMetaService(&fakeGraph{}, routes.New(""), "verify", "secret")

	req := httptest.NewRequest(http.MethodPost, "/meta/webhook", strings.NewReader(messengerEvent))
	req.Header.Set(meta.SignatureHeader, meta.Sign([]byte(messengerEvent), "secret"))
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())

	select {
	case msg := <-svc.Responses():
		assert.Equal(t, models.ChannelMessenger, msg.Channel)
		assert.Equal(t, "PSID1", msg.From)
		assert.Equal(t, "PAGE1", msg.To)
		assert.Equal(t, "hi there", msg.Body)
	default:
		t.Fatal("expected a response")
	}

	req = httptest.NewRequest(http.MethodPost, "/meta/webhook", strings.NewReader(messengerEvent))
	req.Header.Set(meta.SignatureHeader, meta.Sign([]byte(messengerEvent), "other"))
	rec = httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetaService_ReceiveIgnoresOtherObjects(t *testing.T) {
	svc := NewMetaService(&fakeGraph{}, routes.New(""), "", "")
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/meta/webhook", strings.NewReader(`{"object":"user","entry":[]}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	svc.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/meta/webhook", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	svc.WebhookHandler(rec, httptest.NewRequest(http.MethodPut, "/meta/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetaService_SendMessageUsesRouteToken(t *testing.T) {
	graph := &fakeGraph{}
	table := routes.New("", routes.Route{
		Channel: models.ChannelInstagram, Address: "IGACCT", UserID: "u1", AccessToken: "tok-ig",
	})
	svc := NewMetaService(graph, table, "", "")

	err := svc.SendMessage(context.Background(), "instagram:IGACCT", "instagram:IGSID", "hello")
	require.NoError(t, err)
	require.Len(t, graph.calls, 1)
	assert.Equal(t, graphCall{models.ChannelInstagram, "IGSID", "hello", "tok-ig"}, graph.calls[0])

	err = svc.SendMessage(context.Background(), "instagram:UNKNOWN", "instagram:IGSID", "hello")
	assert.ErrorIs(t, err, routes.ErrNoRoute)
	err = svc.SendMessage(context.Background(), "IGACCT", "instagram:IGSID", "hello")
	assert.Error(t, err)
}
