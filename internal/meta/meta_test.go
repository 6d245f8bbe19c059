package meta

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

func TestSendMessage(t *testing.T) {
	var got map[string]any
	var token, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		token = r.URL.Query().Get("access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"recipient_id": "psid", "message_id": "m1"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithVersion("v19.0"))
	require.NoError(t, c.SendMessage(context.Background(), models.ChannelMessenger, "psid", strings.Repeat("a", 2100), "tok"))
	assert.Equal(t, "/v19.0/me/messages", path)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "RESPONSE", got["messaging_type"])
	text := got["message"].(map[string]any)["text"].(string)
	assert.Len(t, text, MaxMessageLength)
	assert.True(t, strings.HasSuffix(text, "..."))

	require.NoError(t, c.SendMessage(context.Background(), models.ChannelInstagram, "igsid", "hi", "tok"))
	_, hasType := got["messaging_type"]
	assert.False(t, hasType, "instagram replies carry no messaging_type")
}

func TestSendMessageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "Invalid OAuth access token"}}`)
	}))
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL))

	assert.ErrorIs(t, c.SendMessage(context.Background(), models.ChannelMessenger, "psid", "hi", ""), ErrMissingToken)

	err := c.SendMessage(context.Background(), models.ChannelMessenger, "psid", "hi", "bad")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, "Invalid OAuth")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
	long := strings.Repeat("é", 2001)
	assert.Equal(t, MaxMessageLength, len([]rune(Truncate(long))))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	header := Sign(body, "secret")
	assert.True(t, VerifySignature(body, header, "secret"))
	assert.True(t, VerifySignature(body, "sha256="+strings.ToUpper(header[7:]), "secret"))
	assert.False(t, VerifySignature(body, header, "other"))
	assert.False(t, VerifySignature([]byte(`{}`), header, "secret"))
	assert.False(t, VerifySignature(body, "sha1=abc", "secret"))
	assert.False(t, VerifySignature(body, "", "secret"))
	assert.False(t, VerifySignature(body, header, ""))
}

func TestVerifySubscription(t *testing.T) {
	q := url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"tok"}, "hub.challenge": {"42"}}
	challenge, ok := VerifySubscription(q, "tok")
	assert.True(t, ok)
	assert.Equal(t, "42", challenge)

	_, ok = VerifySubscription(q, "other")
	assert.False(t, ok)
	q.Set("hub.mode", "unsubscribe")
	_, ok = VerifySubscription(q, "tok")
	assert.False(t, ok)
}

func TestParseEvents(t *testing.T) {
	body := `{"object": "page", "entry": [{"id": "page-1", "messaging": [
		{"sender": {"id": "u1"}, "recipient": {"id": "page-1"}, "timestamp": 1700000000000, "message": {"mid": "m1", "text": " Hello "}},
		{"sender": {"id": "page-1"}, "recipient": {"id": "u1"}, "message": {"mid": "m2", "text": "echo", "is_echo": true}},
		{"sender": {"id": "u1"}, "recipient": {"id": "page-1"}, "delivery": {"mids": ["m1"]}},
		{"sender": {"id": "u1"}, "recipient": {"id": "page-1"}, "read": {"watermark": 1}},
		{"sender": {"id": "u2"}, "recipient": {"id": "page-1"}, "postback": {"title": "", "payload": "GET_STARTED"}},
		{"sender": {"id": "u3"}, "message": {"mid": "m3", "quick_reply": {"payload": "Braces"}}},
		{"sender": {"id": "u4"}, "recipient": {"id": "page-1"}, "message": {"mid": "m4"}}
	]}]}`

	msgs, err := ParseEvents([]byte(body))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, models.InboundMessage{Channel: models.ChannelMessenger, From: "u1", To: "page-1", Body: "Hello", MessageID: "m1", Time: 1700000000}, msgs[0])
	assert.Equal(t, "GET_STARTED", msgs[1].Body)
	assert.Equal(t, "Braces", msgs[2].Body)
	assert.Equal(t, "page-1", msgs[2].To, "recipient falls back to the entry id")

	msgs, err = ParseEvents([]byte(`{"object": "instagram", "entry": [{"id": "ig", "messaging": [{"sender": {"id": "s"}, "recipient": {"id": "ig"}, "message": {"mid": "x", "text": "hi"}}]}]}`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.ChannelInstagram, msgs[0].Channel)

	_, err = ParseEvents([]byte(`{"object": "whatsapp_business_account"}`))
	assert.ErrorIs(t, err, ErrUnsupportedObject)
	_, err = ParseEvents([]byte(`not json`))
	assert.Error(t, err)
}
