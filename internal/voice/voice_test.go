package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/BTreeMap/LeadPipe/internal/conversation"
	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/routes"
)

type fakeTurns struct {
	mu      sync.Mutex
	started []conversation.Inbound
	handled []conversation.Inbound
	ended   []string
}

func (f *fakeTurns) Start(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, in)
	return conversation.Outcome{SessionID: in.SessionID, Messages: []string{"Hi! 👋 How can I help?"}}, nil
}

func (f *fakeTurns) Handle(ctx context.Context, in conversation.Inbound) (conversation.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, in)
	return conversation.Outcome{SessionID: in.SessionID, Messages: []string{"Thanks, goodbye."}, Done: in.Text == "bye"}, nil
}

func (f *fakeTurns) End(ctx context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
}

func (f *fakeTurns) snapshot() (started, handled []conversation.Inbound, ended []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.Inbound(nil), f.started...), append([]conversation.Inbound(nil), f.handled...), append([]string(nil), f.ended...)
}

type fakeSTT struct {
	events chan Event
	mu     sync.Mutex
	audio  [][]byte
	closed bool
}

func (f *fakeSTT) Start(ctx context.Context) error { return nil }

func (f *fakeSTT) Write(audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, audio)
	return nil
}

func (f *fakeSTT) Events() <-chan Event { return f.events }

func (f *fakeSTT) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeTTS struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte{0xFF}, chunkSize+100))), nil
}

func voiceRoutes() *routes.Table {
	return routes.New("", routes.Route{Channel: models.ChannelVoice, Address: "+15550000000", UserID: "biz-1"})
}

func TestTwiMLHandler(t *testing.T) {
	h := NewHandler(&fakeTurns{}, voiceRoutes(), nil, nil, WithPublicURL("https://bot.example.com/"))

	form := url.Values{"From": {"+15551234567"}, "To": {"+15550000000"}, "CallSid": {"CA1"}}
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.TwiMLHandler(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/xml" {
		t.Fatalf("status %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<Stream url="wss://bot.example.com/voice/stream">`,
		`<Parameter name="from" value="+15551234567"/>`,
		`<Parameter name="to" value="+15550000000"/>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("TwiML missing %s: %s", want, body)
		}
	}

	form.Set("To", "+19999999999")
	req = httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.TwiMLHandler(rec, req)
	if !strings.Contains(rec.Body.String(), "<Reject/>") {
		t.Errorf("unknown number not rejected: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.TwiMLHandler(rec, httptest.NewRequest(http.MethodGet, "/voice", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}
}

func TestStreamTwiMLEscapes(t *testing.T) {
	got := StreamTwiML("wss://h/voice/stream?a=1&b=2", map[string]string{ParamFrom: `"Jo" <x>`})
	if !strings.Contains(got, `url="wss://h/voice/stream?a=1&amp;b=2"`) || !strings.Contains(got, `value="&quot;Jo&quot; &lt;x&gt;"`) {
		t.Errorf("not escaped: %s", got)
	}
	if strings.Contains(got, `name="to"`) {
		t.Errorf("empty parameter written: %s", got)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt map[string]any
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return evt
}

func expectEvents(t *testing.T, conn *websocket.Conn, kinds ...string) {
	t.Helper()
	for _, kind := range kinds {
		if evt := readEvent(t, conn); evt["event"] != kind {
			t.Fatalf("expected %s event, got %v", kind, evt)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamHandler_Call(t *testing.T) {
	turns := &fakeTurns{}
	stt := &fakeSTT{events: make(chan Event, 4)}
	tts := &fakeTTS{}
	h := NewHandler(turns, voiceRoutes(), func(string) Transcriber { return stt }, tts)

	srv := httptest.NewServer(http.HandlerFunc(h.StreamHandler))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	start := TwilioEvent{Event: "start", StreamSID: "MZ1", Start: &TwilioStart{
		CallSID: "CA1", StreamID: "MZ1",
		CustomParameters: map[string]string{ParamFrom: "+15551234567", ParamTo: "+15550000000"},
	}}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatal(err)
	}

	// The greeting is two chunks of audio.
	expectEvents(t, conn, "media", "media")
	started, _, _ := turns.snapshot()
	if len(started) != 1 || started[0].SessionID != "MZ1" || started[0].Phone != "+15551234567" || started[0].UserID != "biz-1" {
		t.Fatalf("unexpected start %+v", started)
	}
	tts.mu.Lock()
	if len(tts.texts) != 1 || strings.Contains(tts.texts[0], "👋") {
		t.Errorf("greeting not prepared for speech: %q", tts.texts)
	}
	tts.mu.Unlock()

	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if err := conn.WriteJSON(TwilioEvent{Event: "media", Media: &TwilioMedia{Payload: payload}}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		stt.mu.Lock()
		defer stt.mu.Unlock()
		return len(stt.audio) == 1 && bytes.Equal(stt.audio[0], []byte{1, 2, 3})
	})

	stt.events <- Event{Kind: EventSpeechStarted}
	expectEvents(t, conn, "clear")

	stt.events <- Event{Kind: EventTranscript, Text: "bye"}
	expectEvents(t, conn, "media", "media")
	mark := readEvent(t, conn)
	if mark["event"] != "mark" || mark["mark"].(map[string]any)["name"] != doneMark {
		t.Fatalf("expected done mark, got %v", mark)
	}
	_, handled, _ := turns.snapshot()
	if len(handled) != 1 || handled[0].Text != "bye" || handled[0].Channel != models.ChannelVoice {
		t.Fatalf("unexpected turns %+v", handled)
	}

	if err := conn.WriteJSON(TwilioEvent{Event: "mark", Mark: &TwilioMark{Name: doneMark}}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, _, ended := turns.snapshot()
		return len(ended) == 1 && ended[0] == "MZ1"
	})
	stt.mu.Lock()
	defer stt.mu.Unlock()
	if !stt.closed {
		t.Error("transcriber not closed")
	}
}

func TestStreamHandler_UnknownNumberCloses(t *testing.T) {
	turns := &fakeTurns{}
	h := NewHandler(turns, voiceRoutes(), func(string) Transcriber { return &fakeSTT{events: make(chan Event)} }, &fakeTTS{})
	srv := httptest.NewServer(http.HandlerFunc(h.StreamHandler))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteJSON(TwilioEvent{Event: "start", Start: &TwilioStart{StreamID: "MZ2", CustomParameters: map[string]string{ParamTo: "+1999"}}})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the stream to close")
	}
	if started, _, _ := turns.snapshot(); len(started) != 0 {
		t.Errorf("call started without a deployment: %+v", started)
	}
}

func TestDeepgramTranscriber_JoinsFinalSegments(t *testing.T) {
	tr := NewDeepgramFactory(STTConfig{APIKey: "k"})("MZ1").(*DeepgramTranscriber)
	cb := &callback{t: tr}

	segment := func(text string, final, speechFinal bool) *msginterfaces.MessageResponse {
		mr := &msginterfaces.MessageResponse{IsFinal: final, SpeechFinal: speechFinal}
		mr.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: text}}
		return mr
	}
	_ = cb.Message(segment("I need", false, false))
	_ = cb.Message(segment("I need a", true, false))
	_ = cb.Message(segment("roof repair", true, true))
	_ = cb.SpeechStarted(&msginterfaces.SpeechStartedResponse{})
	_ = cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{})

	evt := <-tr.Events()
	if evt.Kind != EventTranscript || evt.Text != "I need a roof repair" {
		t.Errorf("unexpected transcript %+v", evt)
	}
	if evt := <-tr.Events(); evt.Kind != EventSpeechStarted {
		t.Errorf("expected speech started, got %+v", evt)
	}
	select {
	case evt := <-tr.Events():
		t.Errorf("empty utterance emitted %+v", evt)
	default:
	}
	if err := NewDeepgramFactory(STTConfig{})("x").Write([]byte{1}); err == nil {
		t.Error("write before start succeeded")
	}
}

func TestDeepgramSpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("model") != DefaultTTSModel || q.Get("encoding") != "mulaw" || q.Get("sample_rate") != "8000" || q.Get("container") != "none" {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("Authorization") != "Token secret" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["text"] == "fail" {
			http.Error(w, "bad text", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte{0xFF, 0x7F})
	}))
	defer srv.Close()

	s := NewDeepgramSpeaker(TTSConfig{APIKey: "secret", URL: srv.URL})
	audio, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got, _ := io.ReadAll(audio)
	audio.Close()
	if !bytes.Equal(got, []byte{0xFF, 0x7F}) {
		t.Errorf("audio = %v", got)
	}

	if _, err := s.Synthesize(context.Background(), "fail"); !errorsx.HasReason(err, errorsx.ReasonTTSSend) {
		t.Errorf("expected tts reason, got %v", err)
	}
}
