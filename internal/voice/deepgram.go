package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/BTreeMap/LeadPipe/internal/errorsx"
	"github.com/BTreeMap/LeadPipe/internal/observability"
)

// Deepgram defaults for Twilio's 8 kHz μ-law audio.
const (
	DefaultSTTModel    = "nova-2-phonecall"
	DefaultTTSModel    = "aura-asteria-en"
	DefaultSpeakURL    = "https://api.deepgram.com/v1/speak"
	TwilioEncoding     = "mulaw"
	TwilioSampleRate   = 8000
	defaultUtteranceMs = 1000
)

// EventKind distinguishes transcriber events.
type EventKind int

const (
	// EventTranscript carries a complete utterance.
	EventTranscript EventKind = iota
	// EventSpeechStarted fires when the caller starts talking.
	EventSpeechStarted
)

// Event is emitted by a Transcriber.
type Event struct {
	Kind EventKind
	Text string
}

// Transcriber converts a caller's audio into utterances.
type Transcriber interface {
	Start(ctx context.Context) error
	Write(audio []byte) error
	Events() <-chan Event
	Close() error
}

// STTConfig configures Deepgram live transcription.
type STTConfig struct {
	APIKey   string
	Model    string
	Language string
	// UtteranceEndMs is the silence that ends an utterance.
	UtteranceEndMs int
}

// DeepgramTranscriber streams audio to Deepgram's live transcription websocket. Final segments
// are joined until Deepgram reports the end of speech, then emitted as one transcript.
type DeepgramTranscriber struct {
	cfg      STTConfig
	streamID string
	dgClient *client.WSCallback
	events   chan Event
	cancel   context.CancelFunc
	pw       *io.PipeWriter
	pr       *io.PipeReader

	mu      sync.Mutex
	pending []string
}

// NewDeepgramFactory returns a TranscriberFactory using cfg.
func NewDeepgramFactory(cfg STTConfig) TranscriberFactory {
	if cfg.Model == "" {
		cfg.Model = DefaultSTTModel
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.UtteranceEndMs <= 0 {
		cfg.UtteranceEndMs = defaultUtteranceMs
	}
	return func(streamID string) Transcriber {
		return &DeepgramTranscriber{cfg: cfg, streamID: streamID, events: make(chan Event, 64)}
	}
}

// Start opens the Deepgram connection and begins streaming.
func (t *DeepgramTranscriber) Start(ctx context.Context) error {
	ctx, t.cancel = context.WithCancel(ctx)
	t.pr, t.pw = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          t.cfg.Model,
		Language:       t.cfg.Language,
		Encoding:       TwilioEncoding,
		SampleRate:     TwilioSampleRate,
		InterimResults: true,
		VadEvents:      true,
		SmartFormat:    true,
		UtteranceEndMs: fmt.Sprintf("%d", t.cfg.UtteranceEndMs),
	}

	dgClient, err := client.NewWSUsingCallback(ctx, t.cfg.APIKey, clientOptions, transcriptOptions, &callback{t: t})
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("create deepgram client: %w", err), errorsx.ReasonSTTConnect)
	}
	t.dgClient = dgClient
	if !dgClient.Connect() {
		return errorsx.Wrap(fmt.Errorf("deepgram connection failed"), errorsx.ReasonSTTConnect)
	}
	slog.Info("DeepgramTranscriber.Start: connected", "streamSid", t.streamID, "model", t.cfg.Model)

	go func() {
		if err := dgClient.Stream(t.pr); err != nil && ctx.Err() == nil {
			slog.Error("DeepgramTranscriber.Start: stream error", "streamSid", t.streamID, "error", err)
		}
	}()
	return nil
}

// Write forwards raw μ-law audio.
func (t *DeepgramTranscriber) Write(audio []byte) error {
	if t.pw == nil {
		return fmt.Errorf("transcriber not started")
	}
	if _, err := t.pw.Write(audio); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSTTSend)
	}
	return nil
}

// Events returns transcripts and speech-start notifications.
func (t *DeepgramTranscriber) Events() <-chan Event {
	return t.events
}

// Close stops streaming and the connection.
func (t *DeepgramTranscriber) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.pw != nil {
		_ = t.pw.Close()
	}
	if t.dgClient != nil {
		t.dgClient.Stop()
	}
	return nil
}

func (t *DeepgramTranscriber) emit(evt Event) {
	select {
	case t.events <- evt:
	default:
		slog.Warn("DeepgramTranscriber.emit: event channel full, dropping", "streamSid", t.streamID, "kind", evt.Kind)
	}
}

func (t *DeepgramTranscriber) addFinal(text string) {
	t.mu.Lock()
	t.pending = append(t.pending, text)
	t.mu.Unlock()
}

// flush emits the collected final segments as one transcript.
func (t *DeepgramTranscriber) flush() {
	t.mu.Lock()
	text := strings.TrimSpace(strings.Join(t.pending, " "))
	t.pending = nil
	t.mu.Unlock()
	if text != "" {
		t.emit(Event{Kind: EventTranscript, Text: text})
	}
}

type callback struct {
	t *DeepgramTranscriber
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	slog.Debug("DeepgramTranscriber: connection opened", "streamSid", c.t.streamID)
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if transcript != "" && mr.IsFinal {
		c.t.addFinal(transcript)
	}
	if mr.SpeechFinal {
		c.t.flush()
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	slog.Debug("DeepgramTranscriber: metadata", "streamSid", c.t.streamID, "requestID", md.RequestID)
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.t.emit(Event{Kind: EventSpeechStarted})
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.t.flush()
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	slog.Debug("DeepgramTranscriber: connection closed", "streamSid", c.t.streamID)
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	slog.Error("DeepgramTranscriber: deepgram error", "streamSid", c.t.streamID, "code", er.ErrCode, "message", er.ErrMsg)
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	slog.Debug("DeepgramTranscriber: unhandled event", "streamSid", c.t.streamID, "data", string(byData))
	return nil
}

// TTSConfig configures Deepgram text-to-speech.
type TTSConfig struct {
	APIKey     string
	Model      string
	URL        string
	HTTPClient *http.Client
}

// DeepgramSpeaker synthesizes speech with Deepgram's speak endpoint in Twilio's audio format.
type DeepgramSpeaker struct {
	cfg TTSConfig
}

// NewDeepgramSpeaker creates a speaker.
func NewDeepgramSpeaker(cfg TTSConfig) *DeepgramSpeaker {
	if cfg.Model == "" {
		cfg.Model = DefaultTTSModel
	}
	if cfg.URL == "" {
		cfg.URL = DefaultSpeakURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &DeepgramSpeaker{cfg: cfg}
}

// Synthesize returns a stream of raw 8 kHz μ-law audio for text. The caller closes it.
func (s *DeepgramSpeaker) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	ctx, span := observability.StartSpan(ctx, "voice.Synthesize")
	defer span.End()

	q := url.Values{}
	q.Set("model", s.cfg.Model)
	q.Set("encoding", TwilioEncoding)
	q.Set("sample_rate", fmt.Sprintf("%d", TwilioSampleRate))
	q.Set("container", "none")

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSend)
	}
	req.Header.Set("Authorization", "Token "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("deepgram speak request: %w", err), errorsx.ReasonTTSSend)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errorsx.Wrap(fmt.Errorf("deepgram speak returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), errorsx.ReasonTTSSend)
	}
	return resp.Body, nil
}
