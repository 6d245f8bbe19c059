package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/BTreeMap/LeadPipe/internal/conversation"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/render"
)

const (
	// chunkSize is 80ms of 8 kHz μ-law audio.
	chunkSize = 640
	// doneMark names the mark sent after the final reply; the call closes when Twilio echoes it.
	doneMark = "leadpipe-done"
)

// TwilioStart is the payload of a media stream start event.
type TwilioStart struct {
	CallSID          string            `json:"callSid"`
	StreamID         string            `json:"streamSid"`
	From             string            `json:"from,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// TwilioMedia carries base64 μ-law audio.
type TwilioMedia struct {
	Payload string `json:"payload"`
}

// TwilioMark names a playback marker.
type TwilioMark struct {
	Name string `json:"name"`
}

// TwilioEvent is one message on the media stream.
type TwilioEvent struct {
	Event     string       `json:"event"`
	StreamSID string       `json:"streamSid,omitempty"`
	Start     *TwilioStart `json:"start,omitempty"`
	Media     *TwilioMedia `json:"media,omitempty"`
	Mark      *TwilioMark  `json:"mark,omitempty"`
}

// StreamHandler serves the Twilio media stream websocket.
func (h *Handler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Handler.StreamHandler: upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	var c *call
	defer func() {
		cancel()
		if c != nil {
			c.close()
		}
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c != nil {
				slog.Info("Handler.StreamHandler: stream closed", "streamSid", c.sessionID, "error", err)
			}
			return
		}
		var evt TwilioEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			slog.Debug("Handler.StreamHandler: ignoring malformed event", "error", err)
			continue
		}
		switch evt.Event {
		case "start":
			if evt.Start == nil || c != nil {
				continue
			}
			c, err = h.startCall(ctx, conn, evt.Start)
			if err != nil {
				slog.Error("Handler.StreamHandler: call setup failed", "streamSid", evt.Start.StreamID, "error", err)
				return
			}
		case "media":
			if c == nil || evt.Media == nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
			if err != nil {
				continue
			}
			if err := c.stt.Write(audio); err != nil {
				slog.Warn("Handler.StreamHandler: transcriber write failed", "streamSid", c.sessionID, "error", err)
			}
		case "mark":
			if c != nil && evt.Mark != nil && evt.Mark.Name == doneMark {
				slog.Info("Handler.StreamHandler: final reply played, closing", "streamSid", c.sessionID)
				return
			}
		case "stop":
			if c != nil {
				slog.Info("Handler.StreamHandler: call ended", "streamSid", c.sessionID)
			}
			return
		}
	}
}

// call is the state of one connected media stream.
type call struct {
	h         *Handler
	ctx       context.Context
	conn      *websocket.Conn
	sessionID string
	in        conversation.Inbound
	stt       Transcriber
	sendCh    chan []byte
	turnCh    chan string

	mu         sync.Mutex
	stopSpeech context.CancelFunc
	closeOnce  sync.Once
	turnsDone  chan struct{}
}

func (h *Handler) startCall(ctx context.Context, conn *websocket.Conn, start *TwilioStart) (*call, error) {
	from := start.CustomParameters[ParamFrom]
	if from == "" {
		from = start.From
	}
	to := start.CustomParameters[ParamTo]
	route, err := h.routes.Lookup(models.ChannelVoice, to)
	if err != nil {
		return nil, err
	}

	stt := h.newSTT(start.StreamID)
	if err := stt.Start(ctx); err != nil {
		return nil, err
	}

	c := &call{
		h:         h,
		ctx:       ctx,
		conn:      conn,
		sessionID: start.StreamID,
		in: conversation.Inbound{
			SessionID: start.StreamID,
			Channel:   models.ChannelVoice,
			UserID:    route.UserID,
			Address:   to,
			Phone:     from,
		},
		stt:       stt,
		sendCh:    make(chan []byte, 256),
		turnCh:    make(chan string, 8),
		turnsDone: make(chan struct{}),
	}
	slog.Info("Handler.startCall: stream started", "streamSid", start.StreamID, "callSid", start.CallSID, "from", from, "to", to)

	go c.writeLoop()
	go c.listen()
	go c.turnLoop()
	return c, nil
}

// listen reacts to transcriber events. Barge-in is handled here so it never waits for a turn.
func (c *call) listen() {
	for {
		select {
		case evt, ok := <-c.stt.Events():
			if !ok {
				return
			}
			switch evt.Kind {
			case EventSpeechStarted:
				c.bargeIn()
			case EventTranscript:
				select {
				case c.turnCh <- evt.Text:
				case <-c.ctx.Done():
					return
				}
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *call) turnLoop() {
	defer close(c.turnsDone)
	out, err := c.h.turns.Start(c.ctx, c.in)
	if err != nil {
		slog.Error("call.turnLoop: greeting failed", "streamSid", c.sessionID, "error", err)
	}
	if c.reply(out) {
		return
	}
	for {
		select {
		case text := <-c.turnCh:
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			in := c.in
			in.Text = text
			out, err := c.h.turns.Handle(c.ctx, in)
			if err != nil {
				slog.Error("call.turnLoop: turn failed", "streamSid", c.sessionID, "error", err)
			}
			if c.reply(out) {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// reply speaks the outcome and reports whether the conversation is over.
func (c *call) reply(out conversation.Outcome) bool {
	parts := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		if s := render.ForVoice(m); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		if err := c.speak(strings.Join(parts, " ")); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("call.reply: speech failed", "streamSid", c.sessionID, "error", err)
		}
	}
	if out.Done {
		c.enqueue(map[string]any{"event": "mark", "streamSid": c.sessionID, "mark": map[string]string{"name": doneMark}})
		return true
	}
	return false
}

// speak streams synthesized audio as media events until done or interrupted by bargeIn.
func (c *call) speak(text string) error {
	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	c.stopSpeech = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stopSpeech = nil
		c.mu.Unlock()
		cancel()
	}()

	audio, err := c.h.tts.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	defer audio.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(audio, buf)
		if n > 0 {
			c.enqueue(map[string]any{
				"event":     "media",
				"streamSid": c.sessionID,
				"media":     map[string]string{"payload": base64.StdEncoding.EncodeToString(buf[:n])},
			})
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// bargeIn stops the current reply and clears audio Twilio has buffered.
func (c *call) bargeIn() {
	c.mu.Lock()
	stop := c.stopSpeech
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	slog.Debug("call.bargeIn: caller started speaking", "streamSid", c.sessionID)
	c.enqueue(map[string]any{"event": "clear", "streamSid": c.sessionID})
}

func (c *call) enqueue(msg map[string]any) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.sendCh <- b:
	case <-c.ctx.Done():
	}
}

func (c *call) writeLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("call.writeLoop: write failed", "streamSid", c.sessionID, "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// close stops the transcriber and removes the session once the running turn has returned. The
// call's context must already be canceled.
func (c *call) close() {
	c.closeOnce.Do(func() {
		<-c.turnsDone
		if err := c.stt.Close(); err != nil {
			slog.Warn("call.close: transcriber close failed", "streamSid", c.sessionID, "error", err)
		}
		c.h.turns.End(context.WithoutCancel(c.ctx), c.sessionID)
	})
}
