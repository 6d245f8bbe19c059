package meta

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Payload is a Graph webhook body.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events of one page or Instagram account.
type Entry struct {
	ID        string  `json:"id"`
	Time      int64   `json:"time"`
	Messaging []Event `json:"messaging"`
}

// Event is one messaging event.
type Event struct {
	Sender    Party           `json:"sender"`
	Recipient Party           `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *Message        `json:"message,omitempty"`
	Postback  *Postback       `json:"postback,omitempty"`
	Delivery  json.RawMessage `json:"delivery,omitempty"`
	Read      json.RawMessage `json:"read,omitempty"`
}

// Party identifies a sender or recipient.
type Party struct {
	ID string `json:"id"`
}

// Message is an inbound message.
type Message struct {
	Mid        string      `json:"mid"`
	Text       string      `json:"text"`
	IsEcho     bool        `json:"is_echo"`
	QuickReply *QuickReply `json:"quick_reply,omitempty"`
}

// QuickReply carries the payload of a tapped quick reply.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Postback is a button or menu press.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// ChannelFor maps the webhook object to a channel.
func ChannelFor(object string) (models.Channel, error) {
	switch object {
	case "page":
		return models.ChannelMessenger, nil
	case "instagram":
		return models.ChannelInstagram, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedObject, object)
}

// ParseEvents returns every processable message in a (possibly batched) webhook body. Echoes,
// delivery and read receipts and events without text are skipped. To is the page or account id.
func ParseEvents(body []byte) ([]models.InboundMessage, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}
	ch, err := ChannelFor(p.Object)
	if err != nil {
		return nil, err
	}
	var out []models.InboundMessage
	for _, entry := range p.Entry {
		for _, ev := range entry.Messaging {
			if ev.Message != nil && ev.Message.IsEcho {
				continue
			}
			if len(ev.Delivery) > 0 || len(ev.Read) > 0 {
				continue
			}
			text := eventText(ev)
			if ev.Sender.ID == "" || text == "" {
				continue
			}
			to := ev.Recipient.ID
			if to == "" {
				to = entry.ID
			}
			msg := models.InboundMessage{
				Channel: ch,
				From:    ev.Sender.ID,
				To:      to,
				Body:    text,
				Time:    ev.Timestamp / 1000,
			}
			if ev.Message != nil {
				msg.MessageID = ev.Message.Mid
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

// eventText prefers message text, then postback title or payload, then quick reply payload.
func eventText(ev Event) string {
	if ev.Message != nil {
		if t := strings.TrimSpace(ev.Message.Text); t != "" {
			return t
		}
	}
	if ev.Postback != nil {
		if t := strings.TrimSpace(ev.Postback.Title); t != "" {
			return t
		}
		if t := strings.TrimSpace(ev.Postback.Payload); t != "" {
			return t
		}
	}
	if ev.Message != nil && ev.Message.QuickReply != nil {
		return strings.TrimSpace(ev.Message.QuickReply.Payload)
	}
	return ""
}
