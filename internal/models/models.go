// Package models defines the core data structures for LeadPipe.
//
// It includes the channel and message types shared between transports, the typed
// deployment context fetched from the backend, and the JSON envelopes used by the HTTP API.
package models

import (
	"errors"
	"strings"
)

// Channel identifies the transport a conversation runs over. It governs how options are rendered.
type Channel string

const (
	// ChannelWeb is the browser widget over a websocket.
	ChannelWeb Channel = "web"
	// ChannelWhatsApp is WhatsApp, through Twilio or a direct whatsmeow session.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelVoice is a phone call streamed through Twilio.
	ChannelVoice Channel = "voice"
	// ChannelMessenger is Facebook Messenger.
	ChannelMessenger Channel = "messenger"
	// ChannelInstagram is Instagram direct messages.
	ChannelInstagram Channel = "instagram"
)

// ErrUnknownChannel is returned when a channel name is not one of the supported values.
var ErrUnknownChannel = errors.New("unknown channel")

// ParseChannel converts a channel name into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelWeb, ChannelWhatsApp, ChannelVoice, ChannelMessenger, ChannelInstagram:
		return c, nil
	}
	return "", ErrUnknownChannel
}

// SkipsPhoneCollection reports whether the channel already knows the user's phone number.
func (c Channel) SkipsPhoneCollection() bool {
	return c == ChannelWhatsApp || c == ChannelVoice
}

// UsesNumberedLists reports whether options on this channel are rendered as a numbered list.
func (c Channel) UsesNumberedLists() bool {
	return c == ChannelWhatsApp || c == ChannelMessenger || c == ChannelInstagram
}

// PrefixAddress qualifies a bare address with its channel ("whatsapp:+15551234567").
func PrefixAddress(ch Channel, addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	prefix := string(ch) + ":"
	if strings.HasPrefix(addr, prefix) {
		return addr
	}
	return prefix + addr
}

// SplitAddress separates a channel-prefixed address. ok is false when addr carries no known
// prefix; the address is then returned trimmed.
func SplitAddress(addr string) (ch Channel, bare string, ok bool) {
	addr = strings.TrimSpace(addr)
	for _, c := range []Channel{ChannelWhatsApp, ChannelInstagram, ChannelMessenger, ChannelVoice, ChannelWeb} {
		if rest, found := strings.CutPrefix(addr, string(c)+":"); found {
			return c, strings.TrimSpace(rest), true
		}
	}
	return "", addr, false
}

// Role of a conversation history entry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry of a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records the delivery status of an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// InboundMessage is a user message received from a messaging transport.
type InboundMessage struct {
	Channel     Channel `json:"channel"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Body        string  `json:"body"`
	MessageID   string  `json:"message_id,omitempty"`
	ProfileName string  `json:"profile_name,omitempty"`
	Time        int64   `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
