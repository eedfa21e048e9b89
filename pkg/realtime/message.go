package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Frame is the JSON envelope carried in every text frame, in both directions
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Participant is the sender block of a message payload
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ConversationRef is the conversation block of a message payload
type ConversationRef struct {
	ID string `json:"id"`
}

// MessagePayload is the data of a newMessage frame
type MessagePayload struct {
	ID           string          `json:"id"`
	Content      string          `json:"content"`
	Sender       Participant     `json:"sender"`
	Conversation ConversationRef `json:"conversation"`
	CreatedAt    string          `json:"createdAt"`
}

// InboundEvent is the latest message-like payload received from the stream
type InboundEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// RawEvent is published for inbound frames other than newMessage
type RawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ToInboundEvent converts a wire payload. ReceivedAt prefers the server's
// createdAt so redeliveries of one message share a timestamp.
func (p MessagePayload) ToInboundEvent(now time.Time) InboundEvent {
	return InboundEvent{
		ID:             p.ID,
		ConversationID: p.Conversation.ID,
		SenderID:       p.Sender.ID,
		SenderName:     p.Sender.Username,
		Content:        p.Content,
		ReceivedAt:     parseTimestamp(p.CreatedAt, now),
	}
}

// parseTimestamp accepts RFC 3339 strings and unix milliseconds, the two
// shapes GraphQL backends commonly emit for DateTime scalars.
func parseTimestamp(v string, fallback time.Time) time.Time {
	if v == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return fallback
}

// encodeFrame builds the wire bytes for an outbound event
func encodeFrame(event string, payload interface{}) ([]byte, error) {
	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		frame.Data = data
	}
	return json.Marshal(frame)
}
