// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// EventKind tags a stream event variant. The set of wire kinds is closed;
// anything else parses into EventUnknown rather than being coerced.
type EventKind string

// Wire event kinds recognized on the Hub's event stream.
const (
	EventHeartbeat       EventKind = "heartbeat"
	EventChatChunk       EventKind = "chat_chunk"
	EventChatComplete    EventKind = "chat_complete"
	EventChatStarted     EventKind = "chat_started"
	EventSessionSync     EventKind = "session_sync"
	EventContentIngested EventKind = "content_ingested"
	EventStatus          EventKind = "status"
	EventError           EventKind = "error"

	// EventUnknown marks a frame whose kind this client does not recognize.
	EventUnknown EventKind = "unknown"

	// EventConnectionLost is synthesized locally when the stream client
	// exhausts its reconnection attempts. It never appears on the wire.
	EventConnectionLost EventKind = "connection_lost"
)

// chat_response is an alias some Hub builds emit for chat_chunk.
const eventChatResponse = "chat_response"

// =============================================================================
// STREAM EVENT
// =============================================================================

// SessionMessage is one entry of a session_sync history payload.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Event is a parsed stream frame. SessionID is empty for events that are
// not scoped to a conversation (heartbeat, status).
type Event struct {
	Kind      EventKind
	SessionID string

	// Chat fields
	MessageID string
	Content   string
	Chunk     string
	IsFinal   bool

	// session_sync payload
	Messages []SessionMessage

	// status payload
	ClientCount int

	// error payload
	ErrorMessage string

	// RawKind preserves the wire kind for EventUnknown frames; Raw holds
	// the undecoded payload for subscribers that want to inspect it.
	RawKind string
	Raw     json.RawMessage
}

// Text returns the reply fragment carried by a chunk event, whichever
// field the Hub used.
func (e *Event) Text() string {
	if e.Chunk != "" {
		return e.Chunk
	}
	return e.Content
}

// eventPayload is the superset wire shape of all event payloads.
type eventPayload struct {
	SessionID   string           `json:"session_id"`
	MessageID   string           `json:"message_id"`
	Content     string           `json:"content"`
	Chunk       string           `json:"chunk"`
	IsFinal     bool             `json:"is_final"`
	Messages    []SessionMessage `json:"messages"`
	ClientCount int              `json:"clients"`
	Error       string           `json:"error"`
	Message     string           `json:"message"`
}

// ParseEvent decodes one stream frame into a typed Event. A kind outside
// the recognized set yields an EventUnknown variant, not an error; an error
// is returned only for unparsable JSON.
func ParseEvent(kind string, data []byte) (Event, error) {
	var p eventPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("malformed event payload: %w", err)
		}
	}

	ev := Event{
		SessionID:   p.SessionID,
		MessageID:   p.MessageID,
		Content:     p.Content,
		Chunk:       p.Chunk,
		IsFinal:     p.IsFinal,
		Messages:    p.Messages,
		ClientCount: p.ClientCount,
	}

	switch kind {
	case string(EventHeartbeat), "":
		// Frames with no event line are treated as heartbeats: any inbound
		// frame proves the connection is alive.
		ev.Kind = EventHeartbeat
	case string(EventChatChunk), eventChatResponse:
		ev.Kind = EventChatChunk
	case string(EventChatComplete):
		ev.Kind = EventChatComplete
	case string(EventChatStarted):
		ev.Kind = EventChatStarted
	case string(EventSessionSync):
		ev.Kind = EventSessionSync
	case string(EventContentIngested):
		ev.Kind = EventContentIngested
	case string(EventStatus):
		ev.Kind = EventStatus
	case string(EventError):
		ev.Kind = EventError
		ev.ErrorMessage = p.Error
		if ev.ErrorMessage == "" {
			ev.ErrorMessage = p.Message
		}
	default:
		ev.Kind = EventUnknown
		ev.RawKind = kind
		ev.Raw = append(json.RawMessage(nil), data...)
	}

	return ev, nil
}
