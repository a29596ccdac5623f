// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"sync"

	"github.com/jeranaias/hublink/internal/model"
)

// =============================================================================
// HANDLERS
// =============================================================================

// Handlers is the typed event sink for UI collaborators. Nil handlers are
// skipped. OnComplete is the finalize callback; it fires exactly once per
// message id.
type Handlers struct {
	// OnChunk delivers the accumulated partial content after each chunk.
	OnChunk func(sessionID, messageID, partial string)

	// OnComplete delivers the final reply content for a message.
	OnComplete func(sessionID, messageID, content string)

	// OnChatStarted signals that another client began a turn.
	OnChatStarted func(sessionID string)

	// OnSessionSync delivers the full message history for a session.
	OnSessionSync func(sessionID string, messages []model.SessionMessage)

	// OnContentIngested signals the Hub ingested new content.
	OnContentIngested func()

	// OnStatus delivers connection/client-count info.
	OnStatus func(clientCount int)

	// OnError delivers an error event from the Hub.
	OnError func(message string)

	// OnConnectionLost signals the stream client gave up reconnecting.
	OnConnectionLost func(reason string)
}

// =============================================================================
// SESSION ROUTER
// =============================================================================

// maxFinalized bounds the duplicate-suppression window. Only the most
// recently finalized message ids are remembered; a long-lived connection
// must not accrete one record per message forever.
const maxFinalized = 256

// Router consumes stream events, applies session filtering, and rebuilds
// streamed replies. Message ids are connection-scoped: Reset discards any
// in-progress accumulator instead of resuming it after a reconnect.
type Router struct {
	mu sync.Mutex

	activeSession  string
	accum          map[string]*strings.Builder
	accumSession   map[string]string
	finalized      map[string]bool
	finalizedOrder []string

	handlers Handlers
}

// New creates a router with the given handler set.
func New(handlers Handlers) *Router {
	return &Router{
		accum:        make(map[string]*strings.Builder),
		accumSession: make(map[string]string),
		finalized:    make(map[string]bool),
		handlers:     handlers,
	}
}

// SetActiveSession sets the session id used to filter chat events.
func (r *Router) SetActiveSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeSession = id
}

// ClearActiveSession removes the filter; all events pass through.
func (r *Router) ClearActiveSession() {
	r.SetActiveSession("")
}

// ActiveSession returns the currently tracked session id.
func (r *Router) ActiveSession() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeSession
}

// IsStreaming reports whether any reply is currently being assembled.
func (r *Router) IsStreaming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accum) > 0
}

// Partial returns the current accumulated content for a message id.
func (r *Router) Partial(messageID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.accum[messageID]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// Reset discards all in-progress accumulators and finalize records. Call
// it on disconnect: cross-connection ordering is not guaranteed, so a
// half-assembled reply must never be resumed on a new connection.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accum = make(map[string]*strings.Builder)
	r.accumSession = make(map[string]string)
	r.finalized = make(map[string]bool)
	r.finalizedOrder = nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// passes reports whether an event's session clears the filter. Events
// without a session id always pass; so does everything when no session is
// active.
func (r *Router) passes(sessionID string) bool {
	return sessionID == "" || r.activeSession == "" || sessionID == r.activeSession
}

// Dispatch routes one stream event. Events are expected in transport
// arrival order; chunk text is appended without reordering.
func (r *Router) Dispatch(ev model.Event) {
	r.mu.Lock()

	if !r.passes(ev.SessionID) {
		r.mu.Unlock()
		return
	}

	switch ev.Kind {
	case model.EventChatChunk:
		r.dispatchChunk(ev)
	case model.EventChatComplete:
		r.dispatchComplete(ev)
	case model.EventChatStarted:
		h := r.handlers.OnChatStarted
		r.mu.Unlock()
		if h != nil {
			h(ev.SessionID)
		}
	case model.EventSessionSync:
		h := r.handlers.OnSessionSync
		r.mu.Unlock()
		if h != nil {
			h(ev.SessionID, ev.Messages)
		}
	case model.EventContentIngested:
		h := r.handlers.OnContentIngested
		r.mu.Unlock()
		if h != nil {
			h()
		}
	case model.EventStatus:
		h := r.handlers.OnStatus
		r.mu.Unlock()
		if h != nil {
			h(ev.ClientCount)
		}
	case model.EventError:
		h := r.handlers.OnError
		r.mu.Unlock()
		if h != nil {
			h(ev.ErrorMessage)
		}
	case model.EventConnectionLost:
		h := r.handlers.OnConnectionLost
		r.mu.Unlock()
		if h != nil {
			h(ev.ErrorMessage)
		}
	default:
		// Heartbeats and unknown kinds carry nothing for subscribers.
		r.mu.Unlock()
	}
}

// dispatchChunk appends a reply fragment. Caller holds mu; it is released
// before the handler runs.
func (r *Router) dispatchChunk(ev model.Event) {
	if ev.MessageID == "" || r.finalized[ev.MessageID] {
		r.mu.Unlock()
		return
	}

	b, ok := r.accum[ev.MessageID]
	if !ok {
		b = &strings.Builder{}
		r.accum[ev.MessageID] = b
		r.accumSession[ev.MessageID] = ev.SessionID
	}
	b.WriteString(ev.Text())
	partial := b.String()

	// A chunk flagged final closes the message with the accumulated text.
	if ev.IsFinal {
		r.finalizeLocked(ev.SessionID, ev.MessageID, "")
		return
	}

	h := r.handlers.OnChunk
	r.mu.Unlock()
	if h != nil {
		h(ev.SessionID, ev.MessageID, partial)
	}
}

// dispatchComplete closes a message. A complete event with no prior chunks
// is the non-streamed reply path and uses its own content directly. Caller
// holds mu.
func (r *Router) dispatchComplete(ev model.Event) {
	if ev.MessageID == "" || r.finalized[ev.MessageID] {
		r.mu.Unlock()
		return
	}
	r.finalizeLocked(ev.SessionID, ev.MessageID, ev.Content)
}

// finalizeLocked resolves the final content, discards the accumulator, and
// fires OnComplete exactly once. Non-empty terminal content overrides the
// accumulated text. Caller holds mu; released before the handler runs.
func (r *Router) finalizeLocked(sessionID, messageID, content string) {
	if content == "" {
		if b, ok := r.accum[messageID]; ok {
			content = b.String()
		}
	}
	if sessionID == "" {
		sessionID = r.accumSession[messageID]
	}

	delete(r.accum, messageID)
	delete(r.accumSession, messageID)
	r.finalized[messageID] = true
	r.finalizedOrder = append(r.finalizedOrder, messageID)
	if len(r.finalizedOrder) > maxFinalized {
		evict := r.finalizedOrder[0]
		r.finalizedOrder = r.finalizedOrder[1:]
		delete(r.finalized, evict)
	}

	h := r.handlers.OnComplete
	r.mu.Unlock()
	if h != nil {
		h(sessionID, messageID, content)
	}
}
