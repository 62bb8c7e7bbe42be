// Package wire defines the JSON frames exchanged with the bridge.
//
// Each websocket text frame carries exactly one JSON object with a "type"
// discriminator. Outbound commands are flat objects of string fields; inbound
// events are decoded into the typed structs below.
package wire

import (
	"github.com/bhandras/delight/watch/pkg/types"
)

// EventType is the discriminator of a bridge -> client event.
type EventType string

const (
	// EventMenu lists the sessions available on the bridge.
	EventMenu EventType = "menu"
	// EventSessionJoined confirms a join.
	EventSessionJoined EventType = "session_joined"
	// EventSessionCreated confirms a create.
	EventSessionCreated EventType = "session_created"
	// EventHistory seeds the transcript of a joined session.
	EventHistory EventType = "history"
	// EventOutput carries the assistant's live state.
	EventOutput EventType = "output"
)

// Event is a decoded inbound frame.
type Event interface {
	EventType() EventType
}

// MenuEvent carries the session list in server order.
type MenuEvent struct {
	Sessions []string
}

// EventType implements Event.
func (MenuEvent) EventType() EventType { return EventMenu }

// SessionJoinedEvent confirms that the client is now attached to a session.
// Created distinguishes session_created from session_joined.
type SessionJoinedEvent struct {
	Name    string
	Created bool
}

// EventType implements Event.
func (e SessionJoinedEvent) EventType() EventType {
	if e.Created {
		return EventSessionCreated
	}
	return EventSessionJoined
}

// HistoryEvent carries the bridge-side transcript for the joined session.
type HistoryEvent struct {
	Lines []string
}

// EventType implements Event.
func (HistoryEvent) EventType() EventType { return EventHistory }

// OutputEvent carries a status update and an optional prompt.
type OutputEvent struct {
	// CleanData is the structured status, nil when the frame has none.
	CleanData *types.StatusSnapshot
	// Prompt is the pending prompt, nil when the frame has none.
	Prompt *types.PromptData
	// Content is the raw content string (may hold the legacy status format).
	Content string
}

// EventType implements Event.
func (OutputEvent) EventType() EventType { return EventOutput }

// StatusSource tells where an output frame's snapshot came from.
type StatusSource int

const (
	// SourceNone means the frame does not carry a status.
	SourceNone StatusSource = iota
	// SourceStructured means the snapshot came from cleanData.
	SourceStructured
	// SourceLegacy means the snapshot came from a CLEAN: content string.
	SourceLegacy
)

// Snapshot resolves the frame's status snapshot.
//
// Structured cleanData always wins; the legacy content string is only
// consulted when cleanData is absent.
func (e OutputEvent) Snapshot() (types.StatusSnapshot, StatusSource) {
	if e.CleanData != nil {
		return *e.CleanData, SourceStructured
	}
	if snap, ok := ParseLegacyStatus(e.Content); ok {
		return snap, SourceLegacy
	}
	return types.StatusSnapshot{}, SourceNone
}

// UnknownEvent is a frame whose discriminator this client does not handle.
type UnknownEvent struct {
	Type string
}

// EventType implements Event.
func (e UnknownEvent) EventType() EventType { return EventType(e.Type) }
