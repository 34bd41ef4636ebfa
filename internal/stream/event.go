// Package stream implements the line-oriented JSON event protocol spoken
// between the completion endpoints and the wizard: one `data: <json>` frame
// per event over a chunked HTTP body, closed by a sentinel line.
package stream

import "encoding/json"

// EventType tags a protocol event
type EventType string

const (
	EventPhase           EventType = "phase"            // informational phase indicator
	EventThinking        EventType = "thinking"         // incremental commentary, not part of the result
	EventText            EventType = "text"             // incremental partial result, advisory only
	EventInterimComplete EventType = "interim_complete" // fully-formed intermediate artifact
	EventComplete        EventType = "complete"         // terminal payload
	EventError           EventType = "error"            // terminal failure
)

// Event is one decoded protocol frame
type Event struct {
	Type    EventType       `json:"type"`
	Phase   string          `json:"phase,omitempty"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
