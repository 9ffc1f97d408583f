// Package feed broadcasts board mutations over Redis Pub/Sub so that external
// tools can follow a corkboard live. The feed is write-only from the server's
// point of view: nothing published here is ever read back into a board.
//
// Channel pattern: corkboard:{instance_name}:board_events
package feed

import (
	"fmt"
	"time"
)

// EventType names a successful board mutation.
type EventType string

const (
	// EventNotePosted is published after a POST succeeds
	EventNotePosted EventType = "note_posted"

	// EventNotePinned is published after a PIN succeeds
	EventNotePinned EventType = "note_pinned"

	// EventPinRemoved is published after an UNPIN succeeds
	EventPinRemoved EventType = "pin_removed"

	// EventBoardShaken is published after every SHAKE
	EventBoardShaken EventType = "board_shaken"

	// EventBoardCleared is published after every CLEAR
	EventBoardCleared EventType = "board_cleared"
)

// Event is the JSON payload published for each mutation.
type Event struct {
	Type        EventType `json:"type"`
	X           *int      `json:"x,omitempty"`       // Set for post, pin and unpin
	Y           *int      `json:"y,omitempty"`       // Set for post, pin and unpin
	Colour      string    `json:"colour,omitempty"`  // Post only
	Message     string    `json:"message,omitempty"` // Post only
	Session     string    `json:"session"`           // UUID of the session that caused the change
	TimestampMs int64     `json:"timestamp_ms"`      // Unix milliseconds when the change was applied
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(eventType EventType, session string) *Event {
	return &Event{
		Type:        eventType,
		Session:     session,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// At sets the event coordinates and returns the event for chaining.
func (e *Event) At(x, y int) *Event {
	e.X = &x
	e.Y = &y
	return e
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}

	switch e.Type {
	case EventNotePosted, EventNotePinned, EventPinRemoved:
		if e.X == nil || e.Y == nil {
			return fmt.Errorf("%s event requires coordinates", e.Type)
		}
	}

	if e.Type == EventNotePosted && (e.Colour == "" || e.Message == "") {
		return fmt.Errorf("note_posted event requires colour and message")
	}

	if e.TimestampMs <= 0 {
		return fmt.Errorf("invalid timestamp: %d", e.TimestampMs)
	}

	return nil
}

// Validate checks if the EventType is a valid enum value.
func (et EventType) Validate() error {
	switch et {
	case EventNotePosted, EventNotePinned, EventPinRemoved, EventBoardShaken, EventBoardCleared:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", et)
	}
}

// EventsChannel returns the Pub/Sub channel name for board events.
// Pattern: corkboard:{instance_name}:board_events
func EventsChannel(instanceName string) string {
	return fmt.Sprintf("corkboard:%s:board_events", instanceName)
}
