package board

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Point is a single board coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Note represents an immutable note posted on the board.
// Notes are addressed by clients only through point containment; the ID exists
// so that pins can refer to a note without relying on coordinates.
type Note struct {
	ID      string `json:"id"`      // UUID - stable identity used by pins
	X       int    `json:"x"`       // Left edge of the footprint (inclusive)
	Y       int    `json:"y"`       // Top edge of the footprint (inclusive)
	Width   int    `json:"width"`   // Always the board's note width
	Height  int    `json:"height"`  // Always the board's note height
	Colour  string `json:"colour"`  // One of the board's allowed colours
	Message string `json:"message"` // Free text, never blank
}

// Pin represents an immutable pin placed at an exact point on a note.
type Pin struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	NoteID string `json:"note_id"` // UUID of the pinned note
}

// NoteView is the read-only projection of a note returned by queries.
type NoteView struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Colour  string `json:"colour"`
	Message string `json:"message"`
	Pinned  bool   `json:"pinned"` // True when at least one pin refers to the note
}

// NoteFilter defines query criteria for ListNotes.
// All criteria are ANDed together; zero values match everything.
type NoteFilter struct {
	Colour   string // Exact colour match, empty = no filter
	Contains *Point // Footprint must cover this point, nil = no filter
	RefersTo string // Case-insensitive message substring, empty = no filter
}

// Stats is a point-in-time summary of board contents.
type Stats struct {
	Notes       int `json:"notes"`
	Pins        int `json:"pins"`
	PinnedNotes int `json:"pinned_notes"`
}

// Contains reports whether (x, y) lies inside the note's half-open footprint.
func (n *Note) Contains(x, y int) bool {
	return x >= n.X && x-n.X < n.Width && y >= n.Y && y-n.Y < n.Height
}

// Validate checks if the Note has valid field values.
func (n *Note) Validate() error {
	if _, err := uuid.Parse(n.ID); err != nil {
		return fmt.Errorf("invalid note ID: not a valid UUID")
	}

	if n.Width <= 0 || n.Height <= 0 {
		return fmt.Errorf("invalid note size: %dx%d", n.Width, n.Height)
	}

	if n.Colour == "" {
		return fmt.Errorf("note colour cannot be empty")
	}

	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("note message cannot be blank")
	}

	return nil
}

// Matches returns true if the note passes every criterion of the filter.
func (f *NoteFilter) Matches(n *Note) bool {
	if f.Colour != "" && n.Colour != f.Colour {
		return false
	}

	if f.Contains != nil && !n.Contains(f.Contains.X, f.Contains.Y) {
		return false
	}

	if f.RefersTo != "" && !strings.Contains(strings.ToLower(n.Message), strings.ToLower(f.RefersTo)) {
		return false
	}

	return true
}

// IsZero reports whether the filter has no criteria.
func (f *NoteFilter) IsZero() bool {
	return f.Colour == "" && f.Contains == nil && f.RefersTo == ""
}
