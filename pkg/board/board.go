package board

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Config describes the fixed geometry and palette of a board.
type Config struct {
	Width      int
	Height     int
	NoteWidth  int
	NoteHeight int
	Colours    []string
}

// Board is the shared store of notes and pins for one server process.
// It is safe for concurrent use by multiple goroutines.
type Board struct {
	width      int
	height     int
	noteWidth  int
	noteHeight int
	colours    []string
	colourSet  map[string]struct{}

	mu    sync.RWMutex
	notes []*Note
	pins  []Pin
}

// New creates an empty board.
// Colour names are trimmed; blanks and duplicates are dropped, keeping the first
// occurrence's position. Returns an error if any dimension is not positive or
// no colour remains.
func New(cfg Config) (*Board, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("board dimensions must be positive, got %dx%d", cfg.Width, cfg.Height)
	}

	if cfg.NoteWidth <= 0 || cfg.NoteHeight <= 0 {
		return nil, fmt.Errorf("note dimensions must be positive, got %dx%d", cfg.NoteWidth, cfg.NoteHeight)
	}

	colours := make([]string, 0, len(cfg.Colours))
	colourSet := make(map[string]struct{}, len(cfg.Colours))
	for _, c := range cfg.Colours {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, seen := colourSet[c]; seen {
			continue
		}
		colourSet[c] = struct{}{}
		colours = append(colours, c)
	}

	if len(colours) == 0 {
		return nil, fmt.Errorf("at least one colour is required")
	}

	return &Board{
		width:      cfg.Width,
		height:     cfg.Height,
		noteWidth:  cfg.NoteWidth,
		noteHeight: cfg.NoteHeight,
		colours:    colours,
		colourSet:  colourSet,
	}, nil
}

// Width returns the board width.
func (b *Board) Width() int { return b.width }

// Height returns the board height.
func (b *Board) Height() int { return b.height }

// NoteWidth returns the fixed width of every note.
func (b *Board) NoteWidth() int { return b.noteWidth }

// NoteHeight returns the fixed height of every note.
func (b *Board) NoteHeight() int { return b.noteHeight }

// Colours returns a copy of the allowed colours in their fixed order.
func (b *Board) Colours() []string {
	out := make([]string, len(b.colours))
	copy(out, b.colours)
	return out
}

// IsValidColour reports whether colour is in the allowed colour list.
// The colour list never changes after New, so no lock is needed.
func (b *Board) IsValidColour(colour string) bool {
	_, ok := b.colourSet[colour]
	return ok
}

// Post adds a new note anchored at (x, y).
// Checks run in order: footprint bounds, colour, exact-anchor overlap.
// Partial overlaps with existing notes are allowed.
func (b *Board) Post(x, y int, colour, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrInvalidFormat
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if x < 0 || x > b.width-b.noteWidth || y < 0 || y > b.height-b.noteHeight {
		return ErrOutOfBounds
	}

	if !b.IsValidColour(colour) {
		return ErrColourNotSupported
	}

	for _, n := range b.notes {
		if n.X == x && n.Y == y {
			return ErrCompleteOverlap
		}
	}

	note := &Note{
		ID:      uuid.New().String(),
		X:       x,
		Y:       y,
		Width:   b.noteWidth,
		Height:  b.noteHeight,
		Colour:  colour,
		Message: message,
	}
	if err := note.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	b.notes = append(b.notes, note)

	return nil
}

// Pin places a pin at (x, y) on every note whose footprint covers the point.
// Notes already pinned at exactly this point are skipped. Returns ErrNoteNotFound,
// without mutating anything, when no note covers the point.
func (b *Board) Pin(x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return ErrOutOfBounds
	}

	found := false
	for _, n := range b.notes {
		if !n.Contains(x, y) {
			continue
		}
		found = true

		if b.hasPinLocked(n.ID, x, y) {
			continue
		}
		b.pins = append(b.pins, Pin{X: x, Y: y, NoteID: n.ID})
	}

	if !found {
		return ErrNoteNotFound
	}

	return nil
}

// Unpin removes every pin at exactly (x, y), whichever notes they belong to.
func (b *Board) Unpin(x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.pins[:0]
	removed := 0
	for _, p := range b.pins {
		if p.X == x && p.Y == y {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	clearTail(b.pins, len(kept))
	b.pins = kept

	if removed == 0 {
		return ErrPinNotFound
	}

	return nil
}

// Shake removes every note that has no pin. Pinned notes and their pins are kept.
func (b *Board) Shake() {
	b.mu.Lock()
	defer b.mu.Unlock()

	pinned := b.pinnedNoteIDsLocked()

	keptNotes := b.notes[:0]
	dropped := make(map[string]struct{})
	for _, n := range b.notes {
		if _, ok := pinned[n.ID]; ok {
			keptNotes = append(keptNotes, n)
			continue
		}
		dropped[n.ID] = struct{}{}
	}
	for i := len(keptNotes); i < len(b.notes); i++ {
		b.notes[i] = nil
	}
	b.notes = keptNotes

	// An unpinned note has no pins by definition; this only guards the invariant.
	if len(dropped) > 0 {
		keptPins := b.pins[:0]
		for _, p := range b.pins {
			if _, ok := dropped[p.NoteID]; !ok {
				keptPins = append(keptPins, p)
			}
		}
		clearTail(b.pins, len(keptPins))
		b.pins = keptPins
	}
}

// Clear removes every note and pin.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.notes = nil
	b.pins = nil
}

// ListPins returns the coordinates of every pin in placement order.
func (b *Board) ListPins() []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Point, 0, len(b.pins))
	for _, p := range b.pins {
		out = append(out, Point{X: p.X, Y: p.Y})
	}
	return out
}

// ListNotes returns the notes matching filter in posting order.
// A colour filter naming an unsupported colour returns ErrColourNotSupported.
func (b *Board) ListNotes(filter NoteFilter) ([]NoteView, error) {
	if filter.Colour != "" && !b.IsValidColour(filter.Colour) {
		return nil, ErrColourNotSupported
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	pinned := b.pinnedNoteIDsLocked()

	out := make([]NoteView, 0, len(b.notes))
	for _, n := range b.notes {
		if !filter.Matches(n) {
			continue
		}
		_, isPinned := pinned[n.ID]
		out = append(out, NoteView{
			X:       n.X,
			Y:       n.Y,
			Colour:  n.Colour,
			Message: n.Message,
			Pinned:  isPinned,
		})
	}
	return out, nil
}

// Stats returns current note and pin counts.
func (b *Board) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Notes:       len(b.notes),
		Pins:        len(b.pins),
		PinnedNotes: len(b.pinnedNoteIDsLocked()),
	}
}

// hasPinLocked reports whether noteID already has a pin at (x, y). Caller holds mu.
func (b *Board) hasPinLocked(noteID string, x, y int) bool {
	for _, p := range b.pins {
		if p.NoteID == noteID && p.X == x && p.Y == y {
			return true
		}
	}
	return false
}

// pinnedNoteIDsLocked returns the set of note IDs with at least one pin. Caller holds mu.
func (b *Board) pinnedNoteIDsLocked() map[string]struct{} {
	ids := make(map[string]struct{}, len(b.pins))
	for _, p := range b.pins {
		ids[p.NoteID] = struct{}{}
	}
	return ids
}

// clearTail zeroes pins[n:] so filtered-out entries don't linger in the backing array.
func clearTail(pins []Pin, n int) {
	for i := n; i < len(pins); i++ {
		pins[i] = Pin{}
	}
}
