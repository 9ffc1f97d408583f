package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dyluth/corkboard/pkg/board"
)

// Success words sent after "OK ".
const (
	NotePosted    = "NOTE_POSTED"
	PinAdded      = "PIN_ADDED"
	PinRemoved    = "PIN_REMOVED"
	ShakeComplete = "SHAKE_COMPLETE"
	BoardCleared  = "BOARD_CLEARED"
	Disconnected  = "DISCONNECTED"
)

// Handshake returns the three lines sent to every client on connect.
func Handshake(b *board.Board) []string {
	return []string{
		fmt.Sprintf("BOARD %d %d", b.Width(), b.Height()),
		fmt.Sprintf("NOTE_SIZE %d %d", b.NoteWidth(), b.NoteHeight()),
		"COLORS " + strings.Join(b.Colours(), " "),
	}
}

// OK formats a single-line success reply.
func OK(word string) string {
	return "OK " + word
}

// Error formats a failure reply. Errors that carry no board.Code are reported as INVALID_FORMAT.
func Error(err error) string {
	code, ok := board.CodeOf(err)
	if !ok {
		code = board.ErrInvalidFormat
	}
	return "ERROR " + string(code)
}

// PinLines formats a GET PINS reply: a count line followed by one line per pin.
func PinLines(pins []board.Point) []string {
	lines := make([]string, 0, len(pins)+1)
	lines = append(lines, OK(strconv.Itoa(len(pins))))
	for _, p := range pins {
		lines = append(lines, fmt.Sprintf("PIN %d %d", p.X, p.Y))
	}
	return lines
}

// NoteLines formats a GET reply: a count line followed by one line per note.
func NoteLines(notes []board.NoteView) []string {
	lines := make([]string, 0, len(notes)+1)
	lines = append(lines, OK(strconv.Itoa(len(notes))))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("NOTE %d %d %s %s PINNED=%t", n.X, n.Y, n.Colour, n.Message, n.Pinned))
	}
	return lines
}
