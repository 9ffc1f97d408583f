// Package render formats board listings for the command line.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/olekukonko/tablewriter"
)

// Output formats accepted by the listing commands
const (
	FormatTable = "table"
	FormatJSONL = "jsonl"
)

// maxMessageWidth is the widest message shown in a table cell
const maxMessageWidth = 40

// ValidateFormat rejects unknown listing formats.
func ValidateFormat(format string) error {
	if format != FormatTable && format != FormatJSONL {
		return fmt.Errorf("invalid output format: %s (must be '%s' or '%s')", format, FormatTable, FormatJSONL)
	}
	return nil
}

// NotesTable writes notes as a table with columns X, Y, COLOUR, PINNED and
// MESSAGE (truncated). Returns the number of notes written.
func NotesTable(w io.Writer, notes []board.NoteView) (int, error) {
	if len(notes) == 0 {
		_, err := fmt.Fprintln(w, "No notes on the board")
		return 0, err
	}

	table := tablewriter.NewWriter(w)
	table.Header("X", "Y", "COLOUR", "PINNED", "MESSAGE")
	for _, n := range notes {
		if err := table.Append(strconv.Itoa(n.X), strconv.Itoa(n.Y), n.Colour, formatPinned(n.Pinned), formatMessage(n.Message)); err != nil {
			return 0, fmt.Errorf("failed to add table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return 0, fmt.Errorf("failed to render table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\n%d %s found\n", len(notes), plural(len(notes), "note", "notes"))
	return len(notes), err
}

// PinsTable writes pins as a two-column table. Returns the number of pins written.
func PinsTable(w io.Writer, pins []board.Point) (int, error) {
	if len(pins) == 0 {
		_, err := fmt.Fprintln(w, "No pins on the board")
		return 0, err
	}

	table := tablewriter.NewWriter(w)
	table.Header("X", "Y")
	for _, p := range pins {
		if err := table.Append(strconv.Itoa(p.X), strconv.Itoa(p.Y)); err != nil {
			return 0, fmt.Errorf("failed to add table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return 0, fmt.Errorf("failed to render table: %w", err)
	}

	_, err := fmt.Fprintf(w, "\n%d %s found\n", len(pins), plural(len(pins), "pin", "pins"))
	return len(pins), err
}

type noteJSON struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Colour  string `json:"colour"`
	Message string `json:"message"`
	Pinned  bool   `json:"pinned"`
}

type pinJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NotesJSONL writes one JSON object per note, one per line.
func NotesJSONL(w io.Writer, notes []board.NoteView) error {
	for _, n := range notes {
		if err := writeJSONLine(w, noteJSON{X: n.X, Y: n.Y, Colour: n.Colour, Message: n.Message, Pinned: n.Pinned}); err != nil {
			return err
		}
	}
	return nil
}

// PinsJSONL writes one JSON object per pin, one per line.
func PinsJSONL(w io.Writer, pins []board.Point) error {
	for _, p := range pins {
		if err := writeJSONLine(w, pinJSON{X: p.X, Y: p.Y}); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// formatMessage truncates long messages for table display.
func formatMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "-"
	}
	if len(message) > maxMessageWidth {
		return message[:maxMessageWidth-3] + "..."
	}
	return message
}

func formatPinned(pinned bool) string {
	if pinned {
		return "yes"
	}
	return "no"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
