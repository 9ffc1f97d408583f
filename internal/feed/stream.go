package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// OutputFormat selects how StreamEvents renders events.
type OutputFormat string

const (
	// OutputFormatDefault renders one human-readable, coloured line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON renders one JSON object per line
	OutputFormatJSON OutputFormat = "json"
)

var (
	postedColour  = color.New(color.FgGreen)
	pinnedColour  = color.New(color.FgCyan)
	removedColour = color.New(color.FgYellow)
	wipeColour    = color.New(color.FgRed, color.Bold)
)

// StreamEvents writes events from sub to w until the context is cancelled or
// the subscription ends. Subscription errors are written inline and do not stop
// the stream.
func StreamEvents(ctx context.Context, sub *Subscription, format OutputFormat, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeEvent(w, event, format); err != nil {
				return err
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)
		}
	}
}

func writeEvent(w io.Writer, e *Event, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSON output: %w", err)
		}
		return nil
	}

	_, err := fmt.Fprintln(w, FormatEvent(e))
	return err
}

// FormatEvent renders an event as a single human-readable line.
func FormatEvent(e *Event) string {
	ts := time.UnixMilli(e.TimestampMs).Format("15:04:05.000")

	switch e.Type {
	case EventNotePosted:
		return postedColour.Sprintf("[%s] 📌 note posted at (%s): %s %q", ts, coords(e), e.Colour, e.Message)
	case EventNotePinned:
		return pinnedColour.Sprintf("[%s] 📍 pinned at (%s)", ts, coords(e))
	case EventPinRemoved:
		return removedColour.Sprintf("[%s] ✂️  pins removed at (%s)", ts, coords(e))
	case EventBoardShaken:
		return wipeColour.Sprintf("[%s] 🌀 board shaken", ts)
	case EventBoardCleared:
		return wipeColour.Sprintf("[%s] 🧹 board cleared", ts)
	default:
		return fmt.Sprintf("[%s] %s", ts, e.Type)
	}
}

func coords(e *Event) string {
	if e.X == nil || e.Y == nil {
		return "?"
	}
	return fmt.Sprintf("%d, %d", *e.X, *e.Y)
}
