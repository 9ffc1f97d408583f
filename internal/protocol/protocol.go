// Package protocol implements the corkboard line protocol: input normalisation,
// command parsing, and reply formatting. It holds no state and performs no I/O.
package protocol

import (
	"strconv"
	"strings"

	"github.com/dyluth/corkboard/pkg/board"
)

// Kind identifies a parsed command.
type Kind string

const (
	KindPost       Kind = "POST"
	KindPin        Kind = "PIN"
	KindUnpin      Kind = "UNPIN"
	KindShake      Kind = "SHAKE"
	KindClear      Kind = "CLEAR"
	KindGetPins    Kind = "GET_PINS"
	KindGetNotes   Kind = "GET"
	KindDisconnect Kind = "DISCONNECT"
)

// GET filter prefixes
const (
	colourPrefix   = "colour="
	containsPrefix = "contains="
	refersToPrefix = "refersTo="
)

// Command is one parsed client request.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind    Kind
	X, Y    int              // POST, PIN, UNPIN
	Colour  string           // POST
	Message string           // POST
	Filter  board.NoteFilter // GET
}

// Normalize trims a raw input line and collapses interior whitespace runs to a single space.
func Normalize(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// Parse converts a line into a Command. The line is normalised first.
// Any syntax error returns board.ErrInvalidFormat; semantic checks (bounds,
// colours, overlaps) are left to the board.
func Parse(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Command{}, board.ErrInvalidFormat
	}

	switch tokens[0] {
	case "POST":
		return parsePost(tokens)
	case "PIN":
		return parsePoint(KindPin, tokens)
	case "UNPIN":
		return parsePoint(KindUnpin, tokens)
	case "SHAKE":
		return parseBare(KindShake, tokens)
	case "CLEAR":
		return parseBare(KindClear, tokens)
	case "DISCONNECT":
		return parseBare(KindDisconnect, tokens)
	case "GET":
		return parseGet(tokens[1:])
	default:
		return Command{}, board.ErrInvalidFormat
	}
}

// parsePost handles: POST <x> <y> <colour> <message...>
func parsePost(tokens []string) (Command, error) {
	if len(tokens) < 5 {
		return Command{}, board.ErrInvalidFormat
	}

	x, y, err := parseCoords(tokens[1], tokens[2])
	if err != nil {
		return Command{}, err
	}

	return Command{
		Kind:    KindPost,
		X:       x,
		Y:       y,
		Colour:  tokens[3],
		Message: strings.Join(tokens[4:], " "),
	}, nil
}

// parsePoint handles: PIN <x> <y> and UNPIN <x> <y>
func parsePoint(kind Kind, tokens []string) (Command, error) {
	if len(tokens) != 3 {
		return Command{}, board.ErrInvalidFormat
	}

	x, y, err := parseCoords(tokens[1], tokens[2])
	if err != nil {
		return Command{}, err
	}

	return Command{Kind: kind, X: x, Y: y}, nil
}

func parseBare(kind Kind, tokens []string) (Command, error) {
	if len(tokens) != 1 {
		return Command{}, board.ErrInvalidFormat
	}
	return Command{Kind: kind}, nil
}

// parseGet handles the tokens after GET:
//
//	GET PINS
//	GET [colour=<c>] [contains=<x> <y>] [refersTo=<text...>]
func parseGet(args []string) (Command, error) {
	if len(args) == 1 && args[0] == "PINS" {
		return Command{Kind: KindGetPins}, nil
	}

	cmd := Command{Kind: KindGetNotes}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case strings.HasPrefix(arg, colourPrefix):
			colour := strings.TrimPrefix(arg, colourPrefix)
			if colour == "" {
				return Command{}, board.ErrInvalidFormat
			}
			cmd.Filter.Colour = colour

		case strings.HasPrefix(arg, containsPrefix):
			first := strings.TrimPrefix(arg, containsPrefix)
			if first == "" {
				i++
				if i >= len(args) {
					return Command{}, board.ErrInvalidFormat
				}
				first = args[i]
			}

			i++
			if i >= len(args) {
				return Command{}, board.ErrInvalidFormat
			}

			x, y, err := parseCoords(first, args[i])
			if err != nil {
				return Command{}, err
			}
			cmd.Filter.Contains = &board.Point{X: x, Y: y}

		case strings.HasPrefix(arg, refersToPrefix):
			// refersTo swallows the rest of the line, including anything that looks like a filter
			parts := append([]string{strings.TrimPrefix(arg, refersToPrefix)}, args[i+1:]...)
			text := strings.TrimSpace(strings.Join(parts, " "))
			if text == "" {
				return Command{}, board.ErrInvalidFormat
			}
			cmd.Filter.RefersTo = text
			return cmd, nil

		default:
			return Command{}, board.ErrInvalidFormat
		}
	}

	return cmd, nil
}

func parseCoords(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, board.ErrInvalidFormat
	}

	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, board.ErrInvalidFormat
	}

	return x, y, nil
}
