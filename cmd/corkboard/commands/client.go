package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/render"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/client"
	"github.com/spf13/cobra"
)

const defaultAddr = "localhost:7000"

var (
	clientAddr    string
	clientTimeout time.Duration

	notesColour   string
	notesContains string
	notesRefersTo string
	notesOutput   string
	pinsOutput    string
)

var sendCmd = &cobra.Command{
	Use:   "send COMMAND...",
	Short: "Send one command to a board server and print the reply",
	Long: `Send one protocol command and print every reply line.

The arguments are joined with single spaces. Exits non-zero when the
server replies with ERROR.

Examples:
  corkboard send POST 10 10 red buy milk
  corkboard send GET colour=red contains=12 12`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with a board server",
	Long: `Open a session and send each line read from stdin as a command.

The session ends on DISCONNECT or end of input.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List notes on a board server",
	Long: `List notes matching optional filters. Filters combine with AND.

Output Formats:
  table - Human-readable table
  jsonl - Line-delimited JSON, one note per line

Examples:
  corkboard notes --colour red
  corkboard notes --contains 5,5 --refers-to milk -o jsonl`,
	Args: cobra.NoArgs,
	RunE: runNotes,
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "List pins on a board server",
	Args:  cobra.NoArgs,
	RunE:  runPins,
}

func init() {
	for _, cmd := range []*cobra.Command{sendCmd, shellCmd, notesCmd, pinsCmd} {
		cmd.Flags().StringVarP(&clientAddr, "addr", "a", defaultAddr, "Board server address")
		cmd.Flags().DurationVar(&clientTimeout, "timeout", 5*time.Second, "Connect and per-command timeout")
		rootCmd.AddCommand(cmd)
	}

	notesCmd.Flags().StringVar(&notesColour, "colour", "", "Only notes of this colour")
	notesCmd.Flags().StringVar(&notesContains, "contains", "", "Only notes covering the point X,Y")
	notesCmd.Flags().StringVar(&notesRefersTo, "refers-to", "", "Only notes whose message contains this text (case-insensitive)")
	notesCmd.Flags().StringVarP(&notesOutput, "output", "o", render.FormatTable, "Output format (table or jsonl)")
	pinsCmd.Flags().StringVarP(&pinsOutput, "output", "o", render.FormatTable, "Output format (table or jsonl)")
}

func dialBoard(ctx context.Context, addr string) (*client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	c, err := client.Dial(dialCtx, addr)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"could not reach board server",
			err.Error(),
			[][2]string{{"Address", addr}},
			[]string{fmt.Sprintf("Start a server first:\n  corkboard serve --listen %s ...", addr)},
		)
	}
	return c, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := dialBoard(ctx, clientAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	return sendLine(ctx, c, strings.Join(args, " "))
}

// sendLine sends one command and prints its reply. An ERROR reply is printed
// and returned so the process exits non-zero.
func sendLine(ctx context.Context, c *client.Client, line string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	lines, err := c.Send(cmdCtx, line)
	for _, l := range lines {
		printer.Reply(l)
	}

	var replyErr *client.ReplyError
	if err != nil && !errors.As(err, &replyErr) {
		return printer.Error("command failed", err.Error(), nil)
	}
	return err
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := dialBoard(ctx, clientAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	hs := c.Handshake()
	printer.Step("Connected to %s: board %dx%d, notes %dx%d, colours %s\n",
		clientAddr, hs.BoardWidth, hs.BoardHeight, hs.NoteWidth, hs.NoteHeight, strings.Join(hs.Colours, " "))

	return shellLoop(ctx, c, os.Stdin)
}

// shellLoop sends every non-blank input line until DISCONNECT or end of input.
// ERROR replies are shown but do not end the loop.
func shellLoop(ctx context.Context, c *client.Client, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := sendLine(ctx, c, line)
		var replyErr *client.ReplyError
		if err != nil && !errors.As(err, &replyErr) {
			return err
		}

		if strings.EqualFold(strings.Fields(line)[0], "DISCONNECT") && err == nil {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func runNotes(cmd *cobra.Command, args []string) error {
	if err := render.ValidateFormat(notesOutput); err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: table, jsonl"})
	}

	filter := board.NoteFilter{Colour: notesColour, RefersTo: notesRefersTo}
	if notesContains != "" {
		p, err := parsePoint(notesContains)
		if err != nil {
			return printer.Error("invalid --contains value", err.Error(), []string{"Use X,Y, for example --contains 4,7"})
		}
		filter.Contains = &p
	}

	ctx := context.Background()
	c, err := dialBoard(ctx, clientAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	return listNotes(ctx, c, filter, notesOutput, os.Stdout)
}

func listNotes(ctx context.Context, c *client.Client, filter board.NoteFilter, format string, w io.Writer) error {
	cmdCtx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	notes, err := c.Notes(cmdCtx, filter)
	if err != nil {
		return printer.Error("failed to list notes", err.Error(), nil)
	}

	if format == render.FormatJSONL {
		return render.NotesJSONL(w, notes)
	}
	_, err = render.NotesTable(w, notes)
	return err
}

func runPins(cmd *cobra.Command, args []string) error {
	if err := render.ValidateFormat(pinsOutput); err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: table, jsonl"})
	}

	ctx := context.Background()
	c, err := dialBoard(ctx, clientAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	return listPins(ctx, c, pinsOutput, os.Stdout)
}

func listPins(ctx context.Context, c *client.Client, format string, w io.Writer) error {
	cmdCtx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	pins, err := c.Pins(cmdCtx)
	if err != nil {
		return printer.Error("failed to list pins", err.Error(), nil)
	}

	if format == render.FormatJSONL {
		return render.PinsJSONL(w, pins)
	}
	_, err = render.PinsTable(w, pins)
	return err
}

// parsePoint parses "X,Y" (spaces around either number are allowed).
func parsePoint(s string) (board.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return board.Point{}, fmt.Errorf("expected X,Y but got %q", s)
	}

	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return board.Point{}, fmt.Errorf("invalid X coordinate %q", xs)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return board.Point{}, fmt.Errorf("invalid Y coordinate %q", ys)
	}
	return board.Point{X: x, Y: y}, nil
}
