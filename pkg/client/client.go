// Package client is a Go client for the corkboard line protocol.
//
// A Client holds one TCP connection. Dial reads the three handshake lines, after
// which every call sends one command and reads its complete reply. Calls on one
// Client are serialised; open several Clients for parallel work.
//
//	c, err := client.Dial(ctx, "localhost:7000")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if err := c.Post(ctx, 0, 0, "red", "buy milk"); err != nil {
//		if errors.Is(err, board.ErrCompleteOverlap) {
//			// another note already sits at 0,0
//		}
//		return err
//	}
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/corkboard/pkg/board"
)

// Handshake is the board geometry announced by the server on connect.
type Handshake struct {
	BoardWidth  int
	BoardHeight int
	NoteWidth   int
	NoteHeight  int
	Colours     []string
}

// ReplyError is returned when the server answers with an ERROR line.
// It unwraps to the board.Code so errors.Is(err, board.ErrPinNotFound) works.
type ReplyError struct {
	Code board.Code
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("server replied ERROR %s", e.Code)
}

func (e *ReplyError) Unwrap() error {
	return e.Code
}

// Client is a connection to a corkboard server.
type Client struct {
	mu        sync.Mutex
	conn      net.Conn
	reader    *bufio.Reader
	handshake Handshake
}

// Dial connects to addr and reads the handshake.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c, err := NewClient(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection and reads the handshake from it.
func NewClient(ctx context.Context, conn net.Conn) (*Client, error) {
	c := &Client{conn: conn, reader: bufio.NewReader(conn)}

	stop := c.watch(ctx)
	defer stop()

	hs, err := c.readHandshake()
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake: %w", err)
	}
	c.handshake = hs
	return c, nil
}

// Handshake returns the board geometry received on connect.
func (c *Client) Handshake() Handshake {
	hs := c.handshake
	hs.Colours = append([]string(nil), c.handshake.Colours...)
	return hs
}

// Close closes the connection without sending DISCONNECT.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one raw command line and returns every reply line. For GET
// commands the count line and the lines it announces are all returned.
// An ERROR reply is returned as its line together with a *ReplyError.
func (c *Client) Send(ctx context.Context, line string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("command must be a single line: %q", line)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.watch(ctx)
	defer stop()

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return nil, c.wrap(ctx, "failed to send command", err)
	}

	first, err := c.readLine()
	if err != nil {
		return nil, c.wrap(ctx, "failed to read reply", err)
	}
	replies := []string{first}

	if code, ok := strings.CutPrefix(first, "ERROR "); ok {
		return replies, &ReplyError{Code: board.Code(code)}
	}

	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "GET" {
		return replies, nil
	}

	count, ok := strings.CutPrefix(first, "OK ")
	if !ok {
		return replies, fmt.Errorf("unexpected reply %q", first)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return replies, fmt.Errorf("unexpected count in reply %q", first)
	}

	for i := 0; i < n; i++ {
		next, err := c.readLine()
		if err != nil {
			return replies, c.wrap(ctx, "failed to read listing", err)
		}
		replies = append(replies, next)
	}
	return replies, nil
}

// Post places a note with its top-left corner at x,y.
func (c *Client) Post(ctx context.Context, x, y int, colour, message string) error {
	return c.expect(ctx, fmt.Sprintf("POST %d %d %s %s", x, y, colour, message), "NOTE_POSTED")
}

// Pin pins every note covering x,y.
func (c *Client) Pin(ctx context.Context, x, y int) error {
	return c.expect(ctx, fmt.Sprintf("PIN %d %d", x, y), "PIN_ADDED")
}

// Unpin removes the pin at x,y.
func (c *Client) Unpin(ctx context.Context, x, y int) error {
	return c.expect(ctx, fmt.Sprintf("UNPIN %d %d", x, y), "PIN_REMOVED")
}

// Shake removes every unpinned note.
func (c *Client) Shake(ctx context.Context) error {
	return c.expect(ctx, "SHAKE", "SHAKE_COMPLETE")
}

// Clear removes every note and pin.
func (c *Client) Clear(ctx context.Context) error {
	return c.expect(ctx, "CLEAR", "BOARD_CLEARED")
}

// Disconnect asks the server to end the session and closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.expect(ctx, "DISCONNECT", "DISCONNECTED")
	if cerr := c.Close(); err == nil && cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	return err
}

// Pins lists every pin on the board.
func (c *Client) Pins(ctx context.Context) ([]board.Point, error) {
	lines, err := c.Send(ctx, "GET PINS")
	if err != nil {
		return nil, err
	}

	pins := make([]board.Point, 0, len(lines)-1)
	for _, line := range lines[1:] {
		p, err := ParsePin(line)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// Notes lists the notes matching filter. A zero filter lists every note.
func (c *Client) Notes(ctx context.Context, filter board.NoteFilter) ([]board.NoteView, error) {
	lines, err := c.Send(ctx, GetCommand(filter))
	if err != nil {
		return nil, err
	}

	notes := make([]board.NoteView, 0, len(lines)-1)
	for _, line := range lines[1:] {
		n, err := ParseNote(line)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// GetCommand renders filter as a GET command line.
// refersTo is always last because it consumes the rest of the line.
func GetCommand(filter board.NoteFilter) string {
	if filter.IsZero() {
		return "GET"
	}

	parts := []string{"GET"}
	if filter.Colour != "" {
		parts = append(parts, "colour="+filter.Colour)
	}
	if filter.Contains != nil {
		parts = append(parts, fmt.Sprintf("contains=%d %d", filter.Contains.X, filter.Contains.Y))
	}
	if filter.RefersTo != "" {
		parts = append(parts, "refersTo="+filter.RefersTo)
	}
	return strings.Join(parts, " ")
}

// ParsePin parses a "PIN x y" listing line.
func ParsePin(line string) (board.Point, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "PIN" {
		return board.Point{}, fmt.Errorf("malformed pin line %q", line)
	}

	x, errX := strconv.Atoi(fields[1])
	y, errY := strconv.Atoi(fields[2])
	if errX != nil || errY != nil {
		return board.Point{}, fmt.Errorf("malformed pin coordinates in %q", line)
	}
	return board.Point{X: x, Y: y}, nil
}

// ParseNote parses a "NOTE x y colour message PINNED=bool" listing line.
// The message may contain spaces.
func ParseNote(line string) (board.NoteView, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 || fields[0] != "NOTE" {
		return board.NoteView{}, fmt.Errorf("malformed note line %q", line)
	}

	x, errX := strconv.Atoi(fields[1])
	y, errY := strconv.Atoi(fields[2])
	if errX != nil || errY != nil {
		return board.NoteView{}, fmt.Errorf("malformed note coordinates in %q", line)
	}

	flag, ok := strings.CutPrefix(fields[len(fields)-1], "PINNED=")
	if !ok {
		return board.NoteView{}, fmt.Errorf("missing PINNED flag in %q", line)
	}
	pinned, err := strconv.ParseBool(flag)
	if err != nil {
		return board.NoteView{}, fmt.Errorf("malformed PINNED flag in %q", line)
	}

	return board.NoteView{
		X:       x,
		Y:       y,
		Colour:  fields[3],
		Message: strings.Join(fields[4:len(fields)-1], " "),
		Pinned:  pinned,
	}, nil
}

func (c *Client) expect(ctx context.Context, line, word string) error {
	replies, err := c.Send(ctx, line)
	if err != nil {
		return err
	}
	if replies[0] != "OK "+word {
		return fmt.Errorf("unexpected reply %q to %q", replies[0], line)
	}
	return nil
}

func (c *Client) readHandshake() (Handshake, error) {
	var hs Handshake

	line, err := c.readLine()
	if err != nil {
		return hs, err
	}
	if _, err := fmt.Sscanf(line, "BOARD %d %d", &hs.BoardWidth, &hs.BoardHeight); err != nil {
		return hs, fmt.Errorf("unexpected board line %q", line)
	}

	if line, err = c.readLine(); err != nil {
		return hs, err
	}
	if _, err := fmt.Sscanf(line, "NOTE_SIZE %d %d", &hs.NoteWidth, &hs.NoteHeight); err != nil {
		return hs, fmt.Errorf("unexpected note size line %q", line)
	}

	if line, err = c.readLine(); err != nil {
		return hs, err
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "COLORS" {
		return hs, fmt.Errorf("unexpected colours line %q", line)
	}
	hs.Colours = fields[1:]
	return hs, nil
}

func (c *Client) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// watch applies ctx's deadline to the connection and interrupts blocked I/O
// when ctx is cancelled. The returned func must be called when the call ends.
func (c *Client) watch(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() { stop() }
}

func (c *Client) wrap(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", msg, ctxErr)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
