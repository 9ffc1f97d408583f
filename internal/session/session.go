// Package session runs the per-connection command loop of a corkboard server.
//
// A Session owns no board state. It reads one line at a time, turns it into
// exactly one Board call, and writes the formatted reply before reading the
// next line. All socket I/O happens outside the board lock.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/dyluth/corkboard/internal/feed"
	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/internal/metrics"
	"github.com/dyluth/corkboard/internal/protocol"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// commandUnknown labels lines that could not be parsed into a command
const commandUnknown = "UNKNOWN"

// EventSink receives an event for every successful board mutation.
// Emit must not block for long; it runs on the session goroutine.
type EventSink interface {
	Emit(e *feed.Event)
}

// Recorder receives per-command outcomes.
type Recorder interface {
	CommandObserved(command, result string)
}

// Session serves one client connection.
type Session struct {
	id       string
	board    *board.Board
	reader   *bufio.Reader
	writer   *bufio.Writer
	events   EventSink
	recorder Recorder
	log      *logrus.Entry
}

// Option configures optional Session collaborators.
type Option func(*Session)

// WithEvents publishes successful mutations to sink.
func WithEvents(sink EventSink) Option {
	return func(s *Session) { s.events = sink }
}

// WithRecorder reports command outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// New creates a session reading commands from and writing replies to conn.
func New(b *board.Board, conn io.ReadWriter, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New().String(),
		board:  b,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}

	fields := logrus.Fields{"session": s.id}
	if nc, ok := conn.(net.Conn); ok && nc.RemoteAddr() != nil {
		fields["remote"] = nc.RemoteAddr().String()
	}
	s.log = logging.Component("session").WithFields(fields)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's UUID.
func (s *Session) ID() string {
	return s.id
}

// Run sends the handshake and processes commands until the client disconnects,
// the stream ends, or ctx is cancelled. A clean end (EOF, DISCONNECT, or
// cancellation) returns nil; transport failures are returned wrapped.
func (s *Session) Run(ctx context.Context) error {
	s.log.Debug("Session started")
	defer s.log.Debug("Session ended")

	if err := s.writeLines(protocol.Handshake(s.board)); err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		raw, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		replies, done := s.Handle(raw)
		if err := s.writeLines(replies); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
		if done {
			return nil
		}
	}
}

// Handle processes one raw input line and returns the reply lines, plus true
// when the client asked to disconnect.
func (s *Session) Handle(raw string) ([]string, bool) {
	line := protocol.Normalize(raw)

	cmd, err := protocol.Parse(line)
	if err != nil {
		s.observe(commandUnknown, err)
		return []string{protocol.Error(err)}, false
	}

	if cmd.Kind == protocol.KindDisconnect {
		s.observe(string(cmd.Kind), nil)
		return []string{protocol.OK(protocol.Disconnected)}, true
	}

	replies, err := s.dispatch(cmd)
	s.observe(string(cmd.Kind), err)
	if err != nil {
		return []string{protocol.Error(err)}, false
	}
	return replies, false
}

// dispatch runs one command against the board. A panic is recovered and
// reported as INVALID_FORMAT so that one bad command cannot end the session.
func (s *Session) dispatch(cmd protocol.Command) (replies []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{"panic": r, "command": cmd.Kind}).Error("Recovered from panic while dispatching command")
			replies, err = nil, board.ErrInvalidFormat
		}
	}()

	switch cmd.Kind {
	case protocol.KindPost:
		if err := s.board.Post(cmd.X, cmd.Y, cmd.Colour, cmd.Message); err != nil {
			return nil, err
		}
		e := feed.NewEvent(feed.EventNotePosted, s.id).At(cmd.X, cmd.Y)
		e.Colour = cmd.Colour
		e.Message = cmd.Message
		s.emit(e)
		return []string{protocol.OK(protocol.NotePosted)}, nil

	case protocol.KindPin:
		if err := s.board.Pin(cmd.X, cmd.Y); err != nil {
			return nil, err
		}
		s.emit(feed.NewEvent(feed.EventNotePinned, s.id).At(cmd.X, cmd.Y))
		return []string{protocol.OK(protocol.PinAdded)}, nil

	case protocol.KindUnpin:
		if err := s.board.Unpin(cmd.X, cmd.Y); err != nil {
			return nil, err
		}
		s.emit(feed.NewEvent(feed.EventPinRemoved, s.id).At(cmd.X, cmd.Y))
		return []string{protocol.OK(protocol.PinRemoved)}, nil

	case protocol.KindShake:
		s.board.Shake()
		s.emit(feed.NewEvent(feed.EventBoardShaken, s.id))
		return []string{protocol.OK(protocol.ShakeComplete)}, nil

	case protocol.KindClear:
		s.board.Clear()
		s.emit(feed.NewEvent(feed.EventBoardCleared, s.id))
		return []string{protocol.OK(protocol.BoardCleared)}, nil

	case protocol.KindGetPins:
		return protocol.PinLines(s.board.ListPins()), nil

	case protocol.KindGetNotes:
		notes, err := s.board.ListNotes(cmd.Filter)
		if err != nil {
			return nil, err
		}
		return protocol.NoteLines(notes), nil

	default:
		return nil, board.ErrInvalidFormat
	}
}

func (s *Session) emit(e *feed.Event) {
	if s.events != nil {
		s.events.Emit(e)
	}
}

func (s *Session) observe(command string, err error) {
	if s.recorder == nil {
		return
	}

	result := metrics.ResultOK
	if err != nil {
		code, ok := board.CodeOf(err)
		if !ok {
			code = board.ErrInvalidFormat
		}
		result = string(code)
	}
	s.recorder.CommandObserved(command, result)
}

// readLine returns the next line without its terminator. A final line with no
// trailing newline is still returned; the following call reports io.EOF.
func (s *Session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Session) writeLines(lines []string) error {
	for _, line := range lines {
		if _, err := s.writer.WriteString(line); err != nil {
			return err
		}
		if err := s.writer.WriteByte('\n'); err != nil {
			return err
		}
	}
	return s.writer.Flush()
}
