package client_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dyluth/corkboard/internal/feed"
	"github.com/dyluth/corkboard/internal/testutil"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := board.Config{Width: 30, Height: 20, NoteWidth: 4, NoteHeight: 3, Colours: []string{"yellow", "pink"}}
	return testutil.SetupE2EEnvironment(t, cfg, false).Addr
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDialReadsHandshake(t *testing.T) {
	c := dial(t, startServer(t))

	assert.Equal(t, client.Handshake{
		BoardWidth:  30,
		BoardHeight: 20,
		NoteWidth:   4,
		NoteHeight:  3,
		Colours:     []string{"yellow", "pink"},
	}, c.Handshake())
}

func TestDialFailsWithoutServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = client.Dial(testContext(t), addr)
	assert.Error(t, err)
}

func TestTypedCommands(t *testing.T) {
	ctx := testContext(t)
	c := dial(t, startServer(t))

	require.NoError(t, c.Post(ctx, 0, 0, "yellow", "call the plumber"))
	require.NoError(t, c.Post(ctx, 10, 10, "pink", "water plants"))
	require.NoError(t, c.Pin(ctx, 1, 1))

	pins, err := c.Pins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []board.Point{{X: 1, Y: 1}}, pins)

	notes, err := c.Notes(ctx, board.NoteFilter{})
	require.NoError(t, err)
	assert.Equal(t, []board.NoteView{
		{X: 0, Y: 0, Colour: "yellow", Message: "call the plumber", Pinned: true},
		{X: 10, Y: 10, Colour: "pink", Message: "water plants", Pinned: false},
	}, notes)

	require.NoError(t, c.Shake(ctx))
	notes, err = c.Notes(ctx, board.NoteFilter{RefersTo: "PLUMBER"})
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	require.NoError(t, c.Unpin(ctx, 1, 1))
	require.NoError(t, c.Clear(ctx))

	pins, err = c.Pins(ctx)
	require.NoError(t, err)
	assert.Empty(t, pins)

	require.NoError(t, c.Disconnect(ctx))
}

func TestReplyErrors(t *testing.T) {
	ctx := testContext(t)
	c := dial(t, startServer(t))

	tests := []struct {
		name string
		call func() error
		want board.Code
	}{
		{"out of bounds", func() error { return c.Post(ctx, 28, 0, "yellow", "too wide") }, board.ErrOutOfBounds},
		{"bad colour", func() error { return c.Post(ctx, 0, 0, "blue", "nope") }, board.ErrColourNotSupported},
		{"no note to pin", func() error { return c.Pin(ctx, 5, 5) }, board.ErrNoteNotFound},
		{"no pin to remove", func() error { return c.Unpin(ctx, 5, 5) }, board.ErrPinNotFound},
		{"bad filter colour", func() error {
			_, err := c.Notes(ctx, board.NoteFilter{Colour: "blue"})
			return err
		}, board.ErrColourNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var replyErr *client.ReplyError
			require.ErrorAs(t, err, &replyErr)
			assert.Equal(t, tt.want, replyErr.Code)
		})
	}
}

func TestSendRaw(t *testing.T) {
	ctx := testContext(t)
	c := dial(t, startServer(t))

	lines, err := c.Send(ctx, "POST 1 1 pink  spaced   words ")
	require.NoError(t, err)
	assert.Equal(t, []string{"OK NOTE_POSTED"}, lines)

	lines, err = c.Send(ctx, "GET contains=2 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"OK 1", "NOTE 1 1 pink spaced words PINNED=false"}, lines)

	lines, err = c.Send(ctx, "GET bogus")
	assert.Equal(t, []string{"ERROR INVALID_FORMAT"}, lines)
	assert.ErrorIs(t, err, board.ErrInvalidFormat)
}

func TestSendRejectsMultiLineCommands(t *testing.T) {
	ctx := testContext(t)
	c := dial(t, startServer(t))

	for _, line := range []string{"POST 1 1 pink a\nPOST 5 5 pink b", "SHAKE\r", "GET\n"} {
		_, err := c.Send(ctx, line)
		require.Error(t, err, "line %q", line)
		assert.Contains(t, err.Error(), "single line")
	}

	// nothing reached the server and the connection is still in sync
	notes, err := c.Notes(ctx, board.NoteFilter{})
	require.NoError(t, err)
	assert.Empty(t, notes)

	lines, err := c.Send(ctx, "SHAKE")
	require.NoError(t, err)
	assert.Equal(t, []string{"OK SHAKE_COMPLETE"}, lines)
}

func TestSendHonoursCancelledContext(t *testing.T) {
	c := dial(t, startServer(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, "GET")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetCommand(t *testing.T) {
	tests := []struct {
		filter board.NoteFilter
		want   string
	}{
		{board.NoteFilter{}, "GET"},
		{board.NoteFilter{Colour: "red"}, "GET colour=red"},
		{board.NoteFilter{Contains: &board.Point{X: 3, Y: 4}}, "GET contains=3 4"},
		{board.NoteFilter{RefersTo: "two words", Colour: "red", Contains: &board.Point{X: 1, Y: 2}}, "GET colour=red contains=1 2 refersTo=two words"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, client.GetCommand(tt.filter))
	}
}

func TestParseNote(t *testing.T) {
	n, err := client.ParseNote("NOTE 4 5 red meet at the cafe PINNED=true")
	require.NoError(t, err)
	assert.Equal(t, board.NoteView{X: 4, Y: 5, Colour: "red", Message: "meet at the cafe", Pinned: true}, n)

	for _, bad := range []string{
		"",
		"PIN 1 2",
		"NOTE 1 2 red PINNED=true",
		"NOTE x 2 red hi PINNED=true",
		"NOTE 1 2 red hi",
		"NOTE 1 2 red hi PINNED=maybe",
	} {
		_, err := client.ParseNote(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestParsePin(t *testing.T) {
	p, err := client.ParsePin("PIN 7 8")
	require.NoError(t, err)
	assert.Equal(t, board.Point{X: 7, Y: 8}, p)

	for _, bad := range []string{"", "PIN 7", "PIN 7 8 9", "PIN a 8", "NOTE 7 8"} {
		_, err := client.ParsePin(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestReplyErrorMessage(t *testing.T) {
	err := &client.ReplyError{Code: board.ErrPinNotFound}
	assert.Equal(t, "server replied ERROR PIN_NOT_FOUND", err.Error())
}

func TestMutationsReachEventFeed(t *testing.T) {
	env := testutil.SetupE2EEnvironment(t, testutil.DefaultBoardConfig(), true)
	sub := env.Subscribe()
	c := env.Dial()
	ctx := testContext(t)

	require.NoError(t, c.Post(ctx, 2, 3, "blue", "feed me"))
	posted := env.WaitForEvent(sub, feed.EventNotePosted)
	assert.Equal(t, "blue", posted.Colour)
	assert.Equal(t, "feed me", posted.Message)
	require.NotNil(t, posted.X)
	assert.Equal(t, 2, *posted.X)

	require.NoError(t, c.Pin(ctx, 3, 4))
	env.WaitForEvent(sub, feed.EventNotePinned)

	// failed commands publish nothing
	assert.Error(t, c.Post(ctx, 2, 3, "blue", "again"))
	require.NoError(t, c.Shake(ctx))
	env.WaitForEvent(sub, feed.EventBoardShaken)

	require.NoError(t, c.Clear(ctx))
	env.WaitForEvent(sub, feed.EventBoardCleared)
	assert.Equal(t, 0, env.Board.Stats().Notes)
}
