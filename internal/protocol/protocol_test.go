package protocol

import (
	"testing"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "POST 1 2 red hello world", Normalize("  POST\t1  2 red   hello \t world  "))
	assert.Equal(t, "", Normalize(" \t "))
	assert.Equal(t, "SHAKE", Normalize("SHAKE\r"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"post", "POST 1 2 red hello", Command{Kind: KindPost, X: 1, Y: 2, Colour: "red", Message: "hello"}},
		{"post message keeps spaces", "POST 1 2 red hello big   world", Command{Kind: KindPost, X: 1, Y: 2, Colour: "red", Message: "hello big world"}},
		{"post negative coordinates parse", "POST -1 2 red x", Command{Kind: KindPost, X: -1, Y: 2, Colour: "red", Message: "x"}},
		{"pin", "PIN 3 4", Command{Kind: KindPin, X: 3, Y: 4}},
		{"unpin", "UNPIN 3 4", Command{Kind: KindUnpin, X: 3, Y: 4}},
		{"shake", "SHAKE", Command{Kind: KindShake}},
		{"clear", "CLEAR", Command{Kind: KindClear}},
		{"disconnect", "DISCONNECT", Command{Kind: KindDisconnect}},
		{"get pins", "GET PINS", Command{Kind: KindGetPins}},
		{"bare get", "GET", Command{Kind: KindGetNotes}},
		{"get colour", "GET colour=red", Command{Kind: KindGetNotes, Filter: board.NoteFilter{Colour: "red"}}},
		{"get contains inline", "GET contains=1 1", Command{Kind: KindGetNotes, Filter: board.NoteFilter{Contains: &board.Point{X: 1, Y: 1}}}},
		{"get contains detached", "GET contains= 3 4", Command{Kind: KindGetNotes, Filter: board.NoteFilter{Contains: &board.Point{X: 3, Y: 4}}}},
		{"get refersTo", "GET refersTo=shopping list", Command{Kind: KindGetNotes, Filter: board.NoteFilter{RefersTo: "shopping list"}}},
		{
			"get all filters",
			"GET colour=red contains=1 1 refersTo=hi",
			Command{Kind: KindGetNotes, Filter: board.NoteFilter{Colour: "red", Contains: &board.Point{X: 1, Y: 1}, RefersTo: "hi"}},
		},
		{
			"refersTo swallows later filters",
			"GET refersTo=a colour=blue",
			Command{Kind: KindGetNotes, Filter: board.NoteFilter{RefersTo: "a colour=blue"}},
		},
		{
			"refersTo with empty prefix value takes next tokens",
			"GET refersTo= milk",
			Command{Kind: KindGetNotes, Filter: board.NoteFilter{RefersTo: "milk"}},
		},
		{"repeated filter replaces", "GET colour=red colour=blue", Command{Kind: KindGetNotes, Filter: board.NoteFilter{Colour: "blue"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	lines := []string{
		"",
		"post 1 2 red hi",
		"POST 1 2 red",
		"POST a 2 red hi",
		"POST 1 2.5 red hi",
		"PIN 1",
		"PIN 1 2 3",
		"PIN x y",
		"UNPIN",
		"SHAKE now",
		"CLEAR all",
		"DISCONNECT please",
		"GET PINS extra",
		"GET pins",
		"GET colour=",
		"GET contains=1",
		"GET contains=",
		"GET contains= 1",
		"GET contains=a 1",
		"GET contains=1 b",
		"GET refersTo=",
		"GET something",
		"GET colour=red bogus",
		"HELLO",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			assert.ErrorIs(t, err, board.ErrInvalidFormat)
		})
	}
}

func TestReplies(t *testing.T) {
	b, err := board.New(board.Config{Width: 10, Height: 8, NoteWidth: 2, NoteHeight: 3, Colours: []string{"red", "blue"}})
	require.NoError(t, err)

	t.Run("handshake", func(t *testing.T) {
		assert.Equal(t, []string{"BOARD 10 8", "NOTE_SIZE 2 3", "COLORS red blue"}, Handshake(b))
	})

	t.Run("ok and error", func(t *testing.T) {
		assert.Equal(t, "OK NOTE_POSTED", OK(NotePosted))
		assert.Equal(t, "ERROR COMPLETE_OVERLAP", Error(board.ErrCompleteOverlap))
		assert.Equal(t, "ERROR INVALID_FORMAT", Error(assert.AnError))
	})

	t.Run("pin lines", func(t *testing.T) {
		assert.Equal(t, []string{"OK 0"}, PinLines(nil))
		assert.Equal(t, []string{"OK 2", "PIN 1 1", "PIN 3 4"}, PinLines([]board.Point{{X: 1, Y: 1}, {X: 3, Y: 4}}))
	})

	t.Run("note lines", func(t *testing.T) {
		lines := NoteLines([]board.NoteView{
			{X: 0, Y: 0, Colour: "red", Message: "hello world", Pinned: true},
			{X: 2, Y: 1, Colour: "blue", Message: "x", Pinned: false},
		})
		assert.Equal(t, []string{
			"OK 2",
			"NOTE 0 0 red hello world PINNED=true",
			"NOTE 2 1 blue x PINNED=false",
		}, lines)
	})
}
