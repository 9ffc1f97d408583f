// Package board provides the shared, concurrency-safe state of a corkboard server.
//
// # Overview
//
// A Board is a fixed-size coordinate space that many client sessions mutate and
// query at the same time. Clients post notes, pin them at points, and shake the
// board to discard every note that carries no pin.
//
// # Core Concepts
//
// Notes are immutable rectangles anchored at their top-left corner. Every note has
// the same footprint, fixed when the board is created, and an opaque UUID that
// pins use to refer to it. Two notes may overlap partially, but never share an
// anchor.
//
// Pins are immutable markers at an exact board point. A pin always refers to a
// note whose footprint covers that point. Removing a note removes its pins.
//
// # Concurrency
//
// All exported Board methods are safe for concurrent use. Queries (ListNotes,
// ListPins, Stats) share a read lock; mutations (Post, Pin, Unpin, Shake, Clear)
// hold the write lock for the duration of one linear scan. Board methods never
// perform I/O.
//
// # Failures
//
// Rejected operations return a Code, which implements error:
//
//	err := b.Post(0, 0, "red", "hello")
//	if code, ok := board.CodeOf(err); ok {
//		fmt.Println("ERROR", code) // e.g. ERROR COMPLETE_OVERLAP
//	}
package board
