package multipartsio

// Event is the sum type drained from a Parser's event queue: exactly one of
// PartEvent, PartDataEvent, NeedDataEvent, or FinishedEvent. event() is
// unexported so no type outside this package can implement Event, letting
// callers type-switch exhaustively.
type Event interface {
	event()
}

// PartEvent is emitted exactly once a part's header block has closed. Every
// PartDataEvent belonging to Part follows, in order, before the next
// PartEvent or FinishedEvent.
type PartEvent struct {
	Part *Part
}

func (PartEvent) event() {}

// PartDataEvent carries one fragment of the current part's body. A part may
// produce zero, one, or many PartDataEvents; their Raw bytes concatenated, in
// order, equal the part's full body.
type PartDataEvent struct {
	Data PartData
}

func (PartDataEvent) event() {}

// NeedDataEvent signals that the parser made all the progress it could with
// the bytes given so far; the caller must Feed more before further events are
// available.
type NeedDataEvent struct{}

func (NeedDataEvent) event() {}

// FinishedEvent signals the terminator line was consumed. It is terminal:
// once emitted, no further events follow (see SPEC_FULL.md §9 for the
// defined behavior of bytes fed afterward).
type FinishedEvent struct{}

func (FinishedEvent) event() {}
