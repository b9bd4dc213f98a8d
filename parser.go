package multipartsio

import (
	"bytes"
	"strings"
)

// parserState mirrors original_source/sansio_multipart/parser.py's States
// enum. stateErrored corresponds to States.ERROR: once entered, the parser
// refuses further Feed calls, matching _queue_events's
// "Cannot use parser in ERROR state" guard.
type parserState int

const (
	stateBuildingHeaders parserState = iota
	stateBuildingHeadersNeedData
	stateBuildingBody
	stateBuildingBodyNeedData
	stateFinished
	stateErrored
)

// Option configures a Parser at construction time.
type Option func(*Parser)

// WithCharset overrides the default charset ("latin1") assigned to a Part
// whose Content-Type carries no charset option. Header lines themselves are
// not decoded with it: their bytes are taken as-is into Go strings.
func WithCharset(charset string) Option {
	return func(p *Parser) {
		if charset != "" {
			p.charset = charset
		}
	}
}

// WithContentLength records an advisory overall content length. The core
// parser never reads it back: Content-Length policing happens per part, from
// each part's own Content-Length header (see (*Part).closeHeaders), exactly
// as in original_source/sansio_multipart/parser.py's
// MultipartParser.__init__, whose content_length parameter is likewise
// accepted and never consulted. Kept for API symmetry with that constructor
// and as a documented hook for callers layering their own overall-size cap
// on top.
func WithContentLength(n int64) Option {
	return func(p *Parser) {
		p.declaredContentLength = n
	}
}

// Parser is a sans-I/O, incremental multipart/form-data parser. It consumes
// byte chunks via Feed and produces Event values on an internal queue;
// draining that queue is the caller's job (NextEvent, Events, or Parse's
// combined form). The parser performs no I/O and never blocks.
type Parser struct {
	boundary     []byte
	separator    []byte
	terminator   []byte
	separatorLen int

	charset               string
	declaredContentLength int64

	state  parserState
	events []Event

	// buf holds bytes carried over between Feed calls: either an unterminated
	// trailing fragment, or a full line sequence re-queued for the next state
	// (e.g. a separator line discovered while still BUILDING_BODY, which must
	// be reparsed as the start of the next part's headers).
	buf []byte

	// lastPartialLine holds a body line fragment that ended without a line
	// terminator — the chunk simply ran out mid-line — carried over so the
	// next Feed call can complete it. hasLastPartialLine distinguishes "no
	// fragment pending" from "a zero-length fragment is pending".
	lastPartialLine    []byte
	hasLastPartialLine bool

	// pendingNewline holds the terminator of the most recently confirmed
	// body line once that line has been flushed into a PartData, before it's
	// known whether a following line is more body data (terminator gets
	// prepended to it) or the start of a delimiter (terminator is part of
	// the delimiter, not the body, and gets dropped). It must survive across
	// Feed calls exactly like lastPartialLine — a line can be confirmed body
	// data in one call and the delimiter-or-not decision only resolved in
	// the next.
	pendingNewline []byte

	currentPart *Part

	expectedPartSize    int64
	hasExpectedPartSize bool
	currentPartSize     int64
}

// New returns a Parser ready to parse a multipart/form-data body delimited
// by boundary (the bare boundary token, without the leading "--").
func New(boundary []byte, opts ...Option) *Parser {
	b := make([]byte, len(boundary))
	copy(b, boundary)

	p := &Parser{
		boundary: b,
		charset:  defaultCharset,
		state:    stateBuildingHeaders,
	}
	p.separator = append([]byte("--"), b...)
	p.terminator = append(append([]byte{}, p.separator...), []byte("--")...)
	p.separatorLen = len(p.separator)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed pushes chunk through the parser, queuing every event the new bytes
// make available. It never blocks and never retains chunk itself past the
// call: any bytes it needs to keep are copied into the parser's own buffers.
func (p *Parser) Feed(chunk []byte) error {
	if p.state == stateErrored {
		return ErrInvalidState
	}
	if p.state == stateFinished {
		// Matches the documented "bytes fed after finished" rule: a no-op,
		// no event queued. See DESIGN.md's Open Questions.
		return nil
	}

	work := chunk
	if len(p.buf) > 0 {
		work = make([]byte, 0, len(p.buf)+len(chunk))
		work = append(work, p.buf...)
		work = append(work, chunk...)
		p.buf = nil
	}
	// A '\r' ending the bytes available so far may be the first half of a
	// "\r\n" split across Feed calls, so it is held back and carried over
	// instead of being read as a CR-only terminator.
	if n := len(work); n > 0 && work[n-1] == '\r' {
		work = work[:n-1]
		defer func() {
			if p.state != stateErrored {
				p.buf = append(p.buf, '\r')
			}
		}()
	}
	lines := splitLines(work)

	for {
		if len(p.buf) > 0 {
			lines = append(splitLines(p.buf), lines...)
			p.buf = nil
		}

		var err error
		switch p.state {
		case stateBuildingHeaders:
			var part *Part
			part, lines, err = p.parsePart(lines)
			if err != nil {
				p.state = stateErrored
				return err
			}
			if part != nil {
				p.events = append(p.events, PartEvent{Part: part})
			}

		case stateBuildingBody:
			var data *PartData
			data, lines, err = p.buildPartData(lines)
			if err != nil {
				p.state = stateErrored
				return err
			}
			if data != nil {
				p.events = append(p.events, PartDataEvent{Data: *data})
			}
		}

		switch p.state {
		case stateBuildingHeadersNeedData:
			p.events = append(p.events, NeedDataEvent{})
			p.state = stateBuildingHeaders
			return nil
		case stateBuildingBodyNeedData:
			p.events = append(p.events, NeedDataEvent{})
			p.state = stateBuildingBody
			return nil
		case stateFinished:
			p.events = append(p.events, FinishedEvent{})
			return nil
		}

		// A part can close its header block with no body lines left in the
		// chunk, or a part's body can be fully consumed leaving nothing
		// behind — either way there is no more progress to make without
		// more bytes, even though the state itself is still the "normal"
		// BUILDING_HEADERS/BUILDING_BODY variant rather than its
		// *_NEED_DATA counterpart.
		if len(lines) == 0 && len(p.buf) == 0 {
			p.events = append(p.events, NeedDataEvent{})
			return nil
		}
	}
}

// NextEvent pops and returns the oldest queued event. If the queue is empty,
// it returns FinishedEvent once the terminator has been consumed, and
// NeedDataEvent in every other state (including the error state).
func (p *Parser) NextEvent() Event {
	if len(p.events) > 0 {
		ev := p.events[0]
		p.events = p.events[1:]
		return ev
	}
	if p.state != stateFinished {
		return NeedDataEvent{}
	}
	return FinishedEvent{}
}

// Events drains and returns every currently queued event, in order.
func (p *Parser) Events() []Event {
	out := p.events
	p.events = nil
	return out
}

// Parse feeds chunk and returns every event it produced, combining Feed and
// Events into a single call.
func (p *Parser) Parse(chunk []byte) ([]Event, error) {
	if err := p.Feed(chunk); err != nil {
		return nil, err
	}
	return p.Events(), nil
}

// Close reports whether the parser reached FinishedEvent. Per
// original_source/sansio_multipart/parser.py's __exit__, ending a parse
// before the terminator line is an error, not a silent truncation.
func (p *Parser) Close() error {
	if p.state != stateFinished {
		return ErrUnexpectedExit
	}
	return nil
}

// bufferLines re-serializes lines (content plus terminator) back into p.buf,
// to be reparsed on a later call. Grounded on
// original_source/sansio_multipart/parser.py's _buffer_chunk.
func (p *Parser) bufferLines(lines []sline) {
	for _, l := range lines {
		p.buf = append(p.buf, l.data...)
		p.buf = append(p.buf, l.term...)
	}
}

// parsePart attempts to construct a Part from the header lines available in
// lines. It returns the Part once the header block closes, along with the
// lines left unconsumed (to be handed to buildPartData); or a nil Part with
// the parser left in BUILDING_HEADERS_NEED_DATA. In that case any unfinished
// line (and, before the separator is seen, the lines from it on) is
// re-buffered for next time, while header lines already read stay on
// p.currentPart.
//
// Grounded on original_source/sansio_multipart/parser.py's _parse_part.
func (p *Parser) parsePart(lines []sline) (*Part, []sline, error) {
	idx := 0

	// p.currentPart is nil exactly when the separator line introducing this
	// part has not yet been consumed. Once it is set, every later call into
	// parsePart (resuming a header block split across Feed calls) skips
	// straight to header-line processing: re-running the separator-match
	// check or the leading-blank-line skip against a buffered header
	// continuation line would misclassify it.
	if p.currentPart == nil {
		// Consume the first non-blank line; ignore leading blank lines
		// exactly as the Python generator expression's `if l` filter does.
		for idx < len(lines) && lines[idx].dataEmpty() {
			idx++
		}
		if idx >= len(lines) {
			p.bufferLines(lines)
			p.state = stateBuildingHeadersNeedData
			return nil, nil, nil
		}

		first := lines[idx]
		if first.termEmpty() {
			// Not even one full line of headers yet.
			p.bufferLines(lines[idx:])
			p.state = stateBuildingHeadersNeedData
			return nil, nil, nil
		}

		if !bytes.Equal(first.data, p.separator) && len(first.data) >= p.separatorLen {
			return nil, nil, malformed("part does not start with boundary")
		}

		// The separator line is consumed here and never replayed: once
		// p.currentPart is set it stands for "the separator introducing
		// this part has already been seen", so nothing needs buffering it.
		p.currentPart = newPart(p.charset)
		idx++
	}
	part := p.currentPart

	for i := idx; i < len(lines); i++ {
		line := lines[i]
		if err := p.constructPart(part, line); err != nil {
			return nil, nil, err
		}

		if p.state == stateBuildingHeadersNeedData {
			p.bufferLines(lines[i:])
			return nil, nil, nil
		}
		if p.state == stateBuildingBody {
			return part, lines[i+1:], nil
		}
	}

	// Ran out of lines without closing the header block.
	p.state = stateBuildingHeadersNeedData
	return nil, nil, nil
}

// constructPart folds one header line into part, or — on the blank line
// ending the header block — finalizes it and transitions the parser to
// BUILDING_BODY. Grounded on
// original_source/sansio_multipart/parser.py's _construct_part.
func (p *Parser) constructPart(part *Part, line sline) error {
	if line.termEmpty() {
		p.state = stateBuildingHeadersNeedData
		return nil
	}

	text := string(line.data)
	if strings.TrimSpace(text) == "" {
		if err := part.closeHeaders(); err != nil {
			return err
		}
		p.hasExpectedPartSize = part.HasExpectedSize
		p.expectedPartSize = part.ExpectedSize
		p.currentPartSize = 0
		p.currentPart = nil
		p.state = stateBuildingBody
		return nil
	}

	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return malformed("syntax error in header: no colon")
	}
	name := strings.TrimSpace(text[:colon])
	value := strings.TrimSpace(text[colon+1:])
	part.Header.Add(name, value)
	return nil
}

// buildPartData scans lines for body data, separator/terminator lines, and
// an unterminated trailing fragment, producing at most one PartData per
// call. Grounded on
// original_source/sansio_multipart/parser.py's _build_part_data.
func (p *Parser) buildPartData(lines []sline) (*PartData, []sline, error) {
	if len(lines) == 0 {
		return nil, nil, nil
	}

	var buf []byte
	previousNewline := p.pendingNewline
	p.pendingNewline = nil
	var remaining []sline

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		content := line.data

		if p.hasLastPartialLine {
			merged := make([]byte, 0, len(p.lastPartialLine)+len(content))
			merged = append(merged, p.lastPartialLine...)
			merged = append(merged, content...)
			content = merged
			p.lastPartialLine = nil
			p.hasLastPartialLine = false
		}

		if bytes.Equal(content, p.terminator) {
			p.state = stateFinished
			p.currentPartSize = 0
			p.hasExpectedPartSize = false
			remaining = lines[i+1:]
			// The CRLF immediately before a delimiter belongs to the
			// delimiter, not to the body (RFC 2046), so it is never flushed.
			previousNewline = nil
			break
		}

		if line.termEmpty() {
			// The chunk ended mid-line: this fragment (merged with any
			// prior fragment above) might still grow into a separator or
			// terminator, or might simply be the tail of the body with its
			// newline not yet arrived. Either way it cannot be judged yet.
			// previousNewline (the terminator of the last confirmed line, if
			// any) is still undecided too, so it is carried over rather than
			// flushed or dropped.
			p.lastPartialLine = append([]byte(nil), content...)
			p.hasLastPartialLine = true
			p.state = stateBuildingBodyNeedData
			remaining = nil
			break
		}

		if bytes.Equal(content, p.separator) {
			// content may include a fragment carried over from the previous
			// call, so it is buffered rather than lines[i].data.
			p.buf = append(p.buf, content...)
			p.buf = append(p.buf, line.term...)
			p.bufferLines(lines[i+1:])
			p.state = stateBuildingHeaders
			p.currentPartSize = 0
			p.hasExpectedPartSize = false
			remaining = nil
			previousNewline = nil
			break
		}

		if err := p.regulateContentLength(len(content)); err != nil {
			return nil, nil, err
		}
		buf = append(buf, previousNewline...)
		buf = append(buf, content...)
		previousNewline = line.term
	}

	if p.state != stateBuildingHeaders && p.state != stateFinished {
		// The body is still open, even if this call produced no PartData at
		// all (e.g. the only line available was a complete, empty body
		// line). Whatever newline was most recently confirmed must survive
		// to the next call: the next line received might be plain body data
		// (the newline gets prepended to it) or the start of a delimiter
		// (the newline belongs to the delimiter and gets dropped) — that
		// can only be decided once more bytes arrive.
		p.state = stateBuildingBodyNeedData
		p.pendingNewline = append([]byte(nil), previousNewline...)
	}

	if len(buf) > 0 {
		return &PartData{Raw: buf, Size: len(buf)}, remaining, nil
	}
	return nil, remaining, nil
}

// regulateContentLength tracks currentPartSize against the current part's
// declared Content-Length, if any. Grounded on
// original_source/sansio_multipart/parser.py's _regulate_content_length.
func (p *Parser) regulateContentLength(lineSize int) error {
	if !p.hasExpectedPartSize {
		return nil
	}
	p.currentPartSize += int64(lineSize)
	if p.currentPartSize > p.expectedPartSize {
		return malformed("size of part body exceeds part Content-Length")
	}
	return nil
}
