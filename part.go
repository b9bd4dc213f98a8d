package multipartsio

import (
	"strconv"
	"strings"

	"github.com/intuitivelabs/bytescase"
)

// defaultCharset is used for a Part whose Content-Type carries no charset
// option, matching original_source/sansio_multipart/parser.py's
// Part.__init__(self, charset="latin1") default.
const defaultCharset = "latin1"

// Part is the semantic unit assembled once a part's header block closes:
// everything SPEC_FULL.md §3 describes except the accumulated body, which
// the core never buffers itself (PartData events carry the body instead;
// accumulating it, if a caller wants that, is the form package's job).
type Part struct {
	// Header holds every (name, value) pair as parsed, in wire order.
	Header Header

	// Disposition is the lowercased principal token of Content-Disposition.
	// It is always non-empty once the part's headers are closed; a missing
	// Content-Disposition is a MalformedDataError raised while closing the
	// header block, not a zero-value Part.
	Disposition string

	// Name and Filename are Content-Disposition options. HasName/HasFilename
	// distinguish "absent" from "present but empty".
	Name        string
	HasName     bool
	Filename    string
	HasFilename bool

	// ContentType is the lowercased principal token of Content-Type, or ""
	// if the header was absent.
	ContentType string

	// Charset comes from Content-Type's charset option, falling back to the
	// parser's configured default.
	Charset string

	// ExpectedSize is the declared Content-Length, if the header was
	// present.
	ExpectedSize    int64
	HasExpectedSize bool
}

// PartData carries one fragment of a part's body, emitted by the parser as
// it drains bytes that are confirmed not to be a boundary line.
type PartData struct {
	Raw  []byte
	Size int
}

// newPart returns a fresh Part with its Charset defaulted; callers overwrite
// it once Content-Type's charset option (if any) is known.
func newPart(defaultCharsetOverride string) *Part {
	return &Part{Charset: defaultCharsetOverride}
}

// closeHeaders finalizes p.Header into Disposition/Name/Filename/ContentType
// /Charset/ExpectedSize. It is called once, when the blank line ending the
// header block is seen. Grounded on
// original_source/sansio_multipart/parser.py:_construct_part's blank-line
// branch.
func (p *Part) closeHeaders() error {
	disposition, _ := p.Header.Get(contentDispositionHeader)
	if disposition == "" {
		return malformed("Content-Disposition header is missing")
	}

	principal, options := ParseOptionsHeader(disposition)
	p.Disposition = principal
	if name, ok := options.Get("name"); ok {
		p.Name, p.HasName = name, true
	}
	if filename, ok := options.Get("filename"); ok {
		p.Filename, p.HasFilename = filename, true
	}

	if contentType, ok := p.Header.Get(contentTypeHeader); ok {
		ctPrincipal, ctOptions := ParseOptionsHeader(contentType)
		p.ContentType = ctPrincipal
		if charset, ok := ctOptions.Get("charset"); ok {
			p.Charset = charset
		}
	}

	if contentLength, ok := p.Header.Get(contentLengthHeader); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(contentLength), 10, 64)
		if err != nil || n < 0 {
			return malformed("Content-Length header is not a valid non-negative integer")
		}
		p.ExpectedSize, p.HasExpectedSize = n, true
	}

	if cte, ok := p.Header.Get(contentTransferEncodingHeader); ok {
		if !isIdentityTransferEncoding(cte) {
			return malformed("Content-Transfer-Encoding is not identity, 7bit, 8bit, or binary")
		}
	}

	return nil
}

const (
	contentDispositionHeader      = "Content-Disposition"
	contentTypeHeader             = "Content-Type"
	contentLengthHeader           = "Content-Length"
	contentTransferEncodingHeader = "Content-Transfer-Encoding"
)

// identityTransferEncodings are the Content-Transfer-Encoding tokens that
// require no decoding: RFC 2045's 7bit/8bit/binary are already identity for
// multipart purposes, same as the bare token "identity". Anything else
// (base64, quoted-printable, …) is outside this parser's Non-goals ("no
// transfer-encoding handling beyond identity").
var identityTransferEncodings = []string{"identity", "7bit", "8bit", "binary"}

// isIdentityTransferEncoding reports whether value names a transfer encoding
// this parser treats as identity, tolerant of surrounding whitespace and
// case exactly as header.go's headerNameEqual is for header names — per the
// teacher's own use of bytescase throughout its header/token matching.
func isIdentityTransferEncoding(value string) bool {
	trimmed := []byte(strings.TrimSpace(value))
	for _, tok := range identityTransferEncodings {
		if bytescase.CmpEq(trimmed, []byte(tok)) {
			return true
		}
	}
	return false
}
