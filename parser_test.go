package multipartsio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain runs the full input through one Parser, one Feed call at a time per
// element of chunks, and returns every event produced across all calls.
func drain(t *testing.T, boundary string, chunks [][]byte, opts ...Option) ([]Event, error) {
	t.Helper()
	p := New([]byte(boundary), opts...)
	var events []Event
	for _, c := range chunks {
		evs, err := p.Parse(c)
		events = append(events, evs...)
		if err != nil {
			return events, err
		}
	}
	return events, nil
}

func partDataBytes(events []Event) []byte {
	var out []byte
	for _, ev := range events {
		if pd, ok := ev.(PartDataEvent); ok {
			out = append(out, pd.Data.Raw...)
		}
	}
	return out
}

func nonNeedData(events []Event) []Event {
	var out []Event
	for _, ev := range events {
		if _, ok := ev.(NeedDataEvent); ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// S1 Single text part.
func TestS1SingleTextPart(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhello\r\n--X--\r\n"
	events, err := drain(t, "X", [][]byte{[]byte(input)})
	require.NoError(t, err)

	significant := nonNeedData(events)
	require.Len(t, significant, 3)

	partEv, ok := significant[0].(PartEvent)
	require.True(t, ok)
	assert.Equal(t, "form-data", partEv.Part.Disposition)
	assert.Equal(t, "a", partEv.Part.Name)

	dataEv, ok := significant[1].(PartDataEvent)
	require.True(t, ok)
	assert.Equal(t, "hello", string(dataEv.Data.Raw))

	_, ok = significant[2].(FinishedEvent)
	assert.True(t, ok)
}

// S2 File upload with charset and IE-6 filename stripping.
func TestS2FileUploadWithCharset(t *testing.T) {
	pi := []byte{0xCF, 0x80} // UTF-8 encoding of 'π'
	var body bytes.Buffer
	body.WriteString("--X\r\nContent-Disposition: form-data; name=\"f\"; filename=\"C:\\path\\a.txt\"\r\n")
	body.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	body.Write(pi)
	body.WriteString("\n\r\n--X--\r\n")

	events, err := drain(t, "X", [][]byte{body.Bytes()})
	require.NoError(t, err)

	significant := nonNeedData(events)
	require.Len(t, significant, 3)

	partEv := significant[0].(PartEvent)
	assert.Equal(t, "a.txt", partEv.Part.Filename)
	assert.Equal(t, "text/plain", partEv.Part.ContentType)
	assert.Equal(t, "utf-8", partEv.Part.Charset)

	dataEv := significant[1].(PartDataEvent)
	expected := append(append([]byte{}, pi...), '\n')
	assert.Equal(t, expected, dataEv.Data.Raw)
}

// S3 Chunked mid-boundary: splitting the same S1 input across chunk
// boundaries, including mid-separator, must yield the same significant event
// sequence with no PartData ever containing boundary bytes.
func TestS3ChunkedMidBoundary(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhello\r\n--X--\r\n"

	baseline, err := drain(t, "X", [][]byte{[]byte(input)})
	require.NoError(t, err)
	baselineSig := nonNeedData(baseline)

	splitAt := bytes.Index([]byte(input), []byte("hello\r\n--X")) + len("hello\r\n--X")
	chunk1 := input[:splitAt]
	rest := input[splitAt:]
	chunk2 := rest[:1]
	chunk3 := rest[1:]

	chunked, err := drain(t, "X", [][]byte{[]byte(chunk1), []byte(chunk2), []byte(chunk3)})
	require.NoError(t, err)
	chunkedSig := nonNeedData(chunked)

	require.Equal(t, len(baselineSig), len(chunkedSig))
	for i := range baselineSig {
		assertEventsEqual(t, baselineSig[i], chunkedSig[i])
	}

	for _, ev := range chunked {
		if pd, ok := ev.(PartDataEvent); ok {
			assert.False(t, bytes.Contains(pd.Data.Raw, []byte("--X")))
		}
	}
}

func assertEventsEqual(t *testing.T, a, b Event) {
	t.Helper()
	switch av := a.(type) {
	case PartEvent:
		bv, ok := b.(PartEvent)
		require.True(t, ok)
		assert.Equal(t, av.Part.Name, bv.Part.Name)
		assert.Equal(t, av.Part.Disposition, bv.Part.Disposition)
	case PartDataEvent:
		bv, ok := b.(PartDataEvent)
		require.True(t, ok)
		assert.Equal(t, av.Data.Raw, bv.Data.Raw)
	case FinishedEvent:
		_, ok := b.(FinishedEvent)
		require.True(t, ok)
	default:
		t.Fatalf("unexpected event type %T", a)
	}
}

// S4 Two parts.
func TestS4TwoParts(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n" +
		"--X\r\nContent-Disposition: form-data; name=\"b\"\r\n\r\n2\r\n--X--\r\n"

	events, err := drain(t, "X", [][]byte{[]byte(input)})
	require.NoError(t, err)

	significant := nonNeedData(events)
	require.Len(t, significant, 5)

	assert.Equal(t, "a", significant[0].(PartEvent).Part.Name)
	assert.Equal(t, "1", string(significant[1].(PartDataEvent).Data.Raw))
	assert.Equal(t, "b", significant[2].(PartEvent).Part.Name)
	assert.Equal(t, "2", string(significant[3].(PartDataEvent).Data.Raw))
	_, ok := significant[4].(FinishedEvent)
	assert.True(t, ok)
}

// S5 Content-Length overflow.
func TestS5ContentLengthOverflow(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\nContent-Length: 3\r\n\r\n1234\r\n--X--\r\n"

	_, err := drain(t, "X", [][]byte{[]byte(input)})
	require.Error(t, err)
	var merr *MalformedDataError
	assert.True(t, errors.As(err, &merr))
}

// S6 Missing Content-Disposition.
func TestS6MissingContentDisposition(t *testing.T) {
	input := "--X\r\nContent-Type: text/plain\r\n\r\nhi\r\n--X--\r\n"

	_, err := drain(t, "X", [][]byte{[]byte(input)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedData)
}

// A Content-Transfer-Encoding naming anything other than identity/7bit/8bit
// /binary is rejected: this parser never decodes a transfer encoding (spec
// Non-goal "no transfer-encoding handling beyond identity").
func TestContentTransferEncodingRejectsNonIdentity(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\nContent-Transfer-Encoding: base64\r\n\r\naGVsbG8=\r\n--X--\r\n"

	_, err := drain(t, "X", [][]byte{[]byte(input)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedData)
}

// Content-Transfer-Encoding: identity (and its RFC 2045 equivalents, in any
// case and with incidental whitespace) is accepted.
func TestContentTransferEncodingAcceptsIdentityEquivalents(t *testing.T) {
	for _, cte := range []string{"identity", "IDENTITY", "7bit", "8BIT", " binary "} {
		input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\nContent-Transfer-Encoding: " + cte + "\r\n\r\nhello\r\n--X--\r\n"

		events, err := drain(t, "X", [][]byte{[]byte(input)})
		require.NoError(t, err, "cte %q", cte)
		assert.Equal(t, "hello", string(partDataBytes(events)), "cte %q", cte)
	}
}

// S7 Unexpected EOF: S1 truncated before the terminator.
func TestS7UnexpectedEOF(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhello\r\n"

	p := New([]byte("X"))
	_, err := p.Parse([]byte(input))
	require.NoError(t, err)

	err = p.Close()
	assert.ErrorIs(t, err, ErrUnexpectedExit)
}

// Property 1: chunking invariance across arbitrary split points.
func TestPropertyChunkingInvariance(t *testing.T) {
	input := []byte("--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhello world\r\n--X--\r\n")

	baseline, err := drain(t, "X", [][]byte{input})
	require.NoError(t, err)
	baselineSig := nonNeedData(baseline)

	for _, n := range []int{1, 2, 3, 5, 7, 11} {
		chunks := byteChunks(input, n)
		got, err := drain(t, "X", chunks)
		require.NoError(t, err)
		gotSig := nonNeedData(got)

		require.Equal(t, len(baselineSig), len(gotSig), "chunk size %d", n)
		for i := range baselineSig {
			assertEventsEqual(t, baselineSig[i], gotSig[i])
		}
	}
}

// Property 1b: same as above, but the chunk boundaries are drawn randomly
// (seeded via TestMain's -seed flag, "-seed" to reproduce a failure) rather
// than fixed sizes, on a body that itself contains a blank line so a chunk
// boundary can land exactly after it.
func TestPropertyChunkingInvarianceRandomized(t *testing.T) {
	input := []byte("--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n\r\nhello world\r\n--X--\r\n")

	baseline, err := drain(t, "X", [][]byte{input})
	require.NoError(t, err)
	baselineSig := nonNeedData(baseline)
	baselineBody := partDataBytes(baseline)

	for i := 0; i < 50; i++ {
		chunks := chunkRandomly(input)
		got, err := drain(t, "X", chunks)
		require.NoError(t, err, "iteration %d, chunks %v", i, chunks)
		gotSig := nonNeedData(got)

		require.Equal(t, len(baselineSig), len(gotSig), "iteration %d, chunks %v", i, chunks)
		for j := range baselineSig {
			assertEventsEqual(t, baselineSig[j], gotSig[j])
		}
		assert.Equal(t, string(baselineBody), string(partDataBytes(got)), "iteration %d, chunks %v", i, chunks)
	}
}

// Property 2: concatenated PartData bytes equal the original body, byte for
// byte.
func TestPropertyPartDataConcatenationMatchesBody(t *testing.T) {
	input := []byte("--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nline one\r\nline two\r\n--X--\r\n")

	events, err := drain(t, "X", [][]byte{input})
	require.NoError(t, err)

	assert.Equal(t, "line one\r\nline two", string(partDataBytes(events)))
}

// Property 3: a Content-Length that exactly matches the body is accepted;
// one byte over is rejected regardless of how the input is chunked.
func TestPropertyContentLengthBoundary(t *testing.T) {
	exact := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\nContent-Length: 5\r\n\r\nhello\r\n--X--\r\n"
	_, err := drain(t, "X", [][]byte{[]byte(exact)})
	require.NoError(t, err)

	over := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\nContent-Length: 4\r\n\r\nhello\r\n--X--\r\n"
	_, err = drain(t, "X", [][]byte{[]byte(over)})
	require.Error(t, err)
}

// Property 4: flipping a byte of the separator line either causes a
// MalformedData or the line is reclassified as part of the body — the parser
// never silently desynchronizes.
func TestPropertyBoundaryMatchIsExact(t *testing.T) {
	// A same-length mismatch where a separator line is expected (the very
	// first line) is rejected.
	input := "--Y\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhi\r\n--X--\r\n"
	_, err := drain(t, "X", [][]byte{[]byte(input)})
	require.Error(t, err)
	var merr *MalformedDataError
	assert.True(t, errors.As(err, &merr))

	// The same same-length mismatch occurring inside a part's body, where no
	// separator is expected yet, is reclassified as body data instead.
	input2 := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n--Y\r\nhi\r\n--X--\r\n"
	events, err := drain(t, "X", [][]byte{[]byte(input2)})
	require.NoError(t, err)
	assert.Equal(t, "--Y\r\nhi", string(partDataBytes(events)))
}

// Property 5: line-ending agnosticism — substituting CRLF with LF throughout
// yields the same significant event sequence.
func TestPropertyLineEndingAgnosticism(t *testing.T) {
	crlf := []byte("--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhello\r\n--X--\r\n")
	lf := bytes.ReplaceAll(crlf, []byte("\r\n"), []byte("\n"))

	crlfEvents, err := drain(t, "X", [][]byte{crlf})
	require.NoError(t, err)
	lfEvents, err := drain(t, "X", [][]byte{lf})
	require.NoError(t, err)

	crlfSig := nonNeedData(crlfEvents)
	lfSig := nonNeedData(lfEvents)
	require.Equal(t, len(crlfSig), len(lfSig))
	for i := range crlfSig {
		assertEventsEqual(t, crlfSig[i], lfSig[i])
	}
}

// Property 6: feeding bytes after FINISHED is a no-op.
func TestPropertyFeedAfterFinishedIsNoop(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhi\r\n--X--\r\n"
	p := New([]byte("X"))
	_, err := p.Parse([]byte(input))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	events, err := p.Parse([]byte("garbage after finished"))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, p.Close())
}

func TestLeadingBlankLinesTolerated(t *testing.T) {
	input := "\r\n\r\n--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhi\r\n--X--\r\n"
	events, err := drain(t, "X", [][]byte{[]byte(input)})
	require.NoError(t, err)

	significant := nonNeedData(events)
	require.Len(t, significant, 3)
	assert.Equal(t, "a", significant[0].(PartEvent).Part.Name)
}

func TestTrailingBytesAfterTerminatorIgnored(t *testing.T) {
	input := "--X\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nhi\r\n--X--\r\ntrailing garbage"
	events, err := drain(t, "X", [][]byte{[]byte(input)})
	require.NoError(t, err)

	significant := nonNeedData(events)
	_, ok := significant[len(significant)-1].(FinishedEvent)
	assert.True(t, ok)
}

func TestEveryByteBoundaryChunkingPreservesBody(t *testing.T) {
	input := []byte("--X\r\nContent-Disposition: form-data; name=\"a\"\r\nContent-Length: 11\r\n\r\nhello world\r\n--X--\r\n")

	for split := 1; split < len(input); split++ {
		chunks := [][]byte{input[:split], input[split:]}
		events, err := drain(t, "X", chunks)
		require.NoError(t, err, "split at %d", split)
		assert.Equal(t, "hello world", string(partDataBytes(events)), "split at %d", split)
	}
}
