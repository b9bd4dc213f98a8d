package form

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/theelous3/multipartsio"
)

// ErrMessageTooLarge is returned by ReadForm once the accumulated non-file
// field values alone exceed the memory reserved for them. Grounded on
// badu-http/mime's ErrMessageTooLarge.
var ErrMessageTooLarge = errors.New("form: message too large")

// nonFileValueReserve is additional headroom reserved for non-file field
// values, on top of maxMemory, matching badu-http/mime's readForm.
const nonFileValueReserve = 10 << 20

// readChunkSize is how many bytes ReadForm pulls from r per Feed call. There
// is nothing magic about this number — multipartsio tolerates any chunk
// boundary — it just bounds how much of r this package holds at once.
const readChunkSize = 32 * 1024

// Form is a parsed multipart/form-data body: field values and uploaded
// files, each keyed by the Content-Disposition name that introduced them.
// Grounded on badu-http/mime's Form, replacing its MultiDict-flavored access
// pattern with plain map[string][]T, per SPEC_FULL.md §9's resolution of the
// "MultiDict contract" open question.
type Form struct {
	Value map[string][]string
	File  map[string][]*FileHeader
}

// partAccumulator tracks the in-progress part between a PartEvent and the
// PartEvent/FinishedEvent that ends it: its body bytes, spooled to a temp
// file once they exceed maxMemory.
type partAccumulator struct {
	part    *multipartsio.Part
	buf     bytes.Buffer
	spool   *os.File
	spilled bool
}

// ReadForm reads r in fixed-size chunks, feeding each into a
// multipartsio.Parser constructed for boundary and charset, and bins every
// emitted part that has a Content-Disposition name (parts without one are
// skipped): a part with a filename is a file (held in memory up to
// maxMemory bytes, then spooled to a uuid-named temp file); otherwise its
// body is decoded per its own Charset and stored as a form value. This is
// the test target for the WSGI-style adapter multipartsio's §6.4 describes
// as an out-of-core-scope collaborator. Grounded on badu-http/mime's readForm
// loop, adapted from its blocking NextPart/io.CopyN shape to drive the
// sans-I/O Parser's event queue instead.
func ReadForm(r io.Reader, boundary string, charset string, maxMemory int64) (_ *Form, err error) {
	f := &Form{Value: make(map[string][]string), File: make(map[string][]*FileHeader)}
	defer func() {
		if err != nil {
			f.RemoveAll()
		}
	}()

	var opts []multipartsio.Option
	if charset != "" {
		opts = append(opts, multipartsio.WithCharset(charset))
	}
	p := multipartsio.New([]byte(boundary), opts...)

	maxValueBytes := maxMemory + nonFileValueReserve
	var acc *partAccumulator

	closeAcc := func() error {
		if acc == nil {
			return nil
		}
		defer func() {
			if acc.spool != nil {
				_ = acc.spool.Close()
			}
			acc = nil
		}()

		name := acc.part.Name
		if name == "" {
			return nil
		}

		if !acc.part.HasFilename {
			maxValueBytes -= int64(acc.buf.Len())
			if maxValueBytes < 0 {
				return ErrMessageTooLarge
			}
			decoded, derr := decodeCharset(acc.buf.Bytes(), acc.part.Charset)
			if derr != nil {
				return derr
			}
			f.Value[name] = append(f.Value[name], decoded)
			return nil
		}

		fh := &FileHeader{Filename: acc.part.Filename, Header: acc.part.Header}
		if acc.spool != nil {
			info, serr := os.Stat(acc.spool.Name())
			if serr != nil {
				return serr
			}
			fh.tmpfile = acc.spool.Name()
			fh.Size = info.Size()
		} else {
			fh.content = append([]byte(nil), acc.buf.Bytes()...)
			fh.Size = int64(len(fh.content))
		}
		f.File[name] = append(f.File[name], fh)
		return nil
	}

	writeData := func(raw []byte) error {
		if acc == nil || !acc.part.HasFilename {
			if acc != nil {
				acc.buf.Write(raw)
			}
			return nil
		}

		if !acc.spilled && int64(acc.buf.Len()+len(raw)) > maxMemory {
			spool, serr := os.CreateTemp("", "multipartsio-"+uuid.NewString()+"-")
			if serr != nil {
				return serr
			}
			if _, werr := spool.Write(acc.buf.Bytes()); werr != nil {
				_ = spool.Close()
				_ = os.Remove(spool.Name())
				return werr
			}
			acc.buf.Reset()
			acc.spool = spool
			acc.spilled = true
		}

		if acc.spilled {
			_, werr := acc.spool.Write(raw)
			return werr
		}
		acc.buf.Write(raw)
		return nil
	}

	buf := make([]byte, readChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if ferr := p.Feed(buf[:n]); ferr != nil {
				return nil, ferr
			}
			for _, ev := range p.Events() {
				switch e := ev.(type) {
				case multipartsio.PartEvent:
					if cerr := closeAcc(); cerr != nil {
						return nil, cerr
					}
					acc = &partAccumulator{part: e.Part}
				case multipartsio.PartDataEvent:
					if werr := writeData(e.Data.Raw); werr != nil {
						return nil, werr
					}
				case multipartsio.FinishedEvent:
					if cerr := closeAcc(); cerr != nil {
						return nil, cerr
					}
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}

	if cerr := p.Close(); cerr != nil {
		return nil, cerr
	}

	return f, nil
}

// RemoveAll removes every temp file this Form spooled file parts into.
// Grounded on badu-http/mime's (*Form).RemoveAll.
func (f *Form) RemoveAll() error {
	var err error
	for _, fhs := range f.File {
		for _, fh := range fhs {
			if fh.tmpfile != "" {
				if e := os.Remove(fh.tmpfile); e != nil && err == nil {
					err = e
				}
			}
		}
	}
	return err
}
