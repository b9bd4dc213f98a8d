package form

import (
	"bytes"
	"io"
	"os"

	"github.com/theelous3/multipartsio"
)

// FileHeader describes one file part binned out of a multipart/form-data
// body. Its content is held in memory if it fit within ReadForm's maxMemory,
// or spooled to a temp file otherwise; Open abstracts over which. Grounded on
// badu-http/mime's FileHeader/Open.
type FileHeader struct {
	Filename string
	Header   multipartsio.Header
	Size     int64

	content []byte
	tmpfile string
}

// File is the handle FileHeader.Open returns: a seekable, readable,
// closeable view over the part's body, regardless of whether it lives in
// memory or on disk.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Open opens and returns the FileHeader's associated content.
func (fh *FileHeader) Open() (File, error) {
	if fh.tmpfile == "" {
		r := io.NewSectionReader(bytes.NewReader(fh.content), 0, int64(len(fh.content)))
		return sectionReadCloser{r}, nil
	}
	return os.Open(fh.tmpfile)
}

// sectionReadCloser adapts an *io.SectionReader (which has no Close) to
// File, matching badu-http/mime's in-memory branch of Open.
type sectionReadCloser struct {
	*io.SectionReader
}

func (sectionReadCloser) Close() error { return nil }
