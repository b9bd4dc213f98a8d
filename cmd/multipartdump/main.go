// Command multipartdump drives a multipartsio.Parser (and, optionally, the
// form collaborator) over a file on disk, splitting it (in event-trace mode)
// into caller-chosen chunk sizes to exercise the parser's chunk-boundary
// tolerance, and prints
// the resulting event trace. Grounded on zostay-go-email's
// test/roundtrip/cmd package: a cobra root command wiring a file-driven
// round-trip tool, adapted here to a single-file multipart dump rather than
// a message-roundtrip diff.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/theelous3/multipartsio"
	"github.com/theelous3/multipartsio/form"
)

var (
	boundary  string
	charset   string
	chunkSize int
	asForm    bool
	maxMemory int64
)

var rootCmd = &cobra.Command{
	Use:   "multipartdump file",
	Short: "Feed a multipart/form-data file through multipartsio and print its events",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&boundary, "boundary", "", "boundary token, without the leading --  (required)")
	rootCmd.Flags().StringVar(&charset, "charset", "", "default charset for parts with no charset option (default latin1)")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 4096, "bytes read per Feed call, to exercise arbitrary chunk boundaries (ignored with --form)")
	rootCmd.Flags().BoolVar(&asForm, "form", false, "bin parts into form values/files via the form package instead of tracing raw events")
	rootCmd.Flags().Int64Var(&maxMemory, "max-memory", 10<<20, "bytes of file-part content kept in memory before spooling to disk (--form only)")
	_ = rootCmd.MarkFlagRequired("boundary")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if asForm {
		return dumpForm(f)
	}
	return dumpEvents(f)
}

func dumpEvents(r io.Reader) error {
	var opts []multipartsio.Option
	if charset != "" {
		opts = append(opts, multipartsio.WithCharset(charset))
	}
	p := multipartsio.New([]byte(boundary), opts...)

	buf := make([]byte, chunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			evs, ferr := p.Parse(buf[:n])
			if ferr != nil {
				return ferr
			}
			for _, ev := range evs {
				printEvent(ev)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return p.Close()
}

func printEvent(ev multipartsio.Event) {
	switch e := ev.(type) {
	case multipartsio.PartEvent:
		fmt.Printf("PART disposition=%q name=%q filename=%q content-type=%q charset=%q\n",
			e.Part.Disposition, e.Part.Name, e.Part.Filename, e.Part.ContentType, e.Part.Charset)
	case multipartsio.PartDataEvent:
		fmt.Printf("DATA %d bytes\n", e.Data.Size)
	case multipartsio.NeedDataEvent:
		fmt.Println("NEED_DATA")
	case multipartsio.FinishedEvent:
		fmt.Println("FINISHED")
	}
}

func dumpForm(r io.Reader) error {
	parsed, err := form.ReadForm(r, boundary, charset, maxMemory)
	if err != nil {
		return err
	}
	defer parsed.RemoveAll()

	for name, values := range parsed.Value {
		for _, v := range values {
			fmt.Printf("VALUE %s=%q\n", name, v)
		}
	}
	for name, files := range parsed.File {
		for _, fh := range files {
			fmt.Printf("FILE %s filename=%q size=%d\n", name, fh.Filename, fh.Size)
		}
	}
	return nil
}
