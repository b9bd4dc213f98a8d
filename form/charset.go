package form

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// decodeCharset decodes a field value's raw bytes according to the IANA
// charset name the owning Part reported (multipartsio.Part.Charset).
// Grounded on zostay-go-email's header/encoding package, which likewise
// drives golang.org/x/text/encoding/ianaindex off a charset name carried on
// a parsed header rather than hand-rolling a charset table.
//
// "latin1" is multipartsio's own default charset and is handled directly via
// charmap.ISO8859_1 rather than through ianaindex, which has no encoding
// registered under that literal name (its registered name is "ISO-8859-1").
func decodeCharset(raw []byte, charset string) (string, error) {
	switch charset {
	case "", "latin1", "iso-8859-1", "iso8859-1":
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("form: decoding charset %q: %w", charset, err)
		}
		return string(decoded), nil
	case "us-ascii", "ascii", "utf-8", "utf8":
		return string(raw), nil
	}

	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil {
		return "", fmt.Errorf("form: unknown charset %q: %w", charset, err)
	}
	if enc == nil {
		return string(raw), nil
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("form: decoding charset %q: %w", charset, err)
	}
	return string(decoded), nil
}
