package multipartsio

import "github.com/intuitivelabs/bytescase"

// HeaderField is a single parsed (name, value) pair, in the order it
// appeared on the wire. Name's original casing is preserved.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered, case-insensitive multimap of part headers. It is a
// deliberately small replacement for net/textproto.MIMEHeader: the spec
// calls for the adapter layer to "define its multi-map contract afresh"
// rather than inherit one, and the core needs the same ordered contract to
// build a Part's headerlist.
type Header struct {
	fields []HeaderField
}

// Add appends a (name, value) pair, preserving insertion order.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Get returns the value of the first header matching name, case-insensitive,
// and whether one was found.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h.fields {
		if headerNameEqual(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for headers matching name, case-insensitive, in
// wire order.
func (h Header) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if headerNameEqual(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Pairs returns the full ordered list of header fields as parsed.
func (h Header) Pairs() []HeaderField {
	return h.fields
}

// headerNameEqual compares two header names case-insensitively. Header
// names are ASCII tokens, so a plain byte-wise fold (rather than
// strings.EqualFold's rune handling) is both correct and, per the teacher's
// own use of bytescase throughout its header/token matching, the idiomatic
// choice in this lineage.
func headerNameEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return bytescase.CmpEq([]byte(a), []byte(b))
}
