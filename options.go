package multipartsio

import "strings"

// tspecials are the RFC 2045 "tspecials" — bytes that cannot appear in an
// unquoted token or option key. Mirrors original_source/multipart/utils.py's
// `_special` character class.
const tspecials = `()<>@,;:"\/[]?={} ` + "\t"

// KV is a single parsed option (name, value) pair, in the order it appeared.
type KV struct {
	Key   string
	Value string
}

// Options is the ordered mapping of option keys to values produced by
// ParseOptionsHeader. Order is kept even though the spec treats it as a
// mapping, since it costs nothing and matches how Header is modeled.
type Options struct {
	pairs []KV
}

// Get returns the value for key (later occurrences win on duplicate keys,
// matching the "overwrite" rule in SPEC_FULL.md §4.1) and whether it exists.
func (o Options) Get(key string) (string, bool) {
	found := false
	var value string
	for _, kv := range o.pairs {
		if kv.Key == key {
			value = kv.Value
			found = true
		}
	}
	return value, found
}

// Pairs returns every option in the order its key first appeared.
func (o Options) Pairs() []KV {
	return o.pairs
}

// set appends key=value, or overwrites the value if the key is already
// present (later wins, but keeps the first occurrence's position — matching
// a Python dict's `options[key] = value` semantics where re-assignment
// doesn't move the key).
func (o *Options) set(key, value string) {
	for i := range o.pairs {
		if o.pairs[i].Key == key {
			o.pairs[i].Value = value
			return
		}
	}
	o.pairs = append(o.pairs, KV{Key: key, Value: value})
}

// ParseOptionsHeader parses a structured header value of the form
// `principal; key=val; key2="quoted val"` into a lowercased, trimmed
// principal token and an ordered mapping of lowercased option keys to
// unquoted values. Malformed tails are tolerated and simply yield a partial
// mapping — diagnosing missing required options is the caller's job.
func ParseOptionsHeader(header string) (string, Options) {
	semi := strings.IndexByte(header, ';')
	if semi < 0 {
		return strings.ToLower(strings.TrimSpace(header)), Options{}
	}

	principal := strings.ToLower(strings.TrimSpace(header[:semi]))
	var opts Options

	tail := header[semi+1:]
	i := 0
	for i < len(tail) {
		// Skip a separating ';' (the first one was already consumed by the
		// split above; subsequent ones appear between options).
		for i < len(tail) && (tail[i] == ';' || isOptionSpace(tail[i])) {
			i++
		}
		if i >= len(tail) {
			break
		}

		keyStart := i
		for i < len(tail) && !isSpecial(tail[i]) && tail[i] != '=' {
			i++
		}
		key := strings.ToLower(strings.TrimSpace(tail[keyStart:i]))
		if key == "" {
			// Not a recognizable key=value; skip to the next ';' and retry.
			for i < len(tail) && tail[i] != ';' {
				i++
			}
			continue
		}

		for i < len(tail) && isOptionSpace(tail[i]) {
			i++
		}
		if i >= len(tail) || tail[i] != '=' {
			// No '=' followed this token; not a valid option, skip it.
			for i < len(tail) && tail[i] != ';' {
				i++
			}
			continue
		}
		i++ // consume '='
		for i < len(tail) && isOptionSpace(tail[i]) {
			i++
		}

		var rawValue string
		if i < len(tail) && tail[i] == '"' {
			start := i
			i++
			for i < len(tail) {
				if tail[i] == '\\' && i+1 < len(tail) {
					i += 2
					continue
				}
				if tail[i] == '"' {
					i++
					break
				}
				i++
			}
			rawValue = tail[start:i]
		} else {
			start := i
			for i < len(tail) && !isSpecial(tail[i]) {
				i++
			}
			rawValue = tail[start:i]
		}

		opts.set(key, headerUnquote(rawValue, key == "filename"))
	}

	return principal, opts
}

func isOptionSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func isSpecial(b byte) bool {
	return strings.IndexByte(tspecials, b) >= 0
}

// headerUnquote strips surrounding quotes and undoes backslash escaping from
// a raw option value. When forFilename is set, it additionally applies the
// IE-6 full-path workaround: browsers on Windows used to send the whole
// local path as the filename, so anything up to the last backslash in a
// drive-letter or UNC path is dropped.
func headerUnquote(val string, forFilename bool) string {
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]

		if forFilename && looksLikeWindowsPath(val) {
			if idx := strings.LastIndexByte(val, '\\'); idx >= 0 {
				val = val[idx+1:]
			}
		}

		// Order matches the original: undo "\\\\" -> "\\" before "\\\"" ->
		// "\"", not the other way around.
		val = strings.ReplaceAll(val, `\\`, `\`)
		val = strings.ReplaceAll(val, `\"`, `"`)
		return val
	}
	return val
}

// looksLikeWindowsPath reports whether val begins with a drive letter
// ("C:\") or a UNC prefix ("\\"), the two shapes IE6 used to send as a
// "filename" value.
func looksLikeWindowsPath(val string) bool {
	if len(val) >= 3 && val[1] == ':' && val[2] == '\\' {
		return true
	}
	if len(val) >= 2 && val[0] == '\\' && val[1] == '\\' {
		return true
	}
	return false
}
