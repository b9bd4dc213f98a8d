/*
Package form is the out-of-core-scope collaborator described in
multipartsio's §6.4: it drives a multipartsio.Parser from an io.Reader in
fixed-size chunks and bins the emitted parts into form field values or
uploaded files, the way the WSGI-style adapter in the original design binds
emitted parts into a MultiDict of values and files.

It is a separate package on purpose: the core parser never decides how a
Content-Disposition name should be demultiplexed, how large a part may grow
in memory before it is spooled to disk, or how a field's bytes should be
decoded against its charset. Those are this package's policy, not the
parser's.
*/
package form
