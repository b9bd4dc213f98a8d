/*
Package multipartsio implements a sans-I/O, incremental parser for the
multipart/form-data byte format (RFC 7578 / RFC 2046).

The parser never performs I/O and never blocks. Callers feed arbitrary byte
chunks as they arrive from whatever transport they own and drain a queue of
events (Part headers, PartData body fragments, NeedData, Finished). Because a
chunk boundary may fall anywhere — inside a boundary marker, a header line, or
the CRLF immediately preceding a separator — the parser carries over any bytes
it cannot yet classify to the next Feed call.

The package intentionally knows nothing about sockets, files, or WSGI environs;
see the sibling form package for a collaborator that drives this parser from
an io.Reader and bins parts into form fields and files.
*/
package multipartsio
