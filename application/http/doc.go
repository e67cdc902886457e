// Package http implements the HTTP/1.1 message syntax used by the system
// internet stack: request heads, response heads and chunked bodies.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
