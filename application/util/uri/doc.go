// Package uri implements the percent-encoding rules of Uniform Resource
// Identifiers, plus the form flavor used by url-encoded request bodies.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc3986#section-2
//
// - https://url.spec.whatwg.org/#application/x-www-form-urlencoded
package uri
