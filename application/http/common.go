package http

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

const (
	CR   byte = '\r'
	LF   byte = '\n'
	SP   byte = ' '
	HTAB byte = '\t'
)

var (
	CRLF = []byte{CR, LF}
	OWS  = []byte{SP, HTAB}
)

var ErrMalformedVersion = errors.New("http version is malformed")

// tchar per RFC 9110 section 5.6.2.
var tokenChars = func() (set [256]bool) {
	for c := 'a'; c <= 'z'; c++ {
		set[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		set[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		set[c] = true
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		set[c] = true
	}
	return set
}()

// IsValidToken reports whether s is a non-empty token, as used for methods
// and field names.
func IsValidToken(s string) bool {
	if s == "" {
		return false
	}
	for idx := 0; idx < len(s); idx++ {
		if !tokenChars[s[idx]] {
			return false
		}
	}
	return true
}

// IsValidFieldValue rejects values that would break the field line apart.
func IsValidFieldValue(s string) bool {
	return !strings.ContainsAny(s, "\r\n\x00")
}

// Version is [major, minor].
type Version [2]uint

var (
	Version10 = Version{1, 0}
	Version11 = Version{1, 1}
)

// ParseVersion parses "HTTP/" DIGIT "." DIGIT.
func ParseVersion(b []byte) (Version, error) {
	rest, ok := bytes.CutPrefix(b, []byte("HTTP/"))
	if !ok || len(rest) != 3 || rest[1] != '.' || !isDigit(rest[0]) || !isDigit(rest[2]) {
		return Version{}, errors.Wrapf(ErrMalformedVersion, "%q", b)
	}
	return Version{uint(rest[0] - '0'), uint(rest[2] - '0')}, nil
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func (ver Version) String() string {
	return "HTTP/" + string(rune('0'+ver[0])) + "." + string(rune('0'+ver[1]))
}
