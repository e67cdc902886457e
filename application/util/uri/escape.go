package uri

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedEscape = errors.New("percent encoding not properly applied")

const upperHex = "0123456789ABCDEF"

// FormEscape escapes s for an application/x-www-form-urlencoded body.
// Space becomes '+', every other byte outside the unreserved set is
// percent-encoded.
func FormEscape(s string) string {
	n := FormEscapedLen(s)
	if n == len(s) && !strings.Contains(s, " ") {
		return s
	}

	buf := make([]byte, 0, n)
	for idx := 0; idx < len(s); idx++ {
		switch c := s[idx]; {
		case c == ' ':
			buf = append(buf, '+')
		case isUnreserved(c):
			buf = append(buf, c)
		default:
			buf = append(buf, '%', upperHex[c>>4], upperHex[c&0xF])
		}
	}
	return string(buf)
}

// FormEscapedLen reports len(FormEscape(s)) without building the string.
func FormEscapedLen(s string) int {
	n := len(s)
	for idx := 0; idx < len(s); idx++ {
		if c := s[idx]; c != ' ' && !isUnreserved(c) {
			n += 2
		}
	}
	return n
}

// FormUnescape reverses FormEscape. It accepts lowercase hex digits too.
func FormUnescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		switch c := s[idx]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if idx+2 >= len(s) || !isHex(s[idx+1]) || !isHex(s[idx+2]) {
				return "", errors.Wrapf(ErrMalformedEscape, "%q", s[idx:min(len(s), idx+3)])
			}
			b.WriteByte(fromHex(s[idx+1])<<4 | fromHex(s[idx+2]))
			idx += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func fromHex(h byte) byte {
	switch {
	case h <= '9':
		return h - '0'
	case h >= 'a':
		return h - 'a' + 10
	}
	return h - 'A' + 10
}
