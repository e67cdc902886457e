package uri

type charClass uint8

const (
	classAlpha charClass = 1 << iota
	classDigit
	classHex
	classMark // '-', '.', '_', '~'
	classSubDelim
	classGenDelim
)

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2
var classes = func() (table [256]charClass) {
	for c := 'a'; c <= 'z'; c++ {
		table[c] |= classAlpha
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] |= classAlpha
	}
	for c := '0'; c <= '9'; c++ {
		table[c] |= classDigit | classHex
	}
	for _, c := range "abcdefABCDEF" {
		table[c] |= classHex
	}
	for _, c := range "-._~" {
		table[c] |= classMark
	}
	for _, c := range "!$&'()*+,;=" {
		table[c] |= classSubDelim
	}
	for _, c := range ":/?#[]@" {
		table[c] |= classGenDelim
	}
	return table
}()

func (cc charClass) is(mask charClass) bool { return cc&mask != 0 }

func isHex(c byte) bool { return classes[c].is(classHex) }

func isUnreserved(c byte) bool { return classes[c].is(classAlpha | classDigit | classMark) }

func isReserved(c byte) bool { return classes[c].is(classSubDelim | classGenDelim) }
