package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharClasses(t *testing.T) {
	for _, c := range []byte("azAZ09-._~") {
		assert.True(t, isUnreserved(c), "%c", c)
		assert.False(t, isReserved(c), "%c", c)
	}
	for _, c := range []byte(":/?#[]@!$&'()*+,;=") {
		assert.False(t, isUnreserved(c), "%c", c)
		assert.True(t, isReserved(c), "%c", c)
	}
	for _, c := range []byte(" %\"<>\\^`{|}\x00\x7f\xff") {
		assert.False(t, isUnreserved(c), "%q", c)
		assert.False(t, isReserved(c), "%q", c)
	}

	assert.True(t, isHex('f'))
	assert.True(t, isHex('F'))
	assert.False(t, isHex('g'))
}

func TestFormEscape(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected string
	}{
		{desc: "unreserved", input: "abc-._~123", expected: "abc-._~123"},
		{desc: "empty", input: "", expected: ""},
		{desc: "space", input: "a b", expected: "a+b"},
		{desc: "body delimiters", input: "a&b=c", expected: "a%26b%3Dc"},
		{desc: "plus", input: "1+1", expected: "1%2B1"},
		{desc: "gen delims", input: "/?#[]@:", expected: "%2F%3F%23%5B%5D%40%3A"},
		{desc: "line break", input: "a\r\nb", expected: "a%0D%0Ab"},
		{desc: "multibyte", input: "한글", expected: "%ED%95%9C%EA%B8%80"},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			escaped := FormEscape(tc.input)
			assert.Equal(t, tc.expected, escaped)
			assert.Equal(t, len(escaped), FormEscapedLen(tc.input))

			unescaped, err := FormUnescape(escaped)
			require.NoError(t, err)
			assert.Equal(t, tc.input, unescaped)
		})
	}
}

func TestFormUnescape(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected string
		wantErr  bool
	}{
		{desc: "lowercase hex", input: "%5bx%5d", expected: "[x]"},
		{desc: "plus and space escape", input: "a+b%20c", expected: "a b c"},
		{desc: "truncated", input: "abc%5", wantErr: true},
		{desc: "lone percent", input: "%", wantErr: true},
		{desc: "non hex", input: "%5Z", wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := FormUnescape(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEscape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s)
		})
	}
}
