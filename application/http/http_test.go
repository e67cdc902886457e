package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	testcases := []struct {
		desc     string
		line     string
		expected Field
		wantErr  bool
	}{
		{
			desc:     "simple",
			line:     "Content-Type: text/html",
			expected: Field{Name: "Content-Type", Value: "text/html"},
		},
		{
			desc:     "surrounding whitespace",
			line:     "Accept:\t */* \t",
			expected: Field{Name: "Accept", Value: "*/*"},
		},
		{
			desc:    "whitespace before colon",
			line:    "Accept : */*",
			wantErr: true,
		},
		{
			desc:    "no colon",
			line:    "Accept */*",
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			field, err := ParseField([]byte(tc.line))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFieldLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, field)
		})
	}
}

func TestFieldsSet(t *testing.T) {
	fields := Fields{
		{Name: "Accept", Value: "text/html"},
		{Name: "Host", Value: "example.com"},
		{Name: "accept", Value: "image/png"},
	}

	fields.Set("ACCEPT", "*/*")

	assert.Equal(t, Fields{
		{Name: "Accept", Value: "*/*"},
		{Name: "Host", Value: "example.com"},
	}, fields)

	fields.Set("Referer", "/")
	v, ok := fields.Get("referer")
	assert.True(t, ok)
	assert.Equal(t, "/", v)

	fields.Del("host")
	_, ok = fields.Get("Host")
	assert.False(t, ok)
}

func TestFieldsValues(t *testing.T) {
	fields := Fields{
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Server", Value: "x"},
		{Name: "set-cookie", Value: "b=2"},
	}

	assert.Equal(t, []string{"a=1", "b=2"}, fields.Values("Set-Cookie"))
	assert.Nil(t, fields.Values("Cookie"))
}

func TestParseVersion(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected Version
		err      bool
	}{
		{desc: "1.1", input: "HTTP/1.1", expected: Version11},
		{desc: "1.0", input: "HTTP/1.0", expected: Version10},
		{desc: "not a digit", input: "HTTP/x.1", err: true},
		{desc: "two digits", input: "HTTP/1.10", err: true},
		{desc: "wrong protocol", input: "FTP/1.0", err: true},
		{desc: "no minor", input: "HTTP/2", err: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			ver, err := ParseVersion([]byte(tc.input))
			if tc.err {
				assert.ErrorIs(t, err, ErrMalformedVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ver)
			assert.Equal(t, tc.input, ver.String())
		})
	}
}

func TestIsValidToken(t *testing.T) {
	assert.True(t, IsValidToken("GET"))
	assert.True(t, IsValidToken("X-Custom_Header.1"))
	assert.False(t, IsValidToken(""))
	assert.False(t, IsValidToken("Bad Name"))
	assert.False(t, IsValidToken("a:b"))
	assert.False(t, IsValidToken("é"))
}

func TestIsValidFieldValue(t *testing.T) {
	assert.True(t, IsValidFieldValue("text/html; charset=utf-8"))
	assert.False(t, IsValidFieldValue("a\r\nInjected: 1"))
}
