package w3

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type recordingStore struct {
	set    []string
	failOn string
}

func (s *recordingStore) SetCookie(rawURL, name, value string) error {
	if name == s.failOn {
		return errors.New("rejected")
	}
	s.set = append(s.set, rawURL+" "+name+"="+value)
	return nil
}

func TestCanonicalURL(t *testing.T) {
	testcases := []struct {
		desc     string
		base     string
		uri      string
		expected string
	}{
		{desc: "non default port", base: "http://example.com:8080/base", uri: "/page?x=1", expected: "http://example.com:8080/page?x=1"},
		{desc: "default port", base: "http://example.com:80/base", uri: "/page", expected: "http://example.com/page"},
		{desc: "https", base: "https://example.com/", uri: "/a", expected: "https://example.com/a"},
		{desc: "relative uri", base: "http://example.com/", uri: "a/b", expected: "http://example.com/a/b"},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, CanonicalURL(ParseURL(tc.base), tc.uri))
		})
	}
}

func TestCookieJarApply(t *testing.T) {
	var jar CookieJar
	jar.Add("session", Str("abc"))
	jar.Add("visits", Int(3))
	assert.Equal(t, 2, jar.Len())

	store := &recordingStore{}
	err := jar.Apply(store, ParseURL("http://example.com:8080/base"), "/page?x=1")
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"http://example.com:8080/page?x=1 session=abc",
		"http://example.com:8080/page?x=1 visits=3",
	}, store.set)

	jar.Clear()
	assert.Zero(t, jar.Len())
	assert.Empty(t, jar.Cookies())
}

func TestCookieJarApplyStopsAtRejection(t *testing.T) {
	var jar CookieJar
	jar.Add("a", Str("1"))
	jar.Add("bad", Str("2"))
	jar.Add("c", Str("3"))

	store := &recordingStore{failOn: "bad"}
	err := jar.Apply(store, ParseURL("http://example.com/"), "/")
	assert.ErrorContains(t, err, "bad")
	assert.Len(t, store.set, 1)
}
