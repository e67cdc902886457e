package w3

import (
	"strings"

	"github.com/pkg/errors"
)

type Cookie struct {
	Name  string
	Value Value
}

// CookieStore is the platform store cookies are pushed into before a request.
type CookieStore interface {
	SetCookie(rawURL, name, value string) error
}

// CookieJar keeps the cookies of one client in insertion order.
type CookieJar struct {
	cookies []Cookie
}

func (j *CookieJar) Add(name string, value Value) {
	j.cookies = append(j.cookies, Cookie{Name: name, Value: value})
}

func (j *CookieJar) Clear() { j.cookies = nil }

func (j *CookieJar) Len() int { return len(j.cookies) }

func (j *CookieJar) Cookies() []Cookie { return append([]Cookie(nil), j.cookies...) }

// Apply pushes every cookie into store, scoped to the canonical URL of uri
// on base. It stops at the first cookie the store rejects.
func (j *CookieJar) Apply(store CookieStore, base URLParts, uri string) error {
	rawURL := CanonicalURL(base, uri)
	for _, c := range j.cookies {
		if err := store.SetCookie(rawURL, c.Name, c.Value.String()); err != nil {
			return errors.Wrapf(err, "setting cookie %q for %s", c.Name, rawURL)
		}
	}
	return nil
}

// CanonicalURL returns scheme://host[:port]uri, leaving the port out when
// it is the default of the scheme.
func CanonicalURL(base URLParts, uri string) string {
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return base.Origin() + uri
}
