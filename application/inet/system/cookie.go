package system

import (
	nethttp "net/http"
	"net/url"
	"strings"

	"w3client/application/http"

	"github.com/pkg/errors"
)

var ErrInvalidCookie = errors.New("invalid cookie")

func (ss *session) SetCookie(rawURL, name, value string) error {
	if ss.isClosed() {
		return ErrSessionClosed
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "parsing cookie url")
	}
	if u.Host == "" {
		return errors.Wrapf(ErrInvalidCookie, "url %q has no host", rawURL)
	}
	if !http.IsValidToken(name) {
		return errors.Wrapf(ErrInvalidCookie, "name %q", name)
	}
	if strings.ContainsAny(value, "\";\\\r\n") {
		return errors.Wrapf(ErrInvalidCookie, "value %q", value)
	}

	ss.jar.SetCookies(u, []*nethttp.Cookie{{Name: name, Value: value}})
	return nil
}

// cookieHeader renders the jar content for u as a Cookie field value.
func (ss *session) cookieHeader(u *url.URL) (string, bool) {
	cookies := ss.jar.Cookies(u)
	if len(cookies) == 0 {
		return "", false
	}

	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), true
}

// storeSetCookies keeps every well-formed Set-Cookie of a response.
func (ss *session) storeSetCookies(u *url.URL, lines []string) {
	cookies := make([]*nethttp.Cookie, 0, len(lines))
	for _, line := range lines {
		c, err := nethttp.ParseSetCookie(line)
		if err != nil {
			ss.logger.Debug("ignoring set-cookie", "value", line, "error", err)
			continue
		}
		cookies = append(cookies, c)
	}
	if len(cookies) > 0 {
		ss.jar.SetCookies(u, cookies)
	}
}
