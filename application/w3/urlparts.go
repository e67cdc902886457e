package w3

import (
	"strconv"
	"strings"
)

type Scheme uint8

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
	SchemeFTP
)

func (s Scheme) String() string {
	switch s {
	case SchemeHTTPS:
		return "https"
	case SchemeFTP:
		return "ftp"
	}
	return "http"
}

func (s Scheme) DefaultPort() uint16 {
	switch s {
	case SchemeHTTPS:
		return 443
	case SchemeFTP:
		return 21
	}
	return 80
}

// ParseScheme is case-insensitive. Unknown schemes are treated as http.
func ParseScheme(s string) Scheme {
	switch strings.ToLower(s) {
	case "https":
		return SchemeHTTPS
	case "ftp":
		return SchemeFTP
	}
	return SchemeHTTP
}

// URLParts holds the pieces of a URL the client connects with.
// An empty User means no credentials.
type URLParts struct {
	Scheme   Scheme
	User     string
	Password string
	Host     string
	Port     uint16
	// Path includes the query, if any. It is never empty.
	Path string
}

// ParseURL splits raw into its parts. It never fails: anything it cannot
// make sense of falls back to the defaults of the scheme.
func ParseURL(raw string) URLParts {
	parts := URLParts{Scheme: SchemeHTTP}

	rest := raw
	if idx := strings.IndexByte(raw, ':'); idx >= 0 && strings.HasPrefix(raw[idx+1:], "//") {
		parts.Scheme = ParseScheme(raw[:idx])
		rest = raw[idx+3:]
	}

	authority, path := rest, "/"
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		authority, path = rest[:idx], rest[idx:]
		if path[0] != '/' {
			path = "/" + path
		}
	}
	parts.Path = path

	if idx := strings.LastIndexByte(authority, '@'); idx >= 0 {
		parts.User, parts.Password, _ = strings.Cut(authority[:idx], ":")
		authority = authority[idx+1:]
	}

	host, port := splitHostPort(authority)
	parts.Host = host
	parts.Port = parts.Scheme.DefaultPort()
	if p, err := strconv.ParseUint(port, 10, 16); err == nil && p != 0 {
		parts.Port = uint16(p)
	}

	return parts
}

// splitHostPort understands bracketed IPv6 literals. The brackets are dropped.
func splitHostPort(authority string) (host, port string) {
	if strings.HasPrefix(authority, "[") {
		if end := strings.IndexByte(authority, ']'); end > 0 {
			host = authority[1:end]
			port, _ = strings.CutPrefix(authority[end+1:], ":")
			return host, port
		}
	}
	host, port, _ = strings.Cut(authority, ":")
	return host, port
}

func (p URLParts) hostPort(withDefaultPort bool) string {
	host := p.Host
	if strings.IndexByte(host, ':') >= 0 {
		host = "[" + host + "]"
	}
	if !withDefaultPort && p.Port == p.Scheme.DefaultPort() {
		return host
	}
	return host + ":" + strconv.Itoa(int(p.Port))
}

// Origin returns scheme://host[:port]. The port is left out when it is
// the default of the scheme.
func (p URLParts) Origin() string {
	return p.Scheme.String() + "://" + p.hostPort(false)
}

// String renders every part, the port included.
func (p URLParts) String() string {
	var b strings.Builder
	b.WriteString(p.Scheme.String())
	b.WriteString("://")
	if p.User != "" {
		b.WriteString(p.User)
		if p.Password != "" {
			b.WriteString(":" + p.Password)
		}
		b.WriteString("@")
	}
	b.WriteString(p.hostPort(true))
	b.WriteString(p.Path)
	return b.String()
}
