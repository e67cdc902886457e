// Package inet describes the platform internet stack the client drives:
// sessions, connections to one endpoint, request handles and FTP file
// handles. Implementations live in the system and fake subpackages.
package inet

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrIOPending is returned by asynchronous sessions when an operation
	// was accepted and will finish with a StatusRequestComplete callback.
	ErrIOPending = errors.New("operation pending")

	ErrHeaderNotFound = errors.New("header not found")
	ErrInvalidHandle  = errors.New("handle is closed")
	ErrNotSupported   = errors.New("operation not supported by service")
)

type Service uint8

const (
	ServiceHTTP Service = 1 + iota
	ServiceFTP
)

func (s Service) String() string {
	switch s {
	case ServiceHTTP:
		return "http"
	case ServiceFTP:
		return "ftp"
	}
	return "unknown"
}

type Endpoint struct {
	Host    string
	Port    uint16
	Service Service
	Secure  bool

	User     string
	Password string

	// Passive requests passive data connections. Only meaningful for FTP.
	Passive bool
}

type SessionOptions struct {
	Agent string

	// Async makes Send, SendEx and EndRequest return ErrIOPending and report
	// completion through Callback.
	Async    bool
	Callback StatusCallback
}

type Stack interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

type Session interface {
	Connect(ctx context.Context, ep Endpoint) (Connection, error)
	// SetCookie stores a cookie in the session cookie store, scoped to rawURL.
	SetCookie(rawURL, name, value string) error
	Close() error
}

type Connection interface {
	// CheckConnection probes whether the endpoint is reachable.
	CheckConnection(ctx context.Context) error
	OpenRequest(ctx context.Context, opts RequestOptions) (Request, error)
	OpenFile(ctx context.Context, path string, mode FileMode) (File, error)
	Close() error
}

type RequestOptions struct {
	Method   string
	Target   string
	Referrer string
}

type HeaderMode uint8

const (
	HeaderAdd HeaderMode = iota
	HeaderReplace
)

type Request interface {
	AddHeader(name, value string, mode HeaderMode) error

	// Send transmits the head and body in one shot and receives the response head.
	Send(ctx context.Context, body []byte) error
	// SendEx transmits the head only, announcing total body bytes.
	// Body bytes follow with Write and the exchange ends with EndRequest.
	SendEx(ctx context.Context, total uint64) error
	Write(p []byte) (int, error)
	EndRequest(ctx context.Context) error

	// Query returns one response item. Index selects among repeated
	// headers and is ignored otherwise.
	Query(item QueryItem, index int) (string, error)
	// Read reads the response body. It returns io.EOF at the end of the body.
	Read(p []byte) (int, error)
	Close() error
}

type FileMode uint8

const (
	FileRead FileMode = 1 + iota
	FileWrite
)

type File interface {
	io.Reader
	io.Writer
	// Close ends the transfer. For written files it commits the upload.
	Close() error
}

type QueryItem uint8

const (
	QueryStatusCode QueryItem = 1 + iota
	QueryContentLength
	QueryContentType
	QueryRawHeaders
	QuerySetCookie
)

func (q QueryItem) String() string {
	switch q {
	case QueryStatusCode:
		return "status code"
	case QueryContentLength:
		return "content length"
	case QueryContentType:
		return "content type"
	case QueryRawHeaders:
		return "raw headers"
	case QuerySetCookie:
		return "set-cookie"
	}
	return "unknown"
}
