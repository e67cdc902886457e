package w3

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrConnectFailed  = errors.New("connect failed")
	ErrRequestFailed  = errors.New("request failed")
	ErrHeaderRejected = errors.New("header rejected")
	ErrCookieRejected = errors.New("cookie rejected")
	ErrNotConnected   = errors.New("not connected")
	ErrQueryFailed    = errors.New("query failed")
	ErrTimeout        = errors.New("wait timed out")
	ErrCancelled      = errors.New("wait cancelled")
	ErrRequestState   = errors.New("request is not in the required state")
	ErrInvalidOptions = errors.New("invalid options")
)

var (
	ErrNoRequest      = errors.New("no request issued")
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrInvalidValue   = errors.New("malformed response value")
)

// OpError reports a failed client operation. Kind is one of the sentinel
// errors above and Err is the underlying cause, if any. Both match with
// errors.Is.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
