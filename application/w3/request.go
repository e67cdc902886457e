package w3

import (
	"context"
	"strconv"

	"w3client/application/inet"

	"github.com/pkg/errors"
)

type Method uint8

const (
	MethodGet Method = iota
	MethodPostURLEncoded
	MethodPostMultipart
)

func (m Method) String() string {
	switch m {
	case MethodPostURLEncoded:
		return "POST (url-encoded)"
	case MethodPostMultipart:
		return "POST (multipart)"
	}
	return "GET"
}

func (m Method) verb() string {
	if m == MethodGet {
		return "GET"
	}
	return "POST"
}

type requestState uint8

const (
	stateOpened requestState = iota
	stateSent
	stateCompleted
)

// request is the one outstanding exchange of a client.
type request struct {
	handle inet.Request
	method Method
	uri    string
	state  requestState
}

func (r *request) sent()     { r.state = stateSent }
func (r *request) complete() { r.state = stateCompleted }

// finalize ends a phased send. It is valid once the previous phase completed.
func (r *request) finalize(ctx context.Context) error {
	if r.state != stateCompleted {
		return ErrRequestState
	}
	return r.handle.EndRequest(ctx)
}

func (r *request) close() error {
	return r.handle.Close()
}

func (r *request) queryUint(item inet.QueryItem, bits int) (uint64, error) {
	raw, err := r.handle.Query(item, 0)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidValue, "%s %q", item, raw)
	}
	return v, nil
}
