package http

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	iolib "w3client/lib/io"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// MaxHeaderBytes limits the size of the status line plus all field lines.
	// Zero means no limit.
	MaxHeaderBytes uint
}

var DefaultDecodeOptions = DecodeOptions{
	MaxHeaderBytes: 1 << 20,
}

var (
	ErrHeaderTooLong       = errors.New("response head exceeds limit")
	ErrMalformedStatusLine = errors.New("status line is malformed")
	ErrMalformedBody       = errors.New("response body framing is malformed")
)

var headTerminator = []byte("\r\n\r\n")

type ResponseDecoder struct {
	ur   *iolib.UntilReader
	opts DecodeOptions
}

func NewResponseDecoder(r io.Reader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{ur: iolib.NewUntilReader(r), opts: opts}
}

// DecodeHead reads the status line and header fields.
func (rd *ResponseDecoder) DecodeHead() (ResponseHead, error) {
	raw, err := rd.ur.ReadUntilLimit(headTerminator, rd.opts.MaxHeaderBytes)
	if err != nil {
		if errors.Is(err, iolib.ErrLimitExceeded) {
			return ResponseHead{}, ErrHeaderTooLong
		}
		return ResponseHead{}, errors.Wrap(err, "reading response head")
	}

	lines := bytes.Split(raw[:len(raw)-len(headTerminator)], CRLF)

	head, err := parseStatusLine(lines[0])
	if err != nil {
		return ResponseHead{}, err
	}

	for _, line := range lines[1:] {
		field, err := ParseField(line)
		if err != nil {
			return ResponseHead{}, errors.Wrap(err, "parsing field line")
		}
		head.Fields = append(head.Fields, field)
	}

	head.Raw = raw
	return head, nil
}

// Body returns the reader for the message body following head.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3
func (rd *ResponseDecoder) Body(head ResponseHead, method string) (io.Reader, error) {
	// 1xx, 204 and 304 never carry a body. Neither does a response to HEAD.
	if method == "HEAD" || head.StatusCode/100 == 1 || head.StatusCode == 204 || head.StatusCode == 304 {
		return bytes.NewReader(nil), nil
	}

	if te, ok := head.Fields.Get("Transfer-Encoding"); ok {
		codings := strings.Split(te, ",")
		last := strings.TrimSpace(codings[len(codings)-1])
		if !strings.EqualFold(last, "chunked") {
			// Delimited by connection close.
			return rd.ur, nil
		}
		return NewChunkedReader(rd.ur), nil
	}

	if cl, ok := head.Fields.Get("Content-Length"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(cl), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedBody, "content-length %q", cl)
		}
		return iolib.LimitReader(rd.ur, n), nil
	}

	// Neither transfer-encoding nor content-length exists.
	// The message is finished when server closes connection.
	return rd.ur, nil
}

func parseStatusLine(line []byte) (ResponseHead, error) {
	parts := bytes.SplitN(line, []byte{SP}, 3)
	if len(parts) < 2 {
		return ResponseHead{}, errors.Wrapf(ErrMalformedStatusLine, "%q", line)
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return ResponseHead{}, errors.Wrap(ErrMalformedStatusLine, err.Error())
	}

	codeStr := string(parts[1])
	code, err := strconv.ParseUint(codeStr, 10, 64)
	if err != nil || len(codeStr) != 3 {
		return ResponseHead{}, errors.Wrapf(ErrMalformedStatusLine, "status code %q", codeStr)
	}

	// reason-phrase is optional.
	var reason string
	if len(parts) == 3 {
		reason = string(parts[2])
	}

	return ResponseHead{Version: ver, StatusCode: uint(code), ReasonPhrase: reason}, nil
}
