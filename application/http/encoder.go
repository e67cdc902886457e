package http

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

type RequestEncoder struct {
	bw *bufio.Writer
}

func NewRequestEncoder(w io.Writer) *RequestEncoder {
	return &RequestEncoder{bw: bufio.NewWriter(w)}
}

var ErrInvalidMethod = errors.New("method is not a valid token")

// EncodeHead writes the request line and header fields, then flushes.
// The body, if any, is written by the caller afterwards.
func (re *RequestEncoder) EncodeHead(head RequestHead) error {
	if !IsValidToken(head.Method) {
		return ErrInvalidMethod
	}
	if head.Target == "" {
		return errors.New("request target should not be empty")
	}

	line := head.Method + string(SP) + head.Target + string(SP) + head.Version.String()
	if err := re.writeLine(line); err != nil {
		return errors.Wrap(err, "writing request line")
	}

	for _, field := range head.Fields {
		if !IsValidToken(field.Name) {
			return errors.Wrapf(ErrMalformedFieldLine, "invalid field name: %q", field.Name)
		}
		if err := re.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// Write a empty line as all the headers are written.
	if err := re.writeLine(""); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request line & header")
	}

	return nil
}

func (re *RequestEncoder) writeLine(line string) error {
	if _, err := re.bw.WriteString(line); err != nil {
		return err
	}
	_, err := re.bw.Write(CRLF)
	return err
}
