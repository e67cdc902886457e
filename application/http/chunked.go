package http

import (
	"bytes"
	"io"
	"strconv"

	iolib "w3client/lib/io"

	"github.com/pkg/errors"
)

// ChunkedReader converts a chunked message body into a byte stream.
// Chunk extensions are ignored and trailer fields are kept in Trailers
// once the last chunk is consumed.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
type ChunkedReader struct {
	ur *iolib.UntilReader

	remain uint64 // bytes left in the current chunk
	inside bool
	done   bool

	Trailers Fields
}

var _ io.Reader = (*ChunkedReader)(nil)

func NewChunkedReader(ur *iolib.UntilReader) *ChunkedReader {
	return &ChunkedReader{ur: ur}
}

func (cr *ChunkedReader) Read(b []byte) (int, error) {
	if cr.done {
		return 0, io.EOF
	}

	if !cr.inside {
		size, err := cr.decodeChunkSize()
		if err != nil {
			return 0, errors.Wrap(err, "decoding chunk")
		}

		if size == 0 {
			// Last chunk.
			if err := cr.decodeTrailers(); err != nil {
				return 0, errors.Wrap(err, "decoding trailer")
			}
			cr.done = true
			return 0, io.EOF
		}

		cr.remain, cr.inside = size, true
	}

	if uint64(len(b)) > cr.remain {
		b = b[:cr.remain]
	}

	n, err := cr.ur.Read(b)
	cr.remain -= uint64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, errors.Wrap(err, "reading chunk data")
	}

	if cr.remain == 0 {
		line, err := cr.readLine()
		if err != nil {
			return n, errors.Wrap(err, "reading chunk delimiter")
		}
		if len(line) != 0 {
			return n, errors.Wrap(ErrMalformedBody, "CRLF delimiter not found")
		}
		cr.inside = false
	}

	return n, nil
}

func (cr *ChunkedReader) decodeChunkSize() (uint64, error) {
	line, err := cr.readLine()
	if err != nil {
		return 0, err
	}

	sizeRaw, _, _ := bytes.Cut(line, []byte{';'})
	sizeRaw = bytes.Trim(sizeRaw, string(OWS))

	size, err := strconv.ParseUint(string(sizeRaw), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedBody, "chunk size %q", sizeRaw)
	}

	return size, nil
}

func (cr *ChunkedReader) decodeTrailers() error {
	for {
		line, err := cr.readLine()
		if err != nil {
			return errors.Wrap(err, "reading line")
		}

		if len(line) == 0 {
			return nil
		}

		field, err := ParseField(line)
		if err != nil {
			return errors.Wrap(err, "parsing field")
		}

		cr.Trailers = append(cr.Trailers, field)
	}
}

// readLine reads until CRLF and cuts it.
func (cr *ChunkedReader) readLine() ([]byte, error) {
	line, err := cr.ur.ReadUntilLimit(CRLF, 4096)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return line[:len(line)-len(CRLF)], nil
}
