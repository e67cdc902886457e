package iolib

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var (
	ErrZeroLenDelim  = errors.New("delim has zero length")
	ErrLimitExceeded = errors.New("delim not found within limit")
)

// UntilReader reads a stream up to a delimiter. Bytes read past the
// delimiter stay buffered for the following calls, so one UntilReader can
// serve every message of a persistent connection.
type UntilReader struct {
	br *bufio.Reader
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{br: bufio.NewReader(r)}
}

func (ur *UntilReader) Read(p []byte) (int, error) { return ur.br.Read(p) }

// Buffered reports the number of bytes already read past the last delimiter.
func (ur *UntilReader) Buffered() int { return ur.br.Buffered() }

// ReadUntil returns every byte up to and including delim. If the stream
// fails before delim, the bytes read so far are returned with the error.
func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	return ur.ReadUntilLimit(delim, 0)
}

// ReadUntilLimit is ReadUntil that gives up with [ErrLimitExceeded] once more
// than limit bytes were consumed without seeing delim. Zero means no limit.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	var acc []byte
	last := delim[len(delim)-1]
	for {
		frag, err := ur.br.ReadSlice(last)
		acc = append(acc, frag...)

		if limit > 0 && uint(len(acc)) > limit {
			return nil, ErrLimitExceeded
		}

		switch {
		case err == nil:
			if bytes.HasSuffix(acc, delim) {
				return acc, nil
			}
		case errors.Is(err, bufio.ErrBufferFull):
		default:
			return acc, err
		}
	}
}
