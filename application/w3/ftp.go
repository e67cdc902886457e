package w3

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"w3client/application/inet"
	iolib "w3client/lib/io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// remoteFile is a file transfer kept open across chunk calls.
type remoteFile struct {
	path   string
	mode   inet.FileMode
	handle inet.File
}

func (c *Client) closeFile() error {
	if c.file == nil {
		return nil
	}
	f := c.file
	c.file = nil
	if err := f.handle.Close(); err != nil {
		return errors.Wrapf(err, "closing remote file %s", f.path)
	}
	return nil
}

// openFile opens path for a transfer in mode. With resume set, a chunk
// transfer still open on the same path and mode is continued instead.
func (c *Client) openFile(ctx context.Context, path string, mode inet.FileMode, resume bool) (*remoteFile, error) {
	if resume && c.file != nil && c.file.path == path && c.file.mode == mode {
		return c.file, nil
	}
	if err := c.closeFile(); err != nil {
		c.logger.Warn("closing previous transfer", "error", err)
	}

	handle, err := c.conn.handle.OpenFile(ctx, path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening remote file %s", path)
	}
	c.file = &remoteFile{path: path, mode: mode, handle: handle}
	return c.file, nil
}

// GetFile downloads uri into the local file dest. The data lands in a
// temporary file next to dest that is renamed once the transfer completed.
func (c *Client) GetFile(ctx context.Context, uri, dest string) (err error) {
	const op = "get file"

	ctx, span := c.tracer.Start(ctx, "w3.GetFile", trace.WithAttributes(attribute.String("w3.uri", uri)))
	defer func() { endSpan(span, err) }()

	if c.conn == nil {
		return c.fail(op, uri, ErrNotConnected, nil)
	}

	f, err := c.openFile(ctx, uri, inet.FileRead, false)
	if err != nil {
		return c.fail(op, uri, ErrRequestFailed, err)
	}
	defer c.closeFile()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "creating temp file"))
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	pw := &iolib.ProgressWriter{
		W:      iolib.NewRateWriter(ctx, tmp, c.opts.TransferRate),
		Logger: c.logger,
		Clock:  c.clock,
		Name:   uri,
		Total:  -1,
	}

	buf := make([]byte, c.opts.BufferSize)
	for {
		n, rerr := f.handle.Read(buf)
		if n > 0 {
			if _, err := iolib.WriteFull(pw, buf[:n]); err != nil {
				return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "writing local file"))
			}
		}
		if errors.Is(rerr, io.EOF) || (n == 0 && rerr == nil) {
			break
		}
		if rerr != nil {
			return c.fail(op, uri, ErrRequestFailed, errors.Wrap(rerr, "reading remote file"))
		}
	}
	pw.Done()

	if err := c.closeFile(); err != nil {
		return c.fail(op, uri, ErrRequestFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "closing temp file"))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "renaming temp file"))
	}

	return nil
}

// PutFile uploads the local file src to uri in BufferSize chunks.
func (c *Client) PutFile(ctx context.Context, uri, src string) (err error) {
	const op = "put file"

	ctx, span := c.tracer.Start(ctx, "w3.PutFile", trace.WithAttributes(attribute.String("w3.uri", uri)))
	defer func() { endSpan(span, err) }()

	if c.conn == nil {
		return c.fail(op, uri, ErrNotConnected, nil)
	}

	local, err := os.Open(src)
	if err != nil {
		return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "opening local file"))
	}
	defer local.Close()

	total := int64(-1)
	if info, err := local.Stat(); err == nil {
		total = info.Size()
	}

	f, err := c.openFile(ctx, uri, inet.FileWrite, false)
	if err != nil {
		return c.fail(op, uri, ErrRequestFailed, err)
	}
	defer c.closeFile()

	r := iolib.NewRateReader(ctx, local, c.opts.TransferRate)
	pw := &iolib.ProgressWriter{
		W:      f.handle,
		Logger: c.logger,
		Clock:  c.clock,
		Name:   uri,
		Total:  total,
	}

	buf := make([]byte, c.opts.BufferSize)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := iolib.WriteFull(pw, buf[:n]); err != nil {
				return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "writing remote file"))
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return c.fail(op, uri, ErrRequestFailed, errors.Wrap(rerr, "reading local file"))
		}
	}
	pw.Done()

	// Closing commits the upload.
	if err := c.closeFile(); err != nil {
		return c.fail(op, uri, ErrRequestFailed, err)
	}
	return nil
}

// GetFileChunk reads the next len(buf) bytes of uri. The transfer stays
// open between calls and is closed by the first short read. It returns
// io.EOF once nothing is left.
func (c *Client) GetFileChunk(ctx context.Context, uri string, buf []byte) (int, error) {
	const op = "get file chunk"

	if c.conn == nil {
		return 0, c.fail(op, uri, ErrNotConnected, nil)
	}

	f, err := c.openFile(ctx, uri, inet.FileRead, true)
	if err != nil {
		return 0, c.fail(op, uri, ErrRequestFailed, err)
	}

	n, err := io.ReadFull(f.handle, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if err := c.closeFile(); err != nil {
			return n, c.fail(op, uri, ErrRequestFailed, err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}

	c.closeFile()
	return n, c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "reading remote file"))
}

// PutFileChunk writes buf to uri. The transfer stays open between calls;
// a chunk shorter than BufferSize, an empty one included, completes it.
func (c *Client) PutFileChunk(ctx context.Context, uri string, buf []byte) error {
	const op = "put file chunk"

	if c.conn == nil {
		return c.fail(op, uri, ErrNotConnected, nil)
	}

	f, err := c.openFile(ctx, uri, inet.FileWrite, true)
	if err != nil {
		return c.fail(op, uri, ErrRequestFailed, err)
	}

	if _, err := iolib.WriteFull(f.handle, buf); err != nil {
		c.closeFile()
		return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "writing remote file"))
	}

	if len(buf) < c.opts.BufferSize {
		if err := c.closeFile(); err != nil {
			return c.fail(op, uri, ErrRequestFailed, err)
		}
	}
	return nil
}
