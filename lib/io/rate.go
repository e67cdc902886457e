package iolib

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateReader limits the throughput of an [io.Reader] with a token bucket.
// One token is one byte.
type RateReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewRateReader returns r limited to bytesPerSec. A non-positive rate
// returns r untouched.
func NewRateReader(ctx context.Context, r io.Reader, bytesPerSec int) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}
	return &RateReader{ctx: ctx, r: r, limiter: rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)}
}

func (rr *RateReader) Read(p []byte) (int, error) {
	// Never ask for more than the bucket can hold.
	if burst := rr.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := rr.r.Read(p)
	if n > 0 {
		if werr := rr.limiter.WaitN(rr.ctx, n); werr != nil {
			return n, errors.Wrap(werr, "waiting for read tokens")
		}
	}
	return n, err
}

// RateWriter limits the throughput of an [io.Writer] with a token bucket.
type RateWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

// NewRateWriter returns w limited to bytesPerSec. A non-positive rate
// returns w untouched.
func NewRateWriter(ctx context.Context, w io.Writer, bytesPerSec int) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}
	return &RateWriter{ctx: ctx, w: w, limiter: rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)}
}

func (rw *RateWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if burst := rw.limiter.Burst(); len(chunk) > burst {
			chunk = chunk[:burst]
		}

		if err := rw.limiter.WaitN(rw.ctx, len(chunk)); err != nil {
			return total, errors.Wrap(err, "waiting for write tokens")
		}

		n, err := rw.w.Write(chunk)
		total += n
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}
