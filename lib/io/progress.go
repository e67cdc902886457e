package iolib

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// ProgressWriter logs transfer progress at most once per second.
// A negative total means the size is unknown.
type ProgressWriter struct {
	W      io.Writer
	Logger *slog.Logger
	Clock  clock.Clock
	Name   string
	Total  int64

	transferred int64
	startTime   time.Time
	lastLog     time.Time
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	now := pw.Clock.Now()
	if pw.startTime.IsZero() {
		pw.startTime = now
	}

	n, err := pw.W.Write(p)
	pw.transferred += int64(n)

	if now.Sub(pw.lastLog) >= time.Second {
		pw.lastLog = now
		pw.log("transferring")
	}

	return n, err
}

// Transferred reports the number of bytes written so far.
func (pw *ProgressWriter) Transferred() int64 { return pw.transferred }

// Done logs the final line.
func (pw *ProgressWriter) Done() { pw.log("transfer complete") }

func (pw *ProgressWriter) log(msg string) {
	elapsed := pw.Clock.Since(pw.startTime)
	attrs := []any{
		"name", pw.Name,
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", pw.transferred,
		"total", pw.Total,
	}
	if pw.Total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.Total)*100))
	}
	pw.Logger.Info(msg, attrs...)
}
