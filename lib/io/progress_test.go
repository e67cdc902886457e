package iolib

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressWriter(t *testing.T) {
	var logs, out bytes.Buffer
	mock := clock.NewMock()

	pw := &ProgressWriter{
		W:      &out,
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
		Clock:  mock,
		Name:   "file.bin",
		Total:  10,
	}

	_, err := pw.Write([]byte("hello"))
	require.NoError(t, err)

	// Within the same second nothing new is logged.
	_, err = pw.Write([]byte("wor"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "transferring"))

	mock.Add(2 * time.Second)
	_, err = pw.Write([]byte("ld"))
	require.NoError(t, err)
	pw.Done()

	assert.Equal(t, 2, strings.Count(logs.String(), "transferring"))
	assert.Contains(t, logs.String(), "transfer complete")
	assert.Contains(t, logs.String(), "progress=100.0%")
	assert.Equal(t, int64(10), pw.Transferred())
	assert.Equal(t, "helloworld", out.String())
}
