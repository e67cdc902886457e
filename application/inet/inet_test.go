package inet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "request complete", StatusRequestComplete.String())
	assert.Equal(t, "resolving name", StatusResolvingName.String())
	assert.Equal(t, "unknown", Status(0).String())
}

func TestStatusCallbackNotify(t *testing.T) {
	var nilCallback StatusCallback
	assert.NotPanics(t, func() { nilCallback.Notify(StatusRequestComplete, nil) })

	var got []Status
	cb := StatusCallback(func(status Status, info any) { got = append(got, status) })
	cb.Notify(StatusRequestSent, nil)
	cb.Notify(StatusRequestComplete, AsyncResult{})
	assert.Equal(t, []Status{StatusRequestSent, StatusRequestComplete}, got)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "http", ServiceHTTP.String())
	assert.Equal(t, "ftp", ServiceFTP.String())
	assert.Equal(t, "content length", QueryContentLength.String())
	assert.Equal(t, "unknown", QueryItem(42).String())
}
