package inet

// Status is a state transition reported to a StatusCallback.
type Status uint8

const (
	StatusResolvingName Status = 1 + iota
	StatusNameResolved
	StatusConnectingToServer
	StatusConnectedToServer
	StatusSendingRequest
	StatusRequestSent
	StatusReceivingResponse
	StatusResponseReceived
	StatusClosingConnection
	StatusConnectionClosed
	StatusHandleClosing
	StatusRequestComplete
)

var statusNames = map[Status]string{
	StatusResolvingName:      "resolving name",
	StatusNameResolved:       "name resolved",
	StatusConnectingToServer: "connecting to server",
	StatusConnectedToServer:  "connected to server",
	StatusSendingRequest:     "sending request",
	StatusRequestSent:        "request sent",
	StatusReceivingResponse:  "receiving response",
	StatusResponseReceived:   "response received",
	StatusClosingConnection:  "closing connection",
	StatusConnectionClosed:   "connection closed",
	StatusHandleClosing:      "handle closing",
	StatusRequestComplete:    "request complete",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// StatusCallback is invoked on a goroutine owned by the stack.
type StatusCallback func(status Status, info any)

// AsyncResult is the info passed along with StatusRequestComplete.
type AsyncResult struct {
	// Request is the handle whose operation completed.
	Request Request
	Err     error
}

// Notify calls cb if it is set.
func (cb StatusCallback) Notify(status Status, info any) {
	if cb != nil {
		cb(status, info)
	}
}
