// Package fake provides an in-memory inet.Stack with fault injection,
// handle accounting and captured traffic for tests.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"w3client/application/http"
	"w3client/application/inet"

	"github.com/pkg/errors"
)

type Op string

const (
	OpOpen        Op = "open"
	OpConnect     Op = "connect"
	OpCheck       Op = "check"
	OpOpenRequest Op = "open request"
	OpAddHeader   Op = "add header"
	OpSetCookie   Op = "set cookie"
	OpSend        Op = "send"
	OpSendEx      Op = "send ex"
	OpWrite       Op = "write"
	OpEndRequest  Op = "end request"
	OpQuery       Op = "query"
	OpRead        Op = "read"
	OpOpenFile    Op = "open file"
	OpFileRead    Op = "file read"
	OpFileWrite   Op = "file write"
)

var (
	ErrInjected     = errors.New("injected fault")
	ErrFileNotFound = errors.New("file not found")
	ErrNoResponse   = errors.New("response not received")
)

type Response struct {
	StatusCode uint
	Fields     http.Fields
	Body       []byte
}

// Request is one captured exchange.
type Request struct {
	Endpoint inet.Endpoint
	Method   string
	Target   string
	Referrer string
	Fields   http.Fields
	Body     []byte
}

type Cookie struct{ URL, Name, Value string }

type Stack struct {
	mu sync.Mutex

	handles     int
	faults      map[Op]error
	asyncFaults map[Op]error
	routes      map[string]Response
	files       map[string][]byte
	writes      map[string][][]byte
	events      []string
	requests    []*Request
	cookies     []Cookie

	hold      bool
	held      []func()
	callbacks sync.WaitGroup
}

var _ inet.Stack = (*Stack)(nil)

func New() *Stack {
	return &Stack{
		faults:      make(map[Op]error),
		asyncFaults: make(map[Op]error),
		routes:      make(map[string]Response),
		files:       make(map[string][]byte),
		writes:      make(map[string][][]byte),
	}
}

// Fail makes every following op fail with err. A nil err uses ErrInjected.
func (s *Stack) Fail(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// FailAsync makes op report err through the completion callback of an
// asynchronous session instead of failing synchronously.
func (s *Stack) FailAsync(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asyncFaults[op] = err
}

func (s *Stack) Clear(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, op)
	delete(s.asyncFaults, op)
}

// Route sets the response served for target. Unrouted targets get 404.
func (s *Stack) Route(target string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[target] = resp
}

func (s *Stack) SetFile(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = slices.Clone(data)
}

func (s *Stack) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	return slices.Clone(data), ok
}

// Writes returns every chunk written to path, in order.
func (s *Stack) Writes(path string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.writes[path])
}

// OpenHandles counts sessions, connections, requests and files not yet closed.
func (s *Stack) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles
}

func (s *Stack) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *Stack) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, *r)
	}
	return out
}

func (s *Stack) Cookies() []Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cookies)
}

// Hold queues completion callbacks of asynchronous sessions until Release
// delivers them.
func (s *Stack) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = true
}

// Release delivers the oldest held callback and reports whether one was
// queued.
func (s *Stack) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.held) == 0 {
		return false
	}
	deliver := s.held[0]
	s.held = s.held[1:]
	s.deliver(deliver)
	return true
}

func (s *Stack) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

// Wait blocks until every pending completion callback returned.
func (s *Stack) Wait() { s.callbacks.Wait() }

func (s *Stack) Open(ctx context.Context, opts inet.SessionOptions) (inet.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.faults[OpOpen]; err != nil {
		return nil, err
	}

	s.handles++
	s.events = append(s.events, "open session")
	return &session{stack: s, opts: opts}, nil
}

// fault must be called with mu held.
func (s *Stack) fault(op Op) error { return s.faults[op] }

// finish must be called with mu held. It reports the outcome of op on req
// the way the session mode demands.
func (s *Stack) finish(opts inet.SessionOptions, op Op, req inet.Request) error {
	if err := s.faults[op]; err != nil {
		return err
	}
	if !opts.Async {
		return nil
	}

	result := inet.AsyncResult{Request: req, Err: s.asyncFaults[op]}
	notify := func() { opts.Callback.Notify(inet.StatusRequestComplete, result) }
	if s.hold {
		s.held = append(s.held, notify)
		return inet.ErrIOPending
	}
	s.deliver(notify)
	return inet.ErrIOPending
}

// deliver must be called with mu held.
func (s *Stack) deliver(notify func()) {
	s.callbacks.Add(1)
	go func() {
		defer s.callbacks.Done()
		notify()
	}()
}

func (s *Stack) release(event string) {
	s.handles--
	s.events = append(s.events, event)
}

type session struct {
	stack  *Stack
	opts   inet.SessionOptions
	closed bool
}

var _ inet.Session = (*session)(nil)

func (ss *session) Connect(ctx context.Context, ep inet.Endpoint) (inet.Connection, error) {
	s := ss.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss.closed {
		return nil, inet.ErrInvalidHandle
	}
	if err := s.fault(OpConnect); err != nil {
		return nil, err
	}
	if ep.Host == "" {
		return nil, errors.New("empty host")
	}

	s.handles++
	s.events = append(s.events, fmt.Sprintf("connect %s:%d", ep.Host, ep.Port))
	return &connection{session: ss, ep: ep}, nil
}

func (ss *session) SetCookie(rawURL, name, value string) error {
	s := ss.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss.closed {
		return inet.ErrInvalidHandle
	}
	if err := s.fault(OpSetCookie); err != nil {
		return err
	}
	s.cookies = append(s.cookies, Cookie{URL: rawURL, Name: name, Value: value})
	return nil
}

func (ss *session) Close() error {
	s := ss.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss.closed {
		return nil
	}
	ss.closed = true
	s.release("close session")
	return nil
}

type connection struct {
	session *session
	ep      inet.Endpoint
	closed  bool
}

var _ inet.Connection = (*connection)(nil)

func (c *connection) CheckConnection(ctx context.Context) error {
	s := c.session.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return inet.ErrInvalidHandle
	}
	return s.fault(OpCheck)
}

func (c *connection) OpenRequest(ctx context.Context, opts inet.RequestOptions) (inet.Request, error) {
	s := c.session.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return nil, inet.ErrInvalidHandle
	}
	if err := s.fault(OpOpenRequest); err != nil {
		return nil, err
	}

	captured := &Request{
		Endpoint: c.ep,
		Method:   opts.Method,
		Target:   opts.Target,
		Referrer: opts.Referrer,
	}
	s.requests = append(s.requests, captured)

	s.handles++
	s.events = append(s.events, "open request "+opts.Method+" "+opts.Target)
	return &request{conn: c, captured: captured}, nil
}

func (c *connection) OpenFile(ctx context.Context, path string, mode inet.FileMode) (inet.File, error) {
	s := c.session.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return nil, inet.ErrInvalidHandle
	}
	if c.ep.Service != inet.ServiceFTP {
		return nil, inet.ErrNotSupported
	}
	if err := s.fault(OpOpenFile); err != nil {
		return nil, err
	}

	f := &file{stack: s, path: path, mode: mode}
	if mode == inet.FileRead {
		data, ok := s.files[path]
		if !ok {
			return nil, errors.Wrap(ErrFileNotFound, path)
		}
		f.r = bytes.NewReader(slices.Clone(data))
	}

	s.handles++
	s.events = append(s.events, "open file "+path)
	return f, nil
}

func (c *connection) Close() error {
	s := c.session.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	s.release("close connection")
	return nil
}

type request struct {
	conn     *connection
	captured *Request
	resp     *Response
	body     *bytes.Reader
	closed   bool
}

var _ inet.Request = (*request)(nil)

func (r *request) stack() *Stack { return r.conn.session.stack }

func (r *request) AddHeader(name, value string, mode inet.HeaderMode) error {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return inet.ErrInvalidHandle
	}
	if err := s.fault(OpAddHeader); err != nil {
		return err
	}
	if mode == inet.HeaderReplace {
		r.captured.Fields.Set(name, value)
	} else {
		r.captured.Fields.Add(name, value)
	}
	return nil
}

func (r *request) Send(ctx context.Context, body []byte) error {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return inet.ErrInvalidHandle
	}
	if err := s.fault(OpSend); err != nil {
		return err
	}
	r.captured.Body = append(r.captured.Body, body...)
	r.respond()
	return s.finish(r.conn.session.opts, OpSend, r)
}

func (r *request) SendEx(ctx context.Context, total uint64) error {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return inet.ErrInvalidHandle
	}
	return s.finish(r.conn.session.opts, OpSendEx, r)
}

func (r *request) Write(p []byte) (int, error) {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return 0, inet.ErrInvalidHandle
	}
	if err := s.fault(OpWrite); err != nil {
		return 0, err
	}
	r.captured.Body = append(r.captured.Body, p...)
	return len(p), nil
}

func (r *request) EndRequest(ctx context.Context) error {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return inet.ErrInvalidHandle
	}
	if err := s.fault(OpEndRequest); err != nil {
		return err
	}
	r.respond()
	return s.finish(r.conn.session.opts, OpEndRequest, r)
}

// respond must be called with mu held.
func (r *request) respond() {
	resp, ok := r.stack().routes[r.captured.Target]
	if !ok {
		resp = Response{StatusCode: 404}
	}
	resp.Fields = slices.Clone(resp.Fields)
	r.resp = &resp
	r.body = bytes.NewReader(resp.Body)
}

func (r *request) Query(item inet.QueryItem, index int) (string, error) {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return "", inet.ErrInvalidHandle
	}
	if err := s.fault(OpQuery); err != nil {
		return "", err
	}
	if r.resp == nil {
		return "", ErrNoResponse
	}

	switch item {
	case inet.QueryStatusCode:
		return strconv.FormatUint(uint64(r.resp.StatusCode), 10), nil
	case inet.QueryContentLength:
		return r.header("Content-Length")
	case inet.QueryContentType:
		return r.header("Content-Type")
	case inet.QueryRawHeaders:
		return r.rawHeaders(), nil
	case inet.QuerySetCookie:
		values := r.resp.Fields.Values("Set-Cookie")
		if index < 0 || index >= len(values) {
			return "", inet.ErrHeaderNotFound
		}
		return values[index], nil
	}
	return "", inet.ErrNotSupported
}

func (r *request) header(name string) (string, error) {
	v, ok := r.resp.Fields.Get(name)
	if !ok {
		return "", inet.ErrHeaderNotFound
	}
	return v, nil
}

func (r *request) rawHeaders() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.resp.StatusCode, reason(r.resp.StatusCode))
	for _, f := range r.resp.Fields {
		b.WriteString(f.Text() + "\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}

func (r *request) Read(p []byte) (int, error) {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return 0, inet.ErrInvalidHandle
	}
	if err := s.fault(OpRead); err != nil {
		return 0, err
	}
	if r.body == nil {
		return 0, ErrNoResponse
	}
	return r.body.Read(p)
}

func (r *request) Close() error {
	s := r.stack()
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	s.release("close request " + r.captured.Method + " " + r.captured.Target)
	return nil
}

type file struct {
	stack  *Stack
	path   string
	mode   inet.FileMode
	r      *bytes.Reader
	buf    bytes.Buffer
	closed bool
}

var _ inet.File = (*file)(nil)

func (f *file) Read(p []byte) (int, error) {
	f.stack.mu.Lock()
	defer f.stack.mu.Unlock()

	if f.closed {
		return 0, inet.ErrInvalidHandle
	}
	if f.mode != inet.FileRead {
		return 0, inet.ErrNotSupported
	}
	if err := f.stack.fault(OpFileRead); err != nil {
		return 0, err
	}
	return f.r.Read(p)
}

func (f *file) Write(p []byte) (int, error) {
	f.stack.mu.Lock()
	defer f.stack.mu.Unlock()

	if f.closed {
		return 0, inet.ErrInvalidHandle
	}
	if f.mode != inet.FileWrite {
		return 0, inet.ErrNotSupported
	}
	if err := f.stack.fault(OpFileWrite); err != nil {
		return 0, err
	}
	f.stack.writes[f.path] = append(f.stack.writes[f.path], slices.Clone(p))
	return f.buf.Write(p)
}

func (f *file) Close() error {
	f.stack.mu.Lock()
	defer f.stack.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if f.mode == inet.FileWrite {
		f.stack.files[f.path] = slices.Clone(f.buf.Bytes())
	}
	f.stack.release("close file " + f.path)
	return nil
}

func reason(code uint) string {
	reasons := map[uint]string{
		200: "OK",
		201: "Created",
		204: "No Content",
		301: "Moved Permanently",
		302: "Found",
		400: "Bad Request",
		404: "Not Found",
		500: "Internal Server Error",
	}
	if r, ok := reasons[code]; ok {
		return r
	}
	return "Unknown"
}
