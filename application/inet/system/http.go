package system

import (
	"context"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"w3client/application/http"
	"w3client/application/inet"
	"w3client/transport"

	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrNoResponse       = errors.New("response not received")
	ErrRequestSent      = errors.New("request already sent")
)

const defaultAccept = "text/html, application/xhtml+xml, */*;q=0.8"

// wire is one transport connection with its codec.
type wire struct {
	conn net.Conn
	enc  *http.RequestEncoder
	dec  *http.ResponseDecoder
}

type httpConnection struct {
	session *session
	ep      inet.Endpoint
	dialer  transport.Dialer
	addr    string

	mu     sync.Mutex
	idle   *wire
	closed bool
}

var _ inet.Connection = (*httpConnection)(nil)

func newHTTPConnection(ss *session, ep inet.Endpoint) *httpConnection {
	d := ss.stack.plain
	if ep.Secure {
		d = ss.stack.secure
	}

	return &httpConnection{
		session: ss,
		ep:      ep,
		dialer:  d,
		addr:    net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.Port))),
	}
}

func (c *httpConnection) CheckConnection(ctx context.Context) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}
	return c.session.probe(ctx, c.ep.Host)
}

func (c *httpConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *httpConnection) OpenRequest(ctx context.Context, opts inet.RequestOptions) (inet.Request, error) {
	if c.isClosed() {
		return nil, ErrConnectionClosed
	}
	if opts.Method == "" || !http.IsValidToken(opts.Method) {
		return nil, errors.Wrapf(http.ErrInvalidMethod, "%q", opts.Method)
	}

	target := opts.Target
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}

	scheme := "http"
	if c.ep.Secure {
		scheme = "https"
	}
	u, err := url.Parse(scheme + "://" + c.hostField() + target)
	if err != nil {
		return nil, errors.Wrap(err, "parsing request url")
	}

	req := &httpRequest{
		conn:   c,
		method: opts.Method,
		target: target,
		url:    u,
	}
	req.fields.Add("Host", c.hostField())
	if agent := c.session.opts.Agent; agent != "" {
		req.fields.Add("User-Agent", agent)
	}
	req.fields.Add("Accept", defaultAccept)
	if opts.Referrer != "" {
		req.fields.Add("Referer", opts.Referrer)
	}

	return req, nil
}

func (c *httpConnection) OpenFile(ctx context.Context, path string, mode inet.FileMode) (inet.File, error) {
	return nil, errors.Wrap(inet.ErrNotSupported, "file transfer over http")
}

// hostField omits the port when it is the default of the scheme.
func (c *httpConnection) hostField() string {
	if (!c.ep.Secure && c.ep.Port == 80) || (c.ep.Secure && c.ep.Port == 443) {
		return c.ep.Host
	}
	return c.addr
}

// acquire returns the idle wire or dials a new one.
func (c *httpConnection) acquire(ctx context.Context) (*wire, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if w := c.idle; w != nil {
		c.idle = nil
		c.mu.Unlock()
		return w, nil
	}
	c.mu.Unlock()

	c.session.notify(inet.StatusConnectingToServer, c.addr)
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", c.addr)
	}
	c.session.notify(inet.StatusConnectedToServer, c.addr)

	return &wire{
		conn: conn,
		enc:  http.NewRequestEncoder(conn),
		dec:  http.NewResponseDecoder(conn, c.session.stack.opts.Decode),
	}, nil
}

// release keeps w for the next request, or closes it if one is kept already.
func (c *httpConnection) release(w *wire) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.idle != nil {
		w.conn.Close()
		return
	}
	c.idle = w
}

func (c *httpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.idle != nil {
		c.session.notify(inet.StatusClosingConnection, c.addr)
		err := c.idle.conn.Close()
		c.idle = nil
		c.session.notify(inet.StatusConnectionClosed, c.addr)
		if err != nil {
			return errors.Wrap(err, "closing idle connection")
		}
	}
	return nil
}

type httpRequest struct {
	conn   *httpConnection
	method string
	target string
	url    *url.URL
	fields http.Fields

	mu     sync.Mutex // guards the fields below
	wire   *wire
	sent   bool
	head   *http.ResponseHead
	body   io.Reader
	eof    bool
	closed bool
}

var _ inet.Request = (*httpRequest)(nil)

func (r *httpRequest) AddHeader(name, value string, mode inet.HeaderMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return inet.ErrInvalidHandle
	}
	if r.sent {
		return ErrRequestSent
	}
	if !http.IsValidToken(name) {
		return errors.Wrapf(http.ErrMalformedFieldLine, "invalid field name: %q", name)
	}
	if !http.IsValidFieldValue(value) {
		return errors.Wrapf(http.ErrMalformedFieldLine, "invalid field value: %q", value)
	}

	if mode == inet.HeaderReplace {
		r.fields.Set(name, value)
	} else {
		r.fields.Add(name, value)
	}
	return nil
}

func (r *httpRequest) Send(ctx context.Context, body []byte) error {
	op := func() error {
		if err := r.begin(ctx, uint64(len(body)), body != nil); err != nil {
			return err
		}
		if len(body) > 0 {
			if _, err := r.Write(body); err != nil {
				return err
			}
		}
		return r.receive(ctx)
	}

	if r.conn.session.opts.Async {
		return r.conn.session.async(r, op)
	}
	return op()
}

func (r *httpRequest) SendEx(ctx context.Context, total uint64) error {
	op := func() error { return r.begin(ctx, total, true) }

	if r.conn.session.opts.Async {
		return r.conn.session.async(r, op)
	}
	return op()
}

func (r *httpRequest) EndRequest(ctx context.Context) error {
	op := func() error { return r.receive(ctx) }

	if r.conn.session.opts.Async {
		return r.conn.session.async(r, op)
	}
	return op()
}

// begin writes the request head.
func (r *httpRequest) begin(ctx context.Context, total uint64, hasBody bool) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return inet.ErrInvalidHandle
	}
	if r.sent {
		r.mu.Unlock()
		return ErrRequestSent
	}
	r.sent = true
	r.mu.Unlock()

	w, err := r.conn.acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "getting connection")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		w.conn.Close()
		return inet.ErrInvalidHandle
	}
	r.wire = w
	r.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := w.conn.SetDeadline(deadline); err != nil {
		return errors.Wrap(err, "setting deadline")
	}
	stop := interruptOnDone(ctx, w.conn)
	defer stop()

	fields := append(http.Fields(nil), r.fields...)
	if cookie, ok := r.conn.session.cookieHeader(r.url); ok {
		fields.Set("Cookie", cookie)
	}
	if _, ok := fields.Get("Content-Length"); hasBody && !ok {
		fields.Set("Content-Length", strconv.FormatUint(total, 10))
	}

	r.conn.session.notify(inet.StatusSendingRequest, r.target)
	head := http.RequestHead{
		Method:  r.method,
		Target:  r.target,
		Version: http.Version11,
		Fields:  fields,
	}
	if err := w.enc.EncodeHead(head); err != nil {
		return errors.Wrap(err, "writing request")
	}

	return nil
}

func (r *httpRequest) Write(p []byte) (int, error) {
	r.mu.Lock()
	w, closed := r.wire, r.closed
	r.mu.Unlock()

	if closed {
		return 0, inet.ErrInvalidHandle
	}
	if w == nil {
		return 0, errors.New("request head not sent")
	}

	n, err := w.conn.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "writing request body")
	}
	return n, nil
}

// receive reads the response head and prepares the body reader.
func (r *httpRequest) receive(ctx context.Context) error {
	r.mu.Lock()
	w, closed := r.wire, r.closed
	r.mu.Unlock()

	if closed {
		return inet.ErrInvalidHandle
	}
	if w == nil {
		return errors.New("request head not sent")
	}
	r.conn.session.notify(inet.StatusRequestSent, r.target)

	stop := interruptOnDone(ctx, w.conn)
	defer stop()

	r.conn.session.notify(inet.StatusReceivingResponse, r.target)
	var (
		head http.ResponseHead
		err  error
	)
	for {
		head, err = w.dec.DecodeHead()
		if err != nil {
			return errors.Wrap(err, "reading response")
		}
		// Interim responses are skipped.
		if head.StatusCode/100 != 1 || head.StatusCode == 101 {
			break
		}
	}

	body, err := w.dec.Body(head, r.method)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	r.conn.session.storeSetCookies(r.url, head.Fields.Values("Set-Cookie"))
	r.conn.session.notify(inet.StatusResponseReceived, len(head.Raw))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = &head
	r.body = body
	return nil
}

func (r *httpRequest) Query(item inet.QueryItem, index int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", inet.ErrInvalidHandle
	}
	if r.head == nil {
		return "", ErrNoResponse
	}

	header := func(name string) (string, error) {
		v, ok := r.head.Fields.Get(name)
		if !ok {
			return "", inet.ErrHeaderNotFound
		}
		return v, nil
	}

	switch item {
	case inet.QueryStatusCode:
		return strconv.FormatUint(uint64(r.head.StatusCode), 10), nil
	case inet.QueryContentLength:
		return header("Content-Length")
	case inet.QueryContentType:
		return header("Content-Type")
	case inet.QueryRawHeaders:
		return string(r.head.Raw), nil
	case inet.QuerySetCookie:
		values := r.head.Fields.Values("Set-Cookie")
		if index < 0 || index >= len(values) {
			return "", inet.ErrHeaderNotFound
		}
		return values[index], nil
	}
	return "", errors.Wrapf(inet.ErrNotSupported, "query %s", item)
}

func (r *httpRequest) Read(p []byte) (int, error) {
	r.mu.Lock()
	body, closed := r.body, r.closed
	r.mu.Unlock()

	if closed {
		return 0, inet.ErrInvalidHandle
	}
	if body == nil {
		return 0, ErrNoResponse
	}

	n, err := body.Read(p)
	if errors.Is(err, io.EOF) {
		r.mu.Lock()
		r.eof = true
		r.mu.Unlock()
	}
	return n, err
}

func (r *httpRequest) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.conn.session.notify(inet.StatusHandleClosing, r.target)

	if r.wire == nil {
		return nil
	}
	if r.reusable() {
		r.wire.conn.SetDeadline(time.Time{})
		r.conn.release(r.wire)
		return nil
	}
	if err := r.wire.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "closing connection")
	}
	return nil
}

// reusable reports whether the wire can carry another request.
// The body must be fully consumed and framed by length or chunks.
func (r *httpRequest) reusable() bool {
	if !r.eof || r.head == nil {
		return false
	}
	if v, ok := r.head.Fields.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		return false
	}
	if te, ok := r.head.Fields.Get("Transfer-Encoding"); ok {
		return strings.HasSuffix(strings.ToLower(strings.TrimSpace(te)), "chunked")
	}
	_, hasLength := r.head.Fields.Get("Content-Length")
	return hasLength
}

// interruptOnDone unblocks pending I/O on conn once ctx is done.
func interruptOnDone(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
}
