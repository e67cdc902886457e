package w3

import (
	"context"
	"io"
	"log/slog"

	"w3client/application/inet"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

// Soft defaults of the response queries.
const (
	FallbackStatusCode    uint32 = 404
	FallbackContentLength uint64 = 0
)

// sender transmits a freshly opened request.
type sender interface {
	send(ctx context.Context, r *request, payload []byte) error
}

// Client is the blocking client. It is not safe for concurrent use.
type Client struct {
	stack  inet.Stack
	logger *slog.Logger
	clock  clock.Clock
	opts   Options

	tracer   trace.Tracer
	limiter  *rate.Limiter
	boundary string

	sessionOpts inet.SessionOptions
	sender      sender

	conn    *connection
	req     *request
	file    *remoteFile
	cookies CookieJar
	body    PostBody
	uri     string
}

func New(
	stack inet.Stack,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		stack:       stack,
		logger:      logger,
		clock:       clock,
		opts:        opts,
		boundary:    opts.Boundary,
		sessionOpts: inet.SessionOptions{Agent: opts.Agent},
	}
	c.sender = c

	if c.boundary == "" {
		c.boundary = newBoundary()
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	c.tracer = tp.Tracer("w3client/application/w3")

	if opts.RequestRate > 0 {
		burst := max(opts.RequestBurst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestRate), burst)
	}

	return c, nil
}

// Boundary returns the multipart boundary of this client.
func (c *Client) Boundary() string { return c.boundary }

func (c *Client) Connected() bool { return c.conn != nil }

// URI is the target of the last successful Issue.
func (c *Client) URI() string { return c.uri }

// Connect parses rawURL and connects to it. Non-empty user and password
// take precedence over credentials embedded in rawURL.
func (c *Client) Connect(ctx context.Context, rawURL, user, password string) error {
	parts := ParseURL(rawURL)
	if user != "" {
		parts.User, parts.Password = user, password
	}
	return c.connect(ctx, parts)
}

// ConnectHost connects with explicit parts. A zero port means the default
// port of scheme.
func (c *Client) ConnectHost(ctx context.Context, host string, port uint16, user, password string, scheme Scheme) error {
	if port == 0 {
		port = scheme.DefaultPort()
	}
	return c.connect(ctx, URLParts{
		Scheme:   scheme,
		User:     user,
		Password: password,
		Host:     host,
		Port:     port,
		Path:     "/",
	})
}

func (c *Client) connect(ctx context.Context, parts URLParts) (err error) {
	const op = "connect"

	ctx, span := c.tracer.Start(ctx, "w3.Connect", trace.WithAttributes(
		attribute.String("w3.scheme", parts.Scheme.String()),
		attribute.String("w3.host", parts.Host),
		attribute.Int("w3.port", int(parts.Port)),
	))
	defer func() { endSpan(span, err) }()

	if c.conn != nil {
		if err := c.Close(); err != nil {
			c.logger.Warn("closing previous connection", "error", err)
		}
	}

	conn, err := openConnection(ctx, c.stack, c.sessionOpts, parts, !c.opts.SkipProbe)
	if err != nil {
		return c.fail(op, parts.Origin(), ErrConnectFailed, err)
	}

	c.conn = conn
	c.uri = parts.Path
	c.cookies.Clear()
	c.body.Clear()

	c.logger.Debug("connected", "origin", parts.Origin(), "agent", conn.agent)
	return nil
}

// Close releases the file transfer, the request and the connection, in
// that order.
func (c *Client) Close() error {
	var errs []error
	if err := c.closeFile(); err != nil {
		errs = append(errs, err)
	}
	if err := c.closeRequest(); err != nil {
		errs = append(errs, err)
	}
	if c.conn != nil {
		if err := c.conn.close(); err != nil {
			errs = append(errs, err)
		}
		c.conn = nil
		c.logger.Debug("connection closed")
	}

	if len(errs) > 0 {
		return errors.Wrap(errs[0], "closing client")
	}
	return nil
}

func (c *Client) closeRequest() error {
	if c.req == nil {
		return nil
	}
	r := c.req
	c.req = nil
	if err := r.close(); err != nil {
		return errors.Wrapf(err, "closing request %s", r.uri)
	}
	return nil
}

// AddCookie adds a cookie sent with every following request.
func (c *Client) AddCookie(name string, value Value) { c.cookies.Add(name, value) }

func (c *Client) ClearCookies() { c.cookies.Clear() }

// AddField adds a form field sent with POST requests.
func (c *Client) AddField(name string, value Value) { c.body.Add(name, value) }

// AddFileField attaches the local file at path to multipart requests.
func (c *Client) AddFileField(name, path string) { c.body.AddFile(name, path) }

// Issue sends a request for uri. Any previous request is closed first.
func (c *Client) Issue(ctx context.Context, uri string, method Method, referrer string) (err error) {
	const op = "issue"

	ctx, span := c.tracer.Start(ctx, "w3.Issue", trace.WithAttributes(
		attribute.String("w3.uri", uri),
		attribute.String("w3.method", method.String()),
	))
	defer func() { endSpan(span, err) }()

	if c.conn == nil {
		return c.fail(op, uri, ErrNotConnected, nil)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "waiting for rate limiter"))
		}
	}

	if err := c.closeRequest(); err != nil {
		c.logger.Warn("closing previous request", "error", err)
	}

	var (
		payload     []byte
		contentType string
	)
	switch method {
	case MethodGet:
	case MethodPostURLEncoded:
		payload = c.body.Encoded()
		contentType = "application/x-www-form-urlencoded"
	case MethodPostMultipart:
		if payload, err = c.body.Multipart(c.boundary); err != nil {
			return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "encoding multipart body"))
		}
		contentType = multipartContentType(c.boundary)
	default:
		return c.fail(op, uri, ErrRequestFailed, errors.Errorf("unknown method %d", method))
	}

	handle, err := c.conn.handle.OpenRequest(ctx, inet.RequestOptions{
		Method:   method.verb(),
		Target:   uri,
		Referrer: referrer,
	})
	if err != nil {
		return c.fail(op, uri, ErrRequestFailed, errors.Wrap(err, "opening request"))
	}

	success := false
	defer func() {
		if !success {
			handle.Close()
		}
	}()

	if err := handle.AddHeader("Accept", "*/*", inet.HeaderReplace); err != nil {
		return c.fail(op, uri, ErrHeaderRejected, err)
	}

	if c.cookies.Len() > 0 {
		if err := c.cookies.Apply(c.conn.session, c.conn.parts, uri); err != nil {
			return c.fail(op, uri, ErrCookieRejected, err)
		}
	}

	if method != MethodGet {
		if err := handle.AddHeader("Content-Type", contentType, inet.HeaderReplace); err != nil {
			return c.fail(op, uri, ErrHeaderRejected, err)
		}
		if err := handle.AddHeader("Content-Length", formatUint(uint64(len(payload))), inet.HeaderReplace); err != nil {
			return c.fail(op, uri, ErrHeaderRejected, err)
		}
	}

	r := &request{handle: handle, method: method, uri: uri}
	if err := c.sender.send(ctx, r, payload); err != nil {
		return c.fail(op, uri, ErrRequestFailed, err)
	}

	success = true
	c.req = r
	c.uri = uri

	c.logger.Debug("request issued", "uri", uri, "method", method.String(), "bytes", len(payload))
	return nil
}

// send transmits head and body in one shot.
func (c *Client) send(ctx context.Context, r *request, payload []byte) error {
	if err := r.handle.Send(ctx, payload); err != nil {
		return errors.Wrap(err, "sending request")
	}
	r.complete()
	return nil
}

func (c *Client) query(op string, item inet.QueryItem, index int) (string, error) {
	if c.req == nil {
		return "", &OpError{Op: op, Kind: ErrQueryFailed, Err: ErrNoRequest}
	}
	v, err := c.req.handle.Query(item, index)
	if err != nil {
		c.logger.Debug("query failed", "op", op, "uri", c.req.uri, "error", err)
		return "", &OpError{Op: op, Kind: ErrQueryFailed, Err: err}
	}
	return v, nil
}

func (c *Client) queryUint(op string, item inet.QueryItem, bits int) (uint64, error) {
	if c.req == nil {
		return 0, &OpError{Op: op, Kind: ErrQueryFailed, Err: ErrNoRequest}
	}
	v, err := c.req.queryUint(item, bits)
	if err != nil {
		c.logger.Debug("query failed", "op", op, "uri", c.req.uri, "error", err)
		return 0, &OpError{Op: op, Kind: ErrQueryFailed, Err: err}
	}
	return v, nil
}

// LookupStatusCode reports the response status, or ErrQueryFailed.
func (c *Client) LookupStatusCode() (uint32, error) {
	v, err := c.queryUint("status code", inet.QueryStatusCode, 32)
	return uint32(v), err
}

// StatusCode is LookupStatusCode with FallbackStatusCode on failure.
func (c *Client) StatusCode() uint32 {
	code, err := c.LookupStatusCode()
	if err != nil {
		return FallbackStatusCode
	}
	return code
}

func (c *Client) LookupContentLength() (uint64, error) {
	return c.queryUint("content length", inet.QueryContentLength, 64)
}

// ContentLength is LookupContentLength with FallbackContentLength on failure.
func (c *Client) ContentLength() uint64 {
	n, err := c.LookupContentLength()
	if err != nil {
		return FallbackContentLength
	}
	return n
}

func (c *Client) ContentType() (string, bool) {
	v, err := c.query("content type", inet.QueryContentType, 0)
	return v, err == nil
}

// RawHeaders returns the status line and header fields as received.
func (c *Client) RawHeaders() []byte {
	v, err := c.query("raw headers", inet.QueryRawHeaders, 0)
	if err != nil {
		return nil
	}
	return []byte(v)
}

// CookieHeader returns the index-th Set-Cookie of the response.
func (c *Client) CookieHeader(index int) (string, bool) {
	v, err := c.query("cookie header", inet.QuerySetCookie, index)
	return v, err == nil
}

// ReadBody reads up to len(buf) bytes of the response body. It returns
// io.EOF once the body is exhausted.
func (c *Client) ReadBody(buf []byte) (int, error) {
	const op = "read body"

	if c.req == nil {
		return 0, c.fail(op, c.uri, ErrRequestFailed, ErrNoRequest)
	}

	n, err := c.req.handle.Read(buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, io.EOF
	}
	return n, c.fail(op, c.req.uri, ErrRequestFailed, err)
}

func (c *Client) fail(op, uri string, kind, err error) error {
	opErr := &OpError{Op: op, Kind: kind, Err: err}
	c.logger.Error("operation failed", "op", op, "uri", uri, "error", opErr)
	return opErr
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
