// Package system implements inet.Stack on real sockets. HTTP and HTTPS are
// spoken with the http codec of this module, FTP with jlaffaye/ftp.
package system

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http/cookiejar"
	"sync"
	"time"

	"w3client/application/http"
	"w3client/application/inet"
	"w3client/application/util/domain"
	"w3client/transport"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

var ErrSessionClosed = errors.New("session is closed")

type Options struct {
	DialTimeout time.Duration
	TLSConfig   *tls.Config

	// Proxy routes every connection through a SOCKS5 server when set.
	Proxy *transport.ProxyOptions
	// Dialer replaces the direct dialer. Mostly for tests.
	Dialer transport.Dialer
	// Lookuper resolves hosts for the reachability probe.
	Lookuper domain.Lookuper

	Decode     http.DecodeOptions
	FTPTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		DialTimeout: 30 * time.Second,
		Decode:      http.DefaultDecodeOptions,
		FTPTimeout:  30 * time.Second,
	}
}

type Stack struct {
	logger *slog.Logger
	opts   Options

	plain   transport.Dialer
	secure  transport.Dialer
	lookup  domain.Lookuper
	proxied bool
}

var _ inet.Stack = (*Stack)(nil)

func New(logger *slog.Logger, opts Options) (*Stack, error) {
	d := opts.Dialer
	if d == nil {
		d = transport.Direct(opts.DialTimeout)
	}

	if opts.Proxy != nil {
		proxied, err := transport.SOCKS5(*opts.Proxy, d)
		if err != nil {
			return nil, errors.Wrap(err, "setting up proxy")
		}
		d = proxied
	}

	lookuper := opts.Lookuper
	if lookuper == nil {
		lookuper = domain.NewResolverLookuper(nil)
	}

	return &Stack{
		logger:  logger,
		opts:    opts,
		plain:   d,
		secure:  transport.TLS(d, opts.TLSConfig),
		lookup:  lookuper,
		proxied: opts.Proxy != nil,
	}, nil
}

func (s *Stack) Open(ctx context.Context, opts inet.SessionOptions) (inet.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}

	s.logger.Debug("session opened", "agent", opts.Agent, "async", opts.Async)

	return &session{
		stack:  s,
		opts:   opts,
		jar:    jar,
		logger: s.logger.With("agent", opts.Agent),
	}, nil
}

type session struct {
	stack  *Stack
	opts   inet.SessionOptions
	jar    *cookiejar.Jar
	logger *slog.Logger

	pending sync.WaitGroup // async operations in flight

	mu     sync.Mutex
	closed bool
}

var _ inet.Session = (*session)(nil)

func (ss *session) isClosed() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.closed
}

func (ss *session) Connect(ctx context.Context, ep inet.Endpoint) (inet.Connection, error) {
	if ss.isClosed() {
		return nil, ErrSessionClosed
	}
	if ep.Host == "" {
		return nil, errors.New("empty host")
	}

	switch ep.Service {
	case inet.ServiceHTTP:
		return newHTTPConnection(ss, ep), nil
	case inet.ServiceFTP:
		return dialFTP(ctx, ss, ep)
	}
	return nil, errors.Wrapf(inet.ErrNotSupported, "service %d", ep.Service)
}

func (ss *session) Close() error {
	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return nil
	}
	ss.closed = true
	ss.mu.Unlock()

	// Outstanding operations end once their handles are closed.
	ss.pending.Wait()
	ss.logger.Debug("session closed")
	return nil
}

func (ss *session) notify(status inet.Status, info any) {
	ss.opts.Callback.Notify(status, info)
}

// async runs op on its own goroutine and reports the outcome for req with
// a StatusRequestComplete callback.
func (ss *session) async(req inet.Request, op func() error) error {
	ss.pending.Add(1)
	go func() {
		defer ss.pending.Done()
		err := op()
		if err != nil {
			ss.logger.Debug("async operation failed", "error", err)
		}
		ss.notify(inet.StatusRequestComplete, inet.AsyncResult{Request: req, Err: err})
	}()
	return inet.ErrIOPending
}

// probe resolves host unless the proxy resolves names remotely.
func (ss *session) probe(ctx context.Context, host string) error {
	if ss.stack.proxied {
		return nil
	}

	ss.notify(inet.StatusResolvingName, host)
	addrs, err := ss.stack.lookup.LookupIP(ctx, host)
	if err != nil {
		return errors.Wrapf(err, "lookup for host(%s) failed", host)
	}
	ss.notify(inet.StatusNameResolved, addrs[0].String())
	return nil
}
