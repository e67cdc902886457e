// Package transport provides the dialers the system internet stack opens
// its connections with.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

var (
	ErrConnRefused        = errors.New("connection refused")
	ErrNetUnreachable     = errors.New("network unreachable")
	ErrAddrAlreadyInUse   = errors.New("address already in use")
	ErrConnListenerClosed = errors.New("conn listener is closed")
)

type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Direct dials straight to the destination.
// Refused and unreachable destinations are reported as ErrConnRefused and
// ErrNetUnreachable.
func Direct(timeout time.Duration) Dialer {
	d := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return dialerFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		switch {
		case err == nil:
			return conn, nil
		case errors.Is(err, syscall.ECONNREFUSED):
			return nil, errors.Wrap(ErrConnRefused, err.Error())
		case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
			return nil, errors.Wrap(ErrNetUnreachable, err.Error())
		}
		return nil, err
	})
}

type ProxyOptions struct {
	// Address of the SOCKS5 server as host:port.
	Address  string
	User     string
	Password string
}

// SOCKS5 dials through a SOCKS5 proxy reached with forward.
func SOCKS5(opts ProxyOptions, forward Dialer) (Dialer, error) {
	var auth *proxy.Auth
	if opts.User != "" {
		auth = &proxy.Auth{User: opts.User, Password: opts.Password}
	}

	d, err := proxy.SOCKS5("tcp", opts.Address, auth, forwardDialer{forward})
	if err != nil {
		return nil, errors.Wrap(err, "creating socks5 dialer")
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support context")
	}

	return dialerFunc(cd.DialContext), nil
}

// TLS wraps every connection from d in a client-side TLS session.
// If cfg has no ServerName, the host part of addr is used.
func TLS(d Dialer, cfg *tls.Config) Dialer {
	return dialerFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		c := cfg.Clone()
		if c == nil {
			c = &tls.Config{}
		}
		if c.ServerName == "" {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			c.ServerName = host
		}

		tc := tls.Client(conn, c)
		if err := tc.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "tls handshake")
		}

		return tc, nil
	})
}

type dialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (f dialerFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// forwardDialer adapts a [Dialer] to [proxy.Dialer].
type forwardDialer struct{ d Dialer }

func (f forwardDialer) Dial(network, addr string) (net.Conn, error) {
	return f.d.DialContext(context.Background(), network, addr)
}

func (f forwardDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f.d.DialContext(ctx, network, addr)
}
