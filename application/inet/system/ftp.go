package system

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"

	"w3client/application/inet"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
)

var ErrTransferInProgress = errors.New("another transfer is in progress")

type ftpConnection struct {
	session *session
	ep      inet.Endpoint
	addr    string

	mu     sync.Mutex
	client *ftp.ServerConn
	busy   bool
	closed bool
}

var _ inet.Connection = (*ftpConnection)(nil)

func dialFTP(ctx context.Context, ss *session, ep inet.Endpoint) (*ftpConnection, error) {
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.Port)))
	d := ss.stack.plain

	if !ep.Passive {
		ss.logger.Debug("active mode is not available, using passive mode", "addr", addr)
	}

	ss.notify(inet.StatusConnectingToServer, addr)
	client, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(ss.stack.opts.FTPTimeout),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			// Passive data connections always go to the control host, which
			// keeps them working behind a proxy.
			if _, port, err := net.SplitHostPort(address); err == nil {
				address = net.JoinHostPort(ep.Host, port)
			}
			// Data connections outlive the dial context.
			return d.DialContext(context.WithoutCancel(ctx), network, address)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", addr)
	}

	user, password := ep.User, ep.Password
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if err := client.Login(user, password); err != nil {
		client.Quit()
		return nil, errors.Wrap(err, "logging in")
	}
	ss.notify(inet.StatusConnectedToServer, addr)

	return &ftpConnection{session: ss, ep: ep, addr: addr, client: client}, nil
}

func (c *ftpConnection) CheckConnection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if c.busy {
		return ErrTransferInProgress
	}
	return errors.Wrap(c.client.NoOp(), "probing server")
}

func (c *ftpConnection) OpenRequest(ctx context.Context, opts inet.RequestOptions) (inet.Request, error) {
	return nil, errors.Wrap(inet.ErrNotSupported, "http request over ftp")
}

func (c *ftpConnection) OpenFile(ctx context.Context, path string, mode inet.FileMode) (inet.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.busy {
		return nil, ErrTransferInProgress
	}

	switch mode {
	case inet.FileRead:
		resp, err := c.client.Retr(path)
		if err != nil {
			return nil, errors.Wrapf(err, "retrieving %s", path)
		}
		c.busy = true
		return &ftpFile{conn: c, path: path, r: resp, closer: resp.Close}, nil

	case inet.FileWrite:
		pr, pw := io.Pipe()
		done := make(chan error, 1)
		go func() {
			err := c.client.Stor(path, pr)
			if err != nil {
				pr.CloseWithError(err)
			} else {
				pr.Close()
			}
			done <- err
		}()

		c.busy = true
		return &ftpFile{
			conn: c,
			path: path,
			w:    pw,
			closer: func() error {
				pw.Close()
				return <-done
			},
		}, nil
	}

	return nil, errors.Errorf("unknown file mode %d", mode)
}

func (c *ftpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.session.notify(inet.StatusClosingConnection, c.addr)
	defer c.session.notify(inet.StatusConnectionClosed, c.addr)
	if err := c.client.Quit(); err != nil {
		return errors.Wrap(err, "quitting ftp session")
	}
	return nil
}

type ftpFile struct {
	conn *ftpConnection
	path string

	r      io.Reader
	w      io.Writer
	closer func() error

	once sync.Once
	err  error
}

var _ inet.File = (*ftpFile)(nil)

func (f *ftpFile) Read(p []byte) (int, error) {
	if f.r == nil {
		return 0, errors.Wrap(inet.ErrNotSupported, "reading file opened for writing")
	}
	return f.r.Read(p)
}

func (f *ftpFile) Write(p []byte) (int, error) {
	if f.w == nil {
		return 0, errors.Wrap(inet.ErrNotSupported, "writing file opened for reading")
	}
	n, err := f.w.Write(p)
	if err != nil {
		return n, errors.Wrapf(err, "storing %s", f.path)
	}
	return n, nil
}

func (f *ftpFile) Close() error {
	f.once.Do(func() {
		f.err = f.closer()

		f.conn.mu.Lock()
		f.conn.busy = false
		f.conn.mu.Unlock()
	})
	if f.err != nil {
		return errors.Wrapf(f.err, "finishing transfer of %s", f.path)
	}
	return nil
}
