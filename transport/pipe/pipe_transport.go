// Package pipe is an in-memory network. Its Network dials listeners
// registered under host:port addresses over synchronous net.Pipe
// connections, so HTTP exchanges can be tested without sockets.
package pipe

import (
	"context"
	"net"
	"sync"

	"w3client/transport"
)

// Addr is the address of one end of a pipe connection.
type Addr string

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return string(a) }

type Network struct {
	mu        sync.Mutex
	listeners map[string]*Listener
	dials     int
}

func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*Listener)}
}

var _ transport.Dialer = (*Network)(nil)

// Dials reports how many connections were dialed, accepted or not.
func (n *Network) Dials() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials
}

// DialContext hands the server end of a new pipe to the listener at addr
// and returns the client end once the listener accepted it.
func (n *Network) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	n.mu.Lock()
	n.dials++
	lis, ok := n.listeners[addr]
	n.mu.Unlock()

	if !ok {
		return nil, transport.ErrConnRefused
	}

	client, server := net.Pipe()
	handoff := &pending{conn: &conn{Conn: server, local: Addr(addr), remote: Addr("client")}, taken: make(chan struct{})}

	select {
	case <-ctx.Done():
		client.Close()
		server.Close()
		return nil, ctx.Err()
	case <-lis.done:
		client.Close()
		server.Close()
		return nil, transport.ErrConnRefused
	case lis.backlog <- handoff:
	}

	<-handoff.taken
	return &conn{Conn: client, local: Addr("client"), remote: Addr(addr)}, nil
}

// Listen registers a listener at addr.
func (n *Network) Listen(addr string) (*Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[addr]; ok {
		return nil, transport.ErrAddrAlreadyInUse
	}

	lis := &Listener{
		network: n,
		addr:    Addr(addr),
		backlog: make(chan *pending),
		done:    make(chan struct{}),
	}
	n.listeners[addr] = lis
	return lis, nil
}

type pending struct {
	conn  net.Conn
	taken chan struct{}
}

// conn reports pipe addresses instead of the anonymous ones of net.Pipe.
type conn struct {
	net.Conn
	local, remote net.Addr
}

func (c *conn) LocalAddr() net.Addr  { return c.local }
func (c *conn) RemoteAddr() net.Addr { return c.remote }

type Listener struct {
	network *Network
	addr    Addr

	backlog chan *pending
	done    chan struct{}
	once    sync.Once
}

var _ net.Listener = (*Listener)(nil)

func (l *Listener) Accept() (net.Conn, error) {
	select {
	case <-l.done:
		return nil, transport.ErrConnListenerClosed
	case p := <-l.backlog:
		close(p.taken)
		return p.conn, nil
	}
}

func (l *Listener) Addr() net.Addr { return l.addr }

// Close unregisters the listener. Closing twice reports
// ErrConnListenerClosed.
func (l *Listener) Close() error {
	err := transport.ErrConnListenerClosed
	l.once.Do(func() {
		close(l.done)

		l.network.mu.Lock()
		delete(l.network.listeners, string(l.addr))
		l.network.mu.Unlock()

		err = nil
	})
	return err
}
