package w3

import (
	"context"

	"w3client/application/inet"

	"github.com/pkg/errors"
)

// connection is an open session plus a connection handle to one endpoint.
// It exists only fully established.
type connection struct {
	parts   URLParts
	agent   string
	session inet.Session
	handle  inet.Connection
}

func endpointOf(parts URLParts) inet.Endpoint {
	ep := inet.Endpoint{
		Host:     parts.Host,
		Port:     parts.Port,
		Service:  inet.ServiceHTTP,
		Secure:   parts.Scheme == SchemeHTTPS,
		User:     parts.User,
		Password: parts.Password,
	}
	if parts.Scheme == SchemeFTP {
		ep.Service = inet.ServiceFTP
		ep.Passive = true
	}
	return ep
}

// openConnection opens the session, connects and probes. Whatever was
// acquired is released again if a later step fails.
func openConnection(
	ctx context.Context,
	stack inet.Stack,
	sessionOpts inet.SessionOptions,
	parts URLParts,
	probe bool,
) (_ *connection, err error) {
	session, err := stack.Open(ctx, sessionOpts)
	if err != nil {
		return nil, errors.Wrap(err, "opening session")
	}
	defer func() {
		if err != nil {
			session.Close()
		}
	}()

	handle, err := session.Connect(ctx, endpointOf(parts))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", parts.hostPort(true))
	}
	defer func() {
		if err != nil {
			handle.Close()
		}
	}()

	if probe {
		if err := handle.CheckConnection(ctx); err != nil {
			return nil, errors.Wrap(err, "probing connection")
		}
	}

	return &connection{
		parts:   parts,
		agent:   sessionOpts.Agent,
		session: session,
		handle:  handle,
	}, nil
}

// close releases the connection handle before the session.
func (c *connection) close() error {
	connErr := c.handle.Close()
	sessionErr := c.session.Close()

	if connErr != nil {
		return errors.Wrap(connErr, "closing connection")
	}
	if sessionErr != nil {
		return errors.Wrap(sessionErr, "closing session")
	}
	return nil
}
