// Package broker implements the server side of equipmesh: an accept loop
// that spins up one worker goroutine per connection, and a router that
// dispatches each decoded message to the registry/broadcast operation its
// kind requires.
package broker

import (
	"net"
	"strings"

	"github.com/sandia-emesh/equipmesh/internal/registry"
	"github.com/sandia-emesh/equipmesh/internal/transport"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

// Broker owns the equipment registry and serves connections against it.
// Construct with New; the zero value is not usable.
type Broker struct {
	registry *registry.Registry
	log      *eqlog.Logger
}

// New creates a Broker backed by reg, logging through log.
func New(reg *registry.Registry, log *eqlog.Logger) *Broker {
	return &Broker{registry: reg, log: log}
}

// Serve accepts connections from ln until it's closed, dispatching each to
// its own worker goroutine. Callers that want to bound the number of live
// connections should wrap ln in a netutil.LimitListener before calling
// Serve; the registry's own admission control (ErrFull) is the
// authoritative capacity check regardless.
func (b *Broker) Serve(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return err
		}

		conn := transport.New(nc)
		b.log.Info("connection accepted: %v", nc.RemoteAddr())

		go func() {
			b.serveConn(conn)
			b.log.Info("connection closed: %v", nc.RemoteAddr())
		}()
	}
}

// serveConn runs a single connection's worker loop: decode a message,
// dispatch it to the router, repeat until the peer disconnects or sends
// something the transport can't parse. Cleanup (registry release, socket
// close) happens exactly once regardless of which branch exits the loop.
func (b *Broker) serveConn(c *transport.Conn) {
	w := &worker{
		conn:   c,
		broker: b,
	}
	defer w.cleanup()

	for {
		m, err := c.ReadMessage()
		if err != nil {
			if !isPeerReset(err) {
				b.log.Debug("read error from %v: %v", c.RemoteAddr(), err)
			}
			return
		}

		if done := w.dispatch(m); done {
			return
		}
	}
}

func isPeerReset(err error) bool {
	s := err.Error()
	return strings.Contains(s, "EOF") ||
		strings.Contains(s, "reset by peer") ||
		strings.Contains(s, "use of closed network connection")
}
