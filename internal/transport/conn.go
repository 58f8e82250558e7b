// Package transport frames the equipmesh wire protocol on top of a
// net.Conn: it reads one newline-terminated frame at a time, enforces the
// maximum frame size, and serializes writes so a broadcast from the router
// and a reply from the owning worker never interleave on the wire.
package transport

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/sandia-emesh/equipmesh/internal/wire"
)

// MaxFrameSize is the hard cap on a single frame, including its trailing
// "\n", per the protocol's frame boundary integrity invariant.
const MaxFrameSize = 1024

// ErrFrameTooLarge is returned by ReadMessage when a peer sends a line
// longer than MaxFrameSize without a terminating newline. It wraps
// wire.ErrInvalidFrame.
var ErrFrameTooLarge = fmt.Errorf("%w: transport: frame exceeds maximum size", wire.ErrInvalidFrame)

// Conn wraps a net.Conn with framed, line-delimited reads and a
// write lock that makes every WriteMessage call atomic with respect to
// every other write on the same Conn.
type Conn struct {
	nc  net.Conn
	r   *bufio.Reader
	mu  sync.Mutex // serializes writes only; reads are single-goroutine by convention
}

// New wraps an already-established connection.
func New(nc net.Conn) *Conn {
	return &Conn{
		nc: nc,
		r:  bufio.NewReaderSize(nc, MaxFrameSize),
	}
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Close closes the underlying connection. Close is idempotent: closing an
// already-closed Conn returns the net package's "already closed" error,
// which callers should treat as success.
func (c *Conn) Close() error { return c.nc.Close() }

// ReadMessage blocks until one full frame arrives, decodes it, and returns
// the Message. It returns wire.ErrInvalidFrame (wrapped) if the frame is
// malformed or exceeds MaxFrameSize, and the underlying net.Conn error
// (often io.EOF) if the peer disconnected.
func (c *Conn) ReadMessage() (wire.Message, error) {
	line, err := c.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// drain the oversized line so the connection stays in sync, then
		// report it as a protocol violation rather than a transport error.
		for err == bufio.ErrBufferFull {
			_, err = c.r.ReadSlice('\n')
		}
		return wire.Message{}, ErrFrameTooLarge
	}
	if err != nil {
		if len(line) == 0 {
			return wire.Message{}, err
		}
		// a partial line followed by EOF or a read error is a malformed
		// frame, not a clean disconnect.
		return wire.Message{}, fmt.Errorf("%w: %v", wire.ErrInvalidFrame, err)
	}

	frame := line[:len(line)-1] // strip trailing \n
	return wire.Decode(frame)
}

// WriteMessage encodes m and writes it, terminated by "\n", as a single
// atomic operation with respect to any other concurrent WriteMessage call
// on this Conn.
func (c *Conn) WriteMessage(m wire.Message) error {
	frame := append(wire.Encode(m), '\n')
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.nc.Write(frame)
	return err
}
