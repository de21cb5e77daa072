package local

import (
	"net"

	"github.com/cellmesh/cell/codec"
)

// Conn wraps one accepted Unix socket connection. The wire protocol is
// codec's length-prefixed framing; each frame's payload (fingerprint +
// op_id header, followed by body) is handed to the Listener's Handler
// unopened — Membrane owns header interpretation, this package only owns
// framing and connection bookkeeping.
type Conn struct {
	raw *net.UnixConn
	l   *Listener
}

func newConn(raw *net.UnixConn, l *Listener) *Conn {
	return &Conn{raw: raw, l: l}
}

// Raw exposes the underlying Unix connection, e.g. for memsys.Send/Recv
// fd-passing alongside a ring-backed response.
func (c *Conn) Raw() *net.UnixConn { return c.raw }

func (c *Conn) serve(handler Handler) error {
	for {
		payload, err := codec.ReadFrame(c.raw, codec.DefaultMaxFrameBytes)
		if err != nil {
			return err
		}
		resp, closeAfter, err := handler(c, payload)
		if err != nil {
			return err
		}
		if resp != nil {
			if err := codec.WriteFrame(c.raw, resp); err != nil {
				return err
			}
		}
		if closeAfter {
			return nil
		}
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }
