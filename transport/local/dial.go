package local

import (
	"context"
	"net"
	"time"

	"github.com/cellmesh/cell/codec"
)

// ClientConn is the Synapse side of a local connection: dial once, then
// issue any number of request/response round-trips, each one frame out
// and one frame back.
type ClientConn struct {
	raw *net.UnixConn
}

// Dial connects to the Unix socket at path. Callers that need
// Germinate-then-retry backoff (spec.md §4.5 cold-start) implement that
// above this, since Dial itself makes exactly one attempt.
func Dial(ctx context.Context, path string) (*ClientConn, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	return &ClientConn{raw: conn.(*net.UnixConn)}, nil
}

// Raw exposes the underlying connection for fd-passing (memsys.Recv).
func (c *ClientConn) Raw() *net.UnixConn { return c.raw }

// Roundtrip writes one framed request and reads back one framed
// response, with an optional deadline.
func (c *ClientConn) Roundtrip(deadline time.Time, req []byte) ([]byte, error) {
	if !deadline.IsZero() {
		if err := c.raw.SetDeadline(deadline); err != nil {
			return nil, err
		}
		defer c.raw.SetDeadline(time.Time{})
	}
	if err := codec.WriteFrame(c.raw, req); err != nil {
		return nil, err
	}
	return codec.ReadFrame(c.raw, codec.DefaultMaxFrameBytes)
}

// Close closes the underlying connection.
func (c *ClientConn) Close() error { return c.raw.Close() }
