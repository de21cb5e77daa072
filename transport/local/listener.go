// Package local implements the Membrane side of spec.md §4.1's local
// transport: a Unix domain socket at <runtime-dir>/<name>.sock, framed
// with the codec package's length-prefix + 16-byte header, one goroutine
// per accepted connection. Grounded on aistore's transport package for
// the connection-lifecycle shape (per-stream atomic counters, nlog on
// accept/close, a Stop that's safe to call once the listener is already
// down) even though aistore's own streams ride HTTP rather than a raw
// Unix socket.
package local

import (
	"net"
	"os"
	"sync"

	"github.com/cellmesh/cell/cmn/atomic"
	"github.com/cellmesh/cell/cmn/nlog"
)

// Handler processes one framed request payload and returns the response
// body to write back (nil for none), whether the connection should close
// after writing it, and an error to close the connection without a
// response.
type Handler func(conn *Conn, payload []byte) (resp []byte, closeAfter bool, err error)

// Listener binds a Unix domain socket and dispatches accepted connections
// to a Handler, one goroutine per connection.
type Listener struct {
	path          string
	ln            *net.UnixListener
	handler       Handler
	activeStreams atomic.Int64

	mu       sync.Mutex
	conns    map[*Conn]struct{}
	closing  bool
}

// Bind creates (or replaces) the Unix socket at path and returns a
// Listener ready to Serve. Any stale socket file at path is removed
// first, matching spec.md §4.4's bind-time cleanup.
func Bind(path string, handler Handler) (*Listener, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	raw, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		raw.Close()
		return nil, err
	}
	return &Listener{path: path, ln: raw, handler: handler, conns: make(map[*Conn]struct{})}, nil
}

// Serve accepts connections until the Listener is closed, blocking the
// calling goroutine. Each accepted connection is handled on its own
// goroutine via serveConn.
func (l *Listener) Serve() error {
	for {
		raw, err := l.ln.AcceptUnix()
		if err != nil {
			l.mu.Lock()
			closing := l.closing
			l.mu.Unlock()
			if closing {
				return nil
			}
			return err
		}
		c := newConn(raw, l)
		l.mu.Lock()
		l.conns[c] = struct{}{}
		l.mu.Unlock()
		l.activeStreams.Inc()
		go l.serveConn(c)
	}
}

func (l *Listener) serveConn(c *Conn) {
	defer func() {
		l.activeStreams.Dec()
		l.mu.Lock()
		delete(l.conns, c)
		l.mu.Unlock()
		c.Close()
	}()
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("local: handler panic on %s: %v", c.raw.RemoteAddr(), r)
		}
	}()
	if err := c.serve(l.handler); err != nil {
		nlog.Infof("local: connection %s closed: %v", c.raw.RemoteAddr(), err)
	}
}

// ActiveStreams returns the number of currently-open connections, used by
// the Membrane's idle monitor (spec.md §4.4).
func (l *Listener) ActiveStreams() int64 { return l.activeStreams.Load() }

// Close stops accepting new connections, closes every open connection,
// and removes the socket file. Safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return nil
	}
	l.closing = true
	conns := make([]*Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	err := l.ln.Close()
	for _, c := range conns {
		c.Close()
	}
	_ = os.Remove(l.path)
	return err
}
