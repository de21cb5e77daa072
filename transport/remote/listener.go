package remote

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/cmn/nlog"
)

const alpn = "cell/1"

// StreamHandler bridges one accepted remote stream naming a target cell
// to whatever local connection Stem opens for it (transport/local.Dial).
// It owns the stream's lifetime and must close it before returning.
type StreamHandler func(ctx context.Context, target string, stream Stream)

// Stream is the subset of quic.Stream this package exposes to callers,
// kept narrow so Stem's bridge code only depends on io.ReadWriteCloser
// plus the half-close quic-go provides.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	CancelRead(code quic.StreamErrorCode)
	CancelWrite(code quic.StreamErrorCode)
}

// Listener accepts QUIC connections on one UDP endpoint, and for every
// stream within every connection, reads the target header and invokes a
// StreamHandler (spec.md §4.5's "remote transport endpoint").
type Listener struct {
	ln      *quic.Listener
	handler StreamHandler
}

// Listen binds addr (host:port, typically the single host-level endpoint
// named in spec.md §6's CELL_REMOTE_PORT) and returns a Listener ready to
// Serve.
func Listen(addr string, id *Identity, handler StreamHandler) (*Listener, error) {
	ln, err := quic.ListenAddr(addr, id.ServerTLSConfig(alpn), quicConfig())
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, handler: handler}, nil
}

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  defaultIdleTimeout,
		Allow0RTT:       true,
		EnableDatagrams: false,
	}
}

// Serve accepts connections and, for each, spawns a goroutine that
// accepts and dispatches every stream on it. Blocks until the listener is
// closed.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		conn, err := l.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go l.serveConn(ctx, conn)
	}
}

func (l *Listener) serveConn(ctx context.Context, conn quic.Connection) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go l.serveStream(ctx, stream)
	}
}

func (l *Listener) serveStream(ctx context.Context, stream quic.Stream) {
	target, err := readTargetHeader(stream)
	if err != nil {
		nlog.Warningf("remote: read target header: %v", err)
		stream.CancelRead(1)
		stream.Close()
		return
	}
	if !cos.ValidName(target) {
		stream.CancelRead(2)
		stream.Close()
		return
	}
	l.handler(ctx, target, stream)
}

// Close shuts down the listener.
func (l *Listener) Close() error { return l.ln.Close() }

// readTargetHeader reads the [u32 name_len][name_bytes] header spec.md
// §6's remote endpoint wire format specifies, naming which local cell a
// newly-opened stream is destined for.
func readTargetHeader(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("remote: target header length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 || n > 256 {
		return "", fmt.Errorf("remote: target header length %d out of range", n)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", fmt.Errorf("remote: target header name: %w", err)
	}
	return string(name), nil
}

// writeTargetHeader writes the header readTargetHeader parses.
func writeTargetHeader(w io.Writer, target string) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(target)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, target)
	return err
}
