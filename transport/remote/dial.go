package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/cellmesh/cell/cmn/cos"
)

const defaultIdleTimeout = 60 * time.Second

// Session is a reusable QUIC connection to one remote host, opened once
// and shared across every Synapse stream to that host (spec.md §4.6:
// "Establish (or reuse) a transport session to host").
type Session struct {
	mu   sync.Mutex
	conn quic.Connection
}

// Dial establishes a new Session to addr, verifying the peer presents
// wantPub as its certificate's public key (pinned-identity mutual auth,
// rather than a CA chain — see cert.go).
func Dial(ctx context.Context, addr string, id *Identity, wantPub []byte) (*Session, error) {
	tlsConf := id.ClientTLSConfig(alpn)
	tlsConf.VerifyPeerCertificate = verifyPinned(wantPub)
	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", addr, err)
	}
	return &Session{conn: conn}, nil
}

// verifyPinned rejects any peer certificate whose Ed25519 public key does
// not exactly match wantPub, independent of any CA chain (there is none —
// InsecureSkipVerify is set deliberately in ClientTLSConfig).
func verifyPinned(wantPub []byte) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return &cos.ErrAuthFailed{Reason: "peer presented no certificate"}
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return &cos.ErrAuthFailed{Reason: fmt.Sprintf("parse peer certificate: %v", err)}
		}
		pub, ok := cert.PublicKey.(ed25519.PublicKey)
		if !ok || !bytes.Equal(pub, wantPub) {
			return &cos.ErrAuthFailed{Reason: "peer public key does not match pinned identity"}
		}
		return nil
	}
}

// OpenStream opens a new multiplexed stream over the session, writes the
// target header naming the destination cell, and returns the stream ready
// for codec framing (spec.md §4.6's remote path).
func (s *Session) OpenStream(ctx context.Context, target string) (Stream, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote: open stream: %w", err)
	}
	if err := writeTargetHeader(stream, target); err != nil {
		stream.Close()
		return nil, fmt.Errorf("remote: write target header: %w", err)
	}
	return stream, nil
}

// Close tears down the session's underlying QUIC connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.CloseWithError(0, "session closed")
}
