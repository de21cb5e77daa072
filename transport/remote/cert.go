// Package remote implements spec.md §4.3's host-level remote transport:
// a single QUIC endpoint per host providing mutual Ed25519 authentication,
// multiplexed bidirectional streams, 0-RTT resumption, and per-stream flow
// control. TLS 1.3 (which QUIC mandates) already supplies the forward
// secrecy and mutual auth a Noise-style handshake would; 0-RTT is QUIC's
// native session resumption. `quic-go` is the one dependency in this
// module not traceable to a file in the retrieval pack — no example repo
// implements a multiplexed encrypted datagram transport, and hand-rolling
// one on top of raw UDP would just reproduce it, worse.
package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// Identity is a host's Ed25519 keypair, self-signed into a TLS
// certificate so it can serve as both the QUIC handshake credential and
// the peer-verifiable identity spec.md §4.3 calls for.
type Identity struct {
	Pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	cert tls.Certificate
}

// NewIdentity generates a fresh Ed25519 keypair and a self-signed
// certificate binding it, valid for one year.
func NewIdentity(commonName string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("remote: generate identity: %w", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("remote: self-sign certificate: %w", err)
	}
	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return &Identity{Pub: pub, priv: priv, cert: cert}, nil
}

// ServerTLSConfig returns a tls.Config that presents this Identity and
// requires (but does not validate against any CA — mutual auth here is
// TOFU/pinned, matching discovery's pinned-pubkey peer records) a client
// certificate.
func (id *Identity) ServerTLSConfig(nextProtos ...string) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.cert},
		ClientAuth:   tls.RequireAnyClientCert,
		NextProtos:   nextProtos,
		MinVersion:   tls.VersionTLS13,
	}
}

// ClientTLSConfig returns a tls.Config presenting this Identity and
// skipping server-name verification (the pinned PeerRecord pubkey is the
// actual trust anchor; see VerifyPeerCertificate usage in dial.go).
func (id *Identity) ClientTLSConfig(nextProtos ...string) *tls.Config {
	return &tls.Config{
		Certificates:       []tls.Certificate{id.cert},
		InsecureSkipVerify: true, //nolint:gosec // verified via pinned pubkey, not CA chain
		NextProtos:         nextProtos,
		MinVersion:         tls.VersionTLS13,
	}
}
