package discovery

import (
	"crypto/ed25519"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// PeerRecord is the signed self-description a Beacon broadcasts and a
// PeerCache stores, letting a Synapse on another host discover a remote
// cell without a directory service (spec.md §3's supplemental Peer
// record).
type PeerRecord struct {
	Name      string   `json:"name"`
	PubKey    []byte   `json:"pubkey"`
	Endpoints []string `json:"addrs"`
	Region    string   `json:"region"`
	Signature []byte   `json:"signature"`
}

// signingBody is everything a PeerRecord's Signature covers.
func (p PeerRecord) signingBody() []byte {
	body, _ := jsoniter.Marshal(struct {
		Name      string   `json:"name"`
		PubKey    []byte   `json:"pubkey"`
		Endpoints []string `json:"addrs"`
		Region    string   `json:"region"`
	}{p.Name, p.PubKey, p.Endpoints, p.Region})
	return body
}

// Sign fills in Signature using priv, which must correspond to PubKey.
func (p *PeerRecord) Sign(priv ed25519.PrivateKey) {
	p.Signature = ed25519.Sign(priv, p.signingBody())
}

// Verify reports whether Signature is a valid Ed25519 signature over the
// record's other fields under PubKey.
func (p PeerRecord) Verify() error {
	if len(p.PubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("discovery: peer record: bad public key length %d", len(p.PubKey))
	}
	if !ed25519.Verify(p.PubKey, p.signingBody(), p.Signature) {
		return fmt.Errorf("discovery: peer record: invalid signature for %q", p.Name)
	}
	return nil
}

// MarshalPeerRecord/UnmarshalPeerRecord are the beacon's wire encoding.
func MarshalPeerRecord(p PeerRecord) ([]byte, error) { return jsoniter.Marshal(p) }
func UnmarshalPeerRecord(b []byte) (PeerRecord, error) {
	var p PeerRecord
	err := jsoniter.Unmarshal(b, &p)
	return p, err
}
