package discovery_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/cellmesh/cell/discovery"
)

func TestResolveIsPurePathArithmetic(t *testing.T) {
	sock, metrics := discovery.Resolve("/run/cell", "billing")
	if sock != "/run/cell/billing.sock" {
		t.Fatalf("got %q", sock)
	}
	if metrics != "/run/cell/billing.metrics.sock" {
		t.Fatalf("got %q", metrics)
	}
}

func TestPeerRecordSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	rec := discovery.PeerRecord{Name: "billing", PubKey: pub, Endpoints: []string{"10.0.0.5:4040"}, Region: "us-east"}
	rec.Sign(priv)
	if err := rec.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	rec.Region = "eu-west" // tamper after signing
	if err := rec.Verify(); err == nil {
		t.Fatal("expected Verify to reject a tampered record")
	}
}

func TestPeerCacheRejectsUnsignedRecord(t *testing.T) {
	cache := discovery.NewPeerCache()
	bad := discovery.PeerRecord{Name: "x", PubKey: make([]byte, ed25519.PublicKeySize)}
	if err := cache.Put(bad); err == nil {
		t.Fatal("expected Put to reject an unsigned/invalid record")
	}
	if _, ok := cache.Get("x"); ok {
		t.Fatal("rejected record should not be cached")
	}
}

func TestPeerCacheAcceptsSignedRecord(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	rec := discovery.PeerRecord{Name: "y", PubKey: pub}
	rec.Sign(priv)

	cache := discovery.NewPeerCache()
	if err := cache.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := cache.Get("y")
	if !ok {
		t.Fatal("expected cached record")
	}
	if got.Name != "y" {
		t.Fatalf("got name %q", got.Name)
	}
}
