package remote

import (
	"bytes"
	"testing"
)

func TestTargetHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTargetHeader(&buf, "billing"); err != nil {
		t.Fatalf("writeTargetHeader: %v", err)
	}
	got, err := readTargetHeader(&buf)
	if err != nil {
		t.Fatalf("readTargetHeader: %v", err)
	}
	if got != "billing" {
		t.Fatalf("got %q, want billing", got)
	}
}

func TestIdentityCertificateCarriesPublicKey(t *testing.T) {
	id, err := NewIdentity("host-a")
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	if len(id.Pub) == 0 {
		t.Fatal("expected non-empty public key")
	}
	cfg := id.ServerTLSConfig(alpn)
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected exactly one certificate, got %d", len(cfg.Certificates))
	}
}
