package genome_test

import (
	"testing"

	"github.com/cellmesh/cell/genome"
)

func TestLockWriteVerifyMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := genome.Verify(dir, "echo", 0xAAAA); err != nil {
		t.Fatalf("first verify should pin the lock: %v", err)
	}
	if err := genome.Verify(dir, "echo", 0xAAAA); err != nil {
		t.Fatalf("second verify with same fingerprint should pass: %v", err)
	}
	if err := genome.Verify(dir, "echo", 0xBBBB); err == nil {
		t.Fatal("expected schema lock mismatch error")
	}
	if err := genome.Clear(dir, "echo"); err != nil {
		t.Fatal(err)
	}
	if err := genome.Verify(dir, "echo", 0xBBBB); err != nil {
		t.Fatalf("verify after clear should re-pin: %v", err)
	}
}
