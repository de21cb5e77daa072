package integration

import (
	"context"
	"testing"
	"time"

	"github.com/cellmesh/cell/codec"
	"github.com/cellmesh/cell/internal/testcell"
	"github.com/cellmesh/cell/stem"
	"github.com/cellmesh/cell/synapse"
)

// TestAtomicSwapPreservesExistingStream is scenario S4: a long-lived
// stream opened before Replace keeps working against the old process,
// and a fresh dial issued once Replace returns reaches the new one. This
// harness uses the same echo binary for both "versions" (internal/testcell
// has only one), which still exercises the full Germinate/drain/rename
// handshake stem.Replace performs; only the binary path differs from a
// real version upgrade, not the mechanics under test.
func TestAtomicSwapPreservesExistingStream(t *testing.T) {
	runtimeDir, dnaDir := t.TempDir(), t.TempDir()
	binPath := buildEcho(t, dnaDir)
	t.Setenv("CELL_RUNTIME_DIR", runtimeDir)
	s := startStem(t, runtimeDir, dnaDir)

	syn := synapse.New(runtimeDir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	longLived, err := syn.Connect(ctx, testcell.Name)
	if err != nil {
		t.Fatalf("Connect (long-lived): %v", err)
	}
	defer longLived.Close()

	g := testcell.Genome()
	roundtrip := func(stream synapse.Stream, payload string) string {
		t.Helper()
		resp, err := stream.Roundtrip(time.Now().Add(2*time.Second), echoRequest(g.Fingerprint, payload))
		if err != nil {
			t.Fatalf("Roundtrip(%q): %v", payload, err)
		}
		var r testcell.EchoResponse
		if _, err := codec.DecodeValue(resp, g.Fingerprint, &r); err != nil {
			t.Fatalf("DecodeValue: %v (resp=%q)", err, resp)
		}
		return r.Payload
	}

	if got := roundtrip(longLived, "before-swap"); got != "before-swap" {
		t.Fatalf("got %q before swap", got)
	}

	replaceCtx, replaceCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer replaceCancel()
	if err := s.Replace(replaceCtx, testcell.Name, binPath); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// The pre-existing stream's underlying connection was never closed by
	// the swap and must still serve requests.
	if got := roundtrip(longLived, "after-swap"); got != "after-swap" {
		t.Fatalf("got %q on the pre-swap stream after Replace", got)
	}

	// A fresh dial must reach the (new) running process.
	freshCtx, freshCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer freshCancel()
	fresh, err := syn.Connect(freshCtx, testcell.Name)
	if err != nil {
		t.Fatalf("Connect after Replace: %v", err)
	}
	defer fresh.Close()
	if got := roundtrip(fresh, "fresh-dial"); got != "fresh-dial" {
		t.Fatalf("got %q on the post-swap dial", got)
	}
}
