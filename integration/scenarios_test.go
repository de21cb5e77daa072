// Package integration exercises the substrate end-to-end, across
// process boundaries, the way ais/test exercises a running aistore
// cluster rather than one package in isolation. Every scenario here
// corresponds to one of this repository's own testable properties: cold
// connect & spawn, schema drift rejection, the idle reaper, and an
// atomic swap. Each test builds the real internal/testcell/cmd/echo
// binary, runs a Stem in-process, and lets it spawn real cell processes —
// there is no mock transport.
package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/codec"
	"github.com/cellmesh/cell/genome"
	"github.com/cellmesh/cell/internal/testcell"
	"github.com/cellmesh/cell/stem"
	"github.com/cellmesh/cell/synapse"
)

// buildEcho compiles internal/testcell/cmd/echo into dnaDir/echo so Stem
// has a real binary to Germinate. Skips the test if the toolchain can't
// find the module (e.g. GOFLAGS=-mod=mod issues in a stripped-down CI
// image) rather than failing spuriously.
func buildEcho(t *testing.T, dnaDir string) string {
	t.Helper()
	out := filepath.Join(dnaDir, "echo")
	cmd := exec.Command("go", "build", "-o", out, "github.com/cellmesh/cell/internal/testcell/cmd/echo")
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		t.Skipf("building echo fixture: %v", err)
	}
	return out
}

// startStem launches a Stem's control socket in the background, waits for
// the socket to appear, and returns the Stem; t.Cleanup tears it down.
func startStem(t *testing.T, runtimeDir, dnaDir string) *stem.Stem {
	t.Helper()
	s := stem.New(runtimeDir, dnaDir)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.ServeControl(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	sockPath := filepath.Join(runtimeDir, "stem.sock")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(sockPath); err == nil {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("stem control socket never appeared at %s", sockPath)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func echoRequest(fingerprint uint64, payload string) []byte {
	h := codec.Header{Fingerprint: fingerprint, OpID: genome.OpID(testcell.Name, testcell.OpEcho)}
	req := &testcell.EchoRequest{Payload: payload}
	body, err := codec.EncodeValue(h, req)
	if err != nil {
		panic(err)
	}
	return body
}

// TestColdConnectAndSpawn is scenario S1: an empty runtime dir, a
// Connect("echo") that must Germinate the cell, wait for its socket, and
// round-trip a request through it.
func TestColdConnectAndSpawn(t *testing.T) {
	runtimeDir, dnaDir := t.TempDir(), t.TempDir()
	buildEcho(t, dnaDir)
	t.Setenv("CELL_RUNTIME_DIR", runtimeDir)
	startStem(t, runtimeDir, dnaDir)

	syn := synapse.New(runtimeDir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	stream, err := syn.Connect(ctx, testcell.Name)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer stream.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cold spawn took %s, want <= 2s", elapsed)
	}

	g := testcell.Genome()
	resp, err := stream.Roundtrip(time.Now().Add(2*time.Second), echoRequest(g.Fingerprint, "hi"))
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	var got testcell.EchoResponse
	if _, err := codec.DecodeValue(resp, g.Fingerprint, &got); err != nil {
		t.Fatalf("DecodeValue: %v (resp=%q)", err, resp)
	}
	if got.Payload != "hi" {
		t.Fatalf("got payload %q, want %q", got.Payload, "hi")
	}
}

// TestSchemaDriftRejected is scenario S2: a request carrying a
// fingerprint the server does not recognize is rejected without invoking
// the handler, and the connection is not kept open for further requests.
func TestSchemaDriftRejected(t *testing.T) {
	runtimeDir, dnaDir := t.TempDir(), t.TempDir()
	buildEcho(t, dnaDir)
	t.Setenv("CELL_RUNTIME_DIR", runtimeDir)
	startStem(t, runtimeDir, dnaDir)

	syn := synapse.New(runtimeDir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := syn.Connect(ctx, testcell.Name)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer stream.Close()

	g := testcell.Genome()
	wrongFingerprint := g.Fingerprint + 1
	resp, err := stream.Roundtrip(time.Now().Add(2*time.Second), echoRequest(wrongFingerprint, "hi"))
	if err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	_, body, err := codec.DecodeHeader(resp)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	mismatchErr := &cos.ErrSchemaMismatch{Want: g.Fingerprint, Got: wrongFingerprint}
	if string(body) != mismatchErr.Error() {
		t.Fatalf("got body %q, want %q", body, mismatchErr.Error())
	}

	// The cell closes the stream after a schema mismatch (no retry, per
	// spec): a second round-trip over the same connection must fail.
	if _, err := stream.Roundtrip(time.Now().Add(500*time.Millisecond), echoRequest(g.Fingerprint, "hi")); err == nil {
		t.Fatal("expected the connection to be closed after a schema mismatch")
	}
}
