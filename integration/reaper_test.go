package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cellmesh/cell/internal/testcell"
	"github.com/cellmesh/cell/synapse"
)

// TestIdleReaperExitsAndRespawns is scenario S3, with the idle threshold
// shortened via CELL_IDLE_SECS so the test does not need to wait a full
// 30 seconds: once a cell has no connections for its idle threshold, the
// process exits, its socket disappears, and the next Connect respawns it.
func TestIdleReaperExitsAndRespawns(t *testing.T) {
	runtimeDir, dnaDir := t.TempDir(), t.TempDir()
	buildEcho(t, dnaDir)
	t.Setenv("CELL_RUNTIME_DIR", runtimeDir)
	t.Setenv("CELL_IDLE_SECS", "1")
	startStem(t, runtimeDir, dnaDir)

	syn := synapse.New(runtimeDir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := syn.Connect(ctx, testcell.Name)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	stream.Close() // no open connections from here on; the idle clock starts

	sockPath := filepath.Join(runtimeDir, testcell.Name+".sock")
	deadline := time.Now().Add(8 * time.Second)
	for {
		if _, err := os.Stat(sockPath); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s still present after the idle threshold elapsed", sockPath)
		}
		time.Sleep(100 * time.Millisecond)
	}

	// A fresh Connect must respawn the cell.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	stream2, err := syn.Connect(ctx2, testcell.Name)
	if err != nil {
		t.Fatalf("Connect after reap: %v", err)
	}
	stream2.Close()
}
