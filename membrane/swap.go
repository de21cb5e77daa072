package membrane

import (
	"fmt"
	"os"
	"time"

	"github.com/cellmesh/cell/cmn/nlog"
)

// SwapDrainRequest is the reserved control payload a Stem sends to a
// running cell's own socket to kick off its half of the atomic swap
// (rename its socket to .sock.old and begin draining). Recognized by
// Membrane.dispatch the same way GENOME_REQUEST is.
const SwapDrainRequest = "CELL_SWAP_DRAIN"

// SwapIn performs the final rename of spec.md §4.4's atomic swap: it
// checks that <name>.sock.new exists and renames it to <name>.sock. It
// neither binds nor waits; the replacement binary binds .sock.new itself
// (Config.SockSuffix), and stem's Replace waits for that socket and for the
// old cell to move its own socket out of the way before calling SwapIn.
func SwapIn(runtimeDir, name string) error {
	newPath := runtimeDir + "/" + name + ".sock.new"
	finalPath := runtimeDir + "/" + name + ".sock"
	if _, err := os.Stat(newPath); err != nil {
		return fmt.Errorf("membrane: swap-in: %s not bound yet: %w", newPath, err)
	}
	if err := os.Rename(newPath, finalPath); err != nil {
		return fmt.Errorf("membrane: swap-in: rename %s -> %s: %w", newPath, finalPath, err)
	}
	return nil
}

// SwapOut performs the "old cell" half: rename this cell's live socket to
// <name>.sock.old so the incoming binary's rename-into-place in SwapIn
// cannot collide with it, mark the Membrane draining, and return. A
// background goroutine then waits until ActiveStreams drops to zero
// (clients already holding a stream keep talking to this process; new
// connections now land on the new cell), removes .sock.old, calls Shutdown
// and exits the process with status 0.
func (m *Membrane) SwapOut(pollEvery time.Duration) error {
	oldPath := m.sockPath() + ".old"
	if err := os.Rename(m.sockPath(), oldPath); err != nil {
		return fmt.Errorf("membrane: swap-out: rename to %s: %w", oldPath, err)
	}
	m.draining.Store(true)
	go func() {
		for m.ActiveStreams() > 0 {
			time.Sleep(pollEvery)
		}
		nlog.Infof("membrane[%s]: drained, exiting after atomic swap", m.name)
		_ = os.Remove(oldPath)
		m.Shutdown()
		os.Exit(0)
	}()
	return nil
}

// Draining reports whether this Membrane has begun an atomic-swap
// handover and is waiting to drain.
func (m *Membrane) Draining() bool { return m.draining.Load() }
