package stem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cellmesh/cell/membrane"
	"github.com/cellmesh/cell/transport/local"
)

// Replace drives spec.md §4.4's atomic swap for cell name, starting
// newBinaryPath as the replacement: it spawns the new binary with
// CELL_SWAP_NEW=1 (read by cmd/<cell>'s entrypoint to bind ".sock.new"
// instead of ".sock"), waits for that socket to appear, tells the running
// old cell to drain (SwapDrainRequest over its existing socket), and
// finally renames ".sock.new" into place. The old process notices its own
// drain in the background and exits once its last in-flight stream closes.
func (s *Stem) Replace(ctx context.Context, name, newBinaryPath string) error {
	cmd := exec.Command(newBinaryPath, "--name", name)
	cmd.Env = append(os.Environ(), "CELL_SWAP_NEW=1")
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("stem: replace: start %s: %w", newBinaryPath, err)
	}

	newSockPath := s.sockPath(name) + ".new"
	if err := waitForPath(ctx, newSockPath); err != nil {
		return fmt.Errorf("stem: replace: new binary never bound %s: %w", newSockPath, err)
	}

	if err := s.sendSwapDrain(ctx, name); err != nil {
		return fmt.Errorf("stem: replace: drain old cell: %w", err)
	}

	if err := waitForRename(ctx, s.sockPath(name)); err != nil {
		return fmt.Errorf("stem: replace: old socket never cleared: %w", err)
	}
	if err := membrane.SwapIn(s.runtimeDir, name); err != nil {
		return fmt.Errorf("stem: replace: swap-in: %w", err)
	}
	return nil
}

func (s *Stem) sendSwapDrain(ctx context.Context, name string) error {
	cc, err := local.Dial(ctx, s.sockPath(name))
	if err != nil {
		return err
	}
	defer cc.Close()
	_, err = cc.Roundtrip(time.Now().Add(5*time.Second), []byte(membrane.SwapDrainRequest))
	return err
}

func waitForPath(ctx context.Context, path string) error {
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// waitForRename waits until path no longer exists (renamed away by the
// draining old cell).
func waitForRename(ctx context.Context, path string) error {
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
