// Package stem implements spec.md §4.5: a long-lived, stateless per-host
// process that spawns cells on demand and bridges remote streams to their
// local sockets. The Stem holds no directory, no consistent hash, no peer
// list beyond per-connection caches — authority lives entirely in the
// filesystem (the DNA directory and the runtime directory). Grounded on
// aistore's process-supervision idiom (os/exec children are fire-and-
// forget, never tracked or reaped by the daemon that spawned them) and on
// the bridge/splice shape visible in `other_examples/.../smux` and
// `other_examples/.../muxado-session.go.go`, adapted from multiplexed
// session teardown onto a plain io.Copy splice.
package stem

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/cmn/nlog"
)

// Stem is the per-host spawn daemon.
type Stem struct {
	runtimeDir string
	dnaDir     string
}

// New constructs a Stem rooted at runtimeDir (where cell sockets live)
// and dnaDir (where cell binaries live, named exactly like the cell).
func New(runtimeDir, dnaDir string) *Stem {
	return &Stem{runtimeDir: runtimeDir, dnaDir: dnaDir}
}

func (s *Stem) sockPath(name string) string { return s.runtimeDir + "/" + name + ".sock" }
func (s *Stem) binPath(name string) string  { return s.dnaDir + "/" + name }

// GerminateResult is the reply to a Germinate command.
type GerminateResult int

const (
	GerminateOk GerminateResult = iota
	GerminateNotFound
	GerminateSpawnFailed
)

// Germinate ensures a cell named name has a live listener, spawning its
// binary if the socket does not already exist. It does not track the
// child: if it dies, the socket disappears and a future Germinate spawns
// again (spec.md §4.5).
func (s *Stem) Germinate(name string) (GerminateResult, error) {
	if !cos.ValidName(name) {
		return GerminateSpawnFailed, fmt.Errorf("stem: invalid cell name %q", name)
	}
	if _, err := os.Stat(s.sockPath(name)); err == nil {
		return GerminateOk, nil // already running
	}
	bin := s.binPath(name)
	if _, err := os.Stat(bin); err != nil {
		return GerminateNotFound, nil
	}
	cmd := exec.Command(bin, "--name", name)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return GerminateSpawnFailed, err
	}
	// Deliberately do not Wait: the child is fire-and-forget per §4.5.
	nlog.Infof("stem: germinated %q (pid %d)", name, cmd.Process.Pid)
	return GerminateOk, nil
}

// WaitForSocket polls until the cell's socket appears or ctx is done,
// used by BridgeStream and by callers that need the cell actually
// listening before proceeding.
func (s *Stem) WaitForSocket(ctx context.Context, name string) error {
	for {
		if _, err := os.Stat(s.sockPath(name)); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
