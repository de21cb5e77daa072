package stem

import (
	"context"
	"errors"
	"io"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/cellmesh/cell/cmn/nlog"
	"github.com/cellmesh/cell/transport/remote"
)

// BridgeStream implements spec.md §4.5's remote transport endpoint: given
// an already target-addressed remote stream, ensure the named cell is
// running, open a local connection to it, then splice bytes in both
// directions until either side closes. Intended as a remote.StreamHandler.
func (s *Stem) BridgeStream(ctx context.Context, target string, stream remote.Stream) {
	defer stream.Close()

	if res, err := s.Germinate(target); err != nil || res != GerminateOk {
		nlog.Warningf("stem: bridge: germinate %q: result=%v err=%v", target, res, err)
		stream.CancelWrite(1)
		return
	}
	if err := s.WaitForSocket(ctx, target); err != nil {
		nlog.Warningf("stem: bridge: %q never came up: %v", target, err)
		stream.CancelWrite(2)
		return
	}

	local, err := net.Dial("unix", s.sockPath(target))
	if err != nil {
		nlog.Warningf("stem: bridge: dial local %q: %v", target, err)
		stream.CancelWrite(3)
		return
	}
	defer local.Close()

	// Splice both directions concurrently; whichever side's Copy returns
	// first (its source closed) tears down both ends so the other Copy's
	// blocked Read/Write unblocks and the group can finish.
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(local, stream)
		local.Close()
		stream.Close()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stream, local)
		local.Close()
		stream.Close()
		return err
	})
	if err := g.Wait(); err != nil && !isClosedConnErr(err) {
		nlog.Warningf("stem: bridge: %q: %v", target, err)
	}
}

// isClosedConnErr reports whether err is the ordinary "use of closed
// network connection" noise produced by the splice's own teardown, not a
// genuine transport failure worth logging.
func isClosedConnErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
