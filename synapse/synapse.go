// Package synapse implements spec.md §4.6's client-facing handle: Connect
// parses an address into a local or remote path, retries local dials
// through the Stem's Germinate command with bounded exponential backoff,
// and opens remote streams over a shared transport/remote Session. When a
// name has more than one known replica in the Synapse's own racer.Table
// (populated via RegisterReplica, typically fed by discovery), Connect
// consults a racer.Router instead of dialing the bare name directly,
// retrying against a distinct replica per racer.Retryable and
// racer.MaxRetries and reporting each attempt's outcome back to the
// Router's circuit breakers.
package synapse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/racer"
	"github.com/cellmesh/cell/stem"
	"github.com/cellmesh/cell/transport/local"
	"github.com/cellmesh/cell/transport/remote"
)

// Stream is the minimal request/response handle Connect returns,
// satisfied by both the local and remote paths.
type Stream interface {
	Roundtrip(deadline time.Time, req []byte) ([]byte, error)
	Close() error
}

// Synapse is the client-facing handle for one process.
type Synapse struct {
	runtimeDir string
	sessions   map[string]*remote.Session // host -> session, reused across Connects

	table  *racer.Table
	router *racer.Router
}

// New constructs a Synapse rooted at runtimeDir (where local cell sockets
// and the Stem's control socket live). It owns an empty racer.Table using
// the Fastest strategy; RegisterReplica populates it as replicas become
// known, at which point Connect starts consulting it instead of dialing
// the bare name directly.
func New(runtimeDir string) *Synapse {
	table := racer.NewTable()
	return &Synapse{
		runtimeDir: runtimeDir,
		sessions:   make(map[string]*remote.Session),
		table:      table,
		router:     racer.NewRouter(table, racer.Fastest, ""),
	}
}

// RegisterReplica records or refreshes one known replica of a cell name,
// making it eligible for racer selection on subsequent Connect calls.
func (s *Synapse) RegisterReplica(inst *racer.Instance) {
	s.table.Upsert(inst)
}

const (
	backoffInitial = 10 * time.Millisecond
	backoffMax     = 500 * time.Millisecond
	connectTimeout = 5 * time.Second
)

// Connect implements spec.md §4.6's Connect(address): address containing
// "@" takes the remote path (split into name@host); otherwise the local
// path, by way of racer selection once more than one replica of address
// is known.
func (s *Synapse) Connect(ctx context.Context, address string) (Stream, error) {
	if name, host, ok := strings.Cut(address, "@"); ok {
		return s.connectRemote(ctx, name, host)
	}
	return s.connectNamed(ctx, address)
}

// connectNamed dials name directly when at most one replica of it is
// known, or otherwise picks among known replicas via the Synapse's
// racer.Router, retrying against a distinct replica per racer.Retryable
// up to racer.MaxRetries additional attempts and reporting each outcome
// back to the Router's per-endpoint breaker.
func (s *Synapse) connectNamed(ctx context.Context, name string) (Stream, error) {
	if len(s.table.Replicas(name)) <= 1 {
		return s.connectLocal(ctx, name)
	}

	tried := make(map[string]bool)
	var lastErr error
	for attempt := 0; attempt <= racer.MaxRetries; attempt++ {
		inst, err := s.router.Pick(name, tried)
		if err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}
		tried[inst.Endpoint] = true

		stream, err := s.Connect(ctx, inst.Endpoint)
		if err != nil {
			s.router.ReportOutcome(inst.Endpoint, false)
			lastErr = err
			if !racer.Retryable(err) {
				return nil, err
			}
			continue
		}
		return &racedStream{Stream: stream, endpoint: inst.Endpoint, router: s.router}, nil
	}
	return nil, lastErr
}

// racedStream reports every Roundtrip's outcome to the Router that
// selected endpoint, so a replica that starts failing mid-use trips its
// breaker even though selection itself only runs once per Connect.
type racedStream struct {
	Stream
	endpoint string
	router   *racer.Router
}

func (r *racedStream) Roundtrip(deadline time.Time, req []byte) ([]byte, error) {
	resp, err := r.Stream.Roundtrip(deadline, req)
	r.router.ReportOutcome(r.endpoint, err == nil)
	return resp, err
}

func (s *Synapse) connectLocal(ctx context.Context, name string) (Stream, error) {
	sockPath := s.runtimeDir + "/" + name + ".sock"
	if cc, err := local.Dial(ctx, sockPath); err == nil {
		return cc, nil
	}

	if _, err := stem.RequestGerminate(ctx, s.runtimeDir, name); err != nil {
		return nil, fmt.Errorf("synapse: germinate %q: %w", name, err)
	}

	deadline := time.Now().Add(connectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	backoff := backoffInitial
	for {
		cc, err := local.Dial(ctx, sockPath)
		if err == nil {
			return cc, nil
		}
		if time.Now().After(deadline) {
			return nil, &cos.ErrUnavailable{Name: name}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (s *Synapse) connectRemote(ctx context.Context, name, host string) (Stream, error) {
	sess, ok := s.sessions[host]
	if !ok {
		return nil, fmt.Errorf("synapse: no remote session established to %q; call EstablishSession first", host)
	}
	stream, err := sess.OpenStream(ctx, name)
	if err != nil {
		return nil, err
	}
	return &remoteStream{stream: stream}, nil
}

// EstablishSession opens (or replaces) the shared remote.Session used for
// every subsequent Connect to host, per spec.md §4.6's "establish (or
// reuse) a transport session to host".
func (s *Synapse) EstablishSession(ctx context.Context, host string, id *remote.Identity, peerPub []byte) error {
	sess, err := remote.Dial(ctx, host, id, peerPub)
	if err != nil {
		return err
	}
	s.sessions[host] = sess
	return nil
}
