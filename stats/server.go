package stats

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cellmesh/cell/cmn/nlog"
	"github.com/cellmesh/cell/hk"
)

// Runner is the background-service shape of this package's Server and
// PromExporter, mirroring aistore's cos.Runner.
type Runner interface {
	Run() error
	Stop(error)
}

// Server samples a cell's Counters once a second via hk and broadcasts the
// resulting NDJSON Sample to every connection on <runtime-dir>/<name>.metrics.sock
// (spec.md §4.8). Connections are push-only: a reader just keeps the
// socket open and receives one line per sample.
type Server struct {
	name       string
	sockPath   string
	counters   *Counters
	hk         *hk.Housekeeper
	listener   net.Listener
	mu         sync.Mutex
	conns      map[net.Conn]struct{}
	stopOnce   sync.Once
	stopSignal chan struct{}
}

// NewServer constructs a metrics Server for cell name, listening on
// <runtimeDir>/<name>.metrics.sock. It does not start sampling or
// listening until Run is called.
func NewServer(name, runtimeDir string, counters *Counters, housekeeper *hk.Housekeeper) *Server {
	if housekeeper == nil {
		housekeeper = hk.DefaultHK
	}
	return &Server{
		name:       name,
		sockPath:   runtimeDir + "/" + name + ".metrics.sock",
		counters:   counters,
		hk:         housekeeper,
		conns:      make(map[net.Conn]struct{}),
		stopSignal: make(chan struct{}),
	}
}

// Run binds the metrics socket, registers the 1s sampler with hk, and
// blocks accepting connections until Stop is called.
func (s *Server) Run() error {
	_ = os.Remove(s.sockPath)
	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return err
	}
	_ = os.Chmod(s.sockPath, 0o600)
	s.listener = ln

	s.hk.Reg(s.name+"-sampler", s.sampleOnce, time.Second)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopSignal:
				return nil
			default:
				return err
			}
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
	}
}

// sampleOnce reads the process' cpu/rss figures into the Counters, then
// broadcasts a Sample line to every connected reader. Registered with hk
// at a 1s cadence; a non-positive return would unregister it, so it
// always returns time.Second.
func (s *Server) sampleOnce() time.Duration {
	cpuUs, rssBytes := readProcSelf()
	s.counters.CPUus.Store(cpuUs)
	s.counters.RSSBytes.Store(rssBytes)

	line, err := s.counters.Snapshot(s.name).MarshalNDJSON()
	if err != nil {
		nlog.Errorf("stats: marshal sample: %v", err)
		return time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := conn.Write(line); err != nil {
			conn.Close()
			delete(s.conns, conn)
		}
	}
	return time.Second
}

// Stop closes the listener and every connected reader, and unregisters
// the sampler from hk. Safe to call more than once.
func (s *Server) Stop(_ error) {
	s.stopOnce.Do(func() {
		close(s.stopSignal)
		s.hk.Unreg(s.name + "-sampler")
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for conn := range s.conns {
			conn.Close()
			delete(s.conns, conn)
		}
		_ = os.Remove(s.sockPath)
	})
}

var _ Runner = (*Server)(nil)

// WaitReady polls until the metrics socket exists or ctx is cancelled.
func WaitReady(ctx context.Context, sockPath string) error {
	for {
		if _, err := os.Stat(sockPath); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
