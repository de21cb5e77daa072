// Package membrane implements spec.md §4.4's Membrane: the server runtime
// inside every cell. Bind creates the local listener; Dispatch inspects
// each frame's header and either answers a genome introspection request,
// rejects an unroutable or schema-mismatched message, or invokes the
// matching handler. Grounded on aistore's daemon lifecycle (bind, serve,
// signal-driven teardown, hk-registered idle/metrics ticks) adapted from
// HTTP onto the Unix-socket + QUIC transports this substrate actually
// uses.
package membrane

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cellmesh/cell/cmn/atomic"
	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/cmn/nlog"
	"github.com/cellmesh/cell/codec"
	"github.com/cellmesh/cell/genome"
	"github.com/cellmesh/cell/hk"
	"github.com/cellmesh/cell/stats"
	"github.com/cellmesh/cell/transport/local"
)

// OpHandler handles one decoded operation invocation: body is the request
// payload with the 16-byte header already stripped. It returns the
// response body, or a *cos.HandlerError for a structured handler-level
// failure.
type OpHandler func(body []byte) ([]byte, error)

// Membrane is the server runtime of one cell.
type Membrane struct {
	name       string
	runtimeDir string
	genomeJSON []byte // pre-marshaled at construction; §4.4 "no disk read needed"
	genome     genome.Genome
	handlers   map[uint64]OpHandler

	ln       *local.Listener
	counters *stats.Counters
	hk       *hk.Housekeeper

	idleThreshold time.Duration
	lastActivity  atomic.Int64 // UnixNano

	draining   atomic.Bool
	sockSuffix string
	doneCh     chan struct{}
	once       sync.Once
}

// Config configures a Membrane's construction.
type Config struct {
	Name          string
	RuntimeDir    string
	Genome        genome.Genome
	IdleThreshold time.Duration // 0 disables the idle monitor
	Counters      *stats.Counters
	Housekeeper   *hk.Housekeeper
	// SockSuffix overrides the ".sock" suffix of the listener path, used
	// by a replacement binary told via CELL_SWAP_NEW to bind ".sock.new"
	// instead (spec.md §4.4's atomic swap step 1).
	SockSuffix string
}

// New builds a Membrane for Config, embedding its pre-built Genome (the
// "schema embedding" §4.4 calls for — genome is computed by cmd/schemagen
// at build time, not read from disk here).
func New(cfg Config) (*Membrane, error) {
	body, err := genome.MarshalGenome(cfg.Genome)
	if err != nil {
		return nil, fmt.Errorf("membrane: marshal genome: %w", err)
	}
	housekeeper := cfg.Housekeeper
	if housekeeper == nil {
		housekeeper = hk.DefaultHK
	}
	counters := cfg.Counters
	if counters == nil {
		counters = &stats.Counters{}
	}
	suffix := cfg.SockSuffix
	if suffix == "" {
		suffix = ".sock"
	}
	m := &Membrane{
		name:          cfg.Name,
		runtimeDir:    cfg.RuntimeDir,
		genomeJSON:    body,
		genome:        cfg.Genome,
		handlers:      make(map[uint64]OpHandler),
		counters:      counters,
		hk:            housekeeper,
		idleThreshold: cfg.IdleThreshold,
		sockSuffix:    suffix,
		doneCh:        make(chan struct{}),
	}
	m.lastActivity.Store(time.Now().UnixNano())
	return m, nil
}

// Register attaches an OpHandler to the operation named opName. Must be
// called before Bind.
func (m *Membrane) Register(opName string, handler OpHandler) {
	op, ok := m.genome.OperationByID(genome.OpID(m.name, opName))
	if !ok {
		panic(fmt.Sprintf("membrane: Register(%q): operation not in embedded genome", opName))
	}
	m.handlers[op.OpID] = handler
}

// sockPath is <runtime-dir>/<name><sockSuffix> — normally ".sock", or
// ".sock.new" for a replacement binary bound via CELL_SWAP_NEW.
func (m *Membrane) sockPath() string { return m.runtimeDir + "/" + m.name + m.sockSuffix }

// Bind creates the local listener and installs a signal handler that
// removes the socket file on orderly exit (SIGINT/SIGTERM), per §4.4.
func (m *Membrane) Bind() error {
	ln, err := local.Bind(m.sockPath(), m.dispatch)
	if err != nil {
		return err
	}
	m.ln = ln
	m.installSignalHandler()
	if m.idleThreshold > 0 {
		m.hk.Reg(m.name+"-idle", m.checkIdle, 5*time.Second)
	}
	return nil
}

func (m *Membrane) installSignalHandler() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		nlog.Infof("membrane[%s]: signal received, shutting down", m.name)
		m.Shutdown()
	}()
}

// Serve blocks accepting connections until Shutdown is called.
func (m *Membrane) Serve() error {
	err := m.ln.Serve()
	close(m.doneCh)
	return err
}

// Done returns a channel closed once Serve has returned.
func (m *Membrane) Done() <-chan struct{} { return m.doneCh }

// Shutdown stops accepting new connections and removes the socket file.
// Safe to call more than once.
func (m *Membrane) Shutdown() {
	m.once.Do(func() {
		if m.idleThreshold > 0 {
			m.hk.Unreg(m.name + "-idle")
		}
		if m.ln != nil {
			m.ln.Close()
		}
	})
}

// dispatch implements spec.md §4.4's per-frame Dispatch logic as a
// transport/local.Handler.
func (m *Membrane) dispatch(_ *local.Conn, payload []byte) ([]byte, bool, error) {
	m.lastActivity.Store(time.Now().UnixNano())

	if codec.IsGenomeRequest(payload) {
		return m.genomeJSON, true, nil
	}
	if string(payload) == SwapDrainRequest {
		if err := m.SwapOut(50 * time.Millisecond); err != nil {
			return []byte(err.Error()), true, nil
		}
		return []byte("Ok"), true, nil
	}

	h, body, err := codec.DecodeHeader(payload)
	if err != nil {
		return nil, true, err
	}

	op, ok := m.genome.OperationByID(h.OpID)
	if !ok {
		return encodeErr(h, &cos.ErrUnknownRoute{OpID: h.OpID}), true, nil
	}
	if err := codec.CheckFingerprint(h, m.genome.Fingerprint); err != nil {
		return encodeErr(h, err), true, nil
	}
	handler, ok := m.handlers[op.OpID]
	if !ok {
		return encodeErr(h, &cos.ErrUnknownRoute{OpID: h.OpID}), true, nil
	}

	resp, err := handler(body)
	if err != nil {
		return encodeErr(h, &cos.HandlerError{Op: op.Name, Payload: []byte(err.Error())}), false, nil
	}
	m.counters.IncMsgsHandled()
	return codec.Encode(h, resp), false, nil
}

// encodeErr renders a structured error as a response frame carrying the
// same header so the caller can correlate it to its request; the body is
// the error's message as plain text, with no separate error code.
func encodeErr(h codec.Header, err error) []byte {
	return codec.Encode(h, []byte(err.Error()))
}

func (m *Membrane) checkIdle() time.Duration {
	if m.ln.ActiveStreams() != 0 {
		return 5 * time.Second
	}
	last := time.Unix(0, m.lastActivity.Load())
	if time.Since(last) <= m.idleThreshold {
		return 5 * time.Second
	}
	nlog.Infof("membrane[%s]: idle for %s, exiting", m.name, time.Since(last))
	m.Shutdown()
	os.Exit(cos.ExitOK)
	return 0
}

// ActiveStreams exposes the listener's live connection count.
func (m *Membrane) ActiveStreams() int64 {
	if m.ln == nil {
		return 0
	}
	return m.ln.ActiveStreams()
}
