// Command testcell-echo is the only entrypoint of internal/testcell: a
// real, buildable binary so this repository's own integration tests have
// a genuine <dna-dir>/echo for Stem to Germinate (spec.md §8's S1, S2,
// S3, S4 scenarios). It is test-only scaffolding, not a shipped product
// cell — see internal/testcell's package doc.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/cellmesh/cell/cmn/cos"
	"github.com/cellmesh/cell/cmn/nlog"
	"github.com/cellmesh/cell/config"
	"github.com/cellmesh/cell/hk"
	"github.com/cellmesh/cell/internal/testcell"
	"github.com/cellmesh/cell/membrane"
	"github.com/cellmesh/cell/stats"
)

func main() {
	name := flag.String("name", testcell.Name, "cell name, as passed by Stem's Germinate")
	flag.Parse()

	cfg, err := config.Load("", false)
	if err != nil {
		cos.ExitLogf(cos.ExitCrash, "testcell-echo: load config: %v", err)
	}
	if err := nlog.SetOutput(cfg.RuntimeDir, *name); err != nil {
		cos.ExitLogf(cos.ExitCrash, "testcell-echo: set up logger: %v", err)
	}

	// A replacement binary spawned by stem.Replace is told via
	// CELL_SWAP_NEW to bind "<name>.sock.new" instead of "<name>.sock",
	// so it can come up fully before the old process drains and renames
	// its socket out of the way (spec.md §4.4's atomic swap).
	var sockSuffix string
	if os.Getenv("CELL_SWAP_NEW") != "" {
		sockSuffix = ".sock.new"
	}

	// The Membrane's idle monitor and the metrics sampler both register
	// with hk.DefaultHK; start its schedule.
	go hk.DefaultHK.Run()

	counters := &stats.Counters{}
	m, err := membrane.New(membrane.Config{
		Name:          *name,
		RuntimeDir:    cfg.RuntimeDir,
		Genome:        testcell.Genome(),
		IdleThreshold: time.Duration(cfg.IdleSecs) * time.Second,
		SockSuffix:    sockSuffix,
		Counters:      counters,
	})
	if err != nil {
		cos.ExitLogf(cos.ExitCrash, "testcell-echo: construct membrane: %v", err)
	}
	testcell.Register(m)

	// §4.8's observability hooks: an NDJSON metrics socket always runs
	// (opt-in only in the sense that a reader must dial it), plus an
	// additive Prometheus exporter when CELL_PROM_ADDR configures one. A
	// replacement binary bound to ".sock.new" during an atomic swap uses a
	// distinct metrics name too, so it doesn't steal the still-draining old
	// process's metrics socket out from under it.
	metricsName := *name
	if sockSuffix != "" {
		metricsName = *name + ".new"
	}
	metricsSrv := stats.NewServer(metricsName, cfg.RuntimeDir, counters, nil)
	go func() {
		if err := metricsSrv.Run(); err != nil {
			nlog.Warningf("testcell-echo: metrics server: %v", err)
		}
	}()
	promExporter := stats.NewPromExporter(*name, cfg.PromAddr, counters)
	go func() {
		if err := promExporter.Run(); err != nil {
			nlog.Warningf("testcell-echo: prometheus exporter: %v", err)
		}
	}()

	if err := m.Bind(); err != nil {
		cos.ExitLogf(cos.ExitBindFailure, "testcell-echo: bind: %v", err)
	}
	go func() {
		<-m.Done()
		metricsSrv.Stop(nil)
		promExporter.Stop(nil)
	}()
	nlog.Infof("testcell-echo: %s bound, serving", *name)
	if err := m.Serve(); err != nil {
		cos.ExitLogf(cos.ExitCrash, "testcell-echo: serve: %v", err)
	}
}
