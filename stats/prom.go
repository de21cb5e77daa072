package stats

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cellmesh/cell/cmn/nlog"
)

// PromExporter additively exposes a cell's Counters as Prometheus gauges
// on an opt-in HTTP listener (CELL_PROM_ADDR), alongside — not instead of
// — the NDJSON metrics socket Server already provides. Grounded on the
// prometheus/client_golang usage shared by aistore and linkerd2 in the
// retrieval pack: a private Registry, a handful of GaugeFunc collectors
// labeled by cell name, each reading straight from the live Counters at
// scrape time rather than on their own timer.
type PromExporter struct {
	name     string
	counters *Counters
	registry *prometheus.Registry
	srv      *http.Server
}

// NewPromExporter constructs an exporter for cell name. addr is the
// listen address (e.g. ":9090"); if empty, Run is a no-op — this is how
// CELL_PROM_ADDR being unset disables the exporter entirely.
func NewPromExporter(name, addr string, counters *Counters) *PromExporter {
	reg := prometheus.NewRegistry()
	e := &PromExporter{name: name, counters: counters, registry: reg}

	labels := prometheus.Labels{"cell": name}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cell", Name: "cpu_microseconds",
			Help:        "Cumulative CPU time consumed by the cell process, in microseconds.",
			ConstLabels: labels,
		}, func() float64 { return float64(counters.CPUus.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cell", Name: "rss_bytes",
			Help:        "Resident set size of the cell process, in bytes.",
			ConstLabels: labels,
		}, func() float64 { return float64(counters.RSSBytes.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cell", Name: "messages_handled_total",
			Help:        "Total requests dispatched by the cell's Membrane.",
			ConstLabels: labels,
		}, func() float64 { return float64(counters.MsgsHandled.Load()) }),
	)
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		e.srv = &http.Server{Addr: addr, Handler: mux}
	}
	return e
}

// Run serves /metrics until Stop is called. If no address was configured
// it returns immediately.
func (e *PromExporter) Run() error {
	if e.srv == nil {
		return nil
	}
	if err := e.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts down the HTTP listener, if any.
func (e *PromExporter) Stop(_ error) {
	if e.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.srv.Shutdown(ctx); err != nil {
		nlog.Warningf("stats: prometheus exporter shutdown: %v", err)
	}
}

var _ Runner = (*PromExporter)(nil)
