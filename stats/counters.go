// Package stats implements spec.md §4.8's Observability Hooks: three
// atomic counters per cell (cpu_us, rss_bytes, msgs_handled), sampled once
// a second and exported as newline-delimited JSON on
// <runtime-dir>/<name>.metrics.sock. Grounded on aistore's own stats
// package (Prunner/Trunner pattern: a background runner owns a coreStats,
// logs/exports on a timer) but sized down to the three counters spec.md
// actually names, plus an additive Prometheus exporter (§4.8 supplement).
package stats

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/cellmesh/cell/cmn/atomic"
)

// Counters holds the three lock-free counters spec.md §4.8 names. Every
// cell maintains exactly one.
type Counters struct {
	CPUus       atomic.Uint64
	RSSBytes    atomic.Uint64
	MsgsHandled atomic.Uint64
}

// Sample is the point-in-time JSON record written to the metrics socket.
type Sample struct {
	Name        string `json:"name"`
	TimestampNs int64  `json:"ts_ns"`
	CPUus       uint64 `json:"cpu_us"`
	RSSBytes    uint64 `json:"rss_bytes"`
	MsgsHandled uint64 `json:"msgs_handled"`
}

// Snapshot reads the current counter values into a Sample, timestamped
// with wall-clock time. MsgsHandled is only ever added to; CPUus and
// RSSBytes hold the latest /proc sample (zeros when a sample fails), so
// RSSBytes in particular can go down between samples.
func (c *Counters) Snapshot(name string) Sample {
	return Sample{
		Name:        name,
		TimestampNs: time.Now().UnixNano(),
		CPUus:       c.CPUus.Load(),
		RSSBytes:    c.RSSBytes.Load(),
		MsgsHandled: c.MsgsHandled.Load(),
	}
}

// MarshalNDJSON renders a Sample as one NDJSON line (including the
// trailing newline).
func (s Sample) MarshalNDJSON() ([]byte, error) {
	b, err := jsoniter.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// IncMsgsHandled is called by the Membrane dispatcher once per handled
// request (spec.md §4.4's successful dispatch path).
func (c *Counters) IncMsgsHandled() { c.MsgsHandled.Add(1) }
