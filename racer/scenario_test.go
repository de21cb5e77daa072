package racer_test

import (
	"testing"
	"time"

	"github.com/cellmesh/cell/racer"
)

// TestFastestSelectionUnderLoad is scenario S5: three replicas at 1ms,
// 3ms, 8ms average latency, all healthy. Under the Fastest strategy,
// 1,000 requests must route at least 90% of the time to the 1ms replica;
// once that replica's breaker opens after 5 consecutive failures,
// requests must route to the 3ms replica until the breaker's open window
// elapses.
func TestFastestSelectionUnderLoad(t *testing.T) {
	table := racer.NewTable()
	table.Upsert(&racer.Instance{Name: "price", Endpoint: "fast", Healthy: true, AvgLatency: time.Millisecond})
	table.Upsert(&racer.Instance{Name: "price", Endpoint: "mid", Healthy: true, AvgLatency: 3 * time.Millisecond})
	table.Upsert(&racer.Instance{Name: "price", Endpoint: "slow", Healthy: true, AvgLatency: 8 * time.Millisecond})

	r := racer.NewRouter(table, racer.Fastest, "")

	var toFast int
	const n = 1000
	for i := 0; i < n; i++ {
		inst, err := r.Pick("price", nil)
		if err != nil {
			t.Fatalf("Pick: %v", err)
		}
		if inst.Endpoint == "fast" {
			toFast++
		}
		r.ReportOutcome(inst.Endpoint, true)
	}
	if toFast < int(0.9*n) {
		t.Fatalf("routed %d/%d to the 1ms replica, want >= 90%%", toFast, n)
	}

	// Drive the fast replica's breaker open with 5 consecutive failures.
	for i := 0; i < 5; i++ {
		r.ReportOutcome("fast", false)
	}

	inst, err := r.Pick("price", nil)
	if err != nil {
		t.Fatalf("Pick after breaker opens: %v", err)
	}
	if inst.Endpoint != "mid" {
		t.Fatalf("got endpoint %q after the 1ms replica's breaker opened, want mid (3ms replica)", inst.Endpoint)
	}

	// Every subsequent pick for the breaker's open duration must still
	// avoid "fast".
	for i := 0; i < 20; i++ {
		inst, err := r.Pick("price", nil)
		if err != nil {
			t.Fatalf("Pick: %v", err)
		}
		if inst.Endpoint == "fast" {
			t.Fatalf("routed to the open-breaker replica on attempt %d", i)
		}
	}
}
