package racer_test

import (
	"testing"
	"time"

	"github.com/cellmesh/cell/racer"
)

func TestFastestPicksLowestLatency(t *testing.T) {
	candidates := []*racer.Instance{
		{Endpoint: "a", Healthy: true, AvgLatency: 50 * time.Millisecond},
		{Endpoint: "b", Healthy: true, AvgLatency: 10 * time.Millisecond},
		{Endpoint: "c", Healthy: false, AvgLatency: time.Millisecond},
	}
	got := racer.Fastest(candidates, "")
	if got == nil || got.Endpoint != "b" {
		t.Fatalf("got %+v, want endpoint b", got)
	}
}

func TestGeographicPrefersLocalRegion(t *testing.T) {
	candidates := []*racer.Instance{
		{Endpoint: "far", Healthy: true, Region: "eu", AvgLatency: time.Millisecond},
		{Endpoint: "near", Healthy: true, Region: "us", AvgLatency: 50 * time.Millisecond},
	}
	got := racer.Geographic(candidates, "us")
	if got == nil || got.Endpoint != "near" {
		t.Fatalf("got %+v, want endpoint near (local region)", got)
	}
}

func TestBreakerOpensAfterFiveFailuresAndRejectsWhileOpen(t *testing.T) {
	b := racer.NewBreaker()
	for i := 0; i < 5; i++ {
		if !b.Allow() {
			t.Fatalf("expected Allow() to be true before the breaker opens (failure %d)", i)
		}
		b.RecordFailure()
	}
	if b.State() != "open" {
		t.Fatalf("got state %q, want open after 5 consecutive failures", b.State())
	}
	if b.Allow() {
		t.Fatal("expected Allow() to reject while open")
	}
}

func TestRouterPickExcludesTriedEndpoints(t *testing.T) {
	table := racer.NewTable()
	table.Upsert(&racer.Instance{Name: "svc", Endpoint: "a", Healthy: true})
	table.Upsert(&racer.Instance{Name: "svc", Endpoint: "b", Healthy: true})

	r := racer.NewRouter(table, racer.Fastest, "")
	inst, err := r.Pick("svc", map[string]bool{"a": true})
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if inst.Endpoint != "b" {
		t.Fatalf("got endpoint %q, want b", inst.Endpoint)
	}
}

func TestRetryableNilIsFalse(t *testing.T) {
	if racer.Retryable(nil) {
		t.Fatal("nil error should not be retryable")
	}
}
