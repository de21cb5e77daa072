// Package racer implements spec.md §4.6's replica-selection router: a
// ranked table of instances per cell name, EWMA latency tracking, pluggable
// selection strategies, a per-endpoint circuit breaker, and the retry
// policy governing when a failed call may be retried against a different
// endpoint. Grounded on linkerd2's dependency on `patrickmn/go-cache` for
// exactly this shape of TTL'd service/endpoint table, combined with
// aistore's own EWMA-smoothed latency bookkeeping idiom (plain floats
// behind a mutex, no third-party stats library — the pack does not carry
// one for this).
package racer

import (
	"math/rand"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Instance is one known replica of a cell name (spec.md §3's Instance
// record).
type Instance struct {
	Name        string
	Endpoint    string // "name@host" or a bare local cell name (<runtime-dir>/<name>.sock)
	Fingerprint uint64
	Region      string
	Load        float64 // 0..1, self-reported
	Healthy     bool
	LastSeen    time.Time
	AvgLatency  time.Duration // EWMA
}

const (
	ewmaAlpha         = 0.3
	instanceTTL       = 2 * time.Minute
	instanceCleanupIv = 30 * time.Second
)

// Table is the per-name ranked instance table. One Table is typically
// shared process-wide by a Synapse.
type Table struct {
	mu     sync.Mutex
	byName map[string][]*Instance // cell name -> replicas
	cache  *cache.Cache           // endpoint -> *Instance, TTL-evicted
}

// NewTable constructs an empty instance Table.
func NewTable() *Table {
	t := &Table{
		byName: make(map[string][]*Instance),
		cache:  cache.New(instanceTTL, instanceCleanupIv),
	}
	// An endpoint whose TTL entry expires unrefreshed leaves byName too.
	t.cache.OnEvicted(func(endpoint string, v interface{}) {
		inst := v.(*Instance)
		t.mu.Lock()
		defer t.mu.Unlock()
		list := t.byName[inst.Name]
		for i, existing := range list {
			if existing.Endpoint == endpoint {
				t.byName[inst.Name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	})
	return t
}

// Upsert records or refreshes an Instance, as learned from discovery or a
// successful Connect.
func (t *Table) Upsert(inst *Instance) {
	inst.LastSeen = time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.Set(inst.Endpoint, inst, cache.DefaultExpiration)
	list := t.byName[inst.Name]
	for _, existing := range list {
		if existing.Endpoint == inst.Endpoint {
			*existing = *inst
			return
		}
	}
	t.byName[inst.Name] = append(list, inst)
}

// Replicas returns the currently known replicas of name (including stale
// ones not yet evicted by the TTL sweep — health/circuit state, not TTL,
// is what excludes an endpoint from selection).
func (t *Table) Replicas(name string) []*Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Instance, len(t.byName[name]))
	copy(out, t.byName[name])
	return out
}

// RecordLatency folds a fresh round-trip measurement into inst's EWMA.
func (t *Table) RecordLatency(inst *Instance, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if inst.AvgLatency == 0 {
		inst.AvgLatency = d
		return
	}
	inst.AvgLatency = time.Duration(ewmaAlpha*float64(d) + (1-ewmaAlpha)*float64(inst.AvgLatency))
}

// Strategy selects one instance among candidates. Implementations must
// not mutate candidates.
type Strategy func(candidates []*Instance, localRegion string) *Instance

// Fastest picks the minimum-EWMA-latency healthy instance.
func Fastest(candidates []*Instance, _ string) *Instance {
	var best *Instance
	for _, c := range candidates {
		if !c.Healthy {
			continue
		}
		if best == nil || c.AvgLatency < best.AvgLatency {
			best = c
		}
	}
	return best
}

// LeastLoaded picks the minimum reported-load healthy instance.
func LeastLoaded(candidates []*Instance, _ string) *Instance {
	var best *Instance
	for _, c := range candidates {
		if !c.Healthy {
			continue
		}
		if best == nil || c.Load < best.Load {
			best = c
		}
	}
	return best
}

// Geographic prefers an instance in localRegion, tie-breaking on latency.
func Geographic(candidates []*Instance, localRegion string) *Instance {
	var bestLocal, bestAny *Instance
	for _, c := range candidates {
		if !c.Healthy {
			continue
		}
		if bestAny == nil || c.AvgLatency < bestAny.AvgLatency {
			bestAny = c
		}
		if c.Region == localRegion && (bestLocal == nil || c.AvgLatency < bestLocal.AvgLatency) {
			bestLocal = c
		}
	}
	if bestLocal != nil {
		return bestLocal
	}
	return bestAny
}

// Adaptive performs weighted-random selection with weight
// latency_score * (1 - load) * health_weight, per spec.md §4.6.
func Adaptive(candidates []*Instance, _ string) *Instance {
	type weighted struct {
		inst   *Instance
		weight float64
	}
	var pool []weighted
	var total float64
	for _, c := range candidates {
		healthWeight := 0.0
		if c.Healthy {
			healthWeight = 1.0
		}
		if healthWeight == 0 {
			continue
		}
		latencyScore := 1.0
		if c.AvgLatency > 0 {
			latencyScore = 1.0 / (1.0 + c.AvgLatency.Seconds())
		}
		w := latencyScore * (1 - c.Load) * healthWeight
		if w <= 0 {
			w = 0.0001 // keep a nonzero floor so a healthy-but-saturated replica is still reachable
		}
		pool = append(pool, weighted{c, w})
		total += w
	}
	if len(pool) == 0 {
		return nil
	}
	r := rand.Float64() * total
	for _, p := range pool {
		r -= p.weight
		if r <= 0 {
			return p.inst
		}
	}
	return pool[len(pool)-1].inst
}
