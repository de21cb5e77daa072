package racer

import (
	"errors"
	"sync"

	"github.com/cellmesh/cell/cmn/cos"
)

// MaxRetries is the number of additional distinct, healthy endpoints a
// caller may try after the first failure, per spec.md §4.6.
const MaxRetries = 2

// Router ties a Table of known instances to one Strategy and maintains a
// Breaker per endpoint.
type Router struct {
	table       *Table
	strategy    Strategy
	localRegion string

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRouter constructs a Router over table using strategy, tagging this
// host's region for Geographic selection.
func NewRouter(table *Table, strategy Strategy, localRegion string) *Router {
	return &Router{
		table:       table,
		strategy:    strategy,
		localRegion: localRegion,
		breakers:    make(map[string]*Breaker),
	}
}

func (r *Router) breaker(endpoint string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[endpoint]
	if !ok {
		b = NewBreaker()
		r.breakers[endpoint] = b
	}
	return b
}

// Pick selects one healthy, closed-breaker instance of name, excluding
// any endpoint in tried (used across retry attempts to force distinct
// endpoints per spec.md §4.6's retry policy).
func (r *Router) Pick(name string, tried map[string]bool) (*Instance, error) {
	candidates := r.table.Replicas(name)
	var eligible []*Instance
	for _, c := range candidates {
		if tried[c.Endpoint] {
			continue
		}
		if !r.breaker(c.Endpoint).Allow() {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil, &cos.ErrUnavailable{}
	}
	inst := r.strategy(eligible, r.localRegion)
	if inst == nil {
		return nil, &cos.ErrUnavailable{}
	}
	return inst, nil
}

// ReportOutcome feeds a call's outcome back into the endpoint's breaker.
func (r *Router) ReportOutcome(endpoint string, success bool) {
	b := r.breaker(endpoint)
	if success {
		b.RecordSuccess()
	} else {
		b.RecordFailure()
	}
}

// Retryable reports whether err should trigger a retry against a
// different endpoint, per spec.md §4.6: retry on connection error or
// Unavailable; never on SchemaMismatch or a handler-returned error.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if cos.IsErrSchemaMismatch(err) {
		return false
	}
	var handlerErr *cos.HandlerError
	if errors.As(err, &handlerErr) {
		return false
	}
	return cos.IsUnreachable(err) || cos.IsRetriableConnErr(err) || cos.IsErrUnavailable(err)
}
