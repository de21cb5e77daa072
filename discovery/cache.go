package discovery

import (
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	peerTTL       = 90 * time.Second
	peerCleanupIv = 30 * time.Second
)

// PeerCache is a TTL'd cache of received PeerRecords, keyed by cell name,
// shared with racer's instance table in spirit (same library, same
// "absence implies staleness, not partition" philosophy).
type PeerCache struct {
	c *cache.Cache
}

// NewPeerCache constructs an empty PeerCache.
func NewPeerCache() *PeerCache {
	return &PeerCache{c: cache.New(peerTTL, peerCleanupIv)}
}

// Put verifies rec's signature and, if valid, stores or refreshes it.
func (p *PeerCache) Put(rec PeerRecord) error {
	if err := rec.Verify(); err != nil {
		return err
	}
	p.c.Set(rec.Name, rec, cache.DefaultExpiration)
	return nil
}

// Get returns the cached PeerRecord for name, if present and unexpired.
func (p *PeerCache) Get(name string) (PeerRecord, bool) {
	v, ok := p.c.Get(name)
	if !ok {
		return PeerRecord{}, false
	}
	return v.(PeerRecord), true
}

// All returns every currently cached PeerRecord.
func (p *PeerCache) All() []PeerRecord {
	items := p.c.Items()
	out := make([]PeerRecord, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(PeerRecord))
	}
	return out
}
