package discovery

import (
	"crypto/ed25519"
	"net"
	"time"

	"github.com/cellmesh/cell/cmn/nlog"
	"github.com/cellmesh/cell/hk"
)

// DefaultMulticastAddr is the LAN group a Beacon announces on and a
// Listener joins, analogous to mDNS's 224.0.0.251 but scoped to this
// substrate's own port to avoid colliding with real mDNS traffic.
const DefaultMulticastAddr = "239.192.77.65:7770"

// Beacon periodically broadcasts a signed PeerRecord for this host's
// cells onto a LAN multicast group, so Synapses on other hosts can learn
// of them without a directory service.
type Beacon struct {
	addr     string
	conn     *net.UDPConn
	priv     ed25519.PrivateKey
	interval time.Duration
	record   func() PeerRecord // recomputed each tick, e.g. to reflect load
	hk       *hk.Housekeeper
}

// NewBeacon constructs a Beacon that signs with priv and re-derives the
// PeerRecord to send from recordFn on every tick (letting load/health
// fields stay current without the caller re-registering a Beacon).
func NewBeacon(addr string, priv ed25519.PrivateKey, interval time.Duration, recordFn func() PeerRecord, housekeeper *hk.Housekeeper) (*Beacon, error) {
	groupAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, groupAddr)
	if err != nil {
		return nil, err
	}
	if housekeeper == nil {
		housekeeper = hk.DefaultHK
	}
	return &Beacon{addr: addr, conn: conn, priv: priv, interval: interval, record: recordFn, hk: housekeeper}, nil
}

// Start registers the periodic announce tick with hk.
func (b *Beacon) Start() {
	b.hk.Reg("discovery-beacon", b.announce, b.interval)
}

// Stop unregisters the tick and closes the socket.
func (b *Beacon) Stop() {
	b.hk.Unreg("discovery-beacon")
	b.conn.Close()
}

func (b *Beacon) announce() time.Duration {
	rec := b.record()
	rec.Sign(b.priv)
	body, err := MarshalPeerRecord(rec)
	if err != nil {
		nlog.Warningf("discovery: marshal peer record: %v", err)
		return b.interval
	}
	if _, err := b.conn.Write(body); err != nil {
		nlog.Warningf("discovery: beacon write: %v", err)
	}
	return b.interval
}

// Listener joins the multicast group and feeds every valid, signed
// PeerRecord it hears into a PeerCache.
type Listener struct {
	conn  *net.UDPConn
	cache *PeerCache
}

// NewListener joins addr's multicast group on iface (nil for the default
// interface) and returns a Listener ready to Serve.
func NewListener(addr string, iface *net.Interface, cache *PeerCache) (*Listener, error) {
	groupAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp", iface, groupAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn, cache: cache}, nil
}

// Serve reads announcements until the Listener is closed.
func (l *Listener) Serve() error {
	buf := make([]byte, 4096)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		rec, err := UnmarshalPeerRecord(buf[:n])
		if err != nil {
			nlog.Warningf("discovery: malformed peer record: %v", err)
			continue
		}
		if err := l.cache.Put(rec); err != nil {
			nlog.Warningf("discovery: rejecting peer record for %q: %v", rec.Name, err)
		}
	}
}

// Close stops the Listener.
func (l *Listener) Close() error { return l.conn.Close() }
