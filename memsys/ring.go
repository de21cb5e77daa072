//go:build linux

// Package memsys implements spec.md §4.7's triple-slot shared-memory ring:
// a producer allocates an anonymous, size-sealed memory object (via
// memfd_create), maps it read-write, and passes the descriptor to a peer
// over a Unix stream socket (see fdpass.go); the peer maps it read-only.
// The wire-level protocol (two atomics in a 64-byte header, three equal
// slots, acquire/release publication) is exactly §4.7; the memory
// allocation strategy is adapted from AlephTX-aleph-tx/feeder/shm, which
// mmaps a /dev/shm-backed file for the same "flat shared structure, atomic
// sequencing" shape — restructured here from that repo's seqlock/version
// scheme into the specified three-slot, two-atomic design.
/*
 * adapted from AlephTX-aleph-tx/feeder/shm (MIT)
 */
package memsys

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// NumSlots is fixed at three per spec.md §3/§4.7.
	NumSlots = 3

	// HeaderSize is the 64-byte, 64-byte-aligned control header:
	// write_ready (atomic u8, stored as u32 for natural alignment),
	// frame_index (atomic u64), and padding out to 64 bytes.
	HeaderSize = 64
)

// Policy configures what the producer does when it is about to publish a
// frame faster than the reader can be assumed to have drained the
// previous one. spec.md §9 leaves the exact quota/policy choice to the
// implementer; OverwriteNewest is the specified default for latency-bound
// traffic and is the only policy meaningful across the process boundary,
// since a consumer's descriptor is mapped read-only (§4.2) and therefore
// cannot acknowledge consumption back through the shared header itself.
// Drop and Block are honored only for same-process producer/consumer pairs
// wired through SetAckFunc — see DESIGN.md.
type Policy int

const (
	OverwriteNewest Policy = iota
	Drop
	Block
)

type ringHeader struct {
	writeReady uint32
	_          uint32
	frameIndex uint64
	_          [48]byte
}

func init() {
	if unsafe.Sizeof(ringHeader{}) != HeaderSize {
		panic(fmt.Sprintf("memsys: ringHeader size is %d, want %d", unsafe.Sizeof(ringHeader{}), HeaderSize))
	}
}

// Ring is one triple-slot shared-memory buffer, either the producer's
// read-write mapping or a consumer's read-only mapping of the same
// underlying memory object.
type Ring struct {
	data     []byte
	hdr      *ringHeader
	slotSize int
	writable bool
	policy   Policy
	ackFn    func(consumed uint64) bool // same-process backpressure hook, see Policy
	fd       int
}

// Size returns the total byte length of the mapped region (header + 3
// slots), the value that must accompany the descriptor's file descriptor
// when passed to a peer (spec.md §3's Shared buffer descriptor).
func (r *Ring) Size() int64 { return int64(len(r.data)) }

// FD returns the underlying memory object's file descriptor (valid for the
// producer side only; consumers receive their own duplicate via fdpass).
func (r *Ring) FD() int { return r.fd }

func totalSize(slotSize int) int { return HeaderSize + NumSlots*slotSize }

// NewProducerRing allocates a sealed anonymous memory object sized for
// NumSlots slots of slotSize bytes, maps it read-write, and returns the
// producer-side Ring. name is used only for debugging (memfd names show up
// in /proc/<pid>/fd on Linux).
func NewProducerRing(name string, slotSize int, policy Policy) (*Ring, error) {
	if slotSize <= 0 {
		return nil, fmt.Errorf("memsys: slotSize must be positive, got %d", slotSize)
	}
	fd, err := unix.MemfdCreate(name, unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memsys: memfd_create: %w", err)
	}
	size := totalSize(slotSize)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memsys: ftruncate: %w", err)
	}
	// Seal the size so a peer mapping the fd read-only can trust it will
	// never shrink or grow out from under it (spec.md §4.2: "seals it
	// write-once to its size").
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memsys: seal: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memsys: mmap: %w", err)
	}
	r := &Ring{
		data:     data,
		hdr:      (*ringHeader)(unsafe.Pointer(&data[0])),
		slotSize: slotSize,
		writable: true,
		policy:   policy,
		fd:       fd,
	}
	return r, nil
}

// NewConsumerRing maps an already-allocated memory object (received via
// fdpass.Recv) read-only.
func NewConsumerRing(fd int, slotSize int) (*Ring, error) {
	size := totalSize(slotSize)
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("memsys: mmap (reader): %w", err)
	}
	return &Ring{
		data:     data,
		hdr:      (*ringHeader)(unsafe.Pointer(&data[0])),
		slotSize: slotSize,
		writable: false,
		fd:       fd,
	}, nil
}

// Close unmaps the ring and, for the producer, closes the backing fd.
func (r *Ring) Close() error {
	err := unix.Munmap(r.data)
	if r.writable {
		unix.Close(r.fd)
	}
	return err
}

func (r *Ring) slot(idx uint64) []byte {
	i := idx % NumSlots
	off := HeaderSize + int(i)*r.slotSize
	return r.data[off : off+r.slotSize]
}

// SetAckFunc wires a same-process consumer's last-consumed frame index
// back to the producer for the Drop/Block policies; see the Policy
// doc comment for why this only works within one process.
func (r *Ring) SetAckFunc(fn func(consumed uint64) bool) { r.ackFn = fn }

// Publish writes data into the current write slot and makes it visible to
// readers, implementing spec.md §4.7's publication protocol:
//
//  1. write only into slot F mod 3 (the write slot)
//  2. store write_ready = 1 with release semantics
//  3. increment F with release semantics
//
// dropped reports whether the frame was skipped under the Drop policy.
func (r *Ring) Publish(data []byte) (dropped bool, err error) {
	if !r.writable {
		return false, fmt.Errorf("memsys: ring is read-only")
	}
	if len(data) > r.slotSize {
		return false, fmt.Errorf("memsys: frame of %d bytes exceeds slot size %d", len(data), r.slotSize)
	}
	f := atomic.LoadUint64(&r.hdr.frameIndex)

	if r.ackFn != nil && r.policy != OverwriteNewest && f >= NumSlots {
		// About to overwrite slot f mod 3, which last held frame f-3; if
		// the consumer has not yet consumed up through frame f-2, apply
		// policy.
		if !r.ackFn(f - 2) {
			if r.policy == Drop {
				return true, nil
			}
			// Block: spin, yielding the processor between checks, until
			// the consumer acknowledges frame f-2.
			for !r.ackFn(f - 2) {
				runtime.Gosched()
			}
		}
	}

	copy(r.slot(f), data)
	atomic.StoreUint32(&r.hdr.writeReady, 1)
	atomic.AddUint64(&r.hdr.frameIndex, 1)
	return false, nil
}

// Observe returns the producer's current publication index with acquire
// semantics — what a reader polls to detect new data.
func (r *Ring) Observe() uint64 { return atomic.LoadUint64(&r.hdr.frameIndex) }

// ReadQueued returns the contents of the "queued" slot — (f-1) mod 3 —
// for the publication index f last observed via Observe, along with
// whether that read is still the frame the caller thinks it is (i.e.
// whether f is still the latest index; if the producer has since
// published 3 or more times, the data may have been overwritten and the
// caller should Observe again and treat this as a dropped frame under
// the overwrite-newest policy).
func (r *Ring) ReadQueued(f uint64) (frame []byte, stale bool) {
	if f == 0 {
		return nil, false
	}
	queued := f - 1
	out := make([]byte, r.slotSize)
	copy(out, r.slot(queued))
	stale = atomic.LoadUint64(&r.hdr.frameIndex) != f
	return out, stale
}
