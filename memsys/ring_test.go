//go:build linux

package memsys_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/cellmesh/cell/memsys"
)

func TestRingPublishObserveRoundTrip(t *testing.T) {
	r, err := memsys.NewProducerRing("test-ring", 64, memsys.OverwriteNewest)
	if err != nil {
		t.Fatalf("NewProducerRing: %v", err)
	}
	defer r.Close()

	for i := 0; i < 5; i++ {
		payload := []byte(fmt.Sprintf("frame-%d", i))
		if _, err := r.Publish(payload); err != nil {
			t.Fatalf("Publish(%d): %v", i, err)
		}
		f := r.Observe()
		got, stale := r.ReadQueued(f)
		if stale {
			t.Fatalf("frame %d: unexpected staleness with no concurrent writer", i)
		}
		got = bytes.TrimRight(got, "\x00")
		if !bytes.Equal(got, payload) {
			t.Fatalf("frame %d: got %q, want %q", i, got, payload)
		}
	}
}

func TestRingRejectsOversizedFrame(t *testing.T) {
	r, err := memsys.NewProducerRing("test-ring-2", 8, memsys.OverwriteNewest)
	if err != nil {
		t.Fatalf("NewProducerRing: %v", err)
	}
	defer r.Close()
	if _, err := r.Publish(make([]byte, 9)); err == nil {
		t.Fatal("expected error publishing a frame larger than the slot size")
	}
}

func TestRingDropPolicyHonorsAck(t *testing.T) {
	r, err := memsys.NewProducerRing("test-ring-3", 16, memsys.Drop)
	if err != nil {
		t.Fatalf("NewProducerRing: %v", err)
	}
	defer r.Close()

	consumed := uint64(0)
	r.SetAckFunc(func(upTo uint64) bool { return consumed >= upTo })

	var dropped int
	for i := 0; i < 6; i++ {
		d, err := r.Publish([]byte(fmt.Sprintf("f%d", i)))
		if err != nil {
			t.Fatal(err)
		}
		if d {
			dropped++
		}
	}
	if dropped == 0 {
		t.Fatal("expected at least one dropped frame once the consumer falls behind by 3+ publications")
	}
}

// TestRingConcurrentReaderNeverSeesPartialSlot runs a real producer
// goroutine against a real reader goroutine over the triple-slot ring: the
// producer writes frames 0..N with payload i -> i*i, and the reader polls
// Observe/ReadQueued concurrently. Every non-stale read must decode to
// some frame's actual i*i value (a torn write would decode to neither a
// valid i*i nor the all-zero initial contents).
func TestRingConcurrentReaderNeverSeesPartialSlot(t *testing.T) {
	const n = 20000
	r, err := memsys.NewProducerRing("test-ring-concurrent", 8, memsys.OverwriteNewest)
	if err != nil {
		t.Fatalf("NewProducerRing: %v", err)
	}
	defer r.Close()

	squares := make(map[uint64]bool, n)
	for i := uint64(0); i < n; i++ {
		squares[i*i] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint64(0); i < n; i++ {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], i*i)
			if _, err := r.Publish(buf[:]); err != nil {
				t.Errorf("Publish(%d): %v", i, err)
				return
			}
		}
	}()

	var reads int
	for {
		select {
		case <-done:
			if reads == 0 {
				t.Fatal("reader observed nothing while the producer ran")
			}
			return
		default:
		}
		f := r.Observe()
		frame, stale := r.ReadQueued(f)
		if stale || frame == nil {
			continue
		}
		reads++
		v := binary.LittleEndian.Uint64(frame)
		if !squares[v] {
			t.Fatalf("reader observed a value %d that is not any i*i — torn or garbage read", v)
		}
	}
}
