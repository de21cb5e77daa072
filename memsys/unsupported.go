//go:build !linux

package memsys

import "fmt"

// memfd_create-backed rings are Linux-only (spec.md §4.2 marks the
// shared-memory ring as "optional, opt-in"); on other platforms the
// substrate falls back to socket-only transport.

const (
	NumSlots   = 3
	HeaderSize = 64
)

type Policy int

const (
	OverwriteNewest Policy = iota
	Drop
	Block
)

type Ring struct{}

func NewProducerRing(string, int, Policy) (*Ring, error) {
	return nil, fmt.Errorf("memsys: shared-memory rings require linux")
}

func NewConsumerRing(int, int) (*Ring, error) {
	return nil, fmt.Errorf("memsys: shared-memory rings require linux")
}
