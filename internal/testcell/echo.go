// Package testcell provides the genome and handler wiring for "echo", a
// minimal cell used only by this repository's own integration tests
// (spec.md §8's S1–S4 scenarios). It is not a shipped product cell —
// internal/testcell/cmd/echo is its only entrypoint, and it exists solely so those
// tests have a real <dna-dir>/echo binary for Stem to Germinate.
package testcell

import (
	"github.com/cellmesh/cell/genome"
	"github.com/cellmesh/cell/membrane"
)

// EchoRequest/EchoResponse are the echo cell's sole operation's wire
// shapes: a single string field, round-tripped unchanged.
type EchoRequest struct {
	Payload string `json:"payload"`
}

type EchoResponse struct {
	Payload string `json:"payload"`
}

// Name is the cell name baked into the genome and into every Germinate/
// Connect call the integration tests make.
const Name = "echo"

// OpEcho is the one operation this cell exposes.
const OpEcho = "Echo"

// Genome builds the echo cell's genome. Exported so both the fixture
// binary (internal/testcell/cmd/echo) and the integration tests that construct a
// client-side fingerprint to compare against can compute it identically,
// mirroring how cmd/schemagen would emit it for a real cell.
func Genome() genome.Genome {
	reqType := genome.Type{Name: "EchoRequest", Fields: []genome.Field{
		{Name: "payload", Type: genome.Prim(genome.KString)},
	}}
	respType := genome.Type{Name: "EchoResponse", Fields: []genome.Field{
		{Name: "payload", Type: genome.Prim(genome.KString)},
	}}
	return genome.Build(Name, []genome.OperationSpec{
		{
			Name:     OpEcho,
			Request:  genome.StructRef("EchoRequest"),
			Response: genome.StructRef("EchoResponse"),
			Types:    []genome.Type{reqType, respType},
		},
	})
}

// Register attaches the echo handler to m. m must have been constructed
// with Genome() as its Config.Genome. The handler reads/writes its body
// via EchoRequest/EchoResponse's msgp.Marshaler/Unmarshaler methods
// directly (membrane's dispatch has already stripped the frame header by
// the time an OpHandler runs, and re-attaches one to the response itself,
// so there is no header left for EncodeValue/DecodeValue to handle here —
// those are exercised on the caller's side of the wire instead).
func Register(m *membrane.Membrane) {
	m.Register(OpEcho, func(body []byte) ([]byte, error) {
		var req EchoRequest
		if _, err := req.UnmarshalMsg(body); err != nil {
			return nil, err
		}
		resp := EchoResponse{Payload: req.Payload}
		return resp.MarshalMsg(nil)
	})
}
