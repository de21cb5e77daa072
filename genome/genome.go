package genome

import jsoniter "github.com/json-iterator/go"

// GenomeRequest is the reserved magic payload of spec.md §3/§4.4 that
// triggers schema introspection instead of operation dispatch.
const GenomeRequest = "GENOME_REQUEST"

type (
	// Operation describes one RPC a cell exposes: its name, the request
	// and response type refs (resolved against the Genome's Types), its
	// op id (spec.md §3's "route/operation id"), and whether it streams.
	Operation struct {
		Name      string  `json:"name"`
		OpID      uint64  `json:"op_id"`
		Request   TypeRef `json:"request"`
		Response  TypeRef `json:"response"`
		Streaming bool    `json:"streaming"`
	}

	// Genome is the self-description a cell publishes on GENOME_REQUEST:
	// its name, overall fingerprint, operations and referenced type
	// schemas (spec.md §3).
	Genome struct {
		Name        string      `json:"name"`
		Fingerprint uint64      `json:"fingerprint"`
		Operations  []Operation `json:"operations"`
		Types       []Type      `json:"types"`
	}
)

// Build assembles a Genome from a cell name and its operations' request/
// response graphs, computing each operation's op id and the overall
// fingerprint as the BLAKE3 prefix over the concatenation of every
// operation's own canonical graph — so a genome's Fingerprint changes if
// and only if some operation's wire shape changes.
func Build(name string, ops []OperationSpec) Genome {
	g := Genome{Name: name}
	typeSet := map[string]Type{}
	var all string
	for _, spec := range ops {
		opID := OpID(name, spec.Name)
		reqGraph := Graph{Root: spec.Request.Ref, Types: spec.Types}
		all += Canonical(reqGraph)
		for _, t := range spec.Types {
			typeSet[t.Name] = t
		}
		g.Operations = append(g.Operations, Operation{
			Name: spec.Name, OpID: opID,
			Request: spec.Request, Response: spec.Response,
			Streaming: spec.Streaming,
		})
	}
	for _, t := range typeSet {
		g.Types = append(g.Types, t)
	}
	g.Fingerprint = FingerprintString(all)
	return g
}

// OperationSpec is the build-time (cmd/schemagen) input describing one
// operation prior to fingerprinting.
type OperationSpec struct {
	Name      string
	Request   TypeRef
	Response  TypeRef
	Streaming bool
	Types     []Type
}

// MarshalGenome renders a Genome as the single JSON frame spec.md §4.4
// returns for a GENOME_REQUEST.
func MarshalGenome(g Genome) ([]byte, error) { return jsoniter.Marshal(g) }

// UnmarshalGenome parses a peer-supplied genome, as done by a Synapse that
// wants to verify a peer's fingerprint before dialing (spec.md §4.1: "a
// peer can download a schema and verify an identical hash").
func UnmarshalGenome(b []byte) (Genome, error) {
	var g Genome
	err := jsoniter.Unmarshal(b, &g)
	return g, err
}

// OperationByID looks up an operation by its op id, as the Membrane
// dispatcher does on every frame (spec.md §4.4).
func (g Genome) OperationByID(opID uint64) (Operation, bool) {
	for _, op := range g.Operations {
		if op.OpID == opID {
			return op, true
		}
	}
	return Operation{}, false
}
