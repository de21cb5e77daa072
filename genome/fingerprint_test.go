package genome_test

import (
	"testing"

	"github.com/cellmesh/cell/genome"
)

func echoGraph() genome.Graph {
	return genome.Graph{
		Root: "EchoRequest",
		Types: []genome.Type{
			{
				Name: "EchoRequest",
				Fields: []genome.Field{
					{Name: "payload", Type: genome.Prim(genome.KString)},
				},
			},
		},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	g := echoGraph()
	a := genome.Fingerprint(g)
	b := genome.Fingerprint(g)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %#x != %#x", a, b)
	}
}

func TestFingerprintFieldOrderIndependent(t *testing.T) {
	g1 := genome.Graph{
		Root: "Pair",
		Types: []genome.Type{{
			Name: "Pair",
			Fields: []genome.Field{
				{Name: "a", Type: genome.Prim(genome.KI32)},
				{Name: "b", Type: genome.Prim(genome.KI32)},
			},
		}},
	}
	g2 := genome.Graph{
		Root: "Pair",
		Types: []genome.Type{{
			Name: "Pair",
			Fields: []genome.Field{
				{Name: "b", Type: genome.Prim(genome.KI32)},
				{Name: "a", Type: genome.Prim(genome.KI32)},
			},
		}},
	}
	if genome.Fingerprint(g1) != genome.Fingerprint(g2) {
		t.Fatal("fingerprint should not depend on source field declaration order")
	}
}

func TestFingerprintChangesWithShape(t *testing.T) {
	base := genome.Fingerprint(echoGraph())
	g := echoGraph()
	g.Types[0].Fields = append(g.Types[0].Fields, genome.Field{Name: "extra", Type: genome.Prim(genome.KI64)})
	if genome.Fingerprint(g) == base {
		t.Fatal("fingerprint must change when the type graph changes")
	}
}

func TestOpIDStableAndDistinct(t *testing.T) {
	a := genome.OpID("echo", "Echo")
	b := genome.OpID("echo", "Echo")
	if a != b {
		t.Fatal("OpID must be deterministic")
	}
	if genome.OpID("echo", "Other") == a {
		t.Fatal("distinct operation names must not collide (in practice)")
	}
}

func TestGenomeRoundTripJSON(t *testing.T) {
	g := genome.Build("echo", []genome.OperationSpec{
		{
			Name:     "Echo",
			Request:  genome.StructRef("EchoRequest"),
			Response: genome.StructRef("EchoRequest"),
			Types:    echoGraph().Types,
		},
	})
	b, err := genome.MarshalGenome(g)
	if err != nil {
		t.Fatal(err)
	}
	got, err := genome.UnmarshalGenome(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Fingerprint != g.Fingerprint || got.Name != g.Name {
		t.Fatalf("genome did not round-trip: %+v vs %+v", got, g)
	}
	op, ok := got.OperationByID(genome.OpID("echo", "Echo"))
	if !ok || op.Name != "Echo" {
		t.Fatalf("expected to find Echo operation by id, got %+v ok=%v", op, ok)
	}
}
