// Package genome implements the "Protein" layer of spec.md §4.1/§3: the
// compile-time computed fingerprint over a message type's shape, and the
// run-time self-description (the Genome) a cell publishes for schema
// introspection. The canonicalization and fingerprint algorithm here are
// the one piece of the substrate both peers must compute identically and
// independently (spec.md §4.1's fingerprint rule) — there is no runtime
// negotiation.
package genome

import "fmt"

// Kind enumerates the container/primitive kinds the canonical form
// recognizes. The set matches the "fixed integer widths, container kinds"
// vocabulary named by spec.md §4.1.
type Kind int

const (
	KBool Kind = iota
	KI8
	KI16
	KI32
	KI64
	KU8
	KU16
	KU32
	KU64
	KF32
	KF64
	KString
	KBytes
	KList
	KStruct
	KEnum
)

var kindNames = map[Kind]string{
	KBool: "bool", KI8: "i8", KI16: "i16", KI32: "i32", KI64: "i64",
	KU8: "u8", KU16: "u16", KU32: "u32", KU64: "u64",
	KF32: "f32", KF64: "f64", KString: "string", KBytes: "bytes",
	KList: "list", KStruct: "struct", KEnum: "enum",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type (
	// Field is a named, typed member of a Struct or a Variant's payload.
	Field struct {
		Name string
		Type TypeRef
	}

	// TypeRef names a type in the graph: either a Kind-level primitive/
	// container (Elem set for KList) or a reference to another declared
	// Type by name (Ref set, Kind == KStruct or KEnum).
	TypeRef struct {
		Kind Kind
		Elem *TypeRef // element type, when Kind == KList
		Ref  string   // referenced Type.Name, when Kind == KStruct or KEnum
	}

	// Variant is one arm of a tagged enum: an ordinal and an optional
	// associated-type reference (nil for a unit variant).
	Variant struct {
		Name    string
		Ordinal int
		Assoc   *TypeRef
	}

	// Type is a struct (named, typed fields) or a tagged enum (named,
	// ordinal-ordered variants) — the two shapes spec.md §3 allows in a
	// Genome's referenced type schemas.
	Type struct {
		Name     string
		IsEnum   bool
		Fields   []Field   // struct case
		Variants []Variant // enum case
	}

	// Graph is the full set of types reachable from a message's root type,
	// rooted at Root.
	Graph struct {
		Root  string
		Types []Type
	}
)

func Prim(k Kind) TypeRef       { return TypeRef{Kind: k} }
func ListOf(elem TypeRef) TypeRef { return TypeRef{Kind: KList, Elem: &elem} }
func StructRef(name string) TypeRef { return TypeRef{Kind: KStruct, Ref: name} }
func EnumRef(name string) TypeRef   { return TypeRef{Kind: KEnum, Ref: name} }
