package genome

import (
	"fmt"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// Canonical renders a Graph to the whitespace-normalized textual form
// spec.md §4.1 requires two independently-built peers to agree on: field
// names, field types, enum variants and their ordinals, fixed integer
// widths, and container kinds, rooted at Root. Types are emitted in a
// stable (name-sorted) order so that declaration order in source — which
// varies across compilers and even across gofmt runs — never perturbs the
// fingerprint.
func Canonical(g Graph) string {
	byName := make(map[string]Type, len(g.Types))
	names := make([]string, 0, len(g.Types))
	for _, t := range g.Types {
		byName[t.Name] = t
		names = append(names, t.Name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "root:%s;", g.Root)
	for _, name := range names {
		t := byName[name]
		writeType(&b, t)
	}
	return b.String()
}

func writeType(b *strings.Builder, t Type) {
	if t.IsEnum {
		fmt.Fprintf(b, "enum %s{", t.Name)
		vs := append([]Variant(nil), t.Variants...)
		sort.Slice(vs, func(i, j int) bool { return vs[i].Ordinal < vs[j].Ordinal })
		for _, v := range vs {
			fmt.Fprintf(b, "%d:%s", v.Ordinal, v.Name)
			if v.Assoc != nil {
				b.WriteByte(':')
				writeTypeRef(b, *v.Assoc)
			}
			b.WriteByte(',')
		}
		b.WriteString("};")
		return
	}
	fmt.Fprintf(b, "struct %s{", t.Name)
	fs := append([]Field(nil), t.Fields...)
	sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
	for _, f := range fs {
		fmt.Fprintf(b, "%s:", f.Name)
		writeTypeRef(b, f.Type)
		b.WriteByte(',')
	}
	b.WriteString("};")
}

func writeTypeRef(b *strings.Builder, r TypeRef) {
	switch r.Kind {
	case KList:
		b.WriteString("list<")
		writeTypeRef(b, *r.Elem)
		b.WriteByte('>')
	case KStruct, KEnum:
		b.WriteString(r.Ref)
	default:
		b.WriteString(r.Kind.String())
	}
}

// Fingerprint computes the 64-bit BLAKE3 prefix of a Graph's canonical
// form — the value embedded at build time (via cmd/schemagen) and checked
// against a peer's on every request, per spec.md §4.4's dispatch rule.
func Fingerprint(g Graph) uint64 {
	return FingerprintString(Canonical(g))
}

// FingerprintString computes the 64-bit BLAKE3 prefix of an arbitrary
// canonical string — used directly for operation ids, which spec.md §3
// defines as a fingerprint over "<cell-name>.<op-name>" rather than over a
// type graph.
func FingerprintString(s string) uint64 {
	sum := blake3.Sum256([]byte(s))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}

// OpID computes the operation id for a named operation on a named cell,
// per spec.md §3: "a 64-bit BLAKE3 prefix of the canonical
// '<cell-name>.<op-name>' string".
func OpID(cellName, opName string) uint64 {
	return FingerprintString(cellName + "." + opName)
}
