// Command schemagen is the build-time metaprogram of spec.md §9's first
// design note: it walks a cell's source package for types tagged
// `//cell:schema` and operations tagged `//cell:op`, canonicalizes their
// wire shape, computes the BLAKE3 fingerprint, verifies or writes the
// package's schema lock, and emits a generated file embedding the
// resulting genome as a package-level value — so the running cell never
// reads or recomputes its own schema at start-up (spec.md §4.4).
//
// This is the one component of the substrate built entirely on the
// standard library's go/parser and go/ast: no third-party Go AST rewriter
// appears in any example this repository was grounded on (see
// DESIGN.md).
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/cellmesh/cell/genome"
)

var (
	dir       string
	cellName  string
	schemaDir string
	outFile   string
)

func init() {
	flag.StringVar(&dir, "dir", ".", "package directory to scan for //cell:schema and //cell:op tags")
	flag.StringVar(&cellName, "name", "", "cell name (required)")
	flag.StringVar(&schemaDir, "schema-dir", "", "schema lock directory (required)")
	flag.StringVar(&outFile, "out", "genome_generated.go", "generated file name, written inside -dir")
}

func main() {
	flag.Parse()
	if cellName == "" || schemaDir == "" {
		fmt.Fprintln(os.Stderr, "schemagen: -name and -schema-dir are required")
		os.Exit(1)
	}

	pkgName, types, ops, err := scan(dir)
	if err != nil {
		fatalf("scan %s: %v", dir, err)
	}
	if len(ops) == 0 {
		fatalf("no //cell:op tagged operations found in %s", dir)
	}

	specs := make([]genome.OperationSpec, 0, len(ops))
	for _, op := range ops {
		reqType, ok := types[op.request]
		if !ok {
			fatalf("operation %s: unknown request type %s (missing //cell:schema?)", op.name, op.request)
		}
		respType, ok := types[op.response]
		if !ok {
			fatalf("operation %s: unknown response type %s (missing //cell:schema?)", op.name, op.response)
		}
		specs = append(specs, genome.OperationSpec{
			Name:     op.name,
			Request:  genome.StructRef(reqType.Name),
			Response: genome.StructRef(respType.Name),
			Types:    closure(reqType, respType, types),
		})
	}

	g := genome.Build(cellName, specs)

	if err := genome.Verify(schemaDir, cellName, g.Fingerprint); err != nil {
		fatalf("%v", err)
	}

	body, err := genome.MarshalGenome(g)
	if err != nil {
		fatalf("marshal genome: %v", err)
	}

	if err := writeGenerated(filepath.Join(dir, outFile), pkgName, body); err != nil {
		fatalf("write %s: %v", outFile, err)
	}
	fmt.Printf("schemagen: %s fingerprint %#x (%d operation(s))\n", cellName, g.Fingerprint, len(specs))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "schemagen: "+format+"\n", a...)
	os.Exit(1)
}

// taggedOp is one //cell:op Name Request Response comment found in source.
type taggedOp struct {
	name, request, response string
}

// scan parses every .go file directly in dir (non-recursive, matching a
// cell's flat package layout) and collects every exported struct type
// whose doc comment contains "//cell:schema" plus every "//cell:op Name
// Request Response" free-floating comment.
func scan(dir string) (pkgName string, types map[string]genome.Type, ops []taggedOp, err error) {
	fset := token.NewFileSet()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, nil, err
	}

	types = map[string]genome.Type{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") || strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return "", nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		pkgName = file.Name.Name

		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			if gd.Doc == nil || !hasTag(gd.Doc, "//cell:schema") {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					continue
				}
				t, err := structType(ts.Name.Name, st)
				if err != nil {
					return "", nil, nil, fmt.Errorf("%s: %s: %w", path, ts.Name.Name, err)
				}
				types[ts.Name.Name] = t
			}
		}

		for _, cg := range file.Comments {
			for _, c := range cg.List {
				if op, ok := parseOpTag(c.Text); ok {
					ops = append(ops, op)
				}
			}
		}
	}
	return pkgName, types, ops, nil
}

func hasTag(cg *ast.CommentGroup, tag string) bool {
	for _, c := range cg.List {
		if strings.Contains(c.Text, tag) {
			return true
		}
	}
	return false
}

// parseOpTag recognizes a line of the form:
//
//	//cell:op Echo EchoRequest EchoResponse
func parseOpTag(text string) (taggedOp, bool) {
	const prefix = "//cell:op"
	if !strings.HasPrefix(text, prefix) {
		return taggedOp{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) != 3 {
		return taggedOp{}, false
	}
	return taggedOp{name: fields[0], request: fields[1], response: fields[2]}, true
}

// structType converts a parsed struct into a genome.Type, mapping field
// types through typeRef. Embedded fields and unexported fields are
// skipped, matching what a JSON-tagged wire struct would actually
// serialize.
func structType(name string, st *ast.StructType) (genome.Type, error) {
	t := genome.Type{Name: name}
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			continue // skip embedded fields; this substrate has no embedding story
		}
		ref, err := typeRef(f.Type)
		if err != nil {
			return genome.Type{}, err
		}
		for _, n := range f.Names {
			if !n.IsExported() {
				continue
			}
			t.Fields = append(t.Fields, genome.Field{Name: jsonFieldName(f, n.Name), Type: ref})
		}
	}
	return t, nil
}

// jsonFieldName honors an explicit `json:"name"` tag, falling back to the
// Go field name, matching the wire name a handler's json.Unmarshal call
// actually reads.
func jsonFieldName(f *ast.Field, goName string) string {
	if f.Tag == nil {
		return goName
	}
	tag := strings.Trim(f.Tag.Value, "`")
	const key = `json:"`
	i := strings.Index(tag, key)
	if i < 0 {
		return goName
	}
	rest := tag[i+len(key):]
	j := strings.IndexAny(rest, `",`)
	if j <= 0 {
		return goName
	}
	return rest[:j]
}

// typeRef maps a Go AST type expression to the canonical Kind vocabulary
// genome.Canonical fingerprints over.
func typeRef(expr ast.Expr) (genome.TypeRef, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		switch e.Name {
		case "bool":
			return genome.Prim(genome.KBool), nil
		case "int8":
			return genome.Prim(genome.KI8), nil
		case "int16":
			return genome.Prim(genome.KI16), nil
		case "int32", "rune":
			return genome.Prim(genome.KI32), nil
		case "int", "int64":
			return genome.Prim(genome.KI64), nil
		case "uint8", "byte":
			return genome.Prim(genome.KU8), nil
		case "uint16":
			return genome.Prim(genome.KU16), nil
		case "uint32":
			return genome.Prim(genome.KU32), nil
		case "uint", "uint64":
			return genome.Prim(genome.KU64), nil
		case "float32":
			return genome.Prim(genome.KF32), nil
		case "float64":
			return genome.Prim(genome.KF64), nil
		case "string":
			return genome.Prim(genome.KString), nil
		default:
			return genome.StructRef(e.Name), nil // a sibling //cell:schema type
		}
	case *ast.ArrayType:
		if ident, ok := e.Elt.(*ast.Ident); ok && ident.Name == "byte" {
			return genome.Prim(genome.KBytes), nil
		}
		elem, err := typeRef(e.Elt)
		if err != nil {
			return genome.TypeRef{}, err
		}
		return genome.ListOf(elem), nil
	case *ast.StarExpr:
		return typeRef(e.X) // optionality is not part of the wire shape
	default:
		return genome.TypeRef{}, fmt.Errorf("unsupported field type %T", expr)
	}
}

// closure returns every declared type reachable from root and root2
// (request and response), so an operation's Types slice is self-contained
// even when fields reference other //cell:schema structs.
func closure(root, root2 genome.Type, all map[string]genome.Type) []genome.Type {
	seen := map[string]bool{}
	var out []genome.Type
	var visit func(t genome.Type)
	visit = func(t genome.Type) {
		if seen[t.Name] {
			return
		}
		seen[t.Name] = true
		out = append(out, t)
		for _, f := range t.Fields {
			visitRef(f.Type, all, visit)
		}
	}
	visit(root)
	visit(root2)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func visitRef(r genome.TypeRef, all map[string]genome.Type, visit func(genome.Type)) {
	switch {
	case r.Elem != nil:
		visitRef(*r.Elem, all, visit)
	case r.Ref != "":
		if t, ok := all[r.Ref]; ok {
			visit(t)
		}
	}
}

const generatedTmpl = `// Code generated by cmd/schemagen. DO NOT EDIT.

package {{.Package}}

import "github.com/cellmesh/cell/genome"

// generatedGenomeJSON is the marshaled genome.Genome schemagen computed
// for this package, embedded so the running cell never reads or
// recomputes its own schema at start-up.
const generatedGenomeJSON = ` + "`{{.Body}}`" + `

// Genome unmarshals the embedded genome. Panics on failure, which can only
// happen if this file was hand-edited after generation.
func Genome() genome.Genome {
	g, err := genome.UnmarshalGenome([]byte(generatedGenomeJSON))
	if err != nil {
		panic("generated genome is corrupt: " + err.Error())
	}
	return g
}
`

func writeGenerated(path, pkgName string, body []byte) error {
	tmpl := template.Must(template.New("genome").Parse(generatedTmpl))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return tmpl.Execute(f, struct {
		Package string
		Body    string
	}{pkgName, string(body)})
}
