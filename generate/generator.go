package generate

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/lower"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// pragmas are the crate level attributes of every generated file.  Lowered
// code is correct but not lint-clean: it keeps names from the source and
// declares helpers it may not use.
var pragmas = []string{
	"allow(unused_imports)",
	"allow(unused_variables)",
	"allow(unused_mut)",
	"allow(unused_parens)",
	"allow(dead_code)",
	"allow(non_snake_case)",
	"allow(non_camel_case_types)",
	"allow(unreachable_code)",
	"allow(unreachable_patterns)",
}

// Output is a transpiled module.
type Output struct {
	// Source is the text of the generated Rust file.
	Source string

	// Needs are the prelude features the file was generated with, closed
	// under implication.
	Needs prelude.Set

	// Crates are the external crates the file depends on.
	Crates []Crate

	// Tracer holds the lowering decisions or is nil if tracing was off.
	Tracer *trace.Tracer
}

// Transpile lowers a HIR module and generates its Rust source file.  No
// output is produced if lowering fails.
func Transpile(mod *hir.Module, opts lower.Options) (*Output, error) {
	res, err := lower.Module(mod, opts)
	if err != nil {
		return nil, err
	}

	g := NewGenerator(res)
	return &Output{
		Source: g.Generate(),
		Needs:  g.needs,
		Crates: CratesFor(g.needs),
		Tracer: res.Tracer,
	}, nil
}

// -----------------------------------------------------------------------------

// Generator assembles a lowered module into a single Rust source file: the
// pragmas, then the `use` declarations and prelude fragments selected by the
// module's features and finally its items with the entry point last.
type Generator struct {
	// items are the lowered items in source order.
	items []rust.Item

	// needs is the closure of the features the items require.
	needs prelude.Set
}

// NewGenerator creates a new generator for a lowered module.
func NewGenerator(res *lower.Result) *Generator {
	return &Generator{
		items: res.Items,
		needs: res.Needs.Closure(),
	}
}

// File builds the syntax tree of the generated file.
func (g *Generator) File() *rust.File {
	return &rust.File{
		InnerAttrs: pragmas,
		Uses:       g.needs.Uses(),
		Prelude:    g.needs.Fragments(),
		Items:      g.items,
	}
}

// Generate returns the source text of the generated file.
func (g *Generator) Generate() string {
	return rust.FileString(g.File())
}
