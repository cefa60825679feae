package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// containerNames are variable names that suggest a collection when no type
// is known.
var containerNames = map[string]bool{
	"items": true, "values": true, "keys": true, "names": true, "lines": true,
	"words": true, "data": true, "queue": true, "stack": true, "elements": true,
	"entries": true, "records": true, "rows": true, "parts": true, "tokens": true,
	"results": true, "args": true, "list": true, "lst": true, "arr": true,
	"text": true, "line": true, "s": true, "string": true, "buffer": true,
}

// optionNames are variable names that suggest an optional value when no
// type is known.
var optionNames = map[string]bool{
	"m": true, "match": true, "result": true, "found": true, "opt": true,
	"maybe": true, "existing": true, "cached": true, "node": true, "parent": true,
}

// truthy lowers e as a condition applying Python truthiness.
func (l *Lowerer) truthy(e hir.Expr) rust.Expr {
	return l.truthyOf(l.lowerExpr(e), l.exprType(e), e)
}

// truthyOf converts the lowered value x of type t into a boolean condition.
// e is the source expression used for name heuristics and may be nil.
func (l *Lowerer) truthyOf(x rust.Expr, t *hir.Type, e hir.Expr) rust.Expr {
	switch {
	case l.isMutOption(e):
		return rust.M(x, "is_some")
	case t.Is(hir.TBool):
		return x
	case t.Is(hir.TString), t.Is(hir.TList), t.Is(hir.TDict), t.Is(hir.TSet),
		t.Is(hir.TGeneric) && t.Name == "deque", t.IsCustom(typeBytes):
		return rust.Not(rust.M(x, "is_empty"))
	case t.Is(hir.TOptional):
		return rust.M(x, "is_some")
	case t.Is(hir.TInt):
		return rust.Bin("!=", x, rust.Int(0))
	case t.Is(hir.TFloat):
		return rust.Bin("!=", x, rust.Float(0))
	case IsDyn(t):
		return rust.M(x, "to_bool")
	case t.IsCustom(typeJSON):
		return rust.Not(rust.M(x, "is_null"))
	case t.Is(hir.TCustom) && l.ctx.ClassNames[t.Name]:
		if ci := l.classes[t.Name]; ci != nil && ci.hasMethod("__len__") {
			return rust.Bin("!=", rust.M(x, "len"), rust.Int(0))
		}
		return rust.Bool(true)
	}

	if v, ok := e.(*hir.Var); ok && t.IsUnknown() {
		switch {
		case optionNames[v.Name]:
			l.ctx.Tracer.Record(trace.TypeMapping, v.Name, "option-by-name", []string{"collection-by-name", "py-truthy"}, 0.4, v.Span())
			return rust.M(x, "is_some")
		case containerNames[v.Name]:
			l.ctx.Tracer.Record(trace.TypeMapping, v.Name, "collection-by-name", []string{"option-by-name", "py-truthy"}, 0.4, v.Span())
			return rust.Not(rust.M(x, "is_empty"))
		}
	}

	if c, ok := e.(*hir.Binary); ok && (c.Op.IsComparison() || c.Op == hir.OpAnd || c.Op == hir.OpOr) {
		return x
	}

	l.ctx.Need(prelude.PyTruthy)
	return rust.M(x, "is_true")
}
