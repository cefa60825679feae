package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
)

// lowerComprehension lowers a comprehension into a lazy iterator chain.
// Each generator but the innermost flat maps into the next one and filters
// run ahead of the map that produces the element:
//
//	xs.iter().copied().filter(|&x| x > 0).map(|x| x * 2)
func (l *Lowerer) lowerComprehension(c *hir.Comprehension) rust.Expr {
	if len(c.Generators) == 0 {
		l.fail(c, "comprehension without a generator")
	}

	return l.collectComprehension(c.Kind, l.comprehensionChain(c, 0, nil))
}

// comprehensionChain lowers the generators of c from the i-th one on.  outer
// holds the names bound by the enclosing generators.
func (l *Lowerer) comprehensionChain(c *hir.Comprehension, i int, outer map[string]bool) rust.Expr {
	gen := c.Generators[i]
	elem := l.iterElemType(gen.Iter)
	it, chars := l.loopIter(gen.Iter)

	// the items of an inner generator may borrow from an outer item which
	// does not outlive the flat_map closure
	if i > 0 && usesAny(gen.Iter, outer) && !l.exprType(gen.Iter).Is(hir.TGeneric) {
		it = rust.M(&rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})}}, "into_iter")
	}

	// inner closures capture the items of the outer generators
	move := i > 0 || l.ctx.ReturnsImplIterator || c.Kind == hir.CompGenerator
	last := i == len(c.Generators)-1

	l.withComprehensionScope(gen.Target, elem, chars, func() {
		if len(gen.Conds) > 0 {
			it = rust.M(it, "filter", l.comprehensionFilter(gen, elem, chars, move))
		}

		pat := l.loopPattern(gen.Target)
		switch {
		case !last:
			bound := make(map[string]bool, len(outer)+1)
			for name := range outer {
				bound[name] = true
			}
			for _, name := range hir.TargetNames(gen.Target) {
				bound[name] = true
			}
			it = rust.M(it, "flat_map", rust.ClosureOf(move, pat, l.comprehensionChain(c, i+1, bound)))
		case chars || !isIdentityMap(gen.Target, c):
			it = rust.M(it, "map", rust.ClosureOf(move, pat, l.comprehensionValue(c)))
		}
	})

	return it
}

// comprehensionFilter builds the closure testing the conditions of gen.
// Filters receive their item by reference: copy parts are copied out of it
// and the other parts are bound as references.
func (l *Lowerer) comprehensionFilter(gen *hir.Generator, elem *hir.Type, chars, move bool) rust.Expr {
	refs := make(map[string]bool)

	var pat rust.Pattern
	if _, ok := gen.Target.(*hir.Var); ok && !chars && !elem.IsCopy() {
		pat = l.loopPattern(gen.Target)
		for _, name := range hir.TargetNames(gen.Target) {
			refs[name] = true
		}
	} else {
		pat = &rust.RefPat{Pat: l.filterPattern(gen.Target, elem, chars, refs)}
	}

	saved := make(map[string]bool, len(refs))
	for name := range refs {
		saved[name] = l.ctx.RefVars[name]
		l.ctx.RefVars[name] = true
	}

	cond := l.truthy(gen.Conds[0])
	for _, extra := range gen.Conds[1:] {
		cond = rust.Bin("&&", cond, l.truthy(extra))
	}

	for name, was := range saved {
		if !was {
			delete(l.ctx.RefVars, name)
		}
	}

	return rust.ClosureOf(move, pat, cond)
}

// filterPattern builds the pattern matching a filtered item behind its
// reference.  Names bound with `ref` are added to refs.
func (l *Lowerer) filterPattern(target hir.Expr, t *hir.Type, chars bool, refs map[string]bool) rust.Pattern {
	var elems []hir.Expr
	switch v := target.(type) {
	case *hir.Var:
		if chars || t.IsCopy() {
			return rust.Pat(rust.SafeIdent(v.Name))
		}
		refs[v.Name] = true
		return &rust.IdentPat{Name: rust.SafeIdent(v.Name), Ref: true}
	case *hir.TupleExpr:
		elems = v.Elems
	case *hir.ListExpr:
		elems = v.Elems
	default:
		l.fail(target, "unsupported loop target")
	}

	pats := make([]rust.Pattern, len(elems))
	for i, elem := range elems {
		var et *hir.Type
		if t.Is(hir.TTuple) && i < len(t.Args) {
			et = t.Args[i]
		}
		pats[i] = l.filterPattern(elem, et, false, refs)
	}

	return &rust.TuplePat{Elems: pats}
}

// withComprehensionScope runs f with the names bound by target declared in
// a new scope and typed from elem.  A target iterating the chars of a string
// is marked as a char.
func (l *Lowerer) withComprehensionScope(target hir.Expr, elem *hir.Type, chars bool, f func()) {
	l.pushScope()
	defer l.popScope()

	names := hir.TargetNames(target)
	savedChars := make(map[string]bool, len(names))
	for _, name := range names {
		savedChars[name] = l.ctx.CharIterVars[name]
		l.declare(name)
	}
	defer func() {
		for name, was := range savedChars {
			if was {
				l.ctx.CharIterVars[name] = true
			} else {
				delete(l.ctx.CharIterVars, name)
			}
		}
	}()

	if chars {
		l.ctx.CharIterVars[names[0]] = true
		l.withBindings(target, hir.Str, f)
		return
	}

	for _, name := range names {
		delete(l.ctx.CharIterVars, name)
	}
	l.withBindings(target, elem, f)
}

// usesAny tests whether e references one of names.
func usesAny(e hir.Expr, names map[string]bool) bool {
	for _, name := range hir.FreeVars(e) {
		if names[name] {
			return true
		}
	}

	return false
}

// comprehensionValue lowers the produced element (a key value pair for
// dict comprehensions).
func (l *Lowerer) comprehensionValue(c *hir.Comprehension) rust.Expr {
	if c.Kind == hir.CompDict {
		return &rust.Tuple{Elems: []rust.Expr{l.owned(c.Key), l.owned(c.Element)}}
	}

	return l.owned(c.Element)
}

// isIdentityMap tests whether the comprehension yields its loop variable
// unchanged.
func isIdentityMap(target hir.Expr, c *hir.Comprehension) bool {
	if c.Kind == hir.CompDict {
		return false
	}

	tv, ok := target.(*hir.Var)
	ev, eok := c.Element.(*hir.Var)
	return ok && eok && tv.Name == ev.Name
}

// collectComprehension turns the iterator of a comprehension into its
// result.
func (l *Lowerer) collectComprehension(kind hir.CompKind, it rust.Expr) rust.Expr {
	var ty rust.Type
	switch kind {
	case hir.CompGenerator:
		return it
	case hir.CompList:
		ty = rust.T("Vec", &rust.InferType{})
	case hir.CompSet:
		l.ctx.Need(prelude.HashSet)
		ty = rust.T("HashSet", &rust.InferType{})
	case hir.CompDict:
		l.ctx.Need(prelude.HashMap)
		ty = rust.T("HashMap", &rust.InferType{}, &rust.InferType{})
	}

	return &rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{ty}}
}
