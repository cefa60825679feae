package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
)

// lowerExpr lowers an expression.  The result may borrow from places: use
// owned when a value is moved into a new home.
func (l *Lowerer) lowerExpr(e hir.Expr) rust.Expr {
	switch v := e.(type) {
	case *hir.IntLit:
		return rust.Int(v.Value)
	case *hir.FloatLit:
		return rust.Float(v.Value)
	case *hir.StrLit:
		return rust.Str(v.Value)
	case *hir.BytesLit:
		return rust.M(rust.M(rust.Str(v.Value), "as_bytes"), "to_vec")
	case *hir.BoolLit:
		return rust.Bool(v.Value)
	case *hir.NoneLit:
		return rust.NoneVal()
	case *hir.Var:
		return l.lowerVar(v)
	case *hir.Binary:
		return l.lowerBinary(v)
	case *hir.Unary:
		return l.lowerUnary(v)
	case *hir.Call:
		return l.lowerCall(v)
	case *hir.MethodCall:
		return l.lowerMethodCall(v)
	case *hir.Attribute:
		return l.lowerAttribute(v)
	case *hir.Index:
		return l.lowerIndex(v)
	case *hir.Slice:
		return l.lowerSlice(v)
	case *hir.Borrow:
		return &rust.Ref{Mut: v.Mutable, X: l.lowerExpr(v.Value)}
	case *hir.ListExpr:
		return l.lowerList(v, nil)
	case *hir.TupleExpr:
		elems := make([]rust.Expr, len(v.Elems))
		for i, elem := range v.Elems {
			elems[i] = l.owned(elem)
		}
		return &rust.Tuple{Elems: elems}
	case *hir.SetExpr:
		return l.lowerSet(v, nil)
	case *hir.DictExpr:
		return l.lowerDict(v, nil)
	case *hir.Comprehension:
		return l.lowerComprehension(v)
	case *hir.Lambda:
		return l.lowerLambda(v)
	case *hir.IfExpr:
		return l.lowerIfExpr(v)
	case *hir.FString:
		return l.lowerFString(v)
	case *hir.Await:
		return l.lowerAwait(v)
	case *hir.Yield:
		return l.lowerYield(v)
	case *hir.NamedExpr:
		return l.lowerNamedExpr(v)
	case *hir.SortByKey:
		return l.lowerSortByKey(v)
	}

	l.fail(e, "unsupported expression")
	return nil
}

// lowerVar lowers a variable reference.
func (l *Lowerer) lowerVar(v *hir.Var) rust.Expr {
	name := v.Name

	if l.genFields[name] {
		return rust.Fld(rust.Id("self"), rust.SafeIdent(name))
	}

	if alias, ok := l.ctx.OptionUnwrapMap[name]; ok && alias != name {
		return rust.Id(alias)
	}

	switch name {
	case "self":
		return rust.Id(l.selfName)
	case "cls":
		if l.ctx.IsClassmethod {
			return rust.Id("Self")
		}
	}

	if mutex, ok := l.ctx.Globals[name]; ok && !l.isDeclared(name) {
		if mutex {
			return rust.Deref(rust.M(rust.M(rust.Id(name), "lock"), "unwrap"))
		}
		if l.isLazyGlobal(name) {
			return rust.Deref(rust.Id(name))
		}
		return rust.Id(name)
	}

	if _, ok := l.funcs[name]; ok && !l.isDeclared(name) {
		return rust.Id(l.fnName(name))
	}

	return rust.Id(rust.SafeIdent(name))
}

// -----------------------------------------------------------------------------

// isCharVar tests whether e is a loop variable bound to the chars of a
// string.
func (l *Lowerer) isCharVar(e hir.Expr) bool {
	v, ok := e.(*hir.Var)
	return ok && l.ctx.CharIterVars[v.Name]
}

// isRefVar tests whether e is a variable holding a reference.
func (l *Lowerer) isRefVar(e hir.Expr) bool {
	v, ok := e.(*hir.Var)
	return ok && l.ctx.RefVars[v.Name]
}

// isPlace tests whether a lowered expression denotes a place rather than a
// temporary.
func isPlace(x rust.Expr) bool {
	switch v := x.(type) {
	case *rust.Ident, *rust.Field, *rust.Index:
		return true
	case *rust.Unary:
		return v.Op == "*"
	}

	return false
}

// owned lowers e into a value that can be moved: places of non-copy types
// are cloned and string slices converted to strings.
func (l *Lowerer) owned(e hir.Expr) rust.Expr {
	switch v := e.(type) {
	case *hir.StrLit:
		return rust.ToString(rust.Str(v.Value))
	case *hir.Var:
		x := l.lowerExpr(v)
		if l.isCharVar(v) {
			return rust.ToString(x)
		}

		t := l.exprType(v)
		if t.IsCopy() || l.ctx.IteratorVars[v.Name] {
			return x
		}

		if _, ok := l.funcs[v.Name]; ok && !l.isDeclared(v.Name) {
			return x
		}

		if t.Is(hir.TString) && l.ctx.RefVars[v.Name] {
			return rust.ToString(x)
		}

		return rust.Clone(x)
	case *hir.Attribute, *hir.Index:
		x := l.lowerExpr(e)
		if !l.exprType(e).IsCopy() && isPlace(x) {
			return rust.Clone(x)
		}
		return x
	}

	return l.lowerExpr(e)
}

// strArg lowers e into a `&str` argument.
func (l *Lowerer) strArg(e hir.Expr) rust.Expr {
	switch v := e.(type) {
	case *hir.StrLit:
		return rust.Str(v.Value)
	case *hir.Var:
		x := l.lowerExpr(v)
		switch {
		case l.isCharVar(v):
			return rust.Borrow(rust.ToString(x))
		case l.ctx.RefVars[v.Name] && l.exprType(v).Is(hir.TString):
			return x
		case IsDyn(l.exprType(v)):
			return rust.M(x, "as_str")
		}
		return rust.Borrow(x)
	}

	x := l.lowerExpr(e)
	if IsDyn(l.exprType(e)) {
		return rust.M(x, "as_str")
	}

	return rust.Borrow(x)
}

// argRef lowers e into a shared reference argument.  Variables that already
// hold references are passed as they are.
func (l *Lowerer) argRef(e hir.Expr) rust.Expr {
	if l.exprType(e).Is(hir.TString) {
		return l.strArg(e)
	}

	if l.isRefVar(e) {
		return l.lowerExpr(e)
	}

	if _, ok := e.(*hir.StrLit); ok {
		return l.lowerExpr(e)
	}

	return rust.Borrow(l.lowerExpr(e))
}

// keyArg lowers a dict key or set element for a lookup.
func (l *Lowerer) keyArg(e hir.Expr, keyType *hir.Type) rust.Expr {
	if IsDyn(keyType) && !IsDyn(l.exprType(e)) {
		return rust.Borrow(l.coerce(e, keyType))
	}

	return l.argRef(e)
}

// coerce lowers e into an owned value of type target, inserting the
// conversions Python performs implicitly.
func (l *Lowerer) coerce(e hir.Expr, target *hir.Type) rust.Expr {
	src := l.exprType(e)
	_, isNone := e.(*hir.NoneLit)

	switch {
	case target.IsUnknown():
		return l.owned(e)
	case target.Is(hir.TOptional):
		if isNone || src.Is(hir.TOptional) {
			return l.owned(e)
		}
		return rust.Some(l.coerce(e, target.Inner()))
	case IsDyn(target):
		if IsDyn(src) {
			return l.owned(e)
		}

		l.ctx.Need(prelude.ValueEnum)
		if isNone {
			return rust.P("DepylerValue::None")
		}
		return rust.CallPath("DepylerValue::from", l.owned(e))
	case target.Is(hir.TFloat):
		if lit, ok := e.(*hir.IntLit); ok {
			return rust.Float(float64(lit.Value))
		}
		if src.Is(hir.TInt) {
			return rust.As(l.lowerExpr(e), rust.T("f64"))
		}
		if IsDyn(src) {
			return rust.CallPath("f64::from", l.owned(e))
		}
	case target.Is(hir.TInt):
		if IsDyn(src) {
			return rust.CallPath("i64::from", l.owned(e))
		}
	case target.Is(hir.TString):
		if IsDyn(src) {
			return rust.CallPath("String::from", l.owned(e))
		}
		if src.Is(hir.TString) && !isPlace(l.lowerExpr(e)) {
			if _, ok := e.(*hir.StrLit); !ok {
				return l.lowerExpr(e)
			}
		}
	case target.Is(hir.TBool):
		if IsDyn(src) {
			return rust.CallPath("bool::from", l.owned(e))
		}
	case target.Is(hir.TList):
		if lst, ok := e.(*hir.ListExpr); ok {
			return l.lowerList(lst, target.Elem())
		}
	case target.Is(hir.TSet):
		if set, ok := e.(*hir.SetExpr); ok {
			return l.lowerSet(set, target.Elem())
		}
	case target.Is(hir.TDict):
		if dict, ok := e.(*hir.DictExpr); ok {
			return l.lowerDict(dict, target)
		}
	case target.Is(hir.TTuple):
		if tup, ok := e.(*hir.TupleExpr); ok && len(tup.Elems) == len(target.Args) {
			elems := make([]rust.Expr, len(tup.Elems))
			for i, elem := range tup.Elems {
				elems[i] = l.coerce(elem, target.Args[i])
			}
			return &rust.Tuple{Elems: elems}
		}
	}

	return l.owned(e)
}

// -----------------------------------------------------------------------------

// lowerList lowers a list literal.  elem is the expected element type or
// nil to unify the elements.
func (l *Lowerer) lowerList(lst *hir.ListExpr, elem *hir.Type) rust.Expr {
	if elem.IsUnknown() {
		elem = l.unifyExprs(lst.Elems)
	}

	elems := make([]rust.Expr, len(lst.Elems))
	for i, e := range lst.Elems {
		elems[i] = l.coerce(e, elem)
	}

	if len(elems) == 0 {
		return rust.CallPath("Vec::new")
	}

	return rust.VecMacro(elems...)
}

// lowerSet lowers a set literal.
func (l *Lowerer) lowerSet(set *hir.SetExpr, elem *hir.Type) rust.Expr {
	l.ctx.Need(prelude.HashSet)

	if elem.IsUnknown() {
		elem = l.unifyExprs(set.Elems)
	}
	if elem.Is(hir.TFloat) {
		elem = dynType
	}

	if len(set.Elems) == 0 {
		return rust.CallPath("HashSet::new")
	}

	elems := make([]rust.Expr, len(set.Elems))
	for i, e := range set.Elems {
		elems[i] = l.coerce(e, elem)
	}

	return rust.CallPath("HashSet::from", &rust.Array{Elems: elems})
}

// lowerDict lowers a dict literal.  t is the expected dict type or nil.
func (l *Lowerer) lowerDict(dict *hir.DictExpr, t *hir.Type) rust.Expr {
	l.ctx.Need(prelude.HashMap)

	kt, vt := t.Key(), t.Value()
	if kt.IsUnknown() {
		kt = l.unifyExprs(dict.Keys)
	}
	if vt.IsUnknown() {
		vt = l.unifyExprs(dict.Values)
	}
	if kt.Is(hir.TFloat) {
		kt = dynType
	}

	if len(dict.Keys) == 0 {
		return rust.CallPath("HashMap::new")
	}

	pairs := make([]rust.Expr, len(dict.Keys))
	for i := range dict.Keys {
		pairs[i] = &rust.Tuple{Elems: []rust.Expr{l.coerce(dict.Keys[i], kt), l.coerce(dict.Values[i], vt)}}
	}

	return rust.CallPath("HashMap::from", &rust.Array{Elems: pairs})
}

// -----------------------------------------------------------------------------

// lowerUnary lowers a unary operation.
func (l *Lowerer) lowerUnary(u *hir.Unary) rust.Expr {
	switch u.Op {
	case hir.OpNot:
		return rust.Not(l.truthy(u.Operand))
	case hir.OpNeg:
		switch v := u.Operand.(type) {
		case *hir.IntLit:
			return rust.Int(-v.Value)
		case *hir.FloatLit:
			return rust.Float(-v.Value)
		}
		return &rust.Unary{Op: "-", X: l.lowerExpr(u.Operand)}
	case hir.OpInvert:
		return &rust.Unary{Op: "!", X: l.lowerExpr(u.Operand)}
	}

	return l.lowerExpr(u.Operand)
}

// lowerNamedExpr lowers `(name := value)`: the variable is declared ahead
// of the enclosing statement.
func (l *Lowerer) lowerNamedExpr(ne *hir.NamedExpr) rust.Expr {
	l.ctx.SetVarType(ne.Target, l.exprType(ne.Value))

	name := rust.SafeIdent(ne.Target)
	var read rust.Expr = rust.Id(name)
	if !l.exprType(ne.Value).IsCopy() {
		read = rust.Clone(read)
	}

	return rust.BlockOf(read, rust.Semi(&rust.Assign{Op: "=", Left: rust.Id(name), Right: l.owned(ne.Value)}))
}

// lowerAwait lowers `await x`.  The await disappears in realtime mode where
// coroutines are plain functions.
func (l *Lowerer) lowerAwait(a *hir.Await) rust.Expr {
	if l.ctx.Mode == ModeRealtime {
		return l.lowerExpr(a.Value)
	}

	// asyncio calls lower to awaited expressions already
	x := l.lowerExpr(a.Value)
	switch v := x.(type) {
	case *rust.Await:
		return x
	case *rust.Macro:
		if v.Name == "tokio::join" {
			return x
		}
	}

	return &rust.Await{X: x}
}

// lowerYield lowers a yield outside of statement position.  Generator
// bodies lower their yield statements into state transitions, so any yield
// reaching here is nested in an expression.
func (l *Lowerer) lowerYield(y *hir.Yield) rust.Expr {
	if l.ctx.InGenerator {
		l.fail(y, "yield must be a statement of the generator body")
	}

	l.fail(y, "yield is only supported in generator functions")
	return nil
}

// -----------------------------------------------------------------------------

// lowerIndex lowers a subscript read.
func (l *Lowerer) lowerIndex(ix *hir.Index) rust.Expr {
	t := l.exprType(ix.Value)
	recv := l.lowerExpr(ix.Value)

	switch {
	case t.Is(hir.TDict):
		return &rust.Index{Recv: recv, Index: l.keyArg(ix.Index, t.Key())}
	case t.Is(hir.TTuple):
		if n, ok := intLiteral(ix.Index); ok {
			if n < 0 {
				n += int64(len(t.Args))
			}
			return rust.Fld(recv, itoa(n))
		}
		l.fail(ix, "tuple index must be an integer literal")
	case t.Is(hir.TString):
		return l.charAt(recv, ix.Index)
	case t.IsCustom(typeJSON):
		if l.exprType(ix.Index).Is(hir.TString) {
			return &rust.Index{Recv: recv, Index: l.strArg(ix.Index)}
		}
		return &rust.Index{Recv: recv, Index: l.usizeIndex(recv, ix.Index)}
	case IsDyn(t):
		if l.exprType(ix.Index).Is(hir.TString) {
			return &rust.Index{Recv: recv, Index: l.strArg(ix.Index)}
		}
		return &rust.Index{Recv: recv, Index: l.lowerExpr(ix.Index)}
	case t.IsCustom(typeBytes):
		return rust.As(&rust.Index{Recv: recv, Index: l.usizeIndex(recv, ix.Index)}, rust.T("i64"))
	case t.Is(hir.TList), t.Is(hir.TGeneric):
		return &rust.Index{Recv: recv, Index: l.usizeIndex(recv, ix.Index)}
	}

	if l.exprType(ix.Index).Is(hir.TString) {
		return &rust.Index{Recv: recv, Index: l.strArg(ix.Index)}
	}

	return &rust.Index{Recv: recv, Index: l.usizeIndex(recv, ix.Index)}
}

// usizeIndex converts a Python integer index into a `usize` index.
// Negative literals count from the end.
func (l *Lowerer) usizeIndex(recv rust.Expr, index hir.Expr) rust.Expr {
	if n, ok := intLiteral(index); ok {
		if n < 0 {
			return rust.Bin("-", rust.M(recv, "len"), rust.Int(-n))
		}
		return rust.Int(n)
	}

	return rust.As(l.lowerExpr(index), rust.T("usize"))
}

// charAt lowers indexing into a string: the result is a one char string.
func (l *Lowerer) charAt(recv rust.Expr, index hir.Expr) rust.Expr {
	chars := rust.M(recv, "chars")

	var nth rust.Expr
	if n, ok := intLiteral(index); ok && n < 0 {
		nth = rust.M(rust.M(chars, "rev"), "nth", rust.Int(-n-1))
	} else if ok {
		nth = rust.M(chars, "nth", rust.Int(n))
	} else {
		nth = rust.M(chars, "nth", rust.As(l.lowerExpr(index), rust.T("usize")))
	}

	return rust.ToString(rust.M(nth, "expect", rust.Str("string index out of range")))
}

// lowerSlice lowers `value[lower:upper:step]`.
func (l *Lowerer) lowerSlice(s *hir.Slice) rust.Expr {
	t := l.exprType(s.Value)
	recv := l.lowerExpr(s.Value)

	step, hasStep := int64(1), s.Step != nil
	if hasStep {
		n, ok := intLiteral(s.Step)
		if !ok || n == 0 {
			l.fail(s, "slice step must be a non-zero integer literal")
		}
		step = n
	}

	if t.Is(hir.TString) {
		chars := rust.M(recv, "chars")
		var it rust.Expr = chars
		if step < 0 {
			it = rust.M(it, "rev")
		}
		if lo := l.sliceBound(rust.M(rust.M(recv, "chars"), "count"), s.Lower); lo != nil {
			it = rust.M(it, "skip", lo)
		}
		if hi := l.sliceBound(rust.M(rust.M(recv, "chars"), "count"), s.Upper); hi != nil {
			if lo := l.sliceBound(rust.M(rust.M(recv, "chars"), "count"), s.Lower); lo != nil {
				hi = rust.M(hi, "saturating_sub", lo)
			}
			it = rust.M(it, "take", hi)
		}
		if step != 1 && step != -1 {
			it = rust.M(it, "step_by", rust.Int(abs64(step)))
		}
		return &rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{rust.T("String")}}
	}

	lo := l.sliceBound(rust.M(recv, "len"), s.Lower)
	hi := l.sliceBound(rust.M(recv, "len"), s.Upper)

	if step == 1 {
		return rust.M(&rust.Index{Recv: recv, Index: &rust.Range{Lo: lo, Hi: hi}}, "to_vec")
	}

	var it rust.Expr = rust.M(&rust.Index{Recv: recv, Index: &rust.Range{Lo: lo, Hi: hi}}, "iter")
	if step < 0 {
		it = rust.M(it, "rev")
	}
	if step != -1 {
		it = rust.M(it, "step_by", rust.Int(abs64(step)))
	}

	return &rust.MethodCall{
		Recv:      rust.M(it, "cloned"),
		Method:    "collect",
		Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})},
	}
}

// sliceBound converts a slice bound into a `usize`.  Negative literals count
// back from length.
func (l *Lowerer) sliceBound(length rust.Expr, bound hir.Expr) rust.Expr {
	if bound == nil {
		return nil
	}

	if n, ok := intLiteral(bound); ok {
		if n < 0 {
			return rust.M(length, "saturating_sub", rust.Int(-n))
		}
		return rust.Int(n)
	}

	return rust.As(l.lowerExpr(bound), rust.T("usize"))
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}

	return n
}
