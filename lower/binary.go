package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
)

// lowerBinary lowers a binary operation.
func (l *Lowerer) lowerBinary(b *hir.Binary) rust.Expr {
	switch b.Op {
	case hir.OpAnd, hir.OpOr:
		return l.lowerBoolOp(b)
	case hir.OpIn:
		return l.lowerContains(b.Right, b.Left)
	case hir.OpNotIn:
		return rust.Not(l.lowerContains(b.Right, b.Left))
	case hir.OpIs, hir.OpIsNot:
		return l.lowerIdentity(b)
	case hir.OpEq, hir.OpNotEq, hir.OpLt, hir.OpLtE, hir.OpGt, hir.OpGtE:
		return l.lowerCompare(b)
	}

	lt, rt := l.exprType(b.Left), l.exprType(b.Right)
	if IsDyn(lt) || IsDyn(rt) {
		return l.lowerDynArith(b)
	}

	switch b.Op {
	case hir.OpAdd:
		if lt.Is(hir.TString) || rt.Is(hir.TString) {
			return rust.MacroCall("format", rust.Str("{}{}"), l.lowerExpr(b.Left), l.lowerExpr(b.Right))
		}

		if lt.Is(hir.TList) || rt.Is(hir.TList) {
			return rust.M(&rust.Array{Elems: []rust.Expr{
				rust.M(l.lowerExpr(b.Left), "as_slice"),
				rust.M(l.lowerExpr(b.Right), "as_slice"),
			}}, "concat")
		}
	case hir.OpMul:
		if x := l.lowerRepeat(b, lt, rt); x != nil {
			return x
		}
	case hir.OpDiv:
		if lt.IsCustom(typePath) {
			return rust.M(l.lowerExpr(b.Left), "join", l.strArg(b.Right))
		}

		return rust.Bin("/", l.coerce(b.Left, hir.Float), l.coerce(b.Right, hir.Float))
	case hir.OpFloorDiv:
		if lt.Is(hir.TFloat) || rt.Is(hir.TFloat) {
			return rust.M(rust.Bin("/", l.coerce(b.Left, hir.Float), l.coerce(b.Right, hir.Float)), "floor")
		}

		return rust.M(l.lowerExpr(b.Left), "div_euclid", l.lowerExpr(b.Right))
	case hir.OpMod:
		if s, ok := b.Left.(*hir.StrLit); ok {
			return l.lowerPercentFormat(s, b.Right)
		}

		if n, ok := intLiteral(b.Right); ok && n > 0 && !lt.Is(hir.TFloat) {
			return rust.M(l.lowerExpr(b.Left), "rem_euclid", rust.Int(n))
		}

		l.ctx.Need(prelude.PyOps)
		if lt.Is(hir.TFloat) || rt.Is(hir.TFloat) {
			return rust.M(l.coerce(b.Left, hir.Float), "py_mod", l.coerce(b.Right, hir.Float))
		}
		return rust.M(l.lowerExpr(b.Left), "py_mod", l.lowerExpr(b.Right))
	case hir.OpPow:
		return l.lowerPow(b, lt, rt)
	case hir.OpSub, hir.OpBitAnd, hir.OpBitOr, hir.OpBitXor:
		if lt.Is(hir.TSet) {
			return rust.Bin(string(b.Op), rust.Borrow(l.lowerExpr(b.Left)), rust.Borrow(l.lowerExpr(b.Right)))
		}

		if lt.Is(hir.TDict) && b.Op == hir.OpBitOr {
			merged := l.getTempName("merged")
			return rust.BlockOf(rust.Id(merged),
				rust.LetName(merged, true, nil, l.owned(b.Left)),
				rust.Semi(rust.M(rust.Id(merged), "extend", l.owned(b.Right))),
			)
		}
	}

	if lt.Is(hir.TFloat) != rt.Is(hir.TFloat) && lt.IsNumeric() && rt.IsNumeric() {
		return rust.Bin(string(b.Op), l.coerce(b.Left, hir.Float), l.coerce(b.Right, hir.Float))
	}

	return rust.Bin(string(b.Op), l.lowerExpr(b.Left), l.lowerExpr(b.Right))
}

// lowerRepeat lowers sequence repetition or returns nil for numeric
// multiplication.
func (l *Lowerer) lowerRepeat(b *hir.Binary, lt, rt *hir.Type) rust.Expr {
	seq, count := b.Left, b.Right
	st := lt
	if rt.Is(hir.TString) || rt.Is(hir.TList) {
		seq, count, st = b.Right, b.Left, rt
	}

	n := rust.As(l.lowerExpr(count), rust.T("usize"))
	switch {
	case st.Is(hir.TString):
		return rust.M(l.lowerExpr(seq), "repeat", n)
	case st.Is(hir.TList):
		if lst, ok := seq.(*hir.ListExpr); ok && len(lst.Elems) == 1 {
			return &rust.Macro{Name: "vec", Bracket: true, Repeat: true, Args: []rust.Expr{l.owned(lst.Elems[0]), n}}
		}
		return rust.M(l.lowerExpr(seq), "repeat", n)
	}

	return nil
}

// lowerPow lowers exponentiation.
func (l *Lowerer) lowerPow(b *hir.Binary, lt, rt *hir.Type) rust.Expr {
	if lt.Is(hir.TInt) && rt.Is(hir.TInt) {
		if n, ok := intLiteral(b.Right); !ok || n >= 0 {
			return rust.M(l.lowerExpr(b.Left), "pow", rust.As(l.lowerExpr(b.Right), rust.T("u32")))
		}
	}

	if lt.Is(hir.TFloat) && rt.Is(hir.TInt) {
		return rust.M(l.lowerExpr(b.Left), "powi", rust.As(l.lowerExpr(b.Right), rust.T("i32")))
	}

	return rust.M(l.coerce(b.Left, hir.Float), "powf", l.coerce(b.Right, hir.Float))
}

// lowerDynArith lowers arithmetic where an operand is a DepylerValue.
func (l *Lowerer) lowerDynArith(b *hir.Binary) rust.Expr {
	l.ctx.Need(prelude.ValueEnum)

	left, right := l.coerce(b.Left, dynType), l.coerce(b.Right, dynType)
	switch b.Op {
	case hir.OpFloorDiv:
		return rust.M(left, "floor_div", rust.Borrow(right))
	case hir.OpPow:
		return rust.CallPath("DepylerValue::from",
			rust.M(rust.M(left, "to_f64"), "powf", rust.M(right, "to_f64")))
	case hir.OpLShift, hir.OpRShift:
		return rust.CallPath("DepylerValue::from",
			rust.Bin(string(b.Op), rust.M(left, "to_i64"), rust.M(right, "to_i64")))
	}

	return rust.Bin(string(b.Op), left, right)
}

// -----------------------------------------------------------------------------

// lowerCompare lowers an ordering or equality comparison.
func (l *Lowerer) lowerCompare(b *hir.Binary) rust.Expr {
	op := string(b.Op)
	lt, rt := l.exprType(b.Left), l.exprType(b.Right)

	if _, ok := b.Right.(*hir.NoneLit); ok && (b.Op == hir.OpEq || b.Op == hir.OpNotEq) {
		return l.noneCheck(b.Left, b.Op == hir.OpEq)
	}

	if l.isCharVar(b.Left) {
		if s, ok := b.Right.(*hir.StrLit); ok && len([]rune(s.Value)) == 1 {
			return rust.Bin(op, l.lowerExpr(b.Left), &rust.CharLit{Value: []rune(s.Value)[0]})
		}
	}
	if l.isCharVar(b.Right) {
		if s, ok := b.Left.(*hir.StrLit); ok && len([]rune(s.Value)) == 1 {
			return rust.Bin(op, &rust.CharLit{Value: []rune(s.Value)[0]}, l.lowerExpr(b.Right))
		}
	}

	switch {
	case IsDyn(lt) != IsDyn(rt) && (IsDyn(lt) || IsDyn(rt)):
		return rust.Bin(op, l.coerce(b.Left, dynType), l.coerce(b.Right, dynType))
	case lt.Is(hir.TOptional) && !rt.Is(hir.TOptional) && !rt.IsUnknown():
		if b.Op == hir.OpEq || b.Op == hir.OpNotEq {
			return rust.Bin(op, l.lowerExpr(b.Left), rust.Some(l.coerce(b.Right, lt.Inner())))
		}
		return rust.Bin(op, l.unwrapOption(b.Left), l.lowerExpr(b.Right))
	case lt.IsNumeric() && rt.IsNumeric() && lt.Is(hir.TFloat) != rt.Is(hir.TFloat):
		return rust.Bin(op, l.coerce(b.Left, hir.Float), l.coerce(b.Right, hir.Float))
	case lt.Is(hir.TString) || rt.Is(hir.TString):
		if l.isCharVar(b.Left) || l.isCharVar(b.Right) {
			return rust.Bin(op, l.owned(b.Left), l.owned(b.Right))
		}
		if b.Op == hir.OpEq || b.Op == hir.OpNotEq {
			return rust.Bin(op, l.lowerExpr(b.Left), l.lowerExpr(b.Right))
		}
		return rust.Bin(op, l.strView(b.Left), l.strView(b.Right))
	}

	return rust.Bin(op, l.lowerExpr(b.Left), l.lowerExpr(b.Right))
}

// strView lowers a string expression into a `&str`.
func (l *Lowerer) strView(e hir.Expr) rust.Expr {
	switch v := e.(type) {
	case *hir.StrLit:
		return rust.Str(v.Value)
	case *hir.Var:
		if l.ctx.RefVars[v.Name] {
			return l.lowerExpr(v)
		}
		if l.isCharVar(v) {
			return rust.M(rust.ToString(l.lowerExpr(v)), "as_str")
		}
	}

	return rust.M(l.lowerExpr(e), "as_str")
}

// lowerIdentity lowers `is` and `is not`.  Only comparisons with None have
// a meaning beyond equality.
func (l *Lowerer) lowerIdentity(b *hir.Binary) rust.Expr {
	isOp := b.Op == hir.OpIs

	if _, ok := b.Right.(*hir.NoneLit); ok {
		return l.noneCheck(b.Left, isOp)
	}
	if _, ok := b.Left.(*hir.NoneLit); ok {
		return l.noneCheck(b.Right, isOp)
	}

	op := "=="
	if !isOp {
		op = "!="
	}

	return rust.Bin(op, l.lowerExpr(b.Left), l.lowerExpr(b.Right))
}

// noneCheck lowers `e is None` (isNone) or `e is not None`.
func (l *Lowerer) noneCheck(e hir.Expr, isNone bool) rust.Expr {
	t := l.exprType(e)
	x := l.lowerExpr(e)

	method := "is_some"
	if isNone {
		method = "is_none"
	}

	switch {
	case l.isMutOption(e):
		return rust.M(x, method)
	case t.IsCustom(typeJSON):
		if isNone {
			return rust.M(x, "is_null")
		}
		return rust.Not(rust.M(x, "is_null"))
	case IsDyn(t):
		if isNone {
			return rust.M(x, "is_none")
		}
		return rust.Not(rust.M(x, "is_none"))
	case t.Is(hir.TOptional), t.IsUnknown():
		return rust.M(x, method)
	}

	// a value of a non-optional type is never None
	return rust.Bool(!isNone)
}

// unwrapOption lowers an optional expression as its value.  The value is
// borrowed so the option itself stays usable.
func (l *Lowerer) unwrapOption(e hir.Expr) rust.Expr {
	x := l.lowerExpr(e)
	if l.exprType(e).Inner().IsCopy() {
		return rust.M(x, "unwrap")
	}

	return rust.M(rust.M(x, "as_ref"), "unwrap")
}

// -----------------------------------------------------------------------------

// lowerContains lowers `item in container`.
func (l *Lowerer) lowerContains(container, item hir.Expr) rust.Expr {
	ct := l.exprType(container)

	switch v := container.(type) {
	case *hir.ListExpr:
		return l.literalContains(v.Elems, item)
	case *hir.TupleExpr:
		return l.literalContains(v.Elems, item)
	case *hir.SetExpr:
		return l.literalContains(v.Elems, item)
	}

	recv := l.lowerExpr(container)
	switch {
	case ct.Is(hir.TString):
		if l.isCharVar(item) {
			return rust.M(recv, "contains", l.lowerExpr(item))
		}
		return rust.M(recv, "contains", l.strArg(item))
	case ct.Is(hir.TDict):
		return rust.M(recv, "contains_key", l.keyArg(item, ct.Key()))
	case ct.Is(hir.TSet):
		return rust.M(recv, "contains", l.keyArg(item, ct.Elem()))
	case ct.Is(hir.TList), ct.Is(hir.TGeneric) && ct.Name == "deque":
		return rust.M(recv, "contains", l.elemRef(item, ct.Elem()))
	case IsDyn(ct):
		l.ctx.Need(prelude.ValueEnum)
		return rust.M(recv, "contains", rust.Borrow(l.coerce(item, dynType)))
	case ct.IsCustom(typeJSON):
		return rust.M(rust.M(recv, "get", l.strArg(item)), "is_some")
	case ct.Is(hir.TCustom) && l.ctx.ClassNames[ct.Name]:
		return rust.M(recv, "contains", l.argRef(item))
	}

	if l.exprType(item).Is(hir.TString) {
		return rust.M(recv, "contains", l.strArg(item))
	}

	return rust.M(recv, "contains", rust.Borrow(l.lowerExpr(item)))
}

// literalContains lowers membership in a literal sequence.
func (l *Lowerer) literalContains(elems []hir.Expr, item hir.Expr) rust.Expr {
	it := l.exprType(item)

	lowered := make([]rust.Expr, len(elems))
	for i, elem := range elems {
		if it.Is(hir.TString) {
			lowered[i] = l.strView(elem)
		} else {
			lowered[i] = l.coerce(elem, it)
		}
	}

	var needle rust.Expr
	switch {
	case l.isCharVar(item):
		needle = rust.Borrow(rust.M(rust.ToString(l.lowerExpr(item)), "as_str"))
	case it.Is(hir.TString):
		needle = rust.Borrow(l.strView(item))
	default:
		needle = rust.Borrow(l.lowerExpr(item))
	}

	return rust.M(&rust.Array{Elems: lowered}, "contains", needle)
}

// elemRef lowers a reference to a value compared with the elements of a
// sequence of elem.
func (l *Lowerer) elemRef(item hir.Expr, elem *hir.Type) rust.Expr {
	if v, ok := item.(*hir.Var); ok && !l.ctx.RefVars[v.Name] && !l.isCharVar(v) && !IsDyn(elem) {
		return rust.Borrow(l.lowerExpr(v))
	}

	return rust.Borrow(l.coerce(item, elem))
}

// -----------------------------------------------------------------------------

// lowerBoolOp lowers `and` and `or`.  Boolean operands give the boolean
// operators; other operands keep Python's value semantics.
func (l *Lowerer) lowerBoolOp(b *hir.Binary) rust.Expr {
	op := "&&"
	if b.Op == hir.OpOr {
		op = "||"
	}

	lt := l.exprType(b.Left)
	if l.binaryType(b).Is(hir.TBool) || lt.Is(hir.TBool) {
		return rust.Bin(op, l.truthy(b.Left), l.truthy(b.Right))
	}

	if b.Op == hir.OpOr && lt.Is(hir.TOptional) {
		return rust.M(l.owned(b.Left), "unwrap_or", l.coerce(b.Right, lt.Inner()))
	}

	if lt.IsUnknown() {
		return rust.Bin(op, l.truthy(b.Left), l.truthy(b.Right))
	}

	tmp := l.getTempName("lhs")
	cond := l.truthyOf(rust.Id(tmp), lt, nil)
	rhs := l.coerce(b.Right, lt)

	var then, els rust.Expr = rust.Id(tmp), rhs
	if b.Op == hir.OpAnd {
		then, els = rhs, rust.Id(tmp)
	}

	return rust.BlockOf(&rust.If{Cond: cond, Then: rust.BlockOf(then), Else: rust.BlockOf(els)},
		rust.LetName(tmp, false, nil, l.owned(b.Left)),
	)
}

// -----------------------------------------------------------------------------

// lowerPercentFormat lowers printf-style formatting of a literal template.
func (l *Lowerer) lowerPercentFormat(tmpl *hir.StrLit, args hir.Expr) rust.Expr {
	var values []hir.Expr
	if tup, ok := args.(*hir.TupleExpr); ok {
		values = tup.Elems
	} else {
		values = []hir.Expr{args}
	}

	var sb strings.Builder
	var fargs []rust.Expr
	src := tmpl.Value
	n := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '{':
			sb.WriteString("{{")
			continue
		case '}':
			sb.WriteString("}}")
			continue
		case '%':
		default:
			sb.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(src) && strings.IndexByte("0123456789.-+ ", src[j]) >= 0 {
			j++
		}
		if j >= len(src) {
			l.fail(tmpl, "incomplete format specifier in %q", src)
		}

		flags, verb := src[i+1:j], src[j]
		i = j

		if verb == '%' {
			sb.WriteByte('%')
			continue
		}

		if n >= len(values) {
			l.fail(tmpl, "not enough arguments for format string")
		}
		arg := values[n]
		n++

		switch verb {
		case 's', 'd', 'i':
			sb.WriteString("{" + formatFlags(flags, "") + "}")
			if verb == 's' && !l.isDisplayable(l.exprType(arg)) {
				sb.Reset()
				l.fail(tmpl, "%%s of a value without Display")
			}
		case 'f', 'F', 'e', 'g':
			spec := formatFlags(flags, "")
			if !strings.Contains(flags, ".") {
				spec += ".6"
			}
			if verb == 'e' {
				spec += "e"
			}
			sb.WriteString("{" + spec + "}")
			fargs = append(fargs, l.coerce(arg, hir.Float))
			continue
		case 'r':
			sb.WriteString("{:?}")
		case 'x', 'X', 'o':
			sb.WriteString("{" + formatFlags(flags, string(verb)) + "}")
		default:
			l.fail(tmpl, "unsupported format specifier %%%c", verb)
		}

		fargs = append(fargs, l.lowerExpr(arg))
	}

	return rust.MacroCall("format", append([]rust.Expr{rust.Str(sb.String())}, fargs...)...)
}

// formatFlags converts printf flags into a Rust format spec (with the
// leading colon) or "" if there are none.
func formatFlags(flags, verb string) string {
	if flags == "" && verb == "" {
		return ""
	}

	spec := flags
	if strings.HasPrefix(spec, "-") {
		spec = "<" + spec[1:]
	} else if strings.HasPrefix(spec, "0") && len(spec) > 1 {
		spec = "0" + spec[1:]
	} else if spec != "" && spec[0] >= '1' && spec[0] <= '9' {
		spec = ">" + spec
	}

	return ":" + spec + verb
}
