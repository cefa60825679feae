package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerCall lowers a call of a named function, class or builtin.
func (l *Lowerer) lowerCall(c *hir.Call) rust.Expr {
	// locals holding closures shadow everything else
	if l.isDeclared(c.Func) {
		if t := l.ctx.VarType(c.Func); t == nil || t.Is(hir.TFunction) {
			args := make([]rust.Expr, len(c.Args))
			for i, arg := range c.Args {
				args[i] = l.owned(arg)
			}
			return &rust.Call{Func: rust.Id(rust.SafeIdent(c.Func)), Args: args}
		}
	}

	if c.Func == "cls" && l.ctx.IsClassmethod && l.fn != nil && l.fn.class != nil {
		cc := *c
		cc.Func = l.fn.class.name
		return l.lowerConstructor(&cc)
	}

	if l.ctx.ClassNames[c.Func] {
		if base, ok := l.ctx.ExceptionClasses[c.Func]; ok && base != "" {
			return l.lowerException(c)
		}
		return l.lowerConstructor(c)
	}

	if isBuiltinException(c.Func) {
		return l.lowerException(c)
	}

	if _, ok := l.funcs[c.Func]; ok {
		return l.lowerUserCall(c)
	}

	if item, ok := l.ctx.ImportedItems[c.Func]; ok {
		if dot := strings.LastIndexByte(item, '.'); dot > 0 {
			return l.lowerModuleCall(item[:dot], item[dot+1:], c.Args, c.Kwargs, c)
		}
	}

	if x := l.lowerBuiltin(c); x != nil {
		return x
	}

	if mod, fn, ok := l.collectionsCall(c.Func); ok {
		return l.lowerModuleCall(mod, fn, c.Args, c.Kwargs, c)
	}

	l.ctx.Tracer.Record(trace.MethodDispatch, c.Func, "direct-call", nil, 0.3, c.Span())

	args := make([]rust.Expr, len(c.Args))
	for i, arg := range c.Args {
		args[i] = l.owned(arg)
	}

	return &rust.Call{Func: rust.Id(rust.SafeIdent(c.Func)), Args: args}
}

// kwarg returns the keyword argument named name or nil.
func kwarg(kwargs []*hir.Kwarg, name string) hir.Expr {
	for _, kw := range kwargs {
		if kw.Name == name {
			return kw.Value
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// bindArgs matches positional and keyword arguments against the parameters
// of sig, filling in defaults.  It lowers each argument for how its
// parameter is passed.
func (l *Lowerer) bindArgs(node hir.Node, name string, sig *signature, args []hir.Expr, kwargs []*hir.Kwarg) []rust.Expr {
	if len(args) > len(sig.params) {
		l.fail(node, "%s() takes %d arguments but %d were given", name, len(sig.params), len(args))
	}

	out := make([]rust.Expr, len(sig.params))
	for i, p := range sig.params {
		var arg hir.Expr
		if i < len(args) {
			arg = args[i]
		} else if kw := kwarg(kwargs, p.Name); kw != nil {
			arg = kw
		} else if p.Default != nil {
			arg = p.Default
		} else {
			l.fail(node, "%s() missing required argument %q", name, p.Name)
		}

		out[i] = l.passArg(arg, sig.types[i], sig.borrows[i])
	}

	return out
}

// passArg lowers an argument for a parameter of type t passed as b.
func (l *Lowerer) passArg(arg hir.Expr, t *hir.Type, b Borrow) rust.Expr {
	switch b {
	case BorrowStr:
		return l.strArg(arg)
	case BorrowShared:
		if l.isRefVar(arg) {
			return l.lowerExpr(arg)
		}
		switch arg.(type) {
		case *hir.Var, *hir.Attribute, *hir.Index:
			return rust.Borrow(l.lowerExpr(arg))
		}
		return rust.Borrow(l.coerce(arg, t))
	case BorrowMut:
		if l.isRefVar(arg) {
			return l.lowerExpr(arg)
		}
		return rust.BorrowMut(l.lowerExpr(arg))
	}

	return l.coerce(arg, t)
}

// lowerUserCall lowers a call of a module level function.
func (l *Lowerer) lowerUserCall(c *hir.Call) rust.Expr {
	sig := l.sigs()[c.Func]
	args := l.bindArgs(c, c.Func, sig, c.Args, c.Kwargs)

	var call rust.Expr = &rust.Call{Func: rust.Id(l.fnName(c.Func)), Args: args}
	if sig.result {
		call = l.fallible(call, c.Func+"() failed")
	}

	return call
}

// lowerConstructor lowers the instantiation of a user class.
func (l *Lowerer) lowerConstructor(c *hir.Call) rust.Expr {
	name := rust.SafeIdent(c.Func)
	sig := l.sigs()[c.Func+".__init__"]
	if sig == nil {
		return rust.CallPath(name + "::new")
	}

	args := l.bindArgs(c, c.Func, sig, c.Args, c.Kwargs)
	var call rust.Expr = rust.CallPath(name+"::new", args...)
	if sig.result {
		call = l.fallible(call, c.Func+"() failed")
	}

	return call
}

// lowerException lowers the construction of an exception value.
func (l *Lowerer) lowerException(c *hir.Call) rust.Expr {
	l.ctx.Need(prelude.Exceptions)

	var msg rust.Expr = rust.Str("")
	if len(c.Args) > 0 {
		if l.exprType(c.Args[0]).Is(hir.TString) {
			msg = l.owned(c.Args[0])
		} else {
			placeholder, arg := l.displayArg(c.Args[0])
			msg = rust.MacroCall("format", rust.Str(placeholder), arg)
		}
	}

	return rust.CallPath("PyException::new", rust.Str(c.Func), msg)
}

// -----------------------------------------------------------------------------

// lowerBuiltin lowers a call of a Python builtin or returns nil.
func (l *Lowerer) lowerBuiltin(c *hir.Call) rust.Expr {
	arg := func(n int) hir.Expr {
		if n < len(c.Args) {
			return c.Args[n]
		}
		l.fail(c, "%s() expects at least %d arguments", c.Func, n+1)
		return nil
	}

	switch c.Func {
	case "print":
		return l.lowerPrint(c)
	case "len":
		return l.lowerLen(arg(0))
	case "range":
		return l.lowerRange(c)
	case "int":
		return l.lowerIntCall(c)
	case "float":
		return l.lowerFloatCall(c)
	case "str":
		if len(c.Args) == 0 {
			return rust.CallPath("String::new")
		}
		return l.stringify(arg(0))
	case "bool":
		if len(c.Args) == 0 {
			return rust.Bool(false)
		}
		return l.truthy(arg(0))
	case "repr":
		return rust.MacroCall("format", rust.Str("{:?}"), l.lowerExpr(arg(0)))
	case "abs":
		return rust.M(l.lowerExpr(arg(0)), "abs")
	case "min", "max":
		return l.lowerMinMax(c)
	case "sum":
		return l.lowerSum(c)
	case "sorted":
		return l.lowerSorted(c)
	case "reversed":
		return &rust.MethodCall{
			Recv:      rust.M(l.iterOf(arg(0)), "rev"),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})},
		}
	case "enumerate":
		return l.lowerEnumerate(c)
	case "zip":
		return l.lowerZip(c)
	case "any", "all":
		return l.lowerAnyAll(c)
	case "map":
		return l.lowerMap(c)
	case "filter":
		return l.lowerFilter(c)
	case "iter":
		return l.iterOf(arg(0))
	case "next":
		return l.lowerNext(c)
	case "ord":
		if l.isCharVar(arg(0)) {
			return rust.As(l.lowerExpr(arg(0)), rust.T("i64"))
		}
		return rust.As(rust.M(rust.M(rust.M(l.lowerExpr(arg(0)), "chars"), "next"), "unwrap"), rust.T("i64"))
	case "chr":
		return rust.ToString(rust.M(rust.CallPath("char::from_u32", rust.As(l.lowerExpr(arg(0)), rust.T("u32"))), "unwrap"))
	case "isinstance":
		return l.lowerIsInstance(c)
	case "callable":
		return rust.Bool(true)
	case "open":
		return l.lowerOpen(c)
	case "input":
		return l.lowerInput(c)
	case "round":
		return l.lowerRound(c)
	case "divmod":
		a, b := l.lowerExpr(arg(0)), l.lowerExpr(arg(1))
		return &rust.Tuple{Elems: []rust.Expr{rust.M(a, "div_euclid", b), rust.M(a, "rem_euclid", b)}}
	case "pow":
		if len(c.Args) == 3 {
			p := l.lowerPow(&hir.Binary{Op: hir.OpPow, Left: c.Args[0], Right: c.Args[1]}, hir.Int, hir.Int)
			return rust.M(p, "rem_euclid", l.lowerExpr(c.Args[2]))
		}
		return l.lowerBinary(&hir.Binary{Base: c.Base, Op: hir.OpPow, Left: arg(0), Right: arg(1)})
	case "hex":
		return rust.MacroCall("format", rust.Str("0x{:x}"), l.lowerExpr(arg(0)))
	case "bin":
		return rust.MacroCall("format", rust.Str("0b{:b}"), l.lowerExpr(arg(0)))
	case "oct":
		return rust.MacroCall("format", rust.Str("0o{:o}"), l.lowerExpr(arg(0)))
	case "format":
		if len(c.Args) > 1 {
			if spec, ok := c.Args[1].(*hir.StrLit); ok {
				return rust.MacroCall("format", rust.Str("{:"+spec.Value+"}"), l.lowerExpr(arg(0)))
			}
		}
		return l.stringify(arg(0))
	case "list", "tuple":
		if len(c.Args) == 0 {
			return rust.CallPath("Vec::new")
		}
		return l.collectVec(arg(0))
	case "set", "frozenset":
		l.ctx.Need(prelude.HashSet)
		if len(c.Args) == 0 {
			return rust.CallPath("HashSet::new")
		}
		return &rust.MethodCall{
			Recv:      l.iterOf(arg(0)),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("HashSet", &rust.InferType{})},
		}
	case "dict":
		return l.lowerDictCall(c)
	}

	return nil
}

// lowerLen lowers `len(x)`.
func (l *Lowerer) lowerLen(x hir.Expr) rust.Expr {
	t := l.recvType(x)
	recv := l.attrRecv(x)

	switch {
	case t.Is(hir.TString):
		return rust.As(rust.M(rust.M(recv, "chars"), "count"), rust.T("i64"))
	case t.IsCustom(typeJSON):
		return rust.As(rust.M(rust.M(recv, "as_array"), "map_or", rust.Int(0),
			rust.Lambda(false, []string{"a"}, rust.M(rust.Id("a"), "len"))), rust.T("i64"))
	case t.Is(hir.TGeneric) && t.Name != "deque":
		return rust.As(rust.M(recv, "count"), rust.T("i64"))
	}

	return rust.As(rust.M(recv, "len"), rust.T("i64"))
}

// lowerRange lowers `range(...)` to a Rust range.  Negative literal steps
// count down.
func (l *Lowerer) lowerRange(c *hir.Call) rust.Expr {
	var lo, hi rust.Expr
	switch len(c.Args) {
	case 1:
		lo, hi = rust.Int(0), l.coerce(c.Args[0], hir.Int)
	case 2, 3:
		lo, hi = l.coerce(c.Args[0], hir.Int), l.coerce(c.Args[1], hir.Int)
	default:
		l.fail(c, "range() expects 1 to 3 arguments")
	}

	if len(c.Args) < 3 {
		return &rust.Range{Lo: lo, Hi: hi}
	}

	if n, ok := intLiteral(c.Args[2]); ok {
		switch {
		case n == 0:
			l.fail(c, "range() step must not be zero")
		case n == 1:
			return &rust.Range{Lo: lo, Hi: hi}
		case n < 0:
			down := rust.M(&rust.Range{Lo: rust.Bin("+", hi, rust.Int(1)), Hi: lo, Inclusive: true}, "rev")
			if n == -1 {
				return down
			}
			return rust.M(down, "step_by", rust.Int(-n))
		}
		return rust.M(&rust.Range{Lo: lo, Hi: hi}, "step_by", rust.Int(n))
	}

	return rust.M(&rust.Range{Lo: lo, Hi: hi}, "step_by", rust.As(l.lowerExpr(c.Args[2]), rust.T("usize")))
}

// lowerIntCall lowers `int(x)` and `int(x, base)`.
func (l *Lowerer) lowerIntCall(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		return rust.Int(0)
	}

	x := c.Args[0]
	t := l.exprType(x)

	base := kwarg(c.Kwargs, "base")
	if len(c.Args) > 1 {
		base = c.Args[1]
	}

	switch {
	case l.isCharVar(x):
		return rust.As(rust.M(rust.M(l.lowerExpr(x), "to_digit", rust.Int(10)), "expect", rust.Str("invalid literal for int()")), rust.T("i64"))
	case t.Is(hir.TString):
		trimmed := rust.M(l.lowerExpr(x), "trim")
		if base != nil {
			return l.fallible(rust.CallPath("i64::from_str_radix", trimmed, rust.As(l.lowerExpr(base), rust.T("u32"))), "invalid literal for int()")
		}
		return l.fallible(&rust.MethodCall{Recv: trimmed, Method: "parse", Turbofish: []rust.Type{rust.T("i64")}}, "invalid literal for int()")
	case t.Is(hir.TFloat), t.Is(hir.TBool):
		return rust.As(l.lowerExpr(x), rust.T("i64"))
	case IsDyn(t):
		return rust.M(l.lowerExpr(x), "to_i64")
	case t.IsCustom(typeJSON):
		return rust.M(rust.M(l.lowerExpr(x), "as_i64"), "unwrap_or_default")
	}

	return l.lowerExpr(x)
}

// lowerFloatCall lowers `float(x)`.
func (l *Lowerer) lowerFloatCall(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		return rust.Float(0)
	}

	x := c.Args[0]
	t := l.exprType(x)

	switch {
	case t.Is(hir.TString):
		return l.fallible(&rust.MethodCall{Recv: rust.M(l.lowerExpr(x), "trim"), Method: "parse", Turbofish: []rust.Type{rust.T("f64")}}, "could not convert string to float")
	case t.Is(hir.TInt), t.Is(hir.TBool):
		return l.coerce(x, hir.Float)
	case IsDyn(t):
		return rust.M(l.lowerExpr(x), "to_f64")
	case t.IsCustom(typeJSON):
		return rust.M(rust.M(l.lowerExpr(x), "as_f64"), "unwrap_or_default")
	}

	return l.lowerExpr(x)
}

// stringify lowers `str(x)`.
func (l *Lowerer) stringify(x hir.Expr) rust.Expr {
	t := l.exprType(x)
	if t.Is(hir.TString) {
		return l.owned(x)
	}

	placeholder, arg := l.displayArg(x)
	if placeholder == "{}" {
		if _, isIf := arg.(*rust.If); !isIf {
			return rust.ToString(arg)
		}
	}

	return rust.MacroCall("format", rust.Str(placeholder), arg)
}

// lowerMinMax lowers `min` and `max` over an iterable or over arguments.
func (l *Lowerer) lowerMinMax(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "%s() expects at least 1 argument", c.Func)
	}

	if len(c.Args) == 1 {
		elem := l.iterElemType(c.Args[0])
		it := l.iterOf(c.Args[0])

		if key, ok := kwarg(c.Kwargs, "key").(*hir.Lambda); ok {
			method := c.Func + "_by_key"
			var body rust.Expr
			l.withBindings(lambdaTarget(key), elem, func() {
				body = l.lowerExpr(key.Body)
			})
			return rust.M(rust.M(it, method, rust.ClosureOf(false, lambdaPattern(key, elem.IsCopy()), body)), "expect", rust.Str(c.Func+"() arg is an empty sequence"))
		}

		if elem.Is(hir.TFloat) {
			seed := "f64::INFINITY"
			if c.Func == "max" {
				seed = "f64::NEG_INFINITY"
			}
			return rust.M(it, "fold", rust.P(seed), rust.P("f64::"+c.Func))
		}

		if def := kwarg(c.Kwargs, "default"); def != nil {
			return rust.M(rust.M(it, c.Func), "unwrap_or", l.coerce(def, elem))
		}

		return rust.M(rust.M(it, c.Func), "expect", rust.Str(c.Func+"() arg is an empty sequence"))
	}

	l.ctx.Need(prelude.MinMax)
	t := l.unifyExprs(c.Args)

	acc := l.coerce(c.Args[0], t)
	for _, arg := range c.Args[1:] {
		acc = rust.CallPath("depyler_"+c.Func, acc, l.coerce(arg, t))
	}

	return acc
}

// lowerSum lowers `sum(xs)` and `sum(xs, start)`.
func (l *Lowerer) lowerSum(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "sum() expects an iterable")
	}

	elem := l.iterElemType(c.Args[0])
	ty := rust.T("i64")
	if elem.Is(hir.TFloat) {
		ty = rust.T("f64")
	}

	var total rust.Expr = &rust.MethodCall{Recv: l.iterOf(c.Args[0]), Method: "sum", Turbofish: []rust.Type{ty}}

	start := kwarg(c.Kwargs, "start")
	if len(c.Args) > 1 {
		start = c.Args[1]
	}
	if start != nil {
		total = rust.Bin("+", total, l.coerce(start, elem))
	}

	return total
}

// lowerSorted lowers `sorted(xs)`; calls with a key lambda arrive as a
// sort-by-key node.
func (l *Lowerer) lowerSorted(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "sorted() expects an iterable")
	}

	if key, ok := kwarg(c.Kwargs, "key").(*hir.Lambda); ok {
		return l.lowerSortByKey(&hir.SortByKey{
			Base:      c.Base,
			Iterable:  c.Args[0],
			KeyParams: key.Params,
			KeyBody:   key.Body,
			Reverse:   kwarg(c.Kwargs, "reverse"),
		})
	}

	name := l.getTempName("sorted")
	stmts := []rust.Stmt{rust.LetName(name, true, nil, l.collectVec(c.Args[0]))}
	stmts = append(stmts, rust.Semi(l.sortCall(rust.Id(name), l.iterElemType(c.Args[0]))))

	if rev := kwarg(c.Kwargs, "reverse"); rev != nil {
		if b, ok := rev.(*hir.BoolLit); !ok || b.Value {
			rs := rust.Semi(rust.M(rust.Id(name), "reverse"))
			if ok {
				stmts = append(stmts, rs)
			} else {
				stmts = append(stmts, &rust.ExprStmt{X: &rust.If{Cond: l.truthy(rev), Then: rust.BlockOf(nil, rs)}})
			}
		}
	}

	return rust.BlockOf(rust.Id(name), stmts...)
}

// sortCall sorts the vector v in place.  Floats have no total order.
func (l *Lowerer) sortCall(v rust.Expr, elem *hir.Type) rust.Expr {
	if elem.Is(hir.TFloat) {
		return rust.M(v, "sort_by", rust.Lambda(false, []string{"a", "b"},
			rust.M(rust.M(rust.Id("a"), "partial_cmp", rust.Id("b")), "unwrap")))
	}

	return rust.M(v, "sort")
}

func (l *Lowerer) lowerEnumerate(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "enumerate() expects an iterable")
	}

	var idx rust.Expr = rust.As(rust.Id("i"), rust.T("i64"))
	if start := kwarg(c.Kwargs, "start"); start != nil {
		idx = rust.Bin("+", idx, l.lowerExpr(start))
	} else if len(c.Args) > 1 {
		idx = rust.Bin("+", idx, l.lowerExpr(c.Args[1]))
	}

	pat := &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("i"), rust.Pat("x")}}
	return rust.M(rust.M(l.iterOf(c.Args[0]), "enumerate"), "map",
		rust.ClosureOf(false, pat, &rust.Tuple{Elems: []rust.Expr{idx, rust.Id("x")}}))
}

func (l *Lowerer) lowerZip(c *hir.Call) rust.Expr {
	if len(c.Args) < 2 {
		l.fail(c, "zip() expects at least two iterables")
	}

	it := rust.M(l.iterOf(c.Args[0]), "zip", l.iterOf(c.Args[1]))
	if len(c.Args) == 2 {
		return it
	}

	// flatten the nested pairs built by chained zips
	var pat rust.Pattern = &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("a0"), rust.Pat("a1")}}
	elems := []rust.Expr{rust.Id("a0"), rust.Id("a1")}
	for i, arg := range c.Args[2:] {
		name := "a" + itoa(int64(i+2))
		it = rust.M(it, "zip", l.iterOf(arg))
		pat = &rust.TuplePat{Elems: []rust.Pattern{pat, rust.Pat(name)}}
		elems = append(elems, rust.Id(name))
	}

	return rust.M(it, "map", rust.ClosureOf(false, pat, &rust.Tuple{Elems: elems}))
}

func (l *Lowerer) lowerAnyAll(c *hir.Call) rust.Expr {
	if len(c.Args) != 1 {
		l.fail(c, "%s() expects one iterable", c.Func)
	}

	elem := l.iterElemType(c.Args[0])
	var pred rust.Expr = rust.Id("x")
	if !elem.Is(hir.TBool) {
		pred = l.truthyOf(rust.Id("x"), elem, nil)
	}

	return rust.M(l.iterOf(c.Args[0]), c.Func, rust.Lambda(false, []string{"x"}, pred))
}

// lowerMap lowers `map(f, xs)`.
func (l *Lowerer) lowerMap(c *hir.Call) rust.Expr {
	if len(c.Args) != 2 {
		l.fail(c, "map() is supported with one iterable")
	}

	return rust.M(l.iterOf(c.Args[1]), "map", l.elementFunc(c.Args[0], l.iterElemType(c.Args[1]), false))
}

// lowerFilter lowers `filter(f, xs)`.
func (l *Lowerer) lowerFilter(c *hir.Call) rust.Expr {
	if len(c.Args) != 2 {
		l.fail(c, "filter() expects a predicate and an iterable")
	}

	elem := l.iterElemType(c.Args[1])
	if _, isNone := c.Args[0].(*hir.NoneLit); isNone {
		return rust.M(l.iterOf(c.Args[1]), "filter", rust.ClosureOf(false, rust.Pat("x"), l.truthyOf(rust.Deref(rust.Id("x")), elem, nil)))
	}

	return rust.M(l.iterOf(c.Args[1]), "filter", l.elementFunc(c.Args[0], elem, true))
}

// elementFunc lowers the function argument of map and filter into a
// closure over one element.  byRef selects a closure taking `&T`.
func (l *Lowerer) elementFunc(f hir.Expr, elem *hir.Type, byRef bool) rust.Expr {
	if lam, ok := f.(*hir.Lambda); ok {
		var body rust.Expr
		l.withBindings(lambdaTarget(lam), elem, func() {
			body = l.lowerExpr(lam.Body)
			if byRef {
				body = l.truthyOf(body, l.exprType(lam.Body), lam.Body)
			}
		})

		return rust.ClosureOf(l.ctx.ReturnsImplIterator, lambdaPattern(lam, byRef), body)
	}

	v, ok := f.(*hir.Var)
	if !ok {
		l.fail(f, "unsupported function argument")
	}

	var x rust.Expr = rust.Id("x")
	if byRef {
		x = rust.Clone(rust.Deref(x))
	}

	switch v.Name {
	case "str", "int", "float", "len", "abs", "bool":
		call := &hir.Call{Func: v.Name, Args: []hir.Expr{hir.NewVar("__elem")}}
		var body rust.Expr
		l.ctx.SetVarType("__elem", elem)
		body = l.lowerBuiltin(call)
		delete(l.ctx.VarTypes, "__elem")
		return rust.Lambda(false, []string{"__elem"}, body)
	}

	if sig, ok := l.sigs()[v.Name]; ok && len(sig.borrows) == 1 {
		switch sig.borrows[0] {
		case BorrowShared, BorrowStr:
			if byRef {
				x = rust.Id("x")
			} else {
				x = rust.Borrow(x)
			}
		}
		return rust.Lambda(false, []string{"x"}, &rust.Call{Func: rust.Id(l.fnName(v.Name)), Args: []rust.Expr{x}})
	}

	return rust.Lambda(false, []string{"x"}, &rust.Call{Func: l.lowerExpr(v), Args: []rust.Expr{x}})
}

// lambdaPattern builds the closure parameter pattern for a lambda over
// elements.  byRef matches a `&T` argument.
func lambdaPattern(lam *hir.Lambda, byRef bool) rust.Pattern {
	var pat rust.Pattern
	if len(lam.Params) == 1 {
		pat = rust.Pat(rust.SafeIdent(lam.Params[0]))
	} else {
		elems := make([]rust.Pattern, len(lam.Params))
		for i, p := range lam.Params {
			elems[i] = rust.Pat(rust.SafeIdent(p))
		}
		pat = &rust.TuplePat{Elems: elems}
	}

	if byRef {
		return &rust.RefPat{Pat: pat}
	}

	return pat
}

// lowerNext lowers `next(it)` and `next(it, default)`.
func (l *Lowerer) lowerNext(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "next() expects an iterator")
	}

	it := rust.M(l.lowerExpr(c.Args[0]), "next")
	if len(c.Args) > 1 {
		return rust.M(it, "unwrap_or", l.coerce(c.Args[1], l.iterElemType(c.Args[0])))
	}

	return rust.M(it, "expect", rust.Str("StopIteration"))
}

// isinstanceVariants maps Python type names to DepylerValue variants.
var isinstanceVariants = map[string]string{
	"int": "Int", "float": "Float", "str": "Str", "bool": "Bool",
	"list": "List", "dict": "Dict", "tuple": "Tuple",
}

// lowerIsInstance lowers `isinstance(x, T)`.  Statically typed values are
// decided at compile time.
func (l *Lowerer) lowerIsInstance(c *hir.Call) rust.Expr {
	if len(c.Args) != 2 {
		l.fail(c, "isinstance() expects two arguments")
	}

	var names []string
	switch v := c.Args[1].(type) {
	case *hir.Var:
		names = []string{v.Name}
	case *hir.TupleExpr:
		for _, elem := range v.Elems {
			if ev, ok := elem.(*hir.Var); ok {
				names = append(names, ev.Name)
			}
		}
	}

	t := l.exprType(c.Args[0])
	if IsDyn(t) {
		var pats []string
		for _, name := range names {
			if variant, ok := isinstanceVariants[name]; ok {
				pats = append(pats, "DepylerValue::"+variant+"(_)")
			}
		}
		if len(pats) == 0 {
			return rust.Bool(false)
		}
		return rust.MacroCall("matches", l.lowerExpr(c.Args[0]), &rust.Raw{Text: strings.Join(pats, " | "), Prec: rust.PrecLowest})
	}

	for _, name := range names {
		if t.Repr() == name || strings.HasPrefix(t.Repr(), name+"[") || (t.Is(hir.TCustom) && t.Name == name) {
			return rust.Bool(true)
		}
	}

	return rust.Bool(t.IsUnknown())
}

// lowerOpen lowers `open(path, mode)`.
func (l *Lowerer) lowerOpen(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "open() expects a path")
	}

	mode := "r"
	modeArg := kwarg(c.Kwargs, "mode")
	if len(c.Args) > 1 {
		modeArg = c.Args[1]
	}
	if modeArg != nil {
		s, ok := modeArg.(*hir.StrLit)
		if !ok {
			l.fail(c, "open() mode must be a string literal")
		}
		mode = s.Value
	}

	path := l.strArg(c.Args[0])
	if l.exprType(c.Args[0]).IsCustom(typePath) {
		path = rust.Borrow(l.lowerExpr(c.Args[0]))
	}

	var call rust.Expr
	switch {
	case strings.ContainsAny(mode, "a"):
		call = rust.M(rust.M(rust.M(rust.CallPath("std::fs::OpenOptions::new"), "append", rust.Bool(true)), "create", rust.Bool(true)), "open", path)
	case strings.ContainsAny(mode, "wx"):
		call = rust.CallPath("std::fs::File::create", path)
	default:
		call = rust.CallPath("std::fs::File::open", path)
	}

	return l.fallible(call, "failed to open file")
}

// lowerInput lowers `input(prompt)`.
func (l *Lowerer) lowerInput(c *hir.Call) rust.Expr {
	line := l.getTempName("line")

	var stmts []rust.Stmt
	if len(c.Args) > 0 {
		l.ctx.Need(prelude.IOWrite)
		stmts = append(stmts,
			rust.Semi(rust.MacroCall("print", rust.Str("{}"), l.lowerExpr(c.Args[0]))),
			rust.Semi(rust.M(rust.M(rust.CallPath("std::io::stdout"), "flush"), "unwrap")),
		)
	}

	stmts = append(stmts,
		rust.LetName(line, true, nil, rust.CallPath("String::new")),
		rust.Semi(rust.M(rust.M(rust.CallPath("std::io::stdin"), "read_line", rust.BorrowMut(rust.Id(line))), "expect", rust.Str("failed to read stdin"))),
	)

	return rust.BlockOf(rust.ToString(rust.M(rust.Id(line), "trim_end")), stmts...)
}

// lowerRound lowers `round(x)` and `round(x, n)`.
func (l *Lowerer) lowerRound(c *hir.Call) rust.Expr {
	if len(c.Args) == 0 {
		l.fail(c, "round() expects a number")
	}

	x := l.coerce(c.Args[0], hir.Float)
	if l.exprType(c.Args[0]).Is(hir.TInt) {
		return l.lowerExpr(c.Args[0])
	}

	if len(c.Args) == 1 {
		return rust.As(rust.M(x, "round"), rust.T("i64"))
	}

	scale := rust.M(rust.Float(10), "powi", rust.As(l.lowerExpr(c.Args[1]), rust.T("i32")))
	return rust.Bin("/", rust.M(rust.Bin("*", x, scale), "round"), scale)
}

// lowerDictCall lowers the dict constructor.
func (l *Lowerer) lowerDictCall(c *hir.Call) rust.Expr {
	l.ctx.Need(prelude.HashMap)

	if len(c.Args) == 0 && len(c.Kwargs) == 0 {
		return rust.CallPath("HashMap::new")
	}

	if len(c.Args) == 0 {
		keys := make([]hir.Expr, len(c.Kwargs))
		values := make([]hir.Expr, len(c.Kwargs))
		for i, kw := range c.Kwargs {
			keys[i], values[i] = hir.NewStr(kw.Name), kw.Value
		}
		return l.lowerDict(&hir.DictExpr{Base: c.Base, Keys: keys, Values: values}, nil)
	}

	if l.exprType(c.Args[0]).Is(hir.TDict) {
		return l.owned(c.Args[0])
	}

	return &rust.MethodCall{
		Recv:      l.iterOf(c.Args[0]),
		Method:    "collect",
		Turbofish: []rust.Type{rust.T("HashMap", &rust.InferType{}, &rust.InferType{})},
	}
}

// -----------------------------------------------------------------------------

// lowerPrint lowers `print(...)` honoring the sep, end and file keywords.
func (l *Lowerer) lowerPrint(c *hir.Call) rust.Expr {
	sep, end := " ", "\n"
	if s, ok := kwarg(c.Kwargs, "sep").(*hir.StrLit); ok {
		sep = s.Value
	}
	if s, ok := kwarg(c.Kwargs, "end").(*hir.StrLit); ok {
		end = s.Value
	}

	var sink rust.Expr
	stderr := false
	if file := kwarg(c.Kwargs, "file"); file != nil {
		if a, ok := file.(*hir.Attribute); ok && a.Attr == "stderr" {
			stderr = true
		} else if !(ok && a.Attr == "stdout") {
			l.ctx.Need(prelude.IOWrite)
			sink = l.lowerExpr(file)
		}
	}

	placeholders := make([]string, len(c.Args))
	args := make([]rust.Expr, len(c.Args))
	for i, arg := range c.Args {
		placeholders[i], args[i] = l.displayArg(arg)
	}

	format := strings.Join(placeholders, escapeBraces(sep))

	macro := "print"
	if end == "\n" {
		macro += "ln"
	} else {
		format += escapeBraces(end)
	}

	if sink != nil {
		macro = "write"
		if end == "\n" {
			macro = "writeln"
		}
		return rust.M(rust.MacroCall(macro, append([]rust.Expr{sink, rust.Str(format)}, args...)...), "unwrap")
	}

	if stderr {
		macro = "e" + macro
	}

	if format == "" && macro == "println" {
		return rust.MacroCall(macro)
	}

	return rust.MacroCall(macro, append([]rust.Expr{rust.Str(format)}, args...)...)
}

// escapeBraces escapes literal text for a format string.
func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}
