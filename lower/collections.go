package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// argAt returns the nth argument of mc or fails.
func (l *Lowerer) argAt(mc *hir.MethodCall, n int) hir.Expr {
	if n < len(mc.Args) {
		return mc.Args[n]
	}

	l.fail(mc, "%s() expects at least %d arguments", mc.Method, n+1)
	return nil
}

// collectInto collects an iterator into the container type t.
func (l *Lowerer) collectInto(it rust.Expr, t *hir.Type) rust.Expr {
	return &rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{l.rustType(t)}}
}

// lowerListMethod lowers a list method or returns nil.
func (l *Lowerer) lowerListMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	v := l.methodRecv(mc)
	elem := rt.Elem()
	arg := func(n int) hir.Expr { return l.argAt(mc, n) }

	switch mc.Method {
	case "append":
		return rust.M(v, "push", l.coerce(arg(0), elem))
	case "extend":
		return rust.M(v, "extend", l.iterOf(arg(0)))
	case "insert":
		return rust.M(v, "insert", rust.As(l.lowerExpr(arg(0)), rust.T("usize")), l.coerce(arg(1), elem))
	case "pop":
		if len(mc.Args) == 0 {
			return rust.M(rust.M(v, "pop"), "expect", rust.Str("pop from empty list"))
		}
		if n, ok := intLiteral(mc.Args[0]); ok && n < 0 {
			if n == -1 {
				return rust.M(rust.M(v, "pop"), "expect", rust.Str("pop from empty list"))
			}
			return rust.M(v, "remove", rust.Bin("-", rust.M(v, "len"), rust.Int(-n)))
		}
		return rust.M(v, "remove", rust.As(l.lowerExpr(mc.Args[0]), rust.T("usize")))
	case "remove":
		pos := rust.M(rust.M(rust.M(v, "iter"), "position", rust.Lambda(false, []string{"e"},
			rust.Bin("==", rust.Id("e"), l.elemRef(arg(0), elem)))), "expect", rust.Str("list.remove(x): x not in list"))
		return rust.M(v, "remove", pos)
	case "index":
		pos := rust.M(rust.M(v, "iter"), "position", rust.Lambda(false, []string{"e"},
			rust.Bin("==", rust.Id("e"), l.elemRef(arg(0), elem))))
		return rust.As(rust.M(pos, "expect", rust.Str("value is not in list")), rust.T("i64"))
	case "count":
		match := rust.M(rust.M(v, "iter"), "filter", rust.Lambda(false, []string{"e"},
			rust.Bin("==", rust.Deref(rust.Id("e")), l.elemRef(arg(0), elem))))
		return rust.As(rust.M(match, "count"), rust.T("i64"))
	case "sort":
		if key := kwarg(mc.Kwargs, "key"); key != nil {
			lam, ok := key.(*hir.Lambda)
			if !ok || len(lam.Params) != 1 {
				l.fail(mc, "list.sort() key must be a one argument lambda")
			}
			if !isIdentityKey(lam) {
				sorted := l.lowerSortByKey(&hir.SortByKey{Base: mc.Base, Iterable: mc.Recv, KeyParams: lam.Params, KeyBody: lam.Body, Reverse: kwarg(mc.Kwargs, "reverse")})
				return &rust.Assign{Op: "=", Left: v, Right: sorted}
			}
		}

		sort := l.sortCall(v, elem)
		if rev, ok := kwarg(mc.Kwargs, "reverse").(*hir.BoolLit); ok && rev.Value {
			return rust.BlockOf(nil, rust.Semi(sort), rust.Semi(rust.M(v, "reverse")))
		}
		return sort
	case "reverse", "clear":
		return rust.M(v, mc.Method)
	case "copy":
		return rust.Clone(v)
	}

	return nil
}

// lowerDictMethod lowers a dict method.
func (l *Lowerer) lowerDictMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	l.ctx.Need(prelude.HashMap)

	d := l.methodRecv(mc)
	kt, vt := rt.Key(), rt.Value()
	arg := func(n int) hir.Expr { return l.argAt(mc, n) }

	switch mc.Method {
	case "get":
		found := rust.M(rust.M(d, "get", l.keyArg(arg(0), kt)), "cloned")
		if len(mc.Args) > 1 {
			return rust.M(found, "unwrap_or", l.coerce(mc.Args[1], vt))
		}
		return found
	case "keys", "values":
		return l.collectInto(rust.M(rust.M(d, mc.Method), "cloned"), hir.ListOf(map[string]*hir.Type{"keys": kt, "values": vt}[mc.Method]))
	case "items":
		pat := &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("k"), rust.Pat("v")}}
		it := rust.M(rust.M(d, "iter"), "map", rust.ClosureOf(false, pat, &rust.Tuple{Elems: []rust.Expr{rust.Clone(rust.Id("k")), rust.Clone(rust.Id("v"))}}))
		return l.collectInto(it, hir.ListOf(hir.TupleOf(kt, vt)))
	case "pop":
		removed := rust.M(d, "remove", l.keyArg(arg(0), kt))
		if len(mc.Args) > 1 {
			return rust.M(removed, "unwrap_or", l.coerce(mc.Args[1], vt))
		}
		return rust.M(removed, "expect", rust.Str("KeyError: key not found"))
	case "popitem":
		k := l.getTempName("key")
		return rust.BlockOf(
			&rust.Tuple{Elems: []rust.Expr{rust.Clone(rust.Id(k)), rust.M(rust.M(d, "remove", rust.Borrow(rust.Id(k))), "unwrap")}},
			rust.LetName(k, false, nil, rust.M(rust.M(rust.M(rust.M(d, "keys"), "next"), "cloned"), "expect", rust.Str("popitem(): dictionary is empty"))),
		)
	case "setdefault":
		var value rust.Expr
		if len(mc.Args) > 1 {
			value = l.coerce(mc.Args[1], vt)
		} else {
			value = l.coerce(&hir.NoneLit{}, vt)
		}
		return rust.Clone(rust.M(rust.M(d, "entry", l.coerce(arg(0), kt)), "or_insert", value))
	case "update":
		if len(mc.Args) == 0 {
			pairs := make([]rust.Expr, len(mc.Kwargs))
			for i, kw := range mc.Kwargs {
				pairs[i] = &rust.Tuple{Elems: []rust.Expr{rust.ToString(rust.Str(kw.Name)), l.coerce(kw.Value, vt)}}
			}
			return rust.M(d, "extend", &rust.Array{Elems: pairs})
		}

		other := arg(0)
		if dict, ok := other.(*hir.DictExpr); ok {
			return rust.M(d, "extend", l.lowerDict(dict, rt))
		}
		pat := &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("k"), rust.Pat("v")}}
		return rust.M(d, "extend", rust.M(rust.M(l.lowerExpr(other), "iter"), "map",
			rust.ClosureOf(false, pat, &rust.Tuple{Elems: []rust.Expr{rust.Clone(rust.Id("k")), rust.Clone(rust.Id("v"))}})))
	case "clear":
		return rust.M(d, "clear")
	case "copy":
		return rust.Clone(d)
	}

	l.ctx.Tracer.Record(trace.MethodDispatch, "dict."+mc.Method, "generic", nil, 0.4, mc.Span())
	return rust.M(d, rust.SafeIdent(mc.Method), l.lowerArgs(mc.Args)...)
}

// lowerSetMethod lowers a set method.
func (l *Lowerer) lowerSetMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	l.ctx.Need(prelude.HashSet)

	s := l.methodRecv(mc)
	elem := rt.Elem()
	arg := func(n int) hir.Expr { return l.argAt(mc, n) }

	switch mc.Method {
	case "add":
		return rust.M(s, "insert", l.coerce(arg(0), elem))
	case "discard":
		return rust.M(s, "remove", l.keyArg(arg(0), elem))
	case "remove":
		return rust.MacroCall("assert", rust.M(s, "remove", l.keyArg(arg(0), elem)), rust.Str("KeyError: element not in set"))
	case "union", "intersection", "difference", "symmetric_difference":
		return l.collectInto(rust.M(rust.M(s, mc.Method, l.argRef(arg(0))), "cloned"), rt)
	case "issubset", "issuperset", "isdisjoint":
		method := map[string]string{"issubset": "is_subset", "issuperset": "is_superset", "isdisjoint": "is_disjoint"}[mc.Method]
		return rust.M(s, method, l.argRef(arg(0)))
	case "update":
		return rust.M(s, "extend", l.iterOf(arg(0)))
	case "intersection_update", "difference_update":
		var test rust.Expr = rust.M(l.lowerExpr(arg(0)), "contains", rust.Id("x"))
		if mc.Method == "difference_update" {
			test = rust.Not(test)
		}
		return rust.M(s, "retain", rust.Lambda(false, []string{"x"}, test))
	case "pop":
		x := l.getTempName("elem")
		return rust.BlockOf(rust.Id(x),
			rust.LetName(x, false, nil, rust.M(rust.M(rust.M(rust.M(s, "iter"), "next"), "cloned"), "expect", rust.Str("pop from an empty set"))),
			rust.Semi(rust.M(s, "remove", rust.Borrow(rust.Id(x)))),
		)
	case "clear":
		return rust.M(s, "clear")
	case "copy":
		return rust.Clone(s)
	}

	return rust.M(s, rust.SafeIdent(mc.Method), l.lowerArgs(mc.Args)...)
}

// lowerDequeMethod lowers a collections.deque method.  Elements of dynamic
// deques are boxed into DepylerValue.
func (l *Lowerer) lowerDequeMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	l.ctx.Need(prelude.VecDeque)

	q := l.methodRecv(mc)
	elem := rt.Elem()
	if elem.IsUnknown() {
		elem = dynType
	}
	arg := func(n int) hir.Expr { return l.argAt(mc, n) }

	switch mc.Method {
	case "append":
		return rust.M(q, "push_back", l.coerce(arg(0), elem))
	case "appendleft":
		return rust.M(q, "push_front", l.coerce(arg(0), elem))
	case "pop":
		return rust.M(rust.M(q, "pop_back"), "expect", rust.Str("pop from an empty deque"))
	case "popleft":
		return rust.M(rust.M(q, "pop_front"), "expect", rust.Str("pop from an empty deque"))
	case "extend":
		return rust.M(q, "extend", l.iterOf(arg(0)))
	case "extendleft":
		return &rust.For{
			Pat:  rust.Pat("x"),
			Iter: l.iterOf(arg(0)),
			Body: rust.BlockOf(nil, rust.Semi(rust.M(q, "push_front", rust.Id("x")))),
		}
	case "rotate":
		n := l.getTempName("n")
		var amount rust.Expr = rust.Int(1)
		if len(mc.Args) > 0 {
			amount = l.lowerExpr(mc.Args[0])
		}
		return rust.BlockOf(nil,
			rust.LetName(n, false, nil, amount),
			rust.Semi(&rust.If{
				Cond: rust.Bin(">=", rust.Id(n), rust.Int(0)),
				Then: rust.BlockOf(nil, rust.Semi(rust.M(q, "rotate_right", rust.As(rust.Id(n), rust.T("usize"))))),
				Else: rust.BlockOf(nil, rust.Semi(rust.M(q, "rotate_left", rust.As(&rust.Unary{Op: "-", X: rust.Id(n)}, rust.T("usize"))))),
			}),
		)
	case "clear":
		return rust.M(q, "clear")
	case "copy":
		return rust.Clone(q)
	case "count", "index", "remove", "reverse":
		return l.lowerListMethod(mc, hir.ListOf(elem))
	}

	return rust.M(q, rust.SafeIdent(mc.Method), l.lowerArgs(mc.Args)...)
}

// lowerJSONMethod lowers the dict and list methods of a parsed JSON value.
func (l *Lowerer) lowerJSONMethod(mc *hir.MethodCall) rust.Expr {
	l.ctx.Need(prelude.SerdeJSON)

	x := l.attrRecv(mc.Recv)
	object := rust.M(rust.M(x, "as_object"), "expect", rust.Str("not a JSON object"))
	arg := func(n int) hir.Expr { return l.argAt(mc, n) }

	switch mc.Method {
	case "get":
		found := rust.M(rust.M(x, "get", l.strArg(arg(0))), "cloned")
		if len(mc.Args) > 1 {
			return rust.M(found, "unwrap_or", rust.MacroCall("serde_json::json", l.owned(mc.Args[1])))
		}
		return rust.M(found, "unwrap_or", rust.P("serde_json::Value::Null"))
	case "keys":
		return &rust.MethodCall{Recv: rust.M(rust.M(object, "keys"), "cloned"), Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))}}
	case "values":
		return &rust.MethodCall{Recv: rust.M(rust.M(object, "values"), "cloned"), Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("serde_json::Value"))}}
	case "items":
		pat := &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("k"), rust.Pat("v")}}
		it := rust.M(rust.M(object, "iter"), "map", rust.ClosureOf(false, pat,
			&rust.Tuple{Elems: []rust.Expr{rust.Clone(rust.Id("k")), rust.Clone(rust.Id("v"))}}))
		return &rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{rust.T("Vec", &rust.TupleType{Elems: []rust.Type{rust.T("String"), rust.T("serde_json::Value")}})}}
	case "append":
		return rust.M(rust.M(rust.M(x, "as_array_mut"), "expect", rust.Str("not a JSON array")), "push",
			rust.CallPath("serde_json::Value::from", l.owned(arg(0))))
	}

	return rust.M(x, rust.SafeIdent(mc.Method), l.lowerArgs(mc.Args)...)
}
