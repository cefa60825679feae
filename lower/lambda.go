package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerLambda lowers a lambda into a move closure.  Non-copy locals the body
// captures are cloned ahead of the closure so that the originals stay usable:
//
//	let s_clone = s.clone();
//	move |y| format!("{}{}", y, s_clone)
func (l *Lowerer) lowerLambda(lam *hir.Lambda) rust.Expr {
	isParam := make(map[string]bool, len(lam.Params))
	for _, p := range lam.Params {
		isParam[p] = true
	}

	var clones []rust.Stmt
	renames := make(map[string]string)
	for _, name := range hir.FreeVars(lam) {
		if isParam[name] || name == "self" || !l.isDeclared(name) || l.ctx.CharIterVars[name] {
			continue
		}

		t := l.varType(name)
		if t.IsCopy() || t.Is(hir.TFunction) {
			continue
		}

		shadow := name + "_clone"
		init := rust.Expr(rust.Clone(rust.Id(rust.SafeIdent(name))))
		if l.ctx.RefVars[name] && t.Is(hir.TString) {
			init = rust.ToString(rust.Id(rust.SafeIdent(name)))
		}

		clones = append(clones, rust.LetName(shadow, false, nil, init))
		renames[name] = shadow
		l.ctx.SetVarType(shadow, t)
	}

	body := hir.Rename(lam.Body, renames)
	if len(renames) > 0 {
		l.ctx.Tracer.Record(trace.Ownership, "lambda", "clone-captures", []string{"borrow"}, 0.8, lam.Span())
	}

	l.pushScope()
	defer l.popScope()

	for _, p := range lam.Params {
		l.declare(p)
	}
	for _, shadow := range renames {
		l.declare(shadow)
	}

	var rbody rust.Expr
	l.withBindings(lambdaTarget(lam), l.lambdaParamTypes(lam), func() {
		rbody = l.lowerExpr(body)
	})

	params := make([]string, len(lam.Params))
	for i, p := range lam.Params {
		params[i] = rust.SafeIdent(p)
	}

	closure := rust.Lambda(true, params, rbody)
	if len(clones) == 0 {
		return closure
	}

	return rust.BlockOf(closure, clones...)
}

// lambdaType infers the function type of a lambda.
func (l *Lowerer) lambdaType(lam *hir.Lambda) *hir.Type {
	pt := l.lambdaParamTypes(lam)

	params := []*hir.Type{pt}
	if len(lam.Params) != 1 {
		params = pt.Args
	}

	var ret *hir.Type
	l.withBindings(lambdaTarget(lam), pt, func() {
		ret = l.exprType(lam.Body)
	})

	return hir.FuncOf(params, ret)
}

// lambdaParamTypes infers the types of the parameters of a lambda from the
// operands they are combined with in its body.  Multiple parameters yield a
// tuple type matching lambdaTarget.
func (l *Lowerer) lambdaParamTypes(lam *hir.Lambda) *hir.Type {
	types := make(map[string]*hir.Type, len(lam.Params))
	isParam := func(e hir.Expr) (string, bool) {
		v, ok := e.(*hir.Var)
		if !ok {
			return "", false
		}

		for _, p := range lam.Params {
			if p == v.Name {
				return p, true
			}
		}

		return "", false
	}

	hir.InspectExpr(lam.Body, func(e hir.Expr) bool {
		switch v := e.(type) {
		case *hir.Lambda:
			// inner lambdas may shadow the parameters
			return false
		case *hir.Binary:
			if v.Op == hir.OpAnd || v.Op == hir.OpOr {
				break
			}
			if p, ok := isParam(v.Left); ok && types[p] == nil {
				if _, other := isParam(v.Right); !other {
					types[p] = l.exprType(v.Right)
				}
			}
			if p, ok := isParam(v.Right); ok && types[p] == nil {
				if _, other := isParam(v.Left); !other {
					types[p] = l.exprType(v.Left)
				}
			}
		case *hir.Call:
			if sig, ok := l.sigs()[v.Func]; ok {
				for i, arg := range v.Args {
					if p, ok := isParam(arg); ok && types[p] == nil && i < len(sig.types) {
						types[p] = sig.types[i]
					}
				}
			}
		case *hir.MethodCall:
			if p, ok := isParam(v.Recv); ok && types[p] == nil && isStringOnlyMethod(v.Method) {
				types[p] = hir.Str
			}
		}

		return true
	})

	if len(lam.Params) == 1 {
		return types[lam.Params[0]]
	}

	elems := make([]*hir.Type, len(lam.Params))
	for i, p := range lam.Params {
		elems[i] = types[p]
	}

	return hir.TupleOf(elems...)
}

// lowerIfExpr lowers a conditional expression.  Both branches are converted
// to the unified type.
func (l *Lowerer) lowerIfExpr(ie *hir.IfExpr) rust.Expr {
	if sameExpr(ie.Body, ie.Orelse) {
		return l.lowerExpr(ie.Body)
	}

	if l.isWriterIfExpr(ie) {
		return l.lowerWriterIfExpr(ie)
	}

	t := l.ifExprType(ie)

	if tv, ok := ie.Test.(*hir.Var); ok {
		xt := l.exprType(tv)

		// `x if x else y`
		if bv, ok := ie.Body.(*hir.Var); ok && bv.Name == tv.Name {
			if isEmptyLiteral(ie.Orelse) && !xt.Is(hir.TOptional) {
				return l.owned(tv)
			}

			if xt.Is(hir.TOptional) {
				if t.Is(hir.TOptional) {
					return rust.M(l.owned(tv), "or", l.coerce(ie.Orelse, t))
				}
				return rust.M(l.owned(tv), "unwrap_or", l.coerce(ie.Orelse, t))
			}

			tmp := l.getTempName("v")
			return rust.BlockOf(&rust.If{
				Cond: l.truthyOf(rust.Id(tmp), xt, nil),
				Then: rust.BlockOf(rust.Id(tmp)),
				Else: rust.BlockOf(l.coerce(ie.Orelse, t)),
			}, rust.LetName(tmp, false, nil, l.coerce(ie.Body, t)))
		}

		// `opt.method() if opt else default`
		if xt.Is(hir.TOptional) && usesAny(ie.Body, map[string]bool{tv.Name: true}) {
			return l.lowerOptionIfExpr(ie, tv, xt.Inner(), t)
		}
	}

	return &rust.If{
		Cond: l.truthy(ie.Test),
		Then: rust.BlockOf(l.coerce(ie.Body, t)),
		Else: rust.BlockOf(l.coerce(ie.Orelse, t)),
	}
}

// ifExprType infers the type of a conditional expression.
func (l *Lowerer) ifExprType(ie *hir.IfExpr) *hir.Type {
	if l.isWriterIfExpr(ie) {
		return hir.CustomOf(typeWriter)
	}

	if tv, ok := ie.Test.(*hir.Var); ok {
		if xt := l.exprType(tv); xt.Is(hir.TOptional) && usesAny(ie.Body, map[string]bool{tv.Name: true}) {
			var bt *hir.Type
			l.withOptionBinding(tv.Name, xt.Inner(), func() {
				bt = l.exprType(hir.Rename(ie.Body, map[string]string{tv.Name: optionValueName(tv.Name)}))
			})
			return unify(bt, l.exprType(ie.Orelse))
		}
	}

	return unify(l.exprType(ie.Body), l.exprType(ie.Orelse))
}

// lowerOptionIfExpr lowers a conditional whose body uses the value of the
// optional variable it tests:
//
//	m.as_ref().map(|m_val| m_val.group(1))
//
// when the other branch is None and an if-let binding otherwise.
func (l *Lowerer) lowerOptionIfExpr(ie *hir.IfExpr, opt *hir.Var, inner, t *hir.Type) rust.Expr {
	name := optionValueName(opt.Name)
	body := hir.Rename(ie.Body, map[string]string{opt.Name: name})

	var value rust.Expr
	var bt *hir.Type
	l.withOptionBinding(opt.Name, inner, func() {
		bt = l.exprType(body)
		if isNoneLit(ie.Orelse) {
			value = l.owned(body)
		} else {
			value = l.coerce(body, t)
		}
	})

	x := l.lowerExpr(opt)
	l.ctx.Tracer.Record(trace.ErrorHandling, opt.Name, "option-map", []string{"unwrap"}, 0.9, ie.Span())

	if isNoneLit(ie.Orelse) {
		if !inner.IsCopy() {
			x = rust.M(x, "as_ref")
		}

		method := "map"
		if bt.Is(hir.TOptional) {
			method = "and_then"
		}
		return rust.M(x, method, rust.Lambda(false, []string{name}, value))
	}

	pat := rust.Pattern(&rust.IdentPat{Name: name, Ref: !inner.IsCopy()})
	return &rust.IfLet{
		Pat:   &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{pat}},
		Scrut: x,
		Then:  rust.BlockOf(value),
		Else:  rust.BlockOf(l.coerce(ie.Orelse, t)),
	}
}

// withOptionBinding runs f with the value of the optional variable name bound
// by reference under the name optionValueName(name).
func (l *Lowerer) withOptionBinding(name string, inner *hir.Type, f func()) {
	bound := optionValueName(name)

	l.pushScope()
	defer l.popScope()
	l.declare(bound)

	wasRef := l.ctx.RefVars[bound]
	if !inner.IsCopy() {
		l.ctx.RefVars[bound] = true
	}

	l.withBindings(hir.NewVar(bound), inner, f)

	if !wasRef {
		delete(l.ctx.RefVars, bound)
	}
}

func optionValueName(name string) string {
	return name + "_val"
}

// isWriterIfExpr tests whether a conditional chooses between a file and a
// standard stream.
func (l *Lowerer) isWriterIfExpr(ie *hir.IfExpr) bool {
	a, b := l.isStdoutLike(ie.Body), l.isStdoutLike(ie.Orelse)
	if a == b {
		return false
	}

	other := ie.Orelse
	if b {
		other = ie.Body
	}

	ot := l.exprType(other)
	return ot.IsCustom(typeFile) || ot.IsCustom(typeWriter)
}

// isStdoutLike tests whether e is `sys.stdout` or `sys.stderr`.
func (l *Lowerer) isStdoutLike(e hir.Expr) bool {
	a, ok := e.(*hir.Attribute)
	return ok && l.isStdio(e) && a.Attr != "stdin"
}

// lowerWriterIfExpr boxes both branches to a writer trait object.
func (l *Lowerer) lowerWriterIfExpr(ie *hir.IfExpr) rust.Expr {
	l.ctx.Need(prelude.IOWrite)
	l.ctx.Tracer.Record(trace.TypeMapping, "file-or-stdout", "Box<dyn std::io::Write>", []string{"enum"}, 1, ie.Span())

	boxed := func(e hir.Expr) rust.Expr {
		if l.exprType(e).IsCustom(typeWriter) {
			return l.lowerExpr(e)
		}
		return rust.CallPath("Box::new", l.lowerExpr(e))
	}

	return &rust.If{
		Cond: l.truthy(ie.Test),
		Then: rust.BlockOf(rust.As(boxed(ie.Body), l.rustType(hir.CustomOf(typeWriter)))),
		Else: rust.BlockOf(boxed(ie.Orelse)),
	}
}

// sameExpr tests whether two expressions are syntactically identical.  Only
// side effect free forms are compared.
func sameExpr(a, b hir.Expr) bool {
	switch x := a.(type) {
	case *hir.Var:
		y, ok := b.(*hir.Var)
		return ok && x.Name == y.Name
	case *hir.Attribute:
		y, ok := b.(*hir.Attribute)
		return ok && x.Attr == y.Attr && sameExpr(x.Value, y.Value)
	case *hir.Index:
		y, ok := b.(*hir.Index)
		return ok && sameExpr(x.Value, y.Value) && sameExpr(x.Index, y.Index)
	case *hir.IntLit:
		y, ok := b.(*hir.IntLit)
		return ok && x.Value == y.Value
	case *hir.StrLit:
		y, ok := b.(*hir.StrLit)
		return ok && x.Value == y.Value
	case *hir.BoolLit:
		y, ok := b.(*hir.BoolLit)
		return ok && x.Value == y.Value
	case *hir.NoneLit:
		_, ok := b.(*hir.NoneLit)
		return ok
	}

	return false
}

// -----------------------------------------------------------------------------

// lowerSortByKey lowers `sorted(xs, key=lambda x: ..., reverse=...)`.  The
// elements are copied into a vector sorted by the cached key.
func (l *Lowerer) lowerSortByKey(s *hir.SortByKey) rust.Expr {
	elem := l.iterElemType(s.Iterable)
	name := l.getTempName("sorted")

	lam := &hir.Lambda{Base: s.Base, Params: s.KeyParams, Body: s.KeyBody}
	if isIdentityKey(lam) {
		return l.sortedBlock(s, name, elem, l.sortCall(rust.Id(name), elem))
	}

	var key rust.Expr
	var keyType *hir.Type
	l.pushScope()
	for _, p := range s.KeyParams {
		l.declare(p)
	}
	for _, p := range s.KeyParams {
		l.ctx.RefVars[p] = true
	}
	l.withBindings(lambdaTarget(lam), elem, func() {
		keyType = l.exprType(s.KeyBody)
		key = l.owned(s.KeyBody)
	})
	for _, p := range s.KeyParams {
		delete(l.ctx.RefVars, p)
	}
	l.popScope()

	// tuple elements bind by reference through the default binding mode
	pat := lambdaPattern(lam, false)

	method := "sort_by_key"
	if keyType.Is(hir.TFloat) || IsDyn(keyType) {
		method = "sort_by"
	}

	var sort rust.Expr
	if method == "sort_by_key" {
		sort = rust.M(rust.Id(name), "sort_by_key", rust.ClosureOf(false, pat, key))
	} else {
		a, b := l.keyWith(lam, "a", key), l.keyWith(lam, "b", key)
		cmp := rust.M(rust.M(a, "partial_cmp", rust.Borrow(b)), "unwrap_or", rust.P("std::cmp::Ordering::Equal"))
		sort = rust.M(rust.Id(name), "sort_by", rust.Lambda(false, []string{"a", "b"}, cmp))
	}

	return l.sortedBlock(s, name, elem, sort)
}

// sortedBlock copies the iterable of s into the vector name, sorts it with
// sort and applies the reverse flag.
func (l *Lowerer) sortedBlock(s *hir.SortByKey, name string, elem *hir.Type, sort rust.Expr) rust.Expr {
	stmts := []rust.Stmt{
		rust.LetName(name, true, rust.T("Vec", l.rustType(elem)), l.collectVec(s.Iterable)),
		rust.Semi(sort),
	}

	if s.Reverse != nil {
		if b, ok := s.Reverse.(*hir.BoolLit); !ok || b.Value {
			reverse := rust.Semi(rust.M(rust.Id(name), "reverse"))
			if ok {
				stmts = append(stmts, reverse)
			} else {
				stmts = append(stmts, &rust.ExprStmt{X: &rust.If{Cond: l.truthy(s.Reverse), Then: rust.BlockOf(nil, reverse)}})
			}
		}
	}

	return rust.BlockOf(rust.Id(name), stmts...)
}

// isIdentityKey tests whether a key function returns its argument unchanged.
func isIdentityKey(lam *hir.Lambda) bool {
	if len(lam.Params) != 1 {
		return false
	}

	v, ok := lam.Body.(*hir.Var)
	return ok && v.Name == lam.Params[0]
}

// keyWith wraps the key expression of a sort lambda into a block that binds
// its parameter to the element arg.
func (l *Lowerer) keyWith(lam *hir.Lambda, arg string, key rust.Expr) rust.Expr {
	return rust.BlockOf(key, &rust.Let{Pat: lambdaPattern(lam, false), Init: rust.Id(arg)})
}
