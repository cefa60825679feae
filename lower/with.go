package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerWith lowers a with statement into a block scoping its bindings.
// Resources close when the block drops them; user context managers have
// their `__exit__` called after the body.
func (l *Lowerer) lowerWith(w *hir.With) []rust.Stmt {
	l.pushScope()
	defer l.popScope()

	var stmts, exits []rust.Stmt
	for _, item := range w.Items {
		binds, exit := l.lowerWithItem(item, w.Body)
		stmts = append(stmts, binds...)
		if exit != nil {
			exits = append([]rust.Stmt{exit}, exits...)
		}
	}

	stmts = append(stmts, l.lowerStmts(w.Body)...)

	// a body that returns leaves through the return and skips __exit__
	if !alwaysReturns(w.Body) {
		stmts = append(stmts, exits...)
	}

	return []rust.Stmt{&rust.ExprStmt{X: rust.BlockOf(nil, stmts...)}}
}

// lowerWithItem binds one context expression and returns the call of its
// exit method, if any.
func (l *Lowerer) lowerWithItem(item *hir.WithItem, body []hir.Stmt) ([]rust.Stmt, rust.Stmt) {
	t := l.exprType(item.Context)

	if t.Is(hir.TCustom) {
		if ci, ok := l.classes[t.Name]; ok && (ci.hasMethod("__enter__") || ci.hasMethod("__exit__")) {
			return l.lowerContextManager(ci, item)
		}
	}

	if item.Name == "" {
		tmp := l.getTempName("_ctx")
		return []rust.Stmt{rust.LetName(tmp, false, nil, l.lowerExpr(item.Context))}, nil
	}

	l.trackValue(item.Name, item.Context)
	l.declare(item.Name)
	l.ctx.SetVarType(item.Name, t)

	mut := l.ctx.MutableVars[item.Name] || writesTo(body, item.Name)
	l.ctx.Tracer.Record(trace.Ownership, item.Name, "scoped", []string{"explicit-close"}, 1, item.Context.Span())

	return []rust.Stmt{rust.LetName(rust.SafeIdent(item.Name), mut, nil, l.owned(item.Context))}, nil
}

// lowerContextManager binds an instance of a user class defining
// `__enter__` and `__exit__`.
func (l *Lowerer) lowerContextManager(ci *classInfo, item *hir.WithItem) ([]rust.Stmt, rust.Stmt) {
	enter := ci.method("__enter__")
	ctx := l.getTempName("ctx")

	// `return self` from __enter__ binds the manager itself
	if item.Name != "" && (enter == nil || returnsSelf(enter)) {
		ctx = rust.SafeIdent(item.Name)
		l.declare(item.Name)
		l.ctx.SetVarType(item.Name, hir.CustomOf(ci.name))
	}

	stmts := []rust.Stmt{rust.LetName(ctx, true, nil, l.owned(item.Context))}

	if enter != nil && !returnsSelf(enter) {
		call := rust.M(rust.Id(ctx), methodName("__enter__"))
		if item.Name != "" {
			l.declare(item.Name)
			if sig, ok := l.sigs()[ci.name+".__enter__"]; ok {
				l.ctx.SetVarType(item.Name, sig.ret)
			}
			stmts = append(stmts, rust.LetName(rust.SafeIdent(item.Name), l.ctx.MutableVars[item.Name], nil, call))
		} else {
			stmts = append(stmts, rust.Semi(call))
		}
	}

	if ci.method("__exit__") == nil {
		return stmts, nil
	}

	var args []rust.Expr
	if sig, ok := l.sigs()[ci.name+".__exit__"]; ok {
		for _, pt := range sig.types {
			args = append(args, l.exitArg(pt))
		}
	}

	var exit rust.Stmt = rust.Semi(rust.M(rust.Id(ctx), methodName("__exit__"), args...))
	if sig, ok := l.sigs()[ci.name+".__exit__"]; ok && !sig.ret.IsUnknown() && !sig.ret.Is(hir.TNone) {
		exit = &rust.Let{Pat: &rust.WildPat{}, Init: rust.M(rust.Id(ctx), methodName("__exit__"), args...)}
	}

	l.ctx.Tracer.Record(trace.MethodDispatch, ci.name+".__exit__", "scope-end-call", []string{"Drop"}, 0.8, item.Context.Span())
	return stmts, exit
}

// exitArg is the value passed for an exception argument of `__exit__` when
// the body completed normally.
func (l *Lowerer) exitArg(t *hir.Type) rust.Expr {
	switch {
	case t.Is(hir.TOptional):
		return rust.NoneVal()
	case t.IsUnknown(), IsDyn(t):
		return l.coerce(&hir.NoneLit{}, dynType)
	}

	return rust.CallPath("Default::default")
}

// writesTo tests whether body writes through the handle bound to name.
func writesTo(body []hir.Stmt, name string) bool {
	found := false
	hir.InspectStmts(body, nil, func(e hir.Expr) bool {
		switch v := e.(type) {
		case *hir.MethodCall:
			if recv, ok := v.Recv.(*hir.Var); ok && recv.Name == name {
				switch v.Method {
				case "write", "writelines", "writerow", "writerows", "writeheader", "flush", "seek", "truncate":
					found = true
				}
			}
		case *hir.Call:
			if v.Func == "print" {
				if f, ok := kwarg(v.Kwargs, "file").(*hir.Var); ok && f.Name == name {
					found = true
				}
			}
		}
		return !found
	})

	return found
}
