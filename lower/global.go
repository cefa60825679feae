package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerGlobal lowers the first assignment of a module global that
// functions refer to into an item.  It returns nil for every other
// top-level assignment, which stays in the entry point.
//
// Globals that are never written after initialization become constants when
// their value is a numeric or boolean literal and lazily initialized statics
// otherwise.  Globals written by functions live behind a mutex.
func (l *Lowerer) lowerGlobal(a *hir.Assign) rust.Item {
	v, ok := a.Target.(*hir.Var)
	if !ok {
		return nil
	}

	mutex, ok := l.ctx.Globals[v.Name]
	if !ok || l.globalInits[v.Name] != a {
		return nil
	}

	t := l.ctx.VarTypes[v.Name]
	if t.IsUnknown() || t.Is(hir.TNone) {
		t = dynType
		l.ctx.VarTypes[v.Name] = t
	}

	ty := l.rustType(t)
	value := l.lowerGlobalInit(a.Value, t)

	switch {
	case mutex:
		l.ctx.Tracer.Record(trace.Ownership, v.Name, "LazyLock<Mutex>", []string{"static mut"}, 0.9, a.Span())
		return &rust.Static{
			Name:  v.Name,
			Ty:    rust.T("std::sync::LazyLock", rust.T("std::sync::Mutex", ty)),
			Value: rust.CallPath("std::sync::LazyLock::new", rust.Lambda(false, nil, rust.CallPath("std::sync::Mutex::new", value))),
		}
	case l.isLazyGlobal(v.Name):
		l.ctx.Tracer.Record(trace.Ownership, v.Name, "LazyLock", []string{"const"}, 0.9, a.Span())
		return &rust.Static{
			Name:  v.Name,
			Ty:    rust.T("std::sync::LazyLock", ty),
			Value: rust.CallPath("std::sync::LazyLock::new", rust.Lambda(false, nil, value)),
		}
	}

	return &rust.Const{Pub: true, Name: v.Name, Ty: ty, Value: value}
}

// isLazyGlobal tests whether an immutable global needs runtime
// initialization.
func (l *Lowerer) isLazyGlobal(name string) bool {
	a, ok := l.globalInits[name]
	if !ok {
		return false
	}

	switch v := a.Value.(type) {
	case *hir.IntLit, *hir.FloatLit, *hir.BoolLit:
		return false
	case *hir.Unary:
		if v.Op == hir.OpNeg && isConstExpr(v.Operand) {
			_, isStr := v.Operand.(*hir.StrLit)
			return isStr
		}
	}

	return true
}

// lowerGlobalInit lowers the initializer of a global outside of any
// function body.
func (l *Lowerer) lowerGlobalInit(value hir.Expr, t *hir.Type) rust.Expr {
	saved := l.ctx.enterFunction()
	defer l.ctx.exitFunction(saved)

	savedFn, savedScopes := l.fn, l.scopes
	l.fn = &funcInfo{name: "<global>", ret: t, globals: make(map[string]bool)}
	l.scopes = nil
	l.pushScope()

	defer func() {
		l.fn, l.scopes = savedFn, savedScopes
	}()

	return l.coerce(value, t)
}
