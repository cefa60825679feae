package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerFuncItem lowers a module level function into its items: a function,
// or for generators the state struct, its Iterator impl and the function
// creating it.
func (l *Lowerer) lowerFuncItem(fd *hir.FunctionDef) []rust.Item {
	sig := l.sigs()[fd.Name]
	if sig.generator {
		return l.lowerGenerator(fd)
	}

	saved := l.ctx.enterFunction()
	defer l.ctx.exitFunction(saved)

	l.fn = &funcInfo{
		name:    fd.Name,
		ret:     sig.ret,
		result:  sig.result,
		async:   sig.async,
		globals: make(map[string]bool),
	}
	defer func() { l.fn = nil }()

	fn := &rust.Fn{
		Doc:   fd.Docstring,
		Async: sig.async,
		Name:  l.fnName(fd.Name),
		Ret:   l.returnType(sig.ret, sig.result),
	}

	fn.Params, fn.Body = l.lowerFuncBody(fd, sig)

	l.ctx.Tracer.Record(trace.Ownership, fd.Name, rust.TypeString(orUnit(fn.Ret)), nil, 0.9, fd.Span())
	return []rust.Item{fn}
}

func orUnit(t rust.Type) rust.Type {
	if t == nil {
		return rust.TUnit()
	}

	return t
}

// lowerFuncBody lowers the parameters and body of a function or method
// whose funcInfo is already installed.
func (l *Lowerer) lowerFuncBody(fd *hir.FunctionDef, sig *signature) ([]rust.Param, *rust.Block) {
	l.scopes = nil
	l.tries = nil
	l.loops = nil
	l.pushScope()
	defer l.popScope()

	if sig.ret.Is(hir.TGeneric) && sig.ret.Name == "Iterator" {
		l.ctx.ReturnsImplIterator = true
	}

	l.bindParams(sig)
	l.analyzeBody(fd.Body, sig)
	l.prepareBody(fd.Body)

	params := make([]rust.Param, len(sig.params))
	for i, p := range sig.params {
		params[i] = rust.Param{
			Pat: &rust.IdentPat{Name: rust.SafeIdent(p.Name), Mut: l.ctx.MutableVars[p.Name] && sig.borrows[i] != BorrowMut},
			Ty:  l.paramType(sig.types[i], sig.borrows[i]),
		}
	}

	return params, l.lowerFnBlock(fd.Body)
}

// bindParams declares the parameters of sig in the current scope.
func (l *Lowerer) bindParams(sig *signature) {
	for i, p := range sig.params {
		t := sig.types[i]
		l.declare(p.Name)
		l.ctx.SetVarType(p.Name, t)

		switch sig.borrows[i] {
		case BorrowShared, BorrowStr:
			l.ctx.RefVars[p.Name] = true
		case BorrowMut:
			l.ctx.RefVars[p.Name] = true
			if t.Is(hir.TOptional) {
				l.ctx.MutOptionParams[p.Name] = true
				if t.Inner().Is(hir.TDict) {
					l.ctx.MutOptionDictParams[p.Name] = true
				}
			}
		}

		if t.IsCustom(typeArgs) {
			l.ctx.InCmdHandler = true
		}

		if t.Is(hir.TGeneric) && t.Name == "Iterator" {
			l.ctx.IteratorVars[p.Name] = true
		}
	}
}

// lowerFnBlock lowers a function body.  A final return becomes the tail
// expression and a body that falls off its end yields the value Python
// would return.
func (l *Lowerer) lowerFnBlock(body []hir.Stmt) *rust.Block {
	stmts := l.lowerStmts(body)
	block := rust.BlockOf(nil, stmts...)

	if n := len(stmts); n > 0 {
		if es, ok := stmts[n-1].(*rust.ExprStmt); ok {
			if ret, ok := es.X.(*rust.Return); ok {
				block.Stmts = stmts[:n-1]
				if ret.X != nil {
					block.Tail = ret.X
				} else if len(block.Stmts) == 0 && !l.fn.result {
					block.Stmts = nil
				}
				return block
			}
		}
	}

	if alwaysReturns(body) {
		return block
	}

	fn := l.fn
	switch {
	case fn.ret.Is(hir.TOptional):
		block.Tail = rust.NoneVal()
	case IsDyn(fn.ret):
		l.ctx.Need(prelude.ValueEnum)
		block.Tail = rust.P("DepylerValue::None")
	case fn.ret.IsUnknown() || fn.ret.Is(hir.TNone):
	default:
		block.Tail = rust.MacroCall("panic", rust.Str(fn.name+"() returned without a value"))
		if fn.result {
			return block
		}
	}

	if fn.result {
		if block.Tail == nil {
			block.Tail = rust.Unit()
		}
		block.Tail = rust.CallPath("Ok", block.Tail)
	}

	return block
}

// alwaysReturns tests whether every path through stmts leaves the function.
func alwaysReturns(stmts []hir.Stmt) bool {
	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *hir.Return, *hir.Raise:
			return true
		case *hir.If:
			if len(v.Orelse) > 0 && alwaysReturns(v.Body) && alwaysReturns(v.Orelse) {
				return true
			}
		case *hir.While:
			if b, ok := v.Test.(*hir.BoolLit); ok && b.Value && !containsBreak(v.Body) {
				return true
			}
		case *hir.With:
			if alwaysReturns(v.Body) {
				return true
			}
		case *hir.Try:
			if alwaysReturns(v.Finally) {
				return true
			}

			all := alwaysReturns(append(v.Body[:len(v.Body):len(v.Body)], v.Orelse...))
			for _, h := range v.Handlers {
				all = all && alwaysReturns(h.Body)
			}
			if all {
				return true
			}
		}
	}

	return false
}

// containsBreak tests whether a loop body breaks out of the loop itself.
func containsBreak(body []hir.Stmt) bool {
	found := false
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		switch s.(type) {
		case *hir.Break:
			found = true
		case *hir.While, *hir.For:
			return false
		}
		return !found
	}, nil)

	return found
}

// -----------------------------------------------------------------------------

// prepareBody records the types of the locals of a body before it is
// lowered.  Variables that hold None on some path become optional.
func (l *Lowerer) prepareBody(body []hir.Stmt) {
	l.scanTypes(body)

	merged := make(map[string]*hir.Type)
	var order []string
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		a, ok := s.(*hir.Assign)
		if !ok {
			return true
		}

		v, ok := a.Target.(*hir.Var)
		if !ok || l.genFields[v.Name] {
			return true
		}

		if _, seen := merged[v.Name]; !seen {
			order = append(order, v.Name)
		}
		merged[v.Name] = unify(merged[v.Name], l.declaredType(a))
		return true
	}, nil)

	for _, name := range order {
		t := merged[name]
		old := l.ctx.VarTypes[name]

		switch {
		case t.Is(hir.TNone):
			if !old.Is(hir.TOptional) {
				l.ctx.VarTypes[name] = hir.OptionalOf(dynType)
			}
		case t.Is(hir.TOptional) && !old.Is(hir.TOptional):
			if _, global := l.ctx.Globals[name]; global && l.fn != nil && !l.fn.topLevel {
				continue
			}
			l.ctx.VarTypes[name] = t
			l.ctx.Tracer.Record(trace.TypeMapping, name, t.Repr(), []string{old.Repr()}, 0.8, nil)
		}
	}
}

// -----------------------------------------------------------------------------

// lowerNestedFunc lowers a function defined inside another function into a
// closure bound to a local.
func (l *Lowerer) lowerNestedFunc(fd *hir.FunctionDef) []rust.Stmt {
	if hir.ContainsYield(fd.Body) {
		l.fail(fd, "nested generators are not supported")
	}

	recursive := false
	hir.InspectStmts(fd.Body, nil, func(e hir.Expr) bool {
		if c, ok := e.(*hir.Call); ok && c.Func == fd.Name {
			recursive = true
		}
		return !recursive
	})
	if recursive {
		l.fail(fd, "recursive nested function %s cannot become a closure", fd.Name)
	}

	savedFn, savedTries, savedLoops := l.fn, l.tries, l.loops
	savedTypes := make(map[string]*hir.Type)
	for _, p := range fd.Params {
		savedTypes[p.Name] = l.ctx.VarTypes[p.Name]
	}

	l.pushScope()

	types := make([]*hir.Type, len(fd.Params))
	cps := make([]rust.ClosureParam, len(fd.Params))
	for i, p := range fd.Params {
		t := l.inferParamType(fd, p)
		types[i] = t
		delete(l.ctx.VarTypes, p.Name)
		l.ctx.SetVarType(p.Name, t)
		l.declare(p.Name)
		cps[i] = rust.ClosureParam{Pat: rust.Pat(rust.SafeIdent(p.Name)), Ty: l.rustType(t)}
	}

	ret := fd.Ret
	if ret == nil {
		ret = l.inferReturn(fd.Body)
	}

	l.fn = &funcInfo{name: fd.Name, ret: ret, globals: make(map[string]bool)}
	l.tries, l.loops = nil, nil

	mf := l.mutationFacts(fd.Body)
	for name, n := range mf.assigns {
		if n >= 2 {
			l.ctx.MutableVars[name] = true
		}
	}
	for name := range mf.mutated {
		l.ctx.MutableVars[name] = true
	}

	body := l.lowerFnBlock(fd.Body)

	l.popScope()
	l.fn, l.tries, l.loops = savedFn, savedTries, savedLoops
	for name, t := range savedTypes {
		if t == nil {
			delete(l.ctx.VarTypes, name)
		} else {
			l.ctx.VarTypes[name] = t
		}
	}

	// closures that modify captured locals are FnMut
	mut := false
	for name := range mf.mutated {
		if l.isDeclared(name) {
			mut = true
		}
	}

	closure := &rust.Closure{Params: cps, Body: body}
	if !ret.Is(hir.TNone) && !ret.IsUnknown() {
		closure.Ret = l.rustType(ret)
	}

	l.declare(fd.Name)
	l.ctx.VarTypes[fd.Name] = hir.FuncOf(types, ret)

	return []rust.Stmt{rust.LetName(rust.SafeIdent(fd.Name), mut, nil, closure)}
}
