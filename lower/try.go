package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// innerTry returns the index of the innermost try statement whose body is
// being lowered or -1.
func (l *Lowerer) innerTry() int {
	for i := len(l.tries) - 1; i >= 0; i-- {
		if l.tries[i].inBody {
			return i
		}
	}

	return -1
}

// fallible unwraps the Result x.  Inside a try body the error is caught,
// in functions returning Result it propagates and elsewhere it panics with
// msg.
func (l *Lowerer) fallible(x rust.Expr, msg string) rust.Expr {
	if l.rawResult {
		l.rawResult = false
		return x
	}

	if i := l.innerTry(); i >= 0 {
		l.ctx.Need(prelude.Exceptions)
		caught := rust.BlockOf(nil, l.catchStmts(i, rust.CallPath("PyException::from", rust.Id("e")))...)
		return &rust.Match{Scrut: x, Arms: []rust.Arm{
			{Pat: &rust.TupleStructPat{Path: "Ok", Elems: []rust.Pattern{rust.Pat("v")}}, Body: rust.Id("v")},
			{Pat: &rust.TupleStructPat{Path: "Err", Elems: []rust.Pattern{rust.Pat("e")}}, Body: caught},
		}}
	}

	if l.fn != nil && l.fn.result {
		return &rust.Try{X: x}
	}

	return rust.M(x, "expect", rust.Str(msg))
}

// catchStmts stores exc in the error slot of the try at index i and leaves
// its body, running the finally bodies of the tries nested inside it.
func (l *Lowerer) catchStmts(i int, exc rust.Expr) []rust.Stmt {
	t := l.tries[i]

	stmts := l.runFinally(i + 1)
	return append(stmts,
		rust.Semi(&rust.Assign{Op: "=", Left: rust.Id(t.errVar), Right: rust.Some(exc)}),
		rust.Semi(&rust.Break{Label: t.label}),
	)
}

// runFinally lowers the finally bodies of the tries from index from
// outward, innermost first.  Each body is lowered outside of its own try.
func (l *Lowerer) runFinally(from int) []rust.Stmt {
	var stmts []rust.Stmt

	saved := l.tries
	for i := len(saved) - 1; i >= from; i-- {
		if len(saved[i].finally) == 0 {
			continue
		}

		l.tries = saved[:i]
		stmts = append(stmts, l.lowerScoped(saved[i].finally)...)
	}
	l.tries = saved

	return stmts
}

// raiseValue lowers the raising of the PyException exc.
func (l *Lowerer) raiseValue(exc rust.Expr) rust.Expr {
	l.ctx.Need(prelude.Exceptions)

	if i := l.innerTry(); i >= 0 {
		return rust.BlockOf(nil, l.catchStmts(i, exc)...)
	}

	stmts := l.runFinally(0)
	if l.fn != nil && l.fn.result {
		ret := &rust.Return{X: rust.CallPath("Err", rust.CallPath("Box::new", exc))}
		if len(stmts) == 0 {
			return ret
		}
		return rust.BlockOf(nil, append(stmts, rust.Semi(ret))...)
	}

	panicking := rust.MacroCall("panic", rust.Str("{}"), exc)
	if len(stmts) == 0 {
		return panicking
	}
	return rust.BlockOf(nil, append(stmts, rust.Semi(panicking))...)
}

// lowerRaise lowers a raise statement.
func (l *Lowerer) lowerRaise(r *hir.Raise) []rust.Stmt {
	if r.Exc == nil {
		for i := len(l.tries) - 1; i >= 0; i-- {
			if l.tries[i].excVar != "" {
				return []rust.Stmt{rust.Semi(l.raiseValue(rust.Id(l.tries[i].excVar)))}
			}
		}
		l.fail(r, "bare raise outside of an except clause")
	}

	kind := exceptionKind(r.Exc)
	if kind == "StopIteration" && (l.ctx.InIteratorNext || l.ctx.InGenerator) {
		return []rust.Stmt{rust.Semi(&rust.Return{X: rust.NoneVal()})}
	}

	var exc rust.Expr
	switch v := r.Exc.(type) {
	case *hir.Var:
		if kind != "" {
			l.ctx.Need(prelude.Exceptions)
			exc = rust.CallPath("PyException::new", rust.Str(kind), rust.Str(""))
		} else {
			exc = rust.Clone(l.lowerExpr(v))
		}
	default:
		exc = l.lowerExpr(r.Exc)
	}

	l.ctx.Tracer.Record(trace.ErrorHandling, "raise "+kind, l.raiseStrategy(), []string{"result", "panic", "catch"}, 1, r.Span())
	return []rust.Stmt{rust.Semi(l.raiseValue(exc))}
}

func (l *Lowerer) raiseStrategy() string {
	switch {
	case l.innerTry() >= 0:
		return "catch"
	case l.fn != nil && l.fn.result:
		return "result"
	}

	return "panic"
}

// exceptionKind returns the exception class raised by e or "".
func exceptionKind(e hir.Expr) string {
	switch v := e.(type) {
	case *hir.Call:
		return v.Func
	case *hir.Var:
		if isBuiltinException(v.Name) || v.Name == "StopIteration" {
			return v.Name
		}
	}

	return ""
}

// -----------------------------------------------------------------------------

// lowerTry lowers a try statement.  A body made of one fallible call is
// matched directly; other bodies run in a labelled block that exceptions
// break out of.
func (l *Lowerer) lowerTry(t *hir.Try) []rust.Stmt {
	if stmts, ok := l.lowerTryMatch(t); ok {
		return stmts
	}

	l.ctx.Need(prelude.Exceptions)

	label := l.getTempName("try")
	info := &tryInfo{
		label:   label,
		errVar:  l.getTempName("err"),
		finally: t.Finally,
		inBody:  true,
	}

	stmts := []rust.Stmt{
		rust.LetName(info.errVar, true, rust.T("Option", rust.T("PyException")), rust.NoneVal()),
	}

	l.tries = append(l.tries, info)
	body := l.lowerScoped(t.Body)
	info.inBody = false

	stmts = append(stmts, &rust.ExprStmt{X: &rust.Block{Label: label, Stmts: body}})

	handlers := l.lowerHandlers(t.Handlers, info)
	l.tries = l.tries[:len(l.tries)-1]

	var orelse *rust.Block
	if len(t.Orelse) > 0 {
		orelse = rust.BlockOf(nil, l.lowerScoped(t.Orelse)...)
	}

	if handlers != nil {
		stmts = append(stmts, &rust.ExprStmt{X: &rust.IfLet{
			Pat:   &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{rust.Pat("exc_value")}},
			Scrut: rust.Id(info.errVar),
			Then:  handlers,
			Else:  blockOrNil(orelse),
		}})
	} else if orelse != nil {
		stmts = append(stmts, &rust.ExprStmt{X: &rust.If{Cond: rust.M(rust.Id(info.errVar), "is_none"), Then: orelse}})
	}

	stmts = append(stmts, l.lowerScoped(t.Finally)...)

	// a try without handlers reraises after its finally body
	if handlers == nil {
		reraise := l.raiseValue(rust.Id("exc"))
		stmts = append(stmts, &rust.ExprStmt{X: &rust.IfLet{
			Pat:   &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{rust.Pat("exc")}},
			Scrut: rust.Id(info.errVar),
			Then:  asBlock(reraise),
		}})
	}

	return stmts
}

// lowerHandlers lowers the except clauses of a try into an if chain over
// the caught exception.  Unmatched exceptions propagate.
func (l *Lowerer) lowerHandlers(handlers []*hir.Handler, info *tryInfo) *rust.Block {
	if len(handlers) == 0 {
		return nil
	}

	exc := "exc_" + info.label
	info.excVar = exc

	var chain rust.Expr
	var tail *rust.If
	for _, h := range handlers {
		l.pushScope()
		var stmts []rust.Stmt
		if h.Name != "" {
			l.declare(h.Name)
			l.ctx.SetVarType(h.Name, hir.CustomOf(typeException))
			stmts = append(stmts, rust.LetName(rust.SafeIdent(h.Name), false, nil, rust.Clone(rust.Id(exc))))
		}
		stmts = append(stmts, l.lowerStmts(h.Body)...)
		l.popScope()

		body := rust.BlockOf(nil, stmts...)
		if len(h.Types) == 0 || containsName(h.Types, "Exception") || containsName(h.Types, "BaseException") {
			if tail == nil {
				return wrapHandler(exc, body)
			}
			tail.Else = body
			return wrapHandler(exc, chain)
		}

		var cond rust.Expr
		for _, kind := range l.exceptionKinds(h.Types) {
			test := rust.M(rust.Id(exc), "is", rust.Str(kind))
			if cond == nil {
				cond = test
			} else {
				cond = rust.Bin("||", cond, test)
			}
		}

		next := &rust.If{Cond: cond, Then: body}
		if tail == nil {
			chain = next
		} else {
			tail.Else = next
		}
		tail = next
	}

	info.excVar = exc
	tail.Else = asBlock(l.raiseValue(rust.Id(exc)))
	return wrapHandler(exc, chain)
}

// exceptionKinds extends the handled exception kinds with the user
// exception classes deriving from them.
func (l *Lowerer) exceptionKinds(kinds []string) []string {
	out := append([]string(nil), kinds...)
	for _, ci := range l.classOrder {
		for base := l.ctx.ExceptionClasses[ci.name]; base != ""; base = l.ctx.ExceptionClasses[base] {
			if containsName(kinds, base) && !containsName(out, ci.name) {
				out = append(out, ci.name)
				break
			}
			if base == ci.name {
				break
			}
		}
	}

	return out
}

// wrapHandler binds the handler exception name used by the if chain.
func wrapHandler(exc string, chain rust.Expr) *rust.Block {
	return rust.BlockOf(nil, rust.LetName(exc, false, nil, rust.Id("exc_value")), &rust.ExprStmt{X: chain})
}

// lowerTryMatch lowers a try whose body is one statement evaluating a
// single fallible call into a match on its Result.
func (l *Lowerer) lowerTryMatch(t *hir.Try) ([]rust.Stmt, bool) {
	if len(t.Body) != 1 || len(t.Finally) > 0 || len(t.Handlers) == 0 {
		return nil, false
	}

	var call hir.Expr
	var target *hir.Var
	switch v := t.Body[0].(type) {
	case *hir.ExprStmt:
		call = v.Value
	case *hir.Assign:
		tv, ok := v.Target.(*hir.Var)
		if !ok || v.Annot != nil {
			return nil, false
		}
		call, target = v.Value, tv
	default:
		return nil, false
	}

	if !l.isFallibleCall(call) || hir.ExprContains(argsOf(call), l.isFallibleCall) {
		return nil, false
	}

	for _, h := range t.Handlers {
		if h.Name != "" {
			return nil, false
		}
	}

	l.ctx.Need(prelude.Exceptions)
	l.ctx.Tracer.Record(trace.ErrorHandling, "try", "match-result", []string{"labelled-block"}, 0.9, t.Span())

	l.rawResult = true
	scrut := l.lowerExpr(call)
	l.rawResult = false

	var okStmts []rust.Stmt
	if target != nil {
		l.ctx.SetVarType(target.Name, l.exprType(call))
		if l.isDeclared(target.Name) {
			okStmts = append(okStmts, rust.Semi(&rust.Assign{Op: "=", Left: l.lowerExpr(target), Right: rust.Id("v")}))
		} else {
			// a hoisted name is declared by the caller; a fresh name only
			// lives in the arm
			l.declare(target.Name)
			okStmts = append(okStmts, rust.LetName(rust.SafeIdent(target.Name), l.ctx.MutableVars[target.Name], nil, rust.Id("v")))
		}
	}
	okStmts = append(okStmts, l.lowerScoped(t.Orelse)...)

	info := &tryInfo{label: l.getTempName("try")}
	l.tries = append(l.tries, info)
	handlers := l.lowerHandlers(t.Handlers, info)
	l.tries = l.tries[:len(l.tries)-1]

	errArm := rust.BlockOf(nil,
		rust.LetName("exc_value", false, nil, rust.CallPath("PyException::from", rust.Id("e"))),
		&rust.ExprStmt{X: handlers},
	)

	return []rust.Stmt{&rust.ExprStmt{X: &rust.Match{Scrut: scrut, Arms: []rust.Arm{
		{Pat: &rust.TupleStructPat{Path: "Ok", Elems: []rust.Pattern{patOrWild(target != nil, "v")}}, Body: rust.BlockOf(nil, okStmts...)},
		{Pat: &rust.TupleStructPat{Path: "Err", Elems: []rust.Pattern{rust.Pat("e")}}, Body: errArm},
	}}}}, true
}

// isFallibleCall tests whether e is a call lowered to a Result.
func (l *Lowerer) isFallibleCall(e hir.Expr) bool {
	c, ok := e.(*hir.Call)
	if !ok {
		return false
	}

	if sig, ok := l.sigs()[c.Func]; ok && !l.isDeclared(c.Func) {
		return sig.result
	}

	switch c.Func {
	case "int", "float":
		return len(c.Args) > 0 && l.exprType(c.Args[0]).Is(hir.TString) && !l.isCharVar(c.Args[0])
	case "open":
		return true
	}

	return false
}

// argsOf returns a tuple of the arguments of a call for inspection.
func argsOf(e hir.Expr) hir.Expr {
	c := e.(*hir.Call)
	elems := append([]hir.Expr(nil), c.Args...)
	for _, kw := range c.Kwargs {
		elems = append(elems, kw.Value)
	}

	return hir.NewTuple(elems...)
}

func patOrWild(bind bool, name string) rust.Pattern {
	if bind {
		return rust.Pat(name)
	}

	return &rust.WildPat{}
}

func blockOrNil(b *rust.Block) rust.Expr {
	if b == nil {
		return nil
	}

	return b
}

// asBlock wraps an expression as a block unless it already is one.
func asBlock(x rust.Expr) *rust.Block {
	if b, ok := x.(*rust.Block); ok {
		return b
	}

	return rust.BlockOf(nil, rust.Semi(x))
}
