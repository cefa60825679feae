package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
)

// enterLoop pushes a loop onto the loop stack.  Loops whose body contains a
// try statement are labelled: the try body is a labelled block which an
// unlabelled break cannot leave.
func (l *Lowerer) enterLoop(body []hir.Stmt, hasElse bool) *loopInfo {
	info := &loopInfo{tryDepth: len(l.tries)}

	if containsTry(body) {
		info.label = l.getTempName("loop")
	}

	if hasElse {
		info.brokeFlag = l.getTempName("broke")
	}

	l.loops = append(l.loops, info)
	return info
}

func (l *Lowerer) exitLoop() {
	l.loops = l.loops[:len(l.loops)-1]
}

// containsTry tests whether a loop body holds a try statement outside of
// nested loops.
func containsTry(body []hir.Stmt) bool {
	found := false
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		switch s.(type) {
		case *hir.Try:
			found = true
		case *hir.While, *hir.For:
			return false
		}
		return !found
	}, nil)

	return found
}

// lowerBreak lowers a break statement.  The finally bodies of tries entered
// since the loop run first.
func (l *Lowerer) lowerBreak(b *hir.Break) []rust.Stmt {
	if len(l.loops) == 0 {
		l.fail(b, "break outside of a loop")
	}

	loop := l.loops[len(l.loops)-1]
	stmts := l.runFinally(loop.tryDepth)
	if loop.onBreak != nil {
		return append(stmts, loop.onBreak...)
	}

	if loop.brokeFlag != "" {
		stmts = append(stmts, rust.Semi(&rust.Assign{Op: "=", Left: rust.Id(loop.brokeFlag), Right: rust.Bool(true)}))
	}

	return append(stmts, rust.Semi(&rust.Break{Label: loop.label}))
}

// lowerContinue lowers a continue statement.
func (l *Lowerer) lowerContinue(c *hir.Continue) []rust.Stmt {
	if len(l.loops) == 0 {
		l.fail(c, "continue outside of a loop")
	}

	loop := l.loops[len(l.loops)-1]
	stmts := l.runFinally(loop.tryDepth)
	if loop.onContinue != nil {
		return append(stmts, loop.onContinue...)
	}

	return append(stmts, rust.Semi(&rust.Continue{Label: loop.label}))
}

// -----------------------------------------------------------------------------

// lowerWhile lowers a while loop.  `while True` becomes `loop`.
func (l *Lowerer) lowerWhile(w *hir.While) []rust.Stmt {
	info := l.enterLoop(w.Body, false)
	body := l.lowerBlock(w.Body)
	l.exitLoop()

	if b, ok := w.Test.(*hir.BoolLit); ok && b.Value {
		return []rust.Stmt{&rust.ExprStmt{X: &rust.Loop{Label: info.label, Body: body}}}
	}

	return []rust.Stmt{&rust.ExprStmt{X: &rust.While{Label: info.label, Cond: l.truthy(w.Test), Body: body}}}
}

// lowerFor lowers a for loop.  The else clause runs when the loop was not
// left by break.
func (l *Lowerer) lowerFor(f *hir.For) []rust.Stmt {
	elem := l.iterElemType(f.Iter)
	iter, chars := l.loopIter(f.Iter)

	info := l.enterLoop(f.Body, len(f.Orelse) > 0)

	l.pushScope()
	names := hir.TargetNames(f.Target)
	savedChars := make(map[string]bool, len(names))
	for _, name := range names {
		savedChars[name] = l.ctx.CharIterVars[name]
		l.declare(name)
	}

	if chars {
		l.ctx.CharIterVars[names[0]] = true
		l.ctx.SetVarType(names[0], hir.Str)
	} else {
		l.bindTarget(f.Target, elem)
		for _, name := range names {
			delete(l.ctx.CharIterVars, name)
		}
	}

	pat := l.loopPattern(f.Target)
	body := rust.BlockOf(nil, l.lowerStmts(f.Body)...)
	l.popScope()
	l.exitLoop()

	for name, was := range savedChars {
		if was {
			l.ctx.CharIterVars[name] = true
		} else {
			delete(l.ctx.CharIterVars, name)
		}
	}

	loop := &rust.ExprStmt{X: &rust.For{Label: info.label, Pat: pat, Iter: iter, Body: body}}
	if info.brokeFlag == "" {
		return []rust.Stmt{loop}
	}

	return []rust.Stmt{
		rust.LetName(info.brokeFlag, true, nil, rust.Bool(false)),
		loop,
		&rust.ExprStmt{X: &rust.If{Cond: rust.Not(rust.Id(info.brokeFlag)), Then: l.lowerBlock(f.Orelse)}},
	}
}

// loopPattern builds the pattern a for loop binds its target with.
func (l *Lowerer) loopPattern(target hir.Expr) rust.Pattern {
	switch v := target.(type) {
	case *hir.Var:
		return &rust.IdentPat{Name: rust.SafeIdent(v.Name), Mut: l.ctx.MutableVars[v.Name]}
	case *hir.TupleExpr:
		elems := make([]rust.Pattern, len(v.Elems))
		for i, elem := range v.Elems {
			elems[i] = l.loopPattern(elem)
		}
		return &rust.TuplePat{Elems: elems}
	case *hir.ListExpr:
		elems := make([]rust.Pattern, len(v.Elems))
		for i, elem := range v.Elems {
			elems[i] = l.loopPattern(elem)
		}
		return &rust.TuplePat{Elems: elems}
	}

	l.fail(target, "unsupported loop target")
	return nil
}

// loopIter lowers the iterable of a for loop.  Strings are iterated by char
// and the loop variable is marked as a char.
func (l *Lowerer) loopIter(iter hir.Expr) (rust.Expr, bool) {
	t := l.exprType(iter)
	if t.Is(hir.TString) && !l.isCharVar(iter) {
		return rust.M(l.lowerExpr(iter), "chars"), true
	}

	if c, ok := iter.(*hir.Call); ok && c.Func == "range" && !l.isDeclared("range") {
		return l.lowerRange(c), false
	}

	return l.iterOf(iter), false
}

// -----------------------------------------------------------------------------

// iterOf lowers e into an iterator over owned items.
func (l *Lowerer) iterOf(e hir.Expr) rust.Expr {
	switch v := e.(type) {
	case *hir.Call:
		switch v.Func {
		case "range":
			return l.lowerRange(v)
		case "enumerate", "zip", "map", "filter", "iter":
			return l.lowerExpr(v)
		case "reversed":
			if len(v.Args) == 1 {
				return rust.M(l.iterOf(v.Args[0]), "rev")
			}
		case "open":
			l.ctx.Need(prelude.BufRead)
			return l.fileLines(l.lowerExpr(v))
		}

		if sig, ok := l.sigs()[v.Func]; ok && sig.generator {
			return l.lowerExpr(v)
		}
	case *hir.Comprehension:
		if v.Kind == hir.CompGenerator {
			return l.lowerExpr(v)
		}
	case *hir.MethodCall:
		if x := l.dictViewIter(v); x != nil {
			return x
		}
	case *hir.Var:
		switch {
		case l.ctx.IteratorVars[v.Name]:
			return l.lowerExpr(v)
		case l.ctx.FileVars[v.Name]:
			l.ctx.Need(prelude.BufRead)
			return l.fileLines(rust.Borrow(l.lowerExpr(v)))
		case l.ctx.CSVReaderVars[v.Name]:
			return l.csvRecords(v)
		}
	case *hir.ListExpr, *hir.TupleExpr, *hir.SetExpr:
		return rust.M(l.lowerExpr(e), "into_iter")
	}

	t := l.exprType(e)
	x := l.lowerExpr(e)
	switch {
	case t.Is(hir.TString):
		if l.isCharVar(e) {
			return rust.M(rust.ToString(x), "chars")
		}
		return rust.M(rust.M(x, "chars"), "map", rust.Lambda(false, []string{"c"}, rust.ToString(rust.Id("c"))))
	case t.Is(hir.TDict):
		return rust.M(rust.M(x, "keys"), "cloned")
	case IsDyn(t):
		return rust.M(x, "iter")
	case t.IsCustom(typeJSON):
		l.ctx.Need(prelude.SerdeJSON)
		// anything but an array iterates as empty
		return rust.M(rust.M(rust.M(rust.M(x, "as_array"), "cloned"), "unwrap_or_default"), "into_iter")
	case t.IsCustom(typeBytes):
		return rust.M(rust.M(rust.M(x, "iter"), "copied"), "map", rust.Lambda(false, []string{"b"}, rust.As(rust.Id("b"), rust.T("i64"))))
	case t.Is(hir.TGeneric) && t.Name == "Iterator":
		return x
	case t.Is(hir.TGeneric) && t.Name == "range":
		return rust.Clone(x)
	case t.Is(hir.TTuple):
		if elem := l.iterElemType(e); elem != nil {
			elems := make([]rust.Expr, len(t.Args))
			for i := range t.Args {
				elems[i] = rust.Fld(x, itoa(int64(i)))
			}
			return rust.M(&rust.Array{Elems: elems}, "into_iter")
		}
	}

	if elem := t.Elem(); elem.IsCopy() {
		return rust.M(rust.M(x, "iter"), "copied")
	}

	return rust.M(rust.M(x, "iter"), "cloned")
}

// dictViewIter lowers iteration over `d.items()`, `d.keys()` and
// `d.values()` or returns nil.
func (l *Lowerer) dictViewIter(mc *hir.MethodCall) rust.Expr {
	rt := l.exprType(mc.Recv)
	if !rt.Is(hir.TDict) && !IsDyn(rt) {
		return nil
	}

	recv := l.lowerExpr(mc.Recv)
	if IsDyn(rt) {
		switch mc.Method {
		case "items", "keys", "values":
			return rust.M(recv, mc.Method)
		}
		return nil
	}

	switch mc.Method {
	case "items":
		pat := &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("k"), rust.Pat("v")}}
		return rust.M(rust.M(recv, "iter"), "map", rust.ClosureOf(false, pat, &rust.Tuple{Elems: []rust.Expr{
			rust.Clone(rust.Id("k")), rust.Clone(rust.Id("v")),
		}}))
	case "keys", "values":
		return rust.M(rust.M(recv, mc.Method), "cloned")
	}

	return nil
}

// fileLines iterates the lines of an open file.
func (l *Lowerer) fileLines(file rust.Expr) rust.Expr {
	reader := rust.CallPath("std::io::BufReader::new", file)
	return rust.M(rust.M(reader, "lines"), "map", rust.Lambda(false, []string{"line"},
		rust.M(rust.Id("line"), "expect", rust.Str("failed to read line"))))
}

// collectVec lowers e into a new Vec.
func (l *Lowerer) collectVec(e hir.Expr) rust.Expr {
	t := l.exprType(e)
	if t.Is(hir.TList) {
		if _, ok := e.(*hir.Var); ok {
			return rust.Clone(l.lowerExpr(e))
		}
	}

	return &rust.MethodCall{
		Recv:      l.iterOf(e),
		Method:    "collect",
		Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})},
	}
}
