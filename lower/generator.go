package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// genLabel labels the dispatch loop of a generator's `next`.
const genLabel = "gen"

// genDone is the state of an exhausted generator.
const genDone = -1

// genCompiler spreads the body of a generator over the states of the
// dispatch loop in its Iterator impl.  Each yield ends a state: it stores
// the state to resume at and returns the value.
type genCompiler struct {
	l *Lowerer

	// states are the statements of each state.
	states [][]rust.Stmt

	// item is the type of the yielded values.
	item *hir.Type

	// iters are the boxed iterator fields of the loops spanning states.
	iters []genIter
}

type genIter struct {
	name string
	ty   rust.Type
}

func (g *genCompiler) newState() int {
	g.states = append(g.states, nil)
	return len(g.states) - 1
}

func stateValue(k int) rust.Expr {
	if k == genDone {
		return rust.P("usize::MAX")
	}

	return rust.Int(int64(k))
}

func setState(k int) rust.Stmt {
	return rust.Semi(&rust.Assign{Op: "=", Left: rust.Fld(rust.Id("self"), "state"), Right: stateValue(k)})
}

// jump moves to state k.
func (g *genCompiler) jump(k int) []rust.Stmt {
	return []rust.Stmt{setState(k), rust.Semi(&rust.Continue{Label: genLabel})}
}

func stmtYields(s hir.Stmt) bool {
	return hir.ContainsYield([]hir.Stmt{s})
}

// compileSeq compiles stmts followed by a move to state k and returns the
// state entering them.
func (g *genCompiler) compileSeq(stmts []hir.Stmt, k int) int {
	if len(stmts) == 0 {
		return k
	}

	i := 0
	for i < len(stmts) && !stmtYields(stmts[i]) {
		i++
	}

	if i == len(stmts) {
		id := g.newState()
		g.states[id] = append(g.l.lowerStmts(stmts), g.jump(k)...)
		return id
	}

	rest := g.compileSeq(stmts[i+1:], k)
	entry := g.compileStmt(stmts[i], rest)
	if i == 0 {
		return entry
	}

	id := g.newState()
	g.states[id] = append(g.l.lowerStmts(stmts[:i]), g.jump(entry)...)
	return id
}

// compileStmt compiles a statement containing a yield.
func (g *genCompiler) compileStmt(stmt hir.Stmt, k int) int {
	l := g.l

	switch v := stmt.(type) {
	case *hir.ExprStmt:
		y, ok := v.Value.(*hir.Yield)
		if !ok {
			break
		}

		var value rust.Expr
		if y.Value == nil {
			value = rust.CallPath("Default::default")
		} else {
			value = l.coerce(y.Value, g.item)
		}

		id := g.newState()
		g.states[id] = []rust.Stmt{setState(k), rust.Semi(&rust.Return{X: rust.Some(value)})}
		return id
	case *hir.If:
		then := g.compileSeq(v.Body, k)
		other := g.compileSeq(v.Orelse, k)

		id := g.newState()
		g.states[id] = []rust.Stmt{&rust.ExprStmt{X: &rust.If{
			Cond: l.truthy(v.Test),
			Then: rust.BlockOf(nil, g.jump(then)...),
			Else: rust.BlockOf(nil, g.jump(other)...),
		}}}
		return id
	case *hir.While:
		head := g.newState()
		body := g.compileLoopBody(v.Body, head, k)

		if b, ok := v.Test.(*hir.BoolLit); ok && b.Value {
			g.states[head] = g.jump(body)
		} else {
			g.states[head] = []rust.Stmt{&rust.ExprStmt{X: &rust.If{
				Cond: l.truthy(v.Test),
				Then: rust.BlockOf(nil, g.jump(body)...),
				Else: rust.BlockOf(nil, g.jump(k)...),
			}}}
		}
		return head
	case *hir.For:
		return g.compileFor(v, k)
	case *hir.Try:
		l.fail(v, "yield inside a try statement is not supported")
	case *hir.With:
		l.fail(v, "yield inside a with statement is not supported")
	}

	l.fail(stmt, "yield must be a statement of the generator body")
	return 0
}

// compileLoopBody compiles the body of a loop spanning states: continue
// moves to head and break to after.
func (g *genCompiler) compileLoopBody(body []hir.Stmt, head, after int) int {
	l := g.l
	l.loops = append(l.loops, &loopInfo{
		tryDepth:   len(l.tries),
		onBreak:    g.jump(after),
		onContinue: g.jump(head),
	})
	defer l.exitLoop()

	return g.compileSeq(body, head)
}

// compileFor compiles a for loop spanning states.  The iterator lives in a
// boxed field so that it survives between calls of `next`.
func (g *genCompiler) compileFor(f *hir.For, k int) int {
	l := g.l
	elem := l.iterElemType(f.Iter)
	if elem.IsUnknown() {
		elem = dynType
	}

	field := l.getTempName("iter")
	g.iters = append(g.iters, genIter{
		name: field,
		ty: rust.TBoxDyn(&rust.PathType{
			Name:  "Iterator",
			Assoc: []rust.AssocBinding{{Name: "Item", Ty: l.rustType(elem)}},
		}),
	})

	init := g.newState()
	head := g.newState()

	other := g.compileSeq(f.Orelse, k)
	body := g.compileLoopBody(f.Body, head, k)

	g.states[init] = append([]rust.Stmt{rust.Semi(&rust.Assign{
		Op:    "=",
		Left:  rust.Fld(rust.Id("self"), field),
		Right: rust.CallPath("Box::new", g.ownedIter(f.Iter)),
	})}, g.jump(head)...)

	var binds []rust.Stmt
	for _, name := range hir.TargetNames(f.Target) {
		ident := rust.SafeIdent(name)
		binds = append(binds, rust.Semi(&rust.Assign{Op: "=", Left: rust.Fld(rust.Id("self"), ident), Right: rust.Id(ident)}))
	}

	g.states[head] = []rust.Stmt{&rust.ExprStmt{X: &rust.Match{
		Scrut: rust.M(rust.Fld(rust.Id("self"), field), "next"),
		Arms: []rust.Arm{
			{
				Pat:  &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{genPattern(f.Target)}},
				Body: rust.BlockOf(nil, append(binds, g.jump(body)...)...),
			},
			{
				Pat:  &rust.PathPat{Path: "None"},
				Body: rust.BlockOf(nil, g.jump(other)...),
			},
		},
	}}}

	return init
}

// genPattern binds the names of a loop target to plain locals.
func genPattern(target hir.Expr) rust.Pattern {
	switch v := target.(type) {
	case *hir.TupleExpr:
		elems := make([]rust.Pattern, len(v.Elems))
		for i, elem := range v.Elems {
			elems[i] = genPattern(elem)
		}
		return &rust.TuplePat{Elems: elems}
	case *hir.ListExpr:
		elems := make([]rust.Pattern, len(v.Elems))
		for i, elem := range v.Elems {
			elems[i] = genPattern(elem)
		}
		return &rust.TuplePat{Elems: elems}
	case *hir.Var:
		return rust.Pat(rust.SafeIdent(v.Name))
	}

	return &rust.WildPat{}
}

// ownedIter lowers the iterable of a loop spanning states into an iterator
// that borrows nothing from the generator.
func (g *genCompiler) ownedIter(e hir.Expr) rust.Expr {
	l := g.l
	switch v := e.(type) {
	case *hir.Call:
		if v.Func == "range" {
			return l.lowerRange(v)
		}
		if sig, ok := l.sigs()[v.Func]; ok && sig.generator {
			return l.lowerExpr(v)
		}
	case *hir.ListExpr, *hir.TupleExpr, *hir.SetExpr:
		return l.iterOf(e)
	}

	return rust.M(l.collectVec(e), "into_iter")
}

// -----------------------------------------------------------------------------

// generatorFields returns the locals of a generator that become fields of
// its state struct: the parameters and every assigned name.  Names only
// bound by loops, with statements and handlers that do not yield stay
// locals.
func (l *Lowerer) generatorFields(fd *hir.FunctionDef, sig *signature) []string {
	var fields []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}

	for _, p := range sig.params {
		add(p.Name)
	}

	locals := make(map[string]bool)
	hir.InspectStmts(fd.Body, func(s hir.Stmt) bool {
		switch v := s.(type) {
		case *hir.Assign:
			for _, name := range hir.TargetNames(v.Target) {
				add(name)
			}
		case *hir.AugAssign:
			for _, name := range hir.TargetNames(v.Target) {
				add(name)
			}
		case *hir.For:
			for _, name := range hir.TargetNames(v.Target) {
				if stmtYields(v) {
					add(name)
				} else {
					locals[name] = true
				}
			}
		case *hir.With:
			for _, item := range v.Items {
				if item.Name != "" {
					locals[item.Name] = true
				}
			}
		case *hir.Try:
			for _, h := range v.Handlers {
				if h.Name != "" {
					locals[h.Name] = true
				}
			}
		}
		return true
	}, nil)

	for name := range locals {
		if seen[name] {
			l.fail(fd, "generator local %s is bound both by a loop and an assignment", name)
		}
	}

	return fields
}

// lowerGenerator lowers a generator function into a state struct, its
// Iterator impl and the function creating it.
func (l *Lowerer) lowerGenerator(fd *hir.FunctionDef) []rust.Item {
	sig := l.sigs()[fd.Name]

	saved := l.ctx.enterFunction()
	defer l.ctx.exitFunction(saved)

	l.fn = &funcInfo{name: fd.Name, ret: sig.ret, globals: make(map[string]bool)}
	defer func() { l.fn = nil }()

	l.scopes = nil
	l.tries, l.loops = nil, nil
	l.pushScope()
	defer l.popScope()

	l.bindParams(sig)
	l.analyzeBody(fd.Body, sig)
	l.prepareBody(fd.Body)

	names := l.generatorFields(fd, sig)
	l.genFields = make(map[string]bool, len(names))
	for _, name := range names {
		l.genFields[name] = true
	}
	defer func() { l.genFields = nil }()

	l.ctx.InGenerator = true

	item := sig.ret.Elem()
	if item.IsUnknown() {
		item = dynType
	}

	g := &genCompiler{l: l, item: item}
	entry := g.compileSeq(fd.Body, genDone)

	stateName := rust.CamelCase(fd.Name) + "State"

	st := &rust.Struct{Pub: true, Name: stateName, Fields: []rust.StructField{{Name: "state", Ty: rust.T("usize")}}}
	lit := &rust.StructLit{Name: stateName, Fields: []rust.FieldInit{{Name: "state", Value: stateValue(entry)}}}

	params := make(map[string]int, len(sig.params))
	for i, p := range sig.params {
		params[p.Name] = i
	}

	for _, name := range names {
		t := l.varType(name)
		if t.IsUnknown() {
			t = dynType
		}

		ident := rust.SafeIdent(name)
		st.Fields = append(st.Fields, rust.StructField{Name: ident, Ty: l.fieldType(t)})

		if _, ok := params[name]; ok {
			lit.Fields = append(lit.Fields, rust.FieldInit{Name: ident, Value: rust.Id(ident)})
			continue
		}

		if !l.defaultable(t) {
			l.fail(fd, "generator local %s has no default value", name)
		}
		lit.Fields = append(lit.Fields, rust.FieldInit{Name: ident, Value: rust.CallPath("Default::default")})
	}

	for _, it := range g.iters {
		st.Fields = append(st.Fields, rust.StructField{Name: it.name, Ty: it.ty})
		lit.Fields = append(lit.Fields, rust.FieldInit{Name: it.name, Value: rust.CallPath("Box::new", rust.CallPath("std::iter::empty"))})
	}

	arms := make([]rust.Arm, 0, len(g.states)+1)
	for id, stmts := range g.states {
		arms = append(arms, rust.Arm{Pat: &rust.LitPat{Lit: rust.Int(int64(id))}, Body: rust.BlockOf(nil, stmts...)})
	}
	arms = append(arms, rust.Arm{Pat: &rust.WildPat{}, Body: &rust.Return{X: rust.NoneVal()}})

	dispatch := &rust.Loop{
		Label: genLabel,
		Body:  rust.BlockOf(nil, &rust.ExprStmt{X: &rust.Match{Scrut: rust.Fld(rust.Id("self"), "state"), Arms: arms}}),
	}

	itemType := l.rustType(item)
	impl := &rust.Impl{
		Trait: rust.T("Iterator"),
		For:   rust.T(stateName),
		Items: []rust.Item{
			&rust.TypeAlias{Name: "Item", Ty: itemType},
			&rust.Fn{
				Name:     "next",
				Receiver: "&mut self",
				Ret:      rust.T("Option", itemType),
				Body:     rust.BlockOf(nil, &rust.ExprStmt{X: dispatch}),
			},
		},
	}

	fnParams := make([]rust.Param, len(sig.params))
	for i, p := range sig.params {
		fnParams[i] = rust.Param{Pat: rust.Pat(rust.SafeIdent(p.Name)), Ty: l.paramType(sig.types[i], BorrowOwned)}
	}

	ctor := &rust.Fn{
		Doc:    fd.Docstring,
		Name:   l.fnName(fd.Name),
		Params: fnParams,
		Ret:    rust.TImplIter(itemType),
		Body:   rust.BlockOf(lit),
	}

	l.ctx.Tracer.Record(trace.TypeMapping, fd.Name, stateName, []string{"Vec"}, 0.9, fd.Span())
	return []rust.Item{st, impl, ctor}
}
