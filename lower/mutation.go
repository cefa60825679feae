package lower

import "github.com/paiml/depyler-sub004/hir"

// mutatingMethods are the methods that modify their receiver in place.
var mutatingMethods = map[string]bool{
	"append": true, "extend": true, "insert": true, "pop": true, "remove": true,
	"clear": true, "sort": true, "reverse": true, "update": true, "setdefault": true,
	"add": true, "discard": true, "popitem": true, "appendleft": true, "popleft": true,
	"extendleft": true, "rotate": true, "write": true, "writelines": true,
	"writerow": true, "writerows": true, "writeheader": true, "flush": true,
	"intersection_update": true, "difference_update": true,
	"symmetric_difference_update": true, "seek": true, "truncate": true,
}

// mutationFacts are the facts the mutability pre-pass derives from a body.
type mutationFacts struct {
	// assigns counts the assignments to each name.  Assignments inside
	// loops count twice since they run repeatedly.
	assigns map[string]int

	// mutated is the set of names modified in place: method receivers and
	// the roots of subscript and attribute targets.
	mutated map[string]bool

	// selfMutated is set when `self` is modified.
	selfMutated bool

	// globals are the names declared `global`.
	globals map[string]bool
}

// mutationFacts runs the mutability pre-pass over a body.
func (l *Lowerer) mutationFacts(body []hir.Stmt) *mutationFacts {
	mf := &mutationFacts{
		assigns: make(map[string]int),
		mutated: make(map[string]bool),
		globals: make(map[string]bool),
	}

	mf.stmts(l, body, false)
	return mf
}

func (mf *mutationFacts) stmts(l *Lowerer, stmts []hir.Stmt, inLoop bool) {
	weight := 1
	if inLoop {
		weight = 2
	}

	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *hir.Assign:
			mf.target(l, v.Target, weight)
			mf.expr(l, v.Value)
		case *hir.AugAssign:
			mf.target(l, v.Target, 2)
			mf.expr(l, v.Value)
		case *hir.ExprStmt:
			mf.expr(l, v.Value)
		case *hir.Return:
			mf.expr(l, v.Value)
		case *hir.If:
			mf.expr(l, v.Test)
			mf.stmts(l, v.Body, inLoop)
			mf.stmts(l, v.Orelse, inLoop)
		case *hir.While:
			mf.expr(l, v.Test)
			mf.stmts(l, v.Body, true)
		case *hir.For:
			mf.expr(l, v.Iter)
			mf.stmts(l, v.Body, true)
			mf.stmts(l, v.Orelse, inLoop)
		case *hir.Try:
			mf.stmts(l, v.Body, inLoop)
			for _, h := range v.Handlers {
				mf.stmts(l, h.Body, inLoop)
			}
			mf.stmts(l, v.Orelse, inLoop)
			mf.stmts(l, v.Finally, inLoop)
		case *hir.With:
			for _, item := range v.Items {
				mf.expr(l, item.Context)
				if item.Name != "" {
					mf.assigns[item.Name] += weight
					if isWriteOpen(item.Context) {
						mf.mutated[item.Name] = true
					}
				}
			}
			mf.stmts(l, v.Body, inLoop)
		case *hir.Raise:
			mf.expr(l, v.Exc)
		case *hir.Assert:
			mf.expr(l, v.Test)
			mf.expr(l, v.Msg)
		case *hir.Global:
			for _, name := range v.Names {
				mf.globals[name] = true
			}
		}
	}
}

func (mf *mutationFacts) target(l *Lowerer, target hir.Expr, weight int) {
	switch v := target.(type) {
	case *hir.Var:
		mf.assigns[v.Name] += weight
	case *hir.TupleExpr:
		for _, elem := range v.Elems {
			mf.target(l, elem, weight)
		}
	case *hir.ListExpr:
		for _, elem := range v.Elems {
			mf.target(l, elem, weight)
		}
	case *hir.Index:
		mf.mutate(l, v.Value)
		mf.expr(l, v.Index)
	case *hir.Attribute:
		mf.mutate(l, v.Value)
	}
}

// mutate marks the root variable of a place expression as modified.
func (mf *mutationFacts) mutate(l *Lowerer, place hir.Expr) {
	for {
		switch v := place.(type) {
		case *hir.Var:
			if v.Name == "self" {
				mf.selfMutated = true
			} else if _, isMod := l.ctx.ImportedModules[v.Name]; !isMod {
				mf.mutated[v.Name] = true
			}
			return
		case *hir.Index:
			place = v.Value
		case *hir.Attribute:
			place = v.Value
		case *hir.Slice:
			place = v.Value
		default:
			return
		}
	}
}

func (mf *mutationFacts) expr(l *Lowerer, e hir.Expr) {
	hir.InspectExpr(e, func(sub hir.Expr) bool {
		switch v := sub.(type) {
		case *hir.MethodCall:
			if _, isMod := l.moduleOf(v.Recv); isMod {
				return true
			}

			if mutatingMethods[v.Method] || l.methodMutatesReceiver(v) {
				mf.mutate(l, v.Recv)
			}
		case *hir.Call:
			if v.Func == "next" && len(v.Args) > 0 {
				mf.mutate(l, v.Args[0])
			} else if sig, ok := l.sigs()[v.Func]; ok {
				for i, arg := range v.Args {
					if i < len(sig.borrows) && sig.borrows[i] == BorrowMut {
						mf.mutate(l, arg)
					}
				}
			}
		case *hir.NamedExpr:
			mf.assigns[v.Target] += 2
		}

		return true
	})
}

// methodMutatesReceiver tests whether mc calls a user method taking
// `&mut self`.
func (l *Lowerer) methodMutatesReceiver(mc *hir.MethodCall) bool {
	var class string
	if v, ok := mc.Recv.(*hir.Var); ok && v.Name == "self" && l.fn != nil && l.fn.class != nil {
		class = l.fn.class.name
	} else if t := l.exprType(mc.Recv); t.Is(hir.TCustom) {
		class = t.Name
	}

	if class == "" {
		return false
	}

	sig, ok := l.sigs()[class+"."+mc.Method]
	return ok && sig.receiver == "&mut self"
}

// isWriteOpen tests whether e opens a file for writing.
func isWriteOpen(e hir.Expr) bool {
	c, ok := e.(*hir.Call)
	if !ok || c.Func != "open" {
		return false
	}

	mode := "r"
	if len(c.Args) > 1 {
		if s, ok := c.Args[1].(*hir.StrLit); ok {
			mode = s.Value
		}
	}

	for _, kw := range c.Kwargs {
		if s, ok := kw.Value.(*hir.StrLit); ok && kw.Name == "mode" {
			mode = s.Value
		}
	}

	for _, ch := range mode {
		if ch == 'w' || ch == 'a' || ch == '+' || ch == 'x' {
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------

// analyzeBody runs the pre-passes for a function body: it decides which
// locals are declared `mut`.
func (l *Lowerer) analyzeBody(body []hir.Stmt, sig *signature) {
	mf := l.mutationFacts(body)

	for name, n := range mf.assigns {
		if n >= 2 {
			l.ctx.MutableVars[name] = true
		}
	}

	for name := range mf.mutated {
		l.ctx.MutableVars[name] = true
	}

	if sig == nil {
		return
	}

	for i, p := range sig.params {
		reassigned := mf.assigns[p.Name] > 0
		owned := sig.borrows[i] == BorrowOwned
		l.ctx.MutableVars[p.Name] = reassigned || (owned && mf.mutated[p.Name])
	}
}

// paramBorrow decides how a parameter is passed.
func (l *Lowerer) paramBorrow(t *hir.Type, reassigned, mutated bool) Borrow {
	switch {
	case t.Is(hir.TOptional) && mutated:
		// assignments go through the reference
		return BorrowMut
	case reassigned:
		return BorrowOwned
	case t.Is(hir.TString):
		return BorrowStr
	case t.Is(hir.TOptional):
		return BorrowOwned
	case l.isBorrowable(t):
		if mutated {
			return BorrowMut
		}
		return BorrowShared
	}

	return BorrowOwned
}

// isBorrowable tests whether values of t are passed by reference.
func (l *Lowerer) isBorrowable(t *hir.Type) bool {
	if t == nil {
		return false
	}

	switch t.Kind {
	case hir.TList, hir.TDict, hir.TSet:
		return true
	case hir.TGeneric:
		return t.Name == "deque"
	case hir.TCustom:
		return l.ctx.ClassNames[t.Name] || t.Name == typeJSON || t.Name == typeBytes
	}

	return false
}

// -----------------------------------------------------------------------------

// hoistedNames returns the names first assigned inside the compound
// statement stmt that are still used by the statements after it.  They must
// be declared before stmt so that they stay in scope.
func (l *Lowerer) hoistedNames(stmt hir.Stmt, rest []hir.Stmt) []string {
	switch stmt.(type) {
	case *hir.If, *hir.While, *hir.For, *hir.Try, *hir.With:
	default:
		return nil
	}

	used := make(map[string]bool)
	hir.InspectStmts(rest, nil, func(e hir.Expr) bool {
		if v, ok := e.(*hir.Var); ok {
			used[v.Name] = true
		}
		return true
	})

	var names []string
	for _, name := range hir.AssignedNames([]hir.Stmt{stmt}) {
		if !used[name] || l.isDeclared(name) || l.genFields[name] {
			continue
		}

		if f, ok := stmt.(*hir.For); ok && containsName(hir.TargetNames(f.Target), name) {
			continue
		}

		if w, ok := stmt.(*hir.With); ok && withBinds(w, name) {
			continue
		}

		names = append(names, name)
	}

	return names
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}

func withBinds(w *hir.With, name string) bool {
	for _, item := range w.Items {
		if item.Name == name {
			return true
		}
	}

	return false
}

// definitelyAssigns tests whether every path through stmts assigns name or
// leaves the enclosing function.
func definitelyAssigns(stmts []hir.Stmt, name string) bool {
	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *hir.Assign:
			if containsName(hir.TargetNames(v.Target), name) {
				return true
			}
		case *hir.Return, *hir.Raise:
			return true
		case *hir.If:
			if len(v.Orelse) > 0 && definitelyAssigns(v.Body, name) && definitelyAssigns(v.Orelse, name) {
				return true
			}
		case *hir.Try:
			if definitelyAssigns(v.Finally, name) {
				return true
			}

			if !definitelyAssigns(append(v.Body[:len(v.Body):len(v.Body)], v.Orelse...), name) {
				break
			}

			all := true
			for _, h := range v.Handlers {
				all = all && definitelyAssigns(h.Body, name)
			}
			if all {
				return true
			}
		case *hir.With:
			if definitelyAssigns(v.Body, name) {
				return true
			}
		}
	}

	return false
}
