package hir

// InspectExpr traverses e in depth-first order calling f for each expression.
// If f returns false, the children of that expression are not visited.
func InspectExpr(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}

	visit := func(children ...Expr) {
		for _, c := range children {
			InspectExpr(c, f)
		}
	}

	switch v := e.(type) {
	case *Binary:
		visit(v.Left, v.Right)
	case *Unary:
		visit(v.Operand)
	case *Call:
		visit(v.Args...)
		for _, kw := range v.Kwargs {
			visit(kw.Value)
		}
	case *MethodCall:
		visit(v.Recv)
		visit(v.Args...)
		for _, kw := range v.Kwargs {
			visit(kw.Value)
		}
	case *Attribute:
		visit(v.Value)
	case *Index:
		visit(v.Value, v.Index)
	case *Slice:
		visit(v.Value, v.Lower, v.Upper, v.Step)
	case *Borrow:
		visit(v.Value)
	case *ListExpr:
		visit(v.Elems...)
	case *TupleExpr:
		visit(v.Elems...)
	case *SetExpr:
		visit(v.Elems...)
	case *DictExpr:
		for i := range v.Keys {
			visit(v.Keys[i], v.Values[i])
		}
	case *Comprehension:
		for _, gen := range v.Generators {
			visit(gen.Iter, gen.Target)
			visit(gen.Conds...)
		}
		visit(v.Key, v.Element)
	case *Lambda:
		visit(v.Body)
	case *IfExpr:
		visit(v.Test, v.Body, v.Orelse)
	case *FString:
		for _, part := range v.Parts {
			visit(part.Expr)
		}
	case *Await:
		visit(v.Value)
	case *Yield:
		visit(v.Value)
	case *NamedExpr:
		visit(v.Value)
	case *SortByKey:
		visit(v.Iterable, v.KeyBody, v.Reverse)
	}
}

// InspectStmts traverses a statement list in order.  fs is called for every
// statement and fe for every expression contained in them.  Either callback
// may be nil.  Nested function and class bodies are not entered: they are
// separate scopes.
func InspectStmts(stmts []Stmt, fs func(Stmt) bool, fe func(Expr) bool) {
	exprs := func(es ...Expr) {
		if fe == nil {
			return
		}

		for _, e := range es {
			InspectExpr(e, fe)
		}
	}

	for _, stmt := range stmts {
		if fs != nil && !fs(stmt) {
			continue
		}

		switch v := stmt.(type) {
		case *Assign:
			exprs(v.Target, v.Value)
		case *AugAssign:
			exprs(v.Target, v.Value)
		case *ExprStmt:
			exprs(v.Value)
		case *Return:
			exprs(v.Value)
		case *If:
			exprs(v.Test)
			InspectStmts(v.Body, fs, fe)
			InspectStmts(v.Orelse, fs, fe)
		case *While:
			exprs(v.Test)
			InspectStmts(v.Body, fs, fe)
		case *For:
			exprs(v.Target, v.Iter)
			InspectStmts(v.Body, fs, fe)
			InspectStmts(v.Orelse, fs, fe)
		case *Try:
			InspectStmts(v.Body, fs, fe)
			for _, h := range v.Handlers {
				InspectStmts(h.Body, fs, fe)
			}
			InspectStmts(v.Orelse, fs, fe)
			InspectStmts(v.Finally, fs, fe)
		case *Raise:
			exprs(v.Exc, v.Cause)
		case *With:
			for _, item := range v.Items {
				exprs(item.Context)
			}
			InspectStmts(v.Body, fs, fe)
		case *Assert:
			exprs(v.Test, v.Msg)
		}
	}
}

// -----------------------------------------------------------------------------

// TargetNames returns the variable names bound by an assignment target.
func TargetNames(target Expr) []string {
	switch v := target.(type) {
	case *Var:
		return []string{v.Name}
	case *TupleExpr:
		var names []string
		for _, elem := range v.Elems {
			names = append(names, TargetNames(elem)...)
		}
		return names
	case *ListExpr:
		var names []string
		for _, elem := range v.Elems {
			names = append(names, TargetNames(elem)...)
		}
		return names
	}

	return nil
}

// ContainsYield returns whether the statements contain a yield expression
// outside of nested definitions.
func ContainsYield(stmts []Stmt) bool {
	found := false
	InspectStmts(stmts, nil, func(e Expr) bool {
		if _, ok := e.(*Yield); ok {
			found = true
		}

		_, isLambda := e.(*Lambda)
		return !found && !isLambda
	})

	return found
}

// ContainsAwait returns whether the statements contain an await expression
// outside of nested definitions.
func ContainsAwait(stmts []Stmt) bool {
	found := false
	InspectStmts(stmts, nil, func(e Expr) bool {
		if _, ok := e.(*Await); ok {
			found = true
		}

		return !found
	})

	return found
}

// ExprContains returns whether pred holds for any expression within e.
func ExprContains(e Expr, pred func(Expr) bool) bool {
	found := false
	InspectExpr(e, func(sub Expr) bool {
		if pred(sub) {
			found = true
		}

		return !found
	})

	return found
}

// UsesName returns whether the variable name is read anywhere within e.
func UsesName(e Expr, name string) bool {
	return ExprContains(e, func(sub Expr) bool {
		v, ok := sub.(*Var)
		return ok && v.Name == name
	})
}

// FreeVars returns the names of variables referenced in e that are not bound
// by e itself (lambda parameters or comprehension targets), in order of first
// appearance.
func FreeVars(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	collectFree(e, map[string]bool{}, seen, &names)
	return names
}

func collectFree(e Expr, bound, seen map[string]bool, names *[]string) {
	InspectExpr(e, func(sub Expr) bool {
		switch v := sub.(type) {
		case *Var:
			if !bound[v.Name] && !seen[v.Name] {
				seen[v.Name] = true
				*names = append(*names, v.Name)
			}
		case *Lambda:
			inner := copyBound(bound)
			for _, p := range v.Params {
				inner[p] = true
			}
			collectFree(v.Body, inner, seen, names)
			return false
		case *Comprehension:
			inner := copyBound(bound)
			for _, gen := range v.Generators {
				collectFree(gen.Iter, inner, seen, names)
				for _, n := range TargetNames(gen.Target) {
					inner[n] = true
				}
				for _, cond := range gen.Conds {
					collectFree(cond, inner, seen, names)
				}
			}
			collectFree(v.Key, inner, seen, names)
			collectFree(v.Element, inner, seen, names)
			return false
		}

		return true
	})
}

func copyBound(bound map[string]bool) map[string]bool {
	nb := make(map[string]bool, len(bound))
	for k, v := range bound {
		nb[k] = v
	}

	return nb
}

// AssignedNames returns the names assigned anywhere in the statements, in
// order of first assignment.
func AssignedNames(stmts []Stmt) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(ns ...string) {
		for _, n := range ns {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	InspectStmts(stmts, func(s Stmt) bool {
		switch v := s.(type) {
		case *Assign:
			add(TargetNames(v.Target)...)
		case *AugAssign:
			add(TargetNames(v.Target)...)
		case *For:
			add(TargetNames(v.Target)...)
		case *With:
			for _, item := range v.Items {
				if item.Name != "" {
					add(item.Name)
				}
			}
		case *Try:
			for _, h := range v.Handlers {
				if h.Name != "" {
					add(h.Name)
				}
			}
		}

		return true
	}, nil)

	return names
}
