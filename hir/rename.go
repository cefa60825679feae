package hir

// Rename returns a copy of e in which every free reference to a variable in
// names is replaced by its mapped name.  Lambda parameters and comprehension
// targets shadow the mapping within their scope.  Nodes that contain no
// renamed reference are shared with the original tree.
func Rename(e Expr, names map[string]string) Expr {
	if e == nil || len(names) == 0 {
		return e
	}

	r := renamer(names)
	return r.expr(e)
}

type renamer map[string]string

// without returns the mapping with the given names removed.
func (r renamer) without(shadowed ...string) renamer {
	nr := make(renamer, len(r))
	for k, v := range r {
		nr[k] = v
	}

	for _, s := range shadowed {
		delete(nr, s)
	}

	return nr
}

func (r renamer) exprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}

	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = r.expr(e)
	}

	return out
}

func (r renamer) kwargs(kws []*Kwarg) []*Kwarg {
	if kws == nil {
		return nil
	}

	out := make([]*Kwarg, len(kws))
	for i, kw := range kws {
		out[i] = &Kwarg{Name: kw.Name, Value: r.expr(kw.Value)}
	}

	return out
}

func (r renamer) expr(e Expr) Expr {
	if e == nil || len(r) == 0 {
		return e
	}

	switch v := e.(type) {
	case *Var:
		if to, ok := r[v.Name]; ok {
			return &Var{Base: v.Base, Name: to}
		}
		return v
	case *Binary:
		return &Binary{Base: v.Base, Op: v.Op, Left: r.expr(v.Left), Right: r.expr(v.Right)}
	case *Unary:
		return &Unary{Base: v.Base, Op: v.Op, Operand: r.expr(v.Operand)}
	case *Call:
		return &Call{Base: v.Base, Func: v.Func, Args: r.exprs(v.Args), Kwargs: r.kwargs(v.Kwargs)}
	case *MethodCall:
		return &MethodCall{Base: v.Base, Recv: r.expr(v.Recv), Method: v.Method, Args: r.exprs(v.Args), Kwargs: r.kwargs(v.Kwargs)}
	case *Attribute:
		return &Attribute{Base: v.Base, Value: r.expr(v.Value), Attr: v.Attr}
	case *Index:
		return &Index{Base: v.Base, Value: r.expr(v.Value), Index: r.expr(v.Index)}
	case *Slice:
		return &Slice{Base: v.Base, Value: r.expr(v.Value), Lower: r.expr(v.Lower), Upper: r.expr(v.Upper), Step: r.expr(v.Step)}
	case *Borrow:
		return &Borrow{Base: v.Base, Value: r.expr(v.Value), Mutable: v.Mutable}
	case *ListExpr:
		return &ListExpr{Base: v.Base, Elems: r.exprs(v.Elems)}
	case *TupleExpr:
		return &TupleExpr{Base: v.Base, Elems: r.exprs(v.Elems)}
	case *SetExpr:
		return &SetExpr{Base: v.Base, Elems: r.exprs(v.Elems)}
	case *DictExpr:
		return &DictExpr{Base: v.Base, Keys: r.exprs(v.Keys), Values: r.exprs(v.Values)}
	case *Lambda:
		return &Lambda{Base: v.Base, Params: v.Params, Body: r.without(v.Params...).expr(v.Body)}
	case *IfExpr:
		return &IfExpr{Base: v.Base, Test: r.expr(v.Test), Body: r.expr(v.Body), Orelse: r.expr(v.Orelse)}
	case *FString:
		parts := make([]*FStringPart, len(v.Parts))
		for i, p := range v.Parts {
			np := *p
			np.Expr = r.expr(p.Expr)
			parts[i] = &np
		}
		return &FString{Base: v.Base, Parts: parts}
	case *Await:
		return &Await{Base: v.Base, Value: r.expr(v.Value)}
	case *Yield:
		return &Yield{Base: v.Base, Value: r.expr(v.Value)}
	case *NamedExpr:
		return &NamedExpr{Base: v.Base, Target: v.Target, Value: r.expr(v.Value)}
	case *SortByKey:
		return &SortByKey{
			Base:      v.Base,
			Iterable:  r.expr(v.Iterable),
			KeyParams: v.KeyParams,
			KeyBody:   r.without(v.KeyParams...).expr(v.KeyBody),
			Reverse:   r.expr(v.Reverse),
		}
	case *Comprehension:
		inner := r
		gens := make([]*Generator, len(v.Generators))
		for i, gen := range v.Generators {
			iter := inner.expr(gen.Iter)
			inner = inner.without(TargetNames(gen.Target)...)
			gens[i] = &Generator{Target: gen.Target, Iter: iter, Conds: inner.exprs(gen.Conds)}
		}
		return &Comprehension{
			Base:       v.Base,
			Kind:       v.Kind,
			Element:    inner.expr(v.Element),
			Key:        inner.expr(v.Key),
			Generators: gens,
		}
	}

	return e
}
