package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
)

// lowerScoped lowers statements in a new local scope.
func (l *Lowerer) lowerScoped(stmts []hir.Stmt) []rust.Stmt {
	l.pushScope()
	defer l.popScope()

	return l.lowerStmts(stmts)
}

// lowerBody lowers a function body into a block in the current scope.
func (l *Lowerer) lowerBody(stmts []hir.Stmt) *rust.Block {
	return rust.BlockOf(nil, l.lowerStmts(stmts)...)
}

// lowerBlock lowers statements into a block with its own scope.
func (l *Lowerer) lowerBlock(stmts []hir.Stmt) *rust.Block {
	return rust.BlockOf(nil, l.lowerScoped(stmts)...)
}

// lowerStmts lowers a statement list.  Names first assigned inside a
// compound statement but used after it are declared ahead of it, and
// statements after one that always leaves the block are dropped.
func (l *Lowerer) lowerStmts(stmts []hir.Stmt) []rust.Stmt {
	var out []rust.Stmt
	for i, stmt := range stmts {
		out = append(out, l.hoist(stmt, stmts[i+1:])...)
		out = append(out, l.predeclareNamed(stmt)...)
		out = append(out, l.lowerStmt(stmt)...)

		switch stmt.(type) {
		case *hir.Return, *hir.Raise, *hir.Break, *hir.Continue:
			return out
		}
	}

	return out
}

// hoist declares the names that must outlive the compound statement stmt.
func (l *Lowerer) hoist(stmt hir.Stmt, rest []hir.Stmt) []rust.Stmt {
	var out []rust.Stmt
	for _, name := range l.hoistedNames(stmt, rest) {
		t := l.varType(name)
		if t.IsUnknown() || t.Is(hir.TNone) {
			t = dynType
			l.ctx.VarTypes[name] = t
		}

		l.declare(name)

		// rustc proves definite assignment through if and with but not
		// through the labelled blocks of a try or through loops
		switch stmt.(type) {
		case *hir.If, *hir.With:
			if definitelyAssigns([]hir.Stmt{stmt}, name) {
				out = append(out, rust.LetName(rust.SafeIdent(name), l.ctx.MutableVars[name], l.declType(t), nil))
				continue
			}
		}

		l.ctx.MutableVars[name] = true
		out = append(out, rust.LetName(rust.SafeIdent(name), true, l.rustType(t), l.zeroValue(t)))
	}

	return out
}

// zeroValue returns the initial value of a hoisted variable.
func (l *Lowerer) zeroValue(t *hir.Type) rust.Expr {
	if t.Is(hir.TOptional) {
		return rust.NoneVal()
	}

	return rust.CallPath("Default::default")
}

// declType returns the type annotation for a declaration of type t or nil
// when rustc is left to infer it.
func (l *Lowerer) declType(t *hir.Type) rust.Type {
	if !isFullyKnown(t) {
		return nil
	}

	return l.rustType(t)
}

// isFullyKnown tests whether t and all its type arguments are known.
func isFullyKnown(t *hir.Type) bool {
	if t.IsUnknown() {
		return false
	}

	for _, arg := range t.Args {
		if !isFullyKnown(arg) {
			return false
		}
	}

	return t.Ret == nil || isFullyKnown(t.Ret)
}

// predeclareNamed declares the targets of the named expressions in the
// head of stmt so that the assignments inside the expression have a home.
func (l *Lowerer) predeclareNamed(stmt hir.Stmt) []rust.Stmt {
	var heads []hir.Expr
	switch v := stmt.(type) {
	case *hir.If:
		heads = append(heads, v.Test)
	case *hir.While:
		heads = append(heads, v.Test)
	case *hir.Assign:
		heads = append(heads, v.Value)
	case *hir.ExprStmt:
		heads = append(heads, v.Value)
	case *hir.Return:
		heads = append(heads, v.Value)
	case *hir.For:
		heads = append(heads, v.Iter)
	}

	var out []rust.Stmt
	for _, head := range heads {
		hir.InspectExpr(head, func(e hir.Expr) bool {
			ne, ok := e.(*hir.NamedExpr)
			if !ok || l.isDeclared(ne.Target) || l.genFields[ne.Target] {
				return true
			}

			t := l.exprType(ne.Value)
			l.ctx.SetVarType(ne.Target, t)
			l.declare(ne.Target)
			out = append(out, rust.LetName(rust.SafeIdent(ne.Target), true, l.declType(t), nil))
			return true
		})
	}

	return out
}

// -----------------------------------------------------------------------------

// lowerStmt lowers a single statement.
func (l *Lowerer) lowerStmt(stmt hir.Stmt) []rust.Stmt {
	switch v := stmt.(type) {
	case *hir.Assign:
		return l.lowerAssign(v)
	case *hir.AugAssign:
		return l.lowerAugAssign(v)
	case *hir.ExprStmt:
		return l.lowerExprStmt(v)
	case *hir.Return:
		return l.lowerReturn(v)
	case *hir.If:
		return l.lowerIf(v)
	case *hir.While:
		return l.lowerWhile(v)
	case *hir.For:
		return l.lowerFor(v)
	case *hir.Try:
		return l.lowerTry(v)
	case *hir.Raise:
		return l.lowerRaise(v)
	case *hir.With:
		return l.lowerWith(v)
	case *hir.Break:
		return l.lowerBreak(v)
	case *hir.Continue:
		return l.lowerContinue(v)
	case *hir.Global:
		if l.fn != nil && l.fn.globals != nil {
			for _, name := range v.Names {
				l.fn.globals[name] = true
			}
		}
		return nil
	case *hir.Pass, *hir.Import:
		return nil
	case *hir.Assert:
		return l.lowerAssert(v)
	case *hir.FunctionDef:
		return l.lowerNestedFunc(v)
	case *hir.ClassDef:
		l.fail(v, "classes must be defined at module level")
	}

	l.fail(stmt, "unsupported statement")
	return nil
}

// lowerExprStmt lowers an expression evaluated for its effects.
func (l *Lowerer) lowerExprStmt(s *hir.ExprStmt) []rust.Stmt {
	switch v := s.Value.(type) {
	case *hir.StrLit:
		// docstring
		return nil
	case *hir.Yield:
		return []rust.Stmt{rust.Semi(l.lowerYield(v))}
	}

	x := l.lowerExpr(s.Value)
	if x == nil {
		// folded into generated items
		return nil
	}

	return []rust.Stmt{rust.Semi(x)}
}

// lowerAssert lowers an assert statement.
func (l *Lowerer) lowerAssert(a *hir.Assert) []rust.Stmt {
	cond := l.truthy(a.Test)
	if a.Msg == nil {
		return []rust.Stmt{rust.Semi(rust.MacroCall("assert", cond))}
	}

	placeholder, arg := l.displayArg(a.Msg)
	return []rust.Stmt{rust.Semi(rust.MacroCall("assert", cond, rust.Str(placeholder), arg))}
}

// -----------------------------------------------------------------------------

// lowerAssign lowers an assignment by the shape of its target.
func (l *Lowerer) lowerAssign(a *hir.Assign) []rust.Stmt {
	switch t := a.Target.(type) {
	case *hir.Var:
		if l.exprType(a.Value).IsCustom(typeArgParser) {
			l.ctx.SetVarType(t.Name, hir.CustomOf(typeArgParser))
			l.lowerExpr(a.Value)
			return nil
		}
		return l.lowerAssignVar(t, a)
	case *hir.TupleExpr:
		return l.lowerAssignTuple(t.Elems, a.Target, a.Value)
	case *hir.ListExpr:
		return l.lowerAssignTuple(t.Elems, a.Target, a.Value)
	case *hir.Index:
		return l.lowerAssignIndex(t, a.Value)
	case *hir.Attribute:
		return l.lowerAssignAttr(t, a.Value)
	}

	l.fail(a, "unsupported assignment target")
	return nil
}

// isGlobalWrite tests whether assigning name in the current function
// writes a module global.
func (l *Lowerer) isGlobalWrite(name string) bool {
	if _, ok := l.ctx.Globals[name]; !ok || l.isDeclared(name) || l.fn == nil {
		return false
	}

	return l.fn.topLevel || l.fn.globals[name]
}

func (l *Lowerer) lowerAssignVar(v *hir.Var, a *hir.Assign) []rust.Stmt {
	name := v.Name
	t := l.declaredType(a)
	l.trackValue(name, a.Value)

	if l.genFields[name] {
		l.ctx.SetVarType(name, t)
		return []rust.Stmt{rust.Semi(&rust.Assign{Op: "=", Left: l.lowerVar(v), Right: l.coerce(a.Value, l.varType(name))})}
	}

	if l.isGlobalWrite(name) {
		if !l.ctx.Globals[name] {
			l.fail(a, "module constant %s cannot be reassigned", name)
		}

		// the new value is computed before the lock is taken
		tmp := l.getTempName("value")
		return []rust.Stmt{
			rust.LetName(tmp, false, nil, l.coerce(a.Value, l.varType(name))),
			rust.Semi(&rust.Assign{Op: "=", Left: l.lowerVar(v), Right: rust.Id(tmp)}),
		}
	}

	if l.isDeclared(name) {
		declared := l.varType(name)
		l.ctx.SetVarType(name, t)

		value := l.coerce(a.Value, declared)
		var place rust.Expr = l.lowerVar(v)
		if l.ctx.MutOptionParams[name] {
			place = rust.Deref(place)
			if !declared.Is(hir.TOptional) {
				value = l.coerce(a.Value, hir.OptionalOf(declared))
			}
		}

		return []rust.Stmt{rust.Semi(&rust.Assign{Op: "=", Left: place, Right: value})}
	}

	l.declare(name)
	l.ctx.SetVarType(name, t)
	t = l.varType(name)

	var ty rust.Type
	if a.Annot != nil || isEmptyLiteral(a.Value) || isNoneLit(a.Value) || l.ctx.BoxedWriteVars[name] {
		ty = l.declType(t)
	}

	return []rust.Stmt{rust.LetName(rust.SafeIdent(name), l.ctx.MutableVars[name], ty, l.coerce(a.Value, t))}
}

// trackValue records the variable families that select special method
// rewrites for name.
func (l *Lowerer) trackValue(name string, value hir.Expr) {
	t := l.exprType(value)

	switch {
	case t.Is(hir.TGeneric) && t.Name == "Iterator":
		l.ctx.IteratorVars[name] = true
	case t.Is(hir.TGeneric) && t.Name == "deque":
		l.ctx.Need(prelude.VecDeque)
		l.ctx.DequeVars[name] = true
	case t.IsCustom(typeFile):
		l.ctx.FileVars[name] = true
	case t.IsCustom(typeWriter):
		l.ctx.BoxedWriteVars[name] = true
	case t.IsCustom(typePath):
		l.ctx.PathVars[name] = true
	case t.IsCustom(typeJSON):
		l.ctx.JSONValueVars[name] = true
	case t.IsCustom(typeCSVReader), t.IsCustom(typeCSVDict):
		l.ctx.CSVReaderVars[name] = true
	case t.IsCustom(typeCSVWriter):
		l.ctx.CSVWriterVars[name] = true
		if fields, ok := csvFieldNames(value); ok {
			l.ctx.DictWriterFields[name] = fields
		}
	}

	if c, ok := value.(*hir.Comprehension); ok && c.Kind == hir.CompGenerator {
		l.ctx.IteratorVars[name] = true
	}

	if c, ok := value.(*hir.Call); ok {
		if sig, ok := l.sigs()[c.Func]; ok && sig.generator {
			l.ctx.IteratorVars[name] = true
		}
		if mod, fn, ok := l.collectionsCall(c.Func); ok && mod == "collections" && fn == "defaultdict" {
			l.ctx.DefaultDicts[name] = true
		}
	}

	if mc, ok := value.(*hir.MethodCall); ok && mc.Method == "defaultdict" {
		if mod, ok := l.moduleOf(mc.Recv); ok && mod == "collections" {
			l.ctx.DefaultDicts[name] = true
		}
	}
}

// csvFieldNames extracts the fieldnames list of a DictWriter construction.
func csvFieldNames(value hir.Expr) (*hir.ListExpr, bool) {
	var kwargs []*hir.Kwarg
	switch v := value.(type) {
	case *hir.MethodCall:
		kwargs = v.Kwargs
	case *hir.Call:
		kwargs = v.Kwargs
	}

	lst, ok := kwarg(kwargs, "fieldnames").(*hir.ListExpr)
	return lst, ok
}

func isEmptyLiteral(e hir.Expr) bool {
	switch v := e.(type) {
	case *hir.ListExpr:
		return len(v.Elems) == 0
	case *hir.DictExpr:
		return len(v.Keys) == 0
	case *hir.SetExpr:
		return len(v.Elems) == 0
	case *hir.Call:
		switch v.Func {
		case "list", "dict", "set":
			return len(v.Args) == 0
		}
	}

	return false
}

func isNoneLit(e hir.Expr) bool {
	_, ok := e.(*hir.NoneLit)
	return ok
}

// lowerAssignTuple lowers an unpacking assignment.
func (l *Lowerer) lowerAssignTuple(elems []hir.Expr, target, value hir.Expr) []rust.Stmt {
	vt := l.exprType(value)

	names := make([]string, len(elems))
	for i, elem := range elems {
		v, ok := elem.(*hir.Var)
		if !ok {
			l.fail(elem, "unpacking targets must be names")
		}
		names[i] = v.Name
	}

	var rhs rust.Expr
	switch {
	case IsDyn(vt):
		switch len(elems) {
		case 2:
			rhs = rust.M(l.lowerExpr(value), "as_tuple2")
		case 3:
			rhs = rust.M(l.lowerExpr(value), "as_tuple3")
		default:
			l.fail(value, "dynamic values unpack into two or three names")
		}
	case vt.Is(hir.TList):
		return l.lowerAssignFromList(names, value)
	case vt.Is(hir.TTuple) || vt.IsUnknown():
		if tup, ok := value.(*hir.TupleExpr); ok && len(tup.Elems) == len(elems) {
			out := make([]rust.Expr, len(elems))
			for i, e := range tup.Elems {
				out[i] = l.owned(e)
			}
			rhs = &rust.Tuple{Elems: out}
		} else {
			rhs = l.lowerExpr(value)
		}
	default:
		l.fail(value, "cannot unpack a value of type %s", vt.Repr())
	}

	l.bindTarget(target, vt)

	declared, fresh := 0, 0
	for _, name := range names {
		if l.isDeclared(name) || l.genFields[name] {
			declared++
		} else {
			fresh++
		}
	}

	switch {
	case declared == 0:
		pats := make([]rust.Pattern, len(names))
		for i, name := range names {
			l.declare(name)
			pats[i] = &rust.IdentPat{Name: rust.SafeIdent(name), Mut: l.ctx.MutableVars[name]}
		}
		return []rust.Stmt{&rust.Let{Pat: &rust.TuplePat{Elems: pats}, Init: rhs}}
	case fresh == 0:
		places := make([]rust.Expr, len(names))
		for i, name := range names {
			places[i] = l.lowerVar(&hir.Var{Name: name})
		}
		return []rust.Stmt{rust.Semi(&rust.Assign{Op: "=", Left: &rust.Tuple{Elems: places}, Right: rhs})}
	}

	// mixed declared and fresh names go through temporaries
	temps := make([]rust.Pattern, len(names))
	for i := range names {
		temps[i] = rust.Pat(l.getTempName("part"))
	}

	stmts := []rust.Stmt{&rust.Let{Pat: &rust.TuplePat{Elems: temps}, Init: rhs}}
	for i, name := range names {
		tmp := rust.Id(temps[i].(*rust.IdentPat).Name)
		if l.isDeclared(name) || l.genFields[name] {
			stmts = append(stmts, rust.Semi(&rust.Assign{Op: "=", Left: l.lowerVar(&hir.Var{Name: name}), Right: tmp}))
		} else {
			l.declare(name)
			stmts = append(stmts, rust.LetName(rust.SafeIdent(name), l.ctx.MutableVars[name], nil, tmp))
		}
	}

	return stmts
}

// lowerAssignFromList unpacks the elements of a list value.
func (l *Lowerer) lowerAssignFromList(names []string, value hir.Expr) []rust.Stmt {
	elem := l.exprType(value).Elem()

	tmp := l.getTempName("items")
	stmts := []rust.Stmt{rust.LetName(tmp, false, nil, l.lowerExpr(value))}
	for i, name := range names {
		var x rust.Expr = &rust.Index{Recv: rust.Id(tmp), Index: rust.Int(int64(i))}
		if !elem.IsCopy() {
			x = rust.Clone(x)
		}

		l.ctx.SetVarType(name, elem)
		if l.isDeclared(name) || l.genFields[name] {
			stmts = append(stmts, rust.Semi(&rust.Assign{Op: "=", Left: l.lowerVar(&hir.Var{Name: name}), Right: x}))
		} else {
			l.declare(name)
			stmts = append(stmts, rust.LetName(rust.SafeIdent(name), l.ctx.MutableVars[name], nil, x))
		}
	}

	return stmts
}

// lowerAssignIndex lowers `container[index] = value`.
func (l *Lowerer) lowerAssignIndex(ix *hir.Index, value hir.Expr) []rust.Stmt {
	ct := l.exprType(ix.Value)
	recv := l.placeMut(ix.Value)

	switch {
	case ct.Is(hir.TDict):
		key := l.coerce(ix.Index, keyOf(ct))
		return []rust.Stmt{rust.Semi(rust.M(recv, "insert", key, l.coerce(value, ct.Value())))}
	case IsDyn(ct):
		return []rust.Stmt{rust.Semi(rust.M(recv, "insert", l.owned(ix.Index), l.owned(value)))}
	case ct.IsCustom(typeJSON):
		l.ctx.Need(prelude.SerdeJSON)
		var index rust.Expr
		if l.exprType(ix.Index).Is(hir.TString) {
			index = l.strArg(ix.Index)
		} else {
			index = l.usizeIndex(recv, ix.Index)
		}
		return []rust.Stmt{rust.Semi(&rust.Assign{
			Op:    "=",
			Left:  &rust.Index{Recv: recv, Index: index},
			Right: rust.CallPath("serde_json::Value::from", l.owned(value)),
		})}
	case ct.Is(hir.TString):
		l.fail(ix, "strings are immutable")
	}

	elem := ct.Elem()
	return []rust.Stmt{rust.Semi(&rust.Assign{
		Op:    "=",
		Left:  &rust.Index{Recv: recv, Index: l.usizeIndex(recv, ix.Index)},
		Right: l.coerce(value, elem),
	})}
}

// keyOf returns the key type used for stores into a dict of type t.
func keyOf(t *hir.Type) *hir.Type {
	if t.Key().Is(hir.TFloat) {
		return dynType
	}

	return t.Key()
}

// placeMut lowers e as a place that is written through.  Entries of dicts
// are reached through get_mut.
func (l *Lowerer) placeMut(e hir.Expr) rust.Expr {
	ix, ok := e.(*hir.Index)
	if !ok {
		return l.lowerExpr(e)
	}

	ct := l.exprType(ix.Value)
	if !ct.Is(hir.TDict) {
		return &rust.Index{Recv: l.placeMut(ix.Value), Index: l.usizeIndex(l.lowerExpr(ix.Value), ix.Index)}
	}

	recv := l.placeMut(ix.Value)
	if v, ok := ix.Value.(*hir.Var); ok && l.ctx.DefaultDicts[v.Name] {
		return rust.M(rust.M(recv, "entry", l.coerce(ix.Index, keyOf(ct))), "or_default")
	}

	return rust.M(rust.M(recv, "get_mut", l.keyArg(ix.Index, ct.Key())), "expect", rust.Str("KeyError"))
}

// lowerAssignAttr lowers `value.attr = x`.
func (l *Lowerer) lowerAssignAttr(a *hir.Attribute, value hir.Expr) []rust.Stmt {
	ft := l.attrType(a)
	if ft.IsUnknown() {
		// fields first assigned outside of __init__ take the value's type
		if t := l.exprType(a.Value); t.Is(hir.TCustom) {
			if fields, ok := l.ctx.ClassFieldTypes[t.Name]; ok {
				fields[a.Attr] = l.exprType(value)
			}
		}
	}

	if v, ok := a.Value.(*hir.Var); ok && l.ctx.ClassNames[v.Name] {
		l.fail(a, "class variables cannot be assigned")
	}

	place := rust.Fld(l.placeMut(a.Value), rust.SafeIdent(a.Attr))
	return []rust.Stmt{rust.Semi(&rust.Assign{Op: "=", Left: place, Right: l.coerce(value, ft)})}
}

// -----------------------------------------------------------------------------

// compoundOps are the operators with a Rust compound assignment on numbers.
var compoundOps = map[hir.BinOp]string{
	hir.OpAdd: "+=", hir.OpSub: "-=", hir.OpMul: "*=",
	hir.OpBitAnd: "&=", hir.OpBitOr: "|=", hir.OpBitXor: "^=",
	hir.OpLShift: "<<=", hir.OpRShift: ">>=",
}

// lowerAugAssign lowers `target op= value`.
func (l *Lowerer) lowerAugAssign(a *hir.AugAssign) []rust.Stmt {
	var stmts []rust.Stmt

	target, value := a.Target, a.Value

	// values stored into a locked global are computed before the lock is
	// taken
	if v, ok := target.(*hir.Var); ok && l.isGlobalWrite(v.Name) {
		if !l.ctx.Globals[v.Name] {
			l.fail(a, "module constant %s cannot be reassigned", v.Name)
		}

		tmp := l.getTempName("value")
		stmts = append(stmts, rust.LetName(tmp, false, nil, l.owned(value)))
		l.ctx.VarTypes[tmp] = l.exprType(value)
		value = hir.NewVar(tmp)

		if _, ok := compoundOps[a.Op]; !ok || !l.exprType(target).IsNumeric() {
			next := l.getTempName("value")
			stmts = append(stmts, rust.LetName(next, false, nil, l.lowerBinary(&hir.Binary{Base: a.Base, Op: a.Op, Left: target, Right: value})))
			return append(stmts, rust.Semi(&rust.Assign{Op: "=", Left: l.lowerVar(v), Right: rust.Id(next)}))
		}
	}

	tt := l.exprType(target)
	vt := l.exprType(value)

	var place rust.Expr
	switch t := target.(type) {
	case *hir.Var:
		if l.isDeclared(t.Name) || l.genFields[t.Name] {
			l.ctx.SetVarType(t.Name, l.binaryType(&hir.Binary{Op: a.Op, Left: target, Right: value}))
		}
		place = l.lowerVar(t)
		if l.ctx.MutOptionParams[t.Name] {
			place = rust.Deref(place)
		}
	case *hir.Index:
		if ct := l.exprType(t.Value); ct.Is(hir.TDict) {
			recv := l.placeMut(t.Value)
			if v, ok := t.Value.(*hir.Var); ok && l.ctx.DefaultDicts[v.Name] {
				place = rust.Deref(rust.M(rust.M(recv, "entry", l.coerce(t.Index, keyOf(ct))), "or_default"))
			} else {
				place = rust.Deref(rust.M(rust.M(recv, "get_mut", l.keyArg(t.Index, ct.Key())), "expect", rust.Str("KeyError")))
			}
		} else {
			place = l.placeMut(target)
		}
	case *hir.Attribute:
		place = rust.Fld(l.placeMut(t.Value), rust.SafeIdent(t.Attr))
	default:
		l.fail(a, "unsupported augmented assignment target")
	}

	switch {
	case a.Op == hir.OpAdd && tt.Is(hir.TString):
		if l.isCharVar(value) {
			return append(stmts, rust.Semi(rust.M(place, "push", l.lowerExpr(value))))
		}
		return append(stmts, rust.Semi(rust.M(place, "push_str", l.strArg(value))))
	case a.Op == hir.OpAdd && tt.Is(hir.TList):
		return append(stmts, rust.Semi(rust.M(place, "extend", l.iterOf(value))))
	case tt.Is(hir.TSet) && (a.Op == hir.OpBitOr || a.Op == hir.OpSub || a.Op == hir.OpBitAnd || a.Op == hir.OpBitXor):
		return append(stmts, l.lowerSetUpdate(place, a.Op, value)...)
	case IsDyn(tt):
		l.ctx.Need(prelude.ValueEnum)
		if op, ok := compoundOps[a.Op]; ok && a.Op != hir.OpLShift && a.Op != hir.OpRShift {
			l.ctx.Need(prelude.PyOps)
			return append(stmts, rust.Semi(&rust.Assign{Op: "=", Left: place, Right: rust.Bin(op[:len(op)-1], rust.Clone(place), l.coerce(value, dynType))}))
		}
	}

	if op, ok := compoundOps[a.Op]; ok && tt.IsNumeric() {
		rhs := l.lowerExpr(value)
		if tt.Is(hir.TFloat) && !vt.Is(hir.TFloat) {
			rhs = l.coerce(value, hir.Float)
		}
		return append(stmts, rust.Semi(&rust.Assign{Op: op, Left: place, Right: rhs}))
	}

	// everything else is spelled out as `target = target op value`
	bin := l.lowerBinary(&hir.Binary{Base: a.Base, Op: a.Op, Left: target, Right: value})
	return append(stmts, rust.Semi(&rust.Assign{Op: "=", Left: place, Right: bin}))
}

// lowerSetUpdate lowers the in-place set operators.
func (l *Lowerer) lowerSetUpdate(place rust.Expr, op hir.BinOp, value hir.Expr) []rust.Stmt {
	switch op {
	case hir.OpBitOr:
		return []rust.Stmt{rust.Semi(rust.M(place, "extend", l.iterOf(value)))}
	case hir.OpSub:
		other := l.argRef(value)
		return []rust.Stmt{rust.Semi(rust.M(place, "retain", rust.Lambda(false, []string{"x"}, rust.Not(rust.M(other, "contains", rust.Id("x"))))))}
	case hir.OpBitAnd:
		other := l.argRef(value)
		return []rust.Stmt{rust.Semi(rust.M(place, "retain", rust.Lambda(false, []string{"x"}, rust.M(other, "contains", rust.Id("x")))))}
	}

	return []rust.Stmt{rust.Semi(&rust.Assign{
		Op:    "=",
		Left:  place,
		Right: &rust.MethodCall{Recv: rust.M(rust.M(place, "symmetric_difference", l.argRef(value)), "cloned"), Method: "collect"},
	})}
}

// -----------------------------------------------------------------------------

// lowerReturn lowers a return statement: the value is converted to the
// declared return type and wrapped in Ok for functions returning Result.
// Pending finally bodies run before leaving.
func (l *Lowerer) lowerReturn(r *hir.Return) []rust.Stmt {
	if l.ctx.InGenerator {
		return []rust.Stmt{
			rust.Semi(&rust.Assign{Op: "=", Left: rust.Fld(rust.Id("self"), "state"), Right: rust.P("usize::MAX")}),
			rust.Semi(&rust.Return{X: rust.NoneVal()}),
		}
	}

	fn := l.fn
	ret := fn.ret

	var x rust.Expr
	switch {
	case fn.ctor:
		x = rust.Id(l.selfName)
	case r.Value == nil:
		if ret.Is(hir.TOptional) {
			x = rust.NoneVal()
		}
	case isNoneLit(r.Value) && !ret.Is(hir.TOptional) && !IsDyn(ret):
		// `return None` from a function returning nothing
	default:
		x = l.coerce(r.Value, ret)
	}

	if fn.result {
		if x == nil {
			x = rust.Unit()
		}
		x = rust.CallPath("Ok", x)
	}

	finally := l.runFinally(0)
	if len(finally) == 0 {
		return []rust.Stmt{rust.Semi(&rust.Return{X: x})}
	}

	var stmts []rust.Stmt
	if x != nil {
		tmp := l.getTempName("ret")
		stmts = append(stmts, rust.LetName(tmp, false, nil, x))
		x = rust.Id(tmp)
	}

	stmts = append(stmts, finally...)
	return append(stmts, rust.Semi(&rust.Return{X: x}))
}

// -----------------------------------------------------------------------------

// lowerIf lowers an if statement.  Tests of optional variables become
// conditional bindings that unwrap the variable inside the branch.
func (l *Lowerer) lowerIf(s *hir.If) []rust.Stmt {
	return []rust.Stmt{&rust.ExprStmt{X: l.lowerIfExpr0(s)}}
}

// lowerIfExpr0 lowers an if statement into an if expression so that elif
// chains nest as else branches.
func (l *Lowerer) lowerIfExpr0(s *hir.If) rust.Expr {
	if name, isSome, ok := l.optionTest(s.Test); ok {
		then, other := s.Body, s.Orelse
		if !isSome {
			then, other = other, then
		}

		if len(then) > 0 && !containsName(hir.AssignedNames(then), name) {
			return l.lowerIfLet(name, then, other)
		}
	}

	ifx := &rust.If{Cond: l.truthy(s.Test), Then: l.lowerBlock(s.Body)}
	ifx.Else = l.lowerElse(s.Orelse)
	return ifx
}

// lowerElse lowers an else branch, chaining elif.
func (l *Lowerer) lowerElse(orelse []hir.Stmt) rust.Expr {
	if len(orelse) == 0 {
		return nil
	}

	if len(orelse) == 1 {
		if elif, ok := orelse[0].(*hir.If); ok {
			return l.lowerIfExpr0(elif)
		}
	}

	return l.lowerBlock(orelse)
}

// optionTest recognizes `x is not None`, `x is None`, `x != None` and a
// bare optional `x` as tests of an optional variable.
func (l *Lowerer) optionTest(test hir.Expr) (name string, isSome bool, ok bool) {
	switch v := test.(type) {
	case *hir.Var:
		if l.ctx.IsOptional(v.Name) && !l.ctx.MutOptionParams[v.Name] && !l.genFields[v.Name] {
			return v.Name, true, true
		}
	case *hir.Binary:
		x, isVar := v.Left.(*hir.Var)
		if !isVar || !isNoneLit(v.Right) || !l.ctx.IsOptional(x.Name) || l.ctx.MutOptionParams[x.Name] || l.genFields[x.Name] {
			return "", false, false
		}

		switch v.Op {
		case hir.OpIsNot, hir.OpNotEq:
			return x.Name, true, true
		case hir.OpIs, hir.OpEq:
			return x.Name, false, true
		}
	}

	return "", false, false
}

// lowerIfLet lowers a branch taken when the optional variable name holds a
// value: the name is rebound to the unwrapped value inside it.
func (l *Lowerer) lowerIfLet(name string, then, other []hir.Stmt) rust.Expr {
	t := l.varType(name)
	inner := t.Inner()

	ident := rust.SafeIdent(name)
	var scrut rust.Expr = rust.Id(ident)
	if alias, ok := l.ctx.OptionUnwrapMap[name]; ok {
		scrut = rust.Id(alias)
	}

	byRef := !inner.IsCopy()
	if byRef {
		scrut = rust.Borrow(scrut)
	}

	savedAlias, hadAlias := l.ctx.OptionUnwrapMap[name]
	savedRef := l.ctx.RefVars[name]

	l.ctx.OptionUnwrapMap[name] = ident
	l.ctx.RefVars[name] = byRef
	body := l.lowerBlock(then)

	if hadAlias {
		l.ctx.OptionUnwrapMap[name] = savedAlias
	} else {
		delete(l.ctx.OptionUnwrapMap, name)
	}
	l.ctx.RefVars[name] = savedRef

	return &rust.IfLet{
		Pat:   &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{rust.Pat(ident)}},
		Scrut: scrut,
		Then:  body,
		Else:  l.lowerElse(other),
	}
}
