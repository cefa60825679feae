package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/trace"
)

// signature is the inferred calling convention of a function or method.
type signature struct {
	// params are the parameters without `self`/`cls` and types their
	// inferred types.
	params  []*hir.Param
	types   []*hir.Type
	borrows []Borrow

	ret       *hir.Type
	result    bool
	async     bool
	generator bool

	// receiver is the spelled out self parameter of methods or "" for
	// associated functions.
	receiver string
}

// sigs returns the signatures of the module's functions keyed by name and
// methods keyed by `Class.method`.
func (l *Lowerer) sigs() map[string]*signature {
	if l.signatures == nil {
		l.signatures = make(map[string]*signature)
	}

	return l.signatures
}

// collect is the top-down pre-pass over the module: it populates the context
// with imports, classes, module globals and function signatures.
func (l *Lowerer) collect() {
	l.collectImports(l.mod.Body)

	for _, stmt := range l.mod.Body {
		switch v := stmt.(type) {
		case *hir.FunctionDef:
			l.funcs[v.Name] = v
			l.ctx.FunctionParams[v.Name] = v.Params
			if v.IsAsync {
				l.ctx.AsyncFunctions[v.Name] = true
			}
		case *hir.ClassDef:
			l.registerClass(v)
		}
	}

	l.collectGlobals()
	l.collectMain()

	// signatures depend on each other through borrows and return types so
	// they are computed twice
	for round := 0; round < 2; round++ {
		for _, stmt := range l.mod.Body {
			if fd, ok := stmt.(*hir.FunctionDef); ok {
				l.collectSignature(fd, nil)
			}
		}

		for _, ci := range l.classOrder {
			for _, m := range ci.methods {
				l.collectSignature(m, ci)
			}
		}

		if round == 0 {
			for _, ci := range l.classOrder {
				l.layoutClass(ci)
			}
		}
	}
}

// collectImports records the imports of a body and of nested functions.
func (l *Lowerer) collectImports(body []hir.Stmt) {
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		switch v := s.(type) {
		case *hir.Import:
			l.collectImport(v)
		case *hir.FunctionDef:
			l.collectImports(v.Body)
		case *hir.ClassDef:
			for _, m := range v.Methods {
				l.collectImports(m.Body)
			}
		}
		return true
	}, nil)
}

// submodules are the dotted module paths importable by `from a import b`.
var submodules = map[string]bool{
	"os.path": true,
}

func (l *Lowerer) collectImport(imp *hir.Import) {
	if len(imp.Names) == 0 {
		if imp.Alias != "" {
			l.ctx.ImportedModules[imp.Alias] = imp.Module
		} else {
			head := strings.SplitN(imp.Module, ".", 2)[0]
			l.ctx.ImportedModules[head] = head
		}

		l.ctx.Tracer.Record(trace.ImportResolve, imp.Module, "module", nil, 1, imp.Span())
		return
	}

	for _, n := range imp.Names {
		bound := n.Alias
		if bound == "" {
			bound = n.Name
		}

		full := imp.Module + "." + n.Name
		if submodules[full] {
			l.ctx.ImportedModules[bound] = full
		} else {
			l.ctx.ImportedItems[bound] = full
		}

		l.ctx.Tracer.Record(trace.ImportResolve, full, "item", nil, 1, imp.Span())
	}
}

// knownModules are the modules recognized even when the import is missing
// from the HIR.
var knownModules = map[string]bool{
	"math": true, "re": true, "os": true, "sys": true, "json": true, "time": true,
	"random": true, "datetime": true, "asyncio": true, "hashlib": true,
	"string": true, "itertools": true, "functools": true, "colorsys": true,
	"csv": true, "collections": true, "pathlib": true, "shutil": true,
	"subprocess": true, "argparse": true, "binascii": true,
}

// classLikeItems are imported names that behave like modules when used as a
// receiver: `datetime.now()` after `from datetime import datetime`.
var classLikeItems = map[string]bool{
	"datetime.datetime":  true,
	"datetime.date":      true,
	"datetime.timedelta": true,
	"pathlib.Path":       true,
}

// moduleOf returns the module an expression refers to, if any.
func (l *Lowerer) moduleOf(e hir.Expr) (string, bool) {
	switch v := e.(type) {
	case *hir.Var:
		if l.isDeclared(v.Name) || l.ctx.VarTypes[v.Name] != nil {
			return "", false
		}

		if mod, ok := l.ctx.ImportedModules[v.Name]; ok {
			return mod, true
		}

		if item, ok := l.ctx.ImportedItems[v.Name]; ok && classLikeItems[item] {
			return item, true
		}

		switch v.Name {
		case "int", "dict", "str", "float":
			return v.Name, true
		}

		if knownModules[v.Name] {
			return v.Name, true
		}
	case *hir.Attribute:
		if mod, ok := l.moduleOf(v.Value); ok {
			switch full := mod + "." + v.Attr; full {
			case "os.path", "datetime.datetime", "datetime.date", "datetime.timedelta":
				return full, true
			}
		}
	}

	return "", false
}

// -----------------------------------------------------------------------------

// collectGlobals finds the module level variables that functions refer to:
// they become items rather than locals of the entry point.
func (l *Lowerer) collectGlobals() {
	topAssigns := make(map[string]int)
	var order []string
	for _, stmt := range l.mod.Body {
		if a, ok := stmt.(*hir.Assign); ok {
			if v, ok := a.Target.(*hir.Var); ok {
				if topAssigns[v.Name] == 0 {
					order = append(order, v.Name)
					l.ctx.SetVarType(v.Name, l.declaredType(a))
					l.globalInits[v.Name] = a
				}
				topAssigns[v.Name]++
			}
		}
	}

	referenced := make(map[string]bool)
	mutated := make(map[string]bool)
	visit := func(fd *hir.FunctionDef) {
		mf := l.mutationFacts(fd.Body)
		locals := make(map[string]bool)
		for _, p := range fd.Params {
			locals[p.Name] = true
		}
		for name := range mf.assigns {
			if !mf.globals[name] {
				locals[name] = true
			}
		}

		hir.InspectStmts(fd.Body, nil, func(e hir.Expr) bool {
			if v, ok := e.(*hir.Var); ok && !locals[v.Name] {
				referenced[v.Name] = true
			}
			return true
		})

		for name := range mf.globals {
			referenced[name] = true
			if mf.assigns[name] > 0 {
				mutated[name] = true
			}
		}

		for name := range mf.mutated {
			if !locals[name] {
				mutated[name] = true
			}
		}
	}

	for _, stmt := range l.mod.Body {
		switch v := stmt.(type) {
		case *hir.FunctionDef:
			visit(v)
		case *hir.ClassDef:
			for _, m := range v.Methods {
				visit(m)
			}
		}
	}

	for _, name := range order {
		if referenced[name] {
			l.ctx.Globals[name] = mutated[name] || topAssigns[name] > 1
		}
	}
}

// collectMain decides what becomes of a Python `main` function: it is the
// entry point itself when the module only calls it, otherwise it is renamed
// so the generated entry point can call it.
func (l *Lowerer) collectMain() {
	fd, ok := l.funcs["main"]
	if !ok {
		return
	}

	var top []hir.Stmt
	for _, stmt := range l.mod.Body {
		switch v := stmt.(type) {
		case *hir.Import, *hir.FunctionDef, *hir.ClassDef, *hir.Pass:
		case *hir.Assign:
			if tv, ok := v.Target.(*hir.Var); ok {
				if _, global := l.ctx.Globals[tv.Name]; global {
					continue
				}
			}
			top = append(top, v)
		case *hir.If:
			if isMainGuard(v.Test) {
				top = append(top, v.Body...)
			} else {
				top = append(top, v)
			}
		case *hir.ExprStmt:
			if _, ok := v.Value.(*hir.StrLit); !ok {
				top = append(top, v)
			}
		default:
			top = append(top, stmt)
		}
	}

	onlyCall := false
	if len(top) == 1 {
		if es, ok := top[0].(*hir.ExprStmt); ok {
			if c, ok := es.Value.(*hir.Call); ok && c.Func == "main" && len(c.Args) == 0 {
				onlyCall = true
			}
		}
	}

	if onlyCall && len(fd.Params) == 0 && (fd.Ret == nil || fd.Ret.Is(hir.TNone)) && !returnsValue(fd.Body) {
		l.userMain = "main"
		l.mainIsEntry = true
	} else {
		l.userMain = "py_main"
	}
}

// returnsValue tests whether a body returns a value anywhere.
func returnsValue(body []hir.Stmt) bool {
	found := false
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		if r, ok := s.(*hir.Return); ok && r.Value != nil {
			if _, isNone := r.Value.(*hir.NoneLit); !isNone {
				found = true
			}
		}
		return !found
	}, nil)

	return found
}

// declaredType returns the type an assignment gives its target.
func (l *Lowerer) declaredType(a *hir.Assign) *hir.Type {
	if a.Annot != nil {
		return a.Annot
	}

	return l.exprType(a.Value)
}

// -----------------------------------------------------------------------------

// collectSignature infers the calling convention of a function.
func (l *Lowerer) collectSignature(fd *hir.FunctionDef, ci *classInfo) {
	key := fd.Name
	if ci != nil {
		key = ci.name + "." + fd.Name
	}

	sig := &signature{
		async:     fd.IsAsync && l.ctx.Mode == ModeAsync,
		generator: hir.ContainsYield(fd.Body),
	}

	static := ci != nil && (fd.HasDecorator("staticmethod") || fd.HasDecorator("classmethod"))
	for i, p := range fd.Params {
		if ci != nil && i == 0 && !fd.HasDecorator("staticmethod") {
			continue
		}
		sig.params = append(sig.params, p)
	}

	saved := l.ctx.enterFunction()
	savedFn := l.fn
	l.fn = &funcInfo{name: key, class: ci}
	defer func() {
		l.ctx.exitFunction(saved)
		l.fn = savedFn
	}()

	for _, p := range sig.params {
		t := l.inferParamType(fd, p)
		sig.types = append(sig.types, t)
		l.ctx.SetVarType(p.Name, t)
	}

	mf := l.mutationFacts(fd.Body)
	for i, p := range sig.params {
		b := BorrowOwned
		if !sig.generator {
			b = l.paramBorrow(sig.types[i], mf.assigns[p.Name] > 0, mf.mutated[p.Name])
		}
		sig.borrows = append(sig.borrows, b)

		l.ctx.Tracer.Record(trace.BorrowStrategy, key+"."+p.Name, borrowNames[b], nil, 0.9, fd.Span())
	}

	if ci != nil && !static && fd.Name != "__init__" {
		if mf.selfMutated || fd.Name == "__next__" {
			sig.receiver = "&mut self"
		} else {
			sig.receiver = "&self"
		}
	}

	switch {
	case fd.Ret != nil && !(sig.generator && !fd.Ret.Is(hir.TGeneric)):
		sig.ret = fd.Ret
	case sig.generator:
		sig.ret = hir.GenericOf("Iterator", l.yieldType(fd.Body))
	default:
		sig.ret = l.inferReturn(fd.Body)
	}

	sig.result = !sig.generator && fd.Name != "__init__" && fd.Name != "__next__" && raisesUncaught(fd.Body)

	l.sigs()[key] = sig
	l.ctx.FunctionReturnTypes[key] = sig.ret
	l.ctx.FunctionParamBorrows[key] = sig.borrows
	l.ctx.ResultReturningFunctions[key] = sig.result
	l.ctx.OptionReturningFunctions[key] = sig.ret.Is(hir.TOptional)
}

var borrowNames = [...]string{
	BorrowOwned:  "owned",
	BorrowShared: "shared-ref",
	BorrowMut:    "mut-ref",
	BorrowStr:    "str-slice",
}

// inferParamType returns the type of a parameter: its annotation, the type
// of its default, or the dynamic value type.  Bare list annotations get an
// element type from how the parameter is iterated.
func (l *Lowerer) inferParamType(fd *hir.FunctionDef, p *hir.Param) *hir.Type {
	t := p.Type
	if t == nil {
		if p.Default != nil {
			if _, isNone := p.Default.(*hir.NoneLit); isNone {
				return hir.OptionalOf(dynType)
			}
			return l.exprType(p.Default)
		}

		l.ctx.Tracer.Record(trace.TypeMapping, fd.Name+"."+p.Name, "DepylerValue", nil, 0.5, fd.Span())
		return dynType
	}

	if t.IsUnknown() {
		return dynType
	}

	if (t.Is(hir.TList) || t.Is(hir.TSet)) && t.Elem() == nil {
		elem := inferElemFromUsage(fd.Body, p.Name)
		l.ctx.Tracer.Record(trace.TypeMapping, fd.Name+"."+p.Name+"[elem]", elem.Repr(), nil, 0.7, fd.Span())
		if elem == nil {
			elem = dynType
		}

		if t.Is(hir.TList) {
			return hir.ListOf(elem)
		}
		return hir.SetOf(elem)
	}

	return t
}

// inferElemFromUsage infers the element type of a container from how the
// variables iterating over it are used.
func inferElemFromUsage(body []hir.Stmt, name string) *hir.Type {
	var targets []string
	isOver := func(iter hir.Expr) bool {
		v, ok := iter.(*hir.Var)
		return ok && v.Name == name
	}

	var found *hir.Type
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		if f, ok := s.(*hir.For); ok && isOver(f.Iter) {
			targets = append(targets, hir.TargetNames(f.Target)...)
		}
		return true
	}, func(e hir.Expr) bool {
		if c, ok := e.(*hir.Comprehension); ok {
			for _, gen := range c.Generators {
				if isOver(gen.Iter) {
					targets = append(targets, hir.TargetNames(gen.Target)...)
				}
			}
		}
		if c, ok := e.(*hir.Call); ok && (c.Func == "sum") && len(c.Args) == 1 && isOver(c.Args[0]) {
			found = hir.Int
		}
		return true
	})

	if found != nil {
		return found
	}

	for _, target := range targets {
		if t := usageType(body, target); t != nil {
			return t
		}
	}

	return nil
}

// usageType infers the type of a variable from the literals it is combined
// with and the methods called on it.
func usageType(body []hir.Stmt, name string) *hir.Type {
	isName := func(e hir.Expr) bool {
		v, ok := e.(*hir.Var)
		return ok && v.Name == name
	}

	litType := func(e hir.Expr) *hir.Type {
		switch e.(type) {
		case *hir.IntLit:
			return hir.Int
		case *hir.FloatLit:
			return hir.Float
		case *hir.StrLit:
			return hir.Str
		}
		return nil
	}

	var t *hir.Type
	hir.InspectStmts(body, nil, func(e hir.Expr) bool {
		if t != nil {
			return false
		}

		switch v := e.(type) {
		case *hir.Binary:
			if v.Op == hir.OpAnd || v.Op == hir.OpOr {
				break
			}
			if isName(v.Left) {
				t = litType(v.Right)
			} else if isName(v.Right) {
				t = litType(v.Left)
			}
		case *hir.MethodCall:
			if isName(v.Recv) && isStringOnlyMethod(v.Method) {
				t = hir.Str
			}
		}
		return t == nil
	})

	return t
}

// inferReturn infers the return type of an unannotated function from the
// values it returns.
func (l *Lowerer) inferReturn(body []hir.Stmt) *hir.Type {
	l.scanTypes(body)

	var t *hir.Type
	sawValue, sawNone := false, false
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		if r, ok := s.(*hir.Return); ok {
			if r.Value == nil {
				sawNone = true
			} else if _, ok := r.Value.(*hir.NoneLit); ok {
				sawNone = true
			} else {
				sawValue = true
				t = unify(t, l.exprType(r.Value))
			}
		}
		return true
	}, nil)

	switch {
	case !sawValue:
		return hir.NoneType
	case sawNone && t != nil && !t.Is(hir.TOptional):
		return hir.OptionalOf(t)
	case t == nil:
		return dynType
	}

	return t
}

// yieldType infers the item type of a generator.
func (l *Lowerer) yieldType(body []hir.Stmt) *hir.Type {
	l.scanTypes(body)

	var t *hir.Type
	hir.InspectStmts(body, nil, func(e hir.Expr) bool {
		if y, ok := e.(*hir.Yield); ok && y.Value != nil {
			t = unify(t, l.exprType(y.Value))
		}
		return true
	})

	if t == nil {
		return dynType
	}

	return t
}

// scanTypes records the types of the variables assigned in a body without
// lowering it.
func (l *Lowerer) scanTypes(body []hir.Stmt) {
	hir.InspectStmts(body, func(s hir.Stmt) bool {
		switch v := s.(type) {
		case *hir.Assign:
			l.bindTarget(v.Target, l.declaredType(v))
		case *hir.For:
			l.bindTarget(v.Target, l.iterElemType(v.Iter))
		case *hir.With:
			for _, item := range v.Items {
				if item.Name != "" {
					l.ctx.SetVarType(item.Name, l.exprType(item.Context))
				}
			}
		case *hir.ExprStmt:
			l.refineFromUse(v.Value)
		}
		return true
	}, nil)
}

// refineFromUse refines the element type of containers from the values
// added to them.
func (l *Lowerer) refineFromUse(e hir.Expr) {
	mc, ok := e.(*hir.MethodCall)
	if !ok {
		return
	}

	v, ok := mc.Recv.(*hir.Var)
	if !ok {
		return
	}

	if _, isMod := l.moduleOf(v); isMod {
		return
	}

	t := l.ctx.VarType(v.Name)
	if t.IsUnknown() {
		l.ctx.SetVarType(v.Name, l.ambiguousRecvType(mc))
		return
	}

	if len(mc.Args) == 0 {
		return
	}

	arg := mc.Args[len(mc.Args)-1]
	switch {
	case t.Is(hir.TList) && (mc.Method == "append" || mc.Method == "insert"):
		l.ctx.SetVarType(v.Name, hir.ListOf(l.exprType(arg)))
	case t.Is(hir.TSet) && mc.Method == "add":
		l.ctx.SetVarType(v.Name, hir.SetOf(l.exprType(arg)))
	case t.Is(hir.TGeneric) && t.Name == "deque" && (mc.Method == "append" || mc.Method == "appendleft"):
		l.ctx.SetVarType(v.Name, hir.GenericOf("deque", l.exprType(arg)))
	}
}

// raisesUncaught tests whether a body raises outside of a try statement
// with handlers: such functions return Result.
func raisesUncaught(stmts []hir.Stmt) bool {
	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *hir.Raise:
			return true
		case *hir.If:
			if raisesUncaught(v.Body) || raisesUncaught(v.Orelse) {
				return true
			}
		case *hir.While:
			if raisesUncaught(v.Body) {
				return true
			}
		case *hir.For:
			if raisesUncaught(v.Body) || raisesUncaught(v.Orelse) {
				return true
			}
		case *hir.With:
			if raisesUncaught(v.Body) {
				return true
			}
		case *hir.Try:
			if len(v.Handlers) == 0 && raisesUncaught(v.Body) {
				return true
			}
			for _, h := range v.Handlers {
				if raisesUncaught(h.Body) {
					return true
				}
			}
			if raisesUncaught(v.Orelse) || raisesUncaught(v.Finally) {
				return true
			}
		}
	}

	return false
}
