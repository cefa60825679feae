package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// classInfo is the collected layout of a user class.
type classInfo struct {
	name string
	def  *hir.ClassDef

	// base is the user class this class derives from or "".
	base string

	// fields are the instance fields in declaration order: inherited fields
	// first, then dataclass fields, then fields assigned through `self`.
	fields   []*fieldInfo
	fieldIdx map[string]*fieldInfo

	// methods are the methods of the class including inherited ones.
	methods []*hir.FunctionDef

	classVars []*classVarInfo

	dataclass   bool
	isException bool
}

type fieldInfo struct {
	name string
	ty   *hir.Type
}

// classVarInfo is a class level variable.  Literal values become associated
// constants, others associated functions building the value.
type classVarInfo struct {
	name  string
	ty    *hir.Type
	value hir.Expr
	fn    bool
}

func (ci *classInfo) addField(name string, t *hir.Type) {
	if f, ok := ci.fieldIdx[name]; ok {
		f.ty = unify(f.ty, t)
		return
	}

	f := &fieldInfo{name: name, ty: t}
	ci.fields = append(ci.fields, f)
	ci.fieldIdx[name] = f
}

func (ci *classInfo) classVar(name string) *classVarInfo {
	for _, cv := range ci.classVars {
		if cv.name == name {
			return cv
		}
	}

	return nil
}

func (ci *classInfo) method(name string) *hir.FunctionDef {
	for _, m := range ci.methods {
		if m.Name == name {
			return m
		}
	}

	return nil
}

func (ci *classInfo) hasMethod(name string) bool {
	return ci.method(name) != nil
}

// hasDisplay tests whether instances print with `{}`.
func (ci *classInfo) hasDisplay() bool {
	return ci.hasMethod("__str__") || ci.hasMethod("__repr__")
}

// isIterator tests whether the class implements the iterator protocol.
func (ci *classInfo) isIterator() bool {
	return ci.hasMethod("__next__")
}

// ignoredBases are base classes that add nothing to the layout.
var ignoredBases = map[string]bool{
	"object": true, "ABC": true, "Generic": true, "Protocol": true,
	"NamedTuple": true, "Enum": true,
}

// registerClass records a class in the context before any signature is
// collected.
func (l *Lowerer) registerClass(cd *hir.ClassDef) {
	ci := &classInfo{
		name:      cd.Name,
		def:       cd,
		fieldIdx:  make(map[string]*fieldInfo),
		dataclass: cd.HasDecorator("dataclass") || cd.HasDecorator("dataclasses.dataclass"),
	}

	l.ctx.ClassNames[cd.Name] = true

	var bases []string
	for _, b := range cd.Bases {
		if !ignoredBases[b] {
			bases = append(bases, b)
		}
	}
	if len(bases) > 1 {
		l.fail(cd, "class %s: multiple inheritance is not supported", cd.Name)
	}

	if len(bases) == 1 {
		b := bases[0]
		_, userException := l.ctx.ExceptionClasses[b]
		switch {
		case isBuiltinException(b) || userException:
			ci.isException = true
			l.ctx.ExceptionClasses[cd.Name] = b
		case l.classes[b] != nil:
			ci.base = b
		default:
			l.fail(cd, "class %s: unknown base class %s", cd.Name, b)
		}
	}

	methods := make(map[string]bool)
	for _, m := range cd.Methods {
		for _, dec := range m.Decorators {
			if strings.HasSuffix(dec, ".setter") || strings.HasSuffix(dec, ".deleter") {
				l.fail(m, "property setters are not supported")
			}
		}

		methods[m.Name] = true
		ci.methods = append(ci.methods, m)
		if m.HasDecorator("property") {
			l.ctx.PropertyMethods[cd.Name+"."+m.Name] = true
		}
	}

	if base := l.classes[ci.base]; base != nil {
		for _, m := range base.methods {
			if !methods[m.Name] {
				ci.methods = append(ci.methods, m)
				methods[m.Name] = true
				if l.ctx.PropertyMethods[base.name+"."+m.Name] {
					l.ctx.PropertyMethods[cd.Name+"."+m.Name] = true
				}
			}
		}

		// overridden methods reached through super() are kept under a
		// prefixed name
		for _, name := range superCalls(cd.Methods) {
			if m := base.method(name); m != nil && name != "__init__" {
				renamed := *m
				renamed.Name = "super_" + strings.Trim(name, "_")
				ci.methods = append(ci.methods, &renamed)
			}
		}
	}

	if ci.dataclass && !methods["__init__"] {
		ci.methods = append(ci.methods, dataclassInit(cd))
	}

	for _, a := range cd.ClassVars {
		v, ok := a.Target.(*hir.Var)
		if !ok {
			l.fail(a, "unsupported class variable target")
		}

		cv := &classVarInfo{name: v.Name, ty: l.declaredType(a), value: a.Value}
		if cv.ty.IsUnknown() {
			cv.ty = dynType
		}
		cv.fn = !isConstExpr(a.Value)
		ci.classVars = append(ci.classVars, cv)
	}

	names := make(map[string]bool, len(ci.methods))
	for _, m := range ci.methods {
		names[m.Name] = true
	}
	l.ctx.ClassMethodNames[cd.Name] = names

	l.classes[cd.Name] = ci
	l.classOrder = append(l.classOrder, ci)
}

// superCalls returns the methods called through `super()` in methods.
func superCalls(methods []*hir.FunctionDef) []string {
	var out []string
	for _, m := range methods {
		hir.InspectStmts(m.Body, nil, func(e hir.Expr) bool {
			if mc, ok := e.(*hir.MethodCall); ok && isSuperCall(mc.Recv) && !containsName(out, mc.Method) {
				out = append(out, mc.Method)
			}
			return true
		})
	}

	return out
}

func isSuperCall(e hir.Expr) bool {
	c, ok := e.(*hir.Call)
	return ok && c.Func == "super"
}

// dataclassInit synthesizes the constructor of a dataclass: one parameter
// per field assigned to the field.
func dataclassInit(cd *hir.ClassDef) *hir.FunctionDef {
	fd := &hir.FunctionDef{
		Base:   cd.Base,
		Name:   "__init__",
		Params: []*hir.Param{{Name: "self"}},
	}

	for _, f := range cd.Fields {
		fd.Params = append(fd.Params, &hir.Param{Name: f.Name, Type: f.Type, Default: f.Default})
		fd.Body = append(fd.Body, &hir.Assign{
			Base:   cd.Base,
			Target: &hir.Attribute{Base: cd.Base, Value: hir.NewVar("self"), Attr: f.Name},
			Value:  hir.NewVar(f.Name),
		})
	}

	return fd
}

// isConstExpr tests whether e can initialize a Rust constant.
func isConstExpr(e hir.Expr) bool {
	switch v := e.(type) {
	case *hir.IntLit, *hir.FloatLit, *hir.StrLit, *hir.BoolLit:
		return true
	case *hir.Unary:
		return v.Op == hir.OpNeg && isConstExpr(v.Operand)
	}

	return false
}

// layoutClass decides the fields of a class from the dataclass fields and
// every `self.x = ...` assignment in its methods.
func (l *Lowerer) layoutClass(ci *classInfo) {
	fieldTypes := make(map[string]*hir.Type)
	l.ctx.ClassFieldTypes[ci.name] = fieldTypes

	add := func(name string, t *hir.Type) {
		ci.addField(name, t)
		fieldTypes[name] = ci.fieldIdx[name].ty
	}

	if base := l.classes[ci.base]; base != nil {
		for _, f := range base.fields {
			add(f.name, f.ty)
		}
	}

	if ci.dataclass {
		for _, f := range ci.def.Fields {
			add(f.Name, f.Type)
		}
	}

	for _, m := range ci.methods {
		key := ci.name + "." + m.Name
		sig := l.sigs()[key]

		saved := l.ctx.enterFunction()
		savedFn := l.fn
		l.fn = &funcInfo{name: key, class: ci}

		if sig != nil {
			for i, p := range sig.params {
				l.ctx.SetVarType(p.Name, sig.types[i])
			}
		}
		l.scanTypes(m.Body)

		hir.InspectStmts(m.Body, func(s hir.Stmt) bool {
			if a, ok := s.(*hir.Assign); ok {
				if attr, ok := a.Target.(*hir.Attribute); ok {
					if v, ok := attr.Value.(*hir.Var); ok && v.Name == "self" {
						add(attr.Attr, l.declaredType(a))
					}
				}
			}
			return true
		}, nil)

		l.fn = savedFn
		l.ctx.exitFunction(saved)
	}

	for _, f := range ci.fields {
		switch {
		case f.ty.Is(hir.TNone):
			f.ty = hir.OptionalOf(dynType)
		case f.ty.IsUnknown():
			f.ty = dynType
		}
		fieldTypes[f.name] = f.ty

		l.ctx.Tracer.Record(trace.TypeMapping, ci.name+"."+f.name, f.ty.Repr(), nil, 0.8, ci.def.Span())
	}
}

// -----------------------------------------------------------------------------

// dunderNames maps the special methods kept as inherent methods to their
// Rust names.
var dunderNames = map[string]string{
	"__len__":      "len",
	"__contains__": "contains",
	"__getitem__":  "get_item",
	"__setitem__":  "set_item",
	"__iter__":     "iter",
	"__call__":     "call",
	"__enter__":    "enter",
	"__exit__":     "exit",
}

// methodName returns the Rust name of a method.
func methodName(name string) string {
	if rn, ok := dunderNames[name]; ok {
		return rn
	}

	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4 {
		return "py_" + name[2:len(name)-2]
	}

	return rust.SafeIdent(name)
}

// lowerClass lowers a class into a struct, its inherent impl and the trait
// impls its special methods ask for.  Exception classes only exist as
// exception kinds.
func (l *Lowerer) lowerClass(cd *hir.ClassDef) []rust.Item {
	ci := l.classes[cd.Name]
	if ci.isException {
		l.ctx.Need(prelude.Exceptions)
		return nil
	}

	name := rust.SafeIdent(ci.name)

	derive := "derive(Debug, Clone)"
	if l.defaultable(hir.CustomOf(ci.name)) {
		derive = "derive(Debug, Clone, Default)"
	}

	st := &rust.Struct{
		Doc:   cd.Docstring,
		Attrs: []string{derive},
		Pub:   true,
		Name:  name,
	}
	for _, f := range ci.fields {
		st.Fields = append(st.Fields, rust.StructField{Name: rust.SafeIdent(f.name), Ty: l.fieldType(f.ty), Pub: true})
	}

	impl := &rust.Impl{For: rust.T(name)}
	for _, cv := range ci.classVars {
		impl.Items = append(impl.Items, l.lowerClassVar(cv))
	}

	if !ci.hasMethod("__init__") {
		if !l.defaultable(hir.CustomOf(ci.name)) {
			l.fail(cd, "class %s has fields without a default value and no __init__", ci.name)
		}
		impl.Items = append(impl.Items, &rust.Fn{
			Pub:  true,
			Name: "new",
			Ret:  rust.T("Self"),
			Body: rust.BlockOf(rust.CallPath("Self::default")),
		})
	}

	items := []rust.Item{st, impl}
	for _, m := range ci.methods {
		switch m.Name {
		case "__init__":
			impl.Items = append(impl.Items, l.lowerInit(ci, m))
		case "__next__":
			items = append(items, l.lowerIteratorImpl(ci, m))
		case "__iter__":
			if ci.isIterator() && returnsSelf(m) {
				continue
			}
			impl.Items = append(impl.Items, l.lowerMethod(ci, m))
		default:
			impl.Items = append(impl.Items, l.lowerMethod(ci, m))
		}
	}

	if ci.hasDisplay() {
		show := "__str__"
		if !ci.hasMethod(show) {
			show = "__repr__"
		}

		items = append(items, &rust.Impl{
			Trait: rust.T("std::fmt::Display"),
			For:   rust.T(name),
			Items: []rust.Item{&rust.Fn{
				Name:     "fmt",
				Receiver: "&self",
				Params:   []rust.Param{{Pat: rust.Pat("f"), Ty: rust.TRefMut(rust.T("std::fmt::Formatter"))}},
				Ret:      rust.T("std::fmt::Result"),
				Body: rust.BlockOf(&rust.Macro{Name: "write", Args: []rust.Expr{
					rust.Id("f"), rust.Str("{}"), rust.M(rust.Id("self"), methodName(show)),
				}}),
			}},
		})
	}

	return items
}

// defaultable tests whether the Rust type of t implements Default.
func (l *Lowerer) defaultable(t *hir.Type) bool {
	if t == nil {
		return true
	}

	switch t.Kind {
	case hir.TInt, hir.TFloat, hir.TBool, hir.TString, hir.TOptional, hir.TNone, hir.TUnknown:
		return true
	case hir.TList, hir.TSet, hir.TDict, hir.TTuple:
		for _, arg := range t.Args {
			if !l.defaultable(arg) {
				return false
			}
		}
		return true
	case hir.TGeneric:
		return t.Name == "deque" || t.Name == "range"
	case hir.TCustom:
		switch t.Name {
		case dynTypeName, typeTimeDelta, typePath, typeJSON, typeBytes:
			return true
		}

		ci, ok := l.classes[t.Name]
		if !ok || ci.isException || l.visiting[t.Name] {
			return false
		}

		if l.visiting == nil {
			l.visiting = make(map[string]bool)
		}
		l.visiting[t.Name] = true
		defer delete(l.visiting, t.Name)

		for _, f := range ci.fields {
			if !l.defaultable(f.ty) {
				return false
			}
		}
		return true
	}

	return false
}

// returnsSelf tests whether a method body is `return self`.
func returnsSelf(fd *hir.FunctionDef) bool {
	if len(fd.Body) != 1 {
		return false
	}

	r, ok := fd.Body[0].(*hir.Return)
	if !ok {
		return false
	}

	v, ok := r.Value.(*hir.Var)
	return ok && v.Name == "self"
}

// lowerClassVar lowers a class variable into an associated item.
func (l *Lowerer) lowerClassVar(cv *classVarInfo) rust.Item {
	if !cv.fn {
		ty := l.rustType(cv.ty)
		if cv.ty.Is(hir.TString) {
			ty = rust.TRef(rust.T("str"))
		}

		var value rust.Expr
		if s, ok := cv.value.(*hir.StrLit); ok {
			value = rust.Str(s.Value)
		} else {
			value = l.coerce(cv.value, cv.ty)
		}

		return &rust.Const{Pub: true, Name: rust.SafeIdent(cv.name), Ty: ty, Value: value}
	}

	saved := l.ctx.enterFunction()
	defer l.ctx.exitFunction(saved)

	return &rust.Fn{
		Pub:  true,
		Name: rust.SafeIdent(cv.name),
		Ret:  l.rustType(cv.ty),
		Body: rust.BlockOf(l.coerce(cv.value, cv.ty)),
	}
}

// -----------------------------------------------------------------------------

// enterMethod installs the function state for a method body.
func (l *Lowerer) enterMethod(ci *classInfo, m *hir.FunctionDef) (*signature, func()) {
	key := ci.name + "." + m.Name
	sig := l.sigs()[key]

	saved := l.ctx.enterFunction()
	l.fn = &funcInfo{
		name:    key,
		ret:     sig.ret,
		result:  sig.result,
		async:   sig.async,
		class:   ci,
		globals: make(map[string]bool),
	}

	l.ctx.IsClassmethod = m.HasDecorator("classmethod")

	return sig, func() {
		l.fn = nil
		l.selfName = "self"
		l.ctx.exitFunction(saved)
	}
}

// lowerMethod lowers an ordinary, static or class method.
func (l *Lowerer) lowerMethod(ci *classInfo, m *hir.FunctionDef) rust.Item {
	sig, exit := l.enterMethod(ci, m)
	defer exit()

	if sig.generator {
		l.fail(m, "generator methods are not supported")
	}

	fn := &rust.Fn{
		Doc:      m.Docstring,
		Pub:      true,
		Async:    sig.async,
		Name:     methodName(m.Name),
		Receiver: sig.receiver,
		Ret:      l.returnType(sig.ret, sig.result),
	}
	fn.Params, fn.Body = l.lowerFuncBody(m, sig)

	l.ctx.Tracer.Record(trace.MethodDispatch, ci.name+"."+m.Name, fn.Name, nil, 1, m.Span())
	return fn
}

// lowerInit lowers `__init__` into the `new` constructor.  The leading
// field assignments that do not read `self` initialize the struct literal;
// the rest of the body runs on the built instance.
func (l *Lowerer) lowerInit(ci *classInfo, m *hir.FunctionDef) rust.Item {
	sig, exit := l.enterMethod(ci, m)
	defer exit()

	l.fn.ctor = true
	l.fn.ret = hir.CustomOf(ci.name)

	l.scopes = nil
	l.tries, l.loops = nil, nil
	l.pushScope()
	defer l.popScope()

	l.bindParams(sig)
	l.analyzeBody(m.Body, sig)
	l.prepareBody(m.Body)

	params := make([]rust.Param, len(sig.params))
	for i, p := range sig.params {
		params[i] = rust.Param{
			Pat: &rust.IdentPat{Name: rust.SafeIdent(p.Name), Mut: l.ctx.MutableVars[p.Name] && sig.borrows[i] != BorrowMut},
			Ty:  l.paramType(sig.types[i], sig.borrows[i]),
		}
	}

	n := 0
	for ; n < len(m.Body); n++ {
		a, ok := m.Body[n].(*hir.Assign)
		if !ok {
			break
		}

		attr, ok := a.Target.(*hir.Attribute)
		if !ok || !isSelf(attr.Value) || hir.UsesName(a.Value, "self") {
			break
		}
	}

	lit := &rust.StructLit{Name: "Self"}
	set := make(map[string]bool)
	for i, stmt := range m.Body[:n] {
		a := stmt.(*hir.Assign)
		attr := a.Target.(*hir.Attribute)
		ft := ci.fieldIdx[attr.Attr].ty

		var value rust.Expr
		if v, ok := a.Value.(*hir.Var); ok && !ft.IsCopy() && stmtsUse(m.Body[i+1:], v.Name) {
			value = rust.Clone(l.lowerExpr(v))
		} else {
			value = l.coerce(a.Value, ft)
		}

		if set[attr.Attr] {
			for j := range lit.Fields {
				if lit.Fields[j].Name == rust.SafeIdent(attr.Attr) {
					lit.Fields[j].Value = value
				}
			}
			continue
		}

		set[attr.Attr] = true
		lit.Fields = append(lit.Fields, rust.FieldInit{Name: rust.SafeIdent(attr.Attr), Value: value})
	}

	if len(set) < len(ci.fields) {
		if !l.defaultable(hir.CustomOf(ci.name)) {
			l.fail(m, "fields of %s must be assigned before they are read in __init__", ci.name)
		}
		lit.Base = rust.CallPath("Default::default")
	}

	fn := &rust.Fn{
		Doc:    m.Docstring,
		Pub:    true,
		Name:   "new",
		Params: params,
		Ret:    rust.T("Self"),
	}

	rest := m.Body[n:]
	if len(rest) == 0 {
		fn.Body = rust.BlockOf(lit)
		return fn
	}

	l.selfName = "this"
	if l.isDeclared("this") {
		l.selfName = l.getTempName("this")
	}

	stmts := []rust.Stmt{rust.LetName(l.selfName, true, nil, lit)}
	stmts = append(stmts, l.lowerStmts(rest)...)

	if k := len(stmts); k > 0 {
		if es, ok := stmts[k-1].(*rust.ExprStmt); ok {
			if _, ok := es.X.(*rust.Return); ok {
				stmts = stmts[:k-1]
			}
		}
	}

	fn.Body = rust.BlockOf(rust.Id(l.selfName), stmts...)
	return fn
}

// stmtsUse tests whether the statements read the variable name.
func stmtsUse(stmts []hir.Stmt, name string) bool {
	found := false
	hir.InspectStmts(stmts, nil, func(e hir.Expr) bool {
		if v, ok := e.(*hir.Var); ok && v.Name == name {
			found = true
		}
		return !found
	})

	return found
}

func isSelf(e hir.Expr) bool {
	v, ok := e.(*hir.Var)
	return ok && v.Name == "self"
}

// lowerSuperInit lowers `super().__init__(args)` inside a constructor: the
// base instance is built and its fields copied over.
func (l *Lowerer) lowerSuperInit(mc *hir.MethodCall) rust.Expr {
	ci := l.fn.class
	base := l.classes[ci.base]
	if base == nil {
		l.fail(mc, "super() used in a class without a base class")
	}

	tmp := l.getTempName("base")
	call := &hir.Call{Base: mc.Base, Func: base.name, Args: mc.Args, Kwargs: mc.Kwargs}

	stmts := []rust.Stmt{rust.LetName(tmp, false, nil, l.lowerConstructor(call))}
	for _, f := range base.fields {
		field := rust.SafeIdent(f.name)
		stmts = append(stmts, rust.Semi(&rust.Assign{
			Op:    "=",
			Left:  rust.Fld(rust.Id(l.selfName), field),
			Right: rust.Fld(rust.Id(tmp), field),
		}))
	}

	return rust.BlockOf(nil, stmts...)
}

// lowerIteratorImpl lowers `__next__` into an Iterator impl.
func (l *Lowerer) lowerIteratorImpl(ci *classInfo, m *hir.FunctionDef) rust.Item {
	sig, exit := l.enterMethod(ci, m)
	defer exit()

	item := sig.ret
	if item.Is(hir.TOptional) {
		item = item.Inner()
	}
	if item.IsUnknown() || item.Is(hir.TNone) {
		item = dynType
	}

	l.fn.ret = hir.OptionalOf(item)
	l.fn.result = false
	l.ctx.InIteratorNext = true

	_, body := l.lowerFuncBody(m, sig)
	name := rust.SafeIdent(ci.name)

	return &rust.Impl{
		Trait: rust.T("Iterator"),
		For:   rust.T(name),
		Items: []rust.Item{
			&rust.TypeAlias{Name: "Item", Ty: l.rustType(item)},
			&rust.Fn{
				Name:     "next",
				Receiver: "&mut self",
				Ret:      rust.T("Option", l.rustType(item)),
				Body:     body,
			},
		},
	}
}
