package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
)

// Custom type names used by inference for library values.
const (
	typeDateTime  = "datetime"
	typeDate      = "date"
	typeTimeDelta = "timedelta"
	typeMatch     = "Match"
	typePattern   = "Pattern"
	typePath      = "Path"
	typeFile      = "File"
	typeWriter    = "Writer"
	typeStat      = "stat_result"
	typeJSON      = "JsonValue"
	typeBytes     = "bytes"
	typeHasher    = "hasher"
	typeCSVReader = "csv.reader"
	typeCSVDict   = "csv.DictReader"
	typeCSVWriter = "csv.writer"
	typeArgParser = "ArgumentParser"
	typeArgs      = "Namespace"
	typeException = "PyException"
)

// exprType infers the type of an expression from the facts recorded so far.
// It returns nil when nothing is known.
func (l *Lowerer) exprType(e hir.Expr) *hir.Type {
	switch v := e.(type) {
	case *hir.IntLit:
		return hir.Int
	case *hir.FloatLit:
		return hir.Float
	case *hir.StrLit:
		return hir.Str
	case *hir.BytesLit:
		return hir.CustomOf(typeBytes)
	case *hir.BoolLit:
		return hir.Bool
	case *hir.NoneLit:
		return hir.NoneType
	case *hir.Var:
		return l.varType(v.Name)
	case *hir.Binary:
		return l.binaryType(v)
	case *hir.Unary:
		if v.Op == hir.OpNot {
			return hir.Bool
		}
		return l.exprType(v.Operand)
	case *hir.Call:
		return l.callType(v)
	case *hir.MethodCall:
		return l.methodType(v)
	case *hir.Attribute:
		return l.attrType(v)
	case *hir.Index:
		return l.indexType(v)
	case *hir.Slice:
		return l.exprType(v.Value)
	case *hir.Borrow:
		return l.exprType(v.Value)
	case *hir.ListExpr:
		return hir.ListOf(l.unifyExprs(v.Elems))
	case *hir.SetExpr:
		return hir.SetOf(l.unifyExprs(v.Elems))
	case *hir.TupleExpr:
		elems := make([]*hir.Type, len(v.Elems))
		for i, elem := range v.Elems {
			elems[i] = l.exprType(elem)
		}
		return hir.TupleOf(elems...)
	case *hir.DictExpr:
		return hir.DictOf(l.unifyExprs(v.Keys), l.unifyExprs(v.Values))
	case *hir.Comprehension:
		return l.comprehensionType(v)
	case *hir.Lambda:
		return l.lambdaType(v)
	case *hir.IfExpr:
		return l.ifExprType(v)
	case *hir.FString:
		return hir.Str
	case *hir.Await:
		return l.exprType(v.Value)
	case *hir.NamedExpr:
		return l.exprType(v.Value)
	case *hir.SortByKey:
		return hir.ListOf(l.iterElemType(v.Iterable))
	}

	return nil
}

// varType returns the type of a variable, including the implicit types of
// char loop variables and function names.
func (l *Lowerer) varType(name string) *hir.Type {
	if l.ctx.CharIterVars[name] {
		return hir.Str
	}

	if t := l.ctx.VarType(name); t != nil {
		return t
	}

	if name == "self" && l.fn != nil && l.fn.class != nil {
		return hir.CustomOf(l.fn.class.name)
	}

	if l.ctx.ClassNames[name] {
		return nil
	}

	if sig, ok := l.sigs()[name]; ok {
		return hir.FuncOf(sig.types, sig.ret)
	}

	return nil
}

// unify combines the types of two values that may flow into the same place.
// Conflicting known types unify to the dynamic value type.
func unify(a, b *hir.Type) *hir.Type {
	switch {
	case a.IsUnknown():
		return b
	case b.IsUnknown():
		return a
	case a.Equals(b):
		return a
	case a.IsMoreSpecific(b):
		return a
	case b.IsMoreSpecific(a):
		return b
	case a.IsNumeric() && b.IsNumeric():
		return hir.Float
	case a.Is(hir.TNone):
		if b.Is(hir.TOptional) {
			return b
		}
		return hir.OptionalOf(b)
	case b.Is(hir.TNone):
		if a.Is(hir.TOptional) {
			return a
		}
		return hir.OptionalOf(a)
	case a.Is(hir.TOptional) && a.Inner().Equals(b):
		return a
	case b.Is(hir.TOptional) && b.Inner().Equals(a):
		return b
	}

	return dynType
}

// unifyExprs unifies the types of a sequence of expressions.
func (l *Lowerer) unifyExprs(es []hir.Expr) *hir.Type {
	var t *hir.Type
	for _, e := range es {
		t = unify(t, l.exprType(e))
	}

	return t
}

// withBindings runs f with the variables bound by target given types derived
// from elem, restoring the previous types afterwards.
func (l *Lowerer) withBindings(target hir.Expr, elem *hir.Type, f func()) {
	names := hir.TargetNames(target)
	saved := make(map[string]*hir.Type, len(names))
	had := make(map[string]bool, len(names))
	for _, n := range names {
		saved[n], had[n] = l.ctx.VarTypes[n]
		delete(l.ctx.VarTypes, n)
	}

	l.bindTarget(target, elem)
	f()

	for _, n := range names {
		if had[n] {
			l.ctx.VarTypes[n] = saved[n]
		} else {
			delete(l.ctx.VarTypes, n)
		}
	}
}

// bindTarget records the types of the variables bound by target.
func (l *Lowerer) bindTarget(target hir.Expr, t *hir.Type) {
	switch v := target.(type) {
	case *hir.Var:
		l.ctx.SetVarType(v.Name, t)
	case *hir.TupleExpr:
		for i, elem := range v.Elems {
			var et *hir.Type
			if t.Is(hir.TTuple) && i < len(t.Args) {
				et = t.Args[i]
			} else if IsDyn(t) {
				et = dynType
			} else if t.Is(hir.TList) {
				et = t.Elem()
			}
			l.bindTarget(elem, et)
		}
	}
}

func (l *Lowerer) comprehensionType(c *hir.Comprehension) *hir.Type {
	var result *hir.Type
	var bind func(i int)
	bind = func(i int) {
		if i == len(c.Generators) {
			switch c.Kind {
			case hir.CompList:
				result = hir.ListOf(l.exprType(c.Element))
			case hir.CompSet:
				result = hir.SetOf(l.exprType(c.Element))
			case hir.CompDict:
				result = hir.DictOf(l.exprType(c.Key), l.exprType(c.Element))
			default:
				result = hir.GenericOf("Iterator", l.exprType(c.Element))
			}
			return
		}

		gen := c.Generators[i]
		l.withBindings(gen.Target, l.iterElemType(gen.Iter), func() { bind(i + 1) })
	}

	bind(0)
	return result
}

// iterElemType infers the type of the items produced by iterating e.
func (l *Lowerer) iterElemType(e hir.Expr) *hir.Type {
	switch v := e.(type) {
	case *hir.Call:
		switch v.Func {
		case "range":
			return hir.Int
		case "enumerate":
			if len(v.Args) > 0 {
				return hir.TupleOf(hir.Int, l.iterElemType(v.Args[0]))
			}
		case "zip":
			elems := make([]*hir.Type, len(v.Args))
			for i, arg := range v.Args {
				elems[i] = l.iterElemType(arg)
			}
			return hir.TupleOf(elems...)
		case "reversed", "sorted", "list", "set", "iter", "tuple", "filter":
			if len(v.Args) > 0 {
				return l.iterElemType(v.Args[len(v.Args)-1])
			}
		case "open":
			return hir.Str
		case "map":
			return l.mapElemType(v)
		}
	case *hir.MethodCall:
		rt := l.exprType(v.Recv)
		switch {
		case v.Method == "items" && (rt.Is(hir.TDict) || rt == nil):
			return hir.TupleOf(rt.Key(), rt.Value())
		case v.Method == "keys" && rt.Is(hir.TDict):
			return rt.Key()
		case v.Method == "values" && rt.Is(hir.TDict):
			return rt.Value()
		}
	case *hir.Var:
		switch {
		case l.ctx.FileVars[v.Name]:
			return hir.Str
		case l.ctx.CSVReaderVars[v.Name]:
			if t := l.varType(v.Name); t.IsCustom(typeCSVDict) {
				return hir.DictOf(hir.Str, hir.Str)
			}
			return hir.ListOf(hir.Str)
		case l.ctx.JSONValueVars[v.Name]:
			return hir.CustomOf(typeJSON)
		}
	}

	t := l.exprType(e)
	switch {
	case IsDyn(t):
		return dynType
	case t.IsCustom(typeFile):
		return hir.Str
	case t.IsCustom(typeJSON):
		return hir.CustomOf(typeJSON)
	case t.Is(hir.TTuple):
		var elem *hir.Type
		for _, arg := range t.Args {
			elem = unify(elem, arg)
		}
		return elem
	}

	return t.Elem()
}

// -----------------------------------------------------------------------------

func (l *Lowerer) binaryType(b *hir.Binary) *hir.Type {
	if b.Op.IsComparison() {
		return hir.Bool
	}

	lt, rt := l.exprType(b.Left), l.exprType(b.Right)
	if IsDyn(lt) || IsDyn(rt) {
		return dynType
	}

	switch b.Op {
	case hir.OpAnd, hir.OpOr:
		if lt.Is(hir.TBool) && rt.Is(hir.TBool) {
			return hir.Bool
		}
		if lt.Is(hir.TOptional) {
			return unify(lt.Inner(), rt)
		}
		return unify(lt, rt)
	case hir.OpAdd:
		if lt.Is(hir.TString) || lt.Is(hir.TList) {
			return unify(lt, rt)
		}
	case hir.OpMul:
		if lt.Is(hir.TString) || lt.Is(hir.TList) {
			return lt
		} else if rt.Is(hir.TString) || rt.Is(hir.TList) {
			return rt
		}
	case hir.OpDiv:
		if lt.IsCustom(typePath) {
			return lt
		}
		return hir.Float
	case hir.OpMod:
		if lt.Is(hir.TString) {
			return hir.Str
		}
	case hir.OpPow:
		if lt.Is(hir.TInt) && rt.Is(hir.TInt) {
			if lit, ok := b.Right.(*hir.Unary); ok && lit.Op == hir.OpNeg {
				return hir.Float
			}
			return hir.Int
		}
	case hir.OpBitAnd, hir.OpBitOr, hir.OpBitXor, hir.OpSub:
		if lt.Is(hir.TSet) || lt.Is(hir.TDict) {
			return lt
		}
		if lt.Is(hir.TBool) && rt.Is(hir.TBool) && b.Op != hir.OpSub {
			return hir.Bool
		}
	case hir.OpLShift, hir.OpRShift:
		return hir.Int
	}

	switch {
	case lt.IsNumeric() && rt.IsNumeric():
		if lt.Is(hir.TFloat) || rt.Is(hir.TFloat) {
			return hir.Float
		}
		return hir.Int
	case lt.IsNumeric() && rt.IsUnknown():
		return lt
	case rt.IsNumeric() && lt.IsUnknown():
		return rt
	case lt.Is(hir.TBool) && rt.IsNumeric():
		return rt
	}

	return nil
}

func (l *Lowerer) indexType(ix *hir.Index) *hir.Type {
	t := l.exprType(ix.Value)
	switch {
	case t.Is(hir.TDict):
		return t.Value()
	case t.Is(hir.TTuple):
		if n, ok := intLiteral(ix.Index); ok {
			if n < 0 {
				n += int64(len(t.Args))
			}
			if n >= 0 && int(n) < len(t.Args) {
				return t.Args[n]
			}
		}
		return nil
	case IsDyn(t):
		return dynType
	case t.IsCustom(typeJSON):
		return t
	case t.IsCustom(typeBytes):
		return hir.Int
	case l.isArgsValue(ix.Value):
		return nil
	}

	return t.Elem()
}

// intLiteral extracts the value of an integer literal, including negated
// literals.
func intLiteral(e hir.Expr) (int64, bool) {
	switch v := e.(type) {
	case *hir.IntLit:
		return v.Value, true
	case *hir.Unary:
		if v.Op == hir.OpNeg {
			if n, ok := intLiteral(v.Operand); ok {
				return -n, true
			}
		}
	}

	return 0, false
}

// -----------------------------------------------------------------------------

// builtinTypes are the result types of builtins that do not depend on their
// arguments.
var builtinTypes = map[string]*hir.Type{
	"len":        hir.Int,
	"ord":        hir.Int,
	"hash":       hir.Int,
	"int":        hir.Int,
	"float":      hir.Float,
	"str":        hir.Str,
	"chr":        hir.Str,
	"input":      hir.Str,
	"repr":       hir.Str,
	"hex":        hir.Str,
	"bin":        hir.Str,
	"oct":        hir.Str,
	"format":     hir.Str,
	"ascii":      hir.Str,
	"bool":       hir.Bool,
	"isinstance": hir.Bool,
	"any":        hir.Bool,
	"all":        hir.Bool,
	"callable":   hir.Bool,
	"print":      hir.NoneType,
	"open":       hir.CustomOf(typeFile),
	"Path":       hir.CustomOf(typePath),
	"bytes":      hir.CustomOf(typeBytes),
	"bytearray":  hir.CustomOf(typeBytes),
}

func (l *Lowerer) callType(c *hir.Call) *hir.Type {
	arg := func(n int) hir.Expr {
		if n < len(c.Args) {
			return c.Args[n]
		}
		return nil
	}

	if l.ctx.ClassNames[c.Func] {
		return hir.CustomOf(c.Func)
	}

	if c.Func == "cls" && l.ctx.IsClassmethod && l.fn != nil && l.fn.class != nil {
		return hir.CustomOf(l.fn.class.name)
	}

	if _, ok := l.ctx.ExceptionClasses[c.Func]; ok || isBuiltinException(c.Func) {
		return hir.CustomOf(typeException)
	}

	if sig, ok := l.sigs()[c.Func]; ok {
		return sig.ret
	}

	if item, ok := l.ctx.ImportedItems[c.Func]; ok {
		if dot := strings.LastIndexByte(item, '.'); dot > 0 {
			return l.moduleCallType(item[:dot], item[dot+1:], c.Args)
		}
	}

	if t, ok := l.ctx.VarTypes[c.Func]; ok && t.Is(hir.TFunction) {
		return t.Ret
	}

	if t, ok := builtinTypes[c.Func]; ok {
		return t
	}

	switch c.Func {
	case "abs":
		return l.exprType(arg(0))
	case "round":
		if len(c.Args) > 1 {
			return hir.Float
		}
		return hir.Int
	case "min", "max":
		if len(c.Args) == 1 {
			return l.iterElemType(c.Args[0])
		}
		return l.unifyExprs(c.Args)
	case "sum":
		if len(c.Args) > 0 {
			if t := l.iterElemType(c.Args[0]); t != nil {
				return t
			}
		}
		return hir.Int
	case "sorted", "reversed", "list", "tuple":
		if len(c.Args) == 0 {
			return hir.ListOf(nil)
		}
		return hir.ListOf(l.iterElemType(c.Args[0]))
	case "set", "frozenset":
		if len(c.Args) == 0 {
			return hir.SetOf(nil)
		}
		return hir.SetOf(l.iterElemType(c.Args[0]))
	case "dict":
		if len(c.Args) == 1 {
			if et := l.iterElemType(c.Args[0]); et.Is(hir.TTuple) && len(et.Args) == 2 {
				return hir.DictOf(et.Args[0], et.Args[1])
			}
			return l.exprType(c.Args[0])
		}
		return hir.DictOf(nil, nil)
	case "range":
		return hir.GenericOf("range", hir.Int)
	case "enumerate", "zip", "map", "filter", "iter":
		if c.Func == "map" {
			return hir.GenericOf("Iterator", l.mapElemType(c))
		}
		return hir.GenericOf("Iterator", l.iterElemType(c))
	case "next":
		return l.iterElemType(arg(0))
	case "divmod":
		t := l.unifyExprs(c.Args)
		return hir.TupleOf(t, t)
	case "pow":
		if len(c.Args) >= 2 {
			return l.binaryType(&hir.Binary{Op: hir.OpPow, Left: c.Args[0], Right: c.Args[1]})
		}
	}

	if mod, fn, ok := l.collectionsCall(c.Func); ok {
		return l.moduleCallType(mod, fn, c.Args)
	}

	return nil
}

// mapElemType infers the type of the items of `map(f, xs)` from the result
// type of f.
func (l *Lowerer) mapElemType(c *hir.Call) *hir.Type {
	if len(c.Args) != 2 {
		return dynType
	}

	switch f := c.Args[0].(type) {
	case *hir.Lambda:
		var t *hir.Type
		l.withBindings(lambdaTarget(f), l.iterElemType(c.Args[1]), func() {
			t = l.exprType(f.Body)
		})
		return t
	case *hir.Var:
		if f.Name == "abs" {
			return l.iterElemType(c.Args[1])
		}
		if t, ok := builtinTypes[f.Name]; ok {
			return t
		}
		if sig, ok := l.sigs()[f.Name]; ok {
			return sig.ret
		}
		if t := l.ctx.VarType(f.Name); t.Is(hir.TFunction) {
			return t.Ret
		}
	}

	return dynType
}

// lambdaTarget builds the assignment target matching the parameters of a
// lambda.
func lambdaTarget(lam *hir.Lambda) hir.Expr {
	if len(lam.Params) == 1 {
		return hir.NewVar(lam.Params[0])
	}

	elems := make([]hir.Expr, len(lam.Params))
	for i, p := range lam.Params {
		elems[i] = hir.NewVar(p)
	}

	return hir.NewTuple(elems...)
}

// collectionsCall resolves bare names imported from the collections family.
func (l *Lowerer) collectionsCall(name string) (string, string, bool) {
	if item, ok := l.ctx.ImportedItems[name]; ok {
		if dot := strings.LastIndexByte(item, '.'); dot > 0 {
			return item[:dot], item[dot+1:], true
		}
	}

	switch name {
	case "Counter", "deque", "defaultdict", "OrderedDict":
		return "collections", name, true
	}

	return "", "", false
}

// moduleCallType infers the result type of `module.fn(args)`.
func (l *Lowerer) moduleCallType(mod, fn string, args []hir.Expr) *hir.Type {
	arg := func(n int) hir.Expr {
		if n < len(args) {
			return args[n]
		}
		return nil
	}

	switch mod {
	case "math":
		switch fn {
		case "floor", "ceil", "trunc", "factorial", "gcd", "lcm", "comb", "perm", "isqrt":
			return hir.Int
		case "isnan", "isinf", "isfinite", "isclose":
			return hir.Bool
		}
		return hir.Float
	case "random":
		switch fn {
		case "randint", "randrange":
			return hir.Int
		case "choice":
			return l.iterElemType(arg(0))
		case "sample", "choices":
			return hir.ListOf(l.iterElemType(arg(0)))
		case "shuffle", "seed":
			return hir.NoneType
		}
		return hir.Float
	case "json":
		if fn == "dumps" {
			return hir.Str
		}
		if fn == "loads" || fn == "load" {
			return hir.CustomOf(typeJSON)
		}
	case "os":
		switch fn {
		case "getcwd":
			return hir.Str
		case "listdir":
			return hir.ListOf(hir.Str)
		case "getenv":
			if len(args) > 1 {
				return hir.Str
			}
			return hir.OptionalOf(hir.Str)
		}
	case "os.path":
		switch fn {
		case "exists", "isfile", "isdir", "isabs":
			return hir.Bool
		case "getsize", "getmtime":
			if fn == "getmtime" {
				return hir.Float
			}
			return hir.Int
		case "splitext", "split":
			return hir.TupleOf(hir.Str, hir.Str)
		}
		return hir.Str
	case "re":
		switch fn {
		case "search", "match", "fullmatch":
			return hir.OptionalOf(hir.CustomOf(typeMatch))
		case "findall", "split":
			return hir.ListOf(hir.Str)
		case "finditer":
			return hir.ListOf(hir.CustomOf(typeMatch))
		case "compile":
			return hir.CustomOf(typePattern)
		case "sub", "escape":
			return hir.Str
		case "subn":
			return hir.TupleOf(hir.Str, hir.Int)
		}
	case "datetime":
		switch fn {
		case "date":
			return hir.CustomOf(typeDate)
		case "timedelta":
			return hir.CustomOf(typeTimeDelta)
		}
		return hir.CustomOf(typeDateTime)
	case "datetime.datetime":
		return hir.CustomOf(typeDateTime)
	case "datetime.date":
		return hir.CustomOf(typeDate)
	case "datetime.timedelta":
		return hir.CustomOf(typeTimeDelta)
	case "time":
		switch fn {
		case "sleep":
			return hir.NoneType
		case "strftime", "ctime":
			return hir.Str
		}
		return hir.Float
	case "hashlib":
		return hir.CustomOf(typeHasher)
	case "asyncio":
		switch fn {
		case "run":
			return l.exprType(arg(0))
		case "gather":
			elems := make([]*hir.Type, len(args))
			for i, a := range args {
				elems[i] = l.exprType(a)
			}
			return hir.TupleOf(elems...)
		}
		return hir.NoneType
	case "collections":
		switch fn {
		case "Counter":
			return hir.DictOf(l.iterElemType(arg(0)), hir.Int)
		case "deque":
			if len(args) == 0 {
				return hir.GenericOf("deque", nil)
			}
			return hir.GenericOf("deque", l.iterElemType(args[0]))
		case "defaultdict":
			return hir.DictOf(nil, defaultFactoryType(arg(0)))
		case "OrderedDict":
			return hir.DictOf(nil, nil)
		}
	case "itertools":
		return hir.GenericOf("Iterator", l.iterElemType(arg(0)))
	case "functools":
		if fn == "reduce" {
			return l.iterElemType(arg(1))
		}
	case "colorsys":
		return hir.TupleOf(hir.Float, hir.Float, hir.Float)
	case "csv":
		switch fn {
		case "reader":
			return hir.CustomOf(typeCSVReader)
		case "DictReader":
			return hir.CustomOf(typeCSVDict)
		case "writer", "DictWriter":
			return hir.CustomOf(typeCSVWriter)
		}
	case "pathlib":
		return hir.CustomOf(typePath)
	case "argparse":
		return hir.CustomOf(typeArgParser)
	case "int":
		return hir.Int
	case "dict":
		if fn == "fromkeys" {
			var vt *hir.Type
			if len(args) > 1 {
				vt = l.exprType(args[1])
			}
			return hir.DictOf(l.iterElemType(arg(0)), vt)
		}
	case "sys":
		if fn == "exit" {
			return hir.NoneType
		}
	case "string", "shutil", "subprocess":
		return nil
	}

	return nil
}

// defaultFactoryType returns the value type produced by a defaultdict
// factory.
func defaultFactoryType(factory hir.Expr) *hir.Type {
	v, ok := factory.(*hir.Var)
	if !ok {
		return nil
	}

	switch v.Name {
	case "int":
		return hir.Int
	case "float":
		return hir.Float
	case "str":
		return hir.Str
	case "list":
		return hir.ListOf(nil)
	case "set":
		return hir.SetOf(nil)
	case "dict":
		return hir.DictOf(nil, nil)
	}

	return nil
}

// stringMethodTypes maps str methods to their result types.
var stringMethodTypes = map[string]*hir.Type{
	"upper": hir.Str, "lower": hir.Str, "strip": hir.Str, "lstrip": hir.Str,
	"rstrip": hir.Str, "replace": hir.Str, "title": hir.Str, "capitalize": hir.Str,
	"swapcase": hir.Str, "center": hir.Str, "ljust": hir.Str, "rjust": hir.Str,
	"zfill": hir.Str, "join": hir.Str, "format": hir.Str, "casefold": hir.Str,
	"removeprefix": hir.Str, "removesuffix": hir.Str, "expandtabs": hir.Str,
	"split": hir.ListOf(hir.Str), "rsplit": hir.ListOf(hir.Str),
	"splitlines": hir.ListOf(hir.Str),
	"startswith": hir.Bool, "endswith": hir.Bool, "isdigit": hir.Bool,
	"isalpha": hir.Bool, "isalnum": hir.Bool, "isspace": hir.Bool,
	"isupper": hir.Bool, "islower": hir.Bool, "isnumeric": hir.Bool,
	"isdecimal": hir.Bool, "isidentifier": hir.Bool, "istitle": hir.Bool,
	"find": hir.Int, "rfind": hir.Int, "index": hir.Int, "rindex": hir.Int,
	"count": hir.Int,
	"encode":    hir.CustomOf(typeBytes),
	"partition": hir.TupleOf(hir.Str, hir.Str, hir.Str),
}

func (l *Lowerer) methodType(mc *hir.MethodCall) *hir.Type {
	if mod, ok := l.moduleOf(mc.Recv); ok {
		return l.moduleCallType(mod, mc.Method, mc.Args)
	}

	rt := l.exprType(mc.Recv)
	if IsDyn(rt) {
		if t, ok := stringMethodTypes[mc.Method]; ok {
			return t
		}
		return dynType
	}

	if rt.Is(hir.TCustom) && l.ctx.ClassNames[rt.Name] {
		if sig, ok := l.sigs()[rt.Name+"."+mc.Method]; ok {
			return sig.ret
		}
		return nil
	}

	switch {
	case rt.Is(hir.TString):
		if t, ok := stringMethodTypes[mc.Method]; ok {
			return t
		}
	case rt.Is(hir.TList):
		switch mc.Method {
		case "pop":
			return rt.Elem()
		case "index", "count":
			return hir.Int
		case "copy":
			return rt
		}
		return hir.NoneType
	case rt.Is(hir.TDict):
		switch mc.Method {
		case "get":
			if len(mc.Args) > 1 {
				return unify(rt.Value(), l.exprType(mc.Args[1]))
			}
			return hir.OptionalOf(rt.Value())
		case "keys":
			return hir.ListOf(rt.Key())
		case "values":
			return hir.ListOf(rt.Value())
		case "items":
			return hir.ListOf(hir.TupleOf(rt.Key(), rt.Value()))
		case "pop", "setdefault":
			return rt.Value()
		case "copy":
			return rt
		}
		return hir.NoneType
	case rt.Is(hir.TSet):
		switch mc.Method {
		case "union", "intersection", "difference", "symmetric_difference", "copy":
			return rt
		case "issubset", "issuperset", "isdisjoint":
			return hir.Bool
		case "pop":
			return rt.Elem()
		}
		return hir.NoneType
	case rt.Is(hir.TGeneric) && rt.Name == "deque":
		switch mc.Method {
		case "pop", "popleft":
			return rt.Elem()
		}
		return hir.NoneType
	case rt.IsCustom(typeMatch):
		switch mc.Method {
		case "group":
			return hir.Str
		case "groups":
			return hir.ListOf(hir.Str)
		case "start", "end":
			return hir.Int
		case "span":
			return hir.TupleOf(hir.Int, hir.Int)
		}
	case rt.IsCustom(typePattern):
		return l.moduleCallType("re", mc.Method, nil)
	case rt.IsCustom(typeDateTime), rt.IsCustom(typeDate), rt.IsCustom(typeTimeDelta):
		return dateMethodType(rt, mc.Method)
	case rt.IsCustom(typePath):
		switch mc.Method {
		case "exists", "is_file", "is_dir", "is_absolute":
			return hir.Bool
		case "read_text", "as_posix":
			return hir.Str
		case "read_bytes":
			return hir.CustomOf(typeBytes)
		case "open":
			return hir.CustomOf(typeFile)
		case "stat":
			return hir.CustomOf(typeStat)
		case "iterdir", "glob", "rglob":
			return hir.ListOf(rt)
		case "write_text", "mkdir", "unlink", "touch":
			return hir.NoneType
		}
		return rt
	case rt.IsCustom(typeFile), rt.IsCustom(typeWriter):
		switch mc.Method {
		case "read", "readline":
			return hir.Str
		case "readlines":
			return hir.ListOf(hir.Str)
		}
		return hir.NoneType
	case rt.IsCustom(typeJSON):
		return rt
	case rt.IsCustom(typeHasher):
		if mc.Method == "hexdigest" {
			return hir.Str
		}
	case rt.Is(hir.TInt):
		switch mc.Method {
		case "bit_length", "bit_count":
			return hir.Int
		}
	case rt.Is(hir.TFloat):
		if mc.Method == "is_integer" {
			return hir.Bool
		}
	case rt.IsCustom(typeArgParser), argParserMethods[mc.Method]:
		switch mc.Method {
		case "parse_args":
			return hir.CustomOf(typeArgs)
		case "add_mutually_exclusive_group", "add_argument_group":
			return hir.CustomOf(typeArgParser)
		}
	}

	if rt.IsUnknown() {
		if t, ok := stringMethodTypes[mc.Method]; ok && isStringOnlyMethod(mc.Method) {
			return t
		}

		if mc.Method == "hexdigest" {
			return hir.Str
		}
	}

	return nil
}

// dateMethodType infers the result of a date/time instance method.
func dateMethodType(rt *hir.Type, method string) *hir.Type {
	switch method {
	case "isoformat", "strftime", "time", "ctime":
		return hir.Str
	case "timestamp", "total_seconds":
		return hir.Float
	case "date":
		return hir.CustomOf(typeDate)
	case "weekday", "isoweekday", "toordinal":
		return hir.Int
	case "replace":
		return rt
	}

	return nil
}

// isStringOnlyMethod tests whether a method name exists only on strings so
// that the receiver can be assumed to be one.
func isStringOnlyMethod(method string) bool {
	switch method {
	case "upper", "lower", "strip", "lstrip", "rstrip", "startswith", "endswith",
		"split", "rsplit", "splitlines", "isdigit", "isalpha", "isalnum", "isspace",
		"isupper", "islower", "capitalize", "title", "swapcase", "center", "ljust",
		"rjust", "zfill", "find", "rfind", "join", "encode", "casefold",
		"removeprefix", "removesuffix", "partition", "isnumeric", "isdecimal":
		return true
	}

	return false
}

// moduleConstantTypes maps module constants to their types.
var moduleConstantTypes = map[string]*hir.Type{
	"math.pi": hir.Float, "math.e": hir.Float, "math.tau": hir.Float,
	"math.inf": hir.Float, "math.nan": hir.Float,
	"sys.argv": hir.ListOf(hir.Str), "sys.platform": hir.Str,
	"sys.maxsize": hir.Int, "sys.version_info": hir.TupleOf(hir.Int, hir.Int),
	"os.sep": hir.Str, "os.linesep": hir.Str, "os.environ": hir.DictOf(hir.Str, hir.Str),
	"re.I": hir.Int, "re.IGNORECASE": hir.Int, "re.M": hir.Int, "re.MULTILINE": hir.Int,
	"re.S": hir.Int, "re.DOTALL": hir.Int, "re.X": hir.Int, "re.VERBOSE": hir.Int,
	"re.A": hir.Int, "re.ASCII": hir.Int,
}

func (l *Lowerer) attrType(a *hir.Attribute) *hir.Type {
	if mod, ok := l.moduleOf(a.Value); ok {
		if mod == "string" {
			return hir.Str
		}
		return moduleConstantTypes[mod+"."+a.Attr]
	}

	vt := l.recvType(a.Value)
	if vt.Is(hir.TCustom) {
		if fields, ok := l.ctx.ClassFieldTypes[vt.Name]; ok {
			if t, ok := fields[a.Attr]; ok {
				return t
			}
			if l.ctx.PropertyMethods[vt.Name+"."+a.Attr] {
				if sig, ok := l.sigs()[vt.Name+"."+a.Attr]; ok {
					return sig.ret
				}
			}
			if ci, ok := l.classes[vt.Name]; ok {
				if cv := ci.classVar(a.Attr); cv != nil {
					return cv.ty
				}
			}
			return nil
		}
	}

	if v, ok := a.Value.(*hir.Var); ok && l.ctx.ClassNames[v.Name] {
		if ci, ok := l.classes[v.Name]; ok {
			if cv := ci.classVar(a.Attr); cv != nil {
				return cv.ty
			}
		}
	}

	switch {
	case vt.IsCustom(typeDateTime), vt.IsCustom(typeDate), vt.IsCustom(typeTimeDelta):
		switch a.Attr {
		case "year", "month", "day", "hour", "minute", "second", "microsecond", "days", "seconds", "microseconds":
			return hir.Int
		}
	case vt.IsCustom(typePath):
		switch a.Attr {
		case "name", "stem", "suffix":
			return hir.Str
		case "parent":
			return vt
		case "parts":
			return hir.ListOf(hir.Str)
		}
	case vt.IsCustom(typeStat):
		switch a.Attr {
		case "st_size", "st_mode":
			return hir.Int
		case "st_mtime", "st_atime", "st_ctime":
			return hir.Float
		}
	case vt.IsCustom(typeArgs):
		return l.ctx.ArgParser.fieldType(a.Attr)
	}

	return nil
}

// isArgsValue tests whether e is a parsed argparse namespace.
func (l *Lowerer) isArgsValue(e hir.Expr) bool {
	return l.exprType(e).IsCustom(typeArgs)
}

// isBuiltinException tests whether name is a builtin exception class.
func isBuiltinException(name string) bool {
	switch name {
	case "Exception", "BaseException", "ValueError", "TypeError", "KeyError",
		"IndexError", "RuntimeError", "ZeroDivisionError", "FileNotFoundError",
		"IOError", "OSError", "PermissionError", "NotImplementedError",
		"AttributeError", "StopIteration", "AssertionError", "ArithmeticError",
		"LookupError", "OverflowError", "TimeoutError":
		return true
	}

	return false
}
