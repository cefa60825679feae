package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerMethodCall lowers a method call.  Receivers that name modules or
// classes are dispatched first; instance methods are then tried in a fixed
// order from the most specific receiver kind to the generic call.
func (l *Lowerer) lowerMethodCall(mc *hir.MethodCall) rust.Expr {
	if isSuperCall(mc.Recv) {
		return l.lowerSuperCall(mc)
	}

	if mod, ok := l.moduleOf(mc.Recv); ok {
		return l.lowerModuleCall(mod, mc.Method, mc.Args, mc.Kwargs, mc)
	}

	if x := l.lowerStaticCall(mc); x != nil {
		return x
	}

	rt := l.recvType(mc.Recv)

	switch {
	case argParserMethods[mc.Method], rt.IsCustom(typeArgParser):
		return l.lowerArgParserMethod(mc)
	case l.isStdio(mc.Recv):
		return l.lowerStdioMethod(mc)
	case rt.IsCustom(typeFile), rt.IsCustom(typeWriter):
		return l.lowerFileMethod(mc)
	case rt.IsCustom(typePath):
		return l.lowerPathMethod(mc)
	case rt.IsCustom(typeDateTime), rt.IsCustom(typeDate), rt.IsCustom(typeTimeDelta):
		return l.lowerDateMethod(mc, rt)
	case rt.IsCustom(typeCSVWriter):
		return l.lowerCSVWriterMethod(mc)
	case rt.IsCustom(typeMatch), rt.Is(hir.TOptional) && rt.Inner().IsCustom(typeMatch):
		return l.lowerMatchMethod(mc, rt)
	case rt.IsCustom(typePattern):
		return l.lowerRegexCall(mc.Method, l.attrRecv(mc.Recv), nil, mc.Args, mc.Kwargs, mc)
	case rt.IsCustom(typeHasher):
		return l.lowerHasherMethod(mc)
	case rt.IsCustom(typeJSON):
		return l.lowerJSONMethod(mc)
	case l.isStringMethodCall(mc, rt):
		return l.lowerStringMethod(mc, rt)
	}

	if _, ok := mc.Recv.(*hir.Attribute); ok && rt.Is(hir.TDict) {
		// dict fields of class instances
		return l.lowerDictMethod(mc, rt)
	}

	if rt.Is(hir.TCustom) {
		if _, ok := l.classes[rt.Name]; ok {
			return l.lowerInstanceMethod(mc, rt.Name)
		}
	}

	switch {
	case rt.Is(hir.TSet):
		return l.lowerSetMethod(mc, rt)
	case rt.Is(hir.TDict):
		return l.lowerDictMethod(mc, rt)
	case rt.IsUnknown():
		if x := l.lowerAmbiguousMethod(mc); x != nil {
			return x
		}
	case rt.Is(hir.TGeneric) && rt.Name == "deque":
		return l.lowerDequeMethod(mc, rt)
	case rt.Is(hir.TList):
		if x := l.lowerListMethod(mc, rt); x != nil {
			return x
		}
	case IsDyn(rt):
		if x := l.lowerDynMethod(mc); x != nil {
			return x
		}
	case rt.Is(hir.TInt):
		switch mc.Method {
		case "bit_length", "bit_count":
			l.ctx.Need(prelude.IntOps)
			return rust.M(l.attrRecv(mc.Recv), mc.Method)
		}
	case rt.Is(hir.TFloat):
		if mc.Method == "is_integer" {
			return rust.Bin("==", rust.M(l.attrRecv(mc.Recv), "fract"), rust.Float(0))
		}
	}

	l.ctx.Tracer.Record(trace.MethodDispatch, mc.Method, "generic", nil, 0.4, mc.Span())
	return rust.M(l.attrRecv(mc.Recv), rust.SafeIdent(mc.Method), l.lowerArgs(mc.Args)...)
}

// lowerSuperCall lowers `super().m(args)`.
func (l *Lowerer) lowerSuperCall(mc *hir.MethodCall) rust.Expr {
	if l.fn == nil || l.fn.class == nil {
		l.fail(mc, "super() used outside of a method")
	}

	if mc.Method == "__init__" {
		if !l.fn.ctor {
			l.fail(mc, "super().__init__() is only supported in __init__")
		}
		return l.lowerSuperInit(mc)
	}

	name := "super_" + strings.Trim(mc.Method, "_")
	l.ctx.Tracer.Record(trace.MethodDispatch, "super()."+mc.Method, name, nil, 1, mc.Span())

	var args []rust.Expr
	if sig, ok := l.sigs()[l.fn.class.name+"."+name]; ok {
		args = l.bindArgs(mc, mc.Method, sig, mc.Args, mc.Kwargs)
	} else {
		args = l.lowerArgs(mc.Args)
	}

	return rust.M(rust.Id(l.selfName), name, args...)
}

// lowerStaticCall lowers `Class.m(args)` and `cls.m(args)` or returns nil.
func (l *Lowerer) lowerStaticCall(mc *hir.MethodCall) rust.Expr {
	v, ok := mc.Recv.(*hir.Var)
	if !ok || l.isDeclared(v.Name) {
		return nil
	}

	var ci *classInfo
	typ := rust.SafeIdent(v.Name)
	switch {
	case v.Name == "cls" && l.ctx.IsClassmethod && l.fn != nil && l.fn.class != nil:
		ci, typ = l.fn.class, "Self"
	default:
		if ci, ok = l.classes[v.Name]; !ok {
			return nil
		}
	}

	key := ci.name + "." + mc.Method
	sig, ok := l.sigs()[key]
	if !ok {
		l.fail(mc, "class %s has no method %s", ci.name, mc.Method)
	}

	l.ctx.Tracer.Record(trace.MethodDispatch, key, "associated-fn", []string{"method"}, 1, mc.Span())

	var call rust.Expr = rust.CallPath(typ+"::"+methodName(mc.Method), l.bindArgs(mc, key, sig, mc.Args, mc.Kwargs)...)
	return l.finishCall(call, sig, key)
}

// lowerInstanceMethod lowers a method of a class defined in this file.
func (l *Lowerer) lowerInstanceMethod(mc *hir.MethodCall, class string) rust.Expr {
	key := class + "." + mc.Method
	recv := l.attrRecv(mc.Recv)

	sig, ok := l.sigs()[key]
	if !ok {
		l.ctx.Tracer.Record(trace.MethodDispatch, key, "unresolved", nil, 0.3, mc.Span())
		return rust.M(recv, methodName(mc.Method), l.lowerArgs(mc.Args)...)
	}

	l.ctx.Tracer.Record(trace.MethodDispatch, key, "inherent", nil, 1, mc.Span())

	var call rust.Expr
	if sig.receiver == "" {
		call = rust.CallPath(rust.SafeIdent(class)+"::"+methodName(mc.Method), l.bindArgs(mc, key, sig, mc.Args, mc.Kwargs)...)
	} else {
		call = rust.M(recv, methodName(mc.Method), l.bindArgs(mc, key, sig, mc.Args, mc.Kwargs)...)
	}

	return l.finishCall(call, sig, key)
}

// finishCall awaits async callees and unwraps the results of fallible
// ones.
func (l *Lowerer) finishCall(call rust.Expr, sig *signature, name string) rust.Expr {
	if sig.async {
		call = &rust.Await{X: call}
	}

	if sig.result {
		call = l.fallible(call, name+"() failed")
	}

	return call
}

// lowerAmbiguousMethod lowers a method on a receiver of unknown type using
// the documented defaults: update and get are dict methods; count and
// remove list methods.
func (l *Lowerer) lowerAmbiguousMethod(mc *hir.MethodCall) rust.Expr {
	if v, ok := mc.Recv.(*hir.Var); ok {
		l.ctx.SetVarType(v.Name, l.ambiguousRecvType(mc))
	}

	switch mc.Method {
	case "update", "get", "keys", "values", "items", "setdefault":
		l.ctx.Tracer.Record(trace.MethodDispatch, mc.Method, "dict", []string{"list", "set"}, 0.5, mc.Span())
		return l.lowerDictMethod(mc, hir.DictOf(nil, nil))
	case "count":
		if len(mc.Args) == 1 && l.exprType(mc.Args[0]).Is(hir.TString) {
			return l.lowerStringMethod(mc, hir.Str)
		}
		fallthrough
	case "append", "remove", "extend", "insert", "index", "sort", "reverse":
		l.ctx.Tracer.Record(trace.MethodDispatch, mc.Method, "list", []string{"dict", "set"}, 0.5, mc.Span())
		return l.lowerListMethod(mc, hir.ListOf(nil))
	case "add", "discard":
		return l.lowerSetMethod(mc, hir.SetOf(nil))
	}

	return nil
}

// ambiguousRecvType is the container type a receiver of unknown type is
// given by the method called on it, or nil.
func (l *Lowerer) ambiguousRecvType(mc *hir.MethodCall) *hir.Type {
	var arg *hir.Type
	if len(mc.Args) > 0 {
		arg = l.exprType(mc.Args[len(mc.Args)-1])
	}

	switch mc.Method {
	case "append", "insert", "extend":
		if mc.Method == "extend" && len(mc.Args) > 0 {
			arg = l.iterElemType(mc.Args[0])
		}
		return hir.ListOf(arg)
	case "add", "discard":
		return hir.SetOf(arg)
	case "keys", "values", "items", "update", "setdefault":
		return hir.DictOf(nil, nil)
	}

	return nil
}

// lowerDynMethod lowers a container method on a dynamic value.
func (l *Lowerer) lowerDynMethod(mc *hir.MethodCall) rust.Expr {
	l.ctx.Need(prelude.ValueEnum)
	x := l.attrRecv(mc.Recv)
	list := func(it rust.Expr) rust.Expr {
		return rust.CallPath("DepylerValue::List", rust.M(it, "collect"))
	}

	switch mc.Method {
	case "append":
		if len(mc.Args) == 1 {
			return rust.M(x, "push", l.coerce(mc.Args[0], dynType))
		}
	case "get":
		if len(mc.Args) == 0 {
			break
		}

		var found rust.Expr
		if l.exprType(mc.Args[0]).Is(hir.TString) {
			found = rust.M(x, "get_str", l.strArg(mc.Args[0]))
		} else {
			found = rust.M(x, "get", rust.Borrow(l.coerce(mc.Args[0], dynType)))
		}

		def := l.coerce(&hir.NoneLit{}, dynType)
		if len(mc.Args) > 1 {
			def = l.coerce(mc.Args[1], dynType)
		}
		return rust.M(rust.M(found, "cloned"), "unwrap_or", def)
	case "keys", "values":
		return list(rust.M(x, mc.Method))
	case "items":
		pat := &rust.TuplePat{Elems: []rust.Pattern{rust.Pat("k"), rust.Pat("v")}}
		return list(rust.M(rust.M(x, "items"), "map", rust.ClosureOf(false, pat,
			rust.CallPath("DepylerValue::Tuple", rust.VecMacro(rust.Id("k"), rust.Id("v"))))))
	}

	return nil
}
