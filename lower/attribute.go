package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerAttribute lowers an attribute read.
func (l *Lowerer) lowerAttribute(a *hir.Attribute) rust.Expr {
	if v, ok := a.Value.(*hir.Var); ok && !l.isDeclared(v.Name) {
		if v.Name == "cls" && l.ctx.IsClassmethod && l.fn != nil && l.fn.class != nil {
			return l.classMember(l.fn.class, "Self", a)
		}

		if ci, ok := l.classes[v.Name]; ok {
			return l.classMember(ci, rust.SafeIdent(v.Name), a)
		}
	}

	if mod, ok := l.moduleOf(a.Value); ok {
		return l.lowerModuleAttr(mod, a)
	}

	vt := l.recvType(a.Value)
	recv := l.attrRecv(a.Value)

	switch {
	case vt.IsCustom(typeDateTime), vt.IsCustom(typeDate), vt.IsCustom(typeTimeDelta):
		switch a.Attr {
		case "year", "month", "day", "hour", "minute", "second", "microsecond", "days", "seconds", "microseconds":
			return rust.M(recv, a.Attr)
		}
	case vt.IsCustom(typePath):
		if x := pathAttr(recv, a.Attr); x != nil {
			return x
		}
	case vt.IsCustom(typeStat):
		if x := statAttr(recv, a.Attr); x != nil {
			return x
		}
	case vt.IsCustom(typeArgs):
		return l.lowerArgsField(recv, a.Attr)
	case vt.IsCustom(typeException):
		if a.Attr == "args" {
			return rust.VecMacro(rust.Clone(rust.Fld(recv, "message")))
		}
	case vt.Is(hir.TCustom):
		if ci, ok := l.classes[vt.Name]; ok {
			if l.ctx.PropertyMethods[vt.Name+"."+a.Attr] {
				l.ctx.Tracer.Record(trace.MethodDispatch, vt.Name+"."+a.Attr, "property-call", []string{"field"}, 1, a.Span())
				return rust.M(recv, rust.SafeIdent(a.Attr))
			}

			if _, isField := l.ctx.ClassFieldTypes[vt.Name][a.Attr]; !isField && ci.classVar(a.Attr) != nil {
				return l.classMember(ci, "Self", a)
			}
		}
	}

	return rust.Fld(recv, rust.SafeIdent(a.Attr))
}

// attrRecv lowers the receiver of an attribute or method.  Mutable
// optional parameters are unwrapped first.
func (l *Lowerer) attrRecv(e hir.Expr) rust.Expr {
	x := l.lowerExpr(e)
	if l.isMutOption(e) {
		return rust.M(rust.M(x, "as_ref"), "unwrap")
	}

	return x
}

// methodRecv lowers the receiver of mc like attrRecv.  Mutable optional
// parameters are unwrapped mutably for methods that modify them.
func (l *Lowerer) methodRecv(mc *hir.MethodCall) rust.Expr {
	if l.isMutOption(mc.Recv) && mutatingMethods[mc.Method] {
		return rust.M(rust.M(l.lowerExpr(mc.Recv), "as_mut"), "unwrap")
	}

	return l.attrRecv(mc.Recv)
}

// isMutOption tests whether e is a mutable optional parameter that has not
// been unwrapped.
func (l *Lowerer) isMutOption(e hir.Expr) bool {
	v, ok := e.(*hir.Var)
	return ok && l.ctx.MutOptionParams[v.Name] && !l.ctx.isUnwrapped(v.Name)
}

// recvType is the type of a receiver after attrRecv.
func (l *Lowerer) recvType(e hir.Expr) *hir.Type {
	t := l.exprType(e)
	if v, ok := e.(*hir.Var); ok && l.ctx.MutOptionParams[v.Name] {
		return t.Unwrapped()
	}

	return t
}

// classMember lowers `Class.X` (spelled typ in Rust) into the associated
// item: class variables, static methods and enum style members.
func (l *Lowerer) classMember(ci *classInfo, typ string, a *hir.Attribute) rust.Expr {
	if cv := ci.classVar(a.Attr); cv != nil {
		if cv.fn {
			return rust.CallPath(typ + "::" + rust.SafeIdent(a.Attr))
		}
		if cv.ty.Is(hir.TString) {
			return rust.ToString(rust.P(typ + "::" + a.Attr))
		}
		return rust.P(typ + "::" + a.Attr)
	}

	if ci.hasMethod(a.Attr) {
		return rust.P(typ + "::" + methodName(a.Attr))
	}

	if isScreaming(a.Attr) {
		return rust.P(typ + "::" + a.Attr)
	}

	l.fail(a, "class %s has no attribute %s", ci.name, a.Attr)
	return nil
}

// isScreaming tests whether name is an ALL_CAPS constant name.
func isScreaming(name string) bool {
	return name == strings.ToUpper(name) && strings.ToLower(name) != name
}

// -----------------------------------------------------------------------------

// asciiConstants are the constants of the string module.
var asciiConstants = map[string]string{
	"ascii_letters":   "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"ascii_lowercase": "abcdefghijklmnopqrstuvwxyz",
	"ascii_uppercase": "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"digits":          "0123456789",
	"hexdigits":       "0123456789abcdefABCDEF",
	"octdigits":       "01234567",
	"punctuation":     "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~",
	"whitespace":      " \t\n\r\x0b\x0c",
}

// reFlags are the values of the re module flags.
var reFlags = map[string]int64{
	"I": 2, "IGNORECASE": 2,
	"M": 8, "MULTILINE": 8,
	"S": 16, "DOTALL": 16,
	"X": 64, "VERBOSE": 64,
	"A": 256, "ASCII": 256,
}

// mathFuncs are the math functions that can be referenced as values.
var mathFuncs = map[string]bool{
	"sqrt": true, "floor": true, "ceil": true, "exp": true, "sin": true,
	"cos": true, "tan": true, "abs": true, "trunc": true,
}

// lowerModuleAttr lowers a module constant.
func (l *Lowerer) lowerModuleAttr(mod string, a *hir.Attribute) rust.Expr {
	name := mod + "." + a.Attr

	switch mod {
	case "math":
		switch a.Attr {
		case "pi":
			return rust.P("std::f64::consts::PI")
		case "e":
			return rust.P("std::f64::consts::E")
		case "tau":
			return rust.P("std::f64::consts::TAU")
		case "inf":
			return rust.P("f64::INFINITY")
		case "nan":
			return rust.P("f64::NAN")
		}

		if mathFuncs[a.Attr] {
			return rust.P("f64::" + a.Attr)
		}
	case "string":
		if s, ok := asciiConstants[a.Attr]; ok {
			return rust.ToString(rust.Str(s))
		}
		if a.Attr == "printable" {
			return rust.ToString(rust.Str(asciiConstants["digits"] + asciiConstants["ascii_letters"] + asciiConstants["punctuation"] + asciiConstants["whitespace"]))
		}
	case "re":
		if n, ok := reFlags[a.Attr]; ok {
			return rust.Int(n)
		}
	case "sys":
		switch a.Attr {
		case "argv":
			return &rust.MethodCall{Recv: rust.CallPath("std::env::args"), Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))}}
		case "stdin", "stdout", "stderr":
			return rust.CallPath("std::io::" + a.Attr)
		case "platform":
			return rust.ToString(rust.P("std::env::consts::OS"))
		case "maxsize":
			return rust.P("i64::MAX")
		case "version_info":
			return &rust.Tuple{Elems: []rust.Expr{rust.Int(3), rust.Int(12)}}
		}
	case "os":
		switch a.Attr {
		case "sep":
			return rust.ToString(rust.P("std::path::MAIN_SEPARATOR_STR"))
		case "linesep":
			return rust.ToString(rust.Str("\n"))
		case "environ":
			l.ctx.Need(prelude.HashMap)
			return &rust.MethodCall{Recv: rust.CallPath("std::env::vars"), Method: "collect", Turbofish: []rust.Type{rust.T("HashMap", rust.T("String"), rust.T("String"))}}
		}
	}

	l.ctx.Tracer.Record(trace.ImportResolve, name, "unrecognized", nil, 0, a.Span())
	l.fail(a, "%s is not a recognized constant", name)
	return nil
}

// -----------------------------------------------------------------------------

// pathAttr lowers the attributes of a pathlib.Path.
func pathAttr(recv rust.Expr, attr string) rust.Expr {
	lossy := func(x rust.Expr) rust.Expr {
		return rust.ToString(rust.M(x, "to_string_lossy"))
	}

	switch attr {
	case "name":
		return rust.M(rust.M(recv, "file_name"), "map_or", rust.CallPath("String::new"),
			rust.Lambda(false, []string{"s"}, lossy(rust.Id("s"))))
	case "stem":
		return rust.M(rust.M(recv, "file_stem"), "map_or", rust.CallPath("String::new"),
			rust.Lambda(false, []string{"s"}, lossy(rust.Id("s"))))
	case "suffix":
		return rust.M(rust.M(recv, "extension"), "map_or", rust.CallPath("String::new"),
			rust.Lambda(false, []string{"s"}, rust.MacroCall("format", rust.Str(".{}"), rust.M(rust.Id("s"), "to_string_lossy"))))
	case "parent":
		return rust.M(rust.M(rust.M(recv, "parent"), "unwrap_or", rust.CallPath("std::path::Path::new", rust.Str(""))), "to_path_buf")
	case "parts":
		return &rust.MethodCall{
			Recv: rust.M(rust.M(recv, "components"), "map",
				rust.Lambda(false, []string{"c"}, lossy(rust.M(rust.Id("c"), "as_os_str")))),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))},
		}
	}

	return nil
}

// statAttr lowers the attributes of an os.stat_result.
func statAttr(recv rust.Expr, attr string) rust.Expr {
	since := func(t rust.Expr) rust.Expr {
		return rust.M(rust.M(rust.M(rust.M(t, "unwrap"), "duration_since", rust.P("std::time::UNIX_EPOCH")), "unwrap"), "as_secs_f64")
	}

	switch attr {
	case "st_size":
		return rust.As(rust.M(recv, "len"), rust.T("i64"))
	case "st_mtime":
		return since(rust.M(recv, "modified"))
	case "st_atime":
		return since(rust.M(recv, "accessed"))
	case "st_ctime":
		return since(rust.M(recv, "created"))
	case "st_mode":
		return rust.As(rust.CallPath("std::os::unix::fs::PermissionsExt::mode", rust.Borrow(rust.M(recv, "permissions"))), rust.T("i64"))
	}

	return nil
}
