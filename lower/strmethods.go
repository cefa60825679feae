package lower

import (
	"strconv"
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// pyStringMethods are the str methods implemented by the PyStringMethods
// prelude trait.
var pyStringMethods = map[string]bool{
	"lower": true, "upper": true, "strip": true, "split": true, "replace": true,
	"startswith": true, "endswith": true, "find": true, "count": true,
	"capitalize": true, "title": true, "swapcase": true, "isalpha": true,
	"isdigit": true, "isalnum": true, "isspace": true, "islower": true,
	"isupper": true, "center": true, "ljust": true, "rjust": true, "zfill": true,
}

// isStringMethodCall tests whether mc is dispatched as a str method.
func (l *Lowerer) isStringMethodCall(mc *hir.MethodCall, rt *hir.Type) bool {
	if _, ok := stringMethodTypes[mc.Method]; !ok {
		return false
	}

	switch {
	case rt.Is(hir.TString):
		return true
	case mc.Method == "replace" && len(mc.Args) >= 2:
		return rt.IsUnknown() || IsDyn(rt)
	case IsDyn(rt):
		return true
	case rt.IsUnknown():
		return isStringOnlyMethod(mc.Method)
	}

	return false
}

// lowerStringMethod lowers a str method.  Dynamic receivers go through the
// prelude trait or are converted to a String first.
func (l *Lowerer) lowerStringMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	if l.isCharVar(mc.Recv) {
		if x := l.lowerCharMethod(mc); x != nil {
			return x
		}
	}

	var x rust.Expr
	if IsDyn(rt) {
		if pyStringMethods[mc.Method] && (mc.Method != "split" || len(mc.Args) == 1) && len(mc.Args) <= 2 && !(mc.Method == "strip" && len(mc.Args) > 0) {
			return l.pyStringCall(l.lowerExpr(mc.Recv), mc)
		}

		l.ctx.Tracer.Record(trace.TypeMapping, mc.Method, "String", []string{"DepylerValue"}, 0.6, mc.Span())
		x = l.coerce(mc.Recv, hir.Str)
	} else if l.isCharVar(mc.Recv) {
		x = rust.ToString(l.lowerExpr(mc.Recv))
	} else {
		x = l.lowerExpr(mc.Recv)
	}

	arg := func(n int) hir.Expr {
		if n < len(mc.Args) {
			return mc.Args[n]
		}
		l.fail(mc, "str.%s() expects at least %d arguments", mc.Method, n+1)
		return nil
	}
	toVec := func(it rust.Expr) rust.Expr {
		return &rust.MethodCall{
			Recv:      rust.M(it, "map", rust.Lambda(false, []string{"s"}, rust.ToString(rust.Id("s")))),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))},
		}
	}
	asI64 := func(e rust.Expr) rust.Expr {
		return rust.As(e, rust.T("i64"))
	}
	usize := func(e hir.Expr) rust.Expr {
		return rust.As(l.lowerExpr(e), rust.T("usize"))
	}

	switch mc.Method {
	case "upper":
		return rust.M(x, "to_uppercase")
	case "lower", "casefold":
		return rust.M(x, "to_lowercase")
	case "strip", "lstrip", "rstrip":
		method := map[string]string{"strip": "trim", "lstrip": "trim_start", "rstrip": "trim_end"}[mc.Method]
		if len(mc.Args) == 0 {
			return rust.ToString(rust.M(x, method))
		}
		set := &rust.Closure{
			Params: []rust.ClosureParam{{Pat: rust.Pat("c"), Ty: rust.T("char")}},
			Body:   rust.M(l.strArg(arg(0)), "contains", rust.Id("c")),
		}
		return rust.ToString(rust.M(x, method+"_matches", set))
	case "split":
		if len(mc.Args) == 0 || isNoneLit(mc.Args[0]) {
			return toVec(rust.M(x, "split_whitespace"))
		}
		if n := maxsplit(mc); n != nil {
			return toVec(rust.M(x, "splitn", rust.As(rust.Bin("+", l.lowerExpr(n), rust.Int(1)), rust.T("usize")), l.strArg(arg(0))))
		}
		return toVec(rust.M(x, "split", l.strArg(arg(0))))
	case "rsplit":
		if len(mc.Args) == 0 {
			return toVec(rust.M(x, "split_whitespace"))
		}
		n := maxsplit(mc)
		if n == nil {
			return toVec(rust.M(x, "split", l.strArg(arg(0))))
		}
		parts := l.getTempName("parts")
		return rust.BlockOf(rust.Id(parts),
			&rust.Let{Pat: &rust.IdentPat{Name: parts, Mut: true}, Ty: rust.T("Vec", rust.T("String")),
				Init: toVec(rust.M(x, "rsplitn", rust.As(rust.Bin("+", l.lowerExpr(n), rust.Int(1)), rust.T("usize")), l.strArg(arg(0))))},
			rust.Semi(rust.M(rust.Id(parts), "reverse")),
		)
	case "splitlines":
		return toVec(rust.M(x, "lines"))
	case "join":
		return rust.M(l.joinItems(arg(0)), "join", l.strArg(mc.Recv))
	case "replace":
		if len(mc.Args) > 2 {
			return rust.M(x, "replacen", l.strArg(arg(0)), l.strArg(arg(1)), usize(arg(2)))
		}
		return rust.M(x, "replace", l.strArg(arg(0)), l.strArg(arg(1)))
	case "startswith", "endswith":
		method := "starts_with"
		if mc.Method == "endswith" {
			method = "ends_with"
		}
		if tup, ok := arg(0).(*hir.TupleExpr); ok {
			elems := make([]rust.Expr, len(tup.Elems))
			for i, e := range tup.Elems {
				elems[i] = l.strArg(e)
			}
			return rust.M(rust.M(&rust.Array{Elems: elems}, "iter"), "any", rust.Lambda(false, []string{"p"}, rust.M(x, method, rust.Deref(rust.Id("p")))))
		}
		return rust.M(x, method, l.strArg(arg(0)))
	case "find", "rfind":
		return rust.M(rust.M(rust.M(x, mc.Method, l.strArg(arg(0))), "map", rust.Lambda(false, []string{"i"}, asI64(rust.Id("i")))), "unwrap_or", rust.Int(-1))
	case "index", "rindex":
		method := strings.TrimSuffix(mc.Method, "index") + "find"
		return asI64(rust.M(rust.M(x, method, l.strArg(arg(0))), "expect", rust.Str("substring not found")))
	case "count":
		return asI64(rust.M(rust.M(x, "matches", l.strArg(arg(0))), "count"))
	case "isnumeric", "isdecimal":
		l.ctx.Need(prelude.StringOps)
		return rust.M(x, "py_isdigit")
	case "center", "ljust", "rjust":
		if len(mc.Args) > 1 {
			return l.padWith(x, mc)
		}
		return l.pyStringCall(x, mc)
	case "capitalize", "title", "swapcase", "isalpha", "isdigit", "isalnum", "isspace", "islower", "isupper", "zfill":
		return l.pyStringCall(x, mc)
	case "isidentifier":
		first := rust.M(rust.M(rust.M(x, "chars"), "next"), "map_or", rust.Bool(false),
			rust.Lambda(false, []string{"c"}, rust.Bin("||", rust.M(rust.Id("c"), "is_alphabetic"), rust.Bin("==", rust.Id("c"), &rust.CharLit{Value: '_'}))))
		rest := rust.M(rust.M(x, "chars"), "all",
			rust.Lambda(false, []string{"c"}, rust.Bin("||", rust.M(rust.Id("c"), "is_alphanumeric"), rust.Bin("==", rust.Id("c"), &rust.CharLit{Value: '_'}))))
		return rust.Bin("&&", first, rest)
	case "encode":
		return rust.M(rust.M(x, "as_bytes"), "to_vec")
	case "removeprefix", "removesuffix":
		method := "strip_prefix"
		if mc.Method == "removesuffix" {
			method = "strip_suffix"
		}
		s := l.getTempName("s")
		return rust.BlockOf(rust.ToString(rust.M(rust.M(rust.Id(s), method, l.strArg(arg(0))), "unwrap_or", rust.Id(s))),
			rust.LetName(s, false, nil, rust.M(x, "as_str")))
	case "partition":
		return l.lowerPartition(x, arg(0))
	case "expandtabs":
		return rust.M(x, "replace", &rust.CharLit{Value: '\t'}, rust.Str("        "))
	case "format":
		if tmpl, ok := mc.Recv.(*hir.StrLit); ok {
			return l.lowerStrFormat(tmpl, mc)
		}
		l.fail(mc, "str.format() needs a literal template")
	}

	return rust.M(x, rust.SafeIdent(mc.Method), l.lowerArgs(mc.Args)...)
}

// lowerCharMethod lowers a str method on a char loop variable or returns
// nil when the char must become a String first.
func (l *Lowerer) lowerCharMethod(mc *hir.MethodCall) rust.Expr {
	c := l.lowerExpr(mc.Recv)

	switch mc.Method {
	case "isdigit", "isdecimal":
		return rust.M(c, "is_ascii_digit")
	case "isnumeric":
		return rust.M(c, "is_numeric")
	case "isalpha":
		return rust.M(c, "is_alphabetic")
	case "isalnum":
		return rust.M(c, "is_alphanumeric")
	case "isspace":
		return rust.M(c, "is_whitespace")
	case "isupper":
		return rust.M(c, "is_uppercase")
	case "islower":
		return rust.M(c, "is_lowercase")
	case "upper":
		return rust.ToString(rust.M(c, "to_uppercase"))
	case "lower":
		return rust.ToString(rust.M(c, "to_lowercase"))
	}

	return nil
}

// pyStringCall calls the PyStringMethods method for mc on x.
func (l *Lowerer) pyStringCall(x rust.Expr, mc *hir.MethodCall) rust.Expr {
	l.ctx.Need(prelude.StringOps)

	args := make([]rust.Expr, len(mc.Args))
	for i, a := range mc.Args {
		switch mc.Method {
		case "center", "ljust", "rjust", "zfill":
			args[i] = l.coerce(a, hir.Int)
		default:
			args[i] = l.strArg(a)
		}
	}

	return rust.M(x, "py_"+mc.Method, args...)
}

// padWith lowers center, ljust and rjust with an explicit fill character.
func (l *Lowerer) padWith(x rust.Expr, mc *hir.MethodCall) rust.Expr {
	fill, ok := mc.Args[1].(*hir.StrLit)
	if !ok || len([]rune(fill.Value)) != 1 || strings.ContainsAny(fill.Value, "{}") {
		l.fail(mc, "str.%s() fill character must be a single character literal", mc.Method)
	}

	align := map[string]string{"center": "^", "ljust": "<", "rjust": ">"}[mc.Method]
	width := &rust.Assign{Op: "=", Left: rust.Id("width"), Right: rust.As(l.lowerExpr(mc.Args[0]), rust.T("usize"))}
	return rust.MacroCall("format", rust.Str("{:"+fill.Value+align+"width$}"), x, width)
}

// maxsplit returns the maxsplit argument of split or nil.
func maxsplit(mc *hir.MethodCall) hir.Expr {
	if len(mc.Args) > 1 {
		return mc.Args[1]
	}

	return kwarg(mc.Kwargs, "maxsplit")
}

// joinItems lowers the argument of `sep.join(xs)` into a Vec of strings.
func (l *Lowerer) joinItems(e hir.Expr) rust.Expr {
	t := l.exprType(e)
	if _, ok := e.(*hir.Var); ok && t.Is(hir.TList) && t.Elem().Is(hir.TString) {
		return l.lowerExpr(e)
	}

	return &rust.MethodCall{Recv: l.iterOf(e), Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))}}
}

// lowerPartition lowers `s.partition(sep)` into a tuple of three strings.
func (l *Lowerer) lowerPartition(x rust.Expr, sep hir.Expr) rust.Expr {
	s, p := l.getTempName("s"), l.getTempName("sep")
	pat := &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{&rust.TuplePat{Elems: []rust.Pattern{rust.Pat("a"), rust.Pat("b")}}}}

	m := &rust.Match{
		Scrut: rust.M(rust.Id(s), "split_once", rust.Id(p)),
		Arms: []rust.Arm{
			{Pat: pat, Body: &rust.Tuple{Elems: []rust.Expr{rust.ToString(rust.Id("a")), rust.ToString(rust.Id(p)), rust.ToString(rust.Id("b"))}}},
			{Pat: &rust.PathPat{Path: "None"}, Body: &rust.Tuple{Elems: []rust.Expr{rust.ToString(rust.Id(s)), rust.CallPath("String::new"), rust.CallPath("String::new")}}},
		},
	}

	return rust.BlockOf(m,
		rust.LetName(s, false, nil, rust.M(x, "as_str")),
		rust.LetName(p, false, nil, l.strArg(sep)),
	)
}

// lowerArgs lowers arguments passed by value.
func (l *Lowerer) lowerArgs(args []hir.Expr) []rust.Expr {
	out := make([]rust.Expr, len(args))
	for i, a := range args {
		out[i] = l.owned(a)
	}

	return out
}

// -----------------------------------------------------------------------------

// lowerStrFormat lowers `"template".format(args)` into `format!`.  Fields
// are renumbered so that every argument is lowered exactly once.
func (l *Lowerer) lowerStrFormat(tmpl *hir.StrLit, mc *hir.MethodCall) rust.Expr {
	args := append([]hir.Expr{}, mc.Args...)
	named := make(map[string]int)
	for _, kw := range mc.Kwargs {
		named[kw.Name] = len(args)
		args = append(args, kw.Value)
	}

	placeholders := make([]string, len(args))
	values := make([]rust.Expr, len(args))
	for i, a := range args {
		placeholders[i], values[i] = l.displayArg(a)
	}

	var sb strings.Builder
	src := tmpl.Value
	next := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			sb.WriteString("{{")
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			sb.WriteString("}}")
			i++
		case c == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				l.fail(mc, "unterminated field in format string")
			}

			field := src[i+1 : i+end]
			i += end

			name, spec, _ := strings.Cut(field, ":")
			debug := strings.HasSuffix(name, "!r")
			name = strings.TrimSuffix(strings.TrimSuffix(name, "!r"), "!s")

			var idx int
			switch n, err := strconv.Atoi(name); {
			case name == "":
				idx = next
				next++
			case err == nil:
				idx = n
			default:
				k, ok := named[name]
				if !ok {
					l.fail(mc, "format field %s has no argument", name)
				}
				idx = k
			}

			if idx >= len(args) {
				l.fail(mc, "format field %d has no argument", idx)
			}

			sb.WriteString(l.fieldPlaceholder(idx, placeholders[idx], spec, debug, mc))
		default:
			sb.WriteByte(c)
		}
	}

	return rust.MacroCall("format", append([]rust.Expr{rust.Str(sb.String())}, values...)...)
}

// fieldPlaceholder builds the Rust placeholder for argument idx.
func (l *Lowerer) fieldPlaceholder(idx int, display, spec string, debug bool, node hir.Node) string {
	pos := strconv.Itoa(idx)

	if spec != "" {
		part := &hir.FStringPart{Spec: spec, Expr: &hir.StrLit{Base: hir.Base{Pos: node.Span()}}}
		rs, _ := l.convertSpec(part)
		if debug || display == "{:?}" {
			return "{" + pos + ":" + rs + "?}"
		}
		return "{" + pos + ":" + rs + "}"
	}

	if debug || display == "{:?}" {
		return "{" + pos + ":?}"
	}

	return "{" + pos + "}"
}
