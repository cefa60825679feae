package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// reFlagLetters are the inline flags of the re module flag values.
var reFlagLetters = []struct {
	bit    int64
	letter byte
}{
	{2, 'i'}, {8, 'm'}, {16, 's'}, {64, 'x'},
}

// reFlagsPos is the position of the flags argument of each re function.
var reFlagsPos = map[string]int{
	"search": 2, "match": 2, "fullmatch": 2, "findall": 2, "finditer": 2,
	"sub": 4, "subn": 4, "split": 3, "compile": 1,
}

// staticFlags evaluates a flags expression built from re constants.
func (l *Lowerer) staticFlags(e hir.Expr) int64 {
	switch v := e.(type) {
	case nil:
		return 0
	case *hir.IntLit:
		return v.Value
	case *hir.Attribute:
		if mod, ok := l.moduleOf(v.Value); ok && mod == "re" {
			if n, ok := reFlags[v.Attr]; ok {
				return n
			}
		}
	case *hir.Var:
		if item, ok := l.ctx.ImportedItems[v.Name]; ok && strings.HasPrefix(item, "re.") {
			if n, ok := reFlags[item[3:]]; ok {
				return n
			}
		}
	case *hir.Binary:
		if v.Op == hir.OpBitOr || v.Op == hir.OpAdd {
			return l.staticFlags(v.Left) | l.staticFlags(v.Right)
		}
	}

	l.fail(e, "regex flags must be re module constants")
	return 0
}

// inlineFlags renders flags as a `(?ims)` pattern prefix.
func inlineFlags(flags int64) string {
	var b strings.Builder
	for _, f := range reFlagLetters {
		if flags&f.bit != 0 {
			b.WriteByte(f.letter)
		}
	}

	if b.Len() == 0 {
		return ""
	}

	return "(?" + b.String() + ")"
}

// checkPattern rejects Python regex features the regex crate lacks and
// rewrites the ones it spells differently.
func (l *Lowerer) checkPattern(pat string, node hir.Node) string {
	for _, unsupported := range []string{"(?=", "(?!", "(?<=", "(?<!", "(?P="} {
		if strings.Contains(pat, unsupported) {
			l.fail(node, "regex lookaround and backreferences are not supported: %q", pat)
		}
	}

	for i := 0; i+1 < len(pat); i++ {
		if pat[i] == '\\' {
			if c := pat[i+1]; c >= '1' && c <= '9' {
				l.fail(node, "regex backreferences are not supported: %q", pat)
			}
			i++
		}
	}

	return strings.ReplaceAll(pat, `\Z`, `\z`)
}

// captureGroups counts the capture groups of a pattern.
func captureGroups(pat string) int {
	n := 0
	inClass := false
	for i := 0; i < len(pat); i++ {
		switch c := pat[i]; {
		case c == '\\':
			i++
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '(' && !inClass:
			if i+1 < len(pat) && pat[i+1] == '?' {
				if strings.HasPrefix(pat[i:], "(?P<") || strings.HasPrefix(pat[i:], "(?<") && !strings.HasPrefix(pat[i:], "(?<=") && !strings.HasPrefix(pat[i:], "(?<!") {
					n++
				}
				continue
			}
			n++
		}
	}

	return n
}

// compileRegex builds `Regex::new(pattern)` with an optional anchoring of
// the literal pattern text.
func (l *Lowerer) compileRegex(pattern hir.Expr, flags int64, anchor string) rust.Expr {
	l.ctx.Need(prelude.Regex)

	prefix := inlineFlags(flags)
	var src rust.Expr
	if s, ok := pattern.(*hir.StrLit); ok {
		p := l.checkPattern(s.Value, pattern)
		switch anchor {
		case "match":
			p = `\A(?:` + p + ")"
		case "fullmatch":
			p = `\A(?:` + p + `)\z`
		}
		src = rust.Str(prefix + p)
	} else {
		p := l.strArg(pattern)
		switch anchor {
		case "match":
			src = rust.Borrow(rust.MacroCall("format", rust.Str(prefix+`\A(?:{})`), p))
		case "fullmatch":
			src = rust.Borrow(rust.MacroCall("format", rust.Str(prefix+`\A(?:{})\z`), p))
		default:
			if prefix != "" {
				src = rust.Borrow(rust.MacroCall("format", rust.Str(prefix+"{}"), p))
			} else {
				src = p
			}
		}
	}

	return rust.M(rust.CallPath("Regex::new", src), "expect", rust.Str("invalid regular expression"))
}

// convertRepl rewrites a Python replacement template for the regex crate.
func convertRepl(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch {
		case c == '$':
			b.WriteString("$$")
		case c == '\\' && i+1 < len(repl):
			next := repl[i+1]
			switch {
			case next >= '0' && next <= '9':
				j := i + 1
				for j < len(repl) && repl[j] >= '0' && repl[j] <= '9' {
					j++
				}
				b.WriteString("${" + repl[i+1:j] + "}")
				i = j - 1
			case next == 'g' && i+2 < len(repl) && repl[i+2] == '<':
				end := strings.IndexByte(repl[i+3:], '>')
				if end < 0 {
					b.WriteByte(c)
					continue
				}
				b.WriteString("${" + repl[i+3:i+3+end] + "}")
				i += 3 + end
			case next == 'n':
				b.WriteByte('\n')
				i++
			case next == 't':
				b.WriteByte('\t')
				i++
			case next == '\\':
				b.WriteByte('\\')
				i++
			default:
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// -----------------------------------------------------------------------------

// lowerRegexCall lowers a re module function, or a method of a compiled
// pattern when re is not nil.
func (l *Lowerer) lowerRegexCall(method string, re rust.Expr, pattern hir.Expr, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	l.ctx.Need(prelude.Regex)

	// normalize module calls into (compiled regex, remaining args)
	var literal string
	anchored := false
	if re == nil {
		if len(args) == 0 {
			l.fail(node, "re.%s() expects a pattern", method)
		}
		pattern, args = args[0], args[1:]

		var flagsArg hir.Expr
		if pos, ok := reFlagsPos[method]; ok && pos-1 < len(args) && pos > 0 {
			flagsArg = args[pos-1]
			args = args[:pos-1]
		}
		if kw := kwarg(kwargs, "flags"); kw != nil {
			flagsArg = kw
		}
		flags := l.staticFlags(flagsArg)

		switch method {
		case "escape":
			return rust.CallPath("regex::escape", l.strArg(pattern))
		case "match", "fullmatch":
			re = l.compileRegex(pattern, flags, method)
			anchored = true
		default:
			re = l.compileRegex(pattern, flags, "")
		}

		if s, ok := pattern.(*hir.StrLit); ok {
			literal = s.Value
		}

		l.ctx.Tracer.Record(trace.ImportResolve, "re."+method, "regex::Regex", []string{"fancy-regex"}, 0.9, node.Span())
	}

	arg := func(n int, name string) hir.Expr {
		if n < len(args) {
			return args[n]
		}
		if kw := kwarg(kwargs, name); kw != nil {
			return kw
		}
		return nil
	}

	need := func(n int, name string) hir.Expr {
		e := arg(n, name)
		if e == nil {
			l.fail(node, "%s() missing required argument %q", method, name)
		}
		return e
	}

	fromCaps := func(x rust.Expr) rust.Expr {
		l.ctx.Need(prelude.RegexMatch)
		return rust.M(x, "map", rust.Lambda(false, []string{"c"}, rust.CallPath("DepylerRegexMatch::from_captures", rust.Borrow(rust.Id("c")))))
	}

	collectStrings := func(it rust.Expr) rust.Expr {
		return &rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))}}
	}

	switch method {
	case "compile":
		return re
	case "search":
		return fromCaps(rust.M(re, "captures", l.strArg(need(0, "string"))))
	case "match", "fullmatch":
		caps := rust.M(re, "captures", l.strArg(need(0, "string")))
		if anchored {
			return fromCaps(caps)
		}

		// compiled patterns cannot be re-anchored; filter on the match bounds
		s := l.getTempName("s")
		whole := rust.M(rust.M(rust.Id("c"), "get", rust.Int(0)), "expect", rust.Str("group 0"))
		cond := rust.Bin("==", rust.M(whole, "start"), rust.Int(0))
		if method == "fullmatch" {
			cond = rust.Bin("&&", cond, rust.Bin("==", rust.M(whole, "end"), rust.M(rust.Id(s), "len")))
		}
		filtered := rust.M(rust.M(re, "captures", rust.Id(s)), "filter", rust.Lambda(false, []string{"c"}, cond))
		return rust.BlockOf(fromCaps(filtered), rust.LetName(s, false, nil, l.strArg(need(0, "string"))))
	case "findall":
		s := l.strArg(need(0, "string"))
		switch captureGroups(literal) {
		case 0:
			return collectStrings(rust.M(rust.M(re, "find_iter", s), "map",
				rust.Lambda(false, []string{"m"}, rust.ToString(rust.M(rust.Id("m"), "as_str")))))
		case 1:
			group := rust.M(rust.M(rust.Id("c"), "get", rust.Int(1)), "map_or", rust.CallPath("String::new"),
				rust.Lambda(false, []string{"m"}, rust.ToString(rust.M(rust.Id("m"), "as_str"))))
			return collectStrings(rust.M(rust.M(re, "captures_iter", s), "map", rust.Lambda(false, []string{"c"}, group)))
		}
		l.fail(node, "findall() with several capture groups is not supported")
	case "finditer":
		l.ctx.Need(prelude.RegexMatch)
		return &rust.MethodCall{
			Recv:      fromCaps(rust.M(re, "captures_iter", l.strArg(need(0, "string")))),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", rust.T("DepylerRegexMatch"))},
		}
	case "sub", "subn":
		repl := need(0, "repl")
		s := l.strArg(need(1, "string"))

		var r rust.Expr
		switch v := repl.(type) {
		case *hir.StrLit:
			r = rust.Str(convertRepl(v.Value))
		case *hir.Lambda:
			l.fail(node, "%s() with a callable replacement is not supported", method)
		default:
			r = rust.CallPath("regex::NoExpand", l.strArg(repl))
		}

		count := arg(2, "count")
		var replaced rust.Expr
		if n, ok := intLiteral(count); count == nil || ok && n == 0 {
			replaced = rust.M(re, "replace_all", s, r)
		} else {
			replaced = rust.M(re, "replacen", s, rust.As(l.lowerExpr(count), rust.T("usize")), r)
		}
		replaced = rust.ToString(replaced)

		if method == "sub" {
			return replaced
		}

		// subn also reports the number of replacements
		rx, text := l.getTempName("re"), l.getTempName("s")
		var n rust.Expr = rust.M(rust.M(rust.Id(rx), "find_iter", rust.Id(text)), "count")
		if count != nil {
			if c, ok := intLiteral(count); !ok || c != 0 {
				n = rust.M(n, "min", rust.As(l.lowerExpr(count), rust.T("usize")))
			}
		}

		var again rust.Expr
		if count == nil {
			again = rust.M(rust.Id(rx), "replace_all", rust.Id(text), r)
		} else {
			again = rust.M(rust.Id(rx), "replacen", rust.Id(text), rust.As(l.lowerExpr(count), rust.T("usize")), r)
		}
		return rust.BlockOf(
			&rust.Tuple{Elems: []rust.Expr{rust.ToString(again), rust.As(n, rust.T("i64"))}},
			rust.LetName(rx, false, nil, re),
			rust.LetName(text, false, nil, s),
		)
	case "split":
		s := l.strArg(need(0, "string"))
		var parts rust.Expr
		if maxsplit := arg(1, "maxsplit"); maxsplit != nil {
			if n, ok := intLiteral(maxsplit); !ok || n != 0 {
				parts = rust.M(re, "splitn", s, rust.Bin("+", rust.As(l.lowerExpr(maxsplit), rust.T("usize")), rust.Int(1)))
			}
		}
		if parts == nil {
			parts = rust.M(re, "split", s)
		}
		return collectStrings(rust.M(parts, "map", rust.Lambda(false, []string{"p"}, rust.ToString(rust.Id("p")))))
	case "escape":
		return rust.CallPath("regex::escape", l.strArg(need(0, "pattern")))
	}

	l.fail(node, "re.%s() is not supported", method)
	return nil
}

// -----------------------------------------------------------------------------

// lowerMatchMethod lowers the methods of a match object.  Optional matches
// are unwrapped first.
func (l *Lowerer) lowerMatchMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	l.ctx.Need(prelude.RegexMatch)

	x := l.attrRecv(mc.Recv)
	if rt.Is(hir.TOptional) {
		l.ctx.Tracer.Record(trace.ErrorHandling, "Match."+mc.Method, "expect", []string{"?"}, 0.7, mc.Span())
		x = rust.M(rust.M(x, "as_ref"), "expect", rust.Str("no match"))
	}

	usize := func(e hir.Expr) rust.Expr {
		if n, ok := intLiteral(e); ok {
			return rust.Int(n)
		}
		return rust.As(l.lowerExpr(e), rust.T("usize"))
	}

	switch mc.Method {
	case "group":
		switch len(mc.Args) {
		case 0:
			return rust.ToString(rust.M(x, "as_str"))
		case 1:
			if _, ok := mc.Args[0].(*hir.StrLit); ok {
				l.fail(mc, "named groups are not supported; use group numbers")
			}
			if n, ok := intLiteral(mc.Args[0]); ok && n == 0 {
				return rust.ToString(rust.M(x, "as_str"))
			}
			return rust.M(x, "group", usize(mc.Args[0]))
		}
		l.fail(mc, "group() with several groups is not supported")
	case "groups":
		return rust.M(x, "groups")
	case "start", "end":
		if len(mc.Args) > 0 {
			l.fail(mc, "%s() of a group is not supported", mc.Method)
		}
		return rust.As(rust.M(x, mc.Method), rust.T("i64"))
	case "span":
		s, e := l.getTempName("start"), l.getTempName("end")
		return rust.BlockOf(
			&rust.Tuple{Elems: []rust.Expr{rust.As(rust.Id(s), rust.T("i64")), rust.As(rust.Id(e), rust.T("i64"))}},
			&rust.Let{Pat: &rust.TuplePat{Elems: []rust.Pattern{rust.Pat(s), rust.Pat(e)}}, Init: rust.M(x, "span")},
		)
	}

	l.fail(mc, "Match.%s() is not supported", mc.Method)
	return nil
}
