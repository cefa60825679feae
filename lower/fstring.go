package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerFString lowers an f-string into a `format!` call.  Every expression
// part contributes exactly one placeholder and one argument.
func (l *Lowerer) lowerFString(fs *hir.FString) rust.Expr {
	var sb strings.Builder
	var args []rust.Expr

	for _, part := range fs.Parts {
		if part.IsLiteral() {
			sb.WriteString(escapeBraces(part.Literal))
			continue
		}

		placeholder, arg := l.formatArg(part)
		sb.WriteString(placeholder)
		args = append(args, arg)
	}

	tmpl := sb.String()
	switch {
	case tmpl == "":
		return rust.CallPath("String::new")
	case len(args) == 0:
		return rust.ToString(rust.Str(strings.NewReplacer("{{", "{", "}}", "}").Replace(tmpl)))
	}

	return rust.MacroCall("format", append([]rust.Expr{rust.Str(tmpl)}, args...)...)
}

// formatArg chooses the placeholder and argument of an f-string part.
func (l *Lowerer) formatArg(part *hir.FStringPart) (string, rust.Expr) {
	if part.Conversion == "r" {
		return "{:?}", l.lowerExpr(part.Expr)
	}

	if part.Spec == "" {
		return l.displayArg(part.Expr)
	}

	spec, kind := l.convertSpec(part)
	t := l.exprType(part.Expr)

	var arg rust.Expr
	switch {
	case kind == 'f' || kind == 'e' || kind == '%':
		arg = l.coerce(part.Expr, hir.Float)
		if kind == '%' {
			arg = rust.Bin("*", arg, rust.Float(100))
		}
	case IsDyn(t) && (kind == 'd' || kind == 'x' || kind == 'X' || kind == 'b' || kind == 'o'):
		arg = rust.M(l.lowerExpr(part.Expr), "to_i64")
	case t.Is(hir.TInt), t.Is(hir.TFloat), t.Is(hir.TString), IsDyn(t):
		arg = l.lowerExpr(part.Expr)
	default:
		placeholder, x := l.displayArg(part.Expr)
		if placeholder == "{:?}" {
			return "{:" + spec + "?}", x
		}
		arg = x
	}

	placeholder := "{:" + spec + "}"
	if kind == '%' {
		placeholder += "%"
	}

	return placeholder, arg
}

// convertSpec translates a Python format spec into a Rust one.  It returns
// the Rust spec and the presentation type of the Python spec.
func (l *Lowerer) convertSpec(part *hir.FStringPart) (string, byte) {
	spec := part.Spec
	var kind byte
	if n := len(spec); n > 0 {
		switch c := spec[n-1]; c {
		case 'f', 'F', 'd', 's', 'g', 'G', 'n':
			kind, spec = lowerASCII(c), spec[:n-1]
		case '%':
			kind, spec = '%', spec[:n-1]
			if !strings.Contains(spec, ".") {
				spec += ".0"
			}
		case 'x', 'X', 'b', 'o', 'e', 'E':
			// shared with Rust
			kind = c
		}
	}

	if strings.ContainsAny(spec, ",_") {
		l.fail(part.Expr, "digit grouping in format specs is not supported")
	}

	if kind == 'g' {
		kind = 'f'
	}

	l.ctx.Tracer.Record(trace.TypeMapping, "format-spec", spec, []string{part.Spec}, 0.9, part.Expr.Span())
	return spec, kind
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}

	return c
}

// displayArg chooses how a value prints the way Python's `str` shows it:
// the placeholder for the format string and the argument to format.
func (l *Lowerer) displayArg(e hir.Expr) (string, rust.Expr) {
	if l.isCharVar(e) {
		return "{}", l.lowerExpr(e)
	}

	switch v := e.(type) {
	case *hir.NoneLit:
		return "{}", rust.Str("None")
	case *hir.StrLit:
		return "{}", rust.Str(v.Value)
	case *hir.Attribute:
		if l.isArgsValue(v.Value) {
			if t := l.exprType(v); t.Is(hir.TOptional) {
				return "{}", l.optionDisplay(l.lowerExpr(v), t.Inner())
			}
		}
	}

	t := l.exprType(e)
	x := l.lowerExpr(e)

	switch {
	case t.Is(hir.TBool):
		return "{}", &rust.If{Cond: x, Then: rust.BlockOf(rust.Str("True")), Else: rust.BlockOf(rust.Str("False"))}
	case t.Is(hir.TFloat):
		// Debug keeps the fractional part of whole floats: 1.0 not 1
		return "{:?}", x
	case t.IsCustom(typePath):
		return "{}", rust.M(x, "display")
	case t.Is(hir.TOptional) && l.isDisplayable(t.Inner()):
		return "{}", l.optionDisplay(x, t.Inner())
	case l.isDisplayable(t):
		return "{}", x
	}

	return "{:?}", x
}

// optionDisplay renders an optional value as Python prints it: `None` or the
// inner value.
func (l *Lowerer) optionDisplay(x rust.Expr, inner *hir.Type) rust.Expr {
	var some rust.Expr = rust.ToString(rust.Id("v"))
	if inner.Is(hir.TFloat) {
		some = rust.MacroCall("format", rust.Str("{:?}"), rust.Id("v"))
	}

	return &rust.Match{
		Scrut: rust.M(x, "as_ref"),
		Arms: []rust.Arm{
			{Pat: &rust.TupleStructPat{Path: "Some", Elems: []rust.Pattern{rust.Pat("v")}}, Body: some},
			{Pat: &rust.PathPat{Path: "None"}, Body: rust.ToString(rust.Str("None"))},
		},
	}
}
