package lower

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// ArgParserTracker collects the arguments registered on argparse parsers.
// They become the fields of a clap `Args` struct.
type ArgParserTracker struct {
	description string
	args        []*parserArg
	used        bool
}

func newArgParserTracker() *ArgParserTracker {
	return &ArgParserTracker{}
}

// parserArg is one `add_argument` call.
type parserArg struct {
	flags    []string
	dest     string
	action   string
	nargs    string
	elem     *hir.Type
	def      hir.Expr
	required bool
	help     string
}

func (a *parserArg) positional() bool {
	return !strings.HasPrefix(a.flags[0], "-")
}

func (a *parserArg) long() string {
	for _, f := range a.flags {
		if strings.HasPrefix(f, "--") {
			return f[2:]
		}
	}

	return ""
}

func (a *parserArg) short() byte {
	for _, f := range a.flags {
		if len(f) == 2 && f[0] == '-' && f[1] != '-' {
			return f[1]
		}
	}

	return 0
}

// name is the Rust field name: dest, then the long flag, then the short one.
func (a *parserArg) name() string {
	var n string
	switch {
	case a.dest != "":
		n = a.dest
	case a.positional():
		n = a.flags[0]
	case a.long() != "":
		n = a.long()
	default:
		n = strings.TrimLeft(a.flags[0], "-")
	}

	return strings.ReplaceAll(n, "-", "_")
}

func (a *parserArg) isFlag() bool {
	switch a.action {
	case "store_true", "store_false", "store_const":
		return true
	}

	return false
}

func (a *parserArg) isList() bool {
	switch a.nargs {
	case "", "?":
		return a.action == "append"
	}

	return true
}

// typ is the Python type of the parsed value.
func (a *parserArg) typ() *hir.Type {
	switch {
	case a.isFlag():
		return hir.Bool
	case a.action == "count":
		return hir.Int
	case a.isList():
		return hir.ListOf(a.elem)
	case a.nargs == "?" || (!a.positional() && !a.required && a.def == nil):
		return hir.OptionalOf(a.elem)
	}

	return a.elem
}

// -----------------------------------------------------------------------------

// fieldType returns the type of `args.attr`.
func (t *ArgParserTracker) fieldType(attr string) *hir.Type {
	if a := t.lookup(attr); a != nil {
		return a.typ()
	}

	return nil
}

func (t *ArgParserTracker) lookup(attr string) *parserArg {
	for _, a := range t.args {
		if a.name() == attr {
			return a
		}
	}

	return nil
}

// structItem builds the `Args` struct, or returns nil if no parser was
// used.
func (t *ArgParserTracker) structItem(l *Lowerer) rust.Item {
	if !t.used {
		return nil
	}

	l.ctx.Need(prelude.Clap)
	st := &rust.Struct{
		Doc:   t.description,
		Attrs: []string{"derive(Parser, Debug)", "command(version, about)"},
		Name:  "Args",
	}

	for _, a := range t.args {
		var ty rust.Type
		if a.action == "count" {
			ty = rust.T("u8")
		} else {
			ty = l.rustType(a.typ())
		}

		st.Fields = append(st.Fields, rust.StructField{
			Doc:   a.help,
			Attrs: a.clapAttrs(),
			Name:  rust.SafeIdent(a.name()),
			Ty:    ty,
		})
	}

	return st
}

// clapAttrs renders the `#[arg(...)]` attribute of a field.
func (a *parserArg) clapAttrs() []string {
	var parts []string

	if !a.positional() {
		if c := a.short(); c != 0 {
			parts = append(parts, fmt.Sprintf("short = '%c'", c))
		}
		if lg := a.long(); lg != "" {
			if strings.ReplaceAll(lg, "-", "_") == a.name() {
				parts = append(parts, "long")
			} else {
				parts = append(parts, strconv.Quote(lg))
				parts[len(parts)-1] = "long = " + parts[len(parts)-1]
			}
		}
	}

	switch a.action {
	case "store_false":
		parts = append(parts, "action = clap::ArgAction::SetFalse")
	case "count":
		parts = append(parts, "action = clap::ArgAction::Count")
	case "append":
		parts = append(parts, "action = clap::ArgAction::Append")
	}

	switch a.nargs {
	case "+":
		parts = append(parts, "num_args = 1..", "required = true")
	case "*":
		parts = append(parts, "num_args = 0..")
	case "", "?":
	default:
		parts = append(parts, "num_args = "+a.nargs)
	}

	if a.required && !a.positional() && !a.isList() {
		parts = append(parts, "required = true")
	}

	if d, ok := defaultAttr(a.def); ok && !a.isFlag() {
		parts = append(parts, d)
	}

	if len(parts) == 0 {
		return nil
	}

	return []string{"arg(" + strings.Join(parts, ", ") + ")"}
}

// defaultAttr renders the default value of an argument.
func defaultAttr(def hir.Expr) (string, bool) {
	switch v := def.(type) {
	case *hir.StrLit:
		return "default_value = " + strconv.Quote(v.Value), true
	case *hir.IntLit:
		return "default_value_t = " + strconv.FormatInt(v.Value, 10), true
	case *hir.FloatLit:
		s := strconv.FormatFloat(v.Value, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return "default_value_t = " + s, true
	case *hir.BoolLit:
		return "default_value_t = " + strconv.FormatBool(v.Value), true
	case *hir.Unary:
		if n, ok := intLiteral(v); ok {
			return "default_value_t = " + strconv.FormatInt(n, 10), true
		}
	}

	return "", false
}

// -----------------------------------------------------------------------------

// lowerArgParser lowers `argparse.ArgumentParser(...)`.  The parser itself
// has no runtime value: its configuration is folded into `Args`.
func (l *Lowerer) lowerArgParser(args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	t := l.ctx.ArgParser
	t.used = true

	desc := kwarg(kwargs, "description")
	if desc == nil && len(args) > 2 {
		desc = args[2]
	}
	if s, ok := desc.(*hir.StrLit); ok {
		t.description = s.Value
	}

	l.ctx.Need(prelude.Clap)
	l.ctx.Tracer.Record(trace.ImportResolve, "argparse.ArgumentParser", "clap::Parser", []string{"std::env::args"}, 0.9, node.Span())
	return nil
}

// argParserMethods are recognized as parser methods whatever their receiver.
var argParserMethods = map[string]bool{
	"add_argument":                 true,
	"add_argument_group":           true,
	"add_mutually_exclusive_group": true,
	"parse_args":                   true,
	"print_help":                   true,
	"set_defaults":                 true,
}

// lowerArgParserMethod lowers a parser method.  add_argument records a
// field and lowers to nothing; parse_args parses the command line.
func (l *Lowerer) lowerArgParserMethod(mc *hir.MethodCall) rust.Expr {
	t := l.ctx.ArgParser
	t.used = true

	switch mc.Method {
	case "add_argument":
		t.args = append(t.args, l.parserArg(mc))
		return nil
	case "parse_args":
		if len(mc.Args) > 0 {
			l.fail(mc, "parse_args() with explicit arguments is not supported")
		}
		l.ctx.Need(prelude.Clap)
		return rust.CallPath("Args::parse")
	case "print_help":
		l.ctx.Need(prelude.Clap)
		return rust.M(rust.CallPath("<Args as clap::CommandFactory>::command"), "print_help")
	case "error":
		placeholder, arg := l.displayArg(l.argAt(mc, 0))
		return rust.BlockOf(rust.CallPath("std::process::exit", rust.Int(2)),
			rust.Semi(rust.MacroCall("eprintln", rust.Str("error: "+placeholder), arg)))
	case "set_defaults", "add_mutually_exclusive_group", "add_argument_group":
		// groups share the parser's namespace
		return nil
	}

	l.fail(mc, "ArgumentParser.%s() is not supported", mc.Method)
	return nil
}

// parserArg reads the flags and options of an add_argument call.
func (l *Lowerer) parserArg(mc *hir.MethodCall) *parserArg {
	a := &parserArg{elem: hir.Str}

	for _, arg := range mc.Args {
		s, ok := arg.(*hir.StrLit)
		if !ok {
			l.fail(mc, "add_argument() flags must be string literals")
		}
		a.flags = append(a.flags, s.Value)
	}
	if len(a.flags) == 0 {
		l.fail(mc, "add_argument() expects a name or flags")
	}

	str := func(kw *hir.Kwarg) string {
		s, ok := kw.Value.(*hir.StrLit)
		if !ok {
			l.fail(mc, "add_argument(%s=...) expects a string literal", kw.Name)
		}
		return s.Value
	}

	for _, kw := range mc.Kwargs {
		switch kw.Name {
		case "dest":
			a.dest = str(kw)
		case "action":
			a.action = str(kw)
		case "help":
			a.help = str(kw)
		case "nargs":
			if n, ok := intLiteral(kw.Value); ok {
				a.nargs = strconv.FormatInt(n, 10)
			} else {
				a.nargs = str(kw)
			}
		case "type":
			v, ok := kw.Value.(*hir.Var)
			if !ok {
				l.fail(mc, "add_argument(type=...) expects a builtin type")
			}
			switch v.Name {
			case "int":
				a.elem = hir.Int
			case "float":
				a.elem = hir.Float
			case "str":
				a.elem = hir.Str
			default:
				l.fail(mc, "add_argument(type=%s) is not supported", v.Name)
			}
		case "default":
			if _, ok := kw.Value.(*hir.NoneLit); !ok {
				a.def = kw.Value
			}
		case "required":
			b, ok := kw.Value.(*hir.BoolLit)
			a.required = ok && b.Value
		case "choices", "metavar", "const":
		default:
			l.fail(mc, "add_argument(%s=...) is not supported", kw.Name)
		}
	}

	if a.def != nil && a.elem == hir.Str {
		switch a.def.(type) {
		case *hir.IntLit:
			a.elem = hir.Int
		case *hir.FloatLit:
			a.elem = hir.Float
		}
	}

	if prev := l.ctx.ArgParser.lookup(a.name()); prev != nil {
		l.fail(mc, "argument %q is registered twice", a.name())
	}

	return a
}

// lowerArgsField lowers `args.attr`.  Counted flags are widened to i64.
func (l *Lowerer) lowerArgsField(recv rust.Expr, attr string) rust.Expr {
	x := rust.Fld(recv, rust.SafeIdent(strings.ReplaceAll(attr, "-", "_")))
	if a := l.ctx.ArgParser.lookup(attr); a != nil && a.action == "count" {
		return rust.As(x, rust.T("i64"))
	}

	return x
}
