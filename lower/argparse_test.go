package lower

import (
	"reflect"
	"testing"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/rust"
)

func TestParserArgNaming(t *testing.T) {
	cases := []struct {
		arg  *parserArg
		name string
		typ  *hir.Type
	}{
		{&parserArg{flags: []string{"input"}, elem: hir.Str}, "input", hir.Str},
		{&parserArg{flags: []string{"-o", "--out-file"}, elem: hir.Str}, "out_file", hir.OptionalOf(hir.Str)},
		{&parserArg{flags: []string{"-n"}, elem: hir.Int, def: hir.NewInt(3)}, "n", hir.Int},
		{&parserArg{flags: []string{"-v", "--verbose"}, action: "store_true"}, "verbose", hir.Bool},
		{&parserArg{flags: []string{"-q"}, action: "count", elem: hir.Str}, "q", hir.Int},
		{&parserArg{flags: []string{"files"}, nargs: "+", elem: hir.Str}, "files", hir.ListOf(hir.Str)},
		{&parserArg{flags: []string{"--tag"}, action: "append", elem: hir.Str}, "tag", hir.ListOf(hir.Str)},
		{&parserArg{flags: []string{"--level"}, dest: "log_level", elem: hir.Str, required: true}, "log_level", hir.Str},
		{&parserArg{flags: []string{"extra"}, nargs: "?", elem: hir.Str}, "extra", hir.OptionalOf(hir.Str)},
	}

	for _, c := range cases {
		if got := c.arg.name(); got != c.name {
			t.Errorf("%v: name() = %q, want %q", c.arg.flags, got, c.name)
		}
		if got := c.arg.typ(); !got.Equals(c.typ) {
			t.Errorf("%v: typ() = %s, want %s", c.arg.flags, got, c.typ)
		}
	}
}

func TestClapAttrs(t *testing.T) {
	cases := []struct {
		arg  *parserArg
		want []string
	}{
		{&parserArg{flags: []string{"input"}, elem: hir.Str}, nil},
		{&parserArg{flags: []string{"-o", "--out-file"}, elem: hir.Str}, []string{"arg(short = 'o', long)"}},
		{&parserArg{flags: []string{"--out"}, dest: "target", elem: hir.Str}, []string{`arg(long = "out")`}},
		{&parserArg{flags: []string{"-v", "--verbose"}, action: "count"}, []string{"arg(short = 'v', long, action = clap::ArgAction::Count)"}},
		{&parserArg{flags: []string{"files"}, nargs: "+", elem: hir.Str}, []string{"arg(num_args = 1.., required = true)"}},
		{&parserArg{flags: []string{"--n"}, elem: hir.Int, def: hir.NewInt(5)}, []string{"arg(long, default_value_t = 5)"}},
		{&parserArg{flags: []string{"--quiet"}, action: "store_false"}, []string{"arg(long, action = clap::ArgAction::SetFalse)"}},
	}

	for _, c := range cases {
		if got := c.arg.clapAttrs(); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%v: clapAttrs() = %q, want %q", c.arg.flags, got, c.want)
		}
	}
}

func TestDefaultAttr(t *testing.T) {
	cases := []struct {
		def  hir.Expr
		want string
		ok   bool
	}{
		{hir.NewStr("out.txt"), `default_value = "out.txt"`, true},
		{hir.NewInt(10), "default_value_t = 10", true},
		{hir.NewFloat(2), "default_value_t = 2.0", true},
		{hir.NewFloat(0.5), "default_value_t = 0.5", true},
		{hir.NewBool(true), "default_value_t = true", true},
		{hir.NewUnary(hir.OpNeg, hir.NewInt(1)), "default_value_t = -1", true},
		{hir.NewVar("DEFAULT"), "", false},
		{nil, "", false},
	}

	for _, c := range cases {
		got, ok := defaultAttr(c.def)
		if got != c.want || ok != c.ok {
			t.Errorf("defaultAttr(%v) = %q, %v, want %q, %v", c.def, got, ok, c.want, c.ok)
		}
	}
}

func argparseProgram(extra ...hir.Stmt) []hir.Stmt {
	parser := hir.NewVar("parser")
	args := hir.NewVar("args")

	body := []hir.Stmt{
		hir.NewAssign(parser, hir.NewMethodCall(hir.NewVar("argparse"), "ArgumentParser").
			WithKwarg("description", hir.NewStr("Count words."))),
		hir.NewExprStmt(hir.NewMethodCall(parser, "add_argument", hir.NewStr("path")).
			WithKwarg("help", hir.NewStr("file to read"))),
		hir.NewExprStmt(hir.NewMethodCall(parser, "add_argument", hir.NewStr("-v"), hir.NewStr("--verbose")).
			WithKwarg("action", hir.NewStr("store_true"))),
		hir.NewExprStmt(hir.NewMethodCall(parser, "add_argument", hir.NewStr("--limit")).
			WithKwarg("type", hir.NewVar("int")).
			WithKwarg("default", hir.NewInt(10))),
		hir.NewAssign(args, hir.NewMethodCall(parser, "parse_args")),
		hir.NewExprStmt(hir.NewCall("print", hir.NewAttr(args, "path"), hir.NewAttr(args, "limit"))),
	}

	return []hir.Stmt{
		importModule("argparse"),
		hir.NewFunc("main", nil, hir.NoneType, append(body, extra...)...),
	}
}

func TestArgumentParserBecomesClapStruct(t *testing.T) {
	out, res := lowerBody(t, ModeAsync, argparseProgram()...)

	assertContains(t, out,
		"/// Count words.",
		"#[derive(Parser, Debug)]",
		"struct Args",
		"/// file to read",
		"path: String",
		"#[arg(short = 'v', long)]",
		"verbose: bool",
		"#[arg(long, default_value_t = 10)]",
		"limit: i64",
		"Args::parse()",
		"args.path",
		"args.limit",
	)
	assertNotContains(t, out, "ArgumentParser", "add_argument")

	if st, ok := res.Items[0].(*rust.Struct); !ok || st.Name != "Args" {
		t.Errorf("Args is not the first item:\n%s", out)
	}
}

func TestDuplicateArgumentFails(t *testing.T) {
	dup := hir.NewExprStmt(hir.NewMethodCall(hir.NewVar("parser"), "add_argument", hir.NewStr("--verbose")))
	body := argparseProgram()
	fn := body[1].(*hir.FunctionDef)
	fn.Body = append(fn.Body[:3:3], append([]hir.Stmt{dup}, fn.Body[3:]...)...)

	if _, err := Module(hir.NewModule("test", body...), Options{}); err == nil {
		t.Error("duplicate argument lowered without error")
	}
}

func TestParserMethodsOnUntypedReceiver(t *testing.T) {
	p := hir.NewVar("p")
	helper := hir.NewFunc("add_flags", []*hir.Param{hir.NewParam("p", nil)}, hir.NoneType,
		hir.NewExprStmt(hir.NewMethodCall(p, "add_argument", hir.NewStr("--fast")).
			WithKwarg("action", hir.NewStr("store_true"))),
	)

	out, _ := lowerBody(t, ModeAsync, append([]hir.Stmt{helper}, argparseProgram()...)...)

	assertContains(t, out, "fast: bool", "verbose: bool")
	assertNotContains(t, out, "add_argument", "p.add_argument")
}
