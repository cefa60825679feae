package rust

import (
	"strings"
	"testing"
)

func TestPrecedenceParenthesization(t *testing.T) {
	cases := []struct {
		expr Expr
		want string
	}{
		{Bin("*", Bin("+", Id("a"), Id("b")), Id("c")), "(a + b) * c"},
		{Bin("+", Id("a"), Bin("*", Id("b"), Id("c"))), "a + b * c"},
		{Bin("-", Id("a"), Bin("-", Id("b"), Id("c"))), "a - (b - c)"},
		{Bin("==", Bin("<", Id("a"), Id("b")), Id("c")), "(a < b) == c"},
		{Not(Bin("&&", Id("a"), Id("b"))), "!(a && b)"},
		{M(As(Id("x"), T("f64")), "sqrt"), "(x as f64).sqrt()"},
		{M(&Range{Lo: Int(0), Hi: Id("n")}, "rev"), "(0..n).rev()"},
		{M(Int(-1), "abs"), "(-1).abs()"},
		{As(Bin("+", Id("a"), Id("b")), T("f64")), "(a + b) as f64"},
		{Bin("/", As(Id("a"), T("f64")), As(Id("b"), T("f64"))), "a as f64 / b as f64"},
		{M(Deref(Id("x")), "clone"), "(*x).clone()"},
		{&Try{X: M(Id("s"), "parse")}, "s.parse()?"},
		{&Await{X: CallPath("tokio::time::sleep", Id("d"))}, "tokio::time::sleep(d).await"},
	}

	for _, c := range cases {
		if got := ExprString(c.expr); got != c.want {
			t.Errorf("ExprString = %q, want %q", got, c.want)
		}
	}
}

func TestLiteralFormatting(t *testing.T) {
	cases := []struct {
		expr Expr
		want string
	}{
		{Float(1), "1.0"},
		{Float(2.5), "2.5"},
		{Str("say \"hi\"\n"), `"say \"hi\"\n"`},
		{&CharLit{Value: '\''}, `'\''`},
		{&IntLit{Value: 8, Suffix: "usize"}, "8usize"},
		{&Tuple{Elems: []Expr{Int(1)}}, "(1,)"},
		{Unit(), "()"},
		{&Macro{Name: "vec", Args: []Expr{Int(0), Id("n")}, Bracket: true, Repeat: true}, "vec![0; n]"},
	}

	for _, c := range cases {
		if got := ExprString(c.expr); got != c.want {
			t.Errorf("ExprString = %q, want %q", got, c.want)
		}
	}
}

func TestClosureAndChain(t *testing.T) {
	chain := &MethodCall{
		Recv: M(
			M(M(M(Id("items"), "iter"), "cloned"), "filter",
				ClosureOf(false, &RefPat{Pat: Pat("x")}, Bin(">", Id("x"), Int(0)))),
			"map", Lambda(false, []string{"x"}, Bin("*", Id("x"), Int(2))),
		),
		Method:    "collect",
		Turbofish: []Type{T("Vec", &InferType{})},
	}

	want := "items.iter().cloned().filter(|&x| x > 0).map(|x| x * 2).collect::<Vec<_>>()"
	if got := ExprString(chain); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestBlockFormatting(t *testing.T) {
	fn := &Fn{
		Name:   "f",
		Params: []Param{{Pat: Pat("items"), Ty: TRef(T("Vec", T("i64")))}},
		Ret:    T("Vec", T("i64")),
		Body: BlockOf(Id("out"),
			LetName("out", true, nil, CallPath("Vec::new")),
			&ExprStmt{X: &For{
				Pat:  Pat("x"),
				Iter: M(Id("items"), "iter"),
				Body: BlockOf(nil, Semi(M(Id("out"), "push", Deref(Id("x"))))),
			}},
		),
	}

	want := strings.Join([]string{
		"fn f(items: &Vec<i64>) -> Vec<i64> {",
		"    let mut out = Vec::new();",
		"    for x in items.iter() {",
		"        out.push(*x);",
		"    }",
		"    out",
		"}",
	}, "\n")

	if got := ItemString(fn); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestMatchFormatting(t *testing.T) {
	m := &Match{
		Scrut: M(Id("s"), "parse", nil...),
		Arms: []Arm{
			{Pat: &TupleStructPat{Path: "Ok", Elems: []Pattern{Pat("v")}}, Body: Id("v")},
			{Pat: &TupleStructPat{Path: "Err", Elems: []Pattern{&WildPat{}}}, Body: BlockOf(Int(0))},
		},
	}

	want := "match s.parse() {\n    Ok(v) => v,\n    Err(_) => {\n        0\n    }\n}"
	if got := ExprString(m); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTypeFormatting(t *testing.T) {
	cases := []struct {
		ty   Type
		want string
	}{
		{T("HashMap", T("String"), T("Vec", T("i64"))), "HashMap<String, Vec<i64>>"},
		{TImplIter(T("i64")), "impl Iterator<Item = i64>"},
		{TBoxDyn(T("std::io::Write")), "Box<dyn std::io::Write>"},
		{&RefType{Mut: true, Elem: T("Option", T("String"))}, "&mut Option<String>"},
		{&TupleType{Elems: []Type{T("i64"), T("String")}}, "(i64, String)"},
		{&FnType{Trait: "Fn", Params: []Type{T("i64")}, Ret: T("bool")}, "Fn(i64) -> bool"},
	}

	for _, c := range cases {
		if got := TypeString(c.ty); got != c.want {
			t.Errorf("TypeString = %q, want %q", got, c.want)
		}
	}
}

func TestSafeIdent(t *testing.T) {
	cases := map[string]string{
		"type":   "r#type",
		"match":  "r#match",
		"self":   "self_",
		"value":  "value",
		"2fast":  "_2fast",
		"a-b":    "a_b",
		"Struct": "Struct",
	}

	for in, want := range cases {
		if got := SafeIdent(in); got != want {
			t.Errorf("SafeIdent(%q) = %q, want %q", in, got, want)
		}
	}

	if got := SnakeCase("parseHTTPHeader"); got != "parse_http_header" {
		t.Errorf("SnakeCase = %q", got)
	}
}

func TestFileString(t *testing.T) {
	f := &File{
		InnerAttrs: []string{"allow(unused)"},
		Uses:       []string{"std::collections::HashMap"},
		Prelude:    []string{"pub struct Marker;\n"},
		Items: []Item{
			&Const{Name: "LIMIT", Ty: T("i64"), Value: Int(10)},
			&Fn{Name: "main", Body: BlockOf(nil, Semi(MacroCall("println")))},
		},
	}

	want := "#![allow(unused)]\n\nuse std::collections::HashMap;\n\npub struct Marker;\n\nconst LIMIT: i64 = 10;\n\nfn main() {\n    println!();\n}\n"
	if got := FileString(f); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}
