package lower

import (
	"errors"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/report"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerBody lowers a module made of body and returns its printed items.
func lowerBody(t *testing.T, mode Mode, body ...hir.Stmt) (string, *Result) {
	t.Helper()

	res, err := Module(hir.NewModule("test", body...), Options{Mode: mode, Trace: true})
	if err != nil {
		t.Fatalf("Module: %v", err)
	}

	return printItems(res.Items), res
}

func printItems(items []rust.Item) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(rust.ItemString(item))
		sb.WriteString("\n")
	}

	return sb.String()
}

func assertContains(t *testing.T, out string, fragments ...string) {
	t.Helper()

	for _, f := range fragments {
		if !strings.Contains(out, f) {
			t.Errorf("output does not contain %q:\n%s", f, out)
		}
	}
}

func assertNotContains(t *testing.T, out string, fragments ...string) {
	t.Helper()

	for _, f := range fragments {
		if strings.Contains(out, f) {
			t.Errorf("output unexpectedly contains %q:\n%s", f, out)
		}
	}
}

func importModule(name string) *hir.Import {
	return &hir.Import{Module: name}
}

// -----------------------------------------------------------------------------

func TestFilteredListComprehension(t *testing.T) {
	x := hir.NewVar("x")
	comp := hir.NewListComp(
		hir.NewBinary(hir.OpMul, x, hir.NewInt(2)),
		x,
		hir.NewVar("items"),
		hir.NewBinary(hir.OpGt, x, hir.NewInt(0)),
	)

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("f", []*hir.Param{hir.NewParam("items", hir.ListOf(hir.Int))}, hir.ListOf(hir.Int),
			hir.NewReturn(comp)),
	)

	assertContains(t, out,
		"fn f(items: &Vec<i64>) -> Vec<i64>",
		"items.iter().copied().filter(|&x| x > 0).map(|x| x * 2).collect::<Vec<_>>()",
	)
}

func TestDictInsertAndGetWithDefault(t *testing.T) {
	x := hir.NewVar("x")
	out, res := lowerBody(t, ModeAsync,
		hir.NewFunc("g", nil, hir.Int,
			hir.NewAssign(x, hir.NewDict(hir.NewStr("a"), hir.NewInt(1))),
			hir.NewAssign(hir.NewIndex(x, hir.NewStr("b")), hir.NewInt(2)),
			hir.NewReturn(hir.NewMethodCall(x, "get", hir.NewStr("b"), hir.NewInt(0))),
		),
	)

	assertContains(t, out,
		"HashMap",
		`x.insert("b".to_string(), 2)`,
		`x.get("b").cloned().unwrap_or(0)`,
	)
	if !res.Needs.Has(prelude.HashMap) {
		t.Errorf("needs %v, want hashmap", res.Needs.Names())
	}
}

func TestTryParseFallsBackInHandler(t *testing.T) {
	v := hir.NewVar("v")
	try := &hir.Try{
		Body: []hir.Stmt{hir.NewAssign(v, hir.NewCall("int", hir.NewVar("s")))},
		Handlers: []*hir.Handler{{
			Types: []string{"ValueError"},
			Body:  []hir.Stmt{hir.NewAssign(v, hir.NewInt(0))},
		}},
	}

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("parse_or_zero", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.Int,
			try,
			hir.NewReturn(v),
		),
	)

	assertContains(t, out, "fn parse_or_zero(", "parse::<i64>()", "-> i64")
	assertNotContains(t, out, "invalid literal for int()")
}

func TestRegexSearchGroup(t *testing.T) {
	m := hir.NewVar("m")
	out, res := lowerBody(t, ModeAsync,
		importModule("re"),
		hir.NewFunc("first", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.Str,
			hir.NewAssign(m, hir.NewMethodCall(hir.NewVar("re"), "search", hir.NewStr(`\d+`), hir.NewVar("s"))),
			hir.NewReturn(hir.NewIfExpr(m, hir.NewMethodCall(m, "group", hir.NewInt(0)), hir.NewStr(""))),
		),
	)

	assertContains(t, out,
		"Regex::new(",
		"if let Some(ref m_val) = m",
		"m_val.as_str().to_string()",
		`"".to_string()`,
	)
	if !res.Needs.Has(prelude.Regex) {
		t.Errorf("needs %v, want regex", res.Needs.Names())
	}
}

func asyncSleeper() []hir.Stmt {
	g := hir.NewFunc("g", nil, hir.Int,
		hir.NewExprStmt(&hir.Await{Value: hir.NewMethodCall(hir.NewVar("asyncio"), "sleep", hir.NewInt(1))}),
		hir.NewReturn(hir.NewInt(2)),
	)
	g.IsAsync = true

	return []hir.Stmt{importModule("asyncio"), g}
}

func TestAsyncModeUsesTokio(t *testing.T) {
	out, res := lowerBody(t, ModeAsync, asyncSleeper()...)

	assertContains(t, out,
		"async fn g() -> i64",
		"tokio::time::sleep(std::time::Duration::from_secs_f64(1.0)).await",
	)
	assertNotContains(t, out, ".await.await")
	if !res.Needs.Has(prelude.AsyncRuntime) {
		t.Errorf("needs %v, want async runtime", res.Needs.Names())
	}
}

func TestRealtimeModeBlocks(t *testing.T) {
	out, res := lowerBody(t, ModeRealtime, asyncSleeper()...)

	assertContains(t, out,
		"fn g() -> i64",
		"std::thread::sleep(std::time::Duration::from_secs_f64(1.0))",
	)
	assertNotContains(t, out, "async fn", ".await", "tokio")
	if res.Needs.Has(prelude.AsyncRuntime) {
		t.Errorf("realtime mode needs the async runtime")
	}
}

func TestIterateFileLines(t *testing.T) {
	line := hir.NewVar("line")
	loop := &hir.For{
		Target: line,
		Iter:   hir.NewCall("open", hir.NewVar("path")),
		Body:   []hir.Stmt{hir.NewExprStmt(hir.NewCall("print", line))},
	}

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("dump", []*hir.Param{hir.NewParam("path", hir.Str)}, hir.NoneType, loop),
	)

	assertContains(t, out,
		"BufReader",
		`.lines().map(|line| line.expect("failed to read line"))`,
		`println!("{}", line)`,
	)
}

// -----------------------------------------------------------------------------

func TestFStringPlaceholdersMatchArguments(t *testing.T) {
	fs := &hir.FString{Parts: []*hir.FStringPart{
		{Expr: hir.NewVar("name")},
		{Literal: " has {"},
		{Expr: hir.NewVar("n")},
		{Literal: "} items"},
	}}

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("describe", []*hir.Param{hir.NewParam("name", hir.Str), hir.NewParam("n", hir.Int)}, hir.Str,
			hir.NewReturn(fs)),
	)

	assertContains(t, out, `format!("{} has {{{}}} items", name, n)`)
}

func TestEmptyFStringIsEmptyString(t *testing.T) {
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("empty", nil, hir.Str, hir.NewReturn(&hir.FString{})),
	)

	assertContains(t, out, "String::new()")
	assertNotContains(t, out, "format!")
}

func TestBarePrintIsNewline(t *testing.T) {
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("blank", nil, hir.NoneType, hir.NewExprStmt(hir.NewCall("print"))),
	)

	assertContains(t, out, "println!()")
}

func TestSelfOrDefaultEvaluatesOnce(t *testing.T) {
	name := hir.NewVar("name")
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("display_name", []*hir.Param{hir.NewParam("name", hir.Str)}, hir.Str,
			hir.NewReturn(hir.NewIfExpr(name, name, hir.NewStr("anonymous")))),
	)

	body := out[strings.Index(out, "{"):]
	if n := strings.Count(body, "name"); n != 1 {
		t.Errorf("name occurs %d times in body, want 1:\n%s", n, out)
	}
}

func TestLoweringIsDeterministic(t *testing.T) {
	build := func() *hir.Module {
		return hir.NewModule("test", append(asyncSleeper(),
			hir.NewFunc("h", []*hir.Param{hir.NewParam("xs", hir.ListOf(hir.Int))}, hir.Int,
				hir.NewReturn(hir.NewCall("sum", hir.NewVar("xs")))),
		)...)
	}

	a, err := Module(build(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Module(build(), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if pa, pb := printItems(a.Items), printItems(b.Items); pa != pb {
		t.Errorf("outputs differ:\n%s", strings.Join(pretty.Diff(pa, pb), "\n"))
	}
	if a.Needs != b.Needs {
		t.Errorf("needs differ: %v vs %v", a.Needs.Names(), b.Needs.Names())
	}
}

func TestUnsupportedConstructAborts(t *testing.T) {
	mod := hir.NewModule("test",
		importModule("re"),
		hir.NewFunc("bad", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.Bool,
			hir.NewReturn(hir.NewBinary(hir.OpEq,
				hir.NewMethodCall(hir.NewVar("re"), "search", hir.NewStr("a(?=b)"), hir.NewVar("s")),
				hir.NewNone()))),
	)

	res, err := Module(mod, Options{})
	if err == nil {
		t.Fatalf("expected an error, got %# v", pretty.Formatter(res))
	}
	if res != nil {
		t.Errorf("partial result returned with error")
	}

	var lce *report.LocalCompileError
	if !errors.As(err, &lce) {
		t.Fatalf("error %T is not a compile error", err)
	}
	if !strings.Contains(lce.Message, "lookaround") {
		t.Errorf("message = %q", lce.Message)
	}
}

func TestTraceRecordsImports(t *testing.T) {
	_, res := lowerBody(t, ModeRealtime, asyncSleeper()...)

	if res.Tracer == nil {
		t.Fatal("tracing enabled but no tracer returned")
	}
	d, ok := res.Tracer.Find("asyncio.sleep")
	if !ok {
		t.Fatalf("no decision for asyncio.sleep among %d", res.Tracer.Len())
	}
	if d.Category != trace.ImportResolve || d.Chosen != "realtime" {
		t.Errorf("decision = %# v", pretty.Formatter(d))
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		name string
		mode Mode
		ok   bool
	}{
		{"", ModeAsync, true},
		{"async", ModeAsync, true},
		{"realtime", ModeRealtime, true},
		{"threads", 0, false},
	}

	for _, c := range cases {
		mode, ok := ParseMode(c.name)
		if ok != c.ok || (ok && mode != c.mode) {
			t.Errorf("ParseMode(%q) = %v, %v", c.name, mode, ok)
		}
		if ok && c.name != "" && mode.String() != c.name {
			t.Errorf("%v.String() = %q", mode, mode.String())
		}
	}
}

// -----------------------------------------------------------------------------

func TestLambdaClonesCapturedLocals(t *testing.T) {
	s := hir.NewVar("s")
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("suffixer", []*hir.Param{hir.NewParam("n", hir.Int)}, hir.Str,
			hir.NewAssign(s, hir.NewCall("str", hir.NewVar("n"))),
			hir.NewAssign(hir.NewVar("g"), hir.NewLambda([]string{"y"},
				hir.NewBinary(hir.OpAdd, hir.NewVar("y"), s))),
			hir.NewReturn(s),
		),
	)

	assertContains(t, out,
		"let s_clone = s.clone();",
		`move |y| format!("{}{}", y, s_clone)`,
	)
	assertNotContains(t, out, `y, s)`)
}

func TestCharComprehensionUsesCharOrd(t *testing.T) {
	c := hir.NewVar("c")
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("codes", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.ListOf(hir.Int),
			hir.NewReturn(hir.NewListComp(hir.NewCall("ord", c), c, hir.NewVar("s")))),
	)

	assertContains(t, out, "s.chars().map(|c| c as i64).collect::<Vec<_>>()")
	assertNotContains(t, out, "chars().next()")
}

func TestNestedComprehensionFlatMaps(t *testing.T) {
	x, y := hir.NewVar("x"), hir.NewVar("y")
	comp := &hir.Comprehension{
		Kind:    hir.CompList,
		Element: hir.NewTuple(x, y),
		Generators: []*hir.Generator{
			{Target: x, Iter: hir.NewVar("xs")},
			{Target: y, Iter: hir.NewVar("ys")},
		},
	}

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("pairs",
			[]*hir.Param{hir.NewParam("xs", hir.ListOf(hir.Int)), hir.NewParam("ys", hir.ListOf(hir.Int))},
			hir.ListOf(hir.TupleOf(hir.Int, hir.Int)),
			hir.NewReturn(comp)),
	)

	assertContains(t, out, "xs.iter().copied().flat_map(|x| ys.iter().copied().map(move |y| (x, y)))")
	assertNotContains(t, out, "for x in")
}

func TestMutatedOptionalParamUnwraps(t *testing.T) {
	o := hir.NewVar("o")
	reset := &hir.If{
		Test: hir.NewBinary(hir.OpIs, o, hir.NewNone()),
		Body: []hir.Stmt{hir.NewAssign(o, hir.NewList())},
	}

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("fill", []*hir.Param{hir.NewParam("o", hir.OptionalOf(hir.ListOf(hir.Int)))}, hir.Int,
			reset,
			hir.NewExprStmt(hir.NewMethodCall(o, "append", hir.NewInt(1))),
			hir.NewReturn(hir.NewCall("len", o)),
		),
	)

	assertContains(t, out,
		"o: &mut Option<Vec<i64>>",
		"o.is_none()",
		"*o = Some(",
		"o.as_mut().unwrap().push(1)",
		"o.as_ref().unwrap().len() as i64",
	)
	assertNotContains(t, out, "is_true", "mut o:")
}

func TestWriterIfExprBoxesBranches(t *testing.T) {
	path, out := hir.NewVar("path"), hir.NewVar("out")
	src, _ := lowerBody(t, ModeAsync,
		importModule("sys"),
		hir.NewFunc("emit", []*hir.Param{hir.NewParam("path", hir.Str)}, hir.NoneType,
			hir.NewAssign(out, hir.NewIfExpr(path,
				hir.NewCall("open", path, hir.NewStr("w")),
				hir.NewAttr(hir.NewVar("sys"), "stdout"))),
			hir.NewExprStmt(hir.NewMethodCall(out, "write", hir.NewStr("hi"))),
		),
	)

	assertContains(t, src,
		"let mut out: Box<dyn std::io::Write> = if",
		"as Box<dyn std::io::Write>",
		"Box::new(std::io::stdout())",
		"out.write_all(",
	)
}

func TestOptionalIfExprMapsValue(t *testing.T) {
	m := hir.NewVar("m")
	out, _ := lowerBody(t, ModeAsync,
		importModule("re"),
		hir.NewFunc("digits", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.OptionalOf(hir.Str),
			hir.NewAssign(m, hir.NewMethodCall(hir.NewVar("re"), "search", hir.NewStr(`(\d+)`), hir.NewVar("s"))),
			hir.NewReturn(hir.NewIfExpr(m, hir.NewMethodCall(m, "group", hir.NewInt(1)), hir.NewNone())),
		),
	)

	assertContains(t, out, "-> Option<String>", "m.as_ref().map(|m_val| m_val.group(1))")
	assertNotContains(t, out, "Option<Option", "Some(m")
}

func TestIdenticalIfExprBranchesCollapse(t *testing.T) {
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("pick", []*hir.Param{hir.NewParam("flag", hir.Bool), hir.NewParam("n", hir.Int)}, hir.Int,
			hir.NewReturn(hir.NewIfExpr(hir.NewVar("flag"), hir.NewVar("n"), hir.NewVar("n")))),
	)

	assertNotContains(t, out, "if flag")
}

func TestIdentitySortKeySortsPlainly(t *testing.T) {
	sorted := hir.NewCall("sorted", hir.NewVar("xs")).
		WithKwarg("key", hir.NewLambda([]string{"k"}, hir.NewVar("k")))

	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("ordered", []*hir.Param{hir.NewParam("xs", hir.ListOf(hir.Int))}, hir.ListOf(hir.Int),
			hir.NewReturn(sorted)),
	)

	assertContains(t, out, ".sort();")
	assertNotContains(t, out, "sort_by_key", "|k| k")
}

func TestMapWithBuiltinFunction(t *testing.T) {
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("labels", []*hir.Param{hir.NewParam("xs", hir.ListOf(hir.Int))}, hir.ListOf(hir.Str),
			hir.NewReturn(hir.NewCall("list", hir.NewCall("map", hir.NewVar("str"), hir.NewVar("xs"))))),
	)

	assertContains(t, out, "-> Vec<String>", ".map(", "to_string()", "collect")
}

func TestAmbiguousAppendTypesReceiver(t *testing.T) {
	v := hir.NewVar("v")
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("build", []*hir.Param{hir.NewParam("q", hir.Int)}, nil,
			hir.NewAssign(v, hir.NewCall("mystery", hir.NewVar("q"))),
			hir.NewExprStmt(hir.NewMethodCall(v, "append", hir.NewInt(3))),
			hir.NewReturn(v),
		),
	)

	assertContains(t, out, "-> Vec<i64>", "v.push(3)")
}

func TestJSONIterationDefaultsToEmpty(t *testing.T) {
	item := hir.NewVar("item")
	loop := &hir.For{
		Target: item,
		Iter:   hir.NewMethodCall(hir.NewVar("json"), "loads", hir.NewVar("text")),
		Body:   []hir.Stmt{hir.NewExprStmt(hir.NewCall("print", item))},
	}

	out, _ := lowerBody(t, ModeAsync,
		importModule("json"),
		hir.NewFunc("walk", []*hir.Param{hir.NewParam("text", hir.Str)}, hir.NoneType, loop),
	)

	assertContains(t, out, ".as_array().cloned().unwrap_or_default().into_iter()")
	assertNotContains(t, out, "not a JSON array")
}

func TestRsplitWithLimitReverses(t *testing.T) {
	out, _ := lowerBody(t, ModeAsync,
		hir.NewFunc("tail", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.ListOf(hir.Str),
			hir.NewReturn(hir.NewMethodCall(hir.NewVar("s"), "rsplit", hir.NewStr(","), hir.NewInt(1)))),
	)

	assertContains(t, out, "Vec<String> = s.rsplitn(", ".reverse();")
}
