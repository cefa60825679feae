package lower

import (
	"testing"

	"github.com/paiml/depyler-sub004/hir"
)

func TestConvertRepl(t *testing.T) {
	cases := []struct {
		repl, want string
	}{
		{"plain", "plain"},
		{`\1-\2`, "${1}-${2}"},
		{`\g<word>!`, "${word}!"},
		{"cost: $5", "cost: $$5"},
		{`a\nb`, "a\nb"},
		{`tab\there`, "tab\there"},
		{`back\\slash`, `back\slash`},
		{`\12`, "${12}"},
	}

	for _, c := range cases {
		if got := convertRepl(c.repl); got != c.want {
			t.Errorf("convertRepl(%q) = %q, want %q", c.repl, got, c.want)
		}
	}
}

func TestCaptureGroups(t *testing.T) {
	cases := []struct {
		pat  string
		want int
	}{
		{`\d+`, 0},
		{`(a)(b)`, 2},
		{`(?:a)(b)`, 1},
		{`(?P<year>\d{4})-(\d\d)`, 2},
		{`\(literal\)`, 0},
		{`[(]x[)]`, 0},
		{`(?i)abc`, 0},
	}

	for _, c := range cases {
		if got := captureGroups(c.pat); got != c.want {
			t.Errorf("captureGroups(%q) = %d, want %d", c.pat, got, c.want)
		}
	}
}

func TestInlineFlags(t *testing.T) {
	cases := []struct {
		flags int64
		want  string
	}{
		{0, ""},
		{2, "(?i)"},
		{2 | 8, "(?im)"},
		{16 | 64, "(?sx)"},
	}

	for _, c := range cases {
		if got := inlineFlags(c.flags); got != c.want {
			t.Errorf("inlineFlags(%d) = %q, want %q", c.flags, got, c.want)
		}
	}
}

func regexFunc(name string, ret *hir.Type, value hir.Expr) []hir.Stmt {
	return []hir.Stmt{
		importModule("re"),
		hir.NewFunc(name, []*hir.Param{hir.NewParam("s", hir.Str)}, ret, hir.NewReturn(value)),
	}
}

func TestRegexModuleFunctions(t *testing.T) {
	re := hir.NewVar("re")
	s := hir.NewVar("s")

	cases := []struct {
		name  string
		ret   *hir.Type
		value hir.Expr
		want  []string
	}{
		{"words", hir.ListOf(hir.Str), hir.NewMethodCall(re, "findall", hir.NewStr(`\w+`), s),
			[]string{"find_iter", `Regex::new("\\w+")`}},
		{"keys", hir.ListOf(hir.Str), hir.NewMethodCall(re, "findall", hir.NewStr(`(\w+)=`), s),
			[]string{"captures_iter", "get(1)"}},
		{"scrub", hir.Str, hir.NewMethodCall(re, "sub", hir.NewStr(`(\d)`), hir.NewStr(`<\1>`), s),
			[]string{"replace_all", `"<${1}>"`}},
		{"parts", hir.ListOf(hir.Str), hir.NewMethodCall(re, "split", hir.NewStr(`,\s*`), s),
			[]string{".split("}},
		{"quoted", hir.Str, hir.NewMethodCall(re, "escape", s),
			[]string{"regex::escape("}},
		{"folded", hir.ListOf(hir.Str), hir.NewMethodCall(re, "findall", hir.NewStr("ab"), s, hir.NewAttr(re, "IGNORECASE")),
			[]string{`"(?i)ab"`}},
	}

	for _, c := range cases {
		out, _ := lowerBody(t, ModeAsync, regexFunc(c.name, c.ret, c.value)...)
		assertContains(t, out, c.want...)
	}
}

func TestRegexRejectsUnsupportedPatterns(t *testing.T) {
	re := hir.NewVar("re")
	s := hir.NewVar("s")

	for _, pat := range []string{`(a)\1`, `(?<=x)y`, `(?P=name)`} {
		body := regexFunc("bad", hir.ListOf(hir.Str), hir.NewMethodCall(re, "findall", hir.NewStr(pat), s))
		if _, err := Module(hir.NewModule("test", body...), Options{}); err == nil {
			t.Errorf("pattern %q lowered without error", pat)
		}
	}
}
