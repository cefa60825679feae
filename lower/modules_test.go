package lower

import (
	"testing"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
)

func TestModuleCalls(t *testing.T) {
	x := hir.NewVar("x")
	mod := func(name string) *hir.Var { return hir.NewVar(name) }

	cases := []struct {
		name   string
		module string
		param  *hir.Type
		ret    *hir.Type
		value  hir.Expr
		want   []string
		needs  prelude.Feature
	}{
		{"root", "math", hir.Float, hir.Float,
			hir.NewMethodCall(mod("math"), "sqrt", x), []string{"x.sqrt()"}, 0},
		{"floored", "math", hir.Float, hir.Int,
			hir.NewMethodCall(mod("math"), "floor", x), []string{"x.floor() as i64"}, 0},
		{"natural", "math", hir.Int, hir.Float,
			hir.NewMethodCall(mod("math"), "log", x), []string{"(x as f64).ln()"}, 0},
		{"dice", "random", hir.Int, hir.Int,
			hir.NewMethodCall(mod("random"), "randint", hir.NewInt(1), x), []string{"gen_range(1..=x)"}, prelude.Rand},
		{"stamp", "datetime", hir.Int, hir.CustomOf(typeDateTime),
			hir.NewMethodCall(mod("datetime"), "datetime", hir.NewInt(2024), hir.NewInt(1), x),
			[]string{"DepylerDateTime::new(2024, 1, x, 0, 0, 0, 0)"}, prelude.DateTime},
		{"span", "datetime", hir.Int, hir.CustomOf(typeTimeDelta),
			hir.NewMethodCall(mod("datetime"), "timedelta").WithKwarg("days", x),
			[]string{"DepylerTimeDelta::from_microseconds(x * 86400000000)"}, prelude.TimeDelta},
		{"home", "os", hir.Str, hir.OptionalOf(hir.Str),
			hir.NewMethodCall(mod("os"), "getenv", x), []string{"std::env::var("}, 0},
		{"tally", "collections", hir.ListOf(hir.Str), hir.DictOf(hir.Str, hir.Int),
			hir.NewMethodCall(mod("collections"), "Counter", x), []string{"or_insert(0)", "+= 1"}, prelude.HashMap},
		{"queue", "collections", hir.ListOf(hir.Int), hir.GenericOf("deque", hir.Int),
			hir.NewMethodCall(mod("collections"), "deque", x), []string{"VecDeque"}, prelude.VecDeque},
		{"encoded", "json", hir.DictOf(hir.Str, hir.Int), hir.Str,
			hir.NewMethodCall(mod("json"), "dumps", x), []string{"serde_json::to_string"}, prelude.SerdeJSON},
		{"pause", "time", hir.Float, hir.NoneType,
			hir.NewMethodCall(mod("time"), "sleep", x), []string{"std::thread::sleep(std::time::Duration::from_secs_f64(x))"}, 0},
	}

	for _, c := range cases {
		out, res := lowerBody(t, ModeAsync,
			importModule(c.module),
			hir.NewFunc(c.name, []*hir.Param{hir.NewParam("x", c.param)}, c.ret, hir.NewReturn(c.value)),
		)

		assertContains(t, out, c.want...)
		if c.needs != 0 && !res.Needs.Has(c.needs) {
			t.Errorf("%s: needs %v, want %v", c.name, res.Needs.Names(), c.needs)
		}
	}
}

func TestUnsupportedModuleCalls(t *testing.T) {
	cases := []struct {
		module string
		value  hir.Expr
	}{
		{"subprocess", hir.NewMethodCall(hir.NewVar("subprocess"), "run", hir.NewList(hir.NewStr("ls")))},
		{"collections", hir.NewMethodCall(hir.NewVar("collections"), "deque").WithKwarg("maxlen", hir.NewInt(3))},
		{"collections", hir.NewMethodCall(hir.NewVar("collections"), "namedtuple", hir.NewStr("P"), hir.NewStr("x y"))},
		{"re", hir.NewMethodCall(hir.NewVar("re"), "sub", hir.NewStr("a"), hir.NewLambda([]string{"m"}, hir.NewStr("b")), hir.NewStr("abc"))},
	}

	for _, c := range cases {
		mod := hir.NewModule("test",
			importModule(c.module),
			hir.NewFunc("f", nil, hir.Unknown, hir.NewExprStmt(c.value)),
		)
		if _, err := Module(mod, Options{}); err == nil {
			t.Errorf("%s call lowered without error", c.module)
		}
	}
}
