package hir

import "testing"

func TestParseType(t *testing.T) {
	cases := []struct {
		annot string
		want  *Type
	}{
		{"int", Int},
		{"str", Str},
		{"list[int]", ListOf(Int)},
		{"List[str]", ListOf(Str)},
		{"dict[str, list[int]]", DictOf(Str, ListOf(Int))},
		{"Optional[str]", OptionalOf(Str)},
		{"int | None", OptionalOf(Int)},
		{"Union[float, None]", OptionalOf(Float)},
		{"tuple[int, str]", TupleOf(Int, Str)},
		{"tuple[int, ...]", ListOf(Int)},
		{"set[str]", SetOf(Str)},
		{"Iterator[int]", GenericOf("Iterator", Int)},
		{"Callable[[int, int], bool]", FuncOf([]*Type{Int, Int}, Bool)},
		{"Point", CustomOf("Point")},
		{"Any", Unknown},
	}

	for _, c := range cases {
		got, err := ParseType(c.annot)
		if err != nil {
			t.Errorf("ParseType(%q) failed: %s", c.annot, err)
			continue
		}

		if !got.Equals(c.want) {
			t.Errorf("ParseType(%q) = %s, want %s", c.annot, got, c.want)
		}
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, annot := range []string{"list[int", "dict[str,, int]", "int]"} {
		if _, err := ParseType(annot); err == nil {
			t.Errorf("ParseType(%q) should fail", annot)
		}
	}

	if got, err := ParseType("  "); got != nil || err != nil {
		t.Errorf("empty annotation should be unknown, got %v, %v", got, err)
	}
}

func TestIsMoreSpecific(t *testing.T) {
	if !ListOf(Int).IsMoreSpecific(ListOf(nil)) {
		t.Errorf("list[int] should be more specific than list")
	}

	if ListOf(nil).IsMoreSpecific(ListOf(Int)) {
		t.Errorf("list should not be more specific than list[int]")
	}

	if ListOf(Int).IsMoreSpecific(ListOf(Int)) {
		t.Errorf("a type is not more specific than itself")
	}

	if !Str.IsMoreSpecific(nil) {
		t.Errorf("any type is more specific than unknown")
	}

	if DictOf(Str, Int).IsMoreSpecific(ListOf(Int)) {
		t.Errorf("unrelated kinds are never more specific")
	}
}

func TestTypeHelpers(t *testing.T) {
	var unknown *Type
	if !unknown.IsUnknown() || !unknown.Is(TUnknown) {
		t.Errorf("nil types must be unknown")
	}

	opt := OptionalOf(OptionalOf(Str))
	if !opt.Unwrapped().Equals(Str) {
		t.Errorf("Unwrapped(%s) = %s", opt, opt.Unwrapped())
	}

	if !TupleOf(Int, Float).IsCopy() || TupleOf(Int, Str).IsCopy() {
		t.Errorf("tuple copy-ness follows its elements")
	}

	if DictOf(Str, Int).Value() != Int || DictOf(Str, Int).Key() != Str {
		t.Errorf("dict key/value accessors are wrong")
	}

	if got := DictOf(Str, ListOf(Int)).Repr(); got != "dict[str, list[int]]" {
		t.Errorf("Repr() = %q", got)
	}
}
