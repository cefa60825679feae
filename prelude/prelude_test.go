package prelude

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"
)

func TestEmptySetEmitsNothing(t *testing.T) {
	var s Set
	if got := s.Fragments(); len(got) != 0 {
		t.Errorf("empty set emitted %d fragments", len(got))
	}

	if got := s.Uses(); len(got) != 0 {
		t.Errorf("empty set emitted uses %v", got)
	}
}

func TestValueSpecialisationsNeedBothFlags(t *testing.T) {
	cases := []struct {
		set  Set
		want []string
	}{
		{SetOf(ValueEnum), []string{"value_enum.rs"}},
		{SetOf(StringOps), []string{"string_ops.rs"}},
		{SetOf(StringOps, ValueEnum), []string{"value_enum.rs", "string_ops.rs", "string_ops_value.rs"}},
		{SetOf(PyOps, PyIndex), []string{"py_ops.rs", "py_index.rs"}},
		{SetOf(IntOps, ValueEnum, PyTruthy), []string{
			"value_enum.rs", "py_truthy.rs", "py_truthy_value.rs", "int_ops.rs", "int_ops_value.rs",
		}},
	}

	for _, c := range cases {
		if got := c.set.FragmentFiles(); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%v: got %v, want %v", c.set.Names(), got, c.want)
		}
	}
}

func TestClosure(t *testing.T) {
	s := SetOf(DateTime).Closure()
	for _, f := range []Feature{DateTime, Date, TimeDelta} {
		if !s.Has(f) {
			t.Errorf("closure of datetime is missing %s", f)
		}
	}

	if SetOf(RegexMatch).Closure() != SetOf(RegexMatch, Regex) {
		t.Errorf("regex-match should imply exactly regex")
	}

	want := []string{"timedelta.rs", "date.rs", "datetime.rs"}
	if got := SetOf(DateTime).FragmentFiles(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUses(t *testing.T) {
	s := SetOf(VecDeque, HashMap, RegexMatch, HashMap)
	want := []string{"regex::Regex", "std::collections::HashMap", "std::collections::VecDeque"}
	if got := s.Uses(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEveryEmbeddedFragmentIsReachable(t *testing.T) {
	listed := make(map[string]bool)
	for _, fr := range fragmentTable {
		listed[fr.file] = true
	}

	entries, err := fs.ReadDir(fragmentFS, "fragments")
	if err != nil {
		t.Fatal(err)
	}

	for _, e := range entries {
		if !listed[e.Name()] {
			t.Errorf("fragment %s is embedded but never selected", e.Name())
		}
	}

	all := Set(0)
	for f := Feature(0); f < featureCount; f++ {
		all.Add(f)
	}

	if got := len(all.Fragments()); got != len(fragmentTable) {
		t.Errorf("full set emitted %d fragments, want %d", got, len(fragmentTable))
	}
}

func TestFragmentDeclarations(t *testing.T) {
	decls := map[Feature]string{
		ValueEnum:    "pub enum DepylerValue",
		PyOps:        "pub trait PyAdd",
		PyIndex:      "pub trait PyIndex",
		PyTruthy:     "pub trait PyTruthy",
		StringOps:    "pub trait PyStringMethods",
		IntOps:       "pub trait PythonIntOps",
		Date:         "pub struct DepylerDate ",
		DateTime:     "pub struct DepylerDateTime",
		TimeDelta:    "pub struct DepylerTimeDelta",
		RegexMatch:   "pub struct DepylerRegexMatch",
		Exceptions:   "pub struct PyException",
		ZeroDivision: "pub struct ZeroDivisionError",
		IndexError:   "pub struct IndexError",
		MinMax:       "pub fn depyler_min",
	}

	for f, decl := range decls {
		src := strings.Join(SetOf(f).Fragments(), "\n")
		if !strings.Contains(src, decl) {
			t.Errorf("%s fragments do not declare %q", f, decl)
		}
	}
}

func TestParseFeature(t *testing.T) {
	for f := Feature(0); f < featureCount; f++ {
		got, ok := ParseFeature(f.String())
		if !ok || got != f {
			t.Errorf("ParseFeature(%q) = %v, %v", f.String(), got, ok)
		}
	}

	if _, ok := ParseFeature("numpy"); ok {
		t.Errorf("unknown feature parsed")
	}
}
