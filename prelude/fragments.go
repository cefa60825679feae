package prelude

import (
	"embed"
	"fmt"
)

//go:embed fragments/*.rs
var fragmentFS embed.FS

// fragment is a single piece of runtime support source.  It is emitted only
// when every feature in requires is present.
type fragment struct {
	file     string
	requires []Feature
}

// fragmentTable lists every fragment in emission order.  Fragments that
// specialise a trait family for DepylerValue require both the family and the
// value enum.
var fragmentTable = []fragment{
	{"value_enum.rs", []Feature{ValueEnum}},
	{"py_ops.rs", []Feature{PyOps}},
	{"py_ops_value.rs", []Feature{PyOps, ValueEnum}},
	{"py_index.rs", []Feature{PyIndex}},
	{"py_index_value.rs", []Feature{PyIndex, ValueEnum}},
	{"py_truthy.rs", []Feature{PyTruthy}},
	{"py_truthy_value.rs", []Feature{PyTruthy, ValueEnum}},
	{"string_ops.rs", []Feature{StringOps}},
	{"string_ops_value.rs", []Feature{StringOps, ValueEnum}},
	{"int_ops.rs", []Feature{IntOps}},
	{"int_ops_value.rs", []Feature{IntOps, ValueEnum}},
	{"timedelta.rs", []Feature{TimeDelta}},
	{"date.rs", []Feature{Date}},
	{"datetime.rs", []Feature{DateTime}},
	{"regex_match.rs", []Feature{RegexMatch}},
	{"exception.rs", []Feature{Exceptions}},
	{"zero_division.rs", []Feature{ZeroDivision}},
	{"index_error.rs", []Feature{IndexError}},
	{"min_max.rs", []Feature{MinMax}},
}

func (fr fragment) selected(s Set) bool {
	for _, f := range fr.requires {
		if !s.Has(f) {
			return false
		}
	}

	return true
}

// Fragments returns the runtime support source required by the closure of s
// in emission order.
func (s Set) Fragments() []string {
	s = s.Closure()

	var srcs []string
	for _, fr := range fragmentTable {
		if fr.selected(s) {
			srcs = append(srcs, Source(fr.file))
		}
	}

	return srcs
}

// FragmentFiles returns the names of the fragment files that Fragments would
// emit for s.
func (s Set) FragmentFiles() []string {
	s = s.Closure()

	var files []string
	for _, fr := range fragmentTable {
		if fr.selected(s) {
			files = append(files, fr.file)
		}
	}

	return files
}

// Source returns the text of the named fragment file.  The fragments are
// embedded at build time so a missing file is a bug in pyrs.
func Source(file string) string {
	data, err := fragmentFS.ReadFile("fragments/" + file)
	if err != nil {
		panic(fmt.Sprintf("missing prelude fragment `%s`", file))
	}

	return string(data)
}
