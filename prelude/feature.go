package prelude

import (
	"math/bits"
	"sort"
	"strings"
)

// Feature is a single requirement that lowered code places on the generated
// file: either a runtime support fragment, a `use` declaration or an external
// crate.
type Feature int

// Enumeration of features.  The order is the canonical emission order.
const (
	Chrono Feature = iota
	Regex
	AsyncRuntime
	Tokio
	Hex
	Digest
	BufRead
	IOWrite
	CSV
	HashMap
	HashSet
	VecDeque
	SerdeJSON
	Duration
	Rand
	Clap

	ValueEnum
	PyOps
	PyIndex
	PyTruthy
	StringOps
	IntOps
	Date
	DateTime
	TimeDelta
	RegexMatch
	Exceptions
	ZeroDivision
	IndexError
	MinMax

	featureCount
)

var featureNames = [featureCount]string{
	Chrono:       "chrono",
	Regex:        "regex",
	AsyncRuntime: "async-runtime",
	Tokio:        "tokio",
	Hex:          "hex",
	Digest:       "digest",
	BufRead:      "bufread",
	IOWrite:      "io-write",
	CSV:          "csv",
	HashMap:      "hashmap",
	HashSet:      "hashset",
	VecDeque:     "vecdeque",
	SerdeJSON:    "serde-json",
	Duration:     "duration",
	Rand:         "rand",
	Clap:         "clap",
	ValueEnum:    "value-enum",
	PyOps:        "py-ops",
	PyIndex:      "py-index",
	PyTruthy:     "py-truthy",
	StringOps:    "python-string-ops",
	IntOps:       "python-int-ops",
	Date:         "date",
	DateTime:     "datetime",
	TimeDelta:    "timedelta",
	RegexMatch:   "regex-match",
	Exceptions:   "exceptions",
	ZeroDivision: "zero-division",
	IndexError:   "index-error",
	MinMax:       "min-max",
}

func (f Feature) String() string {
	if f < 0 || f >= featureCount {
		return "unknown"
	}

	return featureNames[f]
}

// ParseFeature looks up a feature by its name.
func ParseFeature(name string) (Feature, bool) {
	for i, fname := range featureNames {
		if fname == strings.ToLower(name) {
			return Feature(i), true
		}
	}

	return 0, false
}

// implies lists the features each feature cannot be emitted without.
var implies = map[Feature][]Feature{
	AsyncRuntime: {Tokio},
	Digest:       {Hex},
	Date:         {TimeDelta},
	DateTime:     {Date, TimeDelta},
	RegexMatch:   {Regex},
}

// useDecls are the `use` paths each feature requires.
var useDecls = map[Feature][]string{
	Chrono:   {"chrono::{Datelike, Timelike}"},
	Regex:    {"regex::Regex"},
	Clap:     {"clap::Parser"},
	Rand:     {"rand::Rng", "rand::seq::SliceRandom"},
	Digest:   {"sha2::Digest"},
	BufRead:  {"std::io::BufRead"},
	IOWrite:  {"std::io::Write"},
	HashMap:  {"std::collections::HashMap"},
	HashSet:  {"std::collections::HashSet"},
	VecDeque: {"std::collections::VecDeque"},
	Duration: {"std::time::Duration"},
}

// -----------------------------------------------------------------------------

// Set is a set of features.  The zero value is the empty set.
type Set uint64

// SetOf creates a set containing fs.
func SetOf(fs ...Feature) Set {
	var s Set
	for _, f := range fs {
		s = s.With(f)
	}

	return s
}

// With returns s with f added.
func (s Set) With(f Feature) Set {
	return s | 1<<uint(f)
}

// Add adds f to the set in place.
func (s *Set) Add(f Feature) {
	*s = s.With(f)
}

// Has returns whether f is in the set.
func (s Set) Has(f Feature) bool {
	return s&(1<<uint(f)) != 0
}

// Union returns the union of s and other.
func (s Set) Union(other Set) Set {
	return s | other
}

// Len returns the number of features in the set.
func (s Set) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Features returns the members of the set in canonical order.
func (s Set) Features() []Feature {
	var fs []Feature
	for f := Feature(0); f < featureCount; f++ {
		if s.Has(f) {
			fs = append(fs, f)
		}
	}

	return fs
}

// Names returns the names of the members of the set in canonical order.
func (s Set) Names() []string {
	var names []string
	for _, f := range s.Features() {
		names = append(names, f.String())
	}

	return names
}

// Closure returns s extended with every feature its members imply.
func (s Set) Closure() Set {
	for {
		next := s
		for _, f := range s.Features() {
			for _, dep := range implies[f] {
				next = next.With(dep)
			}
		}

		if next == s {
			return s
		}

		s = next
	}
}

// Uses returns the `use` paths required by the closure of s, sorted and
// deduplicated.
func (s Set) Uses() []string {
	seen := make(map[string]struct{})
	var uses []string
	for _, f := range s.Closure().Features() {
		for _, u := range useDecls[f] {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				uses = append(uses, u)
			}
		}
	}

	sort.Strings(uses)
	return uses
}
