package trace

import (
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/paiml/depyler-sub004/report"
)

// Category classifies a lowering decision.
type Category int

// Enumeration of decision categories.
const (
	TypeMapping Category = iota
	BorrowStrategy
	LifetimeInfer
	MethodDispatch
	ImportResolve
	ErrorHandling
	Ownership
)

var categoryNames = [...]string{
	TypeMapping:    "type_mapping",
	BorrowStrategy: "borrow_strategy",
	LifetimeInfer:  "lifetime_infer",
	MethodDispatch: "method_dispatch",
	ImportResolve:  "import_resolve",
	ErrorHandling:  "error_handling",
	Ownership:      "ownership",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}

	return categoryNames[c]
}

// MarshalJSON encodes the category by name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Decision is a single recorded lowering choice.
type Decision struct {
	// ID is stable across runs: it hashes the category, the decision name
	// and the site in pyrs that made the decision.
	ID uint64 `json:"id"`

	// Seq is the position of the decision in the trace.
	Seq int `json:"seq"`

	Category Category `json:"category"`
	Name     string   `json:"name"`

	// Chosen is the emitted strategy and Alternatives are the strategies
	// that were considered but not taken.
	Chosen       string   `json:"chosen"`
	Alternatives []string `json:"alternatives,omitempty"`

	Confidence float64 `json:"confidence"`

	// Span is the position of the HIR node the decision was made for.
	Span *report.TextSpan `json:"span,omitempty"`

	// Site is the `file:line` of the lowering code that made the decision.
	Site string `json:"site"`
}

// DecisionID computes the FNV-1a id of a decision.
func DecisionID(category, name, file string, line uint32) uint64 {
	h := fnv.New64a()
	h.Write([]byte(category))
	h.Write([]byte("::"))
	h.Write([]byte(name))
	h.Write([]byte("::"))
	h.Write([]byte(file))
	h.Write([]byte("::"))

	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], line)
	h.Write(lb[:])

	return h.Sum64()
}

// -----------------------------------------------------------------------------

// Tracer accumulates the decisions made while lowering one file.  A nil
// *Tracer is valid and records nothing so that tracing can be switched off
// without guarding every call site.
type Tracer struct {
	decisions []*Decision
}

// NewTracer creates a new, empty tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Enabled returns whether t records decisions.
func (t *Tracer) Enabled() bool {
	return t != nil
}

// Record records a decision.  The caller of Record is taken as the decision
// site.
func (t *Tracer) Record(cat Category, name, chosen string, alts []string, confidence float64, span *report.TextSpan) {
	if t == nil {
		return
	}

	file, line := "<unknown>", 0
	if _, f, l, ok := runtime.Caller(1); ok {
		file, line = filepath.Base(f), l
	}

	t.decisions = append(t.decisions, &Decision{
		ID:           DecisionID(cat.String(), name, file, uint32(line)),
		Seq:          len(t.decisions),
		Category:     cat,
		Name:         name,
		Chosen:       chosen,
		Alternatives: alts,
		Confidence:   confidence,
		Span:         span,
		Site:         file + ":" + strconv.Itoa(line),
	})
}

// Decisions returns the recorded decisions in order.
func (t *Tracer) Decisions() []*Decision {
	if t == nil {
		return nil
	}

	return t.decisions
}

// Len returns the number of recorded decisions.
func (t *Tracer) Len() int {
	return len(t.Decisions())
}

// Filter returns the decisions of the given category.
func (t *Tracer) Filter(cat Category) []*Decision {
	var out []*Decision
	for _, d := range t.Decisions() {
		if d.Category == cat {
			out = append(out, d)
		}
	}

	return out
}

// Find returns the first decision with the given name.
func (t *Tracer) Find(name string) (*Decision, bool) {
	for _, d := range t.Decisions() {
		if d.Name == name {
			return d, true
		}
	}

	return nil, false
}

// Correlate returns the decisions whose span covers the given zero-indexed
// source line, tightest span first.
func (t *Tracer) Correlate(line int) []*Decision {
	var out []*Decision
	for _, d := range t.Decisions() {
		if d.Span != nil && d.Span.StartLine <= line && line <= d.Span.EndLine {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.EndLine-out[i].Span.StartLine < out[j].Span.EndLine-out[j].Span.StartLine
	})

	return out
}

// WriteJSONL writes the trace as newline-delimited JSON.
func (t *Tracer) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, d := range t.Decisions() {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}

	return nil
}
