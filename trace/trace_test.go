package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paiml/depyler-sub004/report"
)

func TestDecisionIDIsStable(t *testing.T) {
	a := DecisionID("method_dispatch", "method_call", "method.go", 42)
	b := DecisionID("method_dispatch", "method_call", "method.go", 42)
	if a != b {
		t.Fatalf("ids differ: %x != %x", a, b)
	}

	if c := DecisionID("method_dispatch", "method_call", "method.go", 43); c == a {
		t.Errorf("different lines produced the same id %x", a)
	}

	// FNV-1a of the empty input is the offset basis.
	h := DecisionID("", "", "", 0)
	if h == 0xcbf29ce484222325 {
		t.Errorf("separators were not hashed")
	}
}

func TestNilTracerIsNoop(t *testing.T) {
	var tr *Tracer
	tr.Record(TypeMapping, "x", "i64", nil, 1, nil)

	if tr.Enabled() || tr.Len() != 0 {
		t.Errorf("nil tracer recorded a decision")
	}
}

func TestRecordAndQuery(t *testing.T) {
	tr := NewTracer()
	tr.Record(TypeMapping, "param_type", "&Vec<i64>", []string{"Vec<i64>"}, 0.9,
		&report.TextSpan{StartLine: 1, EndLine: 3})
	tr.Record(MethodDispatch, "get", "dict", []string{"list"}, 0.6,
		&report.TextSpan{StartLine: 2, EndLine: 2})

	if tr.Len() != 2 {
		t.Fatalf("Len = %d", tr.Len())
	}

	d, ok := tr.Find("get")
	if !ok || d.Chosen != "dict" || d.Seq != 1 {
		t.Errorf("Find(get) = %+v, %v", d, ok)
	}

	if got := tr.Filter(TypeMapping); len(got) != 1 || got[0].Name != "param_type" {
		t.Errorf("Filter(TypeMapping) = %v", got)
	}

	corr := tr.Correlate(2)
	if len(corr) != 2 || corr[0].Name != "get" {
		t.Errorf("Correlate should rank the tightest span first, got %v", corr)
	}

	if !strings.HasPrefix(d.Site, "trace_test.go:") {
		t.Errorf("unexpected site %q", d.Site)
	}
}

func TestWriteJSONL(t *testing.T) {
	tr := NewTracer()
	tr.Record(ErrorHandling, "raise", "result", []string{"panic"}, 0.8, nil)
	tr.Record(Ownership, "capture", "clone", nil, 0.7, nil)

	var buf bytes.Buffer
	if err := tr.WriteJSONL(&buf); err != nil {
		t.Fatal(err)
	}

	sc := bufio.NewScanner(&buf)
	var lines int
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}

		if lines == 0 && m["category"] != "error_handling" {
			t.Errorf("category encoded as %v", m["category"])
		}

		lines++
	}

	if lines != 2 {
		t.Errorf("wrote %d lines, want 2", lines)
	}
}
