package hir

import (
	"strings"
	"testing"

	"github.com/kr/pretty"
)

const scaleModule = `{
  "name": "scale",
  "source_path": "scale.py",
  "body": [
    {
      "kind": "function",
      "name": "f",
      "params": [{"name": "items", "type": "list"}],
      "ret": "list[int]",
      "body": [
        {
          "kind": "return",
          "value": {
            "kind": "list_comp",
            "element": {"kind": "binary", "op": "*", "left": {"kind": "var", "name": "x"}, "right": {"kind": "int", "value": 2}},
            "generators": [{
              "target": {"kind": "var", "name": "x"},
              "iter": {"kind": "var", "name": "items"},
              "conds": [{"kind": "binary", "op": ">", "left": {"kind": "var", "name": "x"}, "right": {"kind": "int", "value": 0}}]
            }]
          },
          "span": {"start_line": 1, "start_col": 4, "end_line": 1, "end_col": 40}
        }
      ]
    }
  ]
}`

func TestDecodeModule(t *testing.T) {
	mod, err := Decode(strings.NewReader(scaleModule))
	if err != nil {
		t.Fatalf("Decode failed: %s", err)
	}

	// each occurrence is its own node, as decoded
	want := NewFunc("f",
		[]*Param{NewParam("items", ListOf(nil))},
		ListOf(Int),
		NewReturn(NewListComp(
			NewBinary(OpMul, NewVar("x"), NewInt(2)),
			NewVar("x"),
			NewVar("items"),
			NewBinary(OpGt, NewVar("x"), NewInt(0)),
		)),
	)

	if mod.Name != "scale" || mod.SourcePath != "scale.py" || len(mod.Body) != 1 {
		t.Fatalf("unexpected module header: %# v", pretty.Formatter(mod))
	}

	got := mod.Body[0].(*FunctionDef)
	ret := got.Body[0].(*Return)
	if ret.Span() == nil || ret.Span().StartCol != 4 {
		t.Errorf("return span not decoded: %v", ret.Span())
	}

	// Spans are not part of the comparison.
	ret.Pos = nil
	if diff := pretty.Diff(want, got); len(diff) > 0 {
		t.Errorf("decoded function differs:\n%s", strings.Join(diff, "\n"))
	}
}

func TestDecodeRejectsUnknownKinds(t *testing.T) {
	doc := `{"name": "m", "body": [{"kind": "expr", "value": {"kind": "walrus_party"}}]}`
	if _, err := Decode(strings.NewReader(doc)); err == nil || !strings.Contains(err.Error(), "walrus_party") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestDecodeTryAndClass(t *testing.T) {
	doc := `{"name": "m", "body": [
	  {"kind": "try",
	   "body": [{"kind": "pass"}],
	   "handlers": [{"types": ["ValueError"], "name": "e", "body": [{"kind": "pass"}]}],
	   "finally": [{"kind": "pass"}]},
	  {"kind": "class", "name": "Point", "decorators": ["dataclass"],
	   "fields": [{"name": "x", "type": "int"}, {"name": "y", "type": "int"}],
	   "methods": [{"kind": "function", "name": "norm", "params": [{"name": "self"}], "ret": "float", "body": []}]}
	]}`

	mod, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %s", err)
	}

	try := mod.Body[0].(*Try)
	if len(try.Handlers) != 1 || try.Handlers[0].Name != "e" || try.Handlers[0].Types[0] != "ValueError" {
		t.Errorf("handler not decoded: %# v", pretty.Formatter(try.Handlers))
	}

	if len(try.Finally) != 1 {
		t.Errorf("finally body not decoded")
	}

	cls := mod.Body[1].(*ClassDef)
	if !cls.HasDecorator("dataclass") || len(cls.Fields) != 2 || cls.Method("norm") == nil {
		t.Errorf("class not decoded: %# v", pretty.Formatter(cls))
	}

	if !cls.Method("norm").Ret.Equals(Float) {
		t.Errorf("method return type = %s", cls.Method("norm").Ret)
	}
}
