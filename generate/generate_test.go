package generate

import (
	"strings"
	"testing"

	"github.com/pelletier/go-toml"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/lower"
	"github.com/paiml/depyler-sub004/prelude"
)

func regexModule() *hir.Module {
	m := hir.NewVar("m")
	return hir.NewModule("words",
		&hir.Import{Module: "re"},
		hir.NewFunc("first_word", []*hir.Param{hir.NewParam("s", hir.Str)}, hir.Str,
			hir.NewAssign(m, hir.NewMethodCall(hir.NewVar("re"), "search", hir.NewStr(`\w+`), hir.NewVar("s"))),
			hir.NewReturn(hir.NewIfExpr(m, hir.NewMethodCall(m, "group"), hir.NewStr(""))),
		),
		hir.NewExprStmt(hir.NewCall("print", hir.NewCall("first_word", hir.NewStr("hello world")))),
	)
}

func TestOutputOrder(t *testing.T) {
	out, err := Transpile(regexModule(), lower.Options{})
	if err != nil {
		t.Fatal(err)
	}

	src := out.Source
	order := []string{
		"#![allow(unused_imports)]",
		"use regex::Regex;",
		"pub struct DepylerRegexMatch",
		"fn first_word(",
		"fn main()",
	}

	last := -1
	for _, frag := range order {
		i := strings.Index(src, frag)
		if i < 0 {
			t.Fatalf("output does not contain %q:\n%s", frag, src)
		}
		if i < last {
			t.Errorf("%q is out of order:\n%s", frag, src)
		}
		last = i
	}
}

func TestPreludeOnlyWhenNeeded(t *testing.T) {
	mod := hir.NewModule("plain",
		hir.NewFunc("add", []*hir.Param{hir.NewParam("a", hir.Int), hir.NewParam("b", hir.Int)}, hir.Int,
			hir.NewReturn(hir.NewBinary(hir.OpAdd, hir.NewVar("a"), hir.NewVar("b")))),
	)

	out, err := Transpile(mod, lower.Options{})
	if err != nil {
		t.Fatal(err)
	}

	for _, frag := range []string{"DepylerValue", "DepylerRegexMatch", "PyException", "use "} {
		if strings.Contains(out.Source, frag) {
			t.Errorf("output contains %q without needing it:\n%s", frag, out.Source)
		}
	}
	if len(out.Crates) != 0 {
		t.Errorf("crates = %v, want none", out.Crates)
	}
}

func TestEveryNeededFragmentIsEmitted(t *testing.T) {
	out, err := Transpile(regexModule(), lower.Options{})
	if err != nil {
		t.Fatal(err)
	}

	for _, file := range out.Needs.FragmentFiles() {
		if !strings.Contains(out.Source, strings.TrimSpace(prelude.Source(file))) {
			t.Errorf("fragment %s is missing from the output", file)
		}
	}
}

func TestTranspileIsDeterministic(t *testing.T) {
	a, err := Transpile(regexModule(), lower.Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Transpile(regexModule(), lower.Options{})
	if err != nil {
		t.Fatal(err)
	}

	if a.Source != b.Source {
		t.Error("transpiling the same module twice gave different output")
	}
}

func TestTranspileErrorProducesNoOutput(t *testing.T) {
	mod := hir.NewModule("broken",
		hir.NewFunc("f", nil, hir.ListOf(hir.Int),
			hir.NewReturn(&hir.Comprehension{Kind: hir.CompList, Element: hir.NewInt(1)})),
	)

	out, err := Transpile(mod, lower.Options{})
	if err == nil {
		t.Fatal("comprehension without generators lowered without error")
	}
	if out != nil {
		t.Error("output returned with an error")
	}
}

// -----------------------------------------------------------------------------

func TestCratesFor(t *testing.T) {
	crates := CratesFor(prelude.SetOf(prelude.RegexMatch, prelude.AsyncRuntime, prelude.Clap))

	var names []string
	for _, c := range crates {
		names = append(names, c.Name)
	}

	if got := strings.Join(names, ","); got != "clap,regex,tokio" {
		t.Errorf("crates = %s, want clap,regex,tokio", got)
	}
}

func TestApplyPins(t *testing.T) {
	crates := CratesFor(prelude.SetOf(prelude.Regex, prelude.Rand))

	pinned, warnings, err := ApplyPins(crates, map[string]string{"regex": "~1.10", "rand": "0.9"})
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range pinned {
		switch c.Name {
		case "regex":
			if c.Version != "~1.10" {
				t.Errorf("regex version = %s", c.Version)
			}
		case "rand":
			if c.Version != "0.9" {
				t.Errorf("rand version = %s", c.Version)
			}
		}
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "rand") {
		t.Errorf("warnings = %q, want one for rand", warnings)
	}

	if crates[0].Version == "~1.10" || crates[1].Version == "~1.10" {
		t.Error("ApplyPins modified its input")
	}

	if _, _, err := ApplyPins(crates, map[string]string{"regex": "not a version"}); err == nil {
		t.Error("invalid pin accepted")
	}
}

func TestManifestRoundTrips(t *testing.T) {
	src, err := Manifest("words", CratesFor(prelude.SetOf(prelude.Regex, prelude.Clap)))
	if err != nil {
		t.Fatal(err)
	}

	tree, err := toml.Load(src)
	if err != nil {
		t.Fatalf("manifest does not parse: %v\n%s", err, src)
	}

	if got := tree.GetPath([]string{"package", "name"}); got != "words" {
		t.Errorf("package.name = %v", got)
	}
	if got := tree.GetPath([]string{"dependencies", "regex"}); got != "1" {
		t.Errorf("dependencies.regex = %v", got)
	}
	if got := tree.GetPath([]string{"dependencies", "clap", "version"}); got != "4" {
		t.Errorf("dependencies.clap.version = %v", got)
	}

	features, ok := tree.GetPath([]string{"dependencies", "clap", "features"}).([]interface{})
	if !ok || len(features) != 1 || features[0] != "derive" {
		t.Errorf("dependencies.clap.features = %v", features)
	}
}
