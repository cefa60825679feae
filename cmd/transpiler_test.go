package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paiml/depyler-sub004/common"
	"github.com/paiml/depyler-sub004/config"
	"github.com/paiml/depyler-sub004/report"
)

const scaleHIR = `{
  "name": "scale",
  "source_path": "scale.py",
  "body": [
    {
      "kind": "function",
      "name": "f",
      "params": [{"name": "items", "type": "list[int]"}],
      "ret": "list[int]",
      "body": [
        {
          "kind": "return",
          "value": {
            "kind": "list_comp",
            "element": {"kind": "binary", "op": "*", "left": {"kind": "var", "name": "x"}, "right": {"kind": "int", "value": %FACTOR%}},
            "generators": [{
              "target": {"kind": "var", "name": "x"},
              "iter": {"kind": "var", "name": "items"},
              "conds": []
            }]
          }
        }
      ]
    }
  ]
}`

func scaleSource(factor string) string {
	return strings.Replace(scaleHIR, "%FACTOR%", factor, 1)
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietProject(t *testing.T) *config.Project {
	t.Helper()

	report.InitReporter(report.LogLevelSilent)
	report.ResetCounts()

	return config.Default(t.TempDir())
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	return string(data)
}

// -----------------------------------------------------------------------------

func TestRunWritesRustFiles(t *testing.T) {
	proj := quietProject(t)

	good := filepath.Join(proj.Root, "scale"+common.HIRFileExt)
	bad := filepath.Join(proj.Root, "broken"+common.HIRFileExt)
	writeFile(t, good, scaleSource("2"))
	writeFile(t, bad, `{"name": "broken", "body": [{"kind": "bogus"}]}`)

	files, err := collectFiles(proj.Root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("collectFiles = %v", files)
	}

	if NewTranspiler(proj).Run(context.Background(), files) {
		t.Error("Run succeeded with an undecodable file")
	}

	if errs, _ := report.Counts(); errs != 1 {
		t.Errorf("error count = %d, want 1", errs)
	}

	src := readFile(t, filepath.Join(proj.OutDir, "scale"+common.RustFileExt))
	if !strings.Contains(src, "fn f(") || !strings.Contains(src, "* 2") {
		t.Errorf("unexpected output:\n%s", src)
	}

	if _, err := os.Stat(filepath.Join(proj.OutDir, "broken"+common.RustFileExt)); err == nil {
		t.Error("output written for a file that failed")
	}
}

func TestOutputPathOverride(t *testing.T) {
	proj := quietProject(t)

	in := filepath.Join(proj.Root, "scale"+common.HIRFileExt)
	writeFile(t, in, scaleSource("3"))

	tr := NewTranspiler(proj)
	tr.outPath = filepath.Join(proj.Root, "gen", "lib.rs")
	if !tr.TranspileFile(in) {
		t.Fatal("TranspileFile failed")
	}

	if src := readFile(t, tr.outPath); !strings.Contains(src, "* 3") {
		t.Errorf("unexpected output:\n%s", src)
	}
}

func TestTraceWrittenWhenEnabled(t *testing.T) {
	proj := quietProject(t)
	proj.Trace = true

	in := filepath.Join(proj.Root, "scale"+common.HIRFileExt)
	writeFile(t, in, scaleSource("2"))

	if !NewTranspiler(proj).TranspileFile(in) {
		t.Fatal("TranspileFile failed")
	}

	f, err := os.Open(filepath.Join(proj.OutDir, "scale.trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("trace line is not JSON: %q", sc.Text())
		}
		lines++
	}

	if lines == 0 {
		t.Error("trace is empty")
	}
}

func TestDryRunCollectsCrates(t *testing.T) {
	proj := quietProject(t)
	proj.Pins["regex"] = "~1.10"

	in := filepath.Join(proj.Root, "words"+common.HIRFileExt)
	writeFile(t, in, `{
  "name": "words",
  "body": [
    {"kind": "import", "module": "re"},
    {"kind": "expr", "value": {"kind": "call", "func": "print", "args": [
      {"kind": "method_call", "recv": {"kind": "var", "name": "re"}, "method": "escape", "args": [{"kind": "str", "value": "a.b"}]}
    ]}}
  ]
}`)

	tr := NewTranspiler(proj)
	tr.dryRun = true
	if !tr.Run(context.Background(), []string{in}) {
		t.Fatal("Run failed")
	}

	if _, err := os.Stat(filepath.Join(proj.OutDir, "words"+common.RustFileExt)); err == nil {
		t.Error("dry run wrote output")
	}

	crates, warnings, err := tr.Crates()
	if err != nil {
		t.Fatal(err)
	}
	if len(crates) != 1 || crates[0].Name != "regex" || crates[0].Version != "~1.10" {
		t.Errorf("crates = %v", crates)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %q", warnings)
	}
}

func TestCollectFilesRejectsEmptyDirectory(t *testing.T) {
	if _, err := collectFiles(t.TempDir()); err == nil {
		t.Error("empty directory accepted")
	}
}

func TestWatchRebuildsOnWrite(t *testing.T) {
	proj := quietProject(t)

	in := filepath.Join(proj.Root, "scale"+common.HIRFileExt)
	out := filepath.Join(proj.OutDir, "scale"+common.RustFileExt)
	writeFile(t, in, scaleSource("2"))

	built := make(chan bool, 4)
	tr := NewTranspiler(proj)
	tr.afterBuild = func(ok bool) { built <- ok }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Watch(ctx, in) }()

	wait := func() {
		t.Helper()

		select {
		case ok := <-built:
			if !ok {
				t.Fatal("watched build failed")
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for a build")
		}
	}

	wait()
	if src := readFile(t, out); !strings.Contains(src, "* 2") {
		t.Fatalf("unexpected first output:\n%s", src)
	}

	writeFile(t, in, scaleSource("5"))
	wait()
	if src := readFile(t, out); !strings.Contains(src, "* 5") {
		t.Errorf("output not rebuilt:\n%s", src)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
