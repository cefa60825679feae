package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/paiml/depyler-sub004/common"
	"github.com/paiml/depyler-sub004/lower"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, common.ConfigFileName), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
name = "word_count"
pyrs-version = ">= 0.3"
mode = "realtime"
trace = true
jobs = 2
out-dir = "out"

[crates]
regex = "~1.10"
`)

	proj, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := &Project{
		Root:   dir,
		Name:   "word_count",
		Mode:   lower.ModeRealtime,
		Trace:  true,
		Jobs:   2,
		OutDir: filepath.Join(dir, "out"),
		Pins:   map[string]string{"regex": "~1.10"},
	}
	if diff := pretty.Diff(proj, want); len(diff) > 0 {
		t.Errorf("Load mismatch:\n%s", strings.Join(diff, "\n"))
	}
}

func TestLoadRejectsInvalidProjects(t *testing.T) {
	cases := []struct {
		text, msg string
	}{
		{`pyrs-version = "^0.4"`, "missing project name"},
		{"name = \"9lives\"\npyrs-version = \"^0.4\"", "valid identifier"},
		{"name = \"p\"\npyrs-version = \">= 9.0\"", "does not satisfy"},
		{"name = \"p\"\npyrs-version = \"latest\"", "invalid pyrs-version"},
		{"name = \"p\"\npyrs-version = \"^0.4\"\nmode = \"threads\"", "unknown mode"},
		{"name = \"p\"\npyrs-version = \"^0.4\"\njobs = -1", "jobs must be positive"},
		{"name = \"p\"\npyrs-version = \"^0.4\"\n[crates]\nregex = \"one\"", "invalid version pin"},
		{"name = [", "error parsing"},
	}

	for _, c := range cases {
		_, err := Load(writeConfig(t, c.text))
		if err == nil || !strings.Contains(err.Error(), c.msg) {
			t.Errorf("Load(%q) = %v, want error containing %q", c.text, err, c.msg)
		}
	}
}

func TestFindFallsBackToDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-tool")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	proj, err := Find(filepath.Join(dir, "main"+common.HIRFileExt))
	if err != nil {
		t.Fatal(err)
	}

	if proj.Root != dir || proj.Name != "my-tool" || proj.Jobs != common.DefaultJobs || proj.Mode != lower.ModeAsync {
		t.Errorf("Find = %# v", pretty.Formatter(proj))
	}
}

func TestInitRoundTrips(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, "fresh"); err != nil {
		t.Fatal(err)
	}

	proj, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if proj.Name != "fresh" || proj.Jobs != common.DefaultJobs {
		t.Errorf("Load after Init = %# v", pretty.Formatter(proj))
	}

	if err := Init(dir, "again"); err == nil {
		t.Error("Init overwrote an existing configuration")
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"a", "word_count", "my-tool", "_x", "v2"}
	invalid := []string{"", "2fast", "-x", "has space", "dots.are.bad"}

	for _, name := range valid {
		if !IsValidIdentifier(name) {
			t.Errorf("IsValidIdentifier(%q) = false", name)
		}
	}
	for _, name := range invalid {
		if IsValidIdentifier(name) {
			t.Errorf("IsValidIdentifier(%q) = true", name)
		}
	}
}
