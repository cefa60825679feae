package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/paiml/depyler-sub004/common"
	"github.com/paiml/depyler-sub004/config"
	"github.com/paiml/depyler-sub004/generate"
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/lower"
	"github.com/paiml/depyler-sub004/report"
)

// Transpiler transpiles the HIR files of a project.  Files are independent:
// they are transpiled concurrently and an error in one does not stop the
// others.
type Transpiler struct {
	proj *config.Project
	opts lower.Options

	// outPath replaces the output path of a single transpiled file.
	outPath string

	// dryRun disables writing generated files.
	dryRun bool

	// m guards crates.
	m *sync.Mutex

	// crates is the union of the crates required by every file transpiled
	// successfully so far.
	crates map[string]generate.Crate

	// afterBuild is called once a watched file has been rebuilt.
	afterBuild func(ok bool)
}

// NewTranspiler creates a new transpiler for proj.
func NewTranspiler(proj *config.Project) *Transpiler {
	return &Transpiler{
		proj:   proj,
		opts:   lower.Options{Mode: proj.Mode, Trace: proj.Trace},
		m:      &sync.Mutex{},
		crates: make(map[string]generate.Crate),
	}
}

// Run transpiles the files at paths using at most `Jobs` goroutines.  It
// returns whether every file was transpiled without error.
func (t *Transpiler) Run(ctx context.Context, paths []string) bool {
	g, gctx := errgroup.WithContext(ctx)
	if t.proj.Jobs > 0 {
		g.SetLimit(t.proj.Jobs)
	}

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			t.TranspileFile(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		report.ReportStdError("", err)
		return false
	}

	return !report.AnyErrors()
}

// TranspileFile transpiles a single HIR file and writes the generated Rust
// file (and its trace if tracing is enabled).  All errors are reported.
func (t *Transpiler) TranspileFile(path string) bool {
	mod, err := loadHIR(path)
	if err != nil {
		report.ReportStdError(path, err)
		return false
	}

	srcPath := mod.SourcePath
	if srcPath != "" && !filepath.IsAbs(srcPath) {
		srcPath = filepath.Join(filepath.Dir(path), srcPath)
	}

	out, err := generate.Transpile(mod, t.opts)
	if err != nil {
		report.ReportError(srcPath, path, err)
		return false
	}

	t.m.Lock()
	for _, c := range out.Crates {
		t.crates[c.Name] = c
	}
	t.m.Unlock()

	if t.dryRun {
		return true
	}

	outPath := t.outputPath(path)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		report.ReportStdError(path, err)
		return false
	}

	if err := os.WriteFile(outPath, []byte(out.Source), 0o644); err != nil {
		report.ReportStdError(outPath, err)
		return false
	}

	if out.Tracer != nil {
		if err := writeTrace(tracePath(outPath), out); err != nil {
			report.ReportStdError(outPath, err)
			return false
		}
	}

	return true
}

// Crates returns the crates required by the transpiled files with the
// project's pins applied, sorted by name.
func (t *Transpiler) Crates() ([]generate.Crate, []string, error) {
	t.m.Lock()
	crates := make([]generate.Crate, 0, len(t.crates))
	for _, c := range t.crates {
		crates = append(crates, c)
	}
	t.m.Unlock()

	sort.Slice(crates, func(i, j int) bool {
		return crates[i].Name < crates[j].Name
	})

	return generate.ApplyPins(crates, t.proj.Pins)
}

// -----------------------------------------------------------------------------

// outputPath returns the path of the Rust file generated for the HIR file at
// path.
func (t *Transpiler) outputPath(path string) string {
	if t.outPath != "" {
		return t.outPath
	}

	name := filepath.Base(path)
	if strings.HasSuffix(name, common.HIRFileExt) {
		name = strings.TrimSuffix(name, common.HIRFileExt)
	} else {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return filepath.Join(t.proj.OutDir, name+common.RustFileExt)
}

// tracePath returns the path of the trace written next to a Rust file.
func tracePath(outPath string) string {
	return strings.TrimSuffix(outPath, common.RustFileExt) + ".trace.jsonl"
}

func writeTrace(path string, out *generate.Output) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return out.Tracer.WriteJSONL(f)
}

// loadHIR decodes the HIR module stored at path.
func loadHIR(path string) (*hir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mod, err := hir.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding HIR: %w", err)
	}

	return mod, nil
}

// collectFiles expands path into the HIR files to transpile: a directory
// stands for every HIR file beneath it.
func collectFiles(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && strings.HasSuffix(d.Name(), common.HIRFileExt) {
			files = append(files, p)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s", common.HIRFileExt, path)
	}

	return files, nil
}
