package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/paiml/depyler-sub004/report"
)

// watchDebounce is how long the watcher waits for writes to settle before
// rebuilding.  Editors often write a file in several steps.
const watchDebounce = 100 * time.Millisecond

// Watch transpiles the file at path and then transpiles it again every time it
// is written until ctx is cancelled.
func (t *Transpiler) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// the directory is watched: saving by rename replaces the file's inode
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	t.rebuild(abs)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != abs {
				continue
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(watchDebounce)
			}
		case <-pending:
			pending = nil
			t.rebuild(abs)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			report.ReportStdError(path, err)
		}
	}
}

// rebuild runs a single watched transpilation with fresh error counts.
func (t *Transpiler) rebuild(path string) {
	report.ResetCounts()

	report.ReportBeginPhase("Transpiling")
	ok := t.TranspileFile(path)
	report.ReportEndPhase()
	report.ReportFinished(1)

	if t.afterBuild != nil {
		t.afterBuild(ok)
	}
}
