package report

import (
	"errors"
	"fmt"
	"os"
)

// TextSpan represents a range or "span" of source text.  It is used to
// specify erroneous or otherwise significant source text in the Python module
// a HIR tree was built from.  Text spans are inclusive on both sides and the
// line and column numbers are zero-indexed.
type TextSpan struct {
	// The line and column beginning the text span.
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`

	// The line and column ending the text span.
	EndLine int `json:"end_line"`
	EndCol  int `json:"end_col"`
}

// NewSpanOver returns a new text span which spans over and between the two
// given text spans.  Either span may be nil.
func NewSpanOver(start, end *TextSpan) *TextSpan {
	if start == nil {
		return end
	} else if end == nil {
		return start
	}

	return &TextSpan{
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func (ts *TextSpan) String() string {
	if ts == nil {
		return "<unknown>"
	}

	return fmt.Sprintf("%d:%d", ts.StartLine+1, ts.StartCol+1)
}

// -----------------------------------------------------------------------------

// LocalCompileError is an error that occurs while lowering a single file. The
// file is known by whoever handles the error so it is not stored here.
type LocalCompileError struct {
	// The error message.
	Message string

	// The span over which the error occurs.  This may be nil.
	Span *TextSpan
}

func (lce *LocalCompileError) Error() string {
	if lce.Span == nil {
		return lce.Message
	}

	return fmt.Sprintf("%s: %s", lce.Span, lce.Message)
}

// Raise creates a new local compile error.
func Raise(span *TextSpan, msg string, args ...interface{}) *LocalCompileError {
	return &LocalCompileError{Message: fmt.Sprintf(msg, args...), Span: span}
}

// AsCompileError extracts a local compile error from err's chain.
func AsCompileError(err error) (*LocalCompileError, bool) {
	var lce *LocalCompileError
	if errors.As(err, &lce) {
		return lce, true
	}

	return nil, false
}

// -----------------------------------------------------------------------------

// ReportICE reports an internal compiler error.  These are errors that result
// from a bug in pyrs itself.  They are always displayed regardless of log
// level.
func ReportICE(message string, args ...interface{}) {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	displayICE(fmt.Sprintf(message, args...))

	os.Exit(-1)
}

// ReportFatal reports a fatal error: an expected error that stops all work
// immediately such as an unreadable configuration file.
func ReportFatal(message string, args ...interface{}) {
	ensure()
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayFatal(fmt.Sprintf(message, args...))
	}

	os.Exit(1)
}

// ReportCompileError reports an error lowering a file.  The srcPath is the
// path to the Python source the HIR was built from (it may be empty) and the
// reprPath is the path displayed to the user.  The span may be nil in which
// case no position information will be printed.
func ReportCompileError(srcPath, reprPath string, span *TextSpan, message string, args ...interface{}) {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount++

	if rep.logLevel > LogLevelSilent {
		displayCompileMessage("error", srcPath, reprPath, span, fmt.Sprintf(message, args...))
	}
}

// ReportCompileWarning reports a warning.  The arguments are of the same form
// as those to ReportCompileError.
func ReportCompileWarning(srcPath, reprPath string, span *TextSpan, message string, args ...interface{}) {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.warningCount++

	if rep.logLevel >= LogLevelWarn {
		displayCompileMessage("warning", srcPath, reprPath, span, fmt.Sprintf(message, args...))
	}
}

// ReportStdError reports a non-fatal, standard Go error.
func ReportStdError(reprPath string, err error) {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount++

	if rep.logLevel > LogLevelSilent {
		displayStdError(reprPath, err)
	}
}

// ReportError reports err choosing the presentation based on its kind: lowering
// errors are shown with their position, everything else as a plain error.
func ReportError(srcPath, reprPath string, err error) {
	if lce, ok := AsCompileError(err); ok {
		ReportCompileError(srcPath, reprPath, lce.Span, "%s", lce.Message)
	} else {
		ReportStdError(reprPath, err)
	}
}

// -----------------------------------------------------------------------------

// AnyErrors returns whether or not any errors were detected.
func AnyErrors() bool {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount > 0
}

// Counts returns the number of errors and warnings reported so far.
func Counts() (int, int) {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount, rep.warningCount
}

// ResetCounts clears the error and warning counters.  Watch mode uses it
// between rebuilds.
func ResetCounts() {
	ensure()
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount = 0
	rep.warningCount = 0
}

// -----------------------------------------------------------------------------

// CatchErrors catches any errors thrown by a `panic` while a file is being
// processed and reports them.  It determines where errors which are
// unrecoverable within a given subsection of the transpiler stop bubbling.
// NB: This function must ALWAYS be deferred.
func CatchErrors(srcPath, reprPath string) {
	if x := recover(); x != nil {
		if cerr, ok := x.(*LocalCompileError); ok {
			ReportCompileError(
				srcPath,
				reprPath,
				cerr.Span,
				"%s",
				cerr.Message,
			)
		} else if serr, ok := x.(error); ok {
			ReportStdError(reprPath, serr)
		} else {
			ReportICE("%v", x)
		}
	}
}
