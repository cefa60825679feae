package report

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewSpanOver(t *testing.T) {
	a := &TextSpan{StartLine: 1, StartCol: 4, EndLine: 1, EndCol: 8}
	b := &TextSpan{StartLine: 3, StartCol: 0, EndLine: 3, EndCol: 12}

	got := NewSpanOver(a, b)
	want := TextSpan{StartLine: 1, StartCol: 4, EndLine: 3, EndCol: 12}
	if *got != want {
		t.Fatalf("NewSpanOver = %+v, want %+v", *got, want)
	}

	if NewSpanOver(nil, b) != b || NewSpanOver(a, nil) != a {
		t.Errorf("NewSpanOver should pass through the non-nil span")
	}
}

func TestRaiseFormatsMessage(t *testing.T) {
	err := Raise(&TextSpan{StartLine: 2, StartCol: 3}, "%s.%s is not a recognized constant", "math", "foo")

	if err.Message != "math.foo is not a recognized constant" {
		t.Errorf("unexpected message %q", err.Message)
	}

	if err.Error() != "3:4: math.foo is not a recognized constant" {
		t.Errorf("unexpected Error() %q", err.Error())
	}
}

func TestAsCompileErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("lowering main.hir.json: %w", Raise(nil, "boom"))

	lce, ok := AsCompileError(wrapped)
	if !ok || lce.Message != "boom" {
		t.Fatalf("AsCompileError(%v) = %v, %v", wrapped, lce, ok)
	}

	if _, ok := AsCompileError(errors.New("plain")); ok {
		t.Errorf("plain errors are not compile errors")
	}
}

func TestCatchErrorsCountsErrors(t *testing.T) {
	InitReporter(LogLevelSilent)
	ResetCounts()

	func() {
		defer CatchErrors("", "main.hir.json")
		panic(Raise(nil, "sorted() key lambda must have exactly one parameter"))
	}()

	func() {
		defer CatchErrors("", "other.hir.json")
		panic(errors.New("disk on fire"))
	}()

	errs, warns := Counts()
	if errs != 2 || warns != 0 {
		t.Fatalf("Counts() = %d, %d; want 2, 0", errs, warns)
	}

	if !AnyErrors() {
		t.Errorf("AnyErrors() should be true")
	}

	ResetCounts()
	if AnyErrors() {
		t.Errorf("ResetCounts did not clear the error count")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]int{
		"silent":  LogLevelSilent,
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"verbose": LogLevelVerbose,
		"bogus":   LogLevelVerbose,
	}

	for name, want := range cases {
		if got := ParseLogLevel(name); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", name, got, want)
		}
	}
}
