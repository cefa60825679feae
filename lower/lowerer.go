package lower

import (
	"strconv"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/report"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// Options configures the lowering of a module.
type Options struct {
	// Mode selects the async translation mode.
	Mode Mode

	// Trace enables decision tracing.
	Trace bool
}

// Result is a lowered module: its items in source order (the entry point
// last) and the prelude features they require.
type Result struct {
	Items  []rust.Item
	Needs  prelude.Set
	Tracer *trace.Tracer
}

// Module lowers a HIR module into Rust items.  Lowering aborts on the first
// unsupported construct: the returned error is a *report.LocalCompileError
// and no partial output is produced.
func Module(mod *hir.Module, opts Options) (res *Result, err error) {
	var tracer *trace.Tracer
	if opts.Trace {
		tracer = trace.NewTracer()
	}

	l := NewLowerer(mod, NewContext(opts.Mode, tracer))

	defer func() {
		if x := recover(); x != nil {
			if lce, ok := x.(*report.LocalCompileError); ok {
				res, err = nil, lce
				return
			}

			panic(x)
		}
	}()

	l.Lower()

	return &Result{Items: l.items, Needs: l.ctx.Needs, Tracer: tracer}, nil
}

// -----------------------------------------------------------------------------

// Lowerer is the construct responsible for converting a HIR module into Rust
// items.
type Lowerer struct {
	ctx *Context
	mod *hir.Module

	// items are the lowered module items in source order.
	items []rust.Item

	// classes maps the classes of the module to their collected layout.
	classes map[string]*classInfo

	// classOrder lists the classes in source order.
	classOrder []*classInfo

	// funcs maps the module level functions by name.
	funcs map[string]*hir.FunctionDef

	// signatures are the inferred function signatures.
	signatures map[string]*signature

	// scopes is the stack of local variable scopes: each maps the declared
	// variables of a block.
	scopes []map[string]bool

	// fn is the function whose body is being lowered.
	fn *funcInfo

	// loops is the stack of enclosing loops and tries the stack of enclosing
	// try statements.
	loops []*loopInfo
	tries []*tryInfo

	// selfName is how `self` is spelled in the current body.  Constructors
	// build their value in a local before returning it.
	selfName string

	// genFields is the set of generator locals that live on the state
	// struct and are accessed through `self`.
	genFields map[string]bool

	// userMain is the Rust name of the Python `main` function or "" if the
	// module defines none.  mainIsEntry is set when it becomes the entry
	// point itself.
	userMain    string
	mainIsEntry bool

	// rawResult asks the next fallible operation to leave its Result
	// unwrapped so that a try statement can match on it.
	rawResult bool

	// globalInits maps module level variables to their first assignment.
	globalInits map[string]*hir.Assign

	// visiting guards the recursion over class layouts.
	visiting map[string]bool

	// tempCounter is a counter for temporary names.
	tempCounter int
}

// funcInfo describes the function whose body is being lowered.
type funcInfo struct {
	// name is the key of the function in the context tables.
	name string

	// ret is the Python return type.
	ret *hir.Type

	// result is set for functions returning `Result<T, Box<dyn Error>>`.
	result bool

	async bool
	class *classInfo

	// ctor is set for `__init__`, which builds the instance in the local
	// named by selfName and returns it.
	ctor bool

	// topLevel is set for the entry point wrapping module statements, where
	// assignments to module globals write the global.
	topLevel bool

	// globals are the names declared `global` in the function.
	globals map[string]bool
}

// loopInfo describes an enclosing loop.
type loopInfo struct {
	// label is the loop label or "" if the loop needs none.
	label string

	// brokeFlag is the flag set before breaking out of a loop with an else
	// clause.
	brokeFlag string

	// tryDepth is the number of enclosing tries when the loop was entered.
	tryDepth int

	// onBreak and onContinue replace break and continue for the loops of a
	// generator body, which are spread over states.
	onBreak, onContinue []rust.Stmt
}

// tryInfo describes an enclosing try statement.
type tryInfo struct {
	// label is the label of the block the body is lowered into or "" if the
	// try is lowered as a single match.
	label string

	// errVar is the `Option<PyException>` slot the body stores a raised
	// exception in before breaking out of the labelled block.
	errVar string

	// finally is the finally body which runs on every exit.
	finally []hir.Stmt

	// inBody is set while lowering the body (rather than the handlers).
	inBody bool

	// excVar is the local holding the exception being handled.
	excVar string
}

// NewLowerer creates a new lowerer for a module.
func NewLowerer(mod *hir.Module, ctx *Context) *Lowerer {
	return &Lowerer{
		ctx:         ctx,
		mod:         mod,
		classes:     make(map[string]*classInfo),
		funcs:       make(map[string]*hir.FunctionDef),
		globalInits: make(map[string]*hir.Assign),
		selfName:    "self",
	}
}

// Lower lowers the module.
func (l *Lowerer) Lower() {
	l.collect()

	var mainBody []hir.Stmt
	for _, stmt := range l.mod.Body {
		switch v := stmt.(type) {
		case *hir.Import, *hir.Pass:
			// imports only populate the context
		case *hir.FunctionDef:
			l.items = append(l.items, l.lowerFuncItem(v)...)
		case *hir.ClassDef:
			l.items = append(l.items, l.lowerClass(v)...)
		case *hir.Assign:
			if item := l.lowerGlobal(v); item != nil {
				l.items = append(l.items, item)
			} else {
				mainBody = append(mainBody, v)
			}
		case *hir.If:
			if isMainGuard(v.Test) {
				mainBody = append(mainBody, v.Body...)
			} else {
				mainBody = append(mainBody, v)
			}
		case *hir.ExprStmt:
			if _, ok := v.Value.(*hir.StrLit); !ok {
				mainBody = append(mainBody, v)
			}
		default:
			mainBody = append(mainBody, stmt)
		}
	}

	if main := l.lowerMain(mainBody); main != nil {
		l.items = append(l.items, main)
	}

	if args := l.ctx.ArgParser.structItem(l); args != nil {
		l.items = append([]rust.Item{args}, l.items...)
	}
}

// isMainGuard tests whether test is `__name__ == "__main__"`.
func isMainGuard(test hir.Expr) bool {
	bin, ok := test.(*hir.Binary)
	if !ok || bin.Op != hir.OpEq {
		return false
	}

	v, vok := bin.Left.(*hir.Var)
	s, sok := bin.Right.(*hir.StrLit)
	return vok && sok && v.Name == "__name__" && s.Value == "__main__"
}

// lowerMain wraps the top-level statements into the entry point.
func (l *Lowerer) lowerMain(body []hir.Stmt) rust.Item {
	if l.mainIsEntry || len(body) == 0 {
		return nil
	}

	async := l.ctx.Mode == ModeAsync && mainNeedsRuntime(body)

	saved := l.ctx.enterFunction()
	defer l.ctx.exitFunction(saved)

	l.fn = &funcInfo{name: "main", ret: hir.NoneType, async: async, topLevel: true, globals: make(map[string]bool)}
	defer func() { l.fn = nil }()

	l.analyzeBody(body, nil)
	l.prepareBody(body)

	l.scopes = nil
	l.pushScope()
	block := l.lowerBody(body)
	l.popScope()

	fn := &rust.Fn{Name: "main", Body: block}
	if async {
		l.ctx.Need(prelude.AsyncRuntime)
		fn.Async = true
		fn.Attrs = []string{"tokio::main"}
	}

	return fn
}

// mainNeedsRuntime tests whether the top-level statements drive coroutines.
func mainNeedsRuntime(body []hir.Stmt) bool {
	if hir.ContainsAwait(body) {
		return true
	}

	found := false
	hir.InspectStmts(body, nil, func(e hir.Expr) bool {
		if mc, ok := e.(*hir.MethodCall); ok && mc.Method == "run" {
			if v, ok := mc.Recv.(*hir.Var); ok && v.Name == "asyncio" {
				found = true
			}
		}

		return !found
	})

	return found
}

// -----------------------------------------------------------------------------

// fail aborts lowering with an error positioned at node.
func (l *Lowerer) fail(node hir.Node, msg string, args ...interface{}) {
	var span *report.TextSpan
	if node != nil {
		span = node.Span()
	}

	panic(report.Raise(span, msg, args...))
}

// getTempName gets a temporary name from the counter.
func (l *Lowerer) getTempName(prefix string) string {
	l.tempCounter++
	return prefix + strconv.Itoa(l.tempCounter)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// pushScope pushes a new local scope.
func (l *Lowerer) pushScope() {
	l.scopes = append(l.scopes, make(map[string]bool))
}

// popScope pops the innermost local scope.
func (l *Lowerer) popScope() {
	l.scopes = l.scopes[:len(l.scopes)-1]
}

// declare declares a local variable in the innermost scope.
func (l *Lowerer) declare(name string) {
	l.scopes[len(l.scopes)-1][name] = true
}

// isDeclared tests whether a local variable is visible.
func (l *Lowerer) isDeclared(name string) bool {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if l.scopes[i][name] {
			return true
		}
	}

	return false
}

// fnName returns the Rust name of a module level function.
func (l *Lowerer) fnName(name string) string {
	if name == "main" && l.userMain != "" {
		return l.userMain
	}

	return rust.SafeIdent(name)
}
