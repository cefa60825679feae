package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/trace"
)

// Mode selects how asynchronous Python code is translated.
type Mode int

const (
	// ModeAsync maps coroutines onto the tokio runtime.
	ModeAsync Mode = iota

	// ModeRealtime drops `async`/`await` and blocks instead.
	ModeRealtime
)

// ParseMode converts a mode name as used in configuration files and on the
// command line into a Mode.
func ParseMode(name string) (Mode, bool) {
	switch name {
	case "async", "":
		return ModeAsync, true
	case "realtime":
		return ModeRealtime, true
	}

	return 0, false
}

func (m Mode) String() string {
	if m == ModeRealtime {
		return "realtime"
	}

	return "async"
}

// Borrow describes how a parameter is passed.
type Borrow int

const (
	BorrowOwned  Borrow = iota // T
	BorrowShared               // &T
	BorrowMut                  // &mut T
	BorrowStr                  // &str
)

// dynTypeName is the name of the custom HIR type that stands for the
// DepylerValue sum type.  Values of unknown type at declaration sites are
// given this type while unknown locals are left for rustc to infer.
const dynTypeName = "DepylerValue"

// dynType is the HIR type of dynamic values.
var dynType = hir.CustomOf(dynTypeName)

// Context is the per-file state shared by inference and lowering.  It is
// populated top-down as the module is lowered, consumed by lowering and read
// by emission.
type Context struct {
	// VarTypes maps the variables of the current function to their inferred
	// types.  Entries only ever become more specific within one function.
	VarTypes map[string]*hir.Type

	// ImportedModules maps names bound to modules (by `import m` or `import m
	// as a`) to the canonical module name.
	ImportedModules map[string]string

	// ImportedItems maps names bound by from-imports to `module.name`.
	ImportedItems map[string]string

	// ClassNames is the set of classes defined in the file.
	ClassNames map[string]bool

	// ClassFieldTypes maps each class to the types of its fields.
	ClassFieldTypes map[string]map[string]*hir.Type

	// ClassMethodNames maps each class to the set of its method names.
	ClassMethodNames map[string]map[string]bool

	// PropertyMethods is the set of `Class.method` names that were marked
	// with `@property` and are accessed like fields.
	PropertyMethods map[string]bool

	// ExceptionClasses maps user exception classes to their base class.
	ExceptionClasses map[string]string

	// MutOptionParams is the set of parameters passed as `&mut Option<T>`.
	MutOptionParams map[string]bool

	// MutOptionDictParams is the subset of MutOptionParams wrapping dicts.
	MutOptionDictParams map[string]bool

	// OptionUnwrapMap maps option variables to the name their unwrapped
	// value is bound to inside a conditional binding.
	OptionUnwrapMap map[string]string

	// PrecomputedOptionFields is the set of `var.field` option fields that
	// were hoisted into locals before an f-string.
	PrecomputedOptionFields map[string]bool

	// OptionReturningFunctions and ResultReturningFunctions classify the
	// functions of the file by the wrapper their return type carries.
	OptionReturningFunctions map[string]bool
	ResultReturningFunctions map[string]bool

	// FunctionReturnTypes maps functions (and `Class.method`) to their return
	// types after inference.
	FunctionReturnTypes map[string]*hir.Type

	// FunctionParams maps functions (and `Class.method`) to their parameters
	// and FunctionParamBorrows to how each parameter is passed.
	FunctionParams       map[string][]*hir.Param
	FunctionParamBorrows map[string][]Borrow

	// AsyncFunctions is the set of functions declared `async`.
	AsyncFunctions map[string]bool

	// CharIterVars are loop variables bound to the chars of a string.
	CharIterVars map[string]bool

	// IteratorVars are variables holding lazy iterators.
	IteratorVars map[string]bool

	// MutableVars is the set of variables of the current function that must
	// be declared `mut`.
	MutableVars map[string]bool

	// RefVars is the set of variables that hold references (borrowed
	// parameters and if-let aliases).
	RefVars map[string]bool

	// Variables that need special method families.
	DequeVars      map[string]bool
	CSVReaderVars  map[string]bool
	CSVWriterVars  map[string]bool
	FileVars       map[string]bool
	PathVars       map[string]bool
	JSONValueVars  map[string]bool
	BoxedWriteVars map[string]bool
	DefaultDicts   map[string]bool

	// DictWriterFields maps DictWriter variables to their field name list.
	DictWriterFields map[string]*hir.ListExpr

	// Globals maps module level names that became items to whether they are
	// wrapped in a mutex.
	Globals map[string]bool

	// Needs is the set of prelude features the lowered code requires.
	Needs prelude.Set

	// ReturnsImplIterator is set while lowering a function returning an
	// `impl Iterator`: closures in it must be `move`.
	ReturnsImplIterator bool

	// InGenerator is set while lowering the body of a generator's `next`.
	InGenerator bool

	// InIteratorNext is set while lowering a class's `__next__`.
	InIteratorNext bool

	// InCmdHandler is set while lowering a function taking parsed arguments.
	InCmdHandler bool

	// IsClassmethod is set while lowering a classmethod: `cls` is `Self`.
	IsClassmethod bool

	// ArgParser tracks argparse usage for the generated clap bridge.
	ArgParser *ArgParserTracker

	// Mode is the async translation mode.
	Mode Mode

	// Tracer records lowering decisions.  It may be nil.
	Tracer *trace.Tracer
}

// NewContext creates a new context for a single file.
func NewContext(mode Mode, tracer *trace.Tracer) *Context {
	return &Context{
		VarTypes:                 make(map[string]*hir.Type),
		ImportedModules:          make(map[string]string),
		ImportedItems:            make(map[string]string),
		ClassNames:               make(map[string]bool),
		ClassFieldTypes:          make(map[string]map[string]*hir.Type),
		ClassMethodNames:         make(map[string]map[string]bool),
		PropertyMethods:          make(map[string]bool),
		ExceptionClasses:         make(map[string]string),
		MutOptionParams:          make(map[string]bool),
		MutOptionDictParams:      make(map[string]bool),
		OptionUnwrapMap:          make(map[string]string),
		PrecomputedOptionFields:  make(map[string]bool),
		OptionReturningFunctions: make(map[string]bool),
		ResultReturningFunctions: make(map[string]bool),
		FunctionReturnTypes:      make(map[string]*hir.Type),
		FunctionParams:           make(map[string][]*hir.Param),
		FunctionParamBorrows:     make(map[string][]Borrow),
		AsyncFunctions:           make(map[string]bool),
		CharIterVars:             make(map[string]bool),
		IteratorVars:             make(map[string]bool),
		MutableVars:              make(map[string]bool),
		RefVars:                  make(map[string]bool),
		DequeVars:                make(map[string]bool),
		CSVReaderVars:            make(map[string]bool),
		CSVWriterVars:            make(map[string]bool),
		FileVars:                 make(map[string]bool),
		PathVars:                 make(map[string]bool),
		JSONValueVars:            make(map[string]bool),
		BoxedWriteVars:           make(map[string]bool),
		DefaultDicts:             make(map[string]bool),
		DictWriterFields:         make(map[string]*hir.ListExpr),
		Globals:                  make(map[string]bool),
		ArgParser:                newArgParserTracker(),
		Mode:                     mode,
		Tracer:                   tracer,
	}
}

// Need marks features as required by the output.
func (c *Context) Need(fs ...prelude.Feature) {
	for _, f := range fs {
		c.Needs.Add(f)
	}
}

// SetVarType records the type of a variable.  A recorded type is only
// replaced by a strictly more specific one so that later, weaker facts
// never erase what is already known.
func (c *Context) SetVarType(name string, t *hir.Type) {
	if t.IsUnknown() {
		return
	}

	if old, ok := c.VarTypes[name]; !ok || old.IsUnknown() || t.IsMoreSpecific(old) {
		c.VarTypes[name] = t
	}
}

// VarType returns the type of a variable or nil.  Variables bound by a
// conditional unwrap are reported without their optional wrapper.
func (c *Context) VarType(name string) *hir.Type {
	t := c.VarTypes[name]
	if c.isUnwrapped(name) {
		return t.Unwrapped()
	}

	return t
}

func (c *Context) isUnwrapped(name string) bool {
	if _, ok := c.OptionUnwrapMap[name]; ok {
		return true
	}

	for _, alias := range c.OptionUnwrapMap {
		if alias == name {
			return true
		}
	}

	return false
}

// IsOptional returns whether a variable currently holds an Option.
func (c *Context) IsOptional(name string) bool {
	return c.VarType(name).Is(hir.TOptional) || (c.MutOptionParams[name] && !c.isUnwrapped(name))
}

// IsClassInstance returns whether the variable holds an instance of a class
// defined in this file.
func (c *Context) IsClassInstance(name string) bool {
	t := c.VarType(name)
	return t.Is(hir.TCustom) && c.ClassNames[t.Name]
}

// IsDyn returns whether t is the dynamic value type.
func IsDyn(t *hir.Type) bool {
	return t.IsCustom(dynTypeName)
}

// -----------------------------------------------------------------------------

// functionState is the part of the context that is saved and reset around
// each function body.
type functionState struct {
	varTypes       map[string]*hir.Type
	mutableVars    map[string]bool
	refVars        map[string]bool
	charIterVars   map[string]bool
	iteratorVars   map[string]bool
	mutOptParams   map[string]bool
	mutOptDict     map[string]bool
	unwrapMap      map[string]string
	implIterator   bool
	inGenerator    bool
	inIteratorNext bool
	inCmdHandler   bool
	isClassmethod  bool
}

// enterFunction saves the function-local state and starts a fresh one that
// still sees module level variable types.
func (c *Context) enterFunction() *functionState {
	saved := &functionState{
		varTypes:       c.VarTypes,
		mutableVars:    c.MutableVars,
		refVars:        c.RefVars,
		charIterVars:   c.CharIterVars,
		iteratorVars:   c.IteratorVars,
		mutOptParams:   c.MutOptionParams,
		mutOptDict:     c.MutOptionDictParams,
		unwrapMap:      c.OptionUnwrapMap,
		implIterator:   c.ReturnsImplIterator,
		inGenerator:    c.InGenerator,
		inIteratorNext: c.InIteratorNext,
		inCmdHandler:   c.InCmdHandler,
		isClassmethod:  c.IsClassmethod,
	}

	c.VarTypes = make(map[string]*hir.Type)
	for name := range c.Globals {
		if t, ok := saved.varTypes[name]; ok {
			c.VarTypes[name] = t
		}
	}

	c.MutableVars = make(map[string]bool)
	c.RefVars = make(map[string]bool)
	c.CharIterVars = make(map[string]bool)
	c.IteratorVars = make(map[string]bool)
	c.MutOptionParams = make(map[string]bool)
	c.MutOptionDictParams = make(map[string]bool)
	c.OptionUnwrapMap = make(map[string]string)
	c.ReturnsImplIterator = false
	c.InGenerator = false
	c.InIteratorNext = false
	c.InCmdHandler = false
	c.IsClassmethod = false

	return saved
}

// exitFunction restores state saved by enterFunction.
func (c *Context) exitFunction(saved *functionState) {
	c.VarTypes = saved.varTypes
	c.MutableVars = saved.mutableVars
	c.RefVars = saved.refVars
	c.CharIterVars = saved.charIterVars
	c.IteratorVars = saved.iteratorVars
	c.MutOptionParams = saved.mutOptParams
	c.MutOptionDictParams = saved.mutOptDict
	c.OptionUnwrapMap = saved.unwrapMap
	c.ReturnsImplIterator = saved.implIterator
	c.InGenerator = saved.inGenerator
	c.InIteratorNext = saved.inIteratorNext
	c.InCmdHandler = saved.inCmdHandler
	c.IsClassmethod = saved.isClassmethod
}
