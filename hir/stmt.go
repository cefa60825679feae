package hir

// Stmt is a HIR statement.  Function and class definitions are statements so
// that a module body and a function body share one representation.
type Stmt interface {
	Node

	stmtNode()
}

// Assign is `target = value` with an optional annotation.  The target is one
// of *Var, *Index, *Attribute or *TupleExpr.
type Assign struct {
	Base
	Target Expr
	Value  Expr
	Annot  *Type
}

// AugAssign is `target op= value`.
type AugAssign struct {
	Base
	Target Expr
	Op     BinOp
	Value  Expr
}

// ExprStmt is an expression evaluated for its effects.
type ExprStmt struct {
	Base
	Value Expr
}

// Return is a return statement.  Value may be nil.
type Return struct {
	Base
	Value Expr
}

// If is an if statement.  Elif chains are nested ifs in Orelse.
type If struct {
	Base
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// While is a while loop.
type While struct {
	Base
	Test Expr
	Body []Stmt
}

// For is a for loop.  The target is a *Var or *TupleExpr.
type For struct {
	Base
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
}

// Handler is one except clause of a try statement.  An empty Types list is a
// bare `except:`.
type Handler struct {
	Base
	Types []string
	Name  string
	Body  []Stmt
}

// Try is a try statement.
type Try struct {
	Base
	Body     []Stmt
	Handlers []*Handler
	Orelse   []Stmt
	Finally  []Stmt
}

// Raise is a raise statement.  Both fields may be nil.
type Raise struct {
	Base
	Exc   Expr
	Cause Expr
}

// WithItem is one `context as name` clause of a with statement.
type WithItem struct {
	Context Expr
	Name    string
}

// With is a with statement.
type With struct {
	Base
	Items []*WithItem
	Body  []Stmt
}

// ImportName is one name imported by a from-import.
type ImportName struct {
	Name  string
	Alias string
}

// Import is `import module as alias` or `from module import names`.
type Import struct {
	Base
	Module string
	Alias  string
	Names  []*ImportName
}

// Break is a break statement.
type Break struct {
	Base
}

// Continue is a continue statement.
type Continue struct {
	Base
}

// Pass is a pass statement.
type Pass struct {
	Base
}

// Global declares names as referring to module level bindings.
type Global struct {
	Base
	Names []string
}

// Assert is an assert statement.  Msg may be nil.
type Assert struct {
	Base
	Test Expr
	Msg  Expr
}

// -----------------------------------------------------------------------------

// Param is a function parameter.
type Param struct {
	Name    string
	Type    *Type
	Default Expr
}

// FunctionDef is a function or method definition.
type FunctionDef struct {
	Base
	Name       string
	Params     []*Param
	Ret        *Type
	Body       []Stmt
	IsAsync    bool
	Decorators []string
	Docstring  string
}

// HasDecorator returns whether the function is decorated with name.
func (fd *FunctionDef) HasDecorator(name string) bool {
	for _, dec := range fd.Decorators {
		if dec == name {
			return true
		}
	}

	return false
}

// Field is an annotated class-level field (dataclass style).
type Field struct {
	Name    string
	Type    *Type
	Default Expr
}

// ClassDef is a class definition.
type ClassDef struct {
	Base
	Name       string
	Bases      []string
	Fields     []*Field
	ClassVars  []*Assign
	Methods    []*FunctionDef
	Decorators []string
	Docstring  string
}

// HasDecorator returns whether the class is decorated with name.
func (cd *ClassDef) HasDecorator(name string) bool {
	for _, dec := range cd.Decorators {
		if dec == name {
			return true
		}
	}

	return false
}

// Method returns the method named name or nil.
func (cd *ClassDef) Method(name string) *FunctionDef {
	for _, m := range cd.Methods {
		if m.Name == name {
			return m
		}
	}

	return nil
}

// Module is a HIR module: the unit of transpilation.
type Module struct {
	// Name is the Python module name.
	Name string

	// SourcePath is the path to the Python file the module was built from.
	// It is only used for error reporting and may be empty.
	SourcePath string

	// Body is the ordered list of top-level statements and definitions.
	Body []Stmt
}

func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*ExprStmt) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*For) stmtNode()         {}
func (*Try) stmtNode()         {}
func (*Raise) stmtNode()       {}
func (*With) stmtNode()        {}
func (*Import) stmtNode()      {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Global) stmtNode()      {}
func (*Assert) stmtNode()      {}
func (*FunctionDef) stmtNode() {}
func (*ClassDef) stmtNode()    {}
