package hir

import "github.com/paiml/depyler-sub004/report"

// Node is the interface implemented by all HIR nodes.
type Node interface {
	// Span returns the source span of the node.  It may be nil.
	Span() *report.TextSpan
}

// Base is embedded in all HIR nodes to store their position.
type Base struct {
	Pos *report.TextSpan
}

func (b Base) Span() *report.TextSpan {
	return b.Pos
}

// Expr is a HIR expression.
type Expr interface {
	Node

	exprNode()
}

// BinOp is a binary operator spelled as in Python.
type BinOp string

// Enumeration of binary operators.
const (
	OpAdd      BinOp = "+"
	OpSub      BinOp = "-"
	OpMul      BinOp = "*"
	OpDiv      BinOp = "/"
	OpFloorDiv BinOp = "//"
	OpMod      BinOp = "%"
	OpPow      BinOp = "**"
	OpEq       BinOp = "=="
	OpNotEq    BinOp = "!="
	OpLt       BinOp = "<"
	OpLtE      BinOp = "<="
	OpGt       BinOp = ">"
	OpGtE      BinOp = ">="
	OpAnd      BinOp = "and"
	OpOr       BinOp = "or"
	OpBitAnd   BinOp = "&"
	OpBitOr    BinOp = "|"
	OpBitXor   BinOp = "^"
	OpLShift   BinOp = "<<"
	OpRShift   BinOp = ">>"
	OpIn       BinOp = "in"
	OpNotIn    BinOp = "not in"
	OpIs       BinOp = "is"
	OpIsNot    BinOp = "is not"
)

// IsComparison returns whether the operator produces a boolean by comparing
// its operands.
func (op BinOp) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpLt, OpLtE, OpGt, OpGtE, OpIn, OpNotIn, OpIs, OpIsNot:
		return true
	}

	return false
}

// UnaryOp is a unary operator.
type UnaryOp string

// Enumeration of unary operators.
const (
	OpNeg    UnaryOp = "-"
	OpPos    UnaryOp = "+"
	OpNot    UnaryOp = "not"
	OpInvert UnaryOp = "~"
)

// -----------------------------------------------------------------------------

// IntLit is an integer literal.
type IntLit struct {
	Base
	Value int64
}

// FloatLit is a floating point literal.
type FloatLit struct {
	Base
	Value float64
}

// StrLit is a string literal.
type StrLit struct {
	Base
	Value string
}

// BytesLit is a bytes literal.
type BytesLit struct {
	Base
	Value string
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Base
	Value bool
}

// NoneLit is the `None` literal.
type NoneLit struct {
	Base
}

// Var is a reference to a named variable, function, class or module.
type Var struct {
	Base
	Name string
}

// Binary is a binary operation.
type Binary struct {
	Base
	Op          BinOp
	Left, Right Expr
}

// Unary is a unary operation.
type Unary struct {
	Base
	Op      UnaryOp
	Operand Expr
}

// Kwarg is a keyword argument.
type Kwarg struct {
	Name  string
	Value Expr
}

// Call is a call to a named function, class or builtin.
type Call struct {
	Base
	Func   string
	Args   []Expr
	Kwargs []*Kwarg
}

// MethodCall is a call of a method on a receiver.  Module function calls such
// as `os.getcwd()` are method calls whose receiver is a module variable.
type MethodCall struct {
	Base
	Recv   Expr
	Method string
	Args   []Expr
	Kwargs []*Kwarg
}

// Attribute is an attribute access.
type Attribute struct {
	Base
	Value Expr
	Attr  string
}

// Index is a subscript.
type Index struct {
	Base
	Value, Index Expr
}

// Slice is a slicing subscript.  Any of its bounds may be nil.
type Slice struct {
	Base
	Value              Expr
	Lower, Upper, Step Expr
}

// Borrow is an explicit borrow inserted by the AST bridge.
type Borrow struct {
	Base
	Value   Expr
	Mutable bool
}

// ListExpr is a list display.
type ListExpr struct {
	Base
	Elems []Expr
}

// TupleExpr is a tuple display.  It is also used as a destructuring target.
type TupleExpr struct {
	Base
	Elems []Expr
}

// SetExpr is a set display.
type SetExpr struct {
	Base
	Elems []Expr
}

// DictExpr is a dict display.
type DictExpr struct {
	Base
	Keys, Values []Expr
}

// CompKind enumerates the kinds of comprehension.
type CompKind int

const (
	CompList CompKind = iota
	CompSet
	CompDict
	CompGenerator
)

// Generator is one `for target in iter if cond...` clause of a comprehension.
type Generator struct {
	Target Expr
	Iter   Expr
	Conds  []Expr
}

// Comprehension is a list, set, dict or generator comprehension.  For dict
// comprehensions, Key is the key expression and Element the value.
type Comprehension struct {
	Base
	Kind       CompKind
	Element    Expr
	Key        Expr
	Generators []*Generator
}

// Lambda is an anonymous function.
type Lambda struct {
	Base
	Params []string
	Body   Expr
}

// IfExpr is a conditional expression `Body if Test else Orelse`.
type IfExpr struct {
	Base
	Test, Body, Orelse Expr
}

// FStringPart is one part of an f-string: either literal text or an
// expression with an optional conversion (`r`, `s`, `a`) and format spec.
type FStringPart struct {
	Literal    string
	Expr       Expr
	Conversion string
	Spec       string
}

// IsLiteral returns whether the part is literal text.
func (p *FStringPart) IsLiteral() bool {
	return p.Expr == nil
}

// FString is a formatted string literal.
type FString struct {
	Base
	Parts []*FStringPart
}

// Await is an await expression.
type Await struct {
	Base
	Value Expr
}

// Yield is a yield expression.  Value may be nil.
type Yield struct {
	Base
	Value Expr
}

// NamedExpr is an assignment expression `(target := value)`.
type NamedExpr struct {
	Base
	Target string
	Value  Expr
}

// SortByKey is `sorted(iterable, key=lambda params: body, reverse=...)`.
type SortByKey struct {
	Base
	Iterable  Expr
	KeyParams []string
	KeyBody   Expr
	Reverse   Expr
}

func (*IntLit) exprNode()        {}
func (*FloatLit) exprNode()      {}
func (*StrLit) exprNode()        {}
func (*BytesLit) exprNode()      {}
func (*BoolLit) exprNode()       {}
func (*NoneLit) exprNode()       {}
func (*Var) exprNode()           {}
func (*Binary) exprNode()        {}
func (*Unary) exprNode()         {}
func (*Call) exprNode()          {}
func (*MethodCall) exprNode()    {}
func (*Attribute) exprNode()     {}
func (*Index) exprNode()         {}
func (*Slice) exprNode()         {}
func (*Borrow) exprNode()        {}
func (*ListExpr) exprNode()      {}
func (*TupleExpr) exprNode()     {}
func (*SetExpr) exprNode()       {}
func (*DictExpr) exprNode()      {}
func (*Comprehension) exprNode() {}
func (*Lambda) exprNode()        {}
func (*IfExpr) exprNode()        {}
func (*FString) exprNode()       {}
func (*Await) exprNode()         {}
func (*Yield) exprNode()         {}
func (*NamedExpr) exprNode()     {}
func (*SortByKey) exprNode()     {}
