package rust

// Expr is a Rust expression.
type Expr interface {
	exprNode()
}

// Ident is a (possibly keyword-escaped) identifier.
type Ident struct {
	Name string
}

// Path is a `::`-separated path such as `std::mem::take`.
type Path struct {
	Segments []string
}

// IntLit is an integer literal with an optional suffix such as `i64`.
type IntLit struct {
	Value  int64
	Suffix string
}

// FloatLit is a floating point literal.  It always prints with a decimal point
// or exponent so that it is never mistaken for an integer.
type FloatLit struct {
	Value float64
}

// StrLit is a string literal.  Value is the unescaped content.
type StrLit struct {
	Value string
}

// CharLit is a character literal.
type CharLit struct {
	Value rune
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
}

// Call is a function call.
type Call struct {
	Func Expr
	Args []Expr
}

// MethodCall is `recv.method::<turbofish>(args)`.
type MethodCall struct {
	Recv      Expr
	Method    string
	Turbofish []Type
	Args      []Expr
}

// Field is a field access `recv.name`.  Name may be a tuple index.
type Field struct {
	Recv Expr
	Name string
}

// Index is `recv[index]`.
type Index struct {
	Recv  Expr
	Index Expr
}

// Macro is a macro invocation such as `println!(...)` or `vec![...]`.  The
// arguments are printed comma separated.  Bracket selects `[...]` delimiters
// and Repeat prints `[a; n]` (with exactly two arguments).
type Macro struct {
	Name    string
	Args    []Expr
	Bracket bool
	Repeat  bool
}

// Binary is a binary operation.
type Binary struct {
	Op          string
	Left, Right Expr
}

// Unary is a prefix unary operation: `-`, `!` or `*`.
type Unary struct {
	Op string
	X  Expr
}

// Ref is a borrow `&x` or `&mut x`.
type Ref struct {
	Mut bool
	X   Expr
}

// Cast is `x as T`.
type Cast struct {
	X  Expr
	Ty Type
}

// Range is `lo..hi` or `lo..=hi`.  Either bound may be nil.
type Range struct {
	Lo, Hi    Expr
	Inclusive bool
}

// ClosureParam is one closure parameter with an optional type.
type ClosureParam struct {
	Pat Pattern
	Ty  Type
}

// Closure is `move |params| body`.
type Closure struct {
	Move   bool
	Params []ClosureParam
	Ret    Type
	Body   Expr
}

// Block is a block expression with an optional label, an optional `async`
// qualifier and an optional tail expression.
type Block struct {
	Label string
	Async bool
	Stmts []Stmt
	Tail  Expr
}

// If is an if expression.  Else is nil, a *Block, an *If or an *IfLet.
type If struct {
	Cond Expr
	Then *Block
	Else Expr
}

// IfLet is `if let pat = scrut { .. } else ..`.
type IfLet struct {
	Pat   Pattern
	Scrut Expr
	Then  *Block
	Else  Expr
}

// Arm is one arm of a match expression.
type Arm struct {
	Pat   Pattern
	Guard Expr
	Body  Expr
}

// Match is a match expression.
type Match struct {
	Scrut Expr
	Arms  []Arm
}

// While is a while loop.
type While struct {
	Label string
	Cond  Expr
	Body  *Block
}

// WhileLet is `while let pat = scrut { .. }`.
type WhileLet struct {
	Label string
	Pat   Pattern
	Scrut Expr
	Body  *Block
}

// Loop is an infinite loop.
type Loop struct {
	Label string
	Body  *Block
}

// For is a for loop.
type For struct {
	Label string
	Pat   Pattern
	Iter  Expr
	Body  *Block
}

// Tuple is a tuple expression.  A single element tuple prints with a trailing
// comma and the empty tuple is the unit value.
type Tuple struct {
	Elems []Expr
}

// Array is an array expression `[a, b]`.
type Array struct {
	Elems []Expr
}

// FieldInit is one field initializer of a struct literal.
type FieldInit struct {
	Name  string
	Value Expr
}

// StructLit is `Name { field: value, ..base }`.
type StructLit struct {
	Name   string
	Fields []FieldInit
	Base   Expr
}

// Paren is an explicitly parenthesized expression.
type Paren struct {
	X Expr
}

// Try is the question mark operator `x?`.
type Try struct {
	X Expr
}

// Await is `x.await`.
type Await struct {
	X Expr
}

// Return is `return x`.  X may be nil.
type Return struct {
	X Expr
}

// Break is `break 'label x`.  Both parts are optional.
type Break struct {
	Label string
	X     Expr
}

// Continue is `continue 'label`.
type Continue struct {
	Label string
}

// Assign is an assignment or compound assignment: Op is `=`, `+=`, ...
type Assign struct {
	Op          string
	Left, Right Expr
}

// Raw is verbatim expression text.  Prec is the precedence the text binds at
// so that the printer can parenthesize it correctly.
type Raw struct {
	Text string
	Prec int
}

func (*Ident) exprNode()      {}
func (*Path) exprNode()       {}
func (*IntLit) exprNode()     {}
func (*FloatLit) exprNode()   {}
func (*StrLit) exprNode()     {}
func (*CharLit) exprNode()    {}
func (*BoolLit) exprNode()    {}
func (*Call) exprNode()       {}
func (*MethodCall) exprNode() {}
func (*Field) exprNode()      {}
func (*Index) exprNode()      {}
func (*Macro) exprNode()      {}
func (*Binary) exprNode()     {}
func (*Unary) exprNode()      {}
func (*Ref) exprNode()        {}
func (*Cast) exprNode()       {}
func (*Range) exprNode()      {}
func (*Closure) exprNode()    {}
func (*Block) exprNode()      {}
func (*If) exprNode()         {}
func (*IfLet) exprNode()      {}
func (*Match) exprNode()      {}
func (*While) exprNode()      {}
func (*WhileLet) exprNode()   {}
func (*Loop) exprNode()       {}
func (*For) exprNode()        {}
func (*Tuple) exprNode()      {}
func (*Array) exprNode()      {}
func (*StructLit) exprNode()  {}
func (*Paren) exprNode()      {}
func (*Try) exprNode()        {}
func (*Await) exprNode()      {}
func (*Return) exprNode()     {}
func (*Break) exprNode()      {}
func (*Continue) exprNode()   {}
func (*Assign) exprNode()     {}
func (*Raw) exprNode()        {}

// -----------------------------------------------------------------------------

// Pattern is a Rust pattern.
type Pattern interface {
	patternNode()
}

// IdentPat binds a name: `x`, `mut x`, `ref x`.
type IdentPat struct {
	Name string
	Mut  bool
	Ref  bool
}

// WildPat is `_`.
type WildPat struct{}

// TuplePat is `(a, b)`.
type TuplePat struct {
	Elems []Pattern
}

// RefPat is `&pat`.
type RefPat struct {
	Pat Pattern
}

// TupleStructPat is `Path(elems)` such as `Some(x)` or `Err(e)`.
type TupleStructPat struct {
	Path  string
	Elems []Pattern
}

// PathPat is a unit path pattern such as `None`.
type PathPat struct {
	Path string
}

// LitPat matches a literal.
type LitPat struct {
	Lit Expr
}

// OrPat is `a | b`.
type OrPat struct {
	Alts []Pattern
}

func (*IdentPat) patternNode()       {}
func (*WildPat) patternNode()        {}
func (*TuplePat) patternNode()       {}
func (*RefPat) patternNode()         {}
func (*TupleStructPat) patternNode() {}
func (*PathPat) patternNode()        {}
func (*LitPat) patternNode()         {}
func (*OrPat) patternNode()          {}

// -----------------------------------------------------------------------------

// Type is a Rust type.
type Type interface {
	typeNode()
}

// AssocBinding is an associated type binding such as `Item = i64`.
type AssocBinding struct {
	Name string
	Ty   Type
}

// PathType is a named type with optional generic arguments: `Vec<i64>`,
// `Iterator<Item = i64>`.
type PathType struct {
	Name  string
	Args  []Type
	Assoc []AssocBinding
}

// RefType is `&'a mut T`.
type RefType struct {
	Mut      bool
	Lifetime string
	Elem     Type
}

// TupleType is `(A, B)`.  The empty tuple type is unit.
type TupleType struct {
	Elems []Type
}

// SliceType is `[T]`.
type SliceType struct {
	Elem Type
}

// ImplType is `impl A + B`.
type ImplType struct {
	Bounds []Type
}

// DynType is `dyn A + B`.
type DynType struct {
	Bounds []Type
}

// FnType is `fn(A) -> R` style sugar used in trait bounds such as `Fn(i64) -> i64`.
type FnType struct {
	Trait  string
	Params []Type
	Ret    Type
}

// InferType is `_`.
type InferType struct{}

func (*PathType) typeNode()  {}
func (*RefType) typeNode()   {}
func (*TupleType) typeNode() {}
func (*SliceType) typeNode() {}
func (*ImplType) typeNode()  {}
func (*DynType) typeNode()   {}
func (*FnType) typeNode()    {}
func (*InferType) typeNode() {}

// -----------------------------------------------------------------------------

// Stmt is a Rust statement.
type Stmt interface {
	stmtNode()
}

// Let is a let binding.  Ty and Init are optional.  Else is the diverging
// block of a let-else.
type Let struct {
	Pat  Pattern
	Ty   Type
	Init Expr
	Else *Block
}

// ExprStmt is an expression statement.  Block-like expressions never take a
// semicolon; other expressions always do unless NoSemi is set.
type ExprStmt struct {
	X      Expr
	NoSemi bool
}

// ItemStmt is an item nested in a block.
type ItemStmt struct {
	Item Item
}

// Comment is a line comment.
type Comment struct {
	Text string
}

func (*Let) stmtNode()      {}
func (*ExprStmt) stmtNode() {}
func (*ItemStmt) stmtNode() {}
func (*Comment) stmtNode()  {}

// -----------------------------------------------------------------------------

// Item is a Rust item.
type Item interface {
	itemNode()
}

// Param is a function parameter.
type Param struct {
	Pat Pattern
	Ty  Type
}

// Fn is a function item.  Receiver is the self parameter spelled out
// (`&self`, `&mut self`, `self`) or empty.
type Fn struct {
	Doc      string
	Attrs    []string
	Pub      bool
	Async    bool
	Name     string
	Generics []string
	Receiver string
	Params   []Param
	Ret      Type
	Body     *Block
}

// StructField is one field of a struct item.
type StructField struct {
	Doc   string
	Attrs []string
	Name  string
	Ty    Type
	Pub   bool
}

// Struct is a struct item.
type Struct struct {
	Doc    string
	Attrs  []string
	Pub    bool
	Name   string
	Fields []StructField
}

// Impl is an impl block.  Trait is nil for inherent impls.
type Impl struct {
	Generics []string
	Trait    Type
	For      Type
	Items    []Item
}

// Const is a constant item.
type Const struct {
	Pub   bool
	Name  string
	Ty    Type
	Value Expr
}

// Static is a static item.
type Static struct {
	Pub   bool
	Name  string
	Ty    Type
	Value Expr
}

// TypeAlias is `type Name = Ty;`.
type TypeAlias struct {
	Name string
	Ty   Type
}

// RawItem is verbatim item text.
type RawItem struct {
	Text string
}

func (*Fn) itemNode()        {}
func (*Struct) itemNode()    {}
func (*Impl) itemNode()      {}
func (*Const) itemNode()     {}
func (*Static) itemNode()    {}
func (*TypeAlias) itemNode() {}
func (*RawItem) itemNode()   {}

// -----------------------------------------------------------------------------

// File is a complete Rust source file.
type File struct {
	// InnerAttrs are the crate level attributes without the `#![` `]` wrapper.
	InnerAttrs []string

	// Uses are the paths of `use` declarations without the `use` keyword.
	Uses []string

	// Prelude holds verbatim runtime support fragments.
	Prelude []string

	// Items are the generated items in source order.
	Items []Item
}
