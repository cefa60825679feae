package rust

import "strings"

// Id returns an identifier expression.
func Id(name string) *Ident {
	return &Ident{Name: name}
}

// P returns a path expression from a `::` separated path string.
func P(path string) *Path {
	return &Path{Segments: strings.Split(path, "::")}
}

// Str returns a string literal.
func Str(s string) *StrLit {
	return &StrLit{Value: s}
}

// Int returns an unsuffixed integer literal.
func Int(v int64) *IntLit {
	return &IntLit{Value: v}
}

// Float returns a float literal.
func Float(v float64) *FloatLit {
	return &FloatLit{Value: v}
}

// Bool returns a boolean literal.
func Bool(v bool) *BoolLit {
	return &BoolLit{Value: v}
}

// Unit is the unit value `()`.
func Unit() *Tuple {
	return &Tuple{}
}

// CallPath calls the function at path with args.
func CallPath(path string, args ...Expr) *Call {
	return &Call{Func: P(path), Args: args}
}

// M calls method on recv with args.
func M(recv Expr, method string, args ...Expr) *MethodCall {
	return &MethodCall{Recv: recv, Method: method, Args: args}
}

// MacroCall invokes the macro name with parenthesized args.
func MacroCall(name string, args ...Expr) *Macro {
	return &Macro{Name: name, Args: args}
}

// VecMacro returns `vec![elems...]`.
func VecMacro(elems ...Expr) *Macro {
	return &Macro{Name: "vec", Args: elems, Bracket: true}
}

// Bin returns a binary expression.
func Bin(op string, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Not returns `!x`.
func Not(x Expr) *Unary {
	return &Unary{Op: "!", X: x}
}

// Deref returns `*x`.
func Deref(x Expr) *Unary {
	return &Unary{Op: "*", X: x}
}

// Borrow returns `&x`.
func Borrow(x Expr) *Ref {
	return &Ref{X: x}
}

// BorrowMut returns `&mut x`.
func BorrowMut(x Expr) *Ref {
	return &Ref{Mut: true, X: x}
}

// As returns `x as ty`.
func As(x Expr, ty Type) *Cast {
	return &Cast{X: x, Ty: ty}
}

// Fld returns `recv.name`.
func Fld(recv Expr, name string) *Field {
	return &Field{Recv: recv, Name: name}
}

// Lambda returns a closure over simple named parameters.
func Lambda(move bool, params []string, body Expr) *Closure {
	cps := make([]ClosureParam, len(params))
	for i, p := range params {
		cps[i] = ClosureParam{Pat: &IdentPat{Name: p}}
	}

	return &Closure{Move: move, Params: cps, Body: body}
}

// ClosureOf returns a closure taking a single pattern parameter.
func ClosureOf(move bool, pat Pattern, body Expr) *Closure {
	return &Closure{Move: move, Params: []ClosureParam{{Pat: pat}}, Body: body}
}

// BlockOf builds a block from statements and a tail expression.
func BlockOf(tail Expr, stmts ...Stmt) *Block {
	return &Block{Stmts: stmts, Tail: tail}
}

// Semi wraps an expression as a statement.
func Semi(x Expr) *ExprStmt {
	return &ExprStmt{X: x}
}

// LetName binds name (optionally mutable) to init.
func LetName(name string, mut bool, ty Type, init Expr) *Let {
	return &Let{Pat: &IdentPat{Name: name, Mut: mut}, Ty: ty, Init: init}
}

// Pat returns an identifier pattern.
func Pat(name string) *IdentPat {
	return &IdentPat{Name: name}
}

// Some wraps x as `Some(x)`.
func Some(x Expr) *Call {
	return &Call{Func: Id("Some"), Args: []Expr{x}}
}

// NoneVal is the `None` expression.
func NoneVal() *Ident {
	return Id("None")
}

// ToString returns `x.to_string()`.
func ToString(x Expr) *MethodCall {
	return M(x, "to_string")
}

// Clone returns `x.clone()`.
func Clone(x Expr) *MethodCall {
	return M(x, "clone")
}

// -----------------------------------------------------------------------------

// T returns a named type with generic arguments.
func T(name string, args ...Type) *PathType {
	return &PathType{Name: name, Args: args}
}

// TRef returns `&t`.
func TRef(t Type) *RefType {
	return &RefType{Elem: t}
}

// TRefMut returns `&mut t`.
func TRefMut(t Type) *RefType {
	return &RefType{Mut: true, Elem: t}
}

// TUnit returns the unit type.
func TUnit() *TupleType {
	return &TupleType{}
}

// TImplIter returns `impl Iterator<Item = item>`.
func TImplIter(item Type) *ImplType {
	return &ImplType{Bounds: []Type{&PathType{Name: "Iterator", Assoc: []AssocBinding{{Name: "Item", Ty: item}}}}}
}

// TBoxDyn returns `Box<dyn bound>`.
func TBoxDyn(bounds ...Type) *PathType {
	return T("Box", &DynType{Bounds: bounds})
}

// IsUnitType returns whether t is the unit type.
func IsUnitType(t Type) bool {
	tt, ok := t.(*TupleType)
	return t == nil || (ok && len(tt.Elems) == 0)
}

// TypeName returns the base name of a path type or "" for other types.
func TypeName(t Type) string {
	if pt, ok := t.(*PathType); ok {
		return pt.Name
	}

	return ""
}
