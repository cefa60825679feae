package rust

import (
	"math"
	"strconv"
	"strings"
)

// Enumeration of expression precedences from loosest to tightest binding.
const (
	PrecLowest = iota // closures, return, break, jumps
	PrecAssign
	PrecRange
	PrecOr
	PrecAnd
	PrecCmp
	PrecBitOr
	PrecBitXor
	PrecBitAnd
	PrecShift
	PrecAdd
	PrecMul
	PrecCast
	PrecUnary
	PrecPostfix
	PrecAtom
)

// binaryPrecs maps binary operators to their precedence.
var binaryPrecs = map[string]int{
	"||": PrecOr,
	"&&": PrecAnd,
	"==": PrecCmp, "!=": PrecCmp, "<": PrecCmp, "<=": PrecCmp, ">": PrecCmp, ">=": PrecCmp,
	"|":  PrecBitOr,
	"^":  PrecBitXor,
	"&":  PrecBitAnd,
	"<<": PrecShift, ">>": PrecShift,
	"+": PrecAdd, "-": PrecAdd,
	"*": PrecMul, "/": PrecMul, "%": PrecMul,
}

// Precedence returns the binding precedence of an expression.
func Precedence(e Expr) int {
	switch v := e.(type) {
	case *Binary:
		if prec, ok := binaryPrecs[v.Op]; ok {
			return prec
		}
		return PrecLowest
	case *Unary, *Ref:
		return PrecUnary
	case *IntLit:
		if v.Value < 0 {
			return PrecUnary
		}
		return PrecAtom
	case *FloatLit:
		if v.Value < 0 || math.Signbit(v.Value) {
			return PrecUnary
		}
		return PrecAtom
	case *Cast:
		return PrecCast
	case *Range:
		return PrecRange
	case *Assign:
		return PrecAssign
	case *Closure, *Return, *Break, *Continue:
		return PrecLowest
	case *Call, *MethodCall, *Field, *Index, *Try, *Await, *Macro:
		return PrecPostfix
	case *Raw:
		return v.Prec
	}

	return PrecAtom
}

// -----------------------------------------------------------------------------

// printer writes formatted Rust source.
type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) write(ss ...string) {
	for _, s := range ss {
		p.sb.WriteString(s)
	}
}

func (p *printer) newline() {
	p.sb.WriteByte('\n')
	p.sb.WriteString(strings.Repeat("    ", p.indent))
}

// ExprString formats an expression.
func ExprString(e Expr) string {
	p := &printer{}
	p.expr(e, PrecLowest)
	return p.sb.String()
}

// TypeString formats a type.
func TypeString(t Type) string {
	p := &printer{}
	p.typ(t)
	return p.sb.String()
}

// PatternString formats a pattern.
func PatternString(pat Pattern) string {
	p := &printer{}
	p.pattern(pat)
	return p.sb.String()
}

// StmtString formats a statement.
func StmtString(s Stmt) string {
	p := &printer{}
	p.stmt(s)
	return p.sb.String()
}

// ItemString formats an item.
func ItemString(item Item) string {
	p := &printer{}
	p.item(item)
	return p.sb.String()
}

// FileString formats a complete source file.
func FileString(f *File) string {
	p := &printer{}

	for _, attr := range f.InnerAttrs {
		p.write("#![", attr, "]\n")
	}

	if len(f.InnerAttrs) > 0 {
		p.write("\n")
	}

	for _, use := range f.Uses {
		p.write("use ", use, ";\n")
	}

	if len(f.Uses) > 0 {
		p.write("\n")
	}

	for _, frag := range f.Prelude {
		p.write(strings.TrimRight(frag, "\n"), "\n\n")
	}

	for i, item := range f.Items {
		if i > 0 {
			p.write("\n")
		}

		p.item(item)
		p.write("\n")
	}

	return p.sb.String()
}

// -----------------------------------------------------------------------------

// expr prints e parenthesizing it if it binds looser than minPrec.
func (p *printer) expr(e Expr, minPrec int) {
	if Precedence(e) < minPrec {
		p.write("(")
		p.exprInner(e)
		p.write(")")
		return
	}

	p.exprInner(e)
}

func (p *printer) exprList(es []Expr) {
	for i, e := range es {
		if i > 0 {
			p.write(", ")
		}

		p.expr(e, PrecLowest)
	}
}

func (p *printer) exprInner(e Expr) {
	switch v := e.(type) {
	case *Ident:
		p.write(v.Name)
	case *Path:
		p.write(strings.Join(v.Segments, "::"))
	case *IntLit:
		p.write(strconv.FormatInt(v.Value, 10), v.Suffix)
	case *FloatLit:
		p.write(FormatFloat(v.Value))
	case *StrLit:
		p.write(QuoteString(v.Value))
	case *CharLit:
		p.write(QuoteChar(v.Value))
	case *BoolLit:
		p.write(strconv.FormatBool(v.Value))
	case *Call:
		p.expr(v.Func, PrecPostfix)
		p.write("(")
		p.exprList(v.Args)
		p.write(")")
	case *MethodCall:
		p.expr(v.Recv, PrecPostfix)
		p.write(".", v.Method)
		if len(v.Turbofish) > 0 {
			p.write("::<")
			p.typeList(v.Turbofish)
			p.write(">")
		}
		p.write("(")
		p.exprList(v.Args)
		p.write(")")
	case *Field:
		p.expr(v.Recv, PrecPostfix)
		p.write(".", v.Name)
	case *Index:
		p.expr(v.Recv, PrecPostfix)
		p.write("[")
		p.expr(v.Index, PrecLowest)
		p.write("]")
	case *Macro:
		p.macro(v)
	case *Binary:
		prec := Precedence(v)
		if prec == PrecCmp {
			// Comparisons do not associate.
			p.expr(v.Left, prec+1)
		} else {
			p.expr(v.Left, prec)
		}
		p.write(" ", v.Op, " ")
		p.expr(v.Right, prec+1)
	case *Unary:
		p.write(v.Op)
		p.expr(v.X, PrecUnary)
	case *Ref:
		if v.Mut {
			p.write("&mut ")
		} else {
			p.write("&")
		}
		p.expr(v.X, PrecUnary)
	case *Cast:
		p.expr(v.X, PrecCast)
		p.write(" as ")
		p.typ(v.Ty)
	case *Range:
		if v.Lo != nil {
			p.expr(v.Lo, PrecOr)
		}
		if v.Inclusive {
			p.write("..=")
		} else {
			p.write("..")
		}
		if v.Hi != nil {
			p.expr(v.Hi, PrecOr)
		}
	case *Closure:
		p.closure(v)
	case *Block:
		p.block(v)
	case *If:
		p.ifExpr(v)
	case *IfLet:
		p.ifLet(v)
	case *Match:
		p.match(v)
	case *While:
		p.label(v.Label)
		p.write("while ")
		p.expr(v.Cond, PrecLowest)
		p.write(" ")
		p.block(v.Body)
	case *WhileLet:
		p.label(v.Label)
		p.write("while let ")
		p.pattern(v.Pat)
		p.write(" = ")
		p.expr(v.Scrut, PrecLowest)
		p.write(" ")
		p.block(v.Body)
	case *Loop:
		p.label(v.Label)
		p.write("loop ")
		p.block(v.Body)
	case *For:
		p.label(v.Label)
		p.write("for ")
		p.pattern(v.Pat)
		p.write(" in ")
		p.expr(v.Iter, PrecLowest)
		p.write(" ")
		p.block(v.Body)
	case *Tuple:
		p.write("(")
		p.exprList(v.Elems)
		if len(v.Elems) == 1 {
			p.write(",")
		}
		p.write(")")
	case *Array:
		p.write("[")
		p.exprList(v.Elems)
		p.write("]")
	case *StructLit:
		p.structLit(v)
	case *Paren:
		p.write("(")
		p.expr(v.X, PrecLowest)
		p.write(")")
	case *Try:
		p.expr(v.X, PrecPostfix)
		p.write("?")
	case *Await:
		p.expr(v.X, PrecPostfix)
		p.write(".await")
	case *Return:
		p.write("return")
		if v.X != nil {
			p.write(" ")
			p.expr(v.X, PrecLowest)
		}
	case *Break:
		p.write("break")
		if v.Label != "" {
			p.write(" '", v.Label)
		}
		if v.X != nil {
			p.write(" ")
			p.expr(v.X, PrecLowest)
		}
	case *Continue:
		p.write("continue")
		if v.Label != "" {
			p.write(" '", v.Label)
		}
	case *Assign:
		p.expr(v.Left, PrecAssign+1)
		p.write(" ", v.Op, " ")
		p.expr(v.Right, PrecAssign)
	case *Raw:
		p.write(v.Text)
	default:
		p.write("/* unknown expression */")
	}
}

func (p *printer) label(label string) {
	if label != "" {
		p.write("'", label, ": ")
	}
}

func (p *printer) macro(m *Macro) {
	p.write(m.Name, "!")

	open, close := "(", ")"
	if m.Bracket {
		open, close = "[", "]"
	}

	p.write(open)
	if m.Repeat && len(m.Args) == 2 {
		p.expr(m.Args[0], PrecLowest)
		p.write("; ")
		p.expr(m.Args[1], PrecLowest)
	} else {
		p.exprList(m.Args)
	}
	p.write(close)
}

func (p *printer) closure(c *Closure) {
	if c.Move {
		p.write("move ")
	}

	p.write("|")
	for i, param := range c.Params {
		if i > 0 {
			p.write(", ")
		}

		p.pattern(param.Pat)
		if param.Ty != nil {
			p.write(": ")
			p.typ(param.Ty)
		}
	}
	p.write("| ")

	if c.Ret != nil {
		p.write("-> ")
		p.typ(c.Ret)
		p.write(" ")

		if blk, ok := c.Body.(*Block); ok {
			p.block(blk)
		} else {
			p.block(&Block{Tail: c.Body})
		}
		return
	}

	p.expr(c.Body, PrecLowest)
}

func (p *printer) block(b *Block) {
	if b == nil {
		p.write("{}")
		return
	}

	p.label(b.Label)
	if b.Async {
		p.write("async move ")
	}

	if len(b.Stmts) == 0 && b.Tail == nil {
		p.write("{}")
		return
	}

	p.write("{")
	p.indent++
	for _, s := range b.Stmts {
		p.newline()
		p.stmt(s)
	}

	if b.Tail != nil {
		p.newline()
		p.expr(b.Tail, PrecLowest)
	}
	p.indent--
	p.newline()
	p.write("}")
}

func (p *printer) elseBranch(e Expr) {
	if e == nil {
		return
	}

	p.write(" else ")
	switch v := e.(type) {
	case *If:
		p.ifExpr(v)
	case *IfLet:
		p.ifLet(v)
	case *Block:
		p.block(v)
	default:
		p.block(&Block{Tail: e})
	}
}

func (p *printer) ifExpr(i *If) {
	p.write("if ")
	p.expr(i.Cond, PrecLowest)
	p.write(" ")
	p.block(i.Then)
	p.elseBranch(i.Else)
}

func (p *printer) ifLet(i *IfLet) {
	p.write("if let ")
	p.pattern(i.Pat)
	p.write(" = ")
	p.expr(i.Scrut, PrecOr+1)
	p.write(" ")
	p.block(i.Then)
	p.elseBranch(i.Else)
}

func (p *printer) match(m *Match) {
	p.write("match ")
	p.expr(m.Scrut, PrecLowest)
	p.write(" {")
	p.indent++
	for _, arm := range m.Arms {
		p.newline()
		p.pattern(arm.Pat)
		if arm.Guard != nil {
			p.write(" if ")
			p.expr(arm.Guard, PrecLowest)
		}
		p.write(" => ")

		if blk, ok := arm.Body.(*Block); ok {
			p.block(blk)
		} else {
			p.expr(arm.Body, PrecLowest)
			p.write(",")
		}
	}
	p.indent--
	p.newline()
	p.write("}")
}

func (p *printer) structLit(s *StructLit) {
	p.write(s.Name, " {")
	if len(s.Fields) == 0 && s.Base == nil {
		p.write("}")
		return
	}

	p.indent++
	for _, f := range s.Fields {
		p.newline()
		if id, ok := f.Value.(*Ident); ok && id.Name == f.Name {
			p.write(f.Name, ",")
		} else {
			p.write(f.Name, ": ")
			p.expr(f.Value, PrecLowest)
			p.write(",")
		}
	}

	if s.Base != nil {
		p.newline()
		p.write("..")
		p.expr(s.Base, PrecLowest)
	}
	p.indent--
	p.newline()
	p.write("}")
}

// -----------------------------------------------------------------------------

// IsBlockLike returns whether an expression statement of e needs no
// terminating semicolon.
func IsBlockLike(e Expr) bool {
	switch e.(type) {
	case *Block, *If, *IfLet, *Match, *While, *WhileLet, *Loop, *For:
		return true
	}

	return false
}

func (p *printer) stmt(s Stmt) {
	switch v := s.(type) {
	case *Let:
		p.write("let ")
		p.pattern(v.Pat)
		if v.Ty != nil {
			p.write(": ")
			p.typ(v.Ty)
		}
		if v.Init != nil {
			p.write(" = ")
			p.expr(v.Init, PrecLowest)
		}
		if v.Else != nil {
			p.write(" else ")
			p.block(v.Else)
		}
		p.write(";")
	case *ExprStmt:
		p.expr(v.X, PrecLowest)
		if !v.NoSemi && !IsBlockLike(v.X) {
			p.write(";")
		}
	case *ItemStmt:
		p.item(v.Item)
	case *Comment:
		p.write("// ", v.Text)
	}
}

// -----------------------------------------------------------------------------

func (p *printer) attrs(doc string, attrs []string) {
	if doc != "" {
		for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
			line = strings.TrimRight(line, " ")
			if line == "" {
				p.write("///")
			} else {
				p.write("/// ", strings.TrimSpace(line))
			}
			p.newline()
		}
	}

	for _, attr := range attrs {
		p.write("#[", attr, "]")
		p.newline()
	}
}

func (p *printer) item(item Item) {
	switch v := item.(type) {
	case *Fn:
		p.fn(v)
	case *Struct:
		p.attrs(v.Doc, v.Attrs)
		if v.Pub {
			p.write("pub ")
		}
		p.write("struct ", v.Name, " {")
		if len(v.Fields) == 0 {
			p.write("}")
			return
		}
		p.indent++
		for _, f := range v.Fields {
			p.newline()
			p.attrs(f.Doc, f.Attrs)
			if f.Pub {
				p.write("pub ")
			}
			p.write(f.Name, ": ")
			p.typ(f.Ty)
			p.write(",")
		}
		p.indent--
		p.newline()
		p.write("}")
	case *Impl:
		p.write("impl")
		if len(v.Generics) > 0 {
			p.write("<", strings.Join(v.Generics, ", "), ">")
		}
		p.write(" ")
		if v.Trait != nil {
			p.typ(v.Trait)
			p.write(" for ")
		}
		p.typ(v.For)
		p.write(" {")
		if len(v.Items) == 0 {
			p.write("}")
			return
		}
		p.indent++
		for i, sub := range v.Items {
			if i > 0 {
				p.write("\n")
			}
			p.newline()
			p.item(sub)
		}
		p.indent--
		p.newline()
		p.write("}")
	case *Const:
		if v.Pub {
			p.write("pub ")
		}
		p.write("const ", v.Name, ": ")
		p.typ(v.Ty)
		p.write(" = ")
		p.expr(v.Value, PrecLowest)
		p.write(";")
	case *Static:
		if v.Pub {
			p.write("pub ")
		}
		p.write("static ", v.Name, ": ")
		p.typ(v.Ty)
		p.write(" = ")
		p.expr(v.Value, PrecLowest)
		p.write(";")
	case *TypeAlias:
		p.write("type ", v.Name, " = ")
		p.typ(v.Ty)
		p.write(";")
	case *RawItem:
		lines := strings.Split(strings.TrimRight(v.Text, "\n"), "\n")
		for i, line := range lines {
			if i > 0 {
				p.newline()
			}
			p.write(line)
		}
	}
}

func (p *printer) fn(f *Fn) {
	p.attrs(f.Doc, f.Attrs)
	if f.Pub {
		p.write("pub ")
	}
	if f.Async {
		p.write("async ")
	}

	p.write("fn ", f.Name)
	if len(f.Generics) > 0 {
		p.write("<", strings.Join(f.Generics, ", "), ">")
	}

	p.write("(")
	n := 0
	if f.Receiver != "" {
		p.write(f.Receiver)
		n++
	}

	for _, param := range f.Params {
		if n > 0 {
			p.write(", ")
		}
		n++

		p.pattern(param.Pat)
		p.write(": ")
		p.typ(param.Ty)
	}
	p.write(")")

	if !IsUnitType(f.Ret) {
		p.write(" -> ")
		p.typ(f.Ret)
	}

	p.write(" ")
	if f.Body == nil {
		p.write("{}")
	} else {
		p.block(f.Body)
	}
}

// -----------------------------------------------------------------------------

func (p *printer) typeList(ts []Type) {
	for i, t := range ts {
		if i > 0 {
			p.write(", ")
		}

		p.typ(t)
	}
}

func (p *printer) bounds(ts []Type) {
	for i, t := range ts {
		if i > 0 {
			p.write(" + ")
		}

		p.typ(t)
	}
}

func (p *printer) typ(t Type) {
	switch v := t.(type) {
	case nil:
		p.write("()")
	case *PathType:
		p.write(v.Name)
		if len(v.Args) > 0 || len(v.Assoc) > 0 {
			p.write("<")
			p.typeList(v.Args)
			for i, a := range v.Assoc {
				if i > 0 || len(v.Args) > 0 {
					p.write(", ")
				}
				p.write(a.Name, " = ")
				p.typ(a.Ty)
			}
			p.write(">")
		}
	case *RefType:
		p.write("&")
		if v.Lifetime != "" {
			p.write("'", v.Lifetime, " ")
		}
		if v.Mut {
			p.write("mut ")
		}
		p.typ(v.Elem)
	case *TupleType:
		p.write("(")
		p.typeList(v.Elems)
		if len(v.Elems) == 1 {
			p.write(",")
		}
		p.write(")")
	case *SliceType:
		p.write("[")
		p.typ(v.Elem)
		p.write("]")
	case *ImplType:
		p.write("impl ")
		p.bounds(v.Bounds)
	case *DynType:
		p.write("dyn ")
		p.bounds(v.Bounds)
	case *FnType:
		p.write(v.Trait, "(")
		p.typeList(v.Params)
		p.write(")")
		if !IsUnitType(v.Ret) {
			p.write(" -> ")
			p.typ(v.Ret)
		}
	case *InferType:
		p.write("_")
	}
}

// -----------------------------------------------------------------------------

func (p *printer) pattern(pat Pattern) {
	switch v := pat.(type) {
	case *IdentPat:
		if v.Ref {
			p.write("ref ")
		}
		if v.Mut {
			p.write("mut ")
		}
		p.write(v.Name)
	case *WildPat:
		p.write("_")
	case *TuplePat:
		p.write("(")
		for i, elem := range v.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.pattern(elem)
		}
		if len(v.Elems) == 1 {
			p.write(",")
		}
		p.write(")")
	case *RefPat:
		p.write("&")
		p.pattern(v.Pat)
	case *TupleStructPat:
		p.write(v.Path, "(")
		for i, elem := range v.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.pattern(elem)
		}
		p.write(")")
	case *PathPat:
		p.write(v.Path)
	case *LitPat:
		p.expr(v.Lit, PrecAtom)
	case *OrPat:
		for i, alt := range v.Alts {
			if i > 0 {
				p.write(" | ")
			}
			p.pattern(alt)
		}
	}
}

// -----------------------------------------------------------------------------

// QuoteString returns s as a Rust string literal.
func QuoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case 0:
			sb.WriteString(`\0`)
		default:
			if r < 0x20 || r == 0x7f {
				sb.WriteString(`\u{` + strconv.FormatInt(int64(r), 16) + `}`)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')

	return sb.String()
}

// QuoteChar returns r as a Rust character literal.
func QuoteChar(r rune) string {
	switch r {
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	case '\n':
		return `'\n'`
	case '\r':
		return `'\r'`
	case '\t':
		return `'\t'`
	case 0:
		return `'\0'`
	}

	if r < 0x20 || r == 0x7f {
		return `'\u{` + strconv.FormatInt(int64(r), 16) + `}'`
	}

	return "'" + string(r) + "'"
}

// FormatFloat formats v so that it always reads back as an f64 literal.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "f64::NAN"
	case math.IsInf(v, 1):
		return "f64::INFINITY"
	case math.IsInf(v, -1):
		return "f64::NEG_INFINITY"
	}

	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}

	return s
}
