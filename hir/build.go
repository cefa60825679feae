package hir

// Constructors for HIR nodes without position information.  They are used by
// the AST bridge, by lowering when it desugars constructs, and by tests.

func NewVar(name string) *Var {
	return &Var{Name: name}
}

func NewInt(v int64) *IntLit {
	return &IntLit{Value: v}
}

func NewFloat(v float64) *FloatLit {
	return &FloatLit{Value: v}
}

func NewStr(v string) *StrLit {
	return &StrLit{Value: v}
}

func NewBool(v bool) *BoolLit {
	return &BoolLit{Value: v}
}

func NewNone() *NoneLit {
	return &NoneLit{}
}

func NewBinary(op BinOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

func NewUnary(op UnaryOp, operand Expr) *Unary {
	return &Unary{Op: op, Operand: operand}
}

func NewCall(fn string, args ...Expr) *Call {
	return &Call{Func: fn, Args: args}
}

// WithKwarg adds a keyword argument to the call and returns it.
func (c *Call) WithKwarg(name string, value Expr) *Call {
	c.Kwargs = append(c.Kwargs, &Kwarg{Name: name, Value: value})
	return c
}

func NewMethodCall(recv Expr, method string, args ...Expr) *MethodCall {
	return &MethodCall{Recv: recv, Method: method, Args: args}
}

// WithKwarg adds a keyword argument to the method call and returns it.
func (mc *MethodCall) WithKwarg(name string, value Expr) *MethodCall {
	mc.Kwargs = append(mc.Kwargs, &Kwarg{Name: name, Value: value})
	return mc
}

func NewAttr(value Expr, attr string) *Attribute {
	return &Attribute{Value: value, Attr: attr}
}

func NewIndex(value, index Expr) *Index {
	return &Index{Value: value, Index: index}
}

func NewList(elems ...Expr) *ListExpr {
	return &ListExpr{Elems: elems}
}

func NewTuple(elems ...Expr) *TupleExpr {
	return &TupleExpr{Elems: elems}
}

// NewDict builds a dict display from alternating keys and values.
func NewDict(kvs ...Expr) *DictExpr {
	d := &DictExpr{}
	for i := 0; i+1 < len(kvs); i += 2 {
		d.Keys = append(d.Keys, kvs[i])
		d.Values = append(d.Values, kvs[i+1])
	}

	return d
}

func NewLambda(params []string, body Expr) *Lambda {
	return &Lambda{Params: params, Body: body}
}

func NewIfExpr(test, body, orelse Expr) *IfExpr {
	return &IfExpr{Test: test, Body: body, Orelse: orelse}
}

// NewListComp builds `[elem for target in iter if conds...]`.
func NewListComp(elem Expr, target Expr, iter Expr, conds ...Expr) *Comprehension {
	return &Comprehension{
		Kind:       CompList,
		Element:    elem,
		Generators: []*Generator{{Target: target, Iter: iter, Conds: conds}},
	}
}

// -----------------------------------------------------------------------------

func NewAssign(target, value Expr) *Assign {
	return &Assign{Target: target, Value: value}
}

func NewExprStmt(value Expr) *ExprStmt {
	return &ExprStmt{Value: value}
}

func NewReturn(value Expr) *Return {
	return &Return{Value: value}
}

func NewParam(name string, t *Type) *Param {
	return &Param{Name: name, Type: t}
}

func NewFunc(name string, params []*Param, ret *Type, body ...Stmt) *FunctionDef {
	return &FunctionDef{Name: name, Params: params, Ret: ret, Body: body}
}

func NewModule(name string, body ...Stmt) *Module {
	return &Module{Name: name, Body: body}
}
