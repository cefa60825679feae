package hir

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paiml/depyler-sub004/report"
)

// Decode reads a HIR module serialized as JSON.  Every node is an object with
// a `kind` tag; types are Python annotation strings.
func Decode(r io.Reader) (*Module, error) {
	var raw struct {
		Name       string            `json:"name"`
		SourcePath string            `json:"source_path"`
		Body       []json.RawMessage `json:"body"`
	}

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("malformed HIR document: %w", err)
	}

	d := &decoder{}
	mod := &Module{
		Name:       raw.Name,
		SourcePath: raw.SourcePath,
	}

	for _, msg := range raw.Body {
		if stmt := d.stmt(msg); stmt != nil {
			mod.Body = append(mod.Body, stmt)
		}
	}

	if d.err != nil {
		return nil, d.err
	}

	return mod, nil
}

// DecodeExpr decodes a single serialized expression.
func DecodeExpr(data []byte) (Expr, error) {
	d := &decoder{}
	e := d.expr(data)
	return e, d.err
}

// -----------------------------------------------------------------------------

// object is a decoded JSON object whose fields are still serialized.
type object map[string]json.RawMessage

// decoder records the first error encountered while decoding so that the
// recursive decoding functions need not propagate errors individually.
type decoder struct {
	err error
}

func (d *decoder) fail(msg string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf(msg, args...)
	}
}

func (d *decoder) object(data json.RawMessage) object {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		d.fail("malformed HIR node: %s", err)
		return nil
	}

	return obj
}

func (d *decoder) field(obj object, key string, dest interface{}) {
	if data, ok := obj[key]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, dest); err != nil {
			d.fail("malformed field `%s`: %s", key, err)
		}
	}
}

func (d *decoder) str(obj object, key string) string {
	var s string
	d.field(obj, key, &s)
	return s
}

func (d *decoder) strs(obj object, key string) []string {
	var ss []string
	d.field(obj, key, &ss)
	return ss
}

func (d *decoder) bool(obj object, key string) bool {
	var b bool
	d.field(obj, key, &b)
	return b
}

func (d *decoder) base(obj object) Base {
	var span *report.TextSpan
	d.field(obj, "span", &span)
	return Base{Pos: span}
}

func (d *decoder) typ(obj object, key string) *Type {
	annot := d.str(obj, key)
	t, err := ParseType(annot)
	if err != nil {
		d.fail("%s", err)
	}

	return t
}

func (d *decoder) list(obj object, key string) []json.RawMessage {
	var msgs []json.RawMessage
	d.field(obj, key, &msgs)
	return msgs
}

func (d *decoder) exprField(obj object, key string) Expr {
	return d.expr(obj[key])
}

func (d *decoder) exprs(obj object, key string) []Expr {
	var es []Expr
	for _, msg := range d.list(obj, key) {
		es = append(es, d.expr(msg))
	}

	return es
}

func (d *decoder) kwargs(obj object) []*Kwarg {
	var kws []*Kwarg
	for _, msg := range d.list(obj, "kwargs") {
		kw := d.object(msg)
		kws = append(kws, &Kwarg{Name: d.str(kw, "name"), Value: d.exprField(kw, "value")})
	}

	return kws
}

func (d *decoder) stmts(obj object, key string) []Stmt {
	var ss []Stmt
	for _, msg := range d.list(obj, key) {
		if s := d.stmt(msg); s != nil {
			ss = append(ss, s)
		}
	}

	return ss
}

// -----------------------------------------------------------------------------

func (d *decoder) expr(data json.RawMessage) Expr {
	obj := d.object(data)
	if obj == nil {
		return nil
	}

	base := d.base(obj)
	switch kind := d.str(obj, "kind"); kind {
	case "int":
		var v int64
		d.field(obj, "value", &v)
		return &IntLit{Base: base, Value: v}
	case "float":
		var v float64
		d.field(obj, "value", &v)
		return &FloatLit{Base: base, Value: v}
	case "str":
		return &StrLit{Base: base, Value: d.str(obj, "value")}
	case "bytes":
		return &BytesLit{Base: base, Value: d.str(obj, "value")}
	case "bool":
		return &BoolLit{Base: base, Value: d.bool(obj, "value")}
	case "none":
		return &NoneLit{Base: base}
	case "var":
		return &Var{Base: base, Name: d.str(obj, "name")}
	case "binary":
		return &Binary{
			Base:  base,
			Op:    BinOp(d.str(obj, "op")),
			Left:  d.exprField(obj, "left"),
			Right: d.exprField(obj, "right"),
		}
	case "unary":
		return &Unary{Base: base, Op: UnaryOp(d.str(obj, "op")), Operand: d.exprField(obj, "operand")}
	case "call":
		return &Call{Base: base, Func: d.str(obj, "func"), Args: d.exprs(obj, "args"), Kwargs: d.kwargs(obj)}
	case "method_call":
		return &MethodCall{
			Base:   base,
			Recv:   d.exprField(obj, "recv"),
			Method: d.str(obj, "method"),
			Args:   d.exprs(obj, "args"),
			Kwargs: d.kwargs(obj),
		}
	case "attribute":
		return &Attribute{Base: base, Value: d.exprField(obj, "value"), Attr: d.str(obj, "attr")}
	case "index":
		return &Index{Base: base, Value: d.exprField(obj, "value"), Index: d.exprField(obj, "index")}
	case "slice":
		return &Slice{
			Base:  base,
			Value: d.exprField(obj, "value"),
			Lower: d.exprField(obj, "lower"),
			Upper: d.exprField(obj, "upper"),
			Step:  d.exprField(obj, "step"),
		}
	case "borrow":
		return &Borrow{Base: base, Value: d.exprField(obj, "value"), Mutable: d.bool(obj, "mutable")}
	case "list":
		return &ListExpr{Base: base, Elems: d.exprs(obj, "elems")}
	case "tuple":
		return &TupleExpr{Base: base, Elems: d.exprs(obj, "elems")}
	case "set":
		return &SetExpr{Base: base, Elems: d.exprs(obj, "elems")}
	case "dict":
		keys, values := d.exprs(obj, "keys"), d.exprs(obj, "values")
		if len(keys) != len(values) {
			d.fail("dict display has %d keys but %d values", len(keys), len(values))
		}
		return &DictExpr{Base: base, Keys: keys, Values: values}
	case "list_comp", "set_comp", "dict_comp", "generator_exp":
		return d.comprehension(base, kind, obj)
	case "lambda":
		return &Lambda{Base: base, Params: d.strs(obj, "params"), Body: d.exprField(obj, "body")}
	case "if_expr":
		return &IfExpr{
			Base:   base,
			Test:   d.exprField(obj, "test"),
			Body:   d.exprField(obj, "body"),
			Orelse: d.exprField(obj, "orelse"),
		}
	case "fstring":
		fs := &FString{Base: base}
		for _, msg := range d.list(obj, "parts") {
			p := d.object(msg)
			fs.Parts = append(fs.Parts, &FStringPart{
				Literal:    d.str(p, "literal"),
				Expr:       d.exprField(p, "expr"),
				Conversion: d.str(p, "conversion"),
				Spec:       d.str(p, "spec"),
			})
		}
		return fs
	case "await":
		return &Await{Base: base, Value: d.exprField(obj, "value")}
	case "yield":
		return &Yield{Base: base, Value: d.exprField(obj, "value")}
	case "named_expr":
		return &NamedExpr{Base: base, Target: d.str(obj, "target"), Value: d.exprField(obj, "value")}
	case "sort_by_key":
		return &SortByKey{
			Base:      base,
			Iterable:  d.exprField(obj, "iterable"),
			KeyParams: d.strs(obj, "key_params"),
			KeyBody:   d.exprField(obj, "key_body"),
			Reverse:   d.exprField(obj, "reverse"),
		}
	default:
		d.fail("unknown expression kind `%s`", kind)
		return nil
	}
}

func (d *decoder) comprehension(base Base, kind string, obj object) Expr {
	comp := &Comprehension{
		Base:    base,
		Element: d.exprField(obj, "element"),
		Key:     d.exprField(obj, "key"),
	}

	switch kind {
	case "list_comp":
		comp.Kind = CompList
	case "set_comp":
		comp.Kind = CompSet
	case "dict_comp":
		comp.Kind = CompDict
	default:
		comp.Kind = CompGenerator
	}

	for _, msg := range d.list(obj, "generators") {
		g := d.object(msg)
		comp.Generators = append(comp.Generators, &Generator{
			Target: d.exprField(g, "target"),
			Iter:   d.exprField(g, "iter"),
			Conds:  d.exprs(g, "conds"),
		})
	}

	return comp
}

// -----------------------------------------------------------------------------

func (d *decoder) stmt(data json.RawMessage) Stmt {
	obj := d.object(data)
	if obj == nil {
		return nil
	}

	base := d.base(obj)
	switch kind := d.str(obj, "kind"); kind {
	case "assign":
		return &Assign{
			Base:   base,
			Target: d.exprField(obj, "target"),
			Value:  d.exprField(obj, "value"),
			Annot:  d.typ(obj, "annot"),
		}
	case "aug_assign":
		return &AugAssign{
			Base:   base,
			Target: d.exprField(obj, "target"),
			Op:     BinOp(d.str(obj, "op")),
			Value:  d.exprField(obj, "value"),
		}
	case "expr":
		return &ExprStmt{Base: base, Value: d.exprField(obj, "value")}
	case "return":
		return &Return{Base: base, Value: d.exprField(obj, "value")}
	case "if":
		return &If{
			Base:   base,
			Test:   d.exprField(obj, "test"),
			Body:   d.stmts(obj, "body"),
			Orelse: d.stmts(obj, "orelse"),
		}
	case "while":
		return &While{Base: base, Test: d.exprField(obj, "test"), Body: d.stmts(obj, "body")}
	case "for":
		return &For{
			Base:   base,
			Target: d.exprField(obj, "target"),
			Iter:   d.exprField(obj, "iter"),
			Body:   d.stmts(obj, "body"),
			Orelse: d.stmts(obj, "orelse"),
		}
	case "try":
		try := &Try{
			Base:    base,
			Body:    d.stmts(obj, "body"),
			Orelse:  d.stmts(obj, "orelse"),
			Finally: d.stmts(obj, "finally"),
		}
		for _, msg := range d.list(obj, "handlers") {
			h := d.object(msg)
			try.Handlers = append(try.Handlers, &Handler{
				Base:  d.base(h),
				Types: d.strs(h, "types"),
				Name:  d.str(h, "name"),
				Body:  d.stmts(h, "body"),
			})
		}
		return try
	case "raise":
		return &Raise{Base: base, Exc: d.exprField(obj, "exc"), Cause: d.exprField(obj, "cause")}
	case "with":
		with := &With{Base: base, Body: d.stmts(obj, "body")}
		for _, msg := range d.list(obj, "items") {
			item := d.object(msg)
			with.Items = append(with.Items, &WithItem{
				Context: d.exprField(item, "context"),
				Name:    d.str(item, "name"),
			})
		}
		return with
	case "import":
		imp := &Import{Base: base, Module: d.str(obj, "module"), Alias: d.str(obj, "alias")}
		for _, msg := range d.list(obj, "names") {
			n := d.object(msg)
			imp.Names = append(imp.Names, &ImportName{Name: d.str(n, "name"), Alias: d.str(n, "alias")})
		}
		return imp
	case "break":
		return &Break{Base: base}
	case "continue":
		return &Continue{Base: base}
	case "pass":
		return &Pass{Base: base}
	case "global":
		return &Global{Base: base, Names: d.strs(obj, "names")}
	case "assert":
		return &Assert{Base: base, Test: d.exprField(obj, "test"), Msg: d.exprField(obj, "msg")}
	case "function":
		return d.function(obj)
	case "class":
		return d.class(obj)
	default:
		d.fail("unknown statement kind `%s`", kind)
		return nil
	}
}

func (d *decoder) function(obj object) *FunctionDef {
	fd := &FunctionDef{
		Base:       d.base(obj),
		Name:       d.str(obj, "name"),
		Ret:        d.typ(obj, "ret"),
		Body:       d.stmts(obj, "body"),
		IsAsync:    d.bool(obj, "async"),
		Decorators: d.strs(obj, "decorators"),
		Docstring:  d.str(obj, "docstring"),
	}

	for _, msg := range d.list(obj, "params") {
		p := d.object(msg)
		fd.Params = append(fd.Params, &Param{
			Name:    d.str(p, "name"),
			Type:    d.typ(p, "type"),
			Default: d.exprField(p, "default"),
		})
	}

	return fd
}

func (d *decoder) class(obj object) *ClassDef {
	cd := &ClassDef{
		Base:       d.base(obj),
		Name:       d.str(obj, "name"),
		Bases:      d.strs(obj, "bases"),
		Decorators: d.strs(obj, "decorators"),
		Docstring:  d.str(obj, "docstring"),
	}

	for _, msg := range d.list(obj, "fields") {
		f := d.object(msg)
		cd.Fields = append(cd.Fields, &Field{
			Name:    d.str(f, "name"),
			Type:    d.typ(f, "type"),
			Default: d.exprField(f, "default"),
		})
	}

	for _, msg := range d.list(obj, "class_vars") {
		if assign, ok := d.stmt(msg).(*Assign); ok {
			cd.ClassVars = append(cd.ClassVars, assign)
		} else {
			d.fail("class variables of `%s` must be assignments", cd.Name)
		}
	}

	for _, msg := range d.list(obj, "methods") {
		cd.Methods = append(cd.Methods, d.function(d.object(msg)))
	}

	return cd
}
