package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// lowerModuleCall lowers `mod.fn(args)`.  mod is the resolved module path,
// which may name a class-like item such as `datetime.date`.
func (l *Lowerer) lowerModuleCall(mod, fn string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	switch mod {
	case "re":
		return l.lowerRegexCall(fn, nil, nil, args, kwargs, node)
	case "datetime":
		switch fn {
		case "datetime", "date", "timedelta":
			return l.lowerDateCall(fn, "", args, kwargs, node)
		}
	case "datetime.datetime", "datetime.date", "datetime.timedelta":
		return l.lowerDateCall(mod[len("datetime."):], fn, args, kwargs, node)
	case "time":
		return l.lowerTimeCall(fn, args, node)
	case "asyncio":
		return l.lowerAsyncioCall(fn, args, node)
	case "math":
		return l.lowerMathCall(fn, args, node)
	case "random":
		return l.lowerRandomCall(fn, args, kwargs, node)
	case "json":
		return l.lowerJSONCall(fn, args, kwargs, node)
	case "os", "os.path", "shutil":
		return l.lowerOSCall(mod, fn, args, kwargs, node)
	case "sys":
		if fn == "exit" {
			return l.lowerExit(args)
		}
	case "hashlib":
		return l.lowerHashlib(fn, args, node)
	case "csv":
		return l.lowerCSVOpen(fn, args, kwargs, node)
	case "collections":
		return l.lowerCollectionsCall(fn, args, kwargs, node)
	case "itertools":
		return l.lowerItertoolsCall(fn, args, node)
	case "functools":
		if fn == "reduce" {
			return l.lowerReduce(args, node)
		}
	case "colorsys":
		return l.lowerColorsys(fn, args, node)
	case "pathlib":
		if fn == "Path" || fn == "PurePath" {
			if len(args) == 0 {
				return rust.CallPath("std::path::PathBuf::from", rust.Str("."))
			}
			return rust.CallPath("std::path::PathBuf::from", l.pathArg(args[0]))
		}
	case "pathlib.Path":
		switch fn {
		case "cwd":
			return rust.M(rust.CallPath("std::env::current_dir"), "expect", rust.Str("no current directory"))
		case "home":
			return rust.CallPath("std::path::PathBuf::from", rust.M(rust.CallPath("std::env::var", rust.Str("HOME")), "unwrap_or_default"))
		}
	case "argparse":
		if fn == "ArgumentParser" {
			return l.lowerArgParser(args, kwargs, node)
		}
	case "binascii":
		return l.lowerBinascii(fn, args, node)
	case "int":
		if fn == "from_bytes" {
			return l.lowerFromBytes(args, kwargs, node)
		}
	case "dict":
		if fn == "fromkeys" {
			return l.lowerFromKeys(args, node)
		}
	case "str", "float":
	case "subprocess":
		l.fail(node, "subprocess.%s() is not supported", fn)
	}

	l.ctx.Tracer.Record(trace.ImportResolve, mod+"."+fn, "path-call", nil, 0.2, node.Span())
	path := strings.ReplaceAll(mod, ".", "::") + "::" + rust.SafeIdent(fn)
	return rust.CallPath(path, l.lowerArgs(args)...)
}

// -----------------------------------------------------------------------------

// mathUnary are the math functions that map onto an f64 method.
var mathUnary = map[string]string{
	"sqrt": "sqrt", "exp": "exp", "sin": "sin", "cos": "cos", "tan": "tan",
	"asin": "asin", "acos": "acos", "atan": "atan", "sinh": "sinh",
	"cosh": "cosh", "tanh": "tanh", "log2": "log2", "log10": "log10",
	"fabs": "abs", "degrees": "to_degrees", "radians": "to_radians",
	"expm1": "exp_m1", "log1p": "ln_1p", "cbrt": "cbrt",
}

// lowerMathCall lowers the math module.
func (l *Lowerer) lowerMathCall(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	arg := func(n int) hir.Expr {
		if n >= len(args) {
			l.fail(node, "math.%s() expects %d arguments", fn, n+1)
		}
		return args[n]
	}
	f := func(n int) rust.Expr { return l.coerce(arg(n), hir.Float) }
	i := func(n int) rust.Expr { return l.coerce(arg(n), hir.Int) }

	if m, ok := mathUnary[fn]; ok {
		return rust.M(f(0), m)
	}

	switch fn {
	case "floor", "ceil", "trunc":
		if l.exprType(arg(0)).Is(hir.TInt) {
			return l.lowerExpr(arg(0))
		}
		return rust.As(rust.M(f(0), fn), rust.T("i64"))
	case "log":
		if len(args) > 1 {
			return rust.M(f(0), "log", f(1))
		}
		return rust.M(f(0), "ln")
	case "pow":
		return rust.M(f(0), "powf", f(1))
	case "atan2", "hypot", "copysign":
		return rust.M(f(0), fn, f(1))
	case "fmod":
		return rust.Bin("%", f(0), f(1))
	case "isnan", "isinf", "isfinite":
		method := map[string]string{"isnan": "is_nan", "isinf": "is_infinite", "isfinite": "is_finite"}[fn]
		return rust.M(f(0), method)
	case "isclose":
		a, b := l.getTempName("a"), l.getTempName("b")
		diff := rust.M(rust.Bin("-", rust.Id(a), rust.Id(b)), "abs")
		tol := rust.Bin("*", rust.Float(1e-9), rust.M(rust.M(rust.Id(a), "abs"), "max", rust.M(rust.Id(b), "abs")))
		return rust.BlockOf(rust.Bin("<=", diff, tol), rust.LetName(a, false, nil, f(0)), rust.LetName(b, false, nil, f(1)))
	case "isqrt":
		return rust.As(rust.M(rust.As(i(0), rust.T("f64")), "sqrt"), rust.T("i64"))
	case "factorial":
		return &rust.MethodCall{
			Recv:      &rust.Range{Lo: rust.Int(1), Hi: i(0), Inclusive: true},
			Method:    "product",
			Turbofish: []rust.Type{rust.T("i64")},
		}
	case "gcd", "lcm":
		return l.gcd(fn, i(0), i(1))
	case "comb":
		n := l.getTempName("n")
		acc := rust.Bin("/", rust.Bin("*", rust.Id("acc"), rust.Bin("-", rust.Id(n), rust.Id("i"))), rust.Bin("+", rust.Id("i"), rust.Int(1)))
		return rust.BlockOf(
			rust.M(&rust.Range{Lo: rust.Int(0), Hi: i(1)}, "fold", &rust.IntLit{Value: 1, Suffix: "i64"}, rust.Lambda(false, []string{"acc", "i"}, acc)),
			rust.LetName(n, false, nil, i(0)),
		)
	case "perm":
		n := l.getTempName("n")
		return rust.BlockOf(
			&rust.MethodCall{
				Recv:      rust.M(&rust.Range{Lo: rust.Int(0), Hi: i(1)}, "map", rust.Lambda(false, []string{"i"}, rust.Bin("-", rust.Id(n), rust.Id("i")))),
				Method:    "product",
				Turbofish: []rust.Type{rust.T("i64")},
			},
			rust.LetName(n, false, nil, i(0)),
		)
	case "fsum":
		return &rust.MethodCall{Recv: l.iterOf(arg(0)), Method: "sum", Turbofish: []rust.Type{rust.T("f64")}}
	case "prod":
		return &rust.MethodCall{Recv: l.iterOf(arg(0)), Method: "product", Turbofish: []rust.Type{l.rustType(l.iterElemType(arg(0)))}}
	}

	l.fail(node, "math.%s() is not supported", fn)
	return nil
}

// gcd lowers math.gcd and math.lcm with Euclid's algorithm.
func (l *Lowerer) gcd(fn string, x, y rust.Expr) rust.Expr {
	a, b, t := l.getTempName("a"), l.getTempName("b"), l.getTempName("t")
	loop := &rust.While{
		Cond: rust.Bin("!=", rust.Id(b), rust.Int(0)),
		Body: rust.BlockOf(nil,
			rust.LetName(t, false, nil, rust.Id(b)),
			rust.Semi(&rust.Assign{Op: "=", Left: rust.Id(b), Right: rust.Bin("%", rust.Id(a), rust.Id(b))}),
			rust.Semi(&rust.Assign{Op: "=", Left: rust.Id(a), Right: rust.Id(t)}),
		),
	}

	stmts := []rust.Stmt{
		rust.LetName(a, true, nil, rust.CallPath("i64::abs", x)),
		rust.LetName(b, true, nil, rust.CallPath("i64::abs", y)),
	}
	if fn == "gcd" {
		return rust.BlockOf(rust.Id(a), append(stmts, &rust.ExprStmt{X: loop, NoSemi: true})...)
	}

	// lcm(x, y) = |x * y| / gcd(x, y)
	p := l.getTempName("p")
	stmts = append(stmts,
		rust.LetName(p, false, nil, rust.Bin("*", rust.Id(a), rust.Id(b))),
		&rust.ExprStmt{X: loop, NoSemi: true},
	)
	zero := rust.Bin("==", rust.Id(a), rust.Int(0))
	return rust.BlockOf(&rust.If{Cond: zero, Then: rust.BlockOf(rust.Int(0)), Else: rust.BlockOf(rust.Bin("/", rust.Id(p), rust.Id(a)))}, stmts...)
}

// -----------------------------------------------------------------------------

// lowerRandomCall lowers the random module onto the rand crate.
func (l *Lowerer) lowerRandomCall(fn string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	l.ctx.Need(prelude.Rand)
	l.ctx.Tracer.Record(trace.ImportResolve, "random."+fn, "rand", nil, 0.9, node.Span())

	arg := func(n int) hir.Expr {
		if n >= len(args) {
			l.fail(node, "random.%s() expects %d arguments", fn, n+1)
		}
		return args[n]
	}
	rng := func() rust.Expr { return rust.BorrowMut(rust.CallPath("rand::thread_rng")) }
	genRange := func(r rust.Expr) rust.Expr { return rust.M(rust.CallPath("rand::thread_rng"), "gen_range", r) }

	switch fn {
	case "random":
		return &rust.Call{Func: &rust.Path{Segments: []string{"rand", "random::<f64>"}}}
	case "randint":
		return genRange(&rust.Range{Lo: l.coerce(arg(0), hir.Int), Hi: l.coerce(arg(1), hir.Int), Inclusive: true})
	case "randrange":
		if len(args) == 1 {
			return genRange(&rust.Range{Lo: rust.Int(0), Hi: l.coerce(arg(0), hir.Int)})
		}
		r := genRange(&rust.Range{Lo: l.coerce(arg(0), hir.Int), Hi: l.coerce(arg(1), hir.Int)})
		if len(args) > 2 {
			l.fail(node, "randrange() with a step is not supported")
		}
		return r
	case "uniform":
		return genRange(&rust.Range{Lo: l.coerce(arg(0), hir.Float), Hi: l.coerce(arg(1), hir.Float)})
	case "choice":
		return rust.M(rust.M(rust.M(l.argRef(arg(0)), "choose", rng()), "cloned"), "expect", rust.Str("cannot choose from an empty sequence"))
	case "shuffle":
		return rust.M(l.lowerExpr(arg(0)), "shuffle", rng())
	case "sample":
		return &rust.MethodCall{
			Recv:      rust.M(rust.M(l.argRef(arg(0)), "choose_multiple", rng(), rust.As(l.lowerExpr(arg(1)), rust.T("usize"))), "cloned"),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})},
		}
	case "choices":
		k := kwarg(kwargs, "k")
		if k == nil {
			k = &hir.IntLit{Value: 1}
		}
		pop := l.getTempName("pop")
		pick := rust.M(rust.M(rust.M(rust.Id(pop), "choose", rng()), "cloned"), "expect", rust.Str("cannot choose from an empty sequence"))
		return rust.BlockOf(&rust.MethodCall{
			Recv:      rust.M(&rust.Range{Lo: rust.Int(0), Hi: l.coerce(k, hir.Int)}, "map", rust.ClosureOf(false, &rust.WildPat{}, pick)),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})},
		}, rust.LetName(pop, false, nil, l.argRef(arg(0))))
	case "seed":
		// thread_rng cannot be seeded
		l.ctx.Tracer.Record(trace.ImportResolve, "random.seed", "ignored", []string{"StdRng::seed_from_u64"}, 0.4, node.Span())
		return rust.Unit()
	}

	l.fail(node, "random.%s() is not supported", fn)
	return nil
}

// lowerJSONCall lowers the json module onto serde_json.
func (l *Lowerer) lowerJSONCall(fn string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	l.ctx.Need(prelude.SerdeJSON)
	l.ctx.Tracer.Record(trace.ImportResolve, "json."+fn, "serde_json", nil, 1, node.Span())

	if len(args) == 0 {
		l.fail(node, "json.%s() expects an argument", fn)
	}

	pretty := kwarg(kwargs, "indent") != nil
	value := func() rust.Expr {
		if v, ok := args[0].(*hir.Var); ok && l.isDeclared(v.Name) {
			return l.argRef(args[0])
		}
		return rust.Borrow(l.lowerExpr(args[0]))
	}

	switch fn {
	case "dumps":
		f := "serde_json::to_string"
		if pretty {
			f = "serde_json::to_string_pretty"
		}
		return rust.M(rust.CallPath(f, value()), "expect", rust.Str("value is not JSON serializable"))
	case "loads":
		return l.fallible(&rust.Call{
			Func: &rust.Path{Segments: []string{"serde_json", "from_str::<serde_json::Value>"}},
			Args: []rust.Expr{l.strArg(args[0])},
		}, "invalid JSON")
	case "load":
		return l.fallible(&rust.Call{
			Func: &rust.Path{Segments: []string{"serde_json", "from_reader::<_, serde_json::Value>"}},
			Args: []rust.Expr{l.argRef(args[0])},
		}, "invalid JSON")
	case "dump":
		if len(args) < 2 {
			l.fail(node, "json.dump() expects a value and a file")
		}
		f := "serde_json::to_writer"
		if pretty {
			f = "serde_json::to_writer_pretty"
		}
		return l.fallible(rust.CallPath(f, l.argRef(args[1]), value()), "could not write JSON")
	}

	l.fail(node, "json.%s() is not supported", fn)
	return nil
}

// -----------------------------------------------------------------------------

// lowerOSCall lowers the os, os.path and shutil modules.
func (l *Lowerer) lowerOSCall(mod, fn string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	arg := func(n int) hir.Expr {
		if n >= len(args) {
			l.fail(node, "%s.%s() expects %d arguments", mod, fn, n+1)
		}
		return args[n]
	}
	path := func(n int) rust.Expr { return rust.CallPath("std::path::Path::new", l.pathArg(arg(n))) }
	lossy := func(x rust.Expr) rust.Expr { return rust.ToString(rust.M(x, "to_string_lossy")) }
	io := func(x rust.Expr) rust.Expr { return l.fallible(x, mod+"."+fn+"() failed") }

	switch mod + "." + fn {
	case "os.getcwd":
		return lossy(rust.M(rust.CallPath("std::env::current_dir"), "expect", rust.Str("no current directory")))
	case "os.getenv":
		v := rust.CallPath("std::env::var", l.strArg(arg(0)))
		if len(args) > 1 {
			return rust.M(v, "unwrap_or_else", rust.ClosureOf(false, &rust.WildPat{}, l.owned(args[1])))
		}
		return rust.M(v, "ok")
	case "os.listdir":
		p := rust.Expr(rust.Str("."))
		if len(args) > 0 {
			p = l.pathArg(args[0])
		}
		entries := rust.M(rust.M(rust.CallPath("std::fs::read_dir", p), "expect", rust.Str("cannot list directory")), "filter_map", rust.Lambda(false, []string{"e"}, rust.M(rust.Id("e"), "ok")))
		return &rust.MethodCall{
			Recv:      rust.M(entries, "map", rust.Lambda(false, []string{"e"}, lossy(rust.M(rust.Id("e"), "file_name")))),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))},
		}
	case "os.makedirs":
		return io(rust.CallPath("std::fs::create_dir_all", l.pathArg(arg(0))))
	case "os.mkdir":
		return io(rust.CallPath("std::fs::create_dir", l.pathArg(arg(0))))
	case "os.remove", "os.unlink":
		return io(rust.CallPath("std::fs::remove_file", l.pathArg(arg(0))))
	case "os.rmdir":
		return io(rust.CallPath("std::fs::remove_dir", l.pathArg(arg(0))))
	case "os.rename", "shutil.move":
		return io(rust.CallPath("std::fs::rename", l.pathArg(arg(0)), l.pathArg(arg(1))))
	case "shutil.copy", "shutil.copyfile", "shutil.copy2":
		return io(rust.CallPath("std::fs::copy", l.pathArg(arg(0)), l.pathArg(arg(1))))
	case "shutil.rmtree":
		return io(rust.CallPath("std::fs::remove_dir_all", l.pathArg(arg(0))))

	case "os.path.join":
		x := rust.Expr(rust.CallPath("std::path::PathBuf::from", l.pathArg(arg(0))))
		for _, a := range args[1:] {
			x = rust.M(x, "join", l.pathArg(a))
		}
		return lossy(x)
	case "os.path.exists":
		return rust.M(path(0), "exists")
	case "os.path.isfile":
		return rust.M(path(0), "is_file")
	case "os.path.isdir":
		return rust.M(path(0), "is_dir")
	case "os.path.isabs":
		return rust.M(path(0), "is_absolute")
	case "os.path.basename":
		return rust.M(rust.M(path(0), "file_name"), "map_or", rust.CallPath("String::new"), rust.Lambda(false, []string{"s"}, lossy(rust.Id("s"))))
	case "os.path.dirname":
		return rust.M(rust.M(path(0), "parent"), "map_or", rust.CallPath("String::new"), rust.Lambda(false, []string{"p"}, lossy(rust.Id("p"))))
	case "os.path.abspath", "os.path.realpath":
		return lossy(rust.M(rust.CallPath("std::path::absolute", l.pathArg(arg(0))), "expect", rust.Str("invalid path")))
	case "os.path.getsize":
		return rust.As(rust.M(io(rust.CallPath("std::fs::metadata", l.pathArg(arg(0)))), "len"), rust.T("i64"))
	case "os.path.splitext":
		p, stem := l.getTempName("p"), l.getTempName("stem")
		ext := rust.M(rust.M(rust.Id(p), "extension"), "map_or", rust.CallPath("String::new"),
			rust.Lambda(false, []string{"e"}, rust.MacroCall("format", rust.Str(".{}"), rust.M(rust.Id("e"), "to_string_lossy"))))
		// the stem keeps its directory
		root := rust.M(rust.M(rust.Id(stem), "to_string_lossy"), "into_owned")
		return rust.BlockOf(&rust.Tuple{Elems: []rust.Expr{root, ext}},
			rust.LetName(p, false, nil, path(0)),
			rust.LetName(stem, false, nil, rust.M(rust.Id(p), "with_extension", rust.Str(""))),
		)
	case "os.path.split":
		p := l.getTempName("p")
		head := rust.M(rust.M(rust.Id(p), "parent"), "map_or", rust.CallPath("String::new"), rust.Lambda(false, []string{"d"}, lossy(rust.Id("d"))))
		tail := rust.M(rust.M(rust.Id(p), "file_name"), "map_or", rust.CallPath("String::new"), rust.Lambda(false, []string{"s"}, lossy(rust.Id("s"))))
		return rust.BlockOf(&rust.Tuple{Elems: []rust.Expr{head, tail}}, rust.LetName(p, false, nil, path(0)))
	}

	l.fail(node, "%s.%s() is not supported", mod, fn)
	return nil
}

// lowerExit lowers `sys.exit(code)`.  A message argument is printed to
// stderr and exits with status 1.
func (l *Lowerer) lowerExit(args []hir.Expr) rust.Expr {
	if len(args) == 0 {
		return rust.CallPath("std::process::exit", rust.Int(0))
	}

	if l.exprType(args[0]).Is(hir.TString) {
		placeholder, arg := l.displayArg(args[0])
		return rust.BlockOf(rust.CallPath("std::process::exit", rust.Int(1)),
			rust.Semi(rust.MacroCall("eprintln", rust.Str(placeholder), arg)))
	}

	return rust.CallPath("std::process::exit", rust.As(l.lowerExpr(args[0]), rust.T("i32")))
}

// -----------------------------------------------------------------------------

// lowerCollectionsCall lowers the constructors of the collections module.
func (l *Lowerer) lowerCollectionsCall(fn string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	switch fn {
	case "defaultdict", "OrderedDict":
		l.ctx.Need(prelude.HashMap)
		if fn == "OrderedDict" {
			l.ctx.Tracer.Record(trace.TypeMapping, "OrderedDict", "HashMap", []string{"indexmap::IndexMap"}, 0.6, node.Span())
		}
		if fn == "OrderedDict" && len(args) > 0 {
			return &rust.MethodCall{Recv: l.iterOf(args[0]), Method: "collect", Turbofish: []rust.Type{rust.T("HashMap", &rust.InferType{}, &rust.InferType{})}}
		}
		return rust.CallPath("HashMap::new")
	case "Counter":
		l.ctx.Need(prelude.HashMap)
		if len(args) == 0 {
			return rust.CallPath("HashMap::new")
		}

		counts := l.getTempName("counts")
		bump := &rust.Assign{Op: "+=", Left: rust.Deref(rust.M(rust.M(rust.Id(counts), "entry", rust.Id("x")), "or_insert", rust.Int(0))), Right: rust.Int(1)}
		loop := &rust.For{Pat: rust.Pat("x"), Iter: l.iterOf(args[0]), Body: rust.BlockOf(nil, rust.Semi(bump))}
		return rust.BlockOf(rust.Id(counts),
			rust.LetName(counts, true, rust.T("HashMap", &rust.InferType{}, rust.T("i64")), rust.CallPath("HashMap::new")),
			&rust.ExprStmt{X: loop, NoSemi: true},
		)
	case "deque":
		l.ctx.Need(prelude.VecDeque)
		if kwarg(kwargs, "maxlen") != nil {
			l.fail(node, "deque(maxlen=...) is not supported")
		}
		if len(args) == 0 {
			return rust.CallPath("VecDeque::new")
		}
		return &rust.MethodCall{Recv: l.iterOf(args[0]), Method: "collect", Turbofish: []rust.Type{rust.T("VecDeque", &rust.InferType{})}}
	case "namedtuple":
		l.fail(node, "namedtuple() is not supported; use a dataclass")
	}

	l.fail(node, "collections.%s() is not supported", fn)
	return nil
}

// lowerItertoolsCall lowers the itertools module onto iterator adapters.
func (l *Lowerer) lowerItertoolsCall(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	arg := func(n int) hir.Expr {
		if n >= len(args) {
			l.fail(node, "itertools.%s() expects %d arguments", fn, n+1)
		}
		return args[n]
	}
	usize := func(e hir.Expr) rust.Expr {
		if n, ok := intLiteral(e); ok {
			return rust.Int(n)
		}
		return rust.As(l.lowerExpr(e), rust.T("usize"))
	}

	l.ctx.Tracer.Record(trace.ImportResolve, "itertools."+fn, "std::iter", []string{"itertools"}, 0.8, node.Span())

	switch fn {
	case "chain":
		x := l.iterOf(arg(0))
		for _, a := range args[1:] {
			x = rust.M(x, "chain", l.iterOf(a))
		}
		return x
	case "count":
		start := rust.Expr(rust.Int(0))
		if len(args) > 0 {
			start = l.coerce(args[0], hir.Int)
		}
		if len(args) > 1 {
			return rust.M(&rust.Range{Lo: start}, "step_by", usize(args[1]))
		}
		return &rust.Range{Lo: start}
	case "islice":
		x := l.iterOf(arg(0))
		switch len(args) {
		case 2:
			return rust.M(x, "take", usize(args[1]))
		case 3, 4:
			x = rust.M(rust.M(x, "skip", usize(args[1])), "take", rust.Bin("-", usize(args[2]), usize(args[1])))
			if len(args) == 4 {
				x = rust.M(x, "step_by", usize(args[3]))
			}
			return x
		}
	case "repeat":
		x := rust.CallPath("std::iter::repeat", l.owned(arg(0)))
		if len(args) > 1 {
			return rust.M(x, "take", usize(args[1]))
		}
		return x
	case "cycle":
		return rust.M(l.iterOf(arg(0)), "cycle")
	case "takewhile", "dropwhile":
		method := map[string]string{"takewhile": "take_while", "dropwhile": "skip_while"}[fn]
		return rust.M(l.iterOf(arg(1)), method, l.elementFunc(arg(0), l.iterElemType(arg(1)), true))
	case "accumulate":
		acc := l.getTempName("acc")
		sum := rust.Bin("+", rust.Deref(rust.Id("s")), rust.Id("x"))
		body := rust.BlockOf(rust.Some(rust.Deref(rust.Id("s"))),
			rust.Semi(&rust.Assign{Op: "=", Left: rust.Deref(rust.Id("s")), Right: sum}))
		return rust.BlockOf(
			rust.M(l.iterOf(arg(0)), "scan", rust.Id(acc), rust.Lambda(false, []string{"s", "x"}, body)),
			rust.LetName(acc, false, l.rustType(l.iterElemType(arg(0))), rust.CallPath("Default::default")),
		)
	case "pairwise":
		items := l.getTempName("items")
		pairs := rust.M(rust.M(rust.Id(items), "windows", rust.Int(2)), "map",
			rust.Lambda(false, []string{"w"}, &rust.Tuple{Elems: []rust.Expr{
				rust.Clone(&rust.Index{Recv: rust.Id("w"), Index: rust.Int(0)}),
				rust.Clone(&rust.Index{Recv: rust.Id("w"), Index: rust.Int(1)}),
			}}))
		return rust.BlockOf(&rust.MethodCall{Recv: pairs, Method: "collect", Turbofish: []rust.Type{rust.T("Vec", &rust.InferType{})}},
			rust.LetName(items, false, nil, l.collectVec(arg(0))))
	}

	l.fail(node, "itertools.%s() is not supported", fn)
	return nil
}

// lowerReduce lowers `functools.reduce(f, iterable[, initial])`.
func (l *Lowerer) lowerReduce(args []hir.Expr, node hir.Node) rust.Expr {
	if len(args) < 2 {
		l.fail(node, "reduce() expects a function and an iterable")
	}

	elem := l.iterElemType(args[1])
	f := l.pairFunc(args[0], elem)
	it := l.iterOf(args[1])

	if len(args) > 2 {
		return rust.M(it, "fold", l.coerce(args[2], elem), f)
	}

	return rust.M(rust.M(it, "reduce", f), "expect", rust.Str("reduce() of empty iterable with no initial value"))
}

// pairFunc lowers a two argument function into a closure.
func (l *Lowerer) pairFunc(f hir.Expr, elem *hir.Type) rust.Expr {
	switch v := f.(type) {
	case *hir.Lambda:
		if len(v.Params) != 2 {
			l.fail(f, "reduce() expects a function of two arguments")
		}

		var body rust.Expr
		l.pushScope()
		l.declare(v.Params[0])
		l.declare(v.Params[1])
		l.withBindings(lambdaTarget(v), hir.TupleOf(elem, elem), func() {
			body = l.lowerExpr(v.Body)
		})
		l.popScope()

		return rust.Lambda(false, []string{rust.SafeIdent(v.Params[0]), rust.SafeIdent(v.Params[1])}, body)
	case *hir.Var:
		if _, ok := l.funcs[v.Name]; ok {
			call := &rust.Call{Func: rust.Id(l.fnName(v.Name)), Args: []rust.Expr{rust.Id("a"), rust.Id("b")}}
			return rust.Lambda(false, []string{"a", "b"}, call)
		}
		if l.isDeclared(v.Name) {
			return l.lowerExpr(v)
		}
	case *hir.Attribute:
		if mod, ok := l.moduleOf(v.Value); ok && mod == "operator" {
			if op, ok := operatorFuncs[v.Attr]; ok {
				return rust.Lambda(false, []string{"a", "b"}, rust.Bin(op, rust.Id("a"), rust.Id("b")))
			}
		}
	}

	l.fail(f, "unsupported function argument")
	return nil
}

// operatorFuncs are the binary functions of the operator module.
var operatorFuncs = map[string]string{
	"add": "+", "sub": "-", "mul": "*", "and_": "&", "or_": "|", "xor": "^",
}

// -----------------------------------------------------------------------------

// colorsysFormulas are closed forms of the colorsys conversions over the
// bindings a, b and c.
var colorsysFormulas = map[string]string{
	"rgb_to_hsv": `{
    let maxc = a.max(b).max(c);
    let minc = a.min(b).min(c);
    let v = maxc;
    if minc == maxc {
        (0.0, 0.0, v)
    } else {
        let s = (maxc - minc) / maxc;
        let rc = (maxc - a) / (maxc - minc);
        let gc = (maxc - b) / (maxc - minc);
        let bc = (maxc - c) / (maxc - minc);
        let h = if a == maxc { bc - gc } else if b == maxc { 2.0 + rc - bc } else { 4.0 + gc - rc };
        ((h / 6.0).rem_euclid(1.0), s, v)
    }
}`,
	"hsv_to_rgb": `{
    if b == 0.0 {
        (c, c, c)
    } else {
        let i = (a * 6.0).floor();
        let f = a * 6.0 - i;
        let p = c * (1.0 - b);
        let q = c * (1.0 - b * f);
        let t = c * (1.0 - b * (1.0 - f));
        match (i as i64).rem_euclid(6) {
            0 => (c, t, p),
            1 => (q, c, p),
            2 => (p, c, t),
            3 => (p, q, c),
            4 => (t, p, c),
            _ => (c, p, q),
        }
    }
}`,
	"rgb_to_hls": `{
    let maxc = a.max(b).max(c);
    let minc = a.min(b).min(c);
    let l = (minc + maxc) / 2.0;
    if minc == maxc {
        (0.0, l, 0.0)
    } else {
        let s = if l <= 0.5 { (maxc - minc) / (maxc + minc) } else { (maxc - minc) / (2.0 - maxc - minc) };
        let rc = (maxc - a) / (maxc - minc);
        let gc = (maxc - b) / (maxc - minc);
        let bc = (maxc - c) / (maxc - minc);
        let h = if a == maxc { bc - gc } else if b == maxc { 2.0 + rc - bc } else { 4.0 + gc - rc };
        ((h / 6.0).rem_euclid(1.0), l, s)
    }
}`,
	"hls_to_rgb": `{
    fn v(m1: f64, m2: f64, hue: f64) -> f64 {
        let hue = hue.rem_euclid(1.0);
        if hue < 1.0 / 6.0 {
            m1 + (m2 - m1) * hue * 6.0
        } else if hue < 0.5 {
            m2
        } else if hue < 2.0 / 3.0 {
            m1 + (m2 - m1) * (2.0 / 3.0 - hue) * 6.0
        } else {
            m1
        }
    }
    if c == 0.0 {
        (b, b, b)
    } else {
        let m2 = if b <= 0.5 { b * (1.0 + c) } else { b + c - b * c };
        let m1 = 2.0 * b - m2;
        (v(m1, m2, a + 1.0 / 3.0), v(m1, m2, a), v(m1, m2, a - 1.0 / 3.0))
    }
}`,
}

// lowerColorsys lowers the colorsys conversions.
func (l *Lowerer) lowerColorsys(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	formula, ok := colorsysFormulas[fn]
	if !ok {
		l.fail(node, "colorsys.%s() is not supported", fn)
	}
	if len(args) != 3 {
		l.fail(node, "colorsys.%s() expects 3 arguments", fn)
	}

	l.ctx.Tracer.Record(trace.ImportResolve, "colorsys."+fn, "inline", nil, 1, node.Span())
	return rust.BlockOf(&rust.Raw{Text: formula, Prec: rust.PrecAtom},
		rust.LetName("a", false, rust.T("f64"), l.coerce(args[0], hir.Float)),
		rust.LetName("b", false, rust.T("f64"), l.coerce(args[1], hir.Float)),
		rust.LetName("c", false, rust.T("f64"), l.coerce(args[2], hir.Float)),
	)
}

// -----------------------------------------------------------------------------

// lowerBinascii lowers the hex conversions of binascii.
func (l *Lowerer) lowerBinascii(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	if len(args) != 1 {
		l.fail(node, "binascii.%s() expects 1 argument", fn)
	}

	l.ctx.Need(prelude.Hex)
	switch fn {
	case "hexlify", "b2a_hex":
		return rust.M(rust.CallPath("hex::encode", l.bytesArg(args[0])), "into_bytes")
	case "unhexlify", "a2b_hex":
		return l.fallible(rust.CallPath("hex::decode", l.bytesArg(args[0])), "non-hexadecimal digit found")
	}

	l.fail(node, "binascii.%s() is not supported", fn)
	return nil
}

// lowerFromBytes lowers `int.from_bytes(data, byteorder)`.
func (l *Lowerer) lowerFromBytes(args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	if len(args) == 0 {
		l.fail(node, "int.from_bytes() expects bytes")
	}

	order := kwarg(kwargs, "byteorder")
	if len(args) > 1 {
		order = args[1]
	}

	little := false
	if s, ok := order.(*hir.StrLit); ok {
		little = s.Value == "little"
	} else if order != nil {
		l.fail(node, "int.from_bytes() byteorder must be a string literal")
	}

	it := rust.M(l.argRef(args[0]), "iter")
	if little {
		it = rust.M(it, "rev")
	}

	shift := rust.Bin("|", rust.Bin("<<", rust.Id("acc"), rust.Int(8)), rust.As(rust.Id("b"), rust.T("i64")))
	f := &rust.Closure{Params: []rust.ClosureParam{{Pat: rust.Pat("acc")}, {Pat: &rust.RefPat{Pat: rust.Pat("b")}}}, Body: shift}
	return rust.M(it, "fold", &rust.IntLit{Value: 0, Suffix: "i64"}, f)
}

// lowerFromKeys lowers `dict.fromkeys(keys, value)`.
func (l *Lowerer) lowerFromKeys(args []hir.Expr, node hir.Node) rust.Expr {
	if len(args) == 0 {
		l.fail(node, "dict.fromkeys() expects an iterable")
	}

	l.ctx.Need(prelude.HashMap)

	var v rust.Expr
	if len(args) > 1 {
		v = rust.Clone(l.lowerExpr(args[1]))
	} else {
		v = rust.NoneVal()
	}

	pair := rust.Lambda(false, []string{"k"}, &rust.Tuple{Elems: []rust.Expr{rust.Id("k"), v}})
	return &rust.MethodCall{
		Recv:      rust.M(l.iterOf(args[0]), "map", pair),
		Method:    "collect",
		Turbofish: []rust.Type{rust.T("HashMap", &rust.InferType{}, &rust.InferType{})},
	}
}
