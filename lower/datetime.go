package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

var (
	dateTimeFields  = []string{"year", "month", "day", "hour", "minute", "second", "microsecond"}
	dateFields      = dateTimeFields[:3]
	timeDeltaFields = []string{"days", "seconds", "microseconds", "milliseconds", "minutes", "hours", "weeks"}
)

// microsPer are the microseconds in one unit of each timedelta argument.
var microsPer = map[string]int64{
	"weeks":        7 * 86_400_000_000,
	"days":         86_400_000_000,
	"hours":        3_600_000_000,
	"minutes":      60_000_000,
	"seconds":      1_000_000,
	"milliseconds": 1_000,
	"microseconds": 1,
}

// dateWrapper returns the prelude type of a date/time custom type.
func (l *Lowerer) dateWrapper(t *hir.Type) string {
	switch {
	case t.IsCustom(typeDate):
		l.ctx.Need(prelude.Date)
		return "DepylerDate"
	case t.IsCustom(typeTimeDelta):
		l.ctx.Need(prelude.TimeDelta)
		return "DepylerTimeDelta"
	}

	l.ctx.Need(prelude.DateTime)
	return "DepylerDateTime"
}

// lowerDateMethod lowers the methods of dates, datetimes and timedeltas.
func (l *Lowerer) lowerDateMethod(mc *hir.MethodCall, rt *hir.Type) rust.Expr {
	l.dateWrapper(rt)
	x := l.attrRecv(mc.Recv)

	switch mc.Method {
	case "strftime":
		return rust.M(x, "strftime", l.strArg(l.argAt(mc, 0)))
	case "isoformat", "timestamp", "date", "time", "weekday", "isoweekday", "toordinal", "total_seconds":
		return rust.M(x, mc.Method)
	case "ctime":
		return rust.M(x, "strftime", rust.Str("%a %b %d %H:%M:%S %Y"))
	case "replace":
		return l.lowerDateReplace(mc, rt, x)
	}

	l.fail(mc, "%s.%s() is not supported", rt.Name, mc.Method)
	return nil
}

// lowerDateReplace lowers `d.replace(field=value, ...)` by rebuilding the
// value from its components.
func (l *Lowerer) lowerDateReplace(mc *hir.MethodCall, rt *hir.Type, x rust.Expr) rust.Expr {
	if len(mc.Args) > 0 {
		l.fail(mc, "replace() takes keyword arguments only")
	}

	fields := dateTimeFields
	if rt.IsCustom(typeDate) {
		fields = dateFields
	} else if rt.IsCustom(typeTimeDelta) {
		l.fail(mc, "timedelta has no replace()")
	}

	for _, kw := range mc.Kwargs {
		if !containsName(fields, kw.Name) {
			l.fail(mc, "replace() got an unexpected keyword argument %q", kw.Name)
		}
	}

	d := l.getTempName("d")
	args := make([]rust.Expr, len(fields))
	for i, f := range fields {
		if v := kwarg(mc.Kwargs, f); v != nil {
			args[i] = l.coerce(v, hir.Int)
		} else {
			args[i] = rust.M(rust.Id(d), f)
		}
	}

	return rust.BlockOf(rust.CallPath(l.dateWrapper(rt)+"::new", args...), rust.LetName(d, false, nil, x))
}

// lowerDateCall lowers the constructors and class methods of the datetime
// module.  fn is `datetime`, `date` or `timedelta` for a constructor, or
// `Class.method` for a class method.
func (l *Lowerer) lowerDateCall(class, method string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	var t *hir.Type
	switch class {
	case "date":
		t = hir.CustomOf(typeDate)
	case "timedelta":
		t = hir.CustomOf(typeTimeDelta)
	default:
		t = hir.CustomOf(typeDateTime)
	}

	wrapper := l.dateWrapper(t)
	l.ctx.Tracer.Record(trace.ImportResolve, "datetime."+class, wrapper, []string{"chrono"}, 0.9, node.Span())

	switch method {
	case "":
		if class == "timedelta" {
			return l.lowerTimeDelta(args, kwargs, node)
		}

		fields := dateTimeFields
		if class == "date" {
			fields = dateFields
		}
		if len(args) > len(fields) {
			l.fail(node, "%s() takes at most %d arguments", class, len(fields))
		}

		out := make([]rust.Expr, len(fields))
		for i, f := range fields {
			switch {
			case i < len(args):
				out[i] = l.coerce(args[i], hir.Int)
			case kwarg(kwargs, f) != nil:
				out[i] = l.coerce(kwarg(kwargs, f), hir.Int)
			case i < 3:
				l.fail(node, "%s() missing required argument %q", class, f)
			default:
				out[i] = rust.Int(0)
			}
		}
		return rust.CallPath(wrapper+"::new", out...)
	case "now", "today", "utcnow":
		if method == "utcnow" {
			method = "now"
		}
		return rust.CallPath(wrapper + "::" + method)
	case "fromtimestamp", "utcfromtimestamp":
		if len(args) == 0 {
			l.fail(node, "fromtimestamp() expects a timestamp")
		}
		return rust.CallPath(wrapper+"::fromtimestamp", l.coerce(args[0], hir.Float))
	case "fromordinal":
		if len(args) == 0 {
			l.fail(node, "fromordinal() expects an ordinal")
		}
		if class == "datetime" {
			l.ctx.Need(prelude.Date)
			date := rust.CallPath("DepylerDate::fromordinal", l.coerce(args[0], hir.Int))
			d := l.getTempName("d")
			return rust.BlockOf(rust.CallPath(wrapper+"::new",
				rust.M(rust.Id(d), "year"), rust.M(rust.Id(d), "month"), rust.M(rust.Id(d), "day"),
				rust.Int(0), rust.Int(0), rust.Int(0), rust.Int(0)),
				rust.LetName(d, false, nil, date))
		}
		return rust.CallPath(wrapper+"::fromordinal", l.coerce(args[0], hir.Int))
	}

	l.fail(node, "datetime.%s.%s() is not supported", class, method)
	return nil
}

// lowerTimeDelta lowers `timedelta(...)`.  Integer components are summed in
// microseconds; a float component switches to total seconds.
func (l *Lowerer) lowerTimeDelta(args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	if len(args) > 3 {
		l.fail(node, "timedelta() takes at most 3 positional arguments")
	}

	type part struct {
		unit string
		e    hir.Expr
	}

	var parts []part
	for i, a := range args {
		parts = append(parts, part{timeDeltaFields[i], a})
	}
	for _, kw := range kwargs {
		if _, ok := microsPer[kw.Name]; !ok {
			l.fail(node, "timedelta() got an unexpected keyword argument %q", kw.Name)
		}
		parts = append(parts, part{kw.Name, kw.Value})
	}

	if len(parts) == 0 {
		return rust.CallPath("DepylerTimeDelta::new", rust.Int(0), rust.Int(0), rust.Int(0))
	}

	float := false
	for _, p := range parts {
		if l.exprType(p.e).Is(hir.TFloat) {
			float = true
		}
	}

	var sum rust.Expr
	for _, p := range parts {
		var term rust.Expr
		if float {
			term = rust.Bin("*", l.coerce(p.e, hir.Float), rust.Float(float64(microsPer[p.unit])/1e6))
		} else {
			term = l.lowerExpr(p.e)
			if n := microsPer[p.unit]; n != 1 {
				term = rust.Bin("*", term, rust.Int(n))
			}
		}

		if sum == nil {
			sum = term
		} else {
			sum = rust.Bin("+", sum, term)
		}
	}

	if float {
		return rust.CallPath("DepylerTimeDelta::from_total_seconds", sum)
	}

	return rust.CallPath("DepylerTimeDelta::from_microseconds", sum)
}

// -----------------------------------------------------------------------------

// lowerTimeCall lowers the time module.
func (l *Lowerer) lowerTimeCall(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	switch fn {
	case "time":
		now := rust.M(rust.M(rust.CallPath("std::time::SystemTime::now"), "duration_since", rust.P("std::time::UNIX_EPOCH")), "expect", rust.Str("clock before 1970"))
		return rust.M(now, "as_secs_f64")
	case "monotonic", "perf_counter":
		// seconds since the first call in this process
		start := "std::sync::LazyLock::<std::time::Instant>::new(std::time::Instant::now)"
		l.ctx.Tracer.Record(trace.TypeMapping, "time."+fn, "Instant", nil, 0.8, node.Span())
		return rust.BlockOf(rust.M(rust.M(rust.Id("START"), "elapsed"), "as_secs_f64"),
			&rust.ItemStmt{Item: &rust.Static{Name: "START", Ty: rust.T("std::sync::LazyLock", rust.T("std::time::Instant")), Value: &rust.Raw{Text: start, Prec: rust.PrecAtom}}})
	case "sleep":
		if len(args) == 0 {
			l.fail(node, "time.sleep() expects a duration")
		}
		return rust.CallPath("std::thread::sleep", rust.CallPath("std::time::Duration::from_secs_f64", l.coerce(args[0], hir.Float)))
	}

	l.fail(node, "time.%s() is not supported", fn)
	return nil
}

// lowerAsyncioCall lowers the asyncio module.  The realtime mode runs
// everything synchronously.
func (l *Lowerer) lowerAsyncioCall(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	realtime := l.ctx.Mode == ModeRealtime
	l.ctx.Tracer.Record(trace.ImportResolve, "asyncio."+fn, l.ctx.Mode.String(), nil, 1, node.Span())

	switch fn {
	case "sleep":
		if len(args) == 0 {
			l.fail(node, "asyncio.sleep() expects a duration")
		}
		d := rust.CallPath("std::time::Duration::from_secs_f64", l.coerce(args[0], hir.Float))
		if realtime {
			return rust.CallPath("std::thread::sleep", d)
		}
		l.ctx.Need(prelude.AsyncRuntime)
		return &rust.Await{X: rust.CallPath("tokio::time::sleep", d)}
	case "run":
		if len(args) == 0 {
			l.fail(node, "asyncio.run() expects a coroutine")
		}
		if realtime {
			return l.lowerExpr(args[0])
		}
		l.ctx.Need(prelude.AsyncRuntime)
		return &rust.Await{X: l.lowerExpr(args[0])}
	case "gather":
		elems := make([]rust.Expr, len(args))
		for i, a := range args {
			elems[i] = l.lowerExpr(a)
		}
		if realtime {
			return &rust.Tuple{Elems: elems}
		}
		l.ctx.Need(prelude.AsyncRuntime)
		return rust.MacroCall("tokio::join", elems...)
	}

	l.fail(node, "asyncio.%s() is not supported", fn)
	return nil
}
