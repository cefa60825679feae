package lower

import (
	"strings"

	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// isStdio tests whether e is `sys.stdin`, `sys.stdout` or `sys.stderr`.
func (l *Lowerer) isStdio(e hir.Expr) bool {
	a, ok := e.(*hir.Attribute)
	if !ok {
		return false
	}

	if mod, ok := l.moduleOf(a.Value); !ok || mod != "sys" {
		return false
	}

	switch a.Attr {
	case "stdin", "stdout", "stderr":
		return true
	}

	return false
}

// lowerStdioMethod lowers the methods of the standard streams.
func (l *Lowerer) lowerStdioMethod(mc *hir.MethodCall) rust.Expr {
	stream := mc.Recv.(*hir.Attribute).Attr
	handle := rust.CallPath("std::io::" + stream)

	switch mc.Method {
	case "write":
		macro := "print"
		if stream == "stderr" {
			macro = "eprint"
		}
		placeholder, arg := l.displayArg(l.argAt(mc, 0))
		return rust.MacroCall(macro, rust.Str(placeholder), arg)
	case "flush":
		l.ctx.Need(prelude.IOWrite)
		return rust.M(rust.M(handle, "flush"), "expect", rust.Str("failed to flush "+stream))
	case "readline":
		line := l.getTempName("line")
		return rust.BlockOf(rust.Id(line),
			rust.LetName(line, true, nil, rust.CallPath("String::new")),
			rust.Semi(rust.M(rust.M(handle, "read_line", rust.BorrowMut(rust.Id(line))), "expect", rust.Str("failed to read stdin"))),
		)
	case "read":
		return rust.M(rust.CallPath("std::io::read_to_string", handle), "expect", rust.Str("failed to read stdin"))
	case "readlines":
		return &rust.MethodCall{
			Recv:      rust.M(rust.M(handle, "lines"), "map", rust.Lambda(false, []string{"line"}, rust.M(rust.Id("line"), "expect", rust.Str("failed to read stdin")))),
			Method:    "collect",
			Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))},
		}
	}

	l.fail(mc, "sys.%s.%s() is not supported", stream, mc.Method)
	return nil
}

// -----------------------------------------------------------------------------

// lowerFileMethod lowers the methods of an open file.
func (l *Lowerer) lowerFileMethod(mc *hir.MethodCall) rust.Expr {
	f := l.attrRecv(mc.Recv)

	switch mc.Method {
	case "read":
		s := l.getTempName("content")
		read := rust.CallPath("std::io::Read::read_to_string", rust.BorrowMut(rust.Borrow(f)), rust.BorrowMut(rust.Id(s)))
		return rust.BlockOf(rust.Id(s),
			rust.LetName(s, true, nil, rust.CallPath("String::new")),
			rust.Semi(l.fallible(read, "failed to read file")),
		)
	case "readline":
		l.ctx.Need(prelude.BufRead)
		s := l.getTempName("line")
		read := rust.M(rust.CallPath("std::io::BufReader::new", rust.Borrow(f)), "read_line", rust.BorrowMut(rust.Id(s)))
		return rust.BlockOf(rust.Id(s),
			rust.LetName(s, true, nil, rust.CallPath("String::new")),
			rust.Semi(l.fallible(read, "failed to read line")),
		)
	case "readlines":
		l.ctx.Need(prelude.BufRead)
		return &rust.MethodCall{Recv: l.fileLines(rust.Borrow(f)), Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))}}
	case "write":
		l.ctx.Need(prelude.IOWrite)
		return l.fallible(rust.M(f, "write_all", rust.M(l.strArg(l.argAt(mc, 0)), "as_bytes")), "failed to write file")
	case "writelines":
		l.ctx.Need(prelude.IOWrite)
		return &rust.For{
			Pat:  rust.Pat("line"),
			Iter: l.iterOf(l.argAt(mc, 0)),
			Body: rust.BlockOf(nil, rust.Semi(l.fallible(rust.M(f, "write_all", rust.M(rust.Id("line"), "as_bytes")), "failed to write file"))),
		}
	case "flush":
		l.ctx.Need(prelude.IOWrite)
		return l.fallible(rust.M(f, "flush"), "failed to flush file")
	case "close":
		// the handle closes when it is dropped
		l.ctx.Tracer.Record(trace.Ownership, "close", "drop", []string{"explicit-close"}, 1, mc.Span())
		return rust.Unit()
	case "fileno":
		return rust.As(rust.CallPath("std::os::unix::io::AsRawFd::as_raw_fd", rust.Borrow(f)), rust.T("i64"))
	}

	l.fail(mc, "file.%s() is not supported", mc.Method)
	return nil
}

// lowerPathMethod lowers the methods of a pathlib.Path.
func (l *Lowerer) lowerPathMethod(mc *hir.MethodCall) rust.Expr {
	p := l.attrRecv(mc.Recv)
	ref := rust.Borrow(p)

	switch mc.Method {
	case "exists", "is_file", "is_dir", "is_absolute":
		return rust.M(p, mc.Method)
	case "read_text":
		return l.fallible(rust.CallPath("std::fs::read_to_string", ref), "failed to read file")
	case "read_bytes":
		return l.fallible(rust.CallPath("std::fs::read", ref), "failed to read file")
	case "write_text", "write_bytes":
		return l.fallible(rust.CallPath("std::fs::write", ref, l.strArg(l.argAt(mc, 0))), "failed to write file")
	case "mkdir":
		fn := "std::fs::create_dir"
		if parents, ok := kwarg(mc.Kwargs, "parents").(*hir.BoolLit); ok && parents.Value {
			fn = "std::fs::create_dir_all"
		} else if exist, ok := kwarg(mc.Kwargs, "exist_ok").(*hir.BoolLit); ok && exist.Value {
			fn = "std::fs::create_dir_all"
		}
		return l.fallible(rust.CallPath(fn, ref), "failed to create directory")
	case "unlink":
		return l.fallible(rust.CallPath("std::fs::remove_file", ref), "failed to remove file")
	case "rmdir":
		return l.fallible(rust.CallPath("std::fs::remove_dir", ref), "failed to remove directory")
	case "touch":
		open := rust.M(rust.M(rust.M(rust.CallPath("std::fs::OpenOptions::new"), "create", rust.Bool(true)), "append", rust.Bool(true)), "open", ref)
		return l.fallible(rust.M(open, "map", rust.Lambda(false, []string{"_"}, rust.Unit())), "failed to touch file")
	case "stat":
		return l.fallible(rust.CallPath("std::fs::metadata", ref), "failed to stat file")
	case "resolve":
		return l.fallible(rust.M(p, "canonicalize"), "failed to resolve path")
	case "absolute":
		return l.fallible(rust.CallPath("std::path::absolute", ref), "failed to resolve path")
	case "joinpath":
		x := p
		for _, a := range mc.Args {
			x = rust.M(x, "join", l.pathArg(a))
		}
		return x
	case "with_suffix":
		if s, ok := l.argAt(mc, 0).(*hir.StrLit); ok {
			return rust.M(p, "with_extension", rust.Str(strings.TrimPrefix(s.Value, ".")))
		}
		return rust.M(p, "with_extension", rust.M(l.strArg(mc.Args[0]), "trim_start_matches", &rust.CharLit{Value: '.'}))
	case "with_name":
		return rust.M(p, "with_file_name", l.strArg(l.argAt(mc, 0)))
	case "iterdir":
		return l.readDir(p, nil)
	case "glob":
		pat, ok := l.argAt(mc, 0).(*hir.StrLit)
		if !ok || !strings.HasPrefix(pat.Value, "*.") || strings.ContainsAny(pat.Value[2:], "*?[/") {
			l.fail(mc, "Path.glob() only supports \"*.ext\" patterns")
		}
		ext := rust.M(rust.M(rust.Id("p"), "extension"), "map_or", rust.Bool(false),
			rust.Lambda(false, []string{"e"}, rust.Bin("==", rust.Id("e"), rust.Str(pat.Value[2:]))))
		return l.readDir(p, rust.Lambda(false, []string{"p"}, ext))
	case "open":
		call := &hir.Call{Base: mc.Base, Func: "open", Args: append([]hir.Expr{mc.Recv}, mc.Args...), Kwargs: mc.Kwargs}
		return l.lowerOpen(call)
	case "as_posix":
		return rust.ToString(rust.M(p, "to_string_lossy"))
	}

	l.fail(mc, "Path.%s() is not supported", mc.Method)
	return nil
}

// pathArg lowers an argument that is joined onto a path.
func (l *Lowerer) pathArg(e hir.Expr) rust.Expr {
	if l.exprType(e).IsCustom(typePath) {
		return rust.Borrow(l.lowerExpr(e))
	}

	return l.strArg(e)
}

// readDir lists the entries of directory p, optionally filtered.
func (l *Lowerer) readDir(p rust.Expr, filter rust.Expr) rust.Expr {
	entries := l.fallible(rust.CallPath("std::fs::read_dir", rust.Borrow(p)), "failed to read directory")
	var it rust.Expr = rust.M(entries, "map", rust.Lambda(false, []string{"e"},
		rust.M(rust.M(rust.Id("e"), "expect", rust.Str("failed to read directory entry")), "path")))

	if filter != nil {
		it = rust.M(it, "filter", filter)
	}

	return &rust.MethodCall{Recv: it, Method: "collect", Turbofish: []rust.Type{rust.T("Vec", rust.T("std::path::PathBuf"))}}
}

// -----------------------------------------------------------------------------

// lowerCSVWriterMethod lowers the methods of csv writers and DictWriters.
func (l *Lowerer) lowerCSVWriterMethod(mc *hir.MethodCall) rust.Expr {
	l.ctx.Need(prelude.CSV)
	w := l.attrRecv(mc.Recv)

	var fields *hir.ListExpr
	if v, ok := mc.Recv.(*hir.Var); ok {
		fields = l.ctx.DictWriterFields[v.Name]
	}

	switch mc.Method {
	case "writeheader":
		if fields == nil {
			l.fail(mc, "writeheader() needs a DictWriter with literal fieldnames")
		}
		names := make([]rust.Expr, len(fields.Elems))
		for i, f := range fields.Elems {
			names[i] = l.lowerExpr(f)
		}
		return l.fallible(rust.M(w, "write_record", rust.Borrow(&rust.Array{Elems: names})), "failed to write CSV header")
	case "writerow":
		return l.fallible(rust.M(w, "write_record", l.csvRow(l.argAt(mc, 0), fields)), "failed to write CSV record")
	case "writerows":
		row := hir.NewVar(l.getTempName("row"))
		l.pushScope()
		l.declare(row.Name)
		l.ctx.SetVarType(row.Name, l.iterElemType(mc.Args[0]))
		body := rust.Semi(l.fallible(rust.M(w, "write_record", l.csvRow(row, fields)), "failed to write CSV record"))
		l.popScope()
		return &rust.For{Pat: rust.Pat(row.Name), Iter: l.iterOf(l.argAt(mc, 0)), Body: rust.BlockOf(nil, body)}
	case "flush":
		return l.fallible(rust.M(w, "flush"), "failed to flush CSV writer")
	}

	l.fail(mc, "csv writer %s() is not supported", mc.Method)
	return nil
}

// csvRow lowers one CSV record.  DictWriter rows are ordered by the field
// names; other rows are written as strings in order.
func (l *Lowerer) csvRow(row hir.Expr, fields *hir.ListExpr) rust.Expr {
	if fields != nil {
		names := make([]rust.Expr, len(fields.Elems))
		for i, f := range fields.Elems {
			names[i] = l.lowerExpr(f)
		}

		lookup := rust.M(rust.M(rust.M(l.lowerExpr(row), "get", rust.Deref(rust.Id("f"))), "map",
			rust.Lambda(false, []string{"v"}, rust.ToString(rust.Id("v")))), "unwrap_or_default")
		return rust.M(rust.M(&rust.Array{Elems: names}, "iter"), "map", rust.Lambda(false, []string{"f"}, lookup))
	}

	if lst, ok := row.(*hir.ListExpr); ok {
		cells := make([]rust.Expr, len(lst.Elems))
		for i, e := range lst.Elems {
			cells[i] = l.stringify(e)
		}
		return rust.Borrow(&rust.Array{Elems: cells})
	}

	t := l.exprType(row)
	if t.Is(hir.TList) && t.Elem().Is(hir.TString) {
		return rust.Borrow(l.lowerExpr(row))
	}

	return rust.M(rust.M(l.lowerExpr(row), "iter"), "map", rust.Lambda(false, []string{"v"}, rust.ToString(rust.Id("v"))))
}

// csvRecords iterates the records of a csv reader or DictReader variable.
func (l *Lowerer) csvRecords(v *hir.Var) rust.Expr {
	l.ctx.Need(prelude.CSV)
	r := l.lowerExpr(v)

	if l.exprType(v).IsCustom(typeCSVDict) {
		l.ctx.Need(prelude.HashMap)
		rows := &rust.MethodCall{Recv: r, Method: "into_deserialize", Turbofish: []rust.Type{rust.T("HashMap", rust.T("String"), rust.T("String"))}}
		return rust.M(rows, "map", rust.Lambda(false, []string{"r"}, rust.M(rust.Id("r"), "expect", rust.Str("invalid CSV record"))))
	}

	fields := &rust.MethodCall{
		Recv:      rust.M(rust.M(rust.M(rust.Id("r"), "expect", rust.Str("invalid CSV record")), "iter"), "map", rust.Lambda(false, []string{"s"}, rust.ToString(rust.Id("s")))),
		Method:    "collect",
		Turbofish: []rust.Type{rust.T("Vec", rust.T("String"))},
	}
	return rust.M(rust.M(r, "into_records"), "map", rust.Lambda(false, []string{"r"}, fields))
}

// lowerCSVOpen lowers the csv module constructors.
func (l *Lowerer) lowerCSVOpen(fn string, args []hir.Expr, kwargs []*hir.Kwarg, node hir.Node) rust.Expr {
	l.ctx.Need(prelude.CSV)
	if len(args) == 0 {
		l.fail(node, "csv.%s() expects a file", fn)
	}

	f := l.owned(args[0])
	var delim rust.Expr
	if d, ok := kwarg(kwargs, "delimiter").(*hir.StrLit); ok && len(d.Value) == 1 {
		delim = &rust.Raw{Text: "b'" + strings.ReplaceAll(d.Value, "'", "\\'") + "'", Prec: rust.PrecAtom}
	}

	switch fn {
	case "reader", "DictReader":
		b := rust.M(rust.CallPath("csv::ReaderBuilder::new"), "has_headers", rust.Bool(fn == "DictReader"))
		if delim != nil {
			b = rust.M(b, "delimiter", delim)
		}
		return rust.M(b, "from_reader", f)
	case "writer", "DictWriter":
		b := rust.CallPath("csv::WriterBuilder::new")
		if delim != nil {
			return rust.M(rust.M(b, "delimiter", delim), "from_writer", f)
		}
		return rust.M(b, "from_writer", f)
	}

	l.fail(node, "csv.%s() is not supported", fn)
	return nil
}

// -----------------------------------------------------------------------------

// hashAlgorithms maps hashlib constructors to sha2 digests.
var hashAlgorithms = map[string]string{
	"sha224": "sha2::Sha224",
	"sha256": "sha2::Sha256",
	"sha384": "sha2::Sha384",
	"sha512": "sha2::Sha512",
}

// lowerHashlib lowers `hashlib.sha256(data)`.
func (l *Lowerer) lowerHashlib(fn string, args []hir.Expr, node hir.Node) rust.Expr {
	path, ok := hashAlgorithms[fn]
	if !ok {
		l.fail(node, "hashlib.%s is not supported", fn)
	}

	l.ctx.Need(prelude.Digest)
	if len(args) == 0 {
		return rust.CallPath(path + "::new")
	}

	return rust.CallPath(path+"::new_with_prefix", l.bytesArg(args[0]))
}

// lowerHasherMethod lowers update, digest and hexdigest.
func (l *Lowerer) lowerHasherMethod(mc *hir.MethodCall) rust.Expr {
	l.ctx.Need(prelude.Digest)
	h := l.attrRecv(mc.Recv)

	switch mc.Method {
	case "update":
		return rust.M(h, "update", l.bytesArg(l.argAt(mc, 0)))
	case "hexdigest":
		return rust.CallPath("hex::encode", rust.M(rust.Clone(h), "finalize"))
	case "digest":
		return rust.M(rust.M(rust.Clone(h), "finalize"), "to_vec")
	}

	l.fail(mc, "hash.%s() is not supported", mc.Method)
	return nil
}

// bytesArg lowers a bytes-like argument as a byte slice.
func (l *Lowerer) bytesArg(e hir.Expr) rust.Expr {
	if mc, ok := e.(*hir.MethodCall); ok && mc.Method == "encode" {
		return rust.M(l.strArg(mc.Recv), "as_bytes")
	}

	if t := l.exprType(e); t.Is(hir.TString) {
		return rust.M(l.strArg(e), "as_bytes")
	}

	return l.argRef(e)
}
