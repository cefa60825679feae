package lower

import (
	"github.com/paiml/depyler-sub004/hir"
	"github.com/paiml/depyler-sub004/prelude"
	"github.com/paiml/depyler-sub004/rust"
	"github.com/paiml/depyler-sub004/trace"
)

// rustType converts a HIR type into the Rust type used for declarations.
// Unknown types fall back to DepylerValue.
func (l *Lowerer) rustType(t *hir.Type) rust.Type {
	if t.IsUnknown() {
		l.ctx.Need(prelude.ValueEnum)
		return rust.T("DepylerValue")
	}

	switch t.Kind {
	case hir.TInt:
		return rust.T("i64")
	case hir.TFloat:
		return rust.T("f64")
	case hir.TBool:
		return rust.T("bool")
	case hir.TString:
		return rust.T("String")
	case hir.TNone:
		return rust.TUnit()
	case hir.TList:
		return rust.T("Vec", l.rustType(t.Elem()))
	case hir.TDict:
		l.ctx.Need(prelude.HashMap)
		return rust.T("HashMap", l.keyType(t.Key()), l.rustType(t.Value()))
	case hir.TSet:
		l.ctx.Need(prelude.HashSet)
		return rust.T("HashSet", l.keyType(t.Elem()))
	case hir.TTuple:
		elems := make([]rust.Type, len(t.Args))
		for i, arg := range t.Args {
			elems[i] = l.rustType(arg)
		}
		return &rust.TupleType{Elems: elems}
	case hir.TOptional:
		return rust.T("Option", l.rustType(t.Inner()))
	case hir.TGeneric:
		switch t.Name {
		case "Iterator":
			return rust.TImplIter(l.rustType(t.Elem()))
		case "deque":
			l.ctx.Need(prelude.VecDeque)
			return rust.T("VecDeque", l.rustType(t.Elem()))
		case "range":
			return rust.T("std::ops::Range", rust.T("i64"))
		}

		args := make([]rust.Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = l.rustType(arg)
		}
		return rust.T(rust.SafeIdent(t.Name), args...)
	case hir.TCustom:
		return l.customType(t.Name)
	case hir.TFunction:
		return rust.TBoxDyn(l.fnTraitType(t))
	}

	return rust.T("DepylerValue")
}

// keyType is the Rust type of dict keys and set elements.  Floats are not
// hashable in Rust so they go through DepylerValue.
func (l *Lowerer) keyType(t *hir.Type) rust.Type {
	if t.Is(hir.TFloat) {
		l.ctx.Tracer.Record(trace.TypeMapping, "float-key", "DepylerValue", []string{"f64"}, 0.8, nil)
		l.ctx.Need(prelude.ValueEnum)
		return rust.T("DepylerValue")
	}

	return l.rustType(t)
}

// fnTraitType builds `Fn(params) -> ret` for a function type.
func (l *Lowerer) fnTraitType(t *hir.Type) *rust.FnType {
	params := make([]rust.Type, len(t.Args))
	for i, arg := range t.Args {
		params[i] = l.rustType(arg)
	}

	var ret rust.Type
	if t.Ret != nil && !t.Ret.Is(hir.TNone) {
		ret = l.rustType(t.Ret)
	}

	return &rust.FnType{Trait: "Fn", Params: params, Ret: ret}
}

// customType maps custom and library types.
func (l *Lowerer) customType(name string) rust.Type {
	if l.ctx.ClassNames[name] {
		return rust.T(rust.SafeIdent(name))
	}

	switch name {
	case dynTypeName, "...":
		l.ctx.Need(prelude.ValueEnum)
		return rust.T("DepylerValue")
	case typeDateTime:
		l.ctx.Need(prelude.DateTime)
		return rust.T("DepylerDateTime")
	case typeDate:
		l.ctx.Need(prelude.Date)
		return rust.T("DepylerDate")
	case typeTimeDelta:
		l.ctx.Need(prelude.TimeDelta)
		return rust.T("DepylerTimeDelta")
	case typeMatch, "re.Match":
		l.ctx.Need(prelude.RegexMatch)
		return rust.T("DepylerRegexMatch")
	case typePattern, "re.Pattern":
		l.ctx.Need(prelude.Regex)
		return rust.T("Regex")
	case typePath, "PurePath", "PosixPath", "pathlib.Path":
		return rust.T("std::path::PathBuf")
	case typeFile, "TextIO", "IO", "BinaryIO", "TextIOWrapper":
		return rust.T("std::fs::File")
	case typeWriter:
		l.ctx.Need(prelude.IOWrite)
		return rust.TBoxDyn(rust.T("std::io::Write"))
	case typeBytes, "bytearray":
		return rust.T("Vec", rust.T("u8"))
	case typeJSON:
		l.ctx.Need(prelude.SerdeJSON)
		return rust.T("serde_json::Value")
	case typeException:
		l.ctx.Need(prelude.Exceptions)
		return rust.T("PyException")
	case typeStat:
		return rust.T("std::fs::Metadata")
	case typeHasher:
		l.ctx.Need(prelude.Digest)
		return rust.T("sha2::Sha256")
	case typeArgs, "argparse.Namespace":
		return rust.T("Args")
	case typeCSVReader, typeCSVDict:
		l.ctx.Need(prelude.CSV)
		return rust.T("csv::Reader", rust.T("std::fs::File"))
	case typeCSVWriter:
		l.ctx.Need(prelude.CSV)
		return rust.T("csv::Writer", rust.T("std::fs::File"))
	case "Decimal":
		return rust.T("f64")
	case "Any", "object":
		l.ctx.Need(prelude.ValueEnum)
		return rust.T("DepylerValue")
	}

	if isBuiltinException(name) || l.ctx.ExceptionClasses[name] != "" {
		l.ctx.Need(prelude.Exceptions)
		return rust.T("PyException")
	}

	return rust.T(rust.SafeIdent(name))
}

// returnType converts the Python return type of a function.
func (l *Lowerer) returnType(t *hir.Type, result bool) rust.Type {
	var inner rust.Type
	if t != nil && !t.Is(hir.TNone) {
		inner = l.rustType(t)
	}

	if result {
		if inner == nil {
			inner = rust.TUnit()
		}
		return rust.T("Result", inner, rust.TBoxDyn(rust.T("std::error::Error")))
	}

	return inner
}

// fieldType converts the type of a struct field: opaque iterators are boxed.
func (l *Lowerer) fieldType(t *hir.Type) rust.Type {
	if t.Is(hir.TGeneric) && t.Name == "Iterator" {
		return rust.TBoxDyn(&rust.PathType{
			Name:  "Iterator",
			Assoc: []rust.AssocBinding{{Name: "Item", Ty: l.rustType(t.Elem())}},
		})
	}

	return l.rustType(t)
}

// paramType converts a parameter type given how it is passed.
func (l *Lowerer) paramType(t *hir.Type, b Borrow) rust.Type {
	switch b {
	case BorrowStr:
		return rust.TRef(rust.T("str"))
	case BorrowShared:
		return rust.TRef(l.rustType(t))
	case BorrowMut:
		return rust.TRefMut(l.rustType(t))
	}

	if t.Is(hir.TFunction) {
		return &rust.ImplType{Bounds: []rust.Type{l.fnTraitType(t)}}
	}

	return l.rustType(t)
}

// isDisplayable tests whether values of t print with `{}`.
func (l *Lowerer) isDisplayable(t *hir.Type) bool {
	if t == nil {
		return false
	}

	switch t.Kind {
	case hir.TInt, hir.TFloat, hir.TBool, hir.TString:
		return true
	case hir.TCustom:
		switch t.Name {
		case dynTypeName, typeDateTime, typeDate, typeTimeDelta, typeMatch, typeJSON, typeException:
			return true
		}
		if ci, ok := l.classes[t.Name]; ok {
			return ci.hasDisplay()
		}
	}

	return false
}
