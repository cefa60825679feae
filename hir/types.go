package hir

import "strings"

// TypeKind enumerates the different kinds of HIR types.
type TypeKind int

const (
	TUnknown TypeKind = iota
	TInt
	TFloat
	TBool
	TString
	TNone
	TList
	TDict
	TSet
	TTuple
	TOptional
	TGeneric
	TCustom
	TFunction
)

// Type is a HIR type.  A nil *Type is equivalent to the unknown type so that
// optional annotations can be represented without a wrapper.
type Type struct {
	Kind TypeKind

	// Name is the base name of generic types and the name of custom types.
	Name string

	// Args holds the type arguments of the type.  Its meaning depends on the
	// kind: the element of a list or set, the key and value of a dict, the
	// elements of a tuple, the inner type of an optional, the arguments of a
	// generic, and the parameter types of a function.
	Args []*Type

	// Ret is the return type of a function type.
	Ret *Type
}

// Predeclared primitive types.
var (
	Int      = &Type{Kind: TInt}
	Float    = &Type{Kind: TFloat}
	Bool     = &Type{Kind: TBool}
	Str      = &Type{Kind: TString}
	NoneType = &Type{Kind: TNone}
	Unknown  = &Type{Kind: TUnknown}
)

// ListOf returns the type of a list with the given element type.
func ListOf(elem *Type) *Type {
	return &Type{Kind: TList, Args: []*Type{elem}}
}

// DictOf returns the type of a dict with the given key and value types.
func DictOf(key, value *Type) *Type {
	return &Type{Kind: TDict, Args: []*Type{key, value}}
}

// SetOf returns the type of a set with the given element type.
func SetOf(elem *Type) *Type {
	return &Type{Kind: TSet, Args: []*Type{elem}}
}

// TupleOf returns a tuple type over elems.
func TupleOf(elems ...*Type) *Type {
	return &Type{Kind: TTuple, Args: elems}
}

// OptionalOf returns the optional type wrapping inner.
func OptionalOf(inner *Type) *Type {
	return &Type{Kind: TOptional, Args: []*Type{inner}}
}

// GenericOf returns a generic type such as `Iterator[int]`.
func GenericOf(base string, args ...*Type) *Type {
	return &Type{Kind: TGeneric, Name: base, Args: args}
}

// CustomOf returns a custom (class or library) type.
func CustomOf(name string) *Type {
	return &Type{Kind: TCustom, Name: name}
}

// FuncOf returns a function type.
func FuncOf(params []*Type, ret *Type) *Type {
	return &Type{Kind: TFunction, Args: params, Ret: ret}
}

// -----------------------------------------------------------------------------

// IsUnknown returns whether t carries no type information.
func (t *Type) IsUnknown() bool {
	return t == nil || t.Kind == TUnknown
}

// Is returns whether t is of the given kind.  It is nil-safe.
func (t *Type) Is(kind TypeKind) bool {
	if t == nil {
		return kind == TUnknown
	}

	return t.Kind == kind
}

// IsCustom returns whether t is a custom type with the given name.
func (t *Type) IsCustom(name string) bool {
	return t != nil && t.Kind == TCustom && t.Name == name
}

// IsNumeric returns whether t is an int or a float.
func (t *Type) IsNumeric() bool {
	return t != nil && (t.Kind == TInt || t.Kind == TFloat)
}

// IsContainer returns whether t is a list, dict, set or tuple.
func (t *Type) IsContainer() bool {
	if t == nil {
		return false
	}

	switch t.Kind {
	case TList, TDict, TSet, TTuple:
		return true
	}

	return false
}

// IsCopy returns whether values of t are trivially copied in the target.
func (t *Type) IsCopy() bool {
	if t == nil {
		return false
	}

	switch t.Kind {
	case TInt, TFloat, TBool, TNone:
		return true
	case TTuple:
		for _, arg := range t.Args {
			if !arg.IsCopy() {
				return false
			}
		}
		return true
	}

	return false
}

// arg returns the nth type argument or nil.
func (t *Type) arg(n int) *Type {
	if t == nil || n >= len(t.Args) {
		return nil
	}

	return t.Args[n]
}

// Elem returns the element type of a list, set or iterator-like generic.
func (t *Type) Elem() *Type {
	if t == nil {
		return nil
	}

	switch t.Kind {
	case TList, TSet, TGeneric:
		return t.arg(0)
	case TString:
		return Str
	case TDict:
		return t.arg(0)
	}

	return nil
}

// Key returns the key type of a dict.
func (t *Type) Key() *Type {
	if t.Is(TDict) {
		return t.arg(0)
	}

	return nil
}

// Value returns the value type of a dict.
func (t *Type) Value() *Type {
	if t.Is(TDict) {
		return t.arg(1)
	}

	return nil
}

// Inner returns the wrapped type of an optional.
func (t *Type) Inner() *Type {
	if t.Is(TOptional) {
		return t.arg(0)
	}

	return nil
}

// Unwrapped strips any optional wrapping from t.
func (t *Type) Unwrapped() *Type {
	for t.Is(TOptional) {
		t = t.Inner()
	}

	return t
}

// Equals returns whether two types are structurally identical.  Unknown types
// are equal to each other.
func (t *Type) Equals(o *Type) bool {
	if t.IsUnknown() || o.IsUnknown() {
		return t.IsUnknown() && o.IsUnknown()
	}

	if t.Kind != o.Kind || t.Name != o.Name || len(t.Args) != len(o.Args) {
		return false
	}

	for i, arg := range t.Args {
		if !arg.Equals(o.Args[i]) {
			return false
		}
	}

	if t.Kind == TFunction {
		return t.Ret.Equals(o.Ret)
	}

	return true
}

// IsMoreSpecific returns whether t carries strictly more information than o:
// eg. `list[int]` is more specific than `list` and anything is more specific
// than the unknown type.
func (t *Type) IsMoreSpecific(o *Type) bool {
	if t.IsUnknown() {
		return false
	} else if o.IsUnknown() {
		return true
	}

	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}

	more := false
	for i, arg := range t.Args {
		oarg := o.arg(i)
		if arg.IsMoreSpecific(oarg) {
			more = true
		} else if !arg.Equals(oarg) {
			return false
		}
	}

	return more
}

// Repr returns the Python annotation spelling of the type.
func (t *Type) Repr() string {
	if t.IsUnknown() {
		return "Any"
	}

	joinArgs := func() string {
		args := make([]string, len(t.Args))
		for i, arg := range t.Args {
			args[i] = arg.Repr()
		}

		return strings.Join(args, ", ")
	}

	switch t.Kind {
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TBool:
		return "bool"
	case TString:
		return "str"
	case TNone:
		return "None"
	case TList:
		return "list[" + joinArgs() + "]"
	case TDict:
		return "dict[" + joinArgs() + "]"
	case TSet:
		return "set[" + joinArgs() + "]"
	case TTuple:
		return "tuple[" + joinArgs() + "]"
	case TOptional:
		return "Optional[" + joinArgs() + "]"
	case TGeneric:
		return t.Name + "[" + joinArgs() + "]"
	case TFunction:
		return "Callable[[" + joinArgs() + "], " + t.Ret.Repr() + "]"
	default:
		return t.Name
	}
}

func (t *Type) String() string {
	return t.Repr()
}
