package hir

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseType parses a Python type annotation such as `dict[str, list[int]]`,
// `Optional[str]` or `int | None` into a HIR type.  An empty annotation parses
// to nil (unknown).
func ParseType(annot string) (*Type, error) {
	annot = strings.TrimSpace(annot)
	if annot == "" {
		return nil, nil
	}

	tp := &typeParser{src: annot}
	t, err := tp.parseUnion()
	if err != nil {
		return nil, err
	}

	tp.skipSpace()
	if tp.pos != len(tp.src) {
		return nil, fmt.Errorf("unexpected `%s` in type annotation `%s`", tp.src[tp.pos:], annot)
	}

	return t, nil
}

// MustParseType is like ParseType but panics on malformed annotations.  It is
// intended for annotations known at compile time.
func MustParseType(annot string) *Type {
	t, err := ParseType(annot)
	if err != nil {
		panic(err)
	}

	return t
}

// typeParser is a tiny recursive descent parser over annotation text.
type typeParser struct {
	src string
	pos int
}

func (tp *typeParser) skipSpace() {
	for tp.pos < len(tp.src) && tp.src[tp.pos] == ' ' {
		tp.pos++
	}
}

func (tp *typeParser) peek() byte {
	tp.skipSpace()
	if tp.pos < len(tp.src) {
		return tp.src[tp.pos]
	}

	return 0
}

func (tp *typeParser) expect(c byte) error {
	if tp.peek() != c {
		return fmt.Errorf("expected `%c` in type annotation `%s`", c, tp.src)
	}

	tp.pos++
	return nil
}

// parseUnion parses `A | B | ...`.  A union with None becomes an optional;
// any other union is unknown.
func (tp *typeParser) parseUnion() (*Type, error) {
	first, err := tp.parseAtom()
	if err != nil {
		return nil, err
	}

	members := []*Type{first}
	for tp.peek() == '|' {
		tp.pos++

		next, err := tp.parseAtom()
		if err != nil {
			return nil, err
		}

		members = append(members, next)
	}

	return unionOf(members), nil
}

func (tp *typeParser) parseAtom() (*Type, error) {
	tp.skipSpace()

	start := tp.pos
	for tp.pos < len(tp.src) {
		r := rune(tp.src[tp.pos])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			tp.pos++
		} else {
			break
		}
	}

	name := tp.src[start:tp.pos]
	if name == "" {
		if tp.peek() == '[' {
			// Bare parameter lists of `Callable[[int, str], bool]`.
			tp.pos++
			params, err := tp.parseArgs(']')
			if err != nil {
				return nil, err
			}

			return &Type{Kind: TTuple, Args: params}, nil
		}

		return nil, fmt.Errorf("expected type name in annotation `%s`", tp.src)
	}

	var args []*Type
	if tp.peek() == '[' {
		tp.pos++

		var err error
		if args, err = tp.parseArgs(']'); err != nil {
			return nil, err
		}
	}

	return namedType(name, args), nil
}

func (tp *typeParser) parseArgs(close byte) ([]*Type, error) {
	var args []*Type
	for tp.peek() != close {
		arg, err := tp.parseUnion()
		if err != nil {
			return nil, err
		}

		args = append(args, arg)

		if tp.peek() == ',' {
			tp.pos++
		} else {
			break
		}
	}

	if err := tp.expect(close); err != nil {
		return nil, err
	}

	return args, nil
}

// -----------------------------------------------------------------------------

// unionOf folds the members of a union annotation.
func unionOf(members []*Type) *Type {
	if len(members) == 1 {
		return members[0]
	}

	var rest []*Type
	hasNone := false
	for _, m := range members {
		if m.Is(TNone) {
			hasNone = true
		} else {
			rest = append(rest, m)
		}
	}

	if len(rest) == 1 && hasNone {
		return OptionalOf(rest[0])
	} else if len(rest) == 1 {
		return rest[0]
	}

	return Unknown
}

// namedType builds the type named by an annotation head and its arguments.
func namedType(name string, args []*Type) *Type {
	name = strings.TrimPrefix(name, "typing.")

	arg := func(n int) *Type {
		if n < len(args) {
			return args[n]
		}

		return nil
	}

	switch name {
	case "int":
		return Int
	case "float":
		return Float
	case "bool":
		return Bool
	case "str":
		return Str
	case "None", "NoneType":
		return NoneType
	case "Any", "object":
		return Unknown
	case "list", "List", "Sequence", "MutableSequence":
		return ListOf(arg(0))
	case "dict", "Dict", "Mapping", "MutableMapping", "defaultdict", "OrderedDict":
		return DictOf(arg(0), arg(1))
	case "set", "Set", "frozenset", "FrozenSet", "AbstractSet":
		return SetOf(arg(0))
	case "tuple", "Tuple":
		// `tuple[int, ...]` is a homogeneous tuple which we treat as a list.
		if len(args) == 2 && args[1].IsCustom("...") {
			return ListOf(args[0])
		}
		return TupleOf(args...)
	case "Optional":
		return OptionalOf(arg(0))
	case "Union":
		return unionOf(args)
	case "Callable":
		if params := arg(0); params != nil && params.Kind == TTuple {
			return FuncOf(params.Args, arg(1))
		}
		return FuncOf(nil, arg(1))
	case "Iterator", "Iterable", "Generator", "AsyncIterator":
		return GenericOf("Iterator", arg(0))
	case "deque", "Deque":
		return GenericOf("deque", arg(0))
	case "Counter":
		return DictOf(arg(0), Int)
	}

	if len(args) > 0 {
		return GenericOf(name, args...)
	}

	return CustomOf(name)
}
