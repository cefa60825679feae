package hir

import (
	"reflect"
	"testing"
)

func TestFreeVarsRespectsBinders(t *testing.T) {
	// lambda x: x + offset + len([y for y in items if y > limit])
	comp := NewListComp(NewVar("y"), NewVar("y"), NewVar("items"), NewBinary(OpGt, NewVar("y"), NewVar("limit")))
	body := NewBinary(OpAdd,
		NewBinary(OpAdd, NewVar("x"), NewVar("offset")),
		NewCall("len", comp),
	)

	got := FreeVars(NewLambda([]string{"x"}, body))
	want := []string{"offset", "items", "limit"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FreeVars = %v, want %v", got, want)
	}
}

func TestRenameIsShadowAware(t *testing.T) {
	// data + (lambda data: data)(1)
	inner := NewLambda([]string{"data"}, NewVar("data"))
	e := NewBinary(OpAdd, NewVar("data"), NewMethodCall(inner, "call", NewInt(1)))

	renamed := Rename(e, map[string]string{"data": "data_clone"}).(*Binary)

	if renamed.Left.(*Var).Name != "data_clone" {
		t.Errorf("free reference was not renamed")
	}

	lam := renamed.Right.(*MethodCall).Recv.(*Lambda)
	if lam.Body.(*Var).Name != "data" {
		t.Errorf("shadowed reference was renamed to %s", lam.Body.(*Var).Name)
	}

	if e.Left.(*Var).Name != "data" {
		t.Errorf("Rename must not mutate its input")
	}
}

func TestAssignedNamesAndYield(t *testing.T) {
	body := []Stmt{
		NewAssign(NewTuple(NewVar("a"), NewVar("b")), NewTuple(NewInt(1), NewInt(2))),
		&For{Target: NewVar("i"), Iter: NewCall("range", NewInt(3)), Body: []Stmt{
			NewExprStmt(&Yield{Value: NewVar("i")}),
			&AugAssign{Target: NewVar("a"), Op: OpAdd, Value: NewVar("i")},
		}},
	}

	if got := AssignedNames(body); !reflect.DeepEqual(got, []string{"a", "b", "i"}) {
		t.Errorf("AssignedNames = %v", got)
	}

	if !ContainsYield(body) {
		t.Errorf("ContainsYield should see the nested yield")
	}

	if ContainsYield(body[:1]) {
		t.Errorf("ContainsYield false positive")
	}
}
