package namespace

import (
	"reflect"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestResolve_FullContext(t *testing.T) {
	got := Resolve(Context{EmployeeID: "E1", OrganizationID: "O1"})

	want := []Resolved{
		{Namespace: "emp_E1", Type: TypeEmployee, BaseWeight: 1.5},
		{Namespace: "org_O1", Type: TypeOrganization, BaseWeight: 1.0},
		{Namespace: "public", Type: TypePublic, BaseWeight: 0.8},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolve_EmployeeOnly(t *testing.T) {
	got := Resolve(Context{EmployeeID: "E1", IncludePublic: boolPtr(false)})

	if len(got) != 1 {
		t.Fatalf("expected 1 namespace, got %d", len(got))
	}
	if got[0].Namespace != "emp_E1" || got[0].Type != TypeEmployee {
		t.Errorf("got %+v", got[0])
	}
}

func TestResolve_CategorySelectsOrganization(t *testing.T) {
	got := Resolve(Context{CategoryID: "C9", IncludePublic: boolPtr(false)})

	if len(got) != 1 {
		t.Fatalf("expected 1 namespace, got %d", len(got))
	}
	if got[0].Namespace != "org_C9" || got[0].Type != TypeOrganization {
		t.Errorf("got %+v", got[0])
	}
}

func TestResolve_EmptyContext(t *testing.T) {
	got := Resolve(Context{})
	if len(got) != 1 || got[0].Namespace != Public {
		t.Errorf("empty context should yield only public, got %+v", got)
	}

	got = Resolve(Context{IncludePublic: boolPtr(false)})
	if len(got) != 0 {
		t.Errorf("empty context without public should yield nothing, got %+v", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	ctx := Context{EmployeeID: "E7", OrganizationID: "O3"}
	first := Resolve(ctx)
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(Resolve(ctx), first) {
			t.Fatal("Resolve is not deterministic across calls")
		}
	}
}

func TestNamespaceType(t *testing.T) {
	tests := []struct {
		ns   Namespace
		want Type
	}{
		{Employee("E1"), TypeEmployee},
		{Organization("O1"), TypeOrganization},
		{Public, TypePublic},
	}

	for _, tt := range tests {
		if got := tt.ns.Type(); got != tt.want {
			t.Errorf("%s.Type() = %s, want %s", tt.ns, got, tt.want)
		}
	}
}
