package domain

import "testing"

func TestDefaultCatalogIsConsistent(t *testing.T) {
	catalog := DefaultCatalog()

	if catalog.Version() != CatalogVersion {
		t.Fatalf("expected version %d, got %d", CatalogVersion, catalog.Version())
	}
	if !catalog.Has(PermTicketsView) || catalog.Has("tickets_teleport") {
		t.Fatalf("unexpected membership answers")
	}

	total := 0
	for _, perms := range catalog.ByCategory() {
		total += len(perms)
	}
	if total != len(catalog.All()) {
		t.Fatalf("categories cover %d permissions, catalog has %d", total, len(catalog.All()))
	}

	for _, tpl := range SystemTemplates() {
		if unknown := catalog.Unknown(tpl.Permissions); len(unknown) > 0 {
			t.Fatalf("template %s references unknown permissions %v", tpl.Tag, unknown)
		}
	}
}

func TestNewCatalogKeepsFirstDuplicate(t *testing.T) {
	catalog := NewCatalog(1, []Permission{
		{ID: "a", Label: "first"},
		{ID: " a ", Label: "second"},
		{ID: "", Label: "blank"},
	})

	p, ok := catalog.Get("a")
	if !ok || p.Label != "first" || len(catalog.All()) != 1 {
		t.Fatalf("expected single first definition, got %+v (%d)", p, len(catalog.All()))
	}
}

func TestCatalogAllReturnsCopy(t *testing.T) {
	catalog := DefaultCatalog()
	all := catalog.All()
	all[0].ID = "mutated"

	if catalog.All()[0].ID == "mutated" {
		t.Fatalf("All must not expose internal storage")
	}
}

func TestRoleRefVariants(t *testing.T) {
	system := SystemRef(SystemOperator)
	custom := CustomRef(42)

	if tag, ok := system.System(); !ok || tag != SystemOperator {
		t.Fatalf("expected operator system ref")
	}
	if _, ok := system.Custom(); ok {
		t.Fatalf("system ref must not report a custom id")
	}
	if id, ok := custom.Custom(); !ok || id != 42 {
		t.Fatalf("expected custom id 42")
	}
	if !SystemRef(SystemAdmin).IsSuperuser() || system.IsSuperuser() {
		t.Fatalf("only the admin tag is superuser")
	}
	if !(RoleRef{}).IsZero() {
		t.Fatalf("zero value should reference nothing")
	}
}

func TestRoleClaimRoundTripDoesNotSniffStrings(t *testing.T) {
	for _, ref := range []RoleRef{SystemRef(SystemManager), CustomRef(7), {}} {
		if got := ref.Claim().Ref(); !got.Equal(ref) {
			t.Fatalf("round trip of %s produced %s", ref, got)
		}
	}

	// A numeric-looking tag stays a system reference.
	claim := RoleClaim{Kind: "system", System: "123"}
	if _, ok := claim.Ref().Custom(); ok {
		t.Fatalf("numeric system tag misclassified as custom")
	}
	if !(RoleClaim{Kind: "custom", Custom: 0}).Ref().IsZero() {
		t.Fatalf("non-positive custom id should yield the zero reference")
	}
}

func TestLookupTemplateReturnsIndependentCopy(t *testing.T) {
	tpl, ok := LookupTemplate(SystemViewer)
	if !ok {
		t.Fatalf("viewer template missing")
	}
	tpl.Permissions[0] = "mutated"

	again, _ := LookupTemplate(SystemViewer)
	if again.Permissions[0] == "mutated" {
		t.Fatalf("templates must be immutable")
	}
}

func TestIsSystemTag(t *testing.T) {
	for _, name := range []string{"owner", " Manager ", "Administrator"} {
		if !IsSystemTag(name) {
			t.Fatalf("%q should collide with a template", name)
		}
	}
	if IsSystemTag("Cashier") {
		t.Fatalf("custom name should not collide")
	}
}

func TestOverrideStateCycle(t *testing.T) {
	state := StateOf(nil)
	want := []OverrideState{OverrideGrant, OverrideDeny, OverrideInherit, OverrideGrant}
	for i, expected := range want {
		state = state.Next()
		if state != expected {
			t.Fatalf("step %d: expected %s, got %s", i, expected, state)
		}
	}

	if StateOf(&PermissionOverride{Granted: false}) != OverrideDeny {
		t.Fatalf("explicit deny should report deny")
	}
}

func TestPermissionSetOperations(t *testing.T) {
	set := NewPermissionSet(PermTicketsView, PermBusesView)
	clone := set.Clone()
	clone.Remove(PermBusesView)
	clone.Add(PermRoutesView)

	if !set.Has(PermBusesView) || set.Has(PermRoutesView) {
		t.Fatalf("clone must be independent")
	}
	if set.Equal(clone) {
		t.Fatalf("sets differ")
	}
	sorted := clone.Sorted()
	if len(sorted) != 2 || sorted[0] != PermRoutesView {
		t.Fatalf("unexpected sort order %v", sorted)
	}
}
