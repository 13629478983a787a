package binding

import (
	"testing"

	"github.com/atlekbai/entityql/internal/schema"
	"github.com/atlekbai/entityql/internal/schema/schematest"
)

func bindAttr(t *testing.T, s *schema.Schema, alias, typeName, attr string) AliasBinding {
	t.Helper()
	typ := s.Type(typeName)
	a, ok := s.FindAttribute(typ.Ref(), attr)
	if !ok {
		t.Fatalf("%s.%s not found", typeName, attr)
	}
	return AliasBinding{Alias: alias, Attribute: a, Column: a.Column, Type: typ}
}

func bindID(s *schema.Schema, alias, typeName string) AliasBinding {
	return AliasBinding{Alias: alias, Column: schema.IdentityAttribute, Type: s.Type(typeName)}
}

func aliases(bs []AliasBinding) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.String()
	}
	return out
}

func expectAliases(t *testing.T, got []AliasBinding, want ...string) {
	t.Helper()
	g := aliases(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

// orderBinding mirrors a query over Order joining customer but not owner.
func orderBinding(t *testing.T) *MappingBinding {
	s := schematest.Shop(t)
	pk := bindID(s, "_e", "Order")
	customerPK := bindID(s, "_e1", "Customer")

	customer := &MappingBinding{
		Schema:     s,
		Holder:     s.Type("Customer").Ref(),
		PrimaryKey: &customerPK,
		Aliases: []AliasBinding{
			bindAttr(t, s, "_e1", "Customer", "age"),
			bindAttr(t, s, "_e1", "Customer", "name"),
			bindID(s, "_e2", "PremiumCustomer"),
			bindAttr(t, s, "_e2", "PremiumCustomer", "discount"),
			bindID(s, "_e3", "CorporateCustomer"),
		},
	}
	return &MappingBinding{
		Schema:     s,
		Holder:     s.Type("Order").Ref(),
		PrimaryKey: &pk,
		Aliases: []AliasBinding{
			bindAttr(t, s, "_e", "Order", "number"),
			bindAttr(t, s, "_e", "Order", "customer"),
			bindAttr(t, s, "_e", "Order", "owner"),
			bindAttr(t, s, "_e", "Order", "createdBy"),
		},
		Relations: map[string]*MappingBinding{"customer": customer},
	}
}

func TestResolveLeaf(t *testing.T) {
	m := orderBinding(t)
	expectAliases(t, m.Resolve("number"), "_e.number")
	expectAliases(t, m.Resolve("createdBy"), "_e.created_by")
	expectAliases(t, m.Resolve("id"), "_e.id")
	expectAliases(t, m.Resolve("customer"), "_e.customer_id")
	expectAliases(t, m.Resolve("missing"))
}

func TestResolveNested(t *testing.T) {
	m := orderBinding(t)
	expectAliases(t, m.Resolve("customer.age"), "_e1.age")
	expectAliases(t, m.Resolve("customer.discount"), "_e2.discount")
	expectAliases(t, m.Resolve("customer.id"), "_e1.id", "_e2.id", "_e3.id")
	expectAliases(t, m.Resolve("customer.missing"))
}

func TestResolveIdentityFallback(t *testing.T) {
	s := schematest.Shop(t)
	pk := bindID(s, "_e", "Account")
	m := &MappingBinding{
		Schema:     s,
		Holder:     s.Type("Account").Ref(),
		PrimaryKey: &pk,
		Aliases: []AliasBinding{
			bindAttr(t, s, "_e", "Account", "holder"),
			bindAttr(t, s, "_e", "Account", "auditor"),
		},
	}
	// Audited lives only in the orders table: the key column is enough.
	expectAliases(t, m.Resolve("auditor.id"), "_e.auditor_id")
	// Party has subtypes: without a join the identity cannot be resolved.
	expectAliases(t, m.Resolve("holder.id"))
	// Only the identity falls back.
	expectAliases(t, m.Resolve("auditor.createdBy"))
}

func TestResolveThroughUnjoinedRelation(t *testing.T) {
	m := orderBinding(t)
	expectAliases(t, m.Resolve("owner.name"))
	expectAliases(t, m.Resolve("owner.id"))
}

func TestQualified(t *testing.T) {
	b := AliasBinding{Alias: "_e", Column: `we"ird`}
	if got := b.Qualified(); got != `"_e"."we""ird"` {
		t.Fatalf("unexpected quoting %s", got)
	}
	if b.Name() != "id" {
		t.Fatalf("identity binding should be named id, got %q", b.Name())
	}
}
