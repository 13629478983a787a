// Package schematest provides a shared schema fixture for tests.
package schematest

import (
	"testing"

	"github.com/atlekbai/entityql/internal/schema"
)

// ShopBuilder declares the shop fixture:
//
//	Party (abstract): name, email
//	├── Customer: age, born, vip
//	│   ├── PremiumCustomer: discount
//	│   └── CorporateCustomer: vatNumber
//	└── Supplier: rating
//	Order (+Audited): number, total, placed, ref, secret, attachment, meta, customer -> Customer, owner -> Party
//	Account: login, holder -> Party, auditor -> Audited
//	Audited (mixin): createdBy, createdAt
func ShopBuilder() *schema.Builder {
	b := schema.NewBuilder("shop")

	b.Mixin("Audited").
		Scalar("createdBy", schema.ValueString).
		Scalar("createdAt", schema.ValueTimestamp)

	b.Type("Party").Abstract().
		Scalar("name", schema.ValueString, schema.Required()).
		Scalar("email", schema.ValueString)
	b.Type("Customer").Extends("Party").
		Scalar("age", schema.ValueInteger).
		Scalar("born", schema.ValueDate).
		Scalar("vip", schema.ValueBoolean)
	b.Type("PremiumCustomer").Extends("Customer").
		Scalar("discount", schema.ValueDecimal)
	b.Type("CorporateCustomer").Extends("Customer").
		Scalar("vatNumber", schema.ValueString)
	b.Type("Supplier").Extends("Party").
		Scalar("rating", schema.ValueInteger)

	b.Type("Order").With("Audited").Table("orders").
		Scalar("number", schema.ValueString, schema.Required()).
		Scalar("total", schema.ValueDecimal).
		Scalar("placed", schema.ValueTimestamp).
		Scalar("ref", schema.ValueUUID).
		Scalar("secret", schema.ValueEncrypted).
		Binary("attachment").
		JSON("meta").
		Computed("lineCount", schema.ValueInteger).
		Relation("customer", "Customer").
		Relation("owner", "Party")

	b.Type("Account").
		Scalar("login", schema.ValueString).
		Relation("holder", "Party").
		Relation("auditor", "Audited")

	b.Unique("", "Order", "number")
	b.Unique("uq_customer_email", "Customer", "email")
	return b
}

// Shop builds the shop fixture or fails the test.
func Shop(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := ShopBuilder().Build()
	if err != nil {
		t.Fatalf("build shop schema: %v", err)
	}
	return s
}
