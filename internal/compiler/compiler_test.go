package compiler_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/entityql/internal/binding"
	"github.com/atlekbai/entityql/internal/compiler"
	"github.com/atlekbai/entityql/internal/eql"
	"github.com/atlekbai/entityql/internal/eql/parser"
	"github.com/atlekbai/entityql/internal/eql/sqlcond"
	"github.com/atlekbai/entityql/internal/mediator"
	"github.com/atlekbai/entityql/internal/schema"
	"github.com/atlekbai/entityql/internal/vendor"
)

var testCache *schema.Cache

func TestMain(m *testing.M) {
	testCache = schema.NewCache()
	if err := testCache.LoadFiles("../schema/testdata/shop.yaml"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const shopDDL = `
CREATE TABLE customer (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, age INTEGER, born TEXT, vip INTEGER);
CREATE TABLE premium_customer (id INTEGER PRIMARY KEY, discount NUMERIC);
CREATE TABLE corporate_customer (id INTEGER PRIMARY KEY, vat_number TEXT);
CREATE TABLE supplier (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, rating INTEGER);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY, number TEXT NOT NULL, total NUMERIC, placed TEXT, ref TEXT,
	secret BLOB, attachment BLOB, meta TEXT, customer_id INTEGER, owner_id INTEGER,
	created_by TEXT, created_at TEXT,
	CONSTRAINT "uq_orders_number" UNIQUE (number)
);
CREATE TABLE account (id INTEGER PRIMARY KEY, login TEXT, holder_id INTEGER, auditor_id INTEGER);

INSERT INTO customer VALUES
	(1, 'Ann', 'ann@example.com', 30, '1995-01-01', 0),
	(2, 'Bob', 'bob@example.com', 45, '1980-05-05', 1),
	(3, 'Cy', NULL, 17, '2008-02-02', 0),
	(4, 'Dee', 'dee@example.com', 70, '1955-03-03', 1);
INSERT INTO premium_customer VALUES (2, 5.5);
INSERT INTO corporate_customer VALUES (3, 'VAT3');
INSERT INTO supplier VALUES (10, 'Sup', 'sup@example.com', 5);
INSERT INTO orders (id, number, total, customer_id, owner_id, created_by) VALUES
	(100, 'A-1', 10.5, 1, 10, 'sys'),
	(101, 'A-2', 99, 2, 2, 'sys'),
	(102, 'A-3', NULL, 3, NULL, 'ann'),
	(103, 'A-4', 20, NULL, 1, 'sys');
INSERT INTO account VALUES (200, 'ann', 1, 100), (201, 'sup', 10, NULL);`

func shopDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := vendor.SQLite().Open(context.Background(), ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(shopDDL)
	require.NoError(t, err)
	return db
}

func TestCompilePostgres(t *testing.T) {
	c := compiler.New(testCache)
	res, err := c.Compile(context.Background(), compiler.Request{
		Schema: "shop",
		Entity: "Customer",
		Query:  "age >= ?",
		Args:   []any{18},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "_e"."id" FROM "customer" "_e"`+
		` LEFT JOIN "premium_customer" "_e1" ON "_e1"."id" = "_e"."id"`+
		` LEFT JOIN "corporate_customer" "_e2" ON "_e2"."id" = "_e"."id"`+
		` WHERE "_e"."age" >= $1`, res.SQL)
	assert.Equal(t, []any{int64(18)}, res.Args)
	assert.Equal(t, map[string][]string{"": {"age"}}, res.Required)
}

func TestCompileCountMySQL(t *testing.T) {
	c := compiler.New(testCache, compiler.WithDialect(vendor.MySQL()))
	res, err := c.Compile(context.Background(), compiler.Request{
		Schema: "shop",
		Entity: "Account",
		Query:  "auditor.id == ?",
		Args:   []any{"100"},
		Count:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT count(*) FROM "account" "_e" WHERE "_e"."auditor_id" = ?`, res.SQL)
	assert.Equal(t, []any{int64(100)}, res.Args)
}

func TestCompileIsDeterministic(t *testing.T) {
	c := compiler.New(testCache)
	req := compiler.Request{
		Schema: "shop",
		Entity: "Order",
		Query:  "customer.name == ? OR owner TYPED ? AND !total INRANGE ?,?",
		Args:   []any{"Ann", "Supplier", 1, 50},
	}
	a, err := c.Compile(context.Background(), req)
	require.NoError(t, err)
	b, err := c.Compile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.SQL, b.SQL)
	assert.Equal(t, a.Args, b.Args)
	assert.Equal(t, a.Chain.String(), b.Chain.String())
}

func TestCompileErrors(t *testing.T) {
	c := compiler.New(testCache)
	tests := []struct {
		name   string
		req    compiler.Request
		target error
	}{
		{"unknown schema", compiler.Request{Schema: "zoo", Entity: "Customer"}, compiler.ErrUnknownSchema},
		{"unknown entity", compiler.Request{Schema: "shop", Entity: "Unicorn"}, schema.ErrUnknownHolder},
		{"unresolved path", compiler.Request{Schema: "shop", Entity: "Customer", Query: "shoe == ?", Args: []any{1}}, binding.ErrUnresolved},
		{"bad value", compiler.Request{Schema: "shop", Entity: "Customer", Query: "age == ?", Args: []any{"old"}}, mediator.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, compiler.IsUserError(err))
		})
	}

	_, err := c.Compile(context.Background(), compiler.Request{Schema: "shop", Entity: "Customer", Query: "age ~ ?", Args: []any{1}})
	assert.True(t, eql.IsParseError(err))
	assert.True(t, compiler.IsUserError(err))
}

func TestCompileWithoutNulls(t *testing.T) {
	reg := parser.DefaultRegistry()
	reg.Register(parser.Equal().WithAllowNull(false))
	c := compiler.New(testCache, compiler.WithHandlers(reg))

	_, err := c.Compile(context.Background(), compiler.Request{Schema: "shop", Entity: "Customer", Query: "name == ?", Args: []any{nil}})
	assert.True(t, eql.IsParseError(err))
}

func TestCompileNullOrderingIsRejected(t *testing.T) {
	reg := parser.DefaultRegistry()
	reg.Register(parser.Greater().WithAllowNull(true))
	c := compiler.New(testCache, compiler.WithHandlers(reg))

	_, err := c.Compile(context.Background(), compiler.Request{Schema: "shop", Entity: "Customer", Query: "age > ?", Args: []any{nil}})
	require.ErrorIs(t, err, sqlcond.ErrNullOrdering)
	assert.True(t, compiler.IsUserError(err))
}

func TestCountAgainstSQLite(t *testing.T) {
	db := shopDB(t)
	c := compiler.New(testCache, compiler.WithDialect(vendor.SQLite()))
	tx := vendor.NewSQLTemplate(db)

	tests := []struct {
		entity string
		query  string
		args   []any
		want   int64
	}{
		{"Customer", "age >= ?", []any{18}, 3},
		{"Customer", "!age >= ?", []any{18}, 1},
		{"Customer", "age INRANGE ?,?", []any{18, 65}, 2},
		{"Customer", "!age INRANGE ?,?", []any{18, 65}, 2},
		{"Customer", "age INRANGE ?,?", []any{nil, 30}, 2},
		{"Customer", "email == ?", []any{nil}, 1},
		{"Customer", "email != ?", []any{nil}, 3},
		{"Customer", "", nil, 4},
		{"Order", "customer TYPED ?", []any{"PremiumCustomer"}, 1},
		{"Order", "customer TYPED ?", []any{"Customer"}, 3},
		{"Order", "owner TYPED ?", []any{"Supplier"}, 1},
		{"Order", "owner TYPED ?", []any{"Customer"}, 2},
		{"Order", "total > ? AND customer.vip == ? OR number == ?", []any{15, true, "A-1"}, 2},
		{"Order", "customer.age > ?", []any{40}, 1},
		{"Order", "? < customer.age", []any{40}, 1},
		{"Account", "holder.name == ?", []any{"Sup"}, 1},
		{"Account", "auditor.id == ?", []any{100}, 1},
		{"PremiumCustomer", "discount >= ? AND age > ?", []any{"5", 40}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.entity+" "+tt.query, func(t *testing.T) {
			n, err := c.Count(context.Background(), tx, compiler.Request{
				Schema: "shop",
				Entity: tt.entity,
				Query:  tt.query,
				Args:   tt.args,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCountClassifiesDriverErrors(t *testing.T) {
	db, err := vendor.SQLite().Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	c := compiler.New(testCache, compiler.WithDialect(vendor.SQLite()))
	_, err = c.Count(context.Background(), vendor.NewSQLTemplate(db), compiler.Request{Schema: "shop", Entity: "Supplier"})
	var se *vendor.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "sqlite", se.Vendor)
	assert.False(t, compiler.IsUserError(err))
}
