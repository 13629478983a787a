package query

import (
	"fmt"
	"strings"

	"github.com/atlekbai/entityql/internal/binding"
	"github.com/atlekbai/entityql/internal/schema"
)

const qAlias = "_e"

// QI is shorthand for schema.QuoteIdent.
func QI(name string) string { return schema.QuoteIdent(name) }

// Alias returns the alias of the root table in all generated SQL.
func Alias() string { return qAlias }

// Identifiers normalizes generated table and column names for a database.
type Identifiers interface {
	Table(name string) string
	Column(name string) string
}

type asIs struct{}

func (asIs) Table(name string) string  { return name }
func (asIs) Column(name string) string { return name }

// aliasFor returns the n-th table alias: _e, _e1, _e2, ...
func aliasFor(n int) string {
	if n == 0 {
		return qAlias
	}
	return fmt.Sprintf("%s%d", qAlias, n)
}

// anchorExpr is the column expression a joined table's identity must equal.
// A relation stored in several subtype tables yields a COALESCE of its keys.
func anchorExpr(keys []binding.AliasBinding) string {
	if len(keys) == 1 {
		return keys[0].Qualified()
	}
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = k.Qualified()
	}
	return "COALESCE(" + strings.Join(cols, ", ") + ")"
}

func childPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
