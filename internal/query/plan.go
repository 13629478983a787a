package query

import (
	"fmt"

	"github.com/atlekbai/entityql/internal/binding"
	"github.com/atlekbai/entityql/internal/schema"
)

type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// Join is one table joined into the query.
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	On    string
}

func (j Join) clause() string {
	return fmt.Sprintf("%s %s ON %s", QI(j.Table), QI(j.Alias), j.On)
}

// Plan is the table layout of one query: the root table, its joins and the
// mapping binding over them.
type Plan struct {
	Root  *binding.MappingBinding
	Table string
	Alias string
	Joins []Join
}

// Build plans a query rooted at the concrete type root. required is the
// result of eql.Collect and decides which relations are joined. A nil idents
// keeps names as declared.
//
// Concrete ancestors of root are inner joined by identity, concrete
// descendants left joined by identity. Each joined relation left joins the
// target's tables by foreign key.
func Build(s *schema.Schema, root *schema.Type, required map[string][]string, idents Identifiers) (*Plan, error) {
	if root == nil {
		return nil, fmt.Errorf("plan: %w", schema.ErrUnknownHolder)
	}
	if !root.Concrete() {
		return nil, fmt.Errorf("plan: root type %q is abstract and has no table", root.Name)
	}
	if idents == nil {
		idents = asIs{}
	}
	pl := &planner{s: s, idents: idents, required: required}

	m := pl.level(root.Ref())
	alias := pl.alias()
	pk := pl.identity(alias, root)
	m.PrimaryKey = &pk
	pl.bind(m, alias, root)

	for _, anc := range s.ConcreteAncestors(root) {
		a := pl.alias()
		pl.join(JoinInner, anc, a, pk.Qualified())
		pl.bind(m, a, anc)
	}
	for _, d := range s.Descendants(root) {
		if d.Concrete() {
			pl.variant(m, d, pk.Qualified())
		}
	}
	pl.relations(m, "")

	return &Plan{
		Root:  m,
		Table: idents.Table(root.Table),
		Alias: alias,
		Joins: pl.joins,
	}, nil
}

type planner struct {
	s        *schema.Schema
	idents   Identifiers
	required map[string][]string
	n        int
	joins    []Join
}

func (pl *planner) alias() string {
	a := aliasFor(pl.n)
	pl.n++
	return a
}

func (pl *planner) level(ref schema.HolderRef) *binding.MappingBinding {
	return &binding.MappingBinding{
		Schema:    pl.s,
		Holder:    ref,
		Relations: make(map[string]*binding.MappingBinding),
	}
}

func (pl *planner) identity(alias string, t *schema.Type) binding.AliasBinding {
	return binding.AliasBinding{Alias: alias, Column: pl.idents.Column(schema.IdentityAttribute), Type: t}
}

func (pl *planner) join(kind JoinKind, t *schema.Type, alias, anchor string) {
	on := fmt.Sprintf("%s.%s = %s", QI(alias), QI(pl.idents.Column(schema.IdentityAttribute)), anchor)
	pl.joins = append(pl.joins, Join{Kind: kind, Table: pl.idents.Table(t.Table), Alias: alias, On: on})
}

// bind adds the columns stored in t's table under alias.
func (pl *planner) bind(m *binding.MappingBinding, alias string, t *schema.Type) {
	for _, a := range pl.s.StoredColumns(t) {
		m.Aliases = append(m.Aliases, binding.AliasBinding{
			Alias:     alias,
			Attribute: a,
			Column:    pl.idents.Column(a.Column),
			Type:      t,
		})
	}
}

// variant left joins a table present only for some rows and binds its
// identity alongside its columns.
func (pl *planner) variant(m *binding.MappingBinding, t *schema.Type, anchor string) {
	a := pl.alias()
	pl.join(JoinLeft, t, a, anchor)
	m.Aliases = append(m.Aliases, pl.identity(a, t))
	pl.bind(m, a, t)
}

// target builds the level of a relation whose key is the fk expression.
func (pl *planner) target(ref schema.HolderRef, fk string) *binding.MappingBinding {
	m := pl.level(ref)
	base, variants := pl.s.Tables(ref)
	anchor := fk

	if len(base) > 0 {
		own := base[len(base)-1]
		a := pl.alias()
		pl.join(JoinLeft, own, a, fk)
		pk := pl.identity(a, own)
		m.PrimaryKey = &pk
		pl.bind(m, a, own)
		anchor = pk.Qualified()

		for i := len(base) - 2; i >= 0; i-- {
			a := pl.alias()
			pl.join(JoinLeft, base[i], a, anchor)
			pl.bind(m, a, base[i])
		}
	}
	for _, v := range variants {
		pl.variant(m, v, anchor)
	}
	return m
}

// relations joins every relation of m that the query reaches through. A
// relation reached only for its identity stays unjoined when its target has
// a single table shape; the key column answers for it.
func (pl *planner) relations(m *binding.MappingBinding, prefix string) {
	for _, name := range pl.required[prefix] {
		path := childPrefix(prefix, name)
		below, ok := pl.required[path]
		if !ok {
			continue
		}
		var keys []binding.AliasBinding
		for _, a := range m.Aliases {
			if a.Attribute != nil && a.Attribute.Name == name && a.Attribute.IsRelation() {
				keys = append(keys, a)
			}
		}
		if len(keys) == 0 {
			continue
		}
		target := *keys[0].Attribute.Target
		if len(below) == 1 && below[0] == schema.IdentityAttribute && !pl.s.Polymorphic(target) {
			continue
		}
		sub := pl.target(target, anchorExpr(keys))
		m.Relations[name] = sub
		pl.relations(sub, path)
	}
}
