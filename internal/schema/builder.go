package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ettle/strcase"
	"github.com/google/uuid"
)

var (
	ErrUnknownHolder      = errors.New("unknown type or mixin")
	ErrDuplicateHolder    = errors.New("duplicate type or mixin")
	ErrAmbiguousAttribute = errors.New("ambiguous attribute")
	ErrInheritanceCycle   = errors.New("inheritance cycle")
	ErrInvalidConstraint  = errors.New("invalid unique constraint")
	ErrReservedName       = errors.New("reserved attribute name")
)

// reservedNames separate statements in a query and cannot name attributes.
var reservedNames = []string{"and", "or"}

func reserved(name string) bool {
	for _, r := range reservedNames {
		if strings.EqualFold(name, r) {
			return true
		}
	}
	return false
}

// AttrOption adjusts an attribute while it is being declared.
type AttrOption func(*attrDecl)

type attrDecl struct {
	attr   Attribute
	target string
}

// WithColumn overrides the physical column name.
func WithColumn(col string) AttrOption {
	return func(d *attrDecl) { d.attr.Column = col }
}

// Virtual marks the attribute as computed and not persisted.
func Virtual() AttrOption {
	return func(d *attrDecl) { d.attr.Virtual = true }
}

// Indexed sets the indexed flag.
func Indexed(on bool) AttrOption {
	return func(d *attrDecl) { d.attr.Indexed = on }
}

// Required marks the attribute as not nullable.
func Required() AttrOption {
	return func(d *attrDecl) { d.attr.Required = true }
}

type holderDecl struct {
	name  string
	attrs []*attrDecl
}

func (h *holderDecl) add(name string, kind AttrKind, vt ValueType, target string, opts []AttrOption) {
	d := &attrDecl{
		attr:   Attribute{Name: name, Kind: kind, ValueType: vt, Indexed: kind == AttrRelation},
		target: target,
	}
	for _, opt := range opts {
		opt(d)
	}
	h.attrs = append(h.attrs, d)
}

// TypeBuilder declares one Type.
type TypeBuilder struct {
	holderDecl
	super    string
	mixins   []string
	table    string
	abstract bool
}

// Extends sets the supertype.
func (b *TypeBuilder) Extends(name string) *TypeBuilder { b.super = name; return b }

// With attaches mixins.
func (b *TypeBuilder) With(mixins ...string) *TypeBuilder {
	b.mixins = append(b.mixins, mixins...)
	return b
}

// Abstract marks the type as having no table of its own.
func (b *TypeBuilder) Abstract() *TypeBuilder { b.abstract = true; return b }

// Table overrides the table name.
func (b *TypeBuilder) Table(name string) *TypeBuilder { b.table = name; return b }

func (b *TypeBuilder) Scalar(name string, vt ValueType, opts ...AttrOption) *TypeBuilder {
	b.add(name, AttrScalar, vt, "", opts)
	return b
}

func (b *TypeBuilder) Binary(name string, opts ...AttrOption) *TypeBuilder {
	b.add(name, AttrBinary, ValueBinary, "", opts)
	return b
}

func (b *TypeBuilder) JSON(name string, opts ...AttrOption) *TypeBuilder {
	b.add(name, AttrJSON, ValueJSON, "", opts)
	return b
}

func (b *TypeBuilder) Computed(name string, vt ValueType, opts ...AttrOption) *TypeBuilder {
	b.add(name, AttrComputed, vt, "", append(opts, Virtual()))
	return b
}

// Relation declares a relation-to-one whose target is a Type or Mixin name.
func (b *TypeBuilder) Relation(name, target string, opts ...AttrOption) *TypeBuilder {
	b.add(name, AttrRelation, "", target, opts)
	return b
}

// MixinBuilder declares one Mixin.
type MixinBuilder struct {
	holderDecl
}

func (b *MixinBuilder) Scalar(name string, vt ValueType, opts ...AttrOption) *MixinBuilder {
	b.add(name, AttrScalar, vt, "", opts)
	return b
}

func (b *MixinBuilder) Binary(name string, opts ...AttrOption) *MixinBuilder {
	b.add(name, AttrBinary, ValueBinary, "", opts)
	return b
}

func (b *MixinBuilder) JSON(name string, opts ...AttrOption) *MixinBuilder {
	b.add(name, AttrJSON, ValueJSON, "", opts)
	return b
}

func (b *MixinBuilder) Computed(name string, vt ValueType, opts ...AttrOption) *MixinBuilder {
	b.add(name, AttrComputed, vt, "", append(opts, Virtual()))
	return b
}

func (b *MixinBuilder) Relation(name, target string, opts ...AttrOption) *MixinBuilder {
	b.add(name, AttrRelation, "", target, opts)
	return b
}

type uniqueDecl struct {
	name   string
	holder string
	attrs  []string
}

// Builder assembles a Schema. It is not safe for concurrent use.
type Builder struct {
	name     string
	identity ValueType
	types    []*TypeBuilder
	mixins   []*MixinBuilder
	uniques  []uniqueDecl
}

// NewBuilder starts a schema with the given name. Identities default to integers.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, identity: ValueInteger}
}

// IdentityType sets the value type of every `id` column.
func (b *Builder) IdentityType(vt ValueType) *Builder { b.identity = vt; return b }

// Type declares a type.
func (b *Builder) Type(name string) *TypeBuilder {
	tb := &TypeBuilder{holderDecl: holderDecl{name: name}}
	b.types = append(b.types, tb)
	return tb
}

// Mixin declares a mixin.
func (b *Builder) Mixin(name string) *MixinBuilder {
	mb := &MixinBuilder{holderDecl: holderDecl{name: name}}
	b.mixins = append(b.mixins, mb)
	return mb
}

// Unique declares a unique constraint. An empty name is derived from the holder and attributes.
func (b *Builder) Unique(name, holder string, attrs ...string) *Builder {
	b.uniques = append(b.uniques, uniqueDecl{name: name, holder: holder, attrs: attrs})
	return b
}

// Build validates the declarations and returns the immutable Schema.
func (b *Builder) Build() (*Schema, error) {
	s := &Schema{
		Name:         b.name,
		IdentityType: b.identity,
		typeByName:   make(map[string]int),
		mixinByName:  make(map[string]int),
	}
	var errs []error

	for _, mb := range b.mixins {
		if _, dup := s.mixinByName[mb.name]; dup {
			errs = append(errs, fmt.Errorf("mixin %q: %w", mb.name, ErrDuplicateHolder))
			continue
		}
		m := &Mixin{ID: b.id("mixin", mb.name), Name: mb.name, index: len(s.mixins), byName: make(map[string]*Attribute)}
		s.mixinByName[mb.name] = m.index
		s.mixins = append(s.mixins, m)
	}
	for _, tb := range b.types {
		_, dupT := s.typeByName[tb.name]
		_, dupM := s.mixinByName[tb.name]
		if dupT || dupM {
			errs = append(errs, fmt.Errorf("type %q: %w", tb.name, ErrDuplicateHolder))
			continue
		}
		table := tb.table
		if table == "" && !tb.abstract {
			table = strcase.ToSnake(tb.name)
		}
		t := &Type{
			ID:       b.id("type", tb.name),
			Name:     tb.name,
			Table:    table,
			Abstract: tb.abstract,
			index:    len(s.types),
			super:    -1,
			byName:   make(map[string]*Attribute),
		}
		s.typeByName[tb.name] = t.index
		s.types = append(s.types, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, tb := range b.types {
		t := s.Type(tb.name)
		if tb.super != "" {
			sup := s.Type(tb.super)
			if sup == nil {
				errs = append(errs, fmt.Errorf("type %q extends %q: %w", tb.name, tb.super, ErrUnknownHolder))
			} else {
				t.super = sup.index
				sup.subtypes = append(sup.subtypes, t.index)
			}
		}
		for _, mn := range tb.mixins {
			m := s.Mixin(mn)
			if m == nil {
				errs = append(errs, fmt.Errorf("type %q mixes in %q: %w", tb.name, mn, ErrUnknownHolder))
				continue
			}
			t.mixins = append(t.mixins, m.index)
			m.mixedInto = append(m.mixedInto, t.index)
		}
		errs = append(errs, b.declareAttrs(s, t.Ref(), &tb.holderDecl)...)
	}
	for _, mb := range b.mixins {
		errs = append(errs, b.declareAttrs(s, s.Mixin(mb.name).Ref(), &mb.holderDecl)...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, t := range s.types {
		if err := s.checkCycle(t); err != nil {
			return nil, err
		}
	}
	for _, t := range s.types {
		errs = append(errs, s.checkShadowing(t)...)
	}
	for _, u := range b.uniques {
		c, err := s.uniqueConstraint(u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.constraints = append(s.constraints, c)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (b *Builder) id(kind, name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.name+"/"+kind+"/"+name))
}

func (b *Builder) declareAttrs(s *Schema, ref HolderRef, h *holderDecl) []error {
	var errs []error
	holderName := s.HolderName(ref)
	for _, d := range h.attrs {
		a := d.attr
		if a.Name == IdentityAttribute {
			errs = append(errs, fmt.Errorf("%s.%s: identity attribute is implicit", holderName, a.Name))
			continue
		}
		if reserved(a.Name) {
			errs = append(errs, fmt.Errorf("%s.%s: %w", holderName, a.Name, ErrReservedName))
			continue
		}
		a.ID = b.id("attr", holderName+"."+a.Name)
		a.holder = ref
		if a.Kind == AttrRelation {
			switch {
			case s.Type(d.target) != nil:
				a.Target = &HolderRef{Kind: HolderType, Index: s.Type(d.target).index}
			case s.Mixin(d.target) != nil:
				a.Target = &HolderRef{Kind: HolderMixin, Index: s.Mixin(d.target).index}
			default:
				errs = append(errs, fmt.Errorf("%s.%s targets %q: %w", holderName, a.Name, d.target, ErrUnknownHolder))
				continue
			}
			a.ValueType = s.IdentityType
		}
		if a.Column == "" && a.Persisted() {
			a.Column = strcase.ToSnake(a.Name)
			if a.Kind == AttrRelation {
				a.Column += "_id"
			}
		}

		attr := &a
		if ref.Kind == HolderMixin {
			m := s.mixins[ref.Index]
			if _, dup := m.byName[a.Name]; dup {
				errs = append(errs, fmt.Errorf("%s.%s declared twice: %w", holderName, a.Name, ErrAmbiguousAttribute))
				continue
			}
			m.Attrs = append(m.Attrs, attr)
			m.byName[a.Name] = attr
		} else {
			t := s.types[ref.Index]
			if _, dup := t.byName[a.Name]; dup {
				errs = append(errs, fmt.Errorf("%s.%s declared twice: %w", holderName, a.Name, ErrAmbiguousAttribute))
				continue
			}
			t.Attrs = append(t.Attrs, attr)
			t.byName[a.Name] = attr
		}
	}
	return errs
}

func (s *Schema) checkCycle(t *Type) error {
	seen := map[*Type]bool{}
	for cur := t; cur != nil; cur = s.Supertype(cur) {
		if seen[cur] {
			return fmt.Errorf("type %q: %w", t.Name, ErrInheritanceCycle)
		}
		seen[cur] = true
	}
	return nil
}

// checkShadowing rejects attribute names reachable through more than one
// declaration on t's resolution path.
func (s *Schema) checkShadowing(t *Type) []error {
	var errs []error
	origin := make(map[string]string)
	note := func(where string, attrs []*Attribute) {
		for _, a := range attrs {
			if prev, ok := origin[a.Name]; ok && prev != where {
				errs = append(errs, fmt.Errorf("type %q: attribute %q declared on both %s and %s: %w",
					t.Name, a.Name, prev, where, ErrAmbiguousAttribute))
				continue
			}
			origin[a.Name] = where
		}
	}
	for cur := t; cur != nil; cur = s.Supertype(cur) {
		note(cur.Name, cur.Attrs)
		for _, mi := range cur.mixins {
			note(s.mixins[mi].Name, s.mixins[mi].Attrs)
		}
	}
	return errs
}

func (s *Schema) uniqueConstraint(u uniqueDecl) (*UniqueConstraint, error) {
	var ref HolderRef
	var prefix string
	switch {
	case s.Type(u.holder) != nil:
		t := s.Type(u.holder)
		ref, prefix = t.Ref(), t.Table
		if prefix == "" {
			prefix = strcase.ToSnake(t.Name)
		}
	case s.Mixin(u.holder) != nil:
		ref, prefix = s.Mixin(u.holder).Ref(), strcase.ToSnake(u.holder)
	default:
		return nil, fmt.Errorf("unique %q on %q: %w", u.name, u.holder, ErrUnknownHolder)
	}
	if len(u.attrs) == 0 {
		return nil, fmt.Errorf("unique on %q has no attributes: %w", u.holder, ErrInvalidConstraint)
	}
	cols := make([]string, len(u.attrs))
	for i, name := range u.attrs {
		a, ok := s.FindAttribute(ref, name)
		if !ok || !a.Persisted() {
			return nil, fmt.Errorf("unique on %q: attribute %q does not resolve to a column: %w",
				u.holder, name, ErrInvalidConstraint)
		}
		cols[i] = a.Column
	}
	name := u.name
	if name == "" {
		name = "uq_" + prefix + "_" + strings.Join(cols, "_")
	}
	return &UniqueConstraint{Name: name, Holder: ref, Attributes: u.attrs}, nil
}
