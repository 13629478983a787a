package schema

// FindAttribute resolves name on the referenced holder: own attributes, then
// attached mixins, then the supertype chain. The first match wins.
func (s *Schema) FindAttribute(ref HolderRef, name string) (*Attribute, bool) {
	if ref.Kind == HolderMixin {
		return s.mixins[ref.Index].Own(name)
	}
	return s.findOnType(s.types[ref.Index], name)
}

func (s *Schema) findOnType(t *Type, name string) (*Attribute, bool) {
	for t != nil {
		if a, ok := t.Own(name); ok {
			return a, true
		}
		for _, mi := range t.mixins {
			if a, ok := s.mixins[mi].Own(name); ok {
				return a, true
			}
		}
		t = s.Supertype(t)
	}
	return nil, false
}

// Attributes returns every attribute resolvable on t in resolution order.
func (s *Schema) Attributes(t *Type) []*Attribute {
	var (
		out  []*Attribute
		seen = make(map[string]bool)
	)
	add := func(attrs []*Attribute) {
		for _, a := range attrs {
			if !seen[a.Name] {
				seen[a.Name] = true
				out = append(out, a)
			}
		}
	}
	for cur := t; cur != nil; cur = s.Supertype(cur) {
		add(cur.Attrs)
		for _, mi := range cur.mixins {
			add(s.mixins[mi].Attrs)
		}
	}
	return out
}

// IsA reports whether t is ancestor or one of its descendants.
func (s *Schema) IsA(t, ancestor *Type) bool {
	for cur := t; cur != nil; cur = s.Supertype(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Descendants returns all transitive subtypes of t, depth first in declaration order.
func (s *Schema) Descendants(t *Type) []*Type {
	var out []*Type
	var walk func(*Type)
	walk = func(cur *Type) {
		for _, si := range cur.subtypes {
			sub := s.types[si]
			out = append(out, sub)
			walk(sub)
		}
	}
	walk(t)
	return out
}

// StoredColumns returns the persisted attributes physically stored in the
// table of the concrete type t: its own and mixed-in attributes plus those of
// abstract ancestors up to the nearest concrete one.
func (s *Schema) StoredColumns(t *Type) []*Attribute {
	var out []*Attribute
	add := func(attrs []*Attribute) {
		for _, a := range attrs {
			if a.Persisted() {
				out = append(out, a)
			}
		}
	}
	for cur := t; cur != nil; cur = s.Supertype(cur) {
		if cur != t && cur.Concrete() {
			break
		}
		add(cur.Attrs)
		for _, mi := range cur.mixins {
			add(s.mixins[mi].Attrs)
		}
	}
	return out
}

// ConcreteAncestors returns the concrete strict ancestors of t, nearest first.
func (s *Schema) ConcreteAncestors(t *Type) []*Type {
	var out []*Type
	for cur := s.Supertype(t); cur != nil; cur = s.Supertype(cur) {
		if cur.Concrete() {
			out = append(out, cur)
		}
	}
	return out
}

// Tables splits the concrete tables that may hold rows of the referenced
// holder into base tables (one row per entity, joined by identity) and variant
// tables (concrete descendants, present only for some rows).
func (s *Schema) Tables(ref HolderRef) (base, variants []*Type) {
	if ref.Kind == HolderMixin {
		seen := make(map[*Type]bool)
		for _, t := range s.MixedInto(s.mixins[ref.Index]) {
			for _, c := range append([]*Type{t}, s.Descendants(t)...) {
				if c.Concrete() && !seen[c] {
					seen[c] = true
					variants = append(variants, c)
				}
			}
		}
		return nil, variants
	}

	t := s.types[ref.Index]
	ancestors := s.ConcreteAncestors(t)
	for i := len(ancestors) - 1; i >= 0; i-- {
		base = append(base, ancestors[i])
	}
	if t.Concrete() {
		base = append(base, t)
	}
	for _, d := range s.Descendants(t) {
		if d.Concrete() {
			variants = append(variants, d)
		}
	}
	return base, variants
}

// Polymorphic reports whether rows of the referenced holder may live in more
// than one shape of table: a Type with subtypes, or a Mixin not attached to
// exactly one concrete table.
func (s *Schema) Polymorphic(ref HolderRef) bool {
	if ref.Kind == HolderMixin {
		_, variants := s.Tables(ref)
		return len(variants) != 1
	}
	return len(s.types[ref.Index].subtypes) > 0
}
