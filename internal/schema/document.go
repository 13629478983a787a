package schema

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a schema.
type Document struct {
	Name     string      `yaml:"name"`
	Identity ValueType   `yaml:"identity"`
	Mixins   []HolderDoc `yaml:"mixins"`
	Types    []HolderDoc `yaml:"types"`
	Unique   []UniqueDoc `yaml:"unique"`
}

type HolderDoc struct {
	Name       string         `yaml:"name"`
	Extends    string         `yaml:"extends"`
	Mixins     []string       `yaml:"mixins"`
	Abstract   bool           `yaml:"abstract"`
	Table      string         `yaml:"table"`
	Attributes []AttributeDoc `yaml:"attributes"`
}

type AttributeDoc struct {
	Name     string    `yaml:"name"`
	Kind     AttrKind  `yaml:"kind"`
	Type     ValueType `yaml:"type"`
	Relation string    `yaml:"relation"`
	Column   string    `yaml:"column"`
	Virtual  bool      `yaml:"virtual"`
	Indexed  *bool     `yaml:"indexed"`
	Required bool      `yaml:"required"`
}

type UniqueDoc struct {
	Name       string   `yaml:"name"`
	Holder     string   `yaml:"holder"`
	Attributes []string `yaml:"attributes"`
}

// LoadFile reads and builds a schema from a YAML file.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML schema document and builds it.
func Decode(r io.Reader) (*Schema, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return doc.Build()
}

// Build turns the document into a Schema.
func (d *Document) Build() (*Schema, error) {
	b := NewBuilder(d.Name)
	if d.Identity != "" {
		b.IdentityType(ValueType(strings.ToUpper(string(d.Identity))))
	}
	for _, md := range d.Mixins {
		mb := b.Mixin(md.Name)
		for _, ad := range md.Attributes {
			if err := ad.declare(&mb.holderDecl); err != nil {
				return nil, fmt.Errorf("mixin %s: %w", md.Name, err)
			}
		}
	}
	for _, td := range d.Types {
		tb := b.Type(td.Name).Extends(td.Extends).With(td.Mixins...).Table(td.Table)
		if td.Abstract {
			tb.Abstract()
		}
		for _, ad := range td.Attributes {
			if err := ad.declare(&tb.holderDecl); err != nil {
				return nil, fmt.Errorf("type %s: %w", td.Name, err)
			}
		}
	}
	for _, u := range d.Unique {
		b.Unique(u.Name, u.Holder, u.Attributes...)
	}
	return b.Build()
}

func (ad AttributeDoc) declare(h *holderDecl) error {
	kind := AttrKind(strings.ToUpper(string(ad.Kind)))
	vt := ValueType(strings.ToUpper(string(ad.Type)))
	if kind == "" {
		kind = AttrScalar
		if ad.Relation != "" {
			kind = AttrRelation
		}
	}

	var opts []AttrOption
	if ad.Column != "" {
		opts = append(opts, WithColumn(ad.Column))
	}
	if ad.Virtual {
		opts = append(opts, Virtual())
	}
	if ad.Indexed != nil {
		opts = append(opts, Indexed(*ad.Indexed))
	}
	if ad.Required {
		opts = append(opts, Required())
	}

	switch kind {
	case AttrScalar:
		if vt == "" {
			vt = ValueString
		}
		h.add(ad.Name, AttrScalar, vt, "", opts)
	case AttrBinary:
		h.add(ad.Name, AttrBinary, ValueBinary, "", opts)
	case AttrJSON:
		h.add(ad.Name, AttrJSON, ValueJSON, "", opts)
	case AttrComputed:
		h.add(ad.Name, AttrComputed, vt, "", append(opts, Virtual()))
	case AttrRelation:
		if ad.Relation == "" {
			return fmt.Errorf("relation attribute %q has no target", ad.Name)
		}
		h.add(ad.Name, AttrRelation, "", ad.Relation, opts)
	default:
		return fmt.Errorf("attribute %q: unknown kind %q", ad.Name, ad.Kind)
	}
	return nil
}
