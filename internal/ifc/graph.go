package ifc

import (
	"sort"
	"strings"
)

// Kind identifies the shape of an attribute value
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindRef
	KindList
)

// Value is one attribute value of an entity: a scalar kept as raw text,
// a reference to another entity, or an ordered list of values
type Value struct {
	kind Kind
	text string
	ref  int
	list []Value
}

// Null returns the null value ($ or * in a STEP file)
func Null() Value { return Value{} }

// Scalar returns a scalar value holding raw text
func Scalar(text string) Value { return Value{kind: KindScalar, text: text} }

// Ref returns a reference to the entity with the given id
func Ref(id int) Value { return Value{kind: KindRef, ref: id} }

// List returns an ordered list value
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Kind returns the value kind
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the raw scalar text
func (v Value) Text() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	return v.text, true
}

// RefID returns the referenced entity id
func (v Value) RefID() (int, bool) {
	if v.kind != KindRef {
		return 0, false
	}
	return v.ref, true
}

// Items returns the list items
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Texts returns the list items as raw scalar texts. It fails if any item is
// not a scalar.
func (v Value) Texts() ([]string, bool) {
	items, ok := v.Items()
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		text, ok := item.Text()
		if !ok {
			return nil, false
		}
		out = append(out, text)
	}
	return out, true
}

// Entity is one typed node of the graph
type Entity struct {
	ID    int
	Type  string // upper case, e.g. IFCWALL
	Args  []Value
	attrs map[string]Value
}

// NewEntity builds an entity with named attributes. Names are matched
// case-insensitively.
func NewEntity(id int, typeName string, attrs map[string]Value) *Entity {
	e := &Entity{ID: id, Type: strings.ToUpper(typeName), attrs: make(map[string]Value, len(attrs))}
	for name, v := range attrs {
		e.attrs[strings.ToLower(name)] = v
	}
	return e
}

// Attr returns the named attribute
func (e *Entity) Attr(name string) (Value, bool) {
	v, ok := e.attrs[strings.ToLower(name)]
	return v, ok
}

// Is reports whether the entity has the given type name
func (e *Entity) Is(typeName string) bool {
	return e.Type == strings.ToUpper(typeName)
}

// Graph is a read-only entity graph. It is safe for concurrent reads once
// loading has finished.
type Graph struct {
	schema   string
	entities map[int]*Entity
	byType   map[string][]*Entity
}

// NewGraph creates an empty graph for the given schema
func NewGraph(schema string) *Graph {
	return &Graph{
		schema:   schema,
		entities: make(map[int]*Entity),
		byType:   make(map[string][]*Entity),
	}
}

// Add inserts an entity. Entities of a type are kept in id order.
func (g *Graph) Add(e *Entity) {
	g.entities[e.ID] = e
	list := append(g.byType[e.Type], e)
	if n := len(list); n > 1 && list[n-2].ID > e.ID {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	g.byType[e.Type] = list
}

// Schema returns the schema identifier of the loaded file
func (g *Graph) Schema() string { return g.schema }

// Len returns the number of entities
func (g *Graph) Len() int { return len(g.entities) }

// Entity looks up an entity by id
func (g *Graph) Entity(id int) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// OfType returns all entities of the given type in id order
func (g *Graph) OfType(typeName string) []*Entity {
	return g.byType[strings.ToUpper(typeName)]
}

// Deref follows a reference attribute
func (g *Graph) Deref(e *Entity, name string) (*Entity, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.Attr(name)
	if !ok {
		return nil, false
	}
	id, ok := v.RefID()
	if !ok {
		return nil, false
	}
	return g.Entity(id)
}

// DerefList follows a list-of-references attribute. It fails if any item is
// not a resolvable reference.
func (g *Graph) DerefList(e *Entity, name string) ([]*Entity, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.Attr(name)
	if !ok {
		return nil, false
	}
	items, ok := v.Items()
	if !ok {
		return nil, false
	}
	out := make([]*Entity, 0, len(items))
	for _, item := range items {
		id, ok := item.RefID()
		if !ok {
			return nil, false
		}
		ref, ok := g.Entity(id)
		if !ok {
			return nil, false
		}
		out = append(out, ref)
	}
	return out, true
}

// Text reads a scalar attribute as raw text
func (g *Graph) Text(e *Entity, name string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.Attr(name)
	if !ok {
		return "", false
	}
	return v.Text()
}

// Real reads a scalar attribute as a number
func (g *Graph) Real(e *Entity, name string) (float64, bool) {
	text, ok := g.Text(e, name)
	if !ok {
		return 0, false
	}
	f, err := ParseReal(text)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Reals reads a list attribute of numbers, e.g. Coordinates or DirectionRatios
func (g *Graph) Reals(e *Entity, name string) ([]float64, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.Attr(name)
	if !ok {
		return nil, false
	}
	texts, ok := v.Texts()
	if !ok {
		return nil, false
	}
	out := make([]float64, len(texts))
	for i, text := range texts {
		f, err := ParseReal(text)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
