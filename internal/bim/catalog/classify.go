package catalog

import (
	"strings"

	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

// typeTags lists the entity types bucketed into each role
var typeTags = map[model.Role][]string{
	model.RoleSite:   {"IFCSITE"},
	model.RoleArea:   {"IFCSLAB", "IFCSLABSTANDARDCASE", "IFCSLABELEMENTEDCASE"},
	model.RoleWall:   {"IFCWALL", "IFCWALLSTANDARDCASE", "IFCWALLELEMENTEDCASE"},
	model.RoleColumn: {"IFCCOLUMN", "IFCCOLUMNSTANDARDCASE"},
	model.RoleDoor:   {"IFCDOOR", "IFCDOORSTANDARDCASE"},
	model.RoleWindow: {"IFCWINDOW", "IFCWINDOWSTANDARDCASE"},
	model.RoleStair:  {"IFCSTAIR", "IFCSTAIRFLIGHT"},
}

// ElementRoles are the roles mapped to output ways, in output order
var ElementRoles = []model.Role{
	model.RoleArea,
	model.RoleWall,
	model.RoleColumn,
	model.RoleDoor,
	model.RoleWindow,
	model.RoleStair,
}

// Element is one classified entity with its role
type Element struct {
	Role   model.Role
	Entity *ifc.Entity
}

// Classified holds the entities of a model bucketed by role
type Classified struct {
	Site  *ifc.Entity
	roles map[model.Role][]*ifc.Entity
}

// Classify buckets the entities of g by role. Slabs with predefined type
// ROOF are not floor areas and are left out. A stair without a shape of its
// own only aggregates its flights, so it is left out too.
func Classify(g *ifc.Graph) *Classified {
	c := &Classified{roles: make(map[model.Role][]*ifc.Entity)}

	if sites := collect(g, model.RoleSite); len(sites) > 0 {
		c.Site = sites[0]
	}

	for _, role := range ElementRoles {
		for _, e := range collect(g, role) {
			if role == model.RoleArea && isRoof(g, e) {
				continue
			}
			if role == model.RoleStair && isBareAggregate(e) {
				continue
			}
			c.roles[role] = append(c.roles[role], e)
		}
	}
	return c
}

func collect(g *ifc.Graph, role model.Role) []*ifc.Entity {
	var out []*ifc.Entity
	for _, tag := range typeTags[role] {
		out = append(out, g.OfType(tag)...)
	}
	return out
}

func isRoof(g *ifc.Graph, e *ifc.Entity) bool {
	t, ok := g.Text(e, "PredefinedType")
	return ok && strings.EqualFold(t, ".ROOF.")
}

func isBareAggregate(e *ifc.Entity) bool {
	if !e.Is("IFCSTAIR") {
		return false
	}
	v, ok := e.Attr("Representation")
	return !ok || v.IsNull()
}

// Of returns the entities of one role
func (c *Classified) Of(role model.Role) []*ifc.Entity {
	return c.roles[role]
}

// Elements returns every mapped element, grouped by role in ElementRoles
// order. Within a role entities follow the type list, then id order.
func (c *Classified) Elements() []Element {
	out := make([]Element, 0, c.Size())
	for _, role := range ElementRoles {
		for _, e := range c.roles[role] {
			out = append(out, Element{Role: role, Entity: e})
		}
	}
	return out
}

// Size returns the number of mapped elements
func (c *Classified) Size() int {
	n := 0
	for _, role := range ElementRoles {
		n += len(c.roles[role])
	}
	return n
}
