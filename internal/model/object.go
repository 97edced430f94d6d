package model

import (
	"math"
	"strings"

	"bim2osm/internal/geomath"
)

// Role is the mapped role of a building element
type Role int

const (
	RoleSite Role = iota
	RoleArea
	RoleWall
	RoleColumn
	RoleDoor
	RoleWindow
	RoleStair
)

var roleNames = map[Role]string{
	RoleSite:   "site",
	RoleArea:   "area",
	RoleWall:   "wall",
	RoleColumn: "column",
	RoleDoor:   "door",
	RoleWindow: "window",
	RoleStair:  "stair",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole maps a role name back to its Role
func ParseRole(name string) (Role, bool) {
	for r, n := range roleNames {
		if strings.EqualFold(n, name) {
			return r, true
		}
	}
	return 0, false
}

// Level is the integer building level of an object
type Level int

// Unassigned marks an object whose storey could not be matched
const Unassigned Level = math.MinInt32

// PreparedObject is one loop of an element, rotated and translated into the
// building's local frame but not yet georeferenced
type PreparedObject struct {
	EntityID int
	Role     Role
	Points   []geomath.Point3D
}

// GeoObject is a prepared object with geodetic coordinates and a level
type GeoObject struct {
	EntityID int
	Role     Role
	Points   []geomath.LatLon
	Level    Level
}
