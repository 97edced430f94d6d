package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"bim2osm/internal/model"

	"github.com/paulmach/osm"
	"gopkg.in/yaml.v3"
)

//go:embed default_tags.yaml
var defaultTagsYAML []byte

// TagCatalog maps element roles to the OSM tags of their ways
type TagCatalog struct {
	tags map[model.Role]osm.Tags
}

// DefaultTagCatalog returns the built-in catalog
func DefaultTagCatalog() *TagCatalog {
	c, err := ParseTagCatalog(defaultTagsYAML)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded tag catalog: %v", err))
	}
	return c
}

// LoadTagCatalog reads a catalog from a YAML file
func LoadTagCatalog(path string) (*TagCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tag catalog: %w", err)
	}
	return ParseTagCatalog(data)
}

// ParseTagCatalog parses a catalog of the form role -> key -> value
func ParseTagCatalog(data []byte) (*TagCatalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing tag catalog YAML: %w", err)
	}

	c := &TagCatalog{tags: make(map[model.Role]osm.Tags, len(raw))}
	for name, kv := range raw {
		role, ok := model.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("unknown role %q in tag catalog", name)
		}
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		tags := make(osm.Tags, 0, len(keys))
		for _, k := range keys {
			tags = append(tags, osm.Tag{Key: k, Value: kv[k]})
		}
		c.tags[role] = tags
	}
	return c, nil
}

// Tags returns a copy of the tags of a role. Unknown roles have no tags.
func (c *TagCatalog) Tags(role model.Role) osm.Tags {
	tags := c.tags[role]
	out := make(osm.Tags, len(tags))
	copy(out, tags)
	return out
}
