package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

func parse(t *testing.T, records string) *ifc.Graph {
	t.Helper()
	data := "ISO-10303-21;\nHEADER;\nFILE_SCHEMA(('IFC4'));\nENDSEC;\nDATA;\n" + records + "\nENDSEC;\nEND-ISO-10303-21;\n"
	g, err := ifc.ParseSTEP(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseSTEP failed: %v", err)
	}
	return g
}

func TestClassify(t *testing.T) {
	g := parse(t, `#10=IFCSITE('s',$,'Site',$,$,$,$,$,.ELEMENT.,$,$,$,$,$);
#11=IFCSITE('s2',$,'Second site',$,$,$,$,$,.ELEMENT.,$,$,$,$,$);
#20=IFCWALLSTANDARDCASE('w2',$,$,$,$,$,$,$,$);
#21=IFCWALL('w1',$,$,$,$,$,$,$,$);
#30=IFCSLAB('f',$,$,$,$,$,$,$,.FLOOR.);
#31=IFCSLAB('r',$,$,$,$,$,$,$,.ROOF.);
#40=IFCDOOR('d',$,$,$,$,$,$,$,$,$,$,$,$);
#50=IFCSTAIRFLIGHT('sf',$,$,$,$,$,$,$,$,$,$,$,$);
#51=IFCSTAIR('st',$,$,$,$,$,$,$,.STRAIGHT_RUN_STAIR.);
#52=IFCSTAIR('ss',$,$,$,$,$,#99,$,.STRAIGHT_RUN_STAIR.);
#60=IFCBEAM('b',$,$,$,$,$,$,$,$);`)

	c := Classify(g)
	if c.Site == nil || c.Site.ID != 10 {
		t.Fatalf("site got %+v, want #10", c.Site)
	}
	if n := len(c.Of(model.RoleArea)); n != 1 {
		t.Errorf("got %d areas, want 1 (roof excluded)", n)
	}
	if c.Size() != 6 {
		t.Errorf("size got %d, want 6 (bare stair excluded)", c.Size())
	}

	var got []int
	for _, el := range c.Elements() {
		got = append(got, el.Entity.ID)
	}
	want := []int{30, 21, 20, 40, 52, 50}
	if len(got) != len(want) {
		t.Fatalf("elements got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("elements got %v, want %v", got, want)
		}
	}
	if c.Elements()[0].Role != model.RoleArea || c.Elements()[4].Role != model.RoleStair {
		t.Error("roles not attached")
	}
}

func TestClassifyWithoutSite(t *testing.T) {
	c := Classify(parse(t, `#1=IFCCOLUMN('c',$,$,$,$,$,$,$,$);`))
	if c.Site != nil {
		t.Error("unexpected site")
	}
	if len(c.Of(model.RoleColumn)) != 1 {
		t.Error("column not classified")
	}
}

func TestDefaultTagCatalog(t *testing.T) {
	c := DefaultTagCatalog()

	tests := []struct {
		role  model.Role
		key   string
		value string
	}{
		{model.RoleArea, "indoor", "room"},
		{model.RoleWall, "material", "concrete"},
		{model.RoleColumn, "indoor", "wall"},
		{model.RoleDoor, "access", "private"},
		{model.RoleWindow, "window", "yes"},
		{model.RoleStair, "highway", "steps"},
	}
	for _, tt := range tests {
		if got := c.Tags(tt.role).Find(tt.key); got != tt.value {
			t.Errorf("%s %s got %q, want %q", tt.role, tt.key, got, tt.value)
		}
	}
	if len(c.Tags(model.RoleSite)) != 0 {
		t.Error("site should have no tags")
	}

	// callers may append without touching the catalog
	tags := c.Tags(model.RoleWall)
	tags[0].Value = "changed"
	if c.Tags(model.RoleWall)[0].Value == "changed" {
		t.Error("Tags returned shared storage")
	}
}

func TestParseTagCatalog(t *testing.T) {
	c, err := ParseTagCatalog([]byte("Wall:\n  barrier: wall\n  indoor: wall\n"))
	if err != nil {
		t.Fatalf("ParseTagCatalog failed: %v", err)
	}
	tags := c.Tags(model.RoleWall)
	if len(tags) != 2 || tags[0].Key != "barrier" || tags[1].Key != "indoor" {
		t.Errorf("tags got %v, want sorted keys", tags)
	}
	if len(c.Tags(model.RoleDoor)) != 0 {
		t.Error("roles missing from the file should have no tags")
	}

	if _, err := ParseTagCatalog([]byte("roof:\n  building: roof\n")); err == nil {
		t.Error("unknown role should fail")
	}
	if _, err := ParseTagCatalog([]byte("wall: [1, 2")); err == nil {
		t.Error("invalid YAML should fail")
	}
}

func TestLoadTagCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	if err := os.WriteFile(path, []byte("door:\n  door: hinged\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadTagCatalog(path)
	if err != nil {
		t.Fatalf("LoadTagCatalog failed: %v", err)
	}
	if c.Tags(model.RoleDoor).Find("door") != "hinged" {
		t.Errorf("door tags got %v", c.Tags(model.RoleDoor))
	}
	if _, err := LoadTagCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
