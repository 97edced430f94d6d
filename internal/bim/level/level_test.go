package level

import (
	"strings"
	"testing"

	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

func TestNewTable(t *testing.T) {
	table := NewTable([]float64{6, -3, 3, 0})

	want := map[float64]model.Level{-3: -1, 0: 0, 3: 1, 6: 2}
	for elevation, lvl := range want {
		got, ok := table.Level(elevation)
		if !ok || got != lvl {
			t.Errorf("elevation %v: got %v,%v, want %v", elevation, got, ok, lvl)
		}
	}
	if table.Len() != 4 {
		t.Errorf("Len got %d, want 4", table.Len())
	}
}

func TestNewTableRepeatedStoreys(t *testing.T) {
	table := NewTable([]float64{0, 0, 3, 3, 6})

	want := map[float64]model.Level{0: 0, 3: 1, 6: 2}
	for elevation, lvl := range want {
		if got, ok := table.Level(elevation); !ok || got != lvl {
			t.Errorf("elevation %v: got %v,%v, want %v", elevation, got, ok, lvl)
		}
	}
	got := table.Elevations()
	if len(got) != 3 || got[0] != 0 || got[1] != 3 || got[2] != 6 {
		t.Errorf("Elevations got %v, want [0 3 6]", got)
	}
}

func TestNewTableNearestZero(t *testing.T) {
	tests := []struct {
		name       string
		elevations []float64
		want       map[float64]model.Level
	}{
		{"all above ground", []float64{2.5, 5.5, 8.5}, map[float64]model.Level{2.5: 0, 5.5: 1, 8.5: 2}},
		{"all below ground", []float64{-6, -3}, map[float64]model.Level{-6: -1, -3: 0}},
		{"tie keeps lower", []float64{-1, 1}, map[float64]model.Level{-1: 0, 1: 1}},
		{"duplicates", []float64{0, 3, 3, 0}, map[float64]model.Level{0: 0, 3: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable(tt.elevations)
			for elevation, lvl := range tt.want {
				if got, ok := table.Level(elevation); !ok || got != lvl {
					t.Errorf("elevation %v: got %v,%v, want %v", elevation, got, ok, lvl)
				}
			}
			if table.Len() != len(tt.want) {
				t.Errorf("Len got %d, want %d", table.Len(), len(tt.want))
			}
		})
	}

	if _, ok := NewTable(nil).Level(0); ok {
		t.Error("empty table should not match")
	}
}

const records = `ISO-10303-21;
HEADER;
FILE_SCHEMA(('IFC4'));
ENDSEC;
DATA;
#1=IFCBUILDINGSTOREY('a',$,'Basement',$,$,$,$,$,.ELEMENT.,-3.);
#2=IFCBUILDINGSTOREY('b',$,'Ground',$,$,$,$,$,.ELEMENT.,0.);
#3=IFCBUILDINGSTOREY('c',$,'First',$,$,$,$,$,.ELEMENT.,3.);
#4=IFCBUILDING('d',$,'Building',$,$,$,$,$,.ELEMENT.,$,$,$);
#5=IFCBUILDINGSTOREY('e',$,'Roof',$,$,$,$,$,.ELEMENT.,$);
#10=IFCRELCONTAINEDINSPATIALSTRUCTURE('r1',$,$,$,(#100,#101),#1);
#11=IFCRELCONTAINEDINSPATIALSTRUCTURE('r2',$,$,$,(#102),#3);
#12=IFCRELCONTAINEDINSPATIALSTRUCTURE('r3',$,$,$,(#103),#4);
#13=IFCRELCONTAINEDINSPATIALSTRUCTURE('r4',$,$,$,(#101),#2);
#14=IFCRELCONTAINEDINSPATIALSTRUCTURE('r5',$,$,$,(#105),#5);
ENDSEC;
END-ISO-10303-21;
`

func TestClassifier(t *testing.T) {
	g, err := ifc.ParseSTEP(strings.NewReader(records))
	if err != nil {
		t.Fatalf("ParseSTEP failed: %v", err)
	}
	c := NewClassifier(g)

	if got := c.Table().Elevations(); len(got) != 3 {
		t.Fatalf("elevations got %v, want 3 storeys", got)
	}

	tests := []struct {
		id   int
		want model.Level
	}{
		{100, -1},
		{101, 0}, // contained twice, the later relation wins
		{102, 1},
		{103, 0}, // building, not a storey
		{104, model.Unassigned},
		{105, model.Unassigned}, // storey without elevation
	}
	for _, tt := range tests {
		if got := c.LevelOf(tt.id); got != tt.want {
			t.Errorf("#%d: got %v, want %v", tt.id, got, tt.want)
		}
	}

	objs := []model.GeoObject{{EntityID: 102}, {EntityID: 104}}
	c.Assign(objs)
	if objs[0].Level != 1 || objs[1].Level != model.Unassigned {
		t.Errorf("Assign got %v,%v", objs[0].Level, objs[1].Level)
	}
}
