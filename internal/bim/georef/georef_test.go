package georef

import (
	"errors"
	"math"
	"strings"
	"testing"

	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

const header = `ISO-10303-21;
HEADER;
FILE_SCHEMA(('IFC4'));
ENDSEC;
DATA;
`

func parse(t *testing.T, records string) *ifc.Graph {
	t.Helper()
	g, err := ifc.ParseSTEP(strings.NewReader(header + records + "ENDSEC;\nEND-ISO-10303-21;\n"))
	if err != nil {
		t.Fatalf("ParseSTEP failed: %v", err)
	}
	return g
}

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestReadUnits(t *testing.T) {
	tests := []struct {
		name    string
		records string
		want    Units
	}{
		{
			name: "millimetre and degree",
			records: `#1=IFCSIUNIT(*,.LENGTHUNIT.,.MILLI.,.METRE.);
#2=IFCSIUNIT(*,.PLANEANGLEUNIT.,$,.RADIAN.);
#3=IFCMEASUREWITHUNIT(IFCPLANEANGLEMEASURE(0.0174532925199433),#2);
#4=IFCCONVERSIONBASEDUNIT(#5,.PLANEANGLEUNIT.,'DEGREE',#3);
#5=IFCDIMENSIONALEXPONENTS(0,0,0,0,0,0,0);
#6=IFCUNITASSIGNMENT((#1,#4));
`,
			want: Units{Length: geomath.Millimetre, Angle: geomath.Degree},
		},
		{
			name: "centimetre",
			records: `#1=IFCSIUNIT(*,.LENGTHUNIT.,.CENTI.,.METRE.);
#6=IFCUNITASSIGNMENT((#1));
`,
			want: Units{Length: geomath.Centimetre, Angle: geomath.Radian},
		},
		{
			name: "metre and radian",
			records: `#1=IFCSIUNIT(*,.LENGTHUNIT.,$,.METRE.);
#2=IFCSIUNIT(*,.PLANEANGLEUNIT.,$,.RADIAN.);
#6=IFCUNITASSIGNMENT((#2,#1));
`,
			want: Units{Length: geomath.Metre, Angle: geomath.Radian},
		},
		{
			name:    "no assignment",
			records: "#1=IFCSIUNIT(*,.LENGTHUNIT.,.MILLI.,.METRE.);\n",
			want:    Units{Length: geomath.Metre, Angle: geomath.Radian},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReadUnits(parse(t, tt.records))
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

const siteRecords = `#1=IFCCARTESIANPOINT((0.,0.,0.));
#2=IFCAXIS2PLACEMENT3D(#1,$,$);
#3=IFCLOCALPLACEMENT($,#2);
`

func TestSiteOrigin(t *testing.T) {
	g := parse(t, siteRecords+`#10=IFCSITE('s',$,'Site',$,$,#3,$,$,.ELEMENT.,(52,30,0),(13,0,0,0),0.,$,$);
`)
	site, _ := g.Entity(10)

	got, err := SiteOrigin(g, site, geomath.Metre)
	if err != nil {
		t.Fatalf("SiteOrigin failed: %v", err)
	}
	if got.Lat != 52.5 || got.Lon != 13 {
		t.Errorf("got %+v, want (52.5,13)", got)
	}
}

func TestSiteOriginBoxOffset(t *testing.T) {
	g := parse(t, siteRecords+`#4=IFCCARTESIANPOINT((100.,0.,0.));
#5=IFCBOUNDINGBOX(#4,10.,10.,1.);
#6=IFCSHAPEREPRESENTATION($,'Box','BoundingBox',(#5));
#7=IFCPRODUCTDEFINITIONSHAPE($,$,(#6));
#10=IFCSITE('s',$,'Site',$,$,#3,#7,$,.ELEMENT.,(52,0,0),(13,0,0),0.,$,$);
`)
	site, _ := g.Entity(10)

	got, err := SiteOrigin(g, site, geomath.Metre)
	if err != nil {
		t.Fatalf("SiteOrigin failed: %v", err)
	}
	if got.Lat != 52 {
		t.Errorf("lat got %v, want 52", got.Lat)
	}
	// 100 m west of the reference point
	wantLon := 13 - 100/(geomath.EarthRadiusMeters*math.Cos(52*math.Pi/180))*180/math.Pi
	if !approxEqual(got.Lon, wantLon, 1e-12) {
		t.Errorf("lon got %v, want %v", got.Lon, wantLon)
	}
}

func TestSiteOriginMissing(t *testing.T) {
	g := parse(t, siteRecords+`#10=IFCSITE('s',$,'Site',$,$,#3,$,$,.ELEMENT.,$,$,0.,$,$);
`)
	site, _ := g.Entity(10)

	if _, err := SiteOrigin(g, site, geomath.Metre); !errors.Is(err, ErrNoGeodeticOrigin) {
		t.Errorf("got %v, want ErrNoGeodeticOrigin", err)
	}
	if _, err := SiteOrigin(g, nil, geomath.Metre); !errors.Is(err, ErrNoGeodeticOrigin) {
		t.Errorf("nil site: got %v, want ErrNoGeodeticOrigin", err)
	}
}

const projectRecords = `#1=IFCCARTESIANPOINT((0.,0.,0.));
#2=IFCDIRECTION((1.,0.,0.));
#3=IFCDIRECTION((0.,1.));
#4=IFCAXIS2PLACEMENT3D(#1,$,#2);
#5=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#4,#3);
#6=IFCPROJECT('p',$,'Project',$,$,$,$,(#5),$);
`

func TestNorthCorrection(t *testing.T) {
	g := parse(t, projectRecords)

	m, ok := NorthCorrection(g)
	if !ok {
		t.Fatal("NorthCorrection not found")
	}
	got := m.Apply(geomath.Point3D{X: 1})
	if !approxEqual(got.X, 0, 1e-12) || !approxEqual(got.Y, 1, 1e-12) {
		t.Errorf("rotated (1,0,0) got %+v, want (0,1,0)", got)
	}
}

func TestNorthCorrectionMissing(t *testing.T) {
	g := parse(t, `#1=IFCCARTESIANPOINT((0.,0.,0.));
#4=IFCAXIS2PLACEMENT3D(#1,$,$);
#5=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#4,$);
#6=IFCPROJECT('p',$,'Project',$,$,$,$,(#5),$);
`)
	m, ok := NorthCorrection(g)
	if ok {
		t.Fatal("NorthCorrection should be skipped without TrueNorth")
	}
	if m != geomath.Identity() {
		t.Errorf("got %v, want identity", m)
	}
}

func TestGeoreferenceWall(t *testing.T) {
	ctx := &Context{Origin: geomath.LatLon{Lat: 52, Lon: 13}, Unit: geomath.Metre, North: geomath.Identity()}

	wall := model.PreparedObject{
		EntityID: 7,
		Role:     model.RoleWall,
		Points: []geomath.Point3D{
			{X: 10, Y: 5}, {X: 12, Y: 5}, {X: 12, Y: 5.3}, {X: 10, Y: 5.3},
		},
	}
	got := ctx.Georeference([]model.PreparedObject{wall, {EntityID: 8}})

	if len(got) != 1 {
		t.Fatalf("got %d objects, want 1 (empty objects are dropped)", len(got))
	}
	obj := got[0]
	if obj.Level != model.Unassigned || obj.Role != model.RoleWall || obj.EntityID != 7 {
		t.Errorf("got %+v", obj)
	}
	if len(obj.Points) != 4 {
		t.Fatalf("got %d points, want 4", len(obj.Points))
	}

	dLat := 5 / geomath.EarthRadiusMeters * 180 / math.Pi
	dLon := 10 / (geomath.EarthRadiusMeters * math.Cos(52*math.Pi/180)) * 180 / math.Pi
	if !approxEqual(obj.Points[0].Lat, 52+dLat, 1e-12) || !approxEqual(obj.Points[0].Lon, 13+dLon, 1e-12) {
		t.Errorf("first point got %+v, want (%v,%v)", obj.Points[0], 52+dLat, 13+dLon)
	}
	if obj.Points[1].Lon <= obj.Points[0].Lon || obj.Points[2].Lat <= obj.Points[1].Lat {
		t.Errorf("points not offset east/north: %+v", obj.Points)
	}
}

func TestProjectScalesUnits(t *testing.T) {
	m := &Context{Origin: geomath.LatLon{Lat: 10, Lon: 10}, Unit: geomath.Metre}
	mm := &Context{Origin: geomath.LatLon{Lat: 10, Lon: 10}, Unit: geomath.Millimetre}

	a := m.Project(geomath.Point3D{X: 3, Y: 4})
	b := mm.Project(geomath.Point3D{X: 3000, Y: 4000})
	if !approxEqual(a.Lat, b.Lat, 1e-12) || !approxEqual(a.Lon, b.Lon, 1e-12) {
		t.Errorf("metre %+v and millimetre %+v differ", a, b)
	}
}
