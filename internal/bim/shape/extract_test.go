package shape

import (
	"errors"
	"strings"
	"testing"

	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

const header = `ISO-10303-21;
HEADER;
FILE_SCHEMA(('IFC2X3'));
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

func pt(x, y, z float64) geomath.Point3D {
	return geomath.Point3D{X: x, Y: y, Z: z}
}

func equalPoints(a, b []geomath.Point3D) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #100 is an element with body (extruded polyline at offset (1,1)), box and
// axis representations
const elementRecords = `#1=IFCCARTESIANPOINT((0.,0.));
#2=IFCCARTESIANPOINT((4.,0.));
#3=IFCCARTESIANPOINT((4.,2.));
#4=IFCCARTESIANPOINT((0.,2.));
#5=IFCPOLYLINE((#1,#2,#3,#4,#1));
#6=IFCARBITRARYCLOSEDPROFILEDEF(.AREA.,$,#5);
#7=IFCCARTESIANPOINT((1.,1.,0.));
#8=IFCAXIS2PLACEMENT3D(#7,$,$);
#9=IFCDIRECTION((0.,0.,1.));
#10=IFCEXTRUDEDAREASOLID(#6,#8,#9,3.);
#11=IFCSHAPEREPRESENTATION(#90,'Body','SweptSolid',(#10));
#12=IFCCARTESIANPOINT((0.,0.,0.));
#13=IFCBOUNDINGBOX(#12,5.,0.5,3.);
#14=IFCSHAPEREPRESENTATION(#90,'Box','BoundingBox',(#13));
#15=IFCPOLYLINE((#1,#2));
#16=IFCSHAPEREPRESENTATION(#90,'Axis','Curve2D',(#15));
#17=IFCSHAPEREPRESENTATION(#90,'FootPrint','GeometricCurveSet',(#15));
#90=IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#8,$);
`

func TestExtractPrefersBody(t *testing.T) {
	g := parse(t, elementRecords+`#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#16,#14,#11,#17));
#100=IFCSLAB('1',$,'Slab',$,$,$,#20,$,.FLOOR.);
`)
	e, _ := g.Entity(100)

	got, err := Extract(g, e, model.RoleArea)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := []geomath.Point3D{pt(1, 1, 0), pt(5, 1, 0), pt(5, 3, 0), pt(1, 3, 0), pt(1, 1, 0)}
	if !equalPoints(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractWallSkipsBody(t *testing.T) {
	g := parse(t, elementRecords+`#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#16,#14,#11));
#100=IFCWALL('1',$,'Wall',$,$,$,#20,$);
`)
	e, _ := g.Entity(100)

	got, err := Extract(g, e, model.RoleWall)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := []geomath.Point3D{pt(0, 0, 0), pt(5, 0, 0), pt(5, 0.5, 0), pt(0, 0.5, 0), pt(0, 0, 0)}
	if !equalPoints(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractAxisOnly(t *testing.T) {
	g := parse(t, elementRecords+`#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#16));
#100=IFCWALL('1',$,'Wall',$,$,$,#20,$);
`)
	e, _ := g.Entity(100)

	got, err := Extract(g, e, model.RoleWall)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := []geomath.Point3D{pt(0, 0, 0), pt(4, 0, 0)}
	if !equalPoints(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractNoUsableRepresentation(t *testing.T) {
	g := parse(t, elementRecords+`#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#17));
#100=IFCCOLUMN('1',$,'Column',$,$,$,#20,$);
#101=IFCCOLUMN('2',$,'Column',$,$,$,$,$);
`)

	for _, id := range []int{100, 101} {
		e, _ := g.Entity(id)
		if _, err := Extract(g, e, model.RoleColumn); !errors.Is(err, ErrIncompleteShape) {
			t.Errorf("#%d: got %v, want ErrIncompleteShape", id, err)
		}
	}
}

func TestExtractRectangleProfile(t *testing.T) {
	g := parse(t, elementRecords+`#30=IFCCARTESIANPOINT((2.,1.));
#31=IFCAXIS2PLACEMENT2D(#30,$);
#32=IFCRECTANGLEPROFILEDEF(.AREA.,$,#31,0.4,0.2);
#33=IFCEXTRUDEDAREASOLID(#32,#8,#9,3.);
#34=IFCSHAPEREPRESENTATION(#90,'Body','SweptSolid',(#33));
#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#34));
#100=IFCCOLUMN('1',$,'Column',$,$,$,#20,$);
`)
	e, _ := g.Entity(100)

	got, err := Extract(g, e, model.RoleColumn)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d points, want 5", len(got))
	}
	// centre (2,1) plus solid offset (1,1)
	if d := got[0].Sub(pt(2.8, 1.9, 0)).Length(); d > 1e-9 {
		t.Errorf("first corner got %v, want (2.8,1.9,0)", got[0])
	}
	if d := got[2].Sub(pt(3.2, 2.1, 0)).Length(); d > 1e-9 {
		t.Errorf("opposite corner got %v, want (3.2,2.1,0)", got[2])
	}
	if got[0] != got[4] {
		t.Errorf("outline not closed: %v", got)
	}
}

func TestExtractMappedItemWithVoids(t *testing.T) {
	g := parse(t, elementRecords+`#40=IFCCARTESIANPOINTLIST2D(((1.,0.5),(2.,0.5),(2.,1.5)));
#41=IFCINDEXEDPOLYCURVE(#40,$,.F.);
#42=IFCARBITRARYPROFILEDEFWITHVOIDS(.AREA.,$,#5,(#41));
#43=IFCEXTRUDEDAREASOLID(#42,$,#9,3.);
#44=IFCSHAPEREPRESENTATION(#90,'Body','SweptSolid',(#43));
#45=IFCREPRESENTATIONMAP(#8,#44);
#46=IFCMAPPEDITEM(#45,$);
#47=IFCSHAPEREPRESENTATION(#90,'Body','MappedRepresentation',(#46));
#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#47));
#100=IFCSTAIR('1',$,'Stair',$,$,$,#20,$,.STRAIGHT_RUN_STAIR.);
`)
	e, _ := g.Entity(100)

	got, err := Extract(g, e, model.RoleStair)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	loops := SplitLoops(got)
	if len(loops) != 2 {
		t.Fatalf("got %d loops, want 2", len(loops))
	}
	if len(loops[0]) != 5 || len(loops[1]) != 3 {
		t.Errorf("loop sizes got %d,%d, want 5,3", len(loops[0]), len(loops[1]))
	}
	if loops[1][2] != pt(2, 1.5, 0) {
		t.Errorf("void vertex got %v, want (2,1.5,0)", loops[1][2])
	}
}

func TestExtractBooleanAndBrep(t *testing.T) {
	g := parse(t, elementRecords+`#50=IFCCARTESIANPOINT((0.,0.,0.));
#51=IFCCARTESIANPOINT((1.,0.,0.));
#52=IFCCARTESIANPOINT((1.,1.,0.));
#53=IFCPOLYLOOP((#50,#51,#52));
#54=IFCFACEOUTERBOUND(#53,.T.);
#55=IFCFACE((#54));
#56=IFCPOLYLOOP((#50,#52,#51));
#57=IFCFACEOUTERBOUND(#56,.T.);
#58=IFCFACE((#57));
#59=IFCCLOSEDSHELL((#55,#58));
#60=IFCFACETEDBREP(#59);
#61=IFCBOOLEANCLIPPINGRESULT(.DIFFERENCE.,#60,$);
#62=IFCSHAPEREPRESENTATION(#90,'Body','Clipping',(#61));
#20=IFCPRODUCTDEFINITIONSHAPE($,$,(#62));
#100=IFCSLAB('1',$,'Slab',$,$,$,#20,$,.FLOOR.);
`)
	e, _ := g.Entity(100)

	got, err := Extract(g, e, model.RoleArea)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if loops := SplitLoops(got); len(loops) != 2 {
		t.Errorf("got %d loops, want one per face", len(loops))
	}
}

func TestSplitLoops(t *testing.T) {
	b := geomath.LoopBreak
	points := []geomath.Point3D{pt(0, 0, 0), pt(1, 0, 0), b, pt(5, 5, 0), pt(6, 5, 0), b}

	loops := SplitLoops(points)
	if len(loops) != 2 {
		t.Fatalf("got %d loops, want 2", len(loops))
	}
	for i, loop := range loops {
		if len(loop) != 2 {
			t.Errorf("loop %d has %d points, want 2", i, len(loop))
		}
	}

	if got := SplitLoops([]geomath.Point3D{b, b}); len(got) != 0 {
		t.Errorf("breaks only: got %d loops, want 0", len(got))
	}
}

func TestIdentify(t *testing.T) {
	g := parse(t, elementRecords+`#70=IFCSHAPEREPRESENTATION(#90,'Body',$,(#10));
`)
	tests := []struct {
		id   int
		want Kind
	}{
		{11, KindBody},
		{14, KindBox},
		{16, KindAxis},
		{17, KindOther},
	}
	for _, tt := range tests {
		rep, _ := g.Entity(tt.id)
		got, err := Identify(g, rep)
		if err != nil {
			t.Fatalf("#%d: %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("#%d: got %v, want %v", tt.id, got, tt.want)
		}
	}

	rep, _ := g.Entity(70)
	if _, err := Identify(g, rep); !errors.Is(err, ErrIncompleteShape) {
		t.Errorf("missing type: got %v, want ErrIncompleteShape", err)
	}
}
