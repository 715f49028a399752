package importer

import (
	"math"
	"testing"
)

func square(x, y, size float64) []segment {
	a := point{x, y}
	b := point{x + size, y}
	c := point{x + size, y + size}
	d := point{x, y + size}
	return []segment{{a, b}, {b, c}, {c, d}, {d, a}}
}

func TestChainSegmentsClosesLoops(t *testing.T) {
	segs := append(square(0, 0, 10), square(100, 100, 50)...)
	// reversed segment still chains
	segs[1] = segment{start: segs[1].end, end: segs[1].start}

	outlines := chainSegments(segs, chainTolerance)
	if len(outlines) != 2 {
		t.Fatalf("expected 2 outlines, got %d", len(outlines))
	}
	if area := outlineArea(outlines[0]); math.Abs(area-2500) > 1e-6 {
		t.Errorf("expected largest outline first (2500), got %v", area)
	}
}

func TestChainSegmentsDropsOpenChains(t *testing.T) {
	segs := square(0, 0, 10)[:3]
	if outlines := chainSegments(segs, chainTolerance); len(outlines) != 0 {
		t.Errorf("expected open chain dropped, got %d outlines", len(outlines))
	}
}

func TestOutlinesToRecordsMergesEqualSizes(t *testing.T) {
	outlines := []outline{
		{{0, 0}, {600, 0}, {600, 300}, {0, 300}},
		{{1000, 0}, {1600, 0}, {1600, 300.001}, {1000, 300.001}},
		{{0, 0}, {100, 0}, {100, 50}},
		{{0, 0}, {100, 0}, {100, 0}},
	}

	records, warnings := outlinesToRecords(outlines)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %+v", records)
	}
	if records[0].Width != "600" || records[0].Length != "300" || records[0].Quantity != "2" {
		t.Errorf("unexpected merged record %+v", records[0])
	}
	if records[1].Quantity != "1" {
		t.Errorf("expected single triangle piece, got %+v", records[1])
	}
	if !containsText(warnings, "degenerate") || !containsText(warnings, "Merged 1") {
		t.Errorf("unexpected warnings %v", warnings)
	}
}

func TestOutlineBoundingBox(t *testing.T) {
	o := outline{{5, -2}, {12, 3}, {-1, 8}}
	lo, hi := o.boundingBox()
	if lo != (point{-1, -2}) || hi != (point{12, 8}) {
		t.Errorf("unexpected box %v..%v", lo, hi)
	}
}

func TestBulgeArcPointsSemicircle(t *testing.T) {
	pts := bulgeArcPoints(point{0, 0}, point{10, 0}, 1, 16)
	if len(pts) != 17 {
		t.Fatalf("expected 17 points, got %d", len(pts))
	}
	for _, p := range pts {
		if r := math.Hypot(p.X-5, p.Y); math.Abs(r-5) > 1e-9 {
			t.Fatalf("point %v is not on the radius-5 arc", p)
		}
	}
}

func TestImportDXFMissingFile(t *testing.T) {
	result := ImportDXF("/nonexistent/drawing.dxf")
	if len(result.Errors) == 0 {
		t.Error("expected error for missing DXF file")
	}
}
