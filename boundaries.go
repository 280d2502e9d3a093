package civix

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// BoundaryKind names the layer a boundary polygon belongs to.
type BoundaryKind string

const (
	BoundaryCongressional BoundaryKind = "congressional"
	BoundaryStateSenate   BoundaryKind = "state_senate"
	BoundaryAssembly      BoundaryKind = "assembly"
	BoundaryCounty        BoundaryKind = "county"
)

type boundary struct {
	kind     BoundaryKind
	district int
	name     string
	bounds   *geom.Bounds
	polygons []*geom.Polygon
}

// Boundaries holds district and county polygons for point-in-polygon
// placement. Read-only after loading.
type Boundaries struct {
	shapes []boundary
}

// LoadBoundaries reads a GeoJSON FeatureCollection from path. See
// ParseBoundaries for the expected feature properties.
func LoadBoundaries(path string) (*Boundaries, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening boundaries: %w", err)
	}
	defer fh.Close()
	return ParseBoundaries(fh)
}

// ParseBoundaries decodes a GeoJSON FeatureCollection. Every feature needs a
// "kind" property (congressional, state_senate, assembly or county) and
// either a "district" number or, for counties, a "name". Only Polygon and
// MultiPolygon geometries are accepted.
func ParseBoundaries(r io.Reader) (*Boundaries, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decoding boundaries: %w", err)
	}
	b := &Boundaries{}
	for i, f := range fc.Features {
		shape, err := newBoundary(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		b.shapes = append(b.shapes, shape)
	}
	return b, nil
}

func newBoundary(f *geojson.Feature) (boundary, error) {
	kind, _ := f.Properties["kind"].(string)
	shape := boundary{kind: BoundaryKind(kind)}
	switch shape.kind {
	case BoundaryCongressional, BoundaryStateSenate, BoundaryAssembly:
		n, err := districtProperty(f.Properties["district"])
		if err != nil {
			return boundary{}, err
		}
		shape.district = n
	case BoundaryCounty:
		name, _ := f.Properties["name"].(string)
		if name == "" {
			return boundary{}, fmt.Errorf("county feature without name")
		}
		shape.name = name
	default:
		return boundary{}, fmt.Errorf("unknown kind %q", kind)
	}

	switch g := f.Geometry.(type) {
	case *geom.Polygon:
		shape.polygons = []*geom.Polygon{g}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			shape.polygons = append(shape.polygons, g.Polygon(i))
		}
	default:
		return boundary{}, fmt.Errorf("unsupported geometry %T", f.Geometry)
	}
	shape.bounds = f.Geometry.Bounds()
	return shape, nil
}

// districtProperty accepts the district as a JSON number or a numeric string.
func districtProperty(v interface{}) (int, error) {
	switch d := v.(type) {
	case float64:
		if d >= 1 && d == float64(int(d)) {
			return int(d), nil
		}
	case string:
		if n, err := strconv.Atoi(d); err == nil && n >= 1 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("bad district property %v", v)
}

func (s boundary) contains(c geom.Coord) bool {
	if !s.bounds.OverlapsPoint(geom.XY, c) {
		return false
	}
	for _, p := range s.polygons {
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, c, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < p.NumLinearRings(); i++ {
			if xy.IsPointInRing(geom.XY, c, p.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// Locate returns the districts and county whose polygons contain the point.
// Layers without a containing polygon are left zero.
func (b *Boundaries) Locate(lat, lng float64) Location {
	c := geom.Coord{lng, lat}
	var loc Location
	for _, s := range b.shapes {
		if !s.contains(c) {
			continue
		}
		switch s.kind {
		case BoundaryCongressional:
			if loc.Districts.Congressional == 0 {
				loc.Districts.Congressional = s.district
			}
		case BoundaryStateSenate:
			if loc.Districts.StateSenate == 0 {
				loc.Districts.StateSenate = s.district
			}
		case BoundaryAssembly:
			if loc.Districts.Assembly == 0 {
				loc.Districts.Assembly = s.district
			}
		case BoundaryCounty:
			if loc.County == "" {
				loc.County = s.name
			}
		}
	}
	return loc
}

// Len returns the number of loaded shapes.
func (b *Boundaries) Len() int { return len(b.shapes) }
