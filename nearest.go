package civix

import (
	"math"
	"sort"
	"sync"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
)

// s2CellLevel is roughly 10km cells. A point's cell plus its eight
// neighbours always covers maxNearestDistance.
const s2CellLevel = 10

// maxNearestDistance is ~15km in radians on the unit sphere. Beyond it the
// nearest centroid says little about which districts cover a point.
const maxNearestDistance = 0.00235

// centroidIndex is an S2 cell index over the table's ZIP centroids.
type centroidIndex struct {
	records   []ZIPRecord
	cellIndex map[s2.CellID][]int
}

func newCentroidIndex(recs []ZIPRecord) *centroidIndex {
	idx := &centroidIndex{cellIndex: make(map[s2.CellID][]int)}
	for _, r := range recs {
		if r.Latitude == 0 && r.Longitude == 0 {
			continue
		}
		i := len(idx.records)
		idx.records = append(idx.records, r)
		ll := s2.LatLngFromDegrees(r.Latitude, r.Longitude)
		cell := s2.CellIDFromLatLng(ll).Parent(s2CellLevel)
		idx.cellIndex[cell] = append(idx.cellIndex[cell], i)
	}
	return idx
}

// cellAndNeighbors returns the given cell plus its edge and corner neighbours.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := make([]s2.CellID, 0, 9)
	cells = append(cells, cell)

	edgeNeighbors := cell.EdgeNeighbors()
	cells = append(cells, edgeNeighbors[:]...)

	seen := make(map[s2.CellID]bool, 9)
	for _, c := range cells {
		seen[c] = true
	}
	for _, edge := range edgeNeighbors {
		for _, corner := range edge.EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}

type nearCandidate struct {
	idx  int
	dist float64
}

// NearestZIP returns the table record whose centroid is closest to the point,
// provided it lies within ~15km.
func (idx *centroidIndex) NearestZIP(lat, lng float64) (ZIPRecord, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return ZIPRecord{}, false
	}
	queryLL := s2.LatLngFromDegrees(lat, lng)
	queryCell := s2.CellIDFromLatLng(queryLL).Parent(s2CellLevel)

	var candidates []nearCandidate
	for _, cell := range cellAndNeighbors(queryCell) {
		for _, i := range idx.cellIndex[cell] {
			r := idx.records[i]
			d := float64(queryLL.Distance(s2.LatLngFromDegrees(r.Latitude, r.Longitude)))
			candidates = append(candidates, nearCandidate{idx: i, dist: d})
		}
	}
	if len(candidates) == 0 {
		return ZIPRecord{}, false
	}
	// Distance, then ZIP, for determinism.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return idx.records[candidates[i].idx].ZIP < idx.records[candidates[j].idx].ZIP
	})
	best := candidates[0]
	if best.dist > maxNearestDistance {
		return ZIPRecord{}, false
	}
	return idx.records[best.idx], true
}

// Location is what coordinate placement yields.
type Location struct {
	County    string
	Districts Districts
	Method    string // "boundaries" or "nearest ZIP NNNNN"
}

// geohashPrecision 6 is a ~1.2km by 0.6km cell; ZIP centroids that close
// share districts often enough to reuse the placement.
const geohashPrecision = 6

// locator places coordinates into districts, preferring polygons over the
// nearest-centroid guess, and memoizes answers per geohash cell.
type locator struct {
	boundaries *Boundaries
	nearest    *centroidIndex

	mu    sync.RWMutex
	cells map[string]Location
}

func newLocator(b *Boundaries, n *centroidIndex) *locator {
	return &locator{boundaries: b, nearest: n, cells: make(map[string]Location)}
}

func geohashCell(lat, lng float64) string {
	h := geohash.Encode(lat, lng)
	if len(h) > geohashPrecision {
		h = h[:geohashPrecision]
	}
	return h
}

func (l *locator) locate(lat, lng float64) (Location, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return Location{}, false
	}
	key := geohashCell(lat, lng)
	l.mu.RLock()
	loc, ok := l.cells[key]
	l.mu.RUnlock()
	if ok {
		return loc, true
	}

	loc, ok = l.place(lat, lng)
	if !ok {
		return Location{}, false
	}
	l.mu.Lock()
	l.cells[key] = loc
	l.mu.Unlock()
	return loc, true
}

func (l *locator) place(lat, lng float64) (Location, bool) {
	var loc Location
	if l.boundaries != nil {
		loc = l.boundaries.Locate(lat, lng)
		loc.Method = "boundaries"
		if loc.Districts.Complete() && loc.County != "" {
			return loc, true
		}
	}
	if l.nearest == nil {
		return loc, loc.Districts.Congressional > 0
	}
	rec, ok := l.nearest.NearestZIP(lat, lng)
	if !ok {
		return loc, loc.Districts.Congressional > 0
	}
	if loc.Districts.Congressional == 0 && loc.Districts.StateSenate == 0 && loc.Districts.Assembly == 0 {
		loc.Method = "nearest ZIP " + rec.ZIP
	}
	if loc.County == "" {
		loc.County = rec.County
	}
	if loc.Districts.Congressional == 0 {
		loc.Districts.Congressional = rec.Districts.Congressional
	}
	if loc.Districts.StateSenate == 0 {
		loc.Districts.StateSenate = rec.Districts.StateSenate
	}
	if loc.Districts.Assembly == 0 {
		loc.Districts.Assembly = rec.Districts.Assembly
	}
	return loc, true
}
