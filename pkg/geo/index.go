package geo

import (
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/rrucricket/attendance/pkg/apperr"
)

const (
	tolerance   = 0.0001
	minChildren = 2
	maxChildren = 8
	dimensions  = 2

	// rtreego ranks by planar degree distance, which overstates east-west
	// separations away from the equator. The closest of these candidates
	// seeds a box search that is ranked by great-circle distance.
	nearestCandidates = 8
)

// ErrGroundExists is returned when a ground name is already indexed.
var ErrGroundExists = apperr.Coded(apperr.Conflict, "GROUND_EXISTS", "A ground with this name already exists.")

type groundItem struct {
	ref  ReferenceLocation
	rect *rtreego.Rect
}

func (g *groundItem) Bounds() *rtreego.Rect {
	return g.rect
}

// GroundIndex is a thread-safe spatial index of reference grounds.
type GroundIndex struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	items map[string]*groundItem
}

func NewGroundIndex(grounds ...ReferenceLocation) (*GroundIndex, error) {
	idx := &GroundIndex{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
		items: make(map[string]*groundItem),
	}
	for _, g := range grounds {
		if err := idx.Add(g); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Add inserts ref. Grounds are immutable once indexed, so a name that is
// already present fails with ErrGroundExists.
func (idx *GroundIndex) Add(ref ReferenceLocation) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.items[ref.Name]; ok {
		return ErrGroundExists
	}
	item := &groundItem{
		ref:  ref,
		rect: rtreego.Point{ref.Center.Latitude, ref.Center.Longitude}.ToRect(tolerance),
	}
	idx.tree.Insert(item)
	idx.items[ref.Name] = item
	return nil
}

// Nearest returns the ground closest to c by great-circle distance. ok is
// false when the index is empty.
func (idx *GroundIndex) Nearest(c Coordinate) (ReferenceLocation, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.items) == 0 {
		return ReferenceLocation{}, false
	}

	k := nearestCandidates
	if len(idx.items) < k {
		k = len(idx.items)
	}
	best, bestDist := closest(c, idx.tree.NearestNeighbors(k, rtreego.Point{c.Latitude, c.Longitude}))
	if bestDist <= 0 {
		return best, bestDist == 0
	}

	// Every ground nearer than bestDist lies inside the search box.
	var rest []rtreego.Spatial
	if box, ok := searchBox(c, bestDist); ok {
		rest = idx.tree.SearchIntersect(box)
	} else {
		for _, item := range idx.items {
			rest = append(rest, item)
		}
	}
	if ref, d := closest(c, rest); d >= 0 && d < bestDist {
		best = ref
	}
	return best, true
}

func closest(c Coordinate, candidates []rtreego.Spatial) (ReferenceLocation, float64) {
	var (
		best     ReferenceLocation
		bestDist = -1.0
	)
	for _, s := range candidates {
		item, ok := s.(*groundItem)
		if !ok {
			continue
		}
		d := Distance(c, item.ref.Center)
		if bestDist < 0 || d < bestDist {
			best, bestDist = item.ref, d
		}
	}
	return best, bestDist
}

// searchBox bounds every point within meters of c. ok is false when the box
// would reach a pole or cross the antimeridian.
func searchBox(c Coordinate, meters float64) (*rtreego.Rect, bool) {
	delta := meters / EarthRadiusMeters
	cosLat := math.Cos(toRadians(c.Latitude))
	if math.Sin(delta) >= cosLat {
		return nil, false
	}
	dLat := delta * 180 / math.Pi
	dLon := math.Asin(math.Sin(delta)/cosLat) * 180 / math.Pi

	if c.Latitude-dLat < -90 || c.Latitude+dLat > 90 ||
		c.Longitude-dLon < -180 || c.Longitude+dLon > 180 {
		return nil, false
	}
	box, err := rtreego.NewRect(
		rtreego.Point{c.Latitude - dLat, c.Longitude - dLon},
		[]float64{2 * dLat, 2 * dLon},
	)
	if err != nil {
		return nil, false
	}
	return box, true
}

// Has reports whether a ground with the given name is indexed.
func (idx *GroundIndex) Has(name string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.items[name]
	return ok
}

func (idx *GroundIndex) All() []ReferenceLocation {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]ReferenceLocation, 0, len(idx.items))
	for _, item := range idx.items {
		out = append(out, item.ref)
	}
	return out
}

func (idx *GroundIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.items)
}
