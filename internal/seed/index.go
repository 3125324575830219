package seed

import "math"

// estimatedPointsPerCell is used for initial spatial index capacity estimation
const estimatedPointsPerCell = 4

// localPoint is a batch coordinate projected to local planar meters.
type localPoint struct {
	X, Y float64
}

// spatialIndex provides neighborhood queries over a regular grid. Cell size
// should approximately match the DBSCAN eps parameter.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int // cell ID → point indices
}

func newSpatialIndex(cellSize float64) *spatialIndex {
	return &spatialIndex{
		cellSize: cellSize,
		grid:     make(map[int64][]int),
	}
}

func (si *spatialIndex) build(points []localPoint) {
	si.grid = make(map[int64][]int, len(points)/estimatedPointsPerCell+1)

	for i, p := range points {
		id := cellID(int64(math.Floor(p.X/si.cellSize)), int64(math.Floor(p.Y/si.cellSize)))
		si.grid[id] = append(si.grid[id], i)
	}
}

// cellID pairs two signed cell coordinates into one key using zigzag
// encoding followed by Szudzik's pairing function.
func cellID(cellX, cellY int64) int64 {
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}

	if a >= b {
		return a*a + a + b
	}

	return a + b*b
}

// regionQuery returns indices of all points within eps of points[idx],
// scanning the 3x3 cell neighborhood.
func (si *spatialIndex) regionQuery(points []localPoint, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps

	baseX := int64(math.Floor(p.X / si.cellSize))
	baseY := int64(math.Floor(p.Y / si.cellSize))

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, candidateIdx := range si.grid[cellID(baseX+dx, baseY+dy)] {
				candidate := points[candidateIdx]
				ddx := candidate.X - p.X
				ddy := candidate.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}

	return neighbors
}
