// Package seed partitions a batch of coordinates into coarse spatial groups.
//
// The partitioner is a grid-indexed DBSCAN over a local planar projection of
// the batch. Every point receives a label (minPts is 1, so there is no noise
// class), and labels are assigned in first-encounter order so a given batch
// always partitions the same way.
package seed

import (
	"math"

	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/geo"
)

const metersPerDegree = math.Pi * geo.EarthRadiusMeters / 180

// GridDBSCAN is a deterministic density-based batch partitioner.
type GridDBSCAN struct {
	eps    float64 // neighborhood radius in meters
	minPts int
}

// NewGridDBSCAN creates a partitioner with the given neighborhood radius in
// meters. minPts is fixed at 1: a partitioner must label every point.
func NewGridDBSCAN(eps float64) *GridDBSCAN {
	return &GridDBSCAN{
		eps:    eps,
		minPts: 1,
	}
}

// FitPredict assigns a coarse group label to every point. Labels are dense
// integers starting at 0, in first-encounter order.
func (s *GridDBSCAN) FitPredict(points []geo.Coordinate) ([]int, error) {
	errFactory := errors.New()

	if len(points) == 0 {
		return nil, errFactory.New(errors.ErrEmptyInput)
	}
	if s.eps <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidConfig, struct {
			Eps float64
		}{
			Eps: s.eps,
		})
	}

	local := project(points)

	index := newSpatialIndex(s.eps)
	index.build(local)

	// 0=unvisited, >0=clusterID (minPts 1 leaves no noise)
	labels := make([]int, len(local))
	clusterID := 0

	for i := range local {
		if labels[i] != 0 {
			continue
		}

		neighbors := index.regionQuery(local, i, s.eps)
		clusterID++
		expand(local, index, labels, i, neighbors, clusterID, s.eps, s.minPts)
	}

	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = l - 1
	}

	return out, nil
}

// expand grows a cluster from a core point using queue-based expansion.
func expand(points []localPoint, index *spatialIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, eps float64, minPts int,
) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]
		if labels[idx] != 0 {
			continue
		}

		labels[idx] = clusterID
		next := index.regionQuery(points, idx, eps)
		if len(next) >= minPts {
			neighbors = append(neighbors, next...)
		}
	}
}

// project maps coordinates to planar meters via an equirectangular
// projection around the batch centroid. Adequate at stop-detection scale;
// the streaming core uses the geodesic oracle, not this projection.
func project(points []geo.Coordinate) []localPoint {
	var refLat, refLon float64
	for _, p := range points {
		refLat += p.Lat
		refLon += p.Lon
	}
	refLat /= float64(len(points))
	refLon /= float64(len(points))

	cosRef := math.Cos(refLat * math.Pi / 180)

	local := make([]localPoint, len(points))
	for i, p := range points {
		local[i] = localPoint{
			X: (p.Lon - refLon) * metersPerDegree * cosRef,
			Y: (p.Lat - refLat) * metersPerDegree,
		}
	}

	return local
}
