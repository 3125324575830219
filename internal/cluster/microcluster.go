package cluster

import (
	"math"

	"github.com/alexandradec/infostop2/internal/geo"
	"github.com/google/uuid"
)

// MicroCluster is the decaying statistical summary of a set of points:
// running mean, dispersion, decayed weight and an approximate radius. It is
// never destroyed in place; the processor moves it between the potential
// and outlier collections or drops it from the outlier collection.
type MicroCluster struct {
	id          string
	decayFactor float64

	// Weighted first-moment accumulator. Not decayed by Adjust: the
	// source behavior decays only the weight and the squared accumulator,
	// and that asymmetry is preserved deliberately (pinned by test).
	sumLat float64
	sumLon float64

	mean     geo.Coordinate
	sumSq    float64
	variance float64
	weight   float64
	n        int64

	createdAt  int64
	lastAdjust int64

	// Farthest-seen point, kept greedily. Supports the radius
	// approximation; never re-derived from history, so the radius can
	// over- or under-estimate after decay.
	farthest    geo.Coordinate
	hasFarthest bool
}

// newMicroCluster creates an empty cluster at the given logical tick. The
// identifier is assigned once and survives every merge into this cluster.
func newMicroCluster(lambda float64, creationTime int64) *MicroCluster {
	return &MicroCluster{
		id:          uuid.NewString(),
		decayFactor: math.Pow(2, -lambda),
		createdAt:   creationTime,
		lastAdjust:  creationTime,
	}
}

// ID returns the stable cluster identifier used as the destination label.
func (mc *MicroCluster) ID() string {
	return mc.id
}

// Center returns the current running mean coordinate.
func (mc *MicroCluster) Center() geo.Coordinate {
	return mc.mean
}

// Weight returns the decayed weight as of the last Adjust call.
func (mc *MicroCluster) Weight() float64 {
	return mc.weight
}

// Samples returns the number of absorbed insertions.
func (mc *MicroCluster) Samples() int64 {
	return mc.n
}

// Variance returns the running mean squared geodesic residual.
func (mc *MicroCluster) Variance() float64 {
	return mc.variance
}

// CreatedAt returns the logical creation tick.
func (mc *MicroCluster) CreatedAt() int64 {
	return mc.createdAt
}

// Adjust applies decay for the ticks elapsed since the last adjustment.
// A repeated call at the same tick is a no-op, and time never moves
// backwards. Callers wanting a fresh Weight or Variance reading must
// Adjust to the desired tick first.
func (mc *MicroCluster) Adjust(time int64) {
	if time <= mc.lastAdjust {
		return
	}

	factor := math.Pow(mc.decayFactor, float64(time-mc.lastAdjust))
	mc.weight *= factor
	mc.sumSq *= factor
	mc.lastAdjust = time
}

// Radius returns the geodesic distance from the farthest-seen point to the
// current center, or 0 for a cluster that has absorbed at most one point.
func (mc *MicroCluster) Radius(d DistanceOracle) (float64, error) {
	if !mc.hasFarthest {
		return 0, nil
	}

	return pairDistance(d, mc.farthest, mc.mean)
}

// Insert absorbs one point carrying the given weight count, decaying to the
// tick first. Returns the cluster identifier, which is the label assigned
// to the absorbed point.
func (mc *MicroCluster) Insert(d DistanceOracle, p geo.Coordinate, count float64, time int64) (string, error) {
	mc.Adjust(time)

	mc.n++
	mc.weight += count
	mc.sumLat += p.Lat * count
	mc.sumLon += p.Lon * count

	mc.mean.Lat += (p.Lat - mc.mean.Lat) / float64(mc.n)
	mc.mean.Lon += (p.Lon - mc.mean.Lon) / float64(mc.n)

	dist, err := pairDistance(d, p, mc.mean)
	if err != nil {
		return "", err
	}
	radius, err := mc.Radius(d)
	if err != nil {
		return "", err
	}
	if !mc.hasFarthest || dist > radius {
		mc.farthest = p
		mc.hasFarthest = true
	}

	mc.sumSq += count * dist * dist
	mc.variance += (dist*dist - mc.variance) / float64(mc.n)

	return mc.id, nil
}

// wouldInsert computes the hypothetical post-insertion radius without
// mutating the cluster. The insertion count and tick drop out: neither
// decay nor weight moves the mean or the farthest point, so the projected
// radius depends only on the candidate point.
func (mc *MicroCluster) wouldInsert(d DistanceOracle, p geo.Coordinate) (float64, error) {
	nNew := float64(mc.n + 1)
	projected := geo.Coordinate{
		Lat: mc.mean.Lat + (p.Lat-mc.mean.Lat)/nNew,
		Lon: mc.mean.Lon + (p.Lon-mc.mean.Lon)/nNew,
	}

	toPoint, err := pairDistance(d, p, projected)
	if err != nil {
		return 0, err
	}
	if !mc.hasFarthest {
		return toPoint, nil
	}

	toFarthest, err := pairDistance(d, mc.farthest, projected)
	if err != nil {
		return 0, err
	}

	return math.Max(toPoint, toFarthest), nil
}

// Clone returns an independent value copy, usable for what-if insertion
// without side effects on the original.
func (mc *MicroCluster) Clone() *MicroCluster {
	clone := *mc
	return &clone
}

func pairDistance(d DistanceOracle, a, b geo.Coordinate) (float64, error) {
	out, err := d.Distance([]geo.Coordinate{a}, []geo.Coordinate{b})
	if err != nil {
		return 0, err
	}

	return out[0], nil
}
