package cluster

import "github.com/alexandradec/infostop2/internal/geo"

// DistanceOracle returns pairwise geodesic distances in meters between two
// parallel coordinate slices. The core treats it as a pure function.
type DistanceOracle interface {
	Distance(a, b []geo.Coordinate) ([]float64, error)
}

// Seeder partitions a batch of coordinates into coarse spatial groups. It
// must be deterministic for a given batch but is free to label overlapping
// inputs differently across calls: the processor re-partitions every batch.
type Seeder interface {
	FitPredict(points []geo.Coordinate) ([]int, error)
}

// SnapshotStore persists the full clusterer state keyed by a logical
// partition identifier. Load returns ok=false for a missing key, which the
// processor treats identically to fresh initialization.
type SnapshotStore interface {
	Load(key string) (state *State, ok bool, err error)
	Save(key string, state *State) error
}

// Point is one raw input sample: a caller-provided identifier and its
// coordinate.
type Point struct {
	ID         string
	Coordinate geo.Coordinate
}

// Assignment is the per-point output of PartialFit: the caller's point id,
// the coordinate actually fed to the streaming core (the point itself on
// the initialization path, the coarse-group median afterwards), and the
// durable micro-cluster identifier assigned to the point.
type Assignment struct {
	PointID        string
	Representative geo.Coordinate
	ClusterID      string
}
