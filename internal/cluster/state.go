package cluster

import (
	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/geo"
)

// State is the serializable form of a clusterer. Initialization is carried
// explicitly rather than inferred from whether a snapshot happens to exist
// in storage.
type State struct {
	Initialized bool           `json:"initialized"`
	Clock       int64          `json:"clock"`
	Potential   []ClusterState `json:"potential"`
	Outlier     []ClusterState `json:"outlier"`
}

// ClusterState is the serializable form of one micro-cluster.
type ClusterState struct {
	ID          string         `json:"id"`
	DecayFactor float64        `json:"decay_factor"`
	SumLat      float64        `json:"sum_lat"`
	SumLon      float64        `json:"sum_lon"`
	Mean        geo.Coordinate `json:"mean"`
	SumSquares  float64        `json:"sum_squares"`
	Variance    float64        `json:"variance"`
	Weight      float64        `json:"weight"`
	Samples     int64          `json:"samples"`
	CreatedAt   int64          `json:"created_at"`
	LastAdjust  int64          `json:"last_adjust"`
	Farthest    geo.Coordinate `json:"farthest"`
	HasFarthest bool           `json:"has_farthest"`
}

// Snapshot captures the full clusterer state as an independent value.
func (ds *DenStream) Snapshot() *State {
	state := &State{
		Initialized: ds.initialized,
		Clock:       ds.clock,
		Potential:   make([]ClusterState, len(ds.store.potential)),
		Outlier:     make([]ClusterState, len(ds.store.outlier)),
	}

	for i, mc := range ds.store.potential {
		state.Potential[i] = mc.state()
	}
	for i, mc := range ds.store.outlier {
		state.Outlier[i] = mc.state()
	}

	return state
}

// Restore replaces the clusterer's collections and clock with the given
// state. A structurally invalid state yields a state-corruption error and
// leaves the clusterer untouched.
func (ds *DenStream) Restore(state *State) error {
	errFactory := errors.New()

	if state == nil {
		return errFactory.WithMessage(ErrInvalidState, "nil state")
	}

	potential := make([]*MicroCluster, len(state.Potential))
	for i, cs := range state.Potential {
		mc, err := clusterFromState(cs)
		if err != nil {
			return err
		}
		potential[i] = mc
	}
	outlier := make([]*MicroCluster, len(state.Outlier))
	for i, cs := range state.Outlier {
		mc, err := clusterFromState(cs)
		if err != nil {
			return err
		}
		outlier[i] = mc
	}

	ds.store = &Store{potential: potential, outlier: outlier}
	ds.clock = state.Clock
	ds.initialized = state.Initialized

	return nil
}

func (mc *MicroCluster) state() ClusterState {
	return ClusterState{
		ID:          mc.id,
		DecayFactor: mc.decayFactor,
		SumLat:      mc.sumLat,
		SumLon:      mc.sumLon,
		Mean:        mc.mean,
		SumSquares:  mc.sumSq,
		Variance:    mc.variance,
		Weight:      mc.weight,
		Samples:     mc.n,
		CreatedAt:   mc.createdAt,
		LastAdjust:  mc.lastAdjust,
		Farthest:    mc.farthest,
		HasFarthest: mc.hasFarthest,
	}
}

func clusterFromState(cs ClusterState) (*MicroCluster, error) {
	errFactory := errors.New()

	switch {
	case cs.ID == "":
		return nil, errFactory.WithMessage(ErrInvalidState, "cluster without identifier")
	case cs.DecayFactor <= 0 || cs.DecayFactor > 1:
		return nil, errFactory.WithData(ErrInvalidState, struct {
			ID          string
			DecayFactor float64
		}{ID: cs.ID, DecayFactor: cs.DecayFactor})
	case cs.Weight < 0 || cs.Samples < 0:
		return nil, errFactory.WithData(ErrInvalidState, struct {
			ID      string
			Weight  float64
			Samples int64
		}{ID: cs.ID, Weight: cs.Weight, Samples: cs.Samples})
	case cs.LastAdjust < cs.CreatedAt:
		return nil, errFactory.WithData(ErrInvalidState, struct {
			ID         string
			CreatedAt  int64
			LastAdjust int64
		}{ID: cs.ID, CreatedAt: cs.CreatedAt, LastAdjust: cs.LastAdjust})
	}

	return &MicroCluster{
		id:          cs.ID,
		decayFactor: cs.DecayFactor,
		sumLat:      cs.SumLat,
		sumLon:      cs.SumLon,
		mean:        cs.Mean,
		sumSq:       cs.SumSquares,
		variance:    cs.Variance,
		weight:      cs.Weight,
		n:           cs.Samples,
		createdAt:   cs.CreatedAt,
		lastAdjust:  cs.LastAdjust,
		farthest:    cs.Farthest,
		hasFarthest: cs.HasFarthest,
	}, nil
}
